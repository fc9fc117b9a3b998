package poller

import (
	"time"

	"github.com/zfogg/solfeed/pkg/feed"
)

// Outcome classifies a finished fetch for the scheduler
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRateLimited
	OutcomeFailure
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeFailure:
		return "failure"
	}
	return "unknown"
}

// RetryState counts consecutive generic failures since the last success.
// RateLimited is set while the current wait comes from a rate limit.
type RetryState struct {
	Attempt     int
	RateLimited bool
}

// Decision is what to do after a fetch
type Decision struct {
	Delay time.Duration
	State RetryState
	Stop  bool
}

const (
	DefaultInterval          = 15 * time.Second
	DefaultWatchlistInterval = 30 * time.Second
	DefaultMaxRetries        = 3
	DefaultBackoffCap        = 5 * time.Minute
	DefaultRateLimitFallback = 60 * time.Second
)

// Scheduler computes poll delays. Base is the first backoff step and
// defaults to Interval.
type Scheduler struct {
	Interval          time.Duration
	Base              time.Duration
	Cap               time.Duration
	RateLimitFallback time.Duration
	MaxRetries        int
}

// DefaultScheduler returns the scheduler used for channel when nothing is
// configured
func DefaultScheduler(channel feed.Channel) Scheduler {
	interval := DefaultInterval
	if channel == feed.ChannelWatchlist {
		interval = DefaultWatchlistInterval
	}
	return Scheduler{
		Interval:          interval,
		Cap:               DefaultBackoffCap,
		RateLimitFallback: DefaultRateLimitFallback,
		MaxRetries:        DefaultMaxRetries,
	}
}

func (s Scheduler) withDefaults() Scheduler {
	if s.Interval <= 0 {
		s.Interval = DefaultInterval
	}
	if s.Base <= 0 {
		s.Base = s.Interval
	}
	if s.Cap <= 0 {
		s.Cap = DefaultBackoffCap
	}
	if s.RateLimitFallback <= 0 {
		s.RateLimitFallback = DefaultRateLimitFallback
	}
	if s.MaxRetries <= 0 {
		s.MaxRetries = DefaultMaxRetries
	}
	return s
}

// Next returns the delay before the next attempt. retryAfter is the
// server's advice for a rate-limited outcome and is ignored otherwise.
func (s Scheduler) Next(outcome Outcome, retryAfter time.Duration, st RetryState) Decision {
	s = s.withDefaults()

	switch outcome {
	case OutcomeSuccess:
		return Decision{Delay: s.Interval}

	case OutcomeRateLimited:
		delay := retryAfter
		if delay <= 0 {
			delay = s.RateLimitFallback
		}
		return Decision{
			Delay: delay,
			State: RetryState{Attempt: st.Attempt, RateLimited: true},
		}

	default:
		if st.Attempt >= s.MaxRetries {
			return Decision{State: RetryState{Attempt: st.Attempt}, Stop: true}
		}
		return Decision{
			Delay: s.backoff(st.Attempt),
			State: RetryState{Attempt: st.Attempt + 1},
		}
	}
}

// backoff is min(Base * 2^attempt, Cap)
func (s Scheduler) backoff(attempt int) time.Duration {
	d := s.Base
	for i := 0; i < attempt; i++ {
		if d >= s.Cap/2 {
			return s.Cap
		}
		d *= 2
	}
	if d > s.Cap {
		return s.Cap
	}
	return d
}
