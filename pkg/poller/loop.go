// Package poller runs the cursor-based incremental sync loop for one feed
// channel: a baseline fetch establishes the cursor, later polls accumulate
// posts newer than it until the caller marks them viewed.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/zfogg/solfeed/pkg/api"
	"github.com/zfogg/solfeed/pkg/clock"
	"github.com/zfogg/solfeed/pkg/cursor"
	"github.com/zfogg/solfeed/pkg/errors"
	"github.com/zfogg/solfeed/pkg/feed"
	"github.com/zfogg/solfeed/pkg/logger"
	"github.com/zfogg/solfeed/pkg/metrics"
)

// State of a Loop
type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StatePolling      State = "polling"
	StateWaiting      State = "waiting"
	StateError        State = "error"
	StateStopped      State = "stopped"
)

// WatchlistAuthMessage is the error surfaced when the watchlist loses auth
const WatchlistAuthMessage = "Authentication required for watchlist"

const storeTimeout = 5 * time.Second

// Fetcher retrieves one page of posts newer than cursor. An empty cursor
// asks for the most recent page.
type Fetcher interface {
	FetchSince(ctx context.Context, channel feed.Channel, cursor string, limit int) (*api.FetchResult, error)
}

// Options configures a Loop
type Options struct {
	Channel   feed.Channel
	Fetcher   Fetcher
	Cursors   cursor.Store
	Scheduler Scheduler
	Clock     clock.Clock
	Metrics   *metrics.Metrics
	PageSize  int

	// Resume skips the baseline fetch when Cursors already holds a cursor
	Resume bool

	// OnNewPosts receives each non-empty batch of newly discovered posts,
	// newest first. It runs on the loop's goroutine after the loop state
	// has been updated, so it may call back into the Loop.
	OnNewPosts func(posts []feed.Post)

	// OnStop is called when the loop halts on its own because of an
	// authentication failure or exhausted retries
	OnStop func(err error)
}

// Loop polls a single channel. All methods are safe for concurrent use.
type Loop struct {
	channel   feed.Channel
	fetcher   Fetcher
	cursors   cursor.Store
	scheduler Scheduler
	clock     clock.Clock
	metrics   *metrics.Metrics
	pageSize  int
	resume    bool

	onNewPosts func([]feed.Post)
	onStop     func(error)

	// storeMu orders cursor writes against Reset; epoch counts resets
	storeMu sync.Mutex
	epoch   uint64

	mu       sync.Mutex
	state    State
	gen      uint64
	ctx      context.Context
	cancel   context.CancelFunc
	timer    clock.Timer
	loading  bool
	deferred bool
	active   bool
	resumed  bool

	cursor  string
	pending []feed.Post
	seen    feed.IDSet
	retry   RetryState
	err     error
}

// New creates an idle loop
func New(opts Options) *Loop {
	if opts.Cursors == nil {
		opts.Cursors = cursor.NewMemoryStore()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.PageSize <= 0 {
		opts.PageSize = api.DefaultPageSize
	}
	if opts.Scheduler == (Scheduler{}) {
		opts.Scheduler = DefaultScheduler(opts.Channel)
	}

	return &Loop{
		channel:    opts.Channel,
		fetcher:    opts.Fetcher,
		cursors:    opts.Cursors,
		scheduler:  opts.Scheduler.withDefaults(),
		clock:      opts.Clock,
		metrics:    opts.Metrics,
		pageSize:   opts.PageSize,
		resume:     opts.Resume,
		onNewPosts: opts.OnNewPosts,
		onStop:     opts.OnStop,
		state:      StateIdle,
		active:     true,
		seen:       make(feed.IDSet),
	}
}

// Channel returns the channel this loop polls
func (l *Loop) Channel() feed.Channel {
	return l.channel
}

// Start begins polling. It is a no-op while the loop is already running;
// from idle or stopped it schedules the baseline fetch immediately. ctx
// bounds every fetch issued until the next Stop or Reset.
func (l *Loop) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateInitializing, StatePolling, StateWaiting:
		return
	}

	l.gen++
	l.ctx, l.cancel = context.WithCancel(ctx)
	l.err = nil
	l.retry = RetryState{}
	l.metrics.SetRetry(l.channel.String(), 0)

	// A restart after Stop keeps the cursor and polls from it
	if l.cursor == "" {
		l.setStateLocked(StateInitializing)
	} else {
		l.setStateLocked(StateWaiting)
	}
	l.armLocked(0)
}

// Stop cancels the armed timer and any in-flight fetch. No fetch is issued
// after Stop returns until Start is called again. Safe to call repeatedly.
func (l *Loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateIdle || l.state == StateStopped {
		return
	}
	l.haltLocked()
	l.setStateLocked(StateStopped)
}

// Reset tears the loop down to idle: cursor, pending posts, retry state and
// error are cleared, including the persisted cursor. Start must be called
// again to resume.
func (l *Loop) Reset() {
	l.storeMu.Lock()
	defer l.storeMu.Unlock()

	l.mu.Lock()
	l.haltLocked()
	l.epoch++
	l.cursor = ""
	l.pending = nil
	l.seen = make(feed.IDSet)
	l.retry = RetryState{}
	l.err = nil
	l.resumed = false
	l.setStateLocked(StateIdle)
	l.metrics.SetPending(l.channel.String(), 0)
	l.metrics.SetRetry(l.channel.String(), 0)
	l.mu.Unlock()

	l.writeCursor("")
}

// MarkViewed advances the cursor to the newest pending post and clears the
// pending set. It returns the cursor after the call.
func (l *Loop) MarkViewed() string {
	l.mu.Lock()
	if len(l.pending) == 0 {
		cur := l.cursor
		l.mu.Unlock()
		return cur
	}
	l.cursor = l.pending[0].ID
	l.pending = nil
	l.seen = make(feed.IDSet)
	cur, epoch := l.cursor, l.epoch
	l.metrics.SetPending(l.channel.String(), 0)
	l.mu.Unlock()

	logger.Debug("Marked posts viewed", "channel", l.channel, "cursor", cur)
	l.persist(epoch, cur)
	return cur
}

// ClearAccumulated drops pending posts without moving the cursor. Posts
// already delivered are remembered so they are not surfaced again.
func (l *Loop) ClearAccumulated() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending = nil
	l.metrics.SetPending(l.channel.String(), 0)
}

// PollNow fires the next poll immediately if the loop is waiting on its
// timer. It reports whether a poll was scheduled.
func (l *Loop) PollNow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateWaiting || l.loading {
		return false
	}
	l.armLocked(0)
	return true
}

// SetActive toggles whether fetches hit the network. An inactive loop keeps
// its schedule but skips the request when the timer fires.
func (l *Loop) SetActive(active bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = active
}

func (l *Loop) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) Cursor() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cursor
}

// Pending returns a copy of the posts discovered since the cursor was last
// advanced, newest first
func (l *Loop) Pending() []feed.Post {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]feed.Post, len(l.pending))
	copy(out, l.pending)
	return out
}

// Err returns the error that stopped the loop, if any
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

func (l *Loop) Retry() RetryState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.retry
}

func (l *Loop) setStateLocked(s State) {
	if l.state == s {
		return
	}
	logger.Debug("Poll loop state", "channel", l.channel, "from", l.state, "to", s)
	l.state = s
}

// haltLocked invalidates the current generation
func (l *Loop) haltLocked() {
	l.gen++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.deferred = false
}

func (l *Loop) armLocked(d time.Duration) {
	if l.timer != nil {
		l.timer.Stop()
	}
	gen := l.gen
	l.timer = l.clock.AfterFunc(d, func() { l.tick(gen) })
}

// tick runs one fetch for generation gen
func (l *Loop) tick(gen uint64) {
	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		return
	}
	if l.loading {
		// a fetch from an older generation is still out
		l.deferred = true
		l.mu.Unlock()
		return
	}
	l.timer = nil

	if !l.active {
		l.metrics.ObserveFetch(l.channel.String(), metrics.OutcomeSkipped, 0)
		if l.state != StateInitializing {
			l.setStateLocked(StateWaiting)
		}
		l.armLocked(l.scheduler.Interval)
		l.mu.Unlock()
		return
	}

	l.loading = true
	ctx := l.ctx
	cur := l.cursor
	checkResume := cur == "" && l.resume && !l.resumed
	l.resumed = l.resumed || checkResume
	if cur != "" {
		l.setStateLocked(StatePolling)
	}
	l.mu.Unlock()

	if checkResume {
		if stored := l.load(ctx); stored != "" {
			logger.Info("Resuming from stored cursor", "channel", l.channel, "cursor", stored)
			cur = stored
			l.mu.Lock()
			if gen == l.gen {
				l.cursor = stored
				l.setStateLocked(StatePolling)
			}
			l.mu.Unlock()
		}
	}

	started := l.clock.Now()
	res, err := l.fetcher.FetchSince(ctx, l.channel, cur, l.pageSize)
	elapsed := l.clock.Now().Sub(started)

	l.mu.Lock()
	l.loading = false
	if gen != l.gen {
		if l.deferred && l.live() {
			l.deferred = false
			l.armLocked(0)
		}
		l.mu.Unlock()
		return
	}
	l.deferred = false

	var (
		fresh     []feed.Post
		stopErr   error
		newCursor string
	)
	switch {
	case err != nil:
		stopErr = l.failLocked(err, elapsed)
	case cur == "":
		newCursor = l.baselineLocked(res, elapsed)
	case l.cursor != cur:
		// MarkViewed moved the cursor while the fetch was out: only posts
		// ahead of the new cursor are new. A page that does not reach the
		// new cursor cannot be ordered against it and is polled again.
		page, found := ahead(res.Posts, l.cursor)
		fresh = l.accumulateLocked(page, elapsed)
		if !found {
			l.armLocked(0)
		}
	default:
		fresh = l.accumulateLocked(res.Posts, elapsed)
	}
	onNew, onStop, epoch := l.onNewPosts, l.onStop, l.epoch
	l.mu.Unlock()

	if newCursor != "" {
		l.persist(epoch, newCursor)
	}
	if len(fresh) > 0 && onNew != nil {
		onNew(fresh)
	}
	if stopErr != nil && onStop != nil {
		onStop(stopErr)
	}
}

func (l *Loop) live() bool {
	switch l.state {
	case StateInitializing, StatePolling, StateWaiting:
		return true
	}
	return false
}

// baselineLocked adopts the newest post as the cursor. Returns the new
// cursor, or "" when the page was empty and the baseline must be retried.
func (l *Loop) baselineLocked(res *api.FetchResult, elapsed time.Duration) string {
	l.metrics.ObserveFetch(l.channel.String(), metrics.OutcomeSuccess, elapsed)
	l.succeedLocked()

	l.pending = nil
	l.seen = make(feed.IDSet)
	l.metrics.SetPending(l.channel.String(), 0)

	newest := res.Newest()
	if newest == "" {
		logger.Debug("Baseline fetch returned no posts", "channel", l.channel)
		l.setStateLocked(StateInitializing)
		return ""
	}

	l.cursor = newest
	logger.Info("Feed baseline established", "channel", l.channel, "cursor", newest, "posts", len(res.Posts))
	return newest
}

// accumulateLocked prepends posts not already delivered since the cursor
// was set
func (l *Loop) accumulateLocked(page []feed.Post, elapsed time.Duration) []feed.Post {
	l.metrics.ObserveFetch(l.channel.String(), metrics.OutcomeSuccess, elapsed)
	l.succeedLocked()

	l.seen[l.cursor] = struct{}{}
	l.seen.Add(l.pending)
	fresh := feed.DedupeSet(page, l.seen)
	if len(fresh) == 0 {
		return nil
	}
	l.seen.Add(fresh)

	pending := make([]feed.Post, 0, len(fresh)+len(l.pending))
	pending = append(pending, fresh...)
	l.pending = append(pending, l.pending...)
	l.metrics.SetPending(l.channel.String(), len(l.pending))

	logger.Debug("New posts discovered", "channel", l.channel, "new", len(fresh), "pending", len(l.pending))
	return fresh
}

// ahead returns the posts in front of id in a newest-first page, and
// whether id was found at all
func ahead(page []feed.Post, id string) ([]feed.Post, bool) {
	for i, p := range page {
		if p.ID == id {
			return page[:i], true
		}
	}
	return nil, false
}

func (l *Loop) succeedLocked() {
	d := l.scheduler.Next(OutcomeSuccess, 0, l.retry)
	l.retry = d.State
	l.metrics.SetRetry(l.channel.String(), 0)
	l.setStateLocked(StateWaiting)
	l.armLocked(d.Delay)
}

// failLocked schedules a retry or halts the loop. It returns the error the
// loop stopped with, if it stopped.
func (l *Loop) failLocked(err error, elapsed time.Duration) error {
	ch := l.channel.String()

	if l.channel.RequiresAuth() && errors.IsAuth(err) {
		l.metrics.ObserveFetch(ch, metrics.OutcomeAuth, elapsed)
		logger.Warn("Watchlist polling stopped: not authenticated", "error", err)
		return l.haltWithLocked(errors.AuthRequired(WatchlistAuthMessage), "auth")
	}

	outcome := OutcomeFailure
	if errors.IsRateLimit(err) {
		outcome = OutcomeRateLimited
		l.metrics.ObserveFetch(ch, metrics.OutcomeRateLimited, elapsed)
	} else {
		l.metrics.ObserveFetch(ch, metrics.OutcomeFailure, elapsed)
	}

	d := l.scheduler.Next(outcome, errors.RetryAfter(err), l.retry)
	l.retry = d.State
	l.metrics.SetRetry(ch, d.State.Attempt)

	if d.Stop {
		logger.Error("Polling stopped after repeated failures", "channel", l.channel, "attempts", d.State.Attempt, "error", err)
		return l.haltWithLocked(errors.Exhausted(err), "exhausted")
	}

	logger.Warn("Feed fetch failed, backing off",
		"channel", l.channel,
		"outcome", outcome,
		"attempt", d.State.Attempt,
		"delay", d.Delay,
		"error", err,
	)
	if l.cursor != "" {
		l.setStateLocked(StateWaiting)
	}
	l.armLocked(d.Delay)
	return nil
}

func (l *Loop) haltWithLocked(err error, reason string) error {
	l.setStateLocked(StateError)
	l.haltLocked()
	l.err = err
	l.metrics.LoopStopped(l.channel.String(), reason)
	l.setStateLocked(StateStopped)
	return err
}

func (l *Loop) load(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()
	v, err := l.cursors.Get(ctx, l.channel)
	if err != nil {
		logger.Warn("Failed to read stored cursor", "channel", l.channel, "error", err)
		return ""
	}
	return v
}

// persist saves cur unless a Reset happened since epoch was read
func (l *Loop) persist(epoch uint64, cur string) {
	l.storeMu.Lock()
	defer l.storeMu.Unlock()

	l.mu.Lock()
	stale := epoch != l.epoch
	l.mu.Unlock()
	if stale {
		return
	}
	l.writeCursor(cur)
}

// writeCursor requires storeMu
func (l *Loop) writeCursor(cur string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	var err error
	if cur == "" {
		err = l.cursors.Clear(ctx, l.channel)
	} else {
		err = l.cursors.Set(ctx, l.channel, cur)
	}
	if err != nil {
		logger.Warn("Failed to persist cursor", "channel", l.channel, "error", err)
	}
}
