package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/zfogg/solfeed/pkg/api"
	"github.com/zfogg/solfeed/pkg/client"
	"github.com/zfogg/solfeed/pkg/config"
	"github.com/zfogg/solfeed/pkg/credentials"
	"github.com/zfogg/solfeed/pkg/errors"
	"github.com/zfogg/solfeed/pkg/feed"
	"github.com/zfogg/solfeed/pkg/lifecycle"
	"github.com/zfogg/solfeed/pkg/logger"
	"github.com/zfogg/solfeed/pkg/metrics"
	"github.com/zfogg/solfeed/pkg/output"
	"github.com/zfogg/solfeed/pkg/poller"
	"github.com/zfogg/solfeed/pkg/store"
	"golang.org/x/sync/errgroup"
)

// ErrAllStopped is returned by Watch when every loop halted on its own
var ErrAllStopped = stderrors.New("all feed loops stopped")

// WatchOptions configures WatchService.Watch
type WatchOptions struct {
	Channels []feed.Channel

	// Interval overrides the configured success interval for every channel
	Interval time.Duration

	// Hold keeps new posts accumulating instead of marking them viewed as
	// soon as they are printed
	Hold bool

	Resume bool

	// RealtimeURL overrides realtime.url for the websocket hint source
	RealtimeURL string
}

// WatchService runs the poll loops, lifecycle wiring and reconciler
type WatchService struct {
	settings config.Settings
	out      io.Writer
}

func NewWatchService(settings config.Settings) *WatchService {
	return &WatchService{settings: settings, out: os.Stdout}
}

// Scheduler builds the retry policy for channel from settings. A non-zero
// interval overrides the configured one.
func (ws *WatchService) Scheduler(channel feed.Channel, interval time.Duration) poller.Scheduler {
	s := poller.DefaultScheduler(channel)
	switch {
	case interval > 0:
		s.Interval = interval
	case channel == feed.ChannelWatchlist && ws.settings.WatchlistInterval > 0:
		s.Interval = ws.settings.WatchlistInterval
	case channel != feed.ChannelWatchlist && ws.settings.PollInterval > 0:
		s.Interval = ws.settings.PollInterval
	}
	if ws.settings.MaxRetries > 0 {
		s.MaxRetries = ws.settings.MaxRetries
	}
	if ws.settings.BackoffCap > 0 {
		s.Cap = ws.settings.BackoffCap
	}
	if ws.settings.RateLimitFallback > 0 {
		s.RateLimitFallback = ws.settings.RateLimitFallback
	}
	return s
}

// Watch polls the requested channels until ctx is done or every loop has
// stopped. Returns nil on cancellation.
func (ws *WatchService) Watch(ctx context.Context, opts WatchOptions) error {
	opts.Channels = distinct(opts.Channels)
	if len(opts.Channels) == 0 {
		opts.Channels = []feed.Channel{feed.ChannelRecent}
	}

	token := useStoredToken()

	cursors, closeCursors, err := OpenCursorStore(ctx, ws.settings)
	if err != nil {
		return err
	}
	defer closeCursors()

	m := metrics.New()
	feedAPI := api.Default()
	posts := store.New()
	printer := output.NewPostPrinter(ws.out, output.GetFormat())
	stops := newStopTracker(len(opts.Channels))

	var printMu sync.Mutex
	loops := make([]*poller.Loop, 0, len(opts.Channels))
	for _, ch := range opts.Channels {
		var loop *poller.Loop
		loop = poller.New(poller.Options{
			Channel:   ch,
			Fetcher:   feedAPI,
			Cursors:   cursors,
			Scheduler: ws.Scheduler(ch, opts.Interval),
			Metrics:   m,
			PageSize:  ws.settings.PageSize,
			Resume:    opts.Resume,
			OnNewPosts: func(batch []feed.Post) {
				posts.AddPosts(batch)

				printMu.Lock()
				if err := printer.Posts(fmt.Sprintf("%d new in %s", len(batch), loop.Channel()), batch); err != nil {
					logger.Warn("Failed to print posts", "error", err)
				}
				printMu.Unlock()

				if !opts.Hold {
					loop.MarkViewed()
				}
			},
			OnStop: func(err error) {
				printMu.Lock()
				printer.Banner(err)
				printMu.Unlock()
				stops.stopped(loop.Channel(), err)
			},
		})
		loops = append(loops, loop)
	}

	watcher := lifecycle.NewCredentialsWatcher(config.GetCredentialsPath(), ws.settings.AuthCheckInterval, nil)
	app := lifecycle.NewSignalSource()
	defer app.Close()

	bound := make([]lifecycle.Loop, len(loops))
	for i, l := range loops {
		bound[i] = l
	}
	adapter := lifecycle.NewAdapter(app, watcher, bound...)
	defer adapter.Close()

	// the adapter stops watchlist loops on logout without an OnStop callback
	unsub := watcher.Subscribe(func(authenticated bool) {
		if authenticated {
			return
		}
		for _, l := range loops {
			if l.Channel().RequiresAuth() {
				stops.stopped(l.Channel(), errors.AuthRequired(poller.WatchlistAuthMessage))
			}
		}
	})
	defer unsub()

	g, gctx := errgroup.WithContext(ctx)

	if addr := ws.settings.MetricsAddr; addr != "" {
		srv := m.NewServer(addr)
		g.Go(func() error {
			logger.Info("Serving metrics", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	url := opts.RealtimeURL
	if url == "" {
		url = ws.settings.RealtimeURL
	}
	var hints *lifecycle.HintSource
	if url != "" {
		hints = lifecycle.NewHintSource(lifecycle.HintConfig{URL: url, Token: token})
		for _, l := range loops {
			hints.Bind(l)
		}
		g.Go(func() error { return hints.Run(gctx) })
	}

	watcher.OnChange(func(c *credentials.Credentials) {
		next := ""
		if c.IsValid() {
			next = c.AccessToken
		}
		client.SetAuthToken(next)
		if hints != nil {
			hints.SetAuthToken(next)
		}
	})
	watcher.Start()
	defer watcher.Stop()

	reconciler := store.NewReconciler(posts, feedAPI, store.ReconcilerOptions{
		Interval: ws.settings.ReconcileInterval,
		Metrics:  m,
	})
	reconciler.Start(gctx)
	defer reconciler.Stop()

	for _, l := range loops {
		logger.Info("Watching feed", "channel", l.Channel(), "resume", opts.Resume)
		l.Start(gctx)
	}
	output.PrintInfo("Watching %s. Press Ctrl-C to quit.", channelList(opts.Channels))

	g.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-stops.done:
			return fmt.Errorf("%w: %w", ErrAllStopped, stops.last())
		}
	})

	err = g.Wait()
	for _, l := range loops {
		l.Stop()
	}
	if stderrors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func distinct(channels []feed.Channel) []feed.Channel {
	seen := make(map[feed.Channel]bool, len(channels))
	out := make([]feed.Channel, 0, len(channels))
	for _, ch := range channels {
		if !seen[ch] {
			seen[ch] = true
			out = append(out, ch)
		}
	}
	return out
}

func channelList(channels []feed.Channel) string {
	s := ""
	for i, ch := range channels {
		if i > 0 {
			s += ", "
		}
		s += ch.String()
	}
	return s
}

// stopTracker closes done once every channel has reported a stop
type stopTracker struct {
	mu        sync.Mutex
	want      int
	byChannel map[feed.Channel]error
	lastErr   error
	done      chan struct{}
}

func newStopTracker(n int) *stopTracker {
	return &stopTracker{want: n, byChannel: make(map[feed.Channel]error), done: make(chan struct{})}
}

func (t *stopTracker) stopped(ch feed.Channel, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byChannel[ch]; ok {
		return
	}
	t.byChannel[ch] = err
	t.lastErr = err
	logger.Warn("Feed loop stopped", "channel", ch, "error", err)
	if len(t.byChannel) == t.want {
		close(t.done)
	}
}

func (t *stopTracker) last() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}
