package lifecycle

import (
	"sync"
	"time"

	"github.com/zfogg/solfeed/pkg/clock"
	"github.com/zfogg/solfeed/pkg/credentials"
	"github.com/zfogg/solfeed/pkg/logger"
)

// CredentialsWatcher re-reads the credentials file on an interval and
// publishes when authentication becomes available or goes away
type CredentialsWatcher struct {
	Broadcast[bool]

	path     string
	interval time.Duration
	clock    clock.Clock

	mu       sync.Mutex
	known    bool
	authed   bool
	token    string
	timer    clock.Timer
	running  bool
	onChange func(*credentials.Credentials)
}

// NewCredentialsWatcher watches the credentials file at path
func NewCredentialsWatcher(path string, interval time.Duration, clk clock.Clock) *CredentialsWatcher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &CredentialsWatcher{path: path, interval: interval, clock: clk}
}

// OnChange registers fn to receive the new credentials (nil when logged
// out) whenever the access token changes
func (w *CredentialsWatcher) OnChange(fn func(*credentials.Credentials)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

// Start checks immediately and then on every interval
func (w *CredentialsWatcher) Start() {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.mu.Unlock()

	w.Check()
	w.arm()
}

func (w *CredentialsWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}

func (w *CredentialsWatcher) arm() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.timer = w.clock.AfterFunc(w.interval, func() {
		w.Check()
		w.arm()
	})
}

// Authenticated returns the result of the last check
func (w *CredentialsWatcher) Authenticated() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.authed
}

// Check reads the file once. The first check only records the state;
// later checks publish transitions.
func (w *CredentialsWatcher) Check() bool {
	creds, err := credentials.LoadFrom(w.path)
	if err != nil {
		logger.Warn("Failed to read credentials", "path", w.path, "error", err)
		creds = nil
	}
	authed := creds.IsValid()
	token := ""
	if authed {
		token = creds.AccessToken
	}

	w.mu.Lock()
	first := !w.known
	changed := w.known && authed != w.authed
	tokenChanged := token != w.token
	w.known = true
	w.authed = authed
	w.token = token
	onChange := w.onChange
	w.mu.Unlock()

	if tokenChanged && onChange != nil {
		if authed {
			onChange(creds)
		} else {
			onChange(nil)
		}
	}
	if changed {
		logger.Info("Authentication changed", "authenticated", authed)
		w.Publish(authed)
	} else if first {
		logger.Debug("Credentials loaded", "authenticated", authed)
	}
	return authed
}
