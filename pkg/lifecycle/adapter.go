// Package lifecycle drives poll loops from host signals: foreground and
// background transitions, authentication changes and realtime hints.
package lifecycle

import (
	"sync"

	"github.com/zfogg/solfeed/pkg/feed"
	"github.com/zfogg/solfeed/pkg/logger"
	"github.com/zfogg/solfeed/pkg/poller"
)

// AppState is the host application's activity
type AppState string

const (
	StateActive     AppState = "active"
	StateBackground AppState = "background"
)

// AppStateSource delivers activity transitions
type AppStateSource interface {
	Subscribe(fn func(AppState)) (unsubscribe func())
}

// AuthSource delivers authentication availability changes
type AuthSource interface {
	Subscribe(fn func(authenticated bool)) (unsubscribe func())
}

// Loop is the part of *poller.Loop the adapter drives
type Loop interface {
	Channel() feed.Channel
	State() poller.State
	Cursor() string
	SetActive(active bool)
	PollNow() bool
	Stop()
}

// Adapter binds loops to an app state source and an auth source. Either
// source may be nil.
type Adapter struct {
	mu     sync.Mutex
	loops  []Loop
	state  AppState
	unsubs []func()
	closed bool
}

// NewAdapter subscribes to the sources once; Close unsubscribes
func NewAdapter(app AppStateSource, auth AuthSource, loops ...Loop) *Adapter {
	a := &Adapter{
		loops: loops,
		state: StateActive,
	}
	if app != nil {
		a.unsubs = append(a.unsubs, app.Subscribe(a.handleAppState))
	}
	if auth != nil {
		a.unsubs = append(a.unsubs, auth.Subscribe(a.handleAuth))
	}
	return a
}

// Bind adds a loop. The loop adopts the adapter's current activity.
func (a *Adapter) Bind(loop Loop) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.loops = append(a.loops, loop)
	loop.SetActive(a.state == StateActive)
}

// State returns the last observed app state
func (a *Adapter) State() AppState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Adapter) handleAppState(next AppState) {
	a.mu.Lock()
	if a.closed || next == a.state {
		a.mu.Unlock()
		return
	}
	prev := a.state
	a.state = next
	loops := append([]Loop(nil), a.loops...)
	a.mu.Unlock()

	logger.Info("App state changed", "from", prev, "to", next)

	switch next {
	case StateActive:
		for _, l := range loops {
			l.SetActive(true)
			if l.State() == poller.StateWaiting && l.Cursor() != "" {
				if l.PollNow() {
					logger.Debug("Forced poll on foreground", "channel", l.Channel())
				}
			}
		}
	case StateBackground:
		for _, l := range loops {
			l.SetActive(false)
		}
	}
}

func (a *Adapter) handleAuth(authenticated bool) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	loops := append([]Loop(nil), a.loops...)
	a.mu.Unlock()

	if authenticated {
		// starting is left to the caller
		logger.Info("Authentication available")
		return
	}

	for _, l := range loops {
		if l.Channel().RequiresAuth() {
			logger.Info("Authentication lost, stopping loop", "channel", l.Channel())
			l.Stop()
		}
	}
}

// Close unsubscribes from both sources and stops every bound loop
func (a *Adapter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	unsubs := a.unsubs
	a.unsubs = nil
	loops := a.loops
	a.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	for _, l := range loops {
		l.Stop()
	}
}
