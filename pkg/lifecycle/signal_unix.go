//go:build !windows

package lifecycle

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// SignalSource maps job-control signals to app state. SIGTSTP (Ctrl-Z)
// toggles between active and background instead of suspending the process;
// SIGCONT always means active.
type SignalSource struct {
	Broadcast[AppState]

	once  sync.Once
	sigs  chan os.Signal
	done  chan struct{}
	mu    sync.Mutex
	state AppState
}

// NewSignalSource starts listening for signals until Close
func NewSignalSource() *SignalSource {
	s := &SignalSource{
		sigs:  make(chan os.Signal, 4),
		done:  make(chan struct{}),
		state: StateActive,
	}
	signal.Notify(s.sigs, syscall.SIGTSTP, syscall.SIGCONT)
	go s.run()
	return s
}

func (s *SignalSource) run() {
	for {
		select {
		case <-s.done:
			return
		case sig := <-s.sigs:
			s.Publish(s.transition(sig))
		}
	}
}

func (s *SignalSource) transition(sig os.Signal) AppState {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case sig == syscall.SIGCONT:
		s.state = StateActive
	case s.state == StateActive:
		s.state = StateBackground
	default:
		s.state = StateActive
	}
	return s.state
}

// Close stops signal delivery and restores default handling
func (s *SignalSource) Close() {
	s.once.Do(func() {
		signal.Stop(s.sigs)
		close(s.done)
	})
}
