//go:build windows

package lifecycle

// SignalSource has no job-control signals to watch on Windows; the app is
// always active
type SignalSource struct {
	Broadcast[AppState]
}

func NewSignalSource() *SignalSource {
	return &SignalSource{}
}

func (s *SignalSource) Close() {}
