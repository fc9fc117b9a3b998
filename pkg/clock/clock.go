// Package clock abstracts time for the poll loop and the reconciler.
package clock

import "time"

// Clock tells time and schedules callbacks
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a scheduled callback. Stop reports whether it prevented the
// callback from running.
type Timer interface {
	Stop() bool
}

type realClock struct{}

// Real returns the wall clock
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
