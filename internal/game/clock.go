package game

import "time"

// Timer is a cancellable handle returned by Clock.AfterFunc.
type Timer interface {
	Stop() bool
}

// Clock arms the phase timers. Tests substitute a manually driven clock.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// RealClock is backed by the time package.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
