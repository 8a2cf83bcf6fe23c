package conversation

import "time"

// Timer is a pending scheduled call. Stop reports whether it prevented the
// call from running.
type Timer interface {
	Stop() bool
}

type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Timer
}

// RealScheduler runs fn on its own goroutine after delay.
type RealScheduler struct{}

func (RealScheduler) Schedule(delay time.Duration, fn func()) Timer {
	return time.AfterFunc(delay, fn)
}
