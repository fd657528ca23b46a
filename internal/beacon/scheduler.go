package beacon

import "time"

// DefaultNavigationDelay separates a history change from its page view.
const DefaultNavigationDelay = 300 * time.Millisecond

// Scheduler runs f after d.
type Scheduler interface {
	AfterFunc(d time.Duration, f func())
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}
