// Package timer provides the cancellable scheduled tasks used by the widget:
// the reveal cadence of the delivery pipeline, the welcome teaser delay and the
// optimistic typing indicator.
package timer

import (
	"time"
)

// Task is a scheduled callback that can be cancelled before it fires.
type Task interface {
	// Stop cancels the task. It returns false if the task already fired or was stopped.
	Stop() bool
}

// Scheduler runs f once after d has elapsed.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Task
}

type realScheduler struct{}

// Real returns a Scheduler backed by time.AfterFunc.
func Real() Scheduler {
	return realScheduler{}
}

func (realScheduler) AfterFunc(d time.Duration, f func()) Task {
	return time.AfterFunc(d, f)
}

// StopTask stops t if it is non-nil.
func StopTask(t Task) {
	if t != nil {
		t.Stop()
	}
}
