package server

import (
	"time"

	"github.com/coder/quartz"
)

// Scheduler runs fn once after d. The returned function cancels the job
// and reports whether it was still pending.
type Scheduler interface {
	ScheduleAfter(d time.Duration, fn func()) (stop func() bool)
}

// ClockScheduler schedules on a quartz clock so tests can drive time.
type ClockScheduler struct {
	Clock quartz.Clock
}

func (s ClockScheduler) ScheduleAfter(d time.Duration, fn func()) func() bool {
	t := s.Clock.AfterFunc(d, fn, "runner")
	return func() bool { return t.Stop() }
}
