package util

import "time"

// Timer measures how long a recommendation run or import takes.
type Timer struct {
	start time.Time
	now   func() time.Time
}

// StartTimer creates a timer running on the wall clock.
func StartTimer() Timer {
	return StartTimerWith(time.Now)
}

// StartTimerWith creates a timer reading time from now.
func StartTimerWith(now func() time.Time) Timer {
	if now == nil {
		now = time.Now
	}
	return Timer{start: now(), now: now}
}

// StartedAt returns the instant the timer was started.
func (t Timer) StartedAt() time.Time {
	return t.start
}

// Elapsed returns the duration since start. A zero timer reports zero.
func (t Timer) Elapsed() time.Duration {
	if t.start.IsZero() || t.now == nil {
		return 0
	}
	elapsed := t.now().Sub(t.start)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// ElapsedMs returns the elapsed milliseconds since start.
func (t Timer) ElapsedMs() int64 {
	return t.Elapsed().Milliseconds()
}
