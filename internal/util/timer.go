package util

import "time"

// Timer measures how long one analysis or startup phase takes.
type Timer struct {
	start time.Time
	now   func() time.Time
}

// StartTimer starts a wall-clock timer.
func StartTimer() Timer {
	return startTimerWith(time.Now)
}

func startTimerWith(now func() time.Time) Timer {
	return Timer{start: now(), now: now}
}

func (t Timer) since() time.Duration {
	if t.start.IsZero() || t.now == nil {
		return 0
	}
	return t.now().Sub(t.start)
}

// ElapsedMs reports whole milliseconds; analyses persist it as processing_time_ms.
func (t Timer) ElapsedMs() int64 {
	return t.since().Milliseconds()
}

// Elapsed returns the duration rounded to the millisecond, for log fields.
func (t Timer) Elapsed() time.Duration {
	return t.since().Round(time.Millisecond)
}
