package utils

import "time"

// Timer captures the wall-clock interval between two instants. The zero value
// is not ready for use; construct timers with [NewTimer], which records the
// starting instant right away. Call [Timer.Stop] when the measured work
// finishes and read the result with [Timer.GetDuration].
type Timer struct {
	startedAt time.Time
	stoppedAt time.Time
}

// NewTimer returns a Timer whose measurement begins now.
func NewTimer() *Timer {
	return &Timer{startedAt: time.Now()}
}

// Start begins a fresh measurement from the current instant, discarding any
// interval captured by a previous [Timer.Stop]. The same Timer may be reused
// for any number of measurements.
func (t *Timer) Start() {
	t.startedAt = time.Now()
	t.stoppedAt = time.Time{}
}

// Stop marks the end of the current measurement. Calling Stop again moves the
// end instant forward, lengthening the captured interval.
func (t *Timer) Stop() {
	t.stoppedAt = time.Now()
}

// GetDuration reports the interval between the last Start (or construction)
// and the last Stop. While the timer is still running, before Stop has been
// called for the current measurement, it returns zero.
func (t *Timer) GetDuration() time.Duration {
	if t.stoppedAt.IsZero() {
		return 0
	}
	return t.stoppedAt.Sub(t.startedAt)
}
