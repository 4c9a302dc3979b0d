package mqtt

import "time"

// Clock supplies time readings to the session.
// Readings must be monotonic; time.Now() satisfies this.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type systemClock struct{}

func (systemClock) Now() time.Time        { return time.Now() }
func (systemClock) Sleep(d time.Duration) { time.Sleep(d) }

// SystemClock returns the runtime clock.
func SystemClock() Clock {
	return systemClock{}
}

// deadline tracks what is left of a caller-supplied time budget.
type deadline struct {
	clock  Clock
	start  time.Time
	budget time.Duration
}

func newDeadline(clock Clock, budget time.Duration) deadline {
	if budget < 0 {
		budget = 0
	}
	return deadline{clock: clock, start: clock.Now(), budget: budget}
}

// remaining returns the unused budget, never negative.
func (d deadline) remaining() time.Duration {
	return saturatingSub(d.budget, d.clock.Now().Sub(d.start))
}

func (d deadline) expired() bool {
	return d.remaining() == 0
}

// saturatingSub returns a-b clamped to [0, a].
func saturatingSub(a, b time.Duration) time.Duration {
	if b <= 0 {
		return a
	}
	if b >= a {
		return 0
	}
	return a - b
}
