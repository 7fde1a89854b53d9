package shelflife

import "time"

// Clock provides the current time to the engine.
// Production code uses SystemClock; tests freeze the day with FixedClock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the system time
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns T
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time {
	return c.T
}

// ClockFunc adapts a function to Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// FixedDay returns a clock frozen at noon UTC of d, which falls on the same
// calendar day in every zone from UTC-12 to UTC+11.
func FixedDay(d Date) FixedClock {
	return FixedClock{T: d.Time().Add(12 * time.Hour)}
}
