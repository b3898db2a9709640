package utils

import "time"

// Clock lets services and tests agree on "now".
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now()
}

// FixedClock returns Fixed until moved with Advance or Set.
type FixedClock struct {
	Fixed time.Time
}

func (c *FixedClock) Now() time.Time {
	return c.Fixed
}

func (c *FixedClock) Advance(d time.Duration) {
	c.Fixed = c.Fixed.Add(d)
}

func (c *FixedClock) Set(t time.Time) {
	c.Fixed = t
}
