package chrono

import (
	"time"
)

// Clock is the interface that anything depending on the system clock should use.
type Clock interface {
	Now() time.Time
}

// StandardClock reads the system clock in UTC.
type StandardClock struct{}

func NewStandardClock() StandardClock {
	return StandardClock{}
}

func (StandardClock) Now() time.Time {
	return time.Now().UTC()
}

// FixedClock always returns the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time {
	return c.T
}

