package clock

import "time"

// Clock abstracts the time source so scheduled jobs can be tested
// against a controllable calendar.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

func NewSystemClock() Clock {
	return systemClock{}
}
