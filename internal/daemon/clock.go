package daemon

import "time"

// Clock is the relay's view of time. Cooldowns wait on After so tests
// can run them without wall-clock delay.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
