package transform

import (
	"context"
	"time"
)

const (
	DefaultCooldownEvery = 10
	DefaultCooldownPause = 45 * time.Second
)

// Throttle pauses a sequential loop after every Every completed units,
// whether or not those units succeeded. A zero Every or Pause disables it.
type Throttle struct {
	Every int
	Pause time.Duration
	Sleep SleepFunc
}

func DefaultThrottle() Throttle {
	return Throttle{Every: DefaultCooldownEvery, Pause: DefaultCooldownPause}
}

// Due reports whether After would pause for this count.
func (t Throttle) Due(completed int) bool {
	return t.Every > 0 && t.Pause > 0 && completed > 0 && completed%t.Every == 0
}

// After is called with the running count of completed units. It returns
// ctx's error if the pause was cut short.
func (t Throttle) After(ctx context.Context, completed int) error {
	if !t.Due(completed) {
		return nil
	}
	sleep := t.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	return sleep(ctx, t.Pause)
}
