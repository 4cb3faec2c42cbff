package streaming

import "time"

// Clock supplies monotonic seconds as a floating point value, the time base
// for the registry's statistics and the delivery engines' latency figures
// (pacing uses the rate limiter's own clock). The default implementation
// wraps time.Now(); tests may substitute a fake.
type Clock interface {
	Now() float64
}

// systemClock is the production Clock backed by the monotonic runtime clock.
type systemClock struct{ start time.Time }

// NewSystemClock returns a Clock anchored to the instant it is created.
func NewSystemClock() Clock {
	return &systemClock{start: time.Now()}
}

func (c *systemClock) Now() float64 {
	return time.Since(c.start).Seconds()
}
