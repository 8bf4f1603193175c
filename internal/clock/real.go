package clock

import "time"

// realClock implements Clock using the standard time package.
type realClock struct{}

// Real returns a Clock that uses the standard time package.
// This is the default for production use.
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

func (realClock) Until(t time.Time) time.Duration {
	return time.Until(t)
}

func (realClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}
