package services

import "time"

// Clock is the time source used by the store and the draw coordinator.
// AfterFunc schedules f to run once after d.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func())
}

// SystemClock is backed by the time package.
type SystemClock struct{}

// Now returns the current wall-clock time.
func (SystemClock) Now() time.Time { return time.Now() }

// AfterFunc runs f in its own goroutine after d.
func (SystemClock) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}
