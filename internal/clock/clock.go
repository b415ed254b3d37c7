// Package clock abstracts wall-clock reads so that latency measurements can
// be driven deterministically in tests. Production code always uses [System].
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// System reads the real wall clock.
type System struct{}

// Now returns the current time, carrying Go's monotonic reading.
func (System) Now() time.Time { return time.Now() }
