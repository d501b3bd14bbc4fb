// Package system provides the wall clock that timestamps exports.
package system

import "time"

// Clock implements sink.Clock. Times are UTC so export names do not depend
// on the host's zone.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current UTC time truncated to whole seconds, the
// resolution of export filenames.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
