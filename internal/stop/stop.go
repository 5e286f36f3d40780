// Package stop provides the cooperative cancellation token polled at
// every loop boundary of the download pipeline.
package stop

import (
	"os"
	"sync/atomic"
)

// Signal is a process-wide cooperative stop flag. It is satisfied
// either programmatically (Raise, typically from a signal handler) or
// by the presence of a marker file on the local filesystem, polled on
// every Raised call. Once raised it stays raised.
//
// The pipeline checks it at the top of each per-node, per-page and
// per-entry loop; a download already in flight is allowed to complete.
type Signal struct {
	raised     atomic.Bool
	markerPath string
}

// New returns a Signal that also watches markerPath when non-empty.
func New(markerPath string) *Signal {
	return &Signal{markerPath: markerPath}
}

// Raise sets the flag programmatically.
func (s *Signal) Raise() {
	s.raised.Store(true)
}

// Raised reports whether a stop has been requested. The marker file is
// polled, not watched: this is a checkpoint-style consultation, not a
// push notification.
func (s *Signal) Raised() bool {
	if s.raised.Load() {
		return true
	}
	if s.markerPath != "" {
		if _, err := os.Stat(s.markerPath); err == nil {
			s.raised.Store(true)
			return true
		}
	}
	return false
}
