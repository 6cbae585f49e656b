package marketdata

import (
	"context"

	"orderbookcore/internal/bookkit"
)

// Source is the abstract, replay-oriented market-data contract: a
// time-ordered lazy sequence of Events with seek and playback-speed
// controls. CSVSource (package replay) is the reference implementation.
type Source interface {
	// NextEvent returns the next event in timestamp order, blocking (or
	// yielding) as needed to honor the configured playback speed. It
	// returns io.EOF once the stream is exhausted. A recoverable row-level
	// problem is reported as a *RowError with a zero Event so the caller may
	// elect to continue; a fatal problem is reported as a plain error.
	// ctx cancellation unblocks an in-progress playback-speed wait promptly.
	NextEvent(ctx context.Context) (Event, error)

	// SeekToTime advances the cursor to the first event with timestamp >=
	// tsNs. It is deterministic and idempotent.
	SeekToTime(tsNs bookkit.Timestamp) error

	// SetPlaybackSpeed sets the time-warp multiplier: 1.0 is wall-clock
	// locked, 2.0 halves the real-time gap between events, +Inf means "as
	// fast as possible". Multipliers <= 0 are rejected.
	SetPlaybackSpeed(multiplier float64) error

	// IsFinished reports whether NextEvent has already returned io.EOF.
	IsFinished() bool
}
