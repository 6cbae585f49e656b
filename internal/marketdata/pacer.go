package marketdata

import (
	"context"
	"math"
	"time"

	"golang.org/x/time/rate"

	"orderbookcore/internal/bookkit"
)

// Pacer paces event emission against wall-clock time using a playback-speed
// multiplier: Wait blocks until wall-time reaches
// base_wall + (event_ts-base_event_ts)/multiplier, where the base is
// established at the first event after construction or after a seek.
//
// It is implemented on top of golang.org/x/time/rate rather than a
// hand-rolled timer: before each wait a one-token limiter is built at
// exactly the remaining delay and its initial token spent, so a single
// WaitN(ctx, 1) call both sleeps for the right duration and honors context
// cancellation for prompt shutdown.
type Pacer struct {
	limiter     *rate.Limiter
	multiplier  float64
	baseEventTs bookkit.Timestamp
	baseWall    time.Time
	haveBase    bool
}

// NewPacer constructs a Pacer at the default 1.0x (wall-clock-locked) speed.
func NewPacer() *Pacer {
	return &Pacer{
		limiter:    rate.NewLimiter(rate.Inf, 1),
		multiplier: 1.0,
	}
}

// SetSpeed updates the playback multiplier. It does not reset the timing
// base: speed can change mid-stream without re-anchoring.
func (p *Pacer) SetSpeed(multiplier float64) error {
	if multiplier <= 0 {
		return ErrInvalidPlaybackSpeed
	}
	p.multiplier = multiplier
	return nil
}

// Reset clears the timing base. The next call to Wait re-anchors base_wall
// and base_event to the timestamp it is given, as required after a seek.
func (p *Pacer) Reset() {
	p.haveBase = false
}

// Wait blocks until wall-time reaches the scheduled emission time for
// eventTs, or ctx is cancelled first.
func (p *Pacer) Wait(ctx context.Context, eventTs bookkit.Timestamp) error {
	if math.IsInf(p.multiplier, 1) {
		return nil
	}
	if !p.haveBase {
		p.baseEventTs = eventTs
		p.baseWall = time.Now()
		p.haveBase = true
		return nil
	}

	elapsedEventNs := float64(eventTs - p.baseEventTs)
	scheduled := p.baseWall.Add(time.Duration(elapsedEventNs / p.multiplier))
	delay := time.Until(scheduled)
	if delay <= 0 {
		return nil
	}

	// A new limiter's one-token bucket starts full; spending that token up
	// front makes WaitN block for the whole remaining delay.
	p.limiter = rate.NewLimiter(rate.Every(delay), 1)
	p.limiter.Allow()
	return p.limiter.WaitN(ctx, 1)
}
