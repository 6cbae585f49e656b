package marketdata

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderbookcore/internal/bookkit"
)

func TestPacer_FirstWaitOnlyEstablishesBase(t *testing.T) {
	p := NewPacer()
	start := time.Now()
	require.NoError(t, p.Wait(context.Background(), bookkit.Timestamp(0)))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestPacer_InfiniteSpeedNeverBlocks(t *testing.T) {
	p := NewPacer()
	require.NoError(t, p.SetSpeed(math.Inf(1)))

	require.NoError(t, p.Wait(context.Background(), bookkit.Timestamp(0)))
	start := time.Now()
	require.NoError(t, p.Wait(context.Background(), bookkit.Timestamp(int64(time.Hour))))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestPacer_RejectsNonPositiveSpeed(t *testing.T) {
	p := NewPacer()
	assert.ErrorIs(t, p.SetSpeed(0), ErrInvalidPlaybackSpeed)
	assert.ErrorIs(t, p.SetSpeed(-1), ErrInvalidPlaybackSpeed)
}

func TestPacer_ContextCancelDuringWaitReturnsPromptly(t *testing.T) {
	p := NewPacer()
	require.NoError(t, p.Wait(context.Background(), bookkit.Timestamp(0)))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := p.Wait(ctx, bookkit.Timestamp(int64(time.Hour)))
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestPacer_ResetReanchorsBase(t *testing.T) {
	p := NewPacer()
	require.NoError(t, p.Wait(context.Background(), bookkit.Timestamp(int64(time.Hour))))
	p.Reset()

	start := time.Now()
	require.NoError(t, p.Wait(context.Background(), bookkit.Timestamp(0)))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}
