package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folioapp/folio-server/internal/clock"
	"github.com/folioapp/folio-server/internal/sse"
)

func startTestLoop(t *testing.T) (*TimerLoop, *clock.Fake, *recordingEmitter) {
	t.Helper()
	s := setupBadgerStore(t)
	clk := clock.NewFake(testNow)
	events := &recordingEmitter{}
	timer := newTestTimer(s, clk, "moby")
	loop := StartTimerLoop(context.Background(), timer, clk, time.Second, events, testLogger())
	t.Cleanup(func() { _, _, _ = loop.Close(context.Background()) })
	return loop, clk, events
}

// advanceUntil moves the fake clock one second at a time until the loop
// has credited want seconds.
func advanceUntil(t *testing.T, loop *TimerLoop, clk *clock.Fake, want int64) {
	t.Helper()
	ctx := context.Background()
	for {
		snap, err := loop.Stats(ctx)
		require.NoError(t, err)
		if snap.CurrentSessionTime == want {
			return
		}
		require.Less(t, snap.CurrentSessionTime, want)

		before := snap.CurrentSessionTime
		clk.Advance(time.Second)
		require.Eventually(t, func() bool {
			snap, err := loop.Stats(ctx)
			return err == nil && snap.CurrentSessionTime == before+1
		}, time.Second, time.Millisecond)
	}
}

func TestTimerLoop_TicksWhileFocused(t *testing.T) {
	loop, clk, events := startTestLoop(t)

	advanceUntil(t, loop, clk, 3)

	stats, ok := events.last(sse.EventStudyStats)
	require.True(t, ok)
	assert.Equal(t, "moby", stats.BookID)
}

func TestTimerLoop_FocusLossStopsTicker(t *testing.T) {
	loop, clk, _ := startTestLoop(t)
	ctx := context.Background()

	advanceUntil(t, loop, clk, 2)
	require.NoError(t, loop.FocusLost(ctx))
	assert.Equal(t, 0, clk.Tickers())

	clk.Advance(10 * time.Second)
	snap, err := loop.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.CurrentSessionTime)
	assert.False(t, snap.Focused)

	require.NoError(t, loop.FocusGained(ctx))
	assert.Equal(t, 1, clk.Tickers())
	advanceUntil(t, loop, clk, 4)
}

func TestTimerLoop_CloseTearsDown(t *testing.T) {
	loop, clk, events := startTestLoop(t)
	ctx := context.Background()

	advanceUntil(t, loop, clk, 5)
	require.NoError(t, loop.IncrementPages(ctx))

	closed, ok, err := loop.Close(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(5), closed.Duration)
	assert.Equal(t, 1, closed.Pages)
	assert.Equal(t, 0, clk.Tickers())

	_, ok = events.last(sse.EventStudySessionClosed)
	assert.True(t, ok)

	_, err = loop.Stats(ctx)
	assert.ErrorIs(t, err, ErrTimerStopped)

	// Second close is a no-op.
	_, ok, err = loop.Close(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}
