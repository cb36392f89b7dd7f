package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayKey_UsesLocation(t *testing.T) {
	// 23:30 UTC is already the next day in Tokyo.
	ts := time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)
	tokyo := time.FixedZone("JST", 9*60*60)

	assert.Equal(t, "2026-03-14", DayKey(ts, time.UTC))
	assert.Equal(t, "2026-03-15", DayKey(ts, tokyo))
}

func TestInTrailingWeek(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		day  string
		want bool
	}{
		{"today", "2026-03-14", true},
		{"six days ago", "2026-03-08", true},
		{"seven days ago before the cutoff hour", "2026-03-07", false},
		{"eight days ago", "2026-03-06", false},
		{"garbage", "not-a-date", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InTrailingWeek(tt.day, now, time.UTC))
		})
	}
}

func TestInTrailingWeek_MidnightBoundaryInclusive(t *testing.T) {
	now := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	assert.True(t, InTrailingWeek("2026-03-07", now, time.UTC))
}

func TestFake_AdvanceFiresTicker(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	fc := NewFake(start)
	tk := fc.NewTicker(time.Second)

	fc.Advance(500 * time.Millisecond)
	select {
	case <-tk.C():
		t.Fatal("ticker fired early")
	default:
	}

	fc.Advance(500 * time.Millisecond)
	select {
	case at := <-tk.C():
		assert.Equal(t, start.Add(time.Second), at)
	default:
		t.Fatal("ticker did not fire")
	}
	assert.Equal(t, start.Add(time.Second), fc.Now())
}

func TestFake_StopRemovesTicker(t *testing.T) {
	fc := NewFake(time.Now())
	tk := fc.NewTicker(time.Second)
	require.Equal(t, 1, fc.Tickers())

	tk.Stop()
	assert.Equal(t, 0, fc.Tickers())

	fc.Advance(5 * time.Second)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestSystemClock(t *testing.T) {
	c := System()
	before := time.Now()
	assert.False(t, c.Now().Before(before))

	tk := c.NewTicker(time.Millisecond)
	defer tk.Stop()
	select {
	case <-tk.C():
	case <-time.After(time.Second):
		t.Fatal("system ticker never fired")
	}
}
