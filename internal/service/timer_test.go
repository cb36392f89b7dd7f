package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folioapp/folio-server/internal/clock"
	"github.com/folioapp/folio-server/internal/domain"
	"github.com/folioapp/folio-server/internal/store"
)

func newTestTimer(s *store.Store, clk clock.Clock, bookID string) *StudyTimer {
	return NewStudyTimer(s, clk, bookID, TimerOptions{Location: time.UTC}, testLogger())
}

// tick advances the clock one second and credits it.
func tick(ctx context.Context, clk *clock.Fake, timer *StudyTimer, n int) {
	for range n {
		clk.Advance(time.Second)
		timer.Tick(ctx)
	}
}

func persistedSession(t *testing.T, s *store.Store, bookID string) *domain.CurrentSession {
	t.Helper()
	data, err := s.LoadStudyData(context.Background(), bookID)
	require.NoError(t, err)
	return data.CurrentSession
}

func TestStudyTimer_OpenPersistsNewSession(t *testing.T) {
	s := setupBadgerStore(t)
	clk := clock.NewFake(testNow)
	timer := newTestTimer(s, clk, "moby")

	timer.Open(context.Background())

	cur := persistedSession(t, s, "moby")
	require.NotNil(t, cur)
	assert.Equal(t, testNow, cur.StartTime)
	assert.Equal(t, int64(0), cur.Duration)
	assert.True(t, timer.Focused())
}

func TestStudyTimer_FocusLossFlushesAndPauses(t *testing.T) {
	s := setupBadgerStore(t)
	clk := clock.NewFake(testNow)
	timer := newTestTimer(s, clk, "moby")
	ctx := context.Background()
	timer.Open(ctx)

	tick(ctx, clk, timer, 25)
	// Periodic flush happened at tick 20.
	assert.Equal(t, int64(20), persistedSession(t, s, "moby").Duration)

	timer.FocusLost(ctx)
	assert.Equal(t, int64(25), persistedSession(t, s, "moby").Duration)

	// Unfocused ticks are ignored.
	for range 10 {
		clk.Advance(time.Second)
		assert.False(t, timer.Tick(ctx))
	}
	assert.Equal(t, int64(25), timer.Snapshot().CurrentSessionTime)

	timer.FocusGained()
	tick(ctx, clk, timer, 5)
	assert.Equal(t, int64(30), timer.Snapshot().CurrentSessionTime)
}

func TestStudyTimer_ResumeRestoresCounters(t *testing.T) {
	s := setupBadgerStore(t)
	clk := clock.NewFake(testNow)
	ctx := context.Background()

	first := newTestTimer(s, clk, "moby")
	first.Open(ctx)
	tick(ctx, clk, first, 7)
	first.IncrementPages(ctx)
	first.FocusLost(ctx)
	// The process dies here without a teardown.

	second := newTestTimer(s, clk, "moby")
	second.Open(ctx)
	snap := second.Snapshot()
	assert.Equal(t, int64(7), snap.CurrentSessionTime)
	assert.Equal(t, 1, snap.CurrentSessionPages)

	// Reopening again without ticks changes nothing.
	third := newTestTimer(s, clk, "moby")
	third.Open(ctx)
	assert.Equal(t, snap.CurrentSessionTime, third.Snapshot().CurrentSessionTime)
	assert.Equal(t, testNow, persistedSession(t, s, "moby").StartTime)
}

func TestStudyTimer_TeardownAppendsHistory(t *testing.T) {
	s := setupBadgerStore(t)
	clk := clock.NewFake(testNow)
	timer := newTestTimer(s, clk, "moby")
	ctx := context.Background()
	timer.Open(ctx)

	tick(ctx, clk, timer, 12)
	timer.IncrementPages(ctx)
	timer.IncrementPages(ctx)

	closed, ok := timer.Teardown(ctx)
	require.True(t, ok)
	assert.Equal(t, domain.StudySession{Date: "2026-03-14", Duration: 12, Pages: 2}, closed)

	data, err := s.LoadStudyData(ctx, "moby")
	require.NoError(t, err)
	assert.Nil(t, data.CurrentSession)
	assert.Equal(t, []domain.StudySession{closed}, data.Sessions)

	// Closed timers ignore everything.
	assert.False(t, timer.Tick(ctx))
	_, ok = timer.Teardown(ctx)
	assert.False(t, ok)
}

func TestStudyTimer_TeardownWithoutTimeWritesNoHistory(t *testing.T) {
	s := setupBadgerStore(t)
	clk := clock.NewFake(testNow)
	timer := newTestTimer(s, clk, "moby")
	ctx := context.Background()
	timer.Open(ctx)

	_, ok := timer.Teardown(ctx)
	assert.False(t, ok)

	data, err := s.LoadStudyData(ctx, "moby")
	require.NoError(t, err)
	assert.Nil(t, data.CurrentSession)
	assert.Empty(t, data.Sessions)
}

func TestStudyTimer_TotalsIncludeHistoryAndLive(t *testing.T) {
	s := setupBadgerStore(t)
	ctx := context.Background()
	_, err := s.UpdateStudyData(ctx, "moby", func(d *domain.StudyData) {
		d.Sessions = []domain.StudySession{
			{Date: "2026-03-14", Duration: 100},
			{Date: "2026-03-10", Duration: 40},
			{Date: "2026-03-01", Duration: 999},
		}
	})
	require.NoError(t, err)

	clk := clock.NewFake(testNow)
	timer := newTestTimer(s, clk, "moby")
	timer.Open(ctx)
	tick(ctx, clk, timer, 3)

	snap := timer.Snapshot()
	assert.Equal(t, int64(3), snap.CurrentSessionTime)
	assert.Equal(t, int64(103), snap.TodayTotal)
	assert.Equal(t, int64(143), snap.WeekTotal)
}

func TestStudyTimer_DayRolloverMovesHistory(t *testing.T) {
	s := setupBadgerStore(t)
	ctx := context.Background()
	_, err := s.UpdateStudyData(ctx, "moby", func(d *domain.StudyData) {
		d.Sessions = []domain.StudySession{{Date: "2026-03-14", Duration: 100}}
	})
	require.NoError(t, err)

	clk := clock.NewFake(time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC))
	timer := newTestTimer(s, clk, "moby")
	timer.Open(ctx)
	tick(ctx, clk, timer, 120)

	snap := timer.Snapshot()
	assert.Equal(t, int64(120), snap.TodayTotal, "yesterday's history no longer counts today")
	assert.Equal(t, int64(220), snap.WeekTotal)
}

func TestStudyTimer_FailedFlushRetriesNextTick(t *testing.T) {
	s, kv := setupMemoryStore(t)
	clk := clock.NewFake(testNow)
	timer := newTestTimer(s, clk, "moby")
	ctx := context.Background()
	timer.Open(ctx)

	kv.FailWrites(store.StudyStatsKey, errors.New("disk full"))
	tick(ctx, clk, timer, 10)
	assert.Equal(t, int64(0), persistedSession(t, s, "moby").Duration)
	assert.Equal(t, int64(10), timer.Snapshot().CurrentSessionTime, "timer keeps running")

	kv.FailWrites(store.StudyStatsKey, nil)
	tick(ctx, clk, timer, 1)
	assert.Equal(t, int64(11), persistedSession(t, s, "moby").Duration)
}

func TestStudyTimer_ReadFailureKeepsCachedHistory(t *testing.T) {
	s, kv := setupMemoryStore(t)
	ctx := context.Background()
	_, err := s.UpdateStudyData(ctx, "moby", func(d *domain.StudyData) {
		d.Sessions = []domain.StudySession{{Date: "2026-03-14", Duration: 50}}
	})
	require.NoError(t, err)

	clk := clock.NewFake(testNow)
	timer := newTestTimer(s, clk, "moby")
	timer.Open(ctx)

	kv.FailReads(store.StudyStatsKey, errors.New("io error"))
	tick(ctx, clk, timer, 2)
	assert.Equal(t, int64(52), timer.Snapshot().TodayTotal)
}

// seedSession persists an open CurrentSession for bookID.
func seedSession(t *testing.T, s *store.Store, bookID string, duration int64, pages int) {
	t.Helper()
	_, err := s.UpdateStudyData(context.Background(), bookID, func(d *domain.StudyData) {
		d.CurrentSession = &domain.CurrentSession{
			StartTime: testNow.Add(-time.Hour),
			Duration:  duration,
			PagesRead: pages,
		}
	})
	require.NoError(t, err)
}

func TestStudyTimer_UnreadableResumeKeepsSavedSession(t *testing.T) {
	s, kv := setupMemoryStore(t)
	ctx := context.Background()
	seedSession(t, s, "moby", 600, 7)
	writes := len(kv.Writes())

	clk := clock.NewFake(testNow)
	timer := newTestTimer(s, clk, "moby")
	kv.FailReads(store.StudyStatsKey, errors.New("io error"))
	timer.Open(ctx)
	assert.Len(t, kv.Writes(), writes, "nothing written before the saved session is read")

	kv.FailReads(store.StudyStatsKey, nil)
	saved := persistedSession(t, s, "moby")
	assert.Equal(t, int64(600), saved.Duration)
	assert.Equal(t, 7, saved.PagesRead)

	tick(ctx, clk, timer, 3)
	snap := timer.Snapshot()
	assert.Equal(t, int64(603), snap.CurrentSessionTime)
	assert.Equal(t, 7, snap.CurrentSessionPages)
	assert.Equal(t, int64(601), persistedSession(t, s, "moby").Duration, "first readable tick writes the merged session")
	assert.True(t, testNow.Add(-time.Hour).Equal(persistedSession(t, s, "moby").StartTime), "keeps the saved start time")

	closed, ok := timer.Teardown(ctx)
	require.True(t, ok)
	assert.Equal(t, domain.StudySession{Date: "2026-03-14", Duration: 603, Pages: 7}, closed)
}

func TestStudyTimer_UnreadableResumeMergesOnFirstWrite(t *testing.T) {
	s, kv := setupMemoryStore(t)
	ctx := context.Background()
	seedSession(t, s, "moby", 600, 7)

	clk := clock.NewFake(testNow)
	timer := newTestTimer(s, clk, "moby")
	kv.FailReads(store.StudyStatsKey, errors.New("io error"))
	timer.Open(ctx)

	// Counting continues while storage stays unreadable.
	tick(ctx, clk, timer, 2)
	timer.IncrementPages(ctx)
	assert.Equal(t, int64(2), timer.Snapshot().CurrentSessionTime)

	kv.FailReads(store.StudyStatsKey, nil)
	timer.FocusLost(ctx)

	saved := persistedSession(t, s, "moby")
	assert.Equal(t, int64(602), saved.Duration)
	assert.Equal(t, 8, saved.PagesRead)
	assert.Equal(t, int64(602), timer.Snapshot().CurrentSessionTime)

	// Resolved: later writes replace rather than add again.
	timer.IncrementPages(ctx)
	saved = persistedSession(t, s, "moby")
	assert.Equal(t, int64(602), saved.Duration)
	assert.Equal(t, 9, saved.PagesRead)
}

func TestStudyTimer_FailedTeardownIsRetried(t *testing.T) {
	s, kv := setupMemoryStore(t)
	clk := clock.NewFake(testNow)
	timer := newTestTimer(s, clk, "moby")
	ctx := context.Background()
	timer.Open(ctx)

	tick(ctx, clk, timer, 15)
	assert.Equal(t, int64(10), persistedSession(t, s, "moby").Duration)

	kv.FailWrites(store.StudyStatsKey, errors.New("disk full"))
	_, ok := timer.Teardown(ctx)
	assert.False(t, ok)
	assert.True(t, timer.ClosePending())

	_, _, err := timer.RetryClose(ctx)
	require.Error(t, err)
	assert.True(t, timer.ClosePending())

	// The close keeps the day it happened on.
	clk.Advance(24 * time.Hour)
	kv.FailWrites(store.StudyStatsKey, nil)
	closed, ok, err := timer.RetryClose(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.StudySession{Date: "2026-03-14", Duration: 15}, closed)
	assert.False(t, timer.ClosePending())
	assert.Nil(t, persistedSession(t, s, "moby"))

	_, ok, err = timer.RetryClose(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStudySnapshotFor_ClosedBook(t *testing.T) {
	s := setupBadgerStore(t)
	ctx := context.Background()
	_, err := s.UpdateStudyData(ctx, "moby", func(d *domain.StudyData) {
		d.Sessions = []domain.StudySession{{Date: "2026-03-14", Duration: 60, Pages: 3}}
		d.CurrentSession = &domain.CurrentSession{Duration: 15, PagesRead: 1}
	})
	require.NoError(t, err)

	snap, err := StudySnapshotFor(ctx, s, "moby", testNow, time.UTC)
	require.NoError(t, err)
	assert.False(t, snap.Open)
	assert.Equal(t, int64(15), snap.CurrentSessionTime)
	assert.Equal(t, int64(75), snap.TodayTotal)
	assert.Equal(t, int64(75), snap.WeekTotal)
}
