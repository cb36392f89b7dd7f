package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTodayTotal_ClosedSessionsPlusLive(t *testing.T) {
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	sessions := []StudySession{
		{Date: "2026-03-14", Duration: 30, Pages: 1},
		{Date: "2026-03-14", Duration: 45, Pages: 2},
		{Date: "2026-03-13", Duration: 600, Pages: 9},
	}

	assert.Equal(t, int64(85), TodayTotal(sessions, 10, now, time.UTC))
}

func TestWeekTotal_TrailingWindow(t *testing.T) {
	now := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	day := func(daysAgo int) string {
		return now.AddDate(0, 0, -daysAgo).Format("2006-01-02")
	}
	sessions := []StudySession{
		{Date: day(8), Duration: 1000},
		{Date: day(6), Duration: 60},
		{Date: day(0), Duration: 5},
	}

	assert.Equal(t, int64(60+5+7), WeekTotal(sessions, 7, now, time.UTC))
}

func TestStudyData_Close(t *testing.T) {
	t.Run("positive duration is recorded", func(t *testing.T) {
		d := &StudyData{CurrentSession: &CurrentSession{Duration: 42, PagesRead: 3}}

		closed, ok := d.Close("2026-03-14")

		assert.True(t, ok)
		assert.Equal(t, StudySession{Date: "2026-03-14", Duration: 42, Pages: 3}, closed)
		assert.Equal(t, []StudySession{closed}, d.Sessions)
		assert.Nil(t, d.CurrentSession)
	})

	t.Run("zero duration leaves no history", func(t *testing.T) {
		d := &StudyData{CurrentSession: &CurrentSession{PagesRead: 2}}

		_, ok := d.Close("2026-03-14")

		assert.False(t, ok)
		assert.Empty(t, d.Sessions)
		assert.Nil(t, d.CurrentSession)
	})

	t.Run("no session", func(t *testing.T) {
		d := &StudyData{}
		_, ok := d.Close("2026-03-14")
		assert.False(t, ok)
	})
}

func TestStudyStats_Book(t *testing.T) {
	stats := StudyStats{}
	d := stats.Book("moby")
	d.Sessions = append(d.Sessions, StudySession{Date: "2026-03-14", Duration: 1})

	assert.Same(t, d, stats.Book("moby"))
	assert.Len(t, stats["moby"].Sessions, 1)
	assert.NotNil(t, stats.Book("other").Sessions)
}
