package domain

import (
	"time"

	"github.com/folioapp/folio-server/internal/clock"
)

// StudySession is a closed, historical reading session.
type StudySession struct {
	Date     string `json:"date"`     // calendar day key, YYYY-MM-DD
	Duration int64  `json:"duration"` // seconds
	Pages    int    `json:"pages"`
}

// CurrentSession is the live session for a book. At most one exists per book.
type CurrentSession struct {
	StartTime      time.Time `json:"start_time"`
	Duration       int64     `json:"duration"` // seconds
	PagesRead      int       `json:"pages_read"`
	LastActiveTime time.Time `json:"last_active_time"`
}

// StudyData is everything persisted about one book's reading time.
type StudyData struct {
	Sessions       []StudySession  `json:"sessions"`
	CurrentSession *CurrentSession `json:"current_session"`
}

// StudyStats maps book id to its study data. It is stored as one blob.
type StudyStats map[string]*StudyData

// Book returns the data for bookID, creating an empty entry if needed.
func (s StudyStats) Book(bookID string) *StudyData {
	d, ok := s[bookID]
	if !ok || d == nil {
		d = &StudyData{Sessions: []StudySession{}}
		s[bookID] = d
	}
	if d.Sessions == nil {
		d.Sessions = []StudySession{}
	}
	return d
}

// Close ends the current session. A session with positive duration is
// appended to history as a StudySession dated day; a zero-length one is
// dropped. The current session is cleared either way.
func (d *StudyData) Close(day string) (StudySession, bool) {
	cur := d.CurrentSession
	d.CurrentSession = nil
	if cur == nil || cur.Duration <= 0 {
		return StudySession{}, false
	}
	closed := StudySession{Date: day, Duration: cur.Duration, Pages: cur.PagesRead}
	d.Sessions = append(d.Sessions, closed)
	return closed, true
}

// TodayTotal sums closed sessions dated today plus the live duration.
func TodayTotal(sessions []StudySession, live int64, now time.Time, loc *time.Location) int64 {
	today := clock.DayKey(now, loc)
	total := live
	for _, s := range sessions {
		if s.Date == today {
			total += s.Duration
		}
	}
	return total
}

// WeekTotal sums closed sessions in the trailing week plus the live duration.
func WeekTotal(sessions []StudySession, live int64, now time.Time, loc *time.Location) int64 {
	total := live
	for _, s := range sessions {
		if clock.InTrailingWeek(s.Date, now, loc) {
			total += s.Duration
		}
	}
	return total
}

// StudySnapshot is the presentation view of a book's timer.
type StudySnapshot struct {
	BookID              string `json:"book_id"`
	Open                bool   `json:"open"`
	Focused             bool   `json:"focused"`
	CurrentSessionTime  int64  `json:"current_session_time"`
	CurrentSessionPages int    `json:"current_session_pages"`
	TodayTotal          int64  `json:"today_total"`
	WeekTotal           int64  `json:"week_total"`
}
