package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/folioapp/folio-server/internal/clock"
	"github.com/folioapp/folio-server/internal/domain"
	"github.com/folioapp/folio-server/internal/store"
)

// DefaultFlushEvery is how many ticks pass between CurrentSession writes.
const DefaultFlushEvery = 10

// StudyTimer tracks active reading time for one book.
//
// It is a plain state machine with no goroutines of its own: NoSession,
// then Open (focused or unfocused), then Closed. TimerLoop owns one and
// drives it from a single goroutine, so none of its methods lock.
//
// Every persistence failure is logged and swallowed. The in-memory counters
// keep going and the next flush writes the latest state.
type StudyTimer struct {
	store      *store.Store
	clock      clock.Clock
	loc        *time.Location
	flushEvery int
	logger     *slog.Logger

	bookID  string
	open    bool
	closed  bool
	focused bool
	session domain.CurrentSession
	history []domain.StudySession

	ticksSinceFlush int
	flushFailed     bool

	// unresolved is set when Open could not read the saved session. The
	// counters then hold only time credited since Open and are added to the
	// saved session once it can be read.
	unresolved bool

	closePending bool
	closeDay     string
}

// TimerOptions tunes a StudyTimer. Zero values select the defaults.
type TimerOptions struct {
	FlushEvery int
	Location   *time.Location
}

// NewStudyTimer creates a timer for bookID. Nothing is read until Open.
func NewStudyTimer(s *store.Store, clk clock.Clock, bookID string, opts TimerOptions, logger *slog.Logger) *StudyTimer {
	if opts.FlushEvery < 1 {
		opts.FlushEvery = DefaultFlushEvery
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &StudyTimer{
		store:      s,
		clock:      clk,
		loc:        opts.Location,
		flushEvery: opts.FlushEvery,
		logger:     logger.With("book_id", bookID),
		bookID:     bookID,
		history:    []domain.StudySession{},
	}
}

// Open starts or resumes the book's session. A persisted CurrentSession is
// resumed with its duration and page count; otherwise a new one starting
// now is created and written. The timer starts focused. Opening an open or
// closed timer does nothing.
//
// If the saved data cannot be read nothing is written. The timer counts
// from zero and merges with the saved session on the first successful read
// or write.
func (t *StudyTimer) Open(ctx context.Context) {
	if t.open || t.closed {
		return
	}
	t.open = true
	t.focused = true
	now := t.clock.Now().UTC()

	data, err := t.store.LoadStudyData(ctx, t.bookID)
	if err != nil {
		t.logger.Warn("failed to load study data, will merge once readable", "error", err)
		t.session = domain.CurrentSession{StartTime: now, LastActiveTime: now}
		t.unresolved = true
		t.flushFailed = true
		return
	}
	t.history = data.Sessions

	if cur := data.CurrentSession; cur != nil {
		t.session = *cur
		t.session.LastActiveTime = now
		t.logger.Info("study session resumed",
			"duration", t.session.Duration,
			"pages_read", t.session.PagesRead)
		return
	}

	t.session = domain.CurrentSession{StartTime: now, LastActiveTime: now}
	t.logger.Info("study session started")
	t.flush(ctx)
}

// Tick credits one second of reading. It does nothing unless the session is
// open and focused, and reports whether time was credited.
func (t *StudyTimer) Tick(ctx context.Context) bool {
	if !t.open || !t.focused {
		return false
	}
	t.session.Duration++
	t.session.LastActiveTime = t.clock.Now().UTC()
	t.ticksSinceFlush++

	t.refreshHistory(ctx)

	if t.ticksSinceFlush >= t.flushEvery || t.flushFailed {
		t.flush(ctx)
	}
	return true
}

// FocusLost pauses the timer and writes the session immediately.
func (t *StudyTimer) FocusLost(ctx context.Context) {
	if !t.open || !t.focused {
		return
	}
	t.focused = false
	t.flush(ctx)
}

// FocusGained resumes counting from the next tick. Time spent unfocused is
// never credited.
func (t *StudyTimer) FocusGained() {
	if !t.open {
		return
	}
	t.focused = true
}

// IncrementPages counts a page turn and writes it immediately.
func (t *StudyTimer) IncrementPages(ctx context.Context) {
	if !t.open {
		return
	}
	t.session.PagesRead++
	t.flush(ctx)
}

// Teardown closes the session. A session with any credited time becomes a
// history entry dated today; the CurrentSession is cleared either way. If
// the write fails the close stays pending with the live counters and
// RetryClose finishes it.
func (t *StudyTimer) Teardown(ctx context.Context) (domain.StudySession, bool) {
	if !t.open {
		return domain.StudySession{}, false
	}
	t.open = false
	t.focused = false
	t.closed = true
	t.closePending = true
	t.closeDay = clock.DayKey(t.clock.Now(), t.loc)

	closed, ok, err := t.writeClose(ctx)
	if err != nil {
		t.logger.Warn("failed to close study session, will retry",
			"duration", t.session.Duration,
			"error", err)
		return domain.StudySession{}, false
	}
	return closed, ok
}

// ClosePending reports whether a Teardown write failed and has not yet been
// retried successfully.
func (t *StudyTimer) ClosePending() bool { return t.closePending }

// RetryClose repeats a failed Teardown write. It does nothing when no close
// is pending. The history entry keeps the day Teardown ran.
func (t *StudyTimer) RetryClose(ctx context.Context) (domain.StudySession, bool, error) {
	if !t.closePending {
		return domain.StudySession{}, false, nil
	}
	return t.writeClose(ctx)
}

func (t *StudyTimer) writeClose(ctx context.Context) (domain.StudySession, bool, error) {
	var closed domain.StudySession
	var ok bool
	data, err := t.store.UpdateStudyData(ctx, t.bookID, func(d *domain.StudyData) {
		live := t.merged(d.CurrentSession)
		d.CurrentSession = &live
		closed, ok = d.Close(t.closeDay)
	})
	if err != nil {
		return domain.StudySession{}, false, err
	}
	t.closePending = false
	t.unresolved = false
	t.history = data.Sessions
	t.session = domain.CurrentSession{}

	if ok {
		t.logger.Info("study session closed",
			"date", closed.Date,
			"duration", closed.Duration,
			"pages", closed.Pages)
	}
	return closed, ok, nil
}

// Snapshot returns the five presentation values plus open/focused state.
func (t *StudyTimer) Snapshot() domain.StudySnapshot {
	now := t.clock.Now()
	return domain.StudySnapshot{
		BookID:              t.bookID,
		Open:                t.open,
		Focused:             t.focused,
		CurrentSessionTime:  t.session.Duration,
		CurrentSessionPages: t.session.PagesRead,
		TodayTotal:          domain.TodayTotal(t.history, t.session.Duration, now, t.loc),
		WeekTotal:           domain.WeekTotal(t.history, t.session.Duration, now, t.loc),
	}
}

// BookID returns the book this timer tracks.
func (t *StudyTimer) BookID() string { return t.bookID }

// Focused reports whether ticks are being credited.
func (t *StudyTimer) Focused() bool { return t.open && t.focused }

// refreshHistory re-reads closed sessions so totals include history written
// by other timers. On failure the cached history is kept. The first
// successful read after an unreadable Open resolves the live session.
func (t *StudyTimer) refreshHistory(ctx context.Context) {
	data, err := t.store.LoadStudyData(ctx, t.bookID)
	if err != nil {
		t.logger.Debug("failed to refresh study history", "error", err)
		return
	}
	t.history = data.Sessions
	t.resolve(data.CurrentSession)
}

// merged returns the live session as it should be stored, given the
// CurrentSession found on disk. Once resolved the live session is
// authoritative; before that its counters are added to the saved ones.
func (t *StudyTimer) merged(saved *domain.CurrentSession) domain.CurrentSession {
	cur := t.session
	if !t.unresolved || saved == nil {
		return cur
	}
	cur.StartTime = saved.StartTime
	cur.Duration += saved.Duration
	cur.PagesRead += saved.PagesRead
	return cur
}

func (t *StudyTimer) resolve(saved *domain.CurrentSession) {
	if !t.unresolved {
		return
	}
	t.session = t.merged(saved)
	t.unresolved = false
	t.logger.Info("study session resolved after failed read",
		"duration", t.session.Duration,
		"pages_read", t.session.PagesRead)
}

// flush writes the live session. A failure is retried on the next tick.
func (t *StudyTimer) flush(ctx context.Context) {
	var cur domain.CurrentSession
	data, err := t.store.UpdateStudyData(ctx, t.bookID, func(d *domain.StudyData) {
		cur = t.merged(d.CurrentSession)
		d.CurrentSession = &cur
	})
	if err != nil {
		t.flushFailed = true
		t.logger.Warn("failed to flush study session, will retry",
			"duration", t.session.Duration,
			"error", err)
		return
	}
	t.session = cur
	t.unresolved = false
	t.flushFailed = false
	t.ticksSinceFlush = 0
	t.history = data.Sessions
}

// StudySnapshotFor computes a snapshot from storage alone, for books that
// have no running timer. A CurrentSession left behind by an interrupted
// process counts as live time.
func StudySnapshotFor(ctx context.Context, s *store.Store, bookID string, now time.Time, loc *time.Location) (domain.StudySnapshot, error) {
	data, err := s.LoadStudyData(ctx, bookID)
	if err != nil {
		return domain.StudySnapshot{}, err
	}
	snap := domain.StudySnapshot{BookID: bookID}
	var live int64
	if cur := data.CurrentSession; cur != nil {
		live = cur.Duration
		snap.CurrentSessionTime = cur.Duration
		snap.CurrentSessionPages = cur.PagesRead
	}
	snap.TodayTotal = domain.TodayTotal(data.Sessions, live, now, loc)
	snap.WeekTotal = domain.WeekTotal(data.Sessions, live, now, loc)
	return snap, nil
}
