package service

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/folioapp/folio-server/internal/clock"
	"github.com/folioapp/folio-server/internal/domain"
	"github.com/folioapp/folio-server/internal/errors"
	"github.com/folioapp/folio-server/internal/normalize"
	"github.com/folioapp/folio-server/internal/sse"
	"github.com/folioapp/folio-server/internal/store"
)

// Surface is the external document renderer. The engine never paginates or
// lays out text itself; it only tells the surface where to go and what to
// paint.
type Surface interface {
	JumpTo(locationRef string) error
	DecorateRange(locationRef, styleTag string, onActivate func()) error
	RemoveDecoration(locationRef string) error
}

// SurfaceOpener returns the surface showing bookID.
type SurfaceOpener func(bookID string) Surface

// ReaderOptions configures a ReaderService.
type ReaderOptions struct {
	TickInterval time.Duration
	FlushEvery   int
	Location     *time.Location
}

// ReaderService connects an open book's surface to its study timer and to
// the annotation store. Only one book is open at a time; opening another
// closes the first.
type ReaderService struct {
	store   *store.Store
	notes   *AnnotationStore
	surface SurfaceOpener
	events  store.EventEmitter
	clock   clock.Clock
	opts    ReaderOptions
	logger  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*ReaderSession
	// unclosed holds stopped timers whose closing write failed.
	unclosed map[string]*StudyTimer
}

// ReaderSession is one open book.
type ReaderSession struct {
	bookID  string
	surface Surface
	timer   *TimerLoop

	mu           sync.Mutex
	lastLocation string
	hasLocation  bool
	selection    domain.Selection
}

// NewReaderService creates a reader service.
func NewReaderService(
	s *store.Store,
	notes *AnnotationStore,
	surface SurfaceOpener,
	events store.EventEmitter,
	clk clock.Clock,
	opts ReaderOptions,
	logger *slog.Logger,
) *ReaderService {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &ReaderService{
		store:    s,
		notes:    notes,
		surface:  surface,
		events:   events,
		clock:    clk,
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*ReaderSession),
		unclosed: make(map[string]*StudyTimer),
	}
}

// Open shows bookID on its surface, paints every saved highlight and starts
// the study timer. Opening the book that is already open returns its stats.
func (s *ReaderService) Open(ctx context.Context, bookID string) (domain.StudySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[bookID]; ok {
		return sess.timer.Stats(ctx)
	}

	// The saved session must be closed before a new timer resumes it.
	if err := s.retryCloseLocked(ctx, bookID); err != nil {
		return domain.StudySnapshot{}, errors.Wrap(err, errors.CodeInternal, "previous study session is not saved yet")
	}

	highlights, err := s.notes.Highlights(ctx, bookID)
	if err != nil {
		return domain.StudySnapshot{}, err
	}

	for otherID, other := range s.sessions {
		s.closeLocked(ctx, otherID, other)
	}

	sess := &ReaderSession{bookID: bookID, surface: s.surface(bookID)}
	for _, h := range highlights {
		s.decorate(sess, h)
	}

	timer := NewStudyTimer(s.store, s.clock, bookID, TimerOptions{
		FlushEvery: s.opts.FlushEvery,
		Location:   s.opts.Location,
	}, s.logger)
	sess.timer = StartTimerLoop(ctx, timer, s.clock, s.opts.TickInterval, s.events, s.logger)
	s.sessions[bookID] = sess

	s.logger.Info("book opened",
		"book_id", bookID,
		"highlights", len(highlights))
	return sess.timer.Stats(ctx)
}

// Close tears down the book's timer and forgets its surface. It reports the
// history entry written, if any.
func (s *ReaderService) Close(ctx context.Context, bookID string) (domain.StudySession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[bookID]
	if !ok {
		return domain.StudySession{}, false, notOpen(bookID)
	}
	return s.closeLocked(ctx, bookID, sess)
}

// CloseAll closes every open book. Used at shutdown.
func (s *ReaderService) CloseAll(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for bookID, sess := range s.sessions {
		s.closeLocked(ctx, bookID, sess)
	}
}

func (s *ReaderService) closeLocked(ctx context.Context, bookID string, sess *ReaderSession) (domain.StudySession, bool, error) {
	delete(s.sessions, bookID)
	closed, ok, err := sess.timer.Close(ctx)
	if err != nil {
		s.logger.Warn("study timer did not close cleanly", "book_id", bookID, "error", err)
		return domain.StudySession{}, false, err
	}
	if timer := sess.timer.timer; timer.ClosePending() {
		s.unclosed[bookID] = timer
		s.logger.Warn("study session close pending retry", "book_id", bookID)
	}
	s.logger.Info("book closed", "book_id", bookID, "history_written", ok)
	return closed, ok, nil
}

// PendingCloses lists books whose closed session has not been saved.
func (s *ReaderService) PendingCloses() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.unclosed))
	for bookID := range s.unclosed {
		ids = append(ids, bookID)
	}
	slices.Sort(ids)
	return ids
}

// RetryPendingCloses repeats every failed closing write. It returns how
// many succeeded and the last error seen.
func (s *ReaderService) RetryPendingCloses(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var saved int
	var lastErr error
	for bookID := range s.unclosed {
		if err := s.retryCloseLocked(ctx, bookID); err != nil {
			lastErr = err
			continue
		}
		saved++
	}
	return saved, lastErr
}

func (s *ReaderService) retryCloseLocked(ctx context.Context, bookID string) error {
	timer, ok := s.unclosed[bookID]
	if !ok {
		return nil
	}
	closed, written, err := timer.RetryClose(ctx)
	if err != nil {
		return err
	}
	delete(s.unclosed, bookID)
	if written {
		s.events.Emit(sse.NewStudySessionClosedEvent(bookID, closed))
	}
	s.logger.Info("pending study session closed", "book_id", bookID, "history_written", written)
	return nil
}

// OpenBooks lists the open book ids.
func (s *ReaderService) OpenBooks() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.sessions))
	for bookID := range s.sessions {
		ids = append(ids, bookID)
	}
	slices.Sort(ids)
	return ids
}

func (s *ReaderService) session(bookID string) (*ReaderSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[bookID]
	if !ok {
		return nil, notOpen(bookID)
	}
	return sess, nil
}

func notOpen(bookID string) error {
	return errors.Conflict("book is not open").WithDetails(map[string]string{"book_id": bookID})
}

// LocationChanged records the surface's new position. Every change after
// the first one seen in this session counts as a page turn.
func (s *ReaderService) LocationChanged(ctx context.Context, bookID, locationRef string) error {
	sess, err := s.session(bookID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	advanced := sess.hasLocation && sess.lastLocation != locationRef
	sess.lastLocation = locationRef
	sess.hasLocation = true
	sess.mu.Unlock()

	if advanced {
		return sess.timer.IncrementPages(ctx)
	}
	return nil
}

// TextSelected keeps the latest selection so HighlightSelection can turn it
// into a highlight. Selecting empty text clears it. Text is converted from
// HTML only when format says so.
func (s *ReaderService) TextSelected(_ context.Context, bookID, text string, format normalize.Format, locationRef string, bounds domain.Bounds) (domain.Selection, error) {
	sess, err := s.session(bookID)
	if err != nil {
		return domain.Selection{}, err
	}

	sel := domain.Selection{
		Text:        normalize.Selection(text, format),
		LocationRef: locationRef,
		Bounds:      bounds,
	}
	sess.mu.Lock()
	if sel.Empty() {
		sess.selection = domain.Selection{}
	} else {
		sess.selection = sel
	}
	sess.mu.Unlock()
	return sel, nil
}

// SetFocus forwards window focus changes to the study timer.
func (s *ReaderService) SetFocus(ctx context.Context, bookID string, focused bool) error {
	sess, err := s.session(bookID)
	if err != nil {
		return err
	}
	if focused {
		return sess.timer.FocusGained(ctx)
	}
	return sess.timer.FocusLost(ctx)
}

// IncrementPages counts a page turn reported directly by the reader.
func (s *ReaderService) IncrementPages(ctx context.Context, bookID string) (domain.StudySnapshot, error) {
	sess, err := s.session(bookID)
	if err != nil {
		return domain.StudySnapshot{}, err
	}
	if err := sess.timer.IncrementPages(ctx); err != nil {
		return domain.StudySnapshot{}, err
	}
	return sess.timer.Stats(ctx)
}

// Stats returns the book's timer values. Books that are not open are
// computed from storage.
func (s *ReaderService) Stats(ctx context.Context, bookID string) (domain.StudySnapshot, error) {
	if sess, err := s.session(bookID); err == nil {
		return sess.timer.Stats(ctx)
	}
	snap, err := StudySnapshotFor(ctx, s.store, bookID, s.clock.Now(), s.opts.Location)
	if err != nil {
		return domain.StudySnapshot{}, errors.Wrap(err, errors.CodeInternal, "load study stats")
	}
	return snap, nil
}

// HighlightSelection turns the current selection into a highlight.
func (s *ReaderService) HighlightSelection(ctx context.Context, bookID string, color domain.HighlightColor) (domain.Highlight, error) {
	sess, err := s.session(bookID)
	if err != nil {
		return domain.Highlight{}, err
	}

	sess.mu.Lock()
	sel := sess.selection
	sess.mu.Unlock()
	if sel.Empty() {
		return domain.Highlight{}, errors.Validation("no text selected")
	}

	h, err := s.notes.AddHighlight(ctx, bookID, sel.Text, sel.LocationRef, color)
	if err != nil {
		return domain.Highlight{}, err
	}

	sess.mu.Lock()
	if sess.selection == sel {
		sess.selection = domain.Selection{}
	}
	sess.mu.Unlock()

	s.decorate(sess, h)
	return h, nil
}

// AddHighlight creates a highlight and paints it if the book is open.
func (s *ReaderService) AddHighlight(ctx context.Context, bookID, text, locationRef string, color domain.HighlightColor) (domain.Highlight, error) {
	h, err := s.notes.AddHighlight(ctx, bookID, text, locationRef, color)
	if err != nil {
		return domain.Highlight{}, err
	}
	if sess, err := s.session(bookID); err == nil {
		s.decorate(sess, h)
	}
	return h, nil
}

// UpdateHighlightColor recolors a highlight and repaints it.
func (s *ReaderService) UpdateHighlightColor(ctx context.Context, bookID, highlightID string, color domain.HighlightColor) (domain.Highlight, bool, error) {
	h, ok, err := s.notes.UpdateHighlightColor(ctx, bookID, highlightID, color)
	if err != nil || !ok {
		return h, ok, err
	}
	if sess, err := s.session(bookID); err == nil {
		s.decorate(sess, h)
	}
	return h, true, nil
}

// DeleteHighlight deletes a highlight with its annotations and erases its
// decoration. Another highlight on the same range is repainted.
func (s *ReaderService) DeleteHighlight(ctx context.Context, bookID, highlightID string) (bool, error) {
	removed, ok, err := s.notes.DeleteHighlight(ctx, bookID, highlightID)
	if err != nil || !ok {
		return ok, err
	}

	sess, err := s.session(bookID)
	if err != nil {
		return true, nil
	}
	if err := sess.surface.RemoveDecoration(removed.LocationRef); err != nil {
		s.logger.Warn("failed to remove decoration",
			"book_id", bookID,
			"highlight_id", highlightID,
			"error", err)
	}

	remaining, err := s.notes.Highlights(ctx, bookID)
	if err != nil {
		return true, nil
	}
	for _, h := range remaining {
		if h.LocationRef == removed.LocationRef {
			s.decorate(sess, h)
		}
	}
	return true, nil
}

// JumpTo moves the surface to a highlight. Unknown highlights are ignored.
func (s *ReaderService) JumpTo(ctx context.Context, bookID, highlightID string) error {
	sess, err := s.session(bookID)
	if err != nil {
		return err
	}
	h, ok, err := s.notes.HighlightByID(ctx, bookID, highlightID)
	if err != nil || !ok {
		return err
	}
	if err := sess.surface.JumpTo(h.LocationRef); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "jump to highlight")
	}
	return nil
}

// decorate paints h and wires clicks on it to a highlight.activated event.
func (s *ReaderService) decorate(sess *ReaderSession, h domain.Highlight) {
	bookID, highlightID := sess.bookID, h.ID
	err := sess.surface.DecorateRange(h.LocationRef, h.Color.StyleTag(), func() {
		s.activate(bookID, highlightID)
	})
	if err != nil {
		s.logger.Warn("failed to decorate highlight",
			"book_id", bookID,
			"highlight_id", highlightID,
			"error", err)
	}
}

func (s *ReaderService) activate(bookID, highlightID string) {
	h, ok, err := s.notes.HighlightByID(context.Background(), bookID, highlightID)
	if err != nil || !ok {
		return
	}
	s.events.Emit(sse.NewHighlightActivatedEvent(h))
}

// BookSurfaces adapts an sse.SurfaceBridge to a SurfaceOpener.
func BookSurfaces(bridge *sse.SurfaceBridge) SurfaceOpener {
	return func(bookID string) Surface {
		return bridge.ForBook(bookID)
	}
}
