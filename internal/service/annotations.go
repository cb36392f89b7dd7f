package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/folioapp/folio-server/internal/clock"
	"github.com/folioapp/folio-server/internal/domain"
	"github.com/folioapp/folio-server/internal/errors"
	"github.com/folioapp/folio-server/internal/id"
	"github.com/folioapp/folio-server/internal/normalize"
	"github.com/folioapp/folio-server/internal/sse"
	"github.com/folioapp/folio-server/internal/store"
)

// Referential-integrity errors. Both carry errors.CodeUnknownParent.
var (
	ErrUnknownHighlight  = errors.UnknownParent("unknown highlight")
	ErrUnknownAnnotation = errors.UnknownParent("unknown annotation")
)

// AnnotationStore owns highlights, annotations and replies for every book.
// Each book's collections are loaded on first use and kept in memory;
// every mutation updates memory and then writes the affected collection
// before returning. A failed write is logged, the in-memory change is kept,
// and the book is marked dirty until a later write or FlushPending succeeds.
type AnnotationStore struct {
	store  *store.Store
	events store.EventEmitter
	clock  clock.Clock
	newID  id.Generator
	logger *slog.Logger

	mu    sync.Mutex
	books map[string]*bookNotes
}

// bookNotes is one book's in-memory collections. Its mutex makes each
// operation run to completion, write included, before the next starts.
type bookNotes struct {
	mu          sync.Mutex
	bookID      string
	highlights  []domain.Highlight
	annotations []domain.Annotation
	dirty       bool
}

// NewAnnotationStore creates an annotation store over s.
func NewAnnotationStore(s *store.Store, events store.EventEmitter, clk clock.Clock, logger *slog.Logger) *AnnotationStore {
	return &AnnotationStore{
		store:  s,
		events: events,
		clock:  clk,
		newID:  id.Generate,
		logger: logger,
		books:  make(map[string]*bookNotes),
	}
}

// SetIDGenerator replaces the id source. Tests use id.Sequence.
func (s *AnnotationStore) SetIDGenerator(gen id.Generator) {
	s.newID = gen
}

// book returns the locked notes for bookID, loading them on first use.
// A backend read failure is returned and nothing is cached, so the next
// call retries the load instead of overwriting stored data with an empty
// list. The caller must unlock.
func (s *AnnotationStore) book(ctx context.Context, bookID string) (*bookNotes, error) {
	s.mu.Lock()
	b, ok := s.books[bookID]
	if !ok {
		b = &bookNotes{bookID: bookID}
		s.books[bookID] = b
	}
	s.mu.Unlock()

	b.mu.Lock()
	if b.highlights != nil {
		return b, nil
	}

	highlights, err := s.store.LoadHighlights(ctx, bookID)
	if err != nil {
		b.mu.Unlock()
		return nil, errors.Wrap(err, errors.CodeInternal, "load highlights")
	}
	annotations, err := s.store.LoadAnnotations(ctx, bookID)
	if err != nil {
		b.mu.Unlock()
		return nil, errors.Wrap(err, errors.CodeInternal, "load annotations")
	}

	// Annotations whose highlight is gone are never observable.
	known := make(map[string]bool, len(highlights))
	for _, h := range highlights {
		known[h.ID] = true
	}
	kept := annotations[:0]
	for _, a := range annotations {
		if known[a.HighlightID] {
			kept = append(kept, a)
		}
	}
	if dropped := len(annotations) - len(kept); dropped > 0 {
		s.logger.Warn("dropping orphaned annotations on load",
			"book_id", bookID,
			"count", dropped)
		b.dirty = true
	}

	b.highlights = highlights
	b.annotations = kept
	return b, nil
}

// persist writes the book after a mutation. Single-collection writes are
// used only while the book is clean; a dirty book is always written as one
// batch so the two keys never disagree on disk.
func (s *AnnotationStore) persist(ctx context.Context, b *bookNotes, highlights, annotations bool) {
	var err error
	switch {
	case b.dirty || (highlights && annotations):
		err = s.store.SaveBook(ctx, b.bookID, b.highlights, b.annotations)
	case highlights:
		err = s.store.SaveHighlights(ctx, b.bookID, b.highlights)
	case annotations:
		err = s.store.SaveAnnotations(ctx, b.bookID, b.annotations)
	}
	if err != nil {
		b.dirty = true
		s.logger.Warn("failed to persist annotations, will retry",
			"book_id", b.bookID,
			"error", err)
		return
	}
	b.dirty = false
}

// AddHighlight appends a highlight. Colors outside the palette fall back to
// the default.
func (s *AnnotationStore) AddHighlight(ctx context.Context, bookID, text, locationRef string, color domain.HighlightColor) (domain.Highlight, error) {
	hlID, err := s.newID(id.PrefixHighlight)
	if err != nil {
		return domain.Highlight{}, fmt.Errorf("generate highlight id: %w", err)
	}

	b, err := s.book(ctx, bookID)
	if err != nil {
		return domain.Highlight{}, err
	}
	now := s.clock.Now().UTC()
	h := domain.Highlight{
		ID:          hlID,
		BookID:      bookID,
		LocationRef: locationRef,
		Text:        normalize.Paragraphs(text),
		Color:       color.OrDefault(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	b.highlights = append(b.highlights, h)
	s.persist(ctx, b, true, false)
	b.mu.Unlock()

	s.logger.Info("highlight added", "book_id", bookID, "highlight_id", h.ID, "color", h.Color)
	s.events.Emit(sse.NewHighlightCreatedEvent(h))
	return h, nil
}

// UpdateHighlightColor recolors a highlight. Unknown ids are a no-op and
// report false.
func (s *AnnotationStore) UpdateHighlightColor(ctx context.Context, bookID, highlightID string, color domain.HighlightColor) (domain.Highlight, bool, error) {
	b, err := s.book(ctx, bookID)
	if err != nil {
		return domain.Highlight{}, false, err
	}
	i := domain.IndexHighlight(b.highlights, highlightID)
	if i < 0 {
		b.mu.Unlock()
		return domain.Highlight{}, false, nil
	}
	b.highlights[i].Color = color.OrDefault()
	b.highlights[i].UpdatedAt = s.clock.Now().UTC()
	h := b.highlights[i]
	s.persist(ctx, b, true, false)
	b.mu.Unlock()

	s.events.Emit(sse.NewHighlightUpdatedEvent(h))
	return h, true, nil
}

// DeleteHighlight removes a highlight and every annotation on it in one
// atomic write. Unknown ids are a no-op and report false.
func (s *AnnotationStore) DeleteHighlight(ctx context.Context, bookID, highlightID string) (domain.Highlight, bool, error) {
	b, err := s.book(ctx, bookID)
	if err != nil {
		return domain.Highlight{}, false, err
	}
	i := domain.IndexHighlight(b.highlights, highlightID)
	if i < 0 {
		b.mu.Unlock()
		return domain.Highlight{}, false, nil
	}
	removed := b.highlights[i]
	b.highlights = slices.Delete(b.highlights, i, i+1)
	var dropped int
	b.annotations, dropped = domain.WithoutHighlight(b.annotations, highlightID)
	s.persist(ctx, b, true, true)
	b.mu.Unlock()

	s.logger.Info("highlight deleted",
		"book_id", bookID,
		"highlight_id", highlightID,
		"annotations_removed", dropped)
	s.events.Emit(sse.NewHighlightDeletedEvent(bookID, highlightID, dropped))
	return removed, true, nil
}

// AddAnnotation attaches a note to a highlight. A missing highlight is an
// ErrUnknownHighlight error so a note is never silently dropped.
func (s *AnnotationStore) AddAnnotation(ctx context.Context, bookID, highlightID, content, userID, userName string) (domain.Annotation, error) {
	annID, err := s.newID(id.PrefixAnnotation)
	if err != nil {
		return domain.Annotation{}, fmt.Errorf("generate annotation id: %w", err)
	}

	b, err := s.book(ctx, bookID)
	if err != nil {
		return domain.Annotation{}, err
	}
	if domain.IndexHighlight(b.highlights, highlightID) < 0 {
		b.mu.Unlock()
		return domain.Annotation{}, ErrUnknownHighlight.WithDetails(map[string]string{"highlight_id": highlightID})
	}
	now := s.clock.Now().UTC()
	a := domain.Annotation{
		ID:          annID,
		HighlightID: highlightID,
		UserID:      userID,
		UserName:    userName,
		Content:     normalize.Content(content),
		CreatedAt:   now,
		UpdatedAt:   now,
		Replies:     []domain.Reply{},
	}
	b.annotations = append(b.annotations, a)
	s.persist(ctx, b, false, true)
	b.mu.Unlock()

	s.events.Emit(sse.NewAnnotationCreatedEvent(bookID, a.Clone()))
	return a.Clone(), nil
}

// UpdateAnnotation replaces a note's content. Unknown ids are a no-op.
func (s *AnnotationStore) UpdateAnnotation(ctx context.Context, bookID, annotationID, content string) (domain.Annotation, bool, error) {
	b, err := s.book(ctx, bookID)
	if err != nil {
		return domain.Annotation{}, false, err
	}
	i := domain.IndexAnnotation(b.annotations, annotationID)
	if i < 0 {
		b.mu.Unlock()
		return domain.Annotation{}, false, nil
	}
	b.annotations[i].Content = normalize.Content(content)
	b.annotations[i].UpdatedAt = s.clock.Now().UTC()
	a := b.annotations[i].Clone()
	s.persist(ctx, b, false, true)
	b.mu.Unlock()

	s.events.Emit(sse.NewAnnotationUpdatedEvent(bookID, a))
	return a, true, nil
}

// DeleteAnnotation removes a note and its replies. Unknown ids are a no-op.
func (s *AnnotationStore) DeleteAnnotation(ctx context.Context, bookID, annotationID string) (bool, error) {
	b, err := s.book(ctx, bookID)
	if err != nil {
		return false, err
	}
	i := domain.IndexAnnotation(b.annotations, annotationID)
	if i < 0 {
		b.mu.Unlock()
		return false, nil
	}
	highlightID := b.annotations[i].HighlightID
	b.annotations = slices.Delete(b.annotations, i, i+1)
	s.persist(ctx, b, false, true)
	b.mu.Unlock()

	s.events.Emit(sse.NewAnnotationDeletedEvent(bookID, annotationID, highlightID))
	return true, nil
}

// AddReply appends a reply to an annotation, preserving insertion order.
// A missing annotation is an ErrUnknownAnnotation error.
func (s *AnnotationStore) AddReply(ctx context.Context, bookID, annotationID, content, userID, userName string) (domain.Reply, error) {
	replyID, err := s.newID(id.PrefixReply)
	if err != nil {
		return domain.Reply{}, fmt.Errorf("generate reply id: %w", err)
	}

	b, err := s.book(ctx, bookID)
	if err != nil {
		return domain.Reply{}, err
	}
	i := domain.IndexAnnotation(b.annotations, annotationID)
	if i < 0 {
		b.mu.Unlock()
		return domain.Reply{}, ErrUnknownAnnotation.WithDetails(map[string]string{"annotation_id": annotationID})
	}
	r := domain.Reply{
		ID:           replyID,
		AnnotationID: annotationID,
		UserID:       userID,
		UserName:     userName,
		Content:      normalize.Content(content),
		CreatedAt:    s.clock.Now().UTC(),
	}
	b.annotations[i].Replies = append(b.annotations[i].Replies, r)
	s.persist(ctx, b, false, true)
	b.mu.Unlock()

	s.events.Emit(sse.NewReplyCreatedEvent(bookID, r))
	return r, nil
}

// Feed returns the annotation feed: one entry per annotation, plus one
// placeholder for each highlight that has no annotation.
func (s *AnnotationStore) Feed(ctx context.Context, bookID string) ([]domain.FeedEntry, error) {
	b, err := s.book(ctx, bookID)
	if err != nil {
		return nil, err
	}
	defer b.mu.Unlock()
	return domain.BuildFeed(b.highlights, b.annotations), nil
}

// Highlights returns a copy of the book's highlights in creation order.
func (s *AnnotationStore) Highlights(ctx context.Context, bookID string) ([]domain.Highlight, error) {
	b, err := s.book(ctx, bookID)
	if err != nil {
		return nil, err
	}
	defer b.mu.Unlock()
	return slices.Clone(b.highlights), nil
}

// Annotations returns a deep copy of the book's annotations.
func (s *AnnotationStore) Annotations(ctx context.Context, bookID string) ([]domain.Annotation, error) {
	b, err := s.book(ctx, bookID)
	if err != nil {
		return nil, err
	}
	defer b.mu.Unlock()
	out := make([]domain.Annotation, len(b.annotations))
	for i, a := range b.annotations {
		out[i] = a.Clone()
	}
	return out, nil
}

// HighlightByID looks up one highlight; ok is false when it does not exist.
func (s *AnnotationStore) HighlightByID(ctx context.Context, bookID, highlightID string) (domain.Highlight, bool, error) {
	b, err := s.book(ctx, bookID)
	if err != nil {
		return domain.Highlight{}, false, err
	}
	defer b.mu.Unlock()
	i := domain.IndexHighlight(b.highlights, highlightID)
	if i < 0 {
		return domain.Highlight{}, false, nil
	}
	return b.highlights[i], true, nil
}

// AnnotationsByHighlight returns the highlight's annotations in insertion
// order; ok is false when the highlight does not exist.
func (s *AnnotationStore) AnnotationsByHighlight(ctx context.Context, bookID, highlightID string) ([]domain.Annotation, bool, error) {
	b, err := s.book(ctx, bookID)
	if err != nil {
		return nil, false, err
	}
	defer b.mu.Unlock()
	if domain.IndexHighlight(b.highlights, highlightID) < 0 {
		return nil, false, nil
	}
	out := []domain.Annotation{}
	for _, a := range b.annotations {
		if a.HighlightID == highlightID {
			out = append(out, a.Clone())
		}
	}
	return out, true, nil
}

// Pending returns the ids of books with unwritten changes.
func (s *AnnotationStore) Pending() []string {
	s.mu.Lock()
	books := make([]*bookNotes, 0, len(s.books))
	for _, b := range s.books {
		books = append(books, b)
	}
	s.mu.Unlock()

	var ids []string
	for _, b := range books {
		b.mu.Lock()
		if b.dirty {
			ids = append(ids, b.bookID)
		}
		b.mu.Unlock()
	}
	slices.Sort(ids)
	return ids
}

// FlushPending rewrites every dirty book. It returns how many books were
// written and the first error encountered.
func (s *AnnotationStore) FlushPending(ctx context.Context) (int, error) {
	var flushed int
	var firstErr error
	for _, bookID := range s.Pending() {
		s.mu.Lock()
		b := s.books[bookID]
		s.mu.Unlock()

		b.mu.Lock()
		if !b.dirty {
			b.mu.Unlock()
			continue
		}
		err := s.store.SaveBook(ctx, b.bookID, b.highlights, b.annotations)
		if err == nil {
			b.dirty = false
			flushed++
		}
		b.mu.Unlock()

		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("flush %s: %w", bookID, err)
		}
	}
	return flushed, firstErr
}
