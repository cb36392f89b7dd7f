package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/folioapp/folio-server/internal/domain"
)

// EventEmitter is the interface for emitting SSE events.
// Services use this to broadcast changes without depending on SSE implementation details.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter is a no-op implementation of EventEmitter for testing.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ any) {}

// NewNoopEmitter creates a new no-op emitter for testing.
func NewNoopEmitter() EventEmitter {
	return NoopEmitter{}
}

// Store reads and writes the reading engine's collections as JSON blobs
// over a KV. Writes for a book go through that book's queue lane; study
// stats share one lane because they share one key.
type Store struct {
	kv     KV
	queue  *WriteQueue
	logger *slog.Logger
}

// New wraps kv. A nil logger discards.
func New(kv KV, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{kv: kv, queue: NewWriteQueue(), logger: logger}
}

// KV returns the underlying adapter.
func (s *Store) KV() KV { return s.kv }

// Close drains queued writes and closes the backend.
func (s *Store) Close() error {
	s.queue.Close()
	return s.kv.Close()
}

// LoadHighlights returns the book's highlights in stored order. A missing or
// unparseable blob yields an empty list.
func (s *Store) LoadHighlights(ctx context.Context, bookID string) ([]domain.Highlight, error) {
	out, err := load[[]domain.Highlight](ctx, s, HighlightsKey(bookID))
	if out == nil {
		out = []domain.Highlight{}
	}
	return out, err
}

// LoadAnnotations returns the book's annotations with nested replies.
func (s *Store) LoadAnnotations(ctx context.Context, bookID string) ([]domain.Annotation, error) {
	out, err := load[[]domain.Annotation](ctx, s, AnnotationsKey(bookID))
	if out == nil {
		out = []domain.Annotation{}
	}
	for i := range out {
		if out[i].Replies == nil {
			out[i].Replies = []domain.Reply{}
		}
	}
	return out, err
}

// SaveHighlights replaces the book's highlight list.
func (s *Store) SaveHighlights(ctx context.Context, bookID string, highlights []domain.Highlight) error {
	data, err := marshalList(highlights)
	if err != nil {
		return fmt.Errorf("marshal highlights: %w", err)
	}
	return s.queue.Do(ctx, bookID, func(ctx context.Context) error {
		return s.kv.Set(ctx, HighlightsKey(bookID), data)
	})
}

// SaveAnnotations replaces the book's annotation list.
func (s *Store) SaveAnnotations(ctx context.Context, bookID string, annotations []domain.Annotation) error {
	data, err := marshalList(annotations)
	if err != nil {
		return fmt.Errorf("marshal annotations: %w", err)
	}
	return s.queue.Do(ctx, bookID, func(ctx context.Context) error {
		return s.kv.Set(ctx, AnnotationsKey(bookID), data)
	})
}

// SaveBook writes both collections in one atomic batch. Cascading deletes
// use this so no annotation can outlive its highlight on disk.
func (s *Store) SaveBook(ctx context.Context, bookID string, highlights []domain.Highlight, annotations []domain.Annotation) error {
	hl, err := marshalList(highlights)
	if err != nil {
		return fmt.Errorf("marshal highlights: %w", err)
	}
	ann, err := marshalList(annotations)
	if err != nil {
		return fmt.Errorf("marshal annotations: %w", err)
	}
	return s.queue.Do(ctx, bookID, func(ctx context.Context) error {
		return s.kv.SetBatch(ctx, map[string][]byte{
			HighlightsKey(bookID):  hl,
			AnnotationsKey(bookID): ann,
		})
	})
}

// LoadStudyStats returns study data for every book.
func (s *Store) LoadStudyStats(ctx context.Context) (domain.StudyStats, error) {
	stats, err := load[domain.StudyStats](ctx, s, StudyStatsKey)
	if stats == nil {
		stats = domain.StudyStats{}
	}
	return stats, err
}

// LoadStudyData returns the study data for one book, empty if none.
func (s *Store) LoadStudyData(ctx context.Context, bookID string) (*domain.StudyData, error) {
	stats, err := s.LoadStudyStats(ctx)
	if err != nil {
		return domain.StudyStats{}.Book(bookID), err
	}
	return stats.Book(bookID), nil
}

// UpdateStudyData applies fn to one book's study data and writes the whole
// stats blob back. The read-modify-write runs inside the stats lane so
// concurrent updates for different books cannot lose each other. A read
// failure aborts without writing; a corrupt blob is replaced.
func (s *Store) UpdateStudyData(ctx context.Context, bookID string, fn func(*domain.StudyData)) (*domain.StudyData, error) {
	var result *domain.StudyData
	err := s.queue.Do(ctx, StudyStatsKey, func(ctx context.Context) error {
		stats, err := s.LoadStudyStats(ctx)
		if err != nil {
			return err
		}
		data := stats.Book(bookID)
		fn(data)

		raw, err := json.Marshal(stats)
		if err != nil {
			return fmt.Errorf("marshal study stats: %w", err)
		}
		if err := s.kv.Set(ctx, StudyStatsKey, raw); err != nil {
			return err
		}
		result = cloneStudyData(data)
		return nil
	})
	return result, err
}

// BookIDs lists every book with persisted highlights or annotations.
func (s *Store) BookIDs(ctx context.Context) ([]string, error) {
	seen := map[string]bool{}
	for _, prefix := range []string{highlightsPrefix, annotationsPrefix} {
		keys, err := s.kv.Keys(ctx, prefix)
		if err != nil {
			return nil, err
		}
		for _, k := range keys {
			if id, ok := BookIDFromKey(k); ok {
				seen[id] = true
			}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// load decodes key. Missing keys and corrupt blobs yield the zero value
// and no error; only backend failures are errors.
func load[T any](ctx context.Context, s *Store, key string) (T, error) {
	var zero T
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return zero, nil
	}
	if err != nil {
		return zero, fmt.Errorf("read %s: %w", key, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		s.logger.Warn("discarding unparseable blob",
			slog.String("key", key),
			slog.String("error", err.Error()))
		return zero, nil
	}
	return out, nil
}

func marshalList[T any](items []T) ([]byte, error) {
	if items == nil {
		items = []T{}
	}
	return json.Marshal(items)
}

func cloneStudyData(d *domain.StudyData) *domain.StudyData {
	out := &domain.StudyData{Sessions: slices.Clone(d.Sessions)}
	if out.Sessions == nil {
		out.Sessions = []domain.StudySession{}
	}
	if d.CurrentSession != nil {
		cur := *d.CurrentSession
		out.CurrentSession = &cur
	}
	return out
}
