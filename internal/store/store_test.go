package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folioapp/folio-server/internal/domain"
)

// setupTestStore creates a Badger-backed store in a temp directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()
	kv, err := OpenBadger(filepath.Join(t.TempDir(), "badger"), nil)
	require.NoError(t, err)
	s := New(kv, nil)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleBook() ([]domain.Highlight, []domain.Annotation) {
	ts := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
	highlights := []domain.Highlight{
		{ID: "hl-1", BookID: "moby", LocationRef: "epubcfi(/6/4!/4/2,/1:0,/1:12)", Text: "Call me Ishmael", Color: domain.ColorYellow, CreatedAt: ts, UpdatedAt: ts},
		{ID: "hl-2", BookID: "moby", LocationRef: "epubcfi(/6/8!/4/2,/1:0,/1:9)", Text: "the whale", Color: domain.ColorBlue, CreatedAt: ts, UpdatedAt: ts.Add(time.Second)},
	}
	annotations := []domain.Annotation{
		{
			ID: "ann-1", HighlightID: "hl-1", UserID: "local", UserName: "Reader", Content: "nice point",
			CreatedAt: ts, UpdatedAt: ts,
			Replies: []domain.Reply{
				{ID: "reply-1", AnnotationID: "ann-1", UserID: "local", UserName: "Reader", Content: "agreed", CreatedAt: ts},
				{ID: "reply-2", AnnotationID: "ann-1", UserID: "local", UserName: "Reader", Content: "still agreed", CreatedAt: ts.Add(time.Minute)},
			},
		},
		{ID: "ann-2", HighlightID: "hl-2", UserID: "local", UserName: "Reader", Content: "", CreatedAt: ts, UpdatedAt: ts, Replies: []domain.Reply{}},
	}
	return highlights, annotations
}

func TestStore_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	highlights, annotations := sampleBook()

	require.NoError(t, s.SaveHighlights(ctx, "moby", highlights))
	require.NoError(t, s.SaveAnnotations(ctx, "moby", annotations))

	gotHL, err := s.LoadHighlights(ctx, "moby")
	require.NoError(t, err)
	gotAnn, err := s.LoadAnnotations(ctx, "moby")
	require.NoError(t, err)

	assert.Equal(t, highlights, gotHL)
	assert.Equal(t, annotations, gotAnn)
}

func TestStore_LoadMissingIsEmpty(t *testing.T) {
	s := setupTestStore(t)

	hl, err := s.LoadHighlights(context.Background(), "unknown")
	require.NoError(t, err)
	assert.NotNil(t, hl)
	assert.Empty(t, hl)

	stats, err := s.LoadStudyStats(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestStore_CorruptBlobIsNoPriorData(t *testing.T) {
	kv := NewMemoryKV()
	kv.Put(HighlightsKey("moby"), []byte(`[{"id":"hl-1"}, not json`))
	kv.Put(StudyStatsKey, []byte(`{{{`))
	s := New(kv, nil)

	hl, err := s.LoadHighlights(context.Background(), "moby")
	require.NoError(t, err)
	assert.Empty(t, hl)

	data, err := s.LoadStudyData(context.Background(), "moby")
	require.NoError(t, err)
	assert.Empty(t, data.Sessions)
	assert.Nil(t, data.CurrentSession)
}

func TestStore_ReadFailureIsReported(t *testing.T) {
	kv := NewMemoryKV()
	s := New(kv, nil)
	require.NoError(t, kv.Close())

	_, err := s.LoadAnnotations(context.Background(), "moby")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestStore_SaveBookIsAtomic(t *testing.T) {
	kv := NewMemoryKV()
	s := New(kv, nil)
	ctx := context.Background()
	highlights, annotations := sampleBook()
	require.NoError(t, s.SaveBook(ctx, "moby", highlights, annotations))

	kv.FailWrites(AnnotationsKey("moby"), errors.New("quota exceeded"))
	err := s.SaveBook(ctx, "moby", highlights[1:], annotations[1:])
	require.Error(t, err)

	// Neither key changed.
	gotHL, _ := s.LoadHighlights(ctx, "moby")
	gotAnn, _ := s.LoadAnnotations(ctx, "moby")
	assert.Len(t, gotHL, 2)
	assert.Len(t, gotAnn, 2)
}

func TestStore_UpdateStudyData(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	got, err := s.UpdateStudyData(ctx, "moby", func(d *domain.StudyData) {
		d.CurrentSession = &domain.CurrentSession{StartTime: start, Duration: 12, PagesRead: 1, LastActiveTime: start}
	})
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.CurrentSession.Duration)

	_, err = s.UpdateStudyData(ctx, "dune", func(d *domain.StudyData) {
		d.Sessions = append(d.Sessions, domain.StudySession{Date: "2026-03-13", Duration: 60, Pages: 4})
	})
	require.NoError(t, err)

	stats, err := s.LoadStudyStats(ctx)
	require.NoError(t, err)
	require.Contains(t, stats, "moby")
	require.Contains(t, stats, "dune")
	assert.Equal(t, int64(12), stats["moby"].CurrentSession.Duration)
	assert.Equal(t, []domain.StudySession{{Date: "2026-03-13", Duration: 60, Pages: 4}}, stats["dune"].Sessions)
}

func TestStore_UpdateStudyDataAbortsOnReadFailure(t *testing.T) {
	kv := NewMemoryKV()
	s := New(kv, nil)
	require.NoError(t, kv.Close())

	called := false
	_, err := s.UpdateStudyData(context.Background(), "moby", func(*domain.StudyData) { called = true })

	assert.Error(t, err)
	assert.False(t, called)
}

func TestStore_ConcurrentStudyUpdatesDoNotLoseBooks(t *testing.T) {
	s := New(NewMemoryKV(), nil)
	ctx := context.Background()
	books := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	errs := make(chan error, len(books))
	for _, b := range books {
		go func() {
			_, err := s.UpdateStudyData(ctx, b, func(d *domain.StudyData) {
				d.Sessions = append(d.Sessions, domain.StudySession{Date: "2026-03-14", Duration: 1})
			})
			errs <- err
		}()
	}
	for range books {
		require.NoError(t, <-errs)
	}

	stats, err := s.LoadStudyStats(ctx)
	require.NoError(t, err)
	assert.Len(t, stats, len(books))
}

func TestStore_BookIDs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveHighlights(ctx, "moby", nil))
	require.NoError(t, s.SaveAnnotations(ctx, "dune", nil))
	require.NoError(t, s.SaveBook(ctx, "moby", nil, nil))

	ids, err := s.BookIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"dune", "moby"}, ids)
}

func TestStore_NilListsPersistAsEmptyArrays(t *testing.T) {
	kv := NewMemoryKV()
	s := New(kv, nil)
	require.NoError(t, s.SaveHighlights(context.Background(), "moby", nil))

	raw, err := kv.Get(context.Background(), HighlightsKey("moby"))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(raw))
}
