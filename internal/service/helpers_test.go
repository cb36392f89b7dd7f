package service

import (
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/folioapp/folio-server/internal/clock"
	"github.com/folioapp/folio-server/internal/id"
	"github.com/folioapp/folio-server/internal/sse"
	"github.com/folioapp/folio-server/internal/store"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// recordingEmitter captures emitted events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recordingEmitter) Emit(event any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := event.(sse.Event); ok {
		r.events = append(r.events, e)
	}
}

func (r *recordingEmitter) types() []sse.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sse.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recordingEmitter) last(t sse.EventType) (sse.Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			return r.events[i], true
		}
	}
	return sse.Event{}, false
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// setupBadgerStore opens a Badger-backed store in a temp directory.
func setupBadgerStore(t *testing.T) *store.Store {
	t.Helper()
	kv, err := store.OpenBadger(filepath.Join(t.TempDir(), "badger"), testLogger())
	require.NoError(t, err)
	s := store.New(kv, testLogger())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// setupMemoryStore returns a store whose KV can inject failures.
func setupMemoryStore(t *testing.T) (*store.Store, *store.MemoryKV) {
	t.Helper()
	kv := store.NewMemoryKV()
	s := store.New(kv, testLogger())
	t.Cleanup(func() { _ = s.Close() })
	return s, kv
}

func setupAnnotationStore(t *testing.T, s *store.Store) (*AnnotationStore, *recordingEmitter, *clock.Fake) {
	t.Helper()
	events := &recordingEmitter{}
	clk := clock.NewFake(testNow)
	notes := NewAnnotationStore(s, events, clk, testLogger())
	notes.SetIDGenerator(id.Sequence())
	return notes, events, clk
}

// fakeSurface records the commands sent to a reading surface.
type fakeSurface struct {
	mu          sync.Mutex
	jumps       []string
	decorations map[string]string // locationRef -> style tag
	callbacks   map[string]func()
	removed     []string
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		decorations: make(map[string]string),
		callbacks:   make(map[string]func()),
	}
}

func (f *fakeSurface) JumpTo(locationRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jumps = append(f.jumps, locationRef)
	return nil
}

func (f *fakeSurface) DecorateRange(locationRef, styleTag string, onActivate func()) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decorations[locationRef] = styleTag
	f.callbacks[locationRef] = onActivate
	return nil
}

func (f *fakeSurface) RemoveDecoration(locationRef string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.decorations, locationRef)
	delete(f.callbacks, locationRef)
	f.removed = append(f.removed, locationRef)
	return nil
}

func (f *fakeSurface) click(locationRef string) {
	f.mu.Lock()
	cb := f.callbacks[locationRef]
	f.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (f *fakeSurface) styleAt(locationRef string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tag, ok := f.decorations[locationRef]
	return tag, ok
}
