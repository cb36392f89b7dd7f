package sse

import (
	"fmt"
	"sync"

	"github.com/folioapp/folio-server/internal/domain"
	"github.com/folioapp/folio-server/internal/errors"
	"github.com/folioapp/folio-server/internal/id"
	"github.com/folioapp/folio-server/internal/store"
)

// SurfaceBridge drives a reading surface that lives in a browser. Commands
// go out as reader.* events on the book's stream; decoration clicks come
// back through Activate.
type SurfaceBridge struct {
	events store.EventEmitter

	mu          sync.Mutex
	callbacks   map[string]decoration // decoration id -> registration
	byLocation  map[string]string     // bookID|locationRef -> decoration id
	generateIDs id.Generator
}

type decoration struct {
	bookID      string
	locationRef string
	onActivate  func()
}

// NewSurfaceBridge creates a bridge emitting to events.
func NewSurfaceBridge(events store.EventEmitter) *SurfaceBridge {
	return &SurfaceBridge{
		events:      events,
		callbacks:   make(map[string]decoration),
		byLocation:  make(map[string]string),
		generateIDs: id.Generate,
	}
}

// ForBook returns the surface for bookID and forgets any decorations left
// over from a previous opening of that book.
func (b *SurfaceBridge) ForBook(bookID string) *BookSurface {
	b.mu.Lock()
	defer b.mu.Unlock()
	for decoID, d := range b.callbacks {
		if d.bookID == bookID {
			delete(b.callbacks, decoID)
			delete(b.byLocation, locationKey(bookID, d.locationRef))
		}
	}
	return &BookSurface{bridge: b, bookID: bookID}
}

// Activate runs the callback registered for a decoration.
func (b *SurfaceBridge) Activate(decorationID string) error {
	b.mu.Lock()
	d, ok := b.callbacks[decorationID]
	b.mu.Unlock()
	if !ok {
		return errors.NotFoundf("decoration %s not found", decorationID)
	}
	d.onActivate()
	return nil
}

// Decorations returns the number of live decorations for bookID.
func (b *SurfaceBridge) Decorations(bookID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, d := range b.callbacks {
		if d.bookID == bookID {
			n++
		}
	}
	return n
}

func locationKey(bookID, locationRef string) string {
	return bookID + "|" + locationRef
}

// BookSurface is the per-book view of a SurfaceBridge.
type BookSurface struct {
	bridge *SurfaceBridge
	bookID string
}

// JumpTo asks the surface to navigate to locationRef.
func (s *BookSurface) JumpTo(locationRef string) error {
	s.bridge.events.Emit(NewJumpToEvent(s.bookID, locationRef))
	return nil
}

// DecorateRange draws a decoration and registers onActivate for clicks on it.
// Decorating the same location again replaces the earlier registration.
func (s *BookSurface) DecorateRange(locationRef, styleTag string, onActivate func()) error {
	decoID, err := s.bridge.generateIDs(id.PrefixDecoration)
	if err != nil {
		return fmt.Errorf("decoration id: %w", err)
	}

	b := s.bridge
	key := locationKey(s.bookID, locationRef)

	b.mu.Lock()
	if old, ok := b.byLocation[key]; ok {
		delete(b.callbacks, old)
	}
	b.byLocation[key] = decoID
	b.callbacks[decoID] = decoration{bookID: s.bookID, locationRef: locationRef, onActivate: onActivate}
	b.mu.Unlock()

	b.events.Emit(NewDecorateRangeEvent(s.bookID, DecorateRangeEventData{
		DecorationID: decoID,
		LocationRef:  locationRef,
		StyleTag:     styleTag,
		ColorHex:     colorFromStyleTag(styleTag),
	}))
	return nil
}

// RemoveDecoration erases the decoration at locationRef.
func (s *BookSurface) RemoveDecoration(locationRef string) error {
	b := s.bridge
	key := locationKey(s.bookID, locationRef)

	b.mu.Lock()
	if decoID, ok := b.byLocation[key]; ok {
		delete(b.callbacks, decoID)
		delete(b.byLocation, key)
	}
	b.mu.Unlock()

	b.events.Emit(NewRemoveDecorationEvent(s.bookID, locationRef))
	return nil
}

func colorFromStyleTag(tag string) string {
	for _, c := range domain.Colors() {
		if c.StyleTag() == tag {
			return c.Hex()
		}
	}
	return domain.DefaultColor.Hex()
}
