// Package sse streams reading-engine events to the presentation layer and
// carries reader commands to a browser-hosted reading surface.
package sse

import (
	"time"

	"github.com/folioapp/folio-server/internal/domain"
)

// EventType represents the type of SSE Event.
type EventType string

const (
	// EventHeartbeat represents a connection keepalive event.
	EventHeartbeat EventType = "heartbeat"

	EventHighlightCreated   EventType = "highlight.created"
	EventHighlightUpdated   EventType = "highlight.updated"
	EventHighlightDeleted   EventType = "highlight.deleted"
	EventHighlightActivated EventType = "highlight.activated"

	EventAnnotationCreated EventType = "annotation.created"
	EventAnnotationUpdated EventType = "annotation.updated"
	EventAnnotationDeleted EventType = "annotation.deleted"
	EventReplyCreated      EventType = "reply.created"

	// EventStudyStats carries the timer accessors after every tick and page.
	EventStudyStats EventType = "study.stats"
	// EventStudySessionClosed is sent when teardown writes a history entry.
	EventStudySessionClosed EventType = "study.session_closed"

	// Reading surface commands.
	EventReaderJumpTo           EventType = "reader.jump_to"
	EventReaderDecorateRange    EventType = "reader.decorate_range"
	EventReaderRemoveDecoration EventType = "reader.remove_decoration"
)

// Event represents an SSE event to be sent to clients.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
	Type      EventType `json:"type"`

	// BookID scopes the event. Clients subscribed to one book only receive
	// that book's events and unscoped ones.
	BookID string `json:"book_id,omitempty"`
}

// HeartbeatEventData is the data payload for heartbeat events.
type HeartbeatEventData struct {
	ServerTime time.Time `json:"server_time"`
}

// HighlightEventData is the payload for highlight create/update/activate.
type HighlightEventData struct {
	Highlight domain.Highlight `json:"highlight"`
}

// HighlightDeletedEventData is the payload for highlight deletion.
type HighlightDeletedEventData struct {
	HighlightID        string `json:"highlight_id"`
	AnnotationsRemoved int    `json:"annotations_removed"`
}

// AnnotationEventData is the payload for annotation create/update.
type AnnotationEventData struct {
	Annotation domain.Annotation `json:"annotation"`
}

// AnnotationDeletedEventData is the payload for annotation deletion.
type AnnotationDeletedEventData struct {
	AnnotationID string `json:"annotation_id"`
	HighlightID  string `json:"highlight_id"`
}

// ReplyEventData is the payload for reply creation.
type ReplyEventData struct {
	Reply domain.Reply `json:"reply"`
}

// StudySessionClosedEventData is the payload when a session enters history.
type StudySessionClosedEventData struct {
	Session domain.StudySession `json:"session"`
}

// JumpToEventData asks the surface to navigate.
type JumpToEventData struct {
	LocationRef string `json:"location_ref"`
}

// DecorateRangeEventData asks the surface to draw a highlight. The surface
// reports clicks back through the activation endpoint with DecorationID.
type DecorateRangeEventData struct {
	DecorationID string `json:"decoration_id"`
	LocationRef  string `json:"location_ref"`
	StyleTag     string `json:"style_tag"`
	ColorHex     string `json:"color_hex"`
}

// RemoveDecorationEventData asks the surface to erase a decoration.
type RemoveDecorationEventData struct {
	LocationRef string `json:"location_ref"`
}

func newEvent(t EventType, bookID string, data any) Event {
	return Event{Type: t, BookID: bookID, Data: data, Timestamp: time.Now()}
}

// NewHeartbeatEvent creates a heartbeat event.
func NewHeartbeatEvent() Event {
	return newEvent(EventHeartbeat, "", HeartbeatEventData{ServerTime: time.Now()})
}

// NewHighlightCreatedEvent creates a highlight.created event.
func NewHighlightCreatedEvent(h domain.Highlight) Event {
	return newEvent(EventHighlightCreated, h.BookID, HighlightEventData{Highlight: h})
}

// NewHighlightUpdatedEvent creates a highlight.updated event.
func NewHighlightUpdatedEvent(h domain.Highlight) Event {
	return newEvent(EventHighlightUpdated, h.BookID, HighlightEventData{Highlight: h})
}

// NewHighlightActivatedEvent is sent when the reader clicks a decoration.
func NewHighlightActivatedEvent(h domain.Highlight) Event {
	return newEvent(EventHighlightActivated, h.BookID, HighlightEventData{Highlight: h})
}

// NewHighlightDeletedEvent creates a highlight.deleted event.
func NewHighlightDeletedEvent(bookID, highlightID string, annotationsRemoved int) Event {
	return newEvent(EventHighlightDeleted, bookID, HighlightDeletedEventData{
		HighlightID:        highlightID,
		AnnotationsRemoved: annotationsRemoved,
	})
}

// NewAnnotationCreatedEvent creates an annotation.created event.
func NewAnnotationCreatedEvent(bookID string, a domain.Annotation) Event {
	return newEvent(EventAnnotationCreated, bookID, AnnotationEventData{Annotation: a})
}

// NewAnnotationUpdatedEvent creates an annotation.updated event.
func NewAnnotationUpdatedEvent(bookID string, a domain.Annotation) Event {
	return newEvent(EventAnnotationUpdated, bookID, AnnotationEventData{Annotation: a})
}

// NewAnnotationDeletedEvent creates an annotation.deleted event.
func NewAnnotationDeletedEvent(bookID, annotationID, highlightID string) Event {
	return newEvent(EventAnnotationDeleted, bookID, AnnotationDeletedEventData{
		AnnotationID: annotationID,
		HighlightID:  highlightID,
	})
}

// NewReplyCreatedEvent creates a reply.created event.
func NewReplyCreatedEvent(bookID string, r domain.Reply) Event {
	return newEvent(EventReplyCreated, bookID, ReplyEventData{Reply: r})
}

// NewStudyStatsEvent creates a study.stats event.
func NewStudyStatsEvent(s domain.StudySnapshot) Event {
	return newEvent(EventStudyStats, s.BookID, s)
}

// NewStudySessionClosedEvent creates a study.session_closed event.
func NewStudySessionClosedEvent(bookID string, s domain.StudySession) Event {
	return newEvent(EventStudySessionClosed, bookID, StudySessionClosedEventData{Session: s})
}

// NewJumpToEvent creates a reader.jump_to command.
func NewJumpToEvent(bookID, locationRef string) Event {
	return newEvent(EventReaderJumpTo, bookID, JumpToEventData{LocationRef: locationRef})
}

// NewDecorateRangeEvent creates a reader.decorate_range command.
func NewDecorateRangeEvent(bookID string, data DecorateRangeEventData) Event {
	return newEvent(EventReaderDecorateRange, bookID, data)
}

// NewRemoveDecorationEvent creates a reader.remove_decoration command.
func NewRemoveDecorationEvent(bookID, locationRef string) Event {
	return newEvent(EventReaderRemoveDecoration, bookID, RemoveDecorationEventData{LocationRef: locationRef})
}
