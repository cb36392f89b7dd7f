package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/folioapp/folio-server/internal/domain"
	domainerrors "github.com/folioapp/folio-server/internal/errors"
	"github.com/folioapp/folio-server/internal/normalize"
	"github.com/folioapp/folio-server/internal/util"
)

func (s *Server) registerHighlightRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listHighlights",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{bookID}/highlights",
		Summary:     "List highlights",
		Description: "Returns the book's highlights in creation order",
		Tags:        []string{"Highlights"},
	}, s.handleListHighlights)

	huma.Register(s.api, huma.Operation{
		OperationID: "createHighlight",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{bookID}/highlights",
		Summary:     "Create highlight",
		Description: "Creates a highlight over a text range",
		Tags:        []string{"Highlights"},
	}, s.handleCreateHighlight)

	huma.Register(s.api, huma.Operation{
		OperationID: "highlightSelection",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{bookID}/highlights/from-selection",
		Summary:     "Highlight selection",
		Description: "Creates a highlight from the reader's current selection",
		Tags:        []string{"Highlights"},
	}, s.handleHighlightSelection)

	huma.Register(s.api, huma.Operation{
		OperationID: "getHighlight",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{bookID}/highlights/{highlightID}",
		Summary:     "Get highlight",
		Description: "Returns a highlight by ID",
		Tags:        []string{"Highlights"},
	}, s.handleGetHighlight)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateHighlight",
		Method:      http.MethodPatch,
		Path:        "/api/v1/books/{bookID}/highlights/{highlightID}",
		Summary:     "Update highlight",
		Description: "Changes a highlight's color. An unknown ID is a no-op reported as found=false",
		Tags:        []string{"Highlights"},
	}, s.handleUpdateHighlight)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteHighlight",
		Method:      http.MethodDelete,
		Path:        "/api/v1/books/{bookID}/highlights/{highlightID}",
		Summary:     "Delete highlight",
		Description: "Deletes a highlight together with its annotations",
		Tags:        []string{"Highlights"},
	}, s.handleDeleteHighlight)

	huma.Register(s.api, huma.Operation{
		OperationID: "jumpToHighlight",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{bookID}/highlights/{highlightID}/jump",
		Summary:     "Jump to highlight",
		Description: "Navigates the reading surface to the highlight",
		Tags:        []string{"Highlights"},
	}, s.handleJumpToHighlight)

	huma.Register(s.api, huma.Operation{
		OperationID: "getFeed",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{bookID}/feed",
		Summary:     "Get annotation feed",
		Description: "Returns one entry per annotation, with a placeholder for each highlight that has none",
		Tags:        []string{"Highlights"},
	}, s.handleGetFeed)
}

// === DTOs ===

// HighlightResponse contains highlight data in API responses.
type HighlightResponse struct {
	ID          string    `json:"id" doc:"Highlight ID"`
	BookID      string    `json:"book_id" doc:"Book ID"`
	LocationRef string    `json:"location_ref" doc:"Position of the highlighted range"`
	Text        string    `json:"text" doc:"Highlighted text"`
	Color       string    `json:"color" doc:"Palette color name"`
	ColorHex    string    `json:"color_hex" doc:"Display color"`
	CreatedAt   time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt   time.Time `json:"updated_at" doc:"Last update time"`
}

// ListHighlightsResponse contains a list of highlights.
type ListHighlightsResponse struct {
	Highlights []HighlightResponse `json:"highlights" doc:"Highlights in creation order"`
}

// ListHighlightsOutput wraps the list highlights response for Huma.
type ListHighlightsOutput struct {
	Body ListHighlightsResponse
}

// HighlightOutput wraps the highlight response for Huma.
type HighlightOutput struct {
	Body HighlightResponse
}

// UpdateHighlightResponse reports a recolor. Recoloring a highlight that
// does not exist changes nothing and is not an error.
type UpdateHighlightResponse struct {
	Found     bool               `json:"found" doc:"False when no highlight has this ID"`
	Highlight *HighlightResponse `json:"highlight,omitempty" doc:"The updated highlight"`
}

// UpdateHighlightOutput wraps the update highlight response for Huma.
type UpdateHighlightOutput struct {
	Body UpdateHighlightResponse
}

// CreateHighlightRequest is the request body for creating a highlight.
type CreateHighlightRequest struct {
	Text        string `json:"text" validate:"required,max=20000" doc:"Highlighted text, plain or HTML"`
	LocationRef string `json:"location_ref" validate:"location_ref,max=2048" doc:"Position of the range"`
	Color       string `json:"color,omitempty" validate:"omitempty,highlight_color" doc:"Palette color, defaults to yellow"`
}

// CreateHighlightInput wraps the create highlight request for Huma.
type CreateHighlightInput struct {
	BookID string `path:"bookID" doc:"Book ID"`
	Body   CreateHighlightRequest
}

// HighlightSelectionRequest is the request body for highlighting the selection.
type HighlightSelectionRequest struct {
	Color string `json:"color,omitempty" validate:"omitempty,highlight_color" doc:"Palette color, defaults to yellow"`
}

// HighlightSelectionInput wraps the highlight selection request for Huma.
type HighlightSelectionInput struct {
	BookID string `path:"bookID" doc:"Book ID"`
	Body   *HighlightSelectionRequest `required:"false"`
}

// HighlightPathInput identifies a highlight.
type HighlightPathInput struct {
	BookID      string `path:"bookID" doc:"Book ID"`
	HighlightID string `path:"highlightID" doc:"Highlight ID"`
}

// UpdateHighlightRequest is the request body for updating a highlight.
type UpdateHighlightRequest struct {
	Color string `json:"color" validate:"required,highlight_color" doc:"Palette color"`
}

// UpdateHighlightInput wraps the update highlight request for Huma.
type UpdateHighlightInput struct {
	BookID      string `path:"bookID" doc:"Book ID"`
	HighlightID string `path:"highlightID" doc:"Highlight ID"`
	Body        UpdateHighlightRequest
}

// FeedEntryResponse is one row of the annotation feed.
type FeedEntryResponse struct {
	ID          string              `json:"id" doc:"Annotation ID, or placeholder_<highlight id>"`
	Kind        string              `json:"kind" doc:"annotation or placeholder"`
	Highlight   HighlightResponse   `json:"highlight" doc:"The highlight this entry belongs to"`
	Annotation  *AnnotationResponse `json:"annotation,omitempty" doc:"The annotation, absent for placeholders"`
	CreatedText string              `json:"created_text" doc:"Relative creation time for display"`
}

// FeedResponse contains the annotation feed.
type FeedResponse struct {
	Entries []FeedEntryResponse `json:"entries" doc:"Feed entries in highlight order"`
}

// FeedOutput wraps the feed response for Huma.
type FeedOutput struct {
	Body FeedResponse
}

// === Handlers ===

func (s *Server) handleListHighlights(ctx context.Context, input *BookPathInput) (*ListHighlightsOutput, error) {
	highlights, err := s.services.Notes.Highlights(ctx, input.BookID)
	if err != nil {
		return nil, err
	}

	resp := make([]HighlightResponse, len(highlights))
	for i, h := range highlights {
		resp[i] = toHighlightResponse(h)
	}
	return &ListHighlightsOutput{Body: ListHighlightsResponse{Highlights: resp}}, nil
}

func (s *Server) handleCreateHighlight(ctx context.Context, input *CreateHighlightInput) (*HighlightOutput, error) {
	if err := s.validate(input.Body); err != nil {
		return nil, err
	}

	if normalize.Paragraphs(input.Body.Text) == "" {
		return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"text": "must not be blank"})
	}

	h, err := s.services.Reader.AddHighlight(ctx, input.BookID, input.Body.Text, input.Body.LocationRef, domain.HighlightColor(input.Body.Color))
	if err != nil {
		return nil, err
	}
	return &HighlightOutput{Body: toHighlightResponse(h)}, nil
}

func (s *Server) handleHighlightSelection(ctx context.Context, input *HighlightSelectionInput) (*HighlightOutput, error) {
	var color domain.HighlightColor
	if input.Body != nil {
		if err := s.validate(input.Body); err != nil {
			return nil, err
		}
		color = domain.HighlightColor(input.Body.Color)
	}

	h, err := s.services.Reader.HighlightSelection(ctx, input.BookID, color)
	if err != nil {
		return nil, err
	}
	return &HighlightOutput{Body: toHighlightResponse(h)}, nil
}

func (s *Server) handleGetHighlight(ctx context.Context, input *HighlightPathInput) (*HighlightOutput, error) {
	h, ok, err := s.services.Notes.HighlightByID(ctx, input.BookID, input.HighlightID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, highlightNotFound(input.HighlightID)
	}
	return &HighlightOutput{Body: toHighlightResponse(h)}, nil
}

func (s *Server) handleUpdateHighlight(ctx context.Context, input *UpdateHighlightInput) (*UpdateHighlightOutput, error) {
	if err := s.validate(input.Body); err != nil {
		return nil, err
	}

	h, ok, err := s.services.Reader.UpdateHighlightColor(ctx, input.BookID, input.HighlightID, domain.HighlightColor(input.Body.Color))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &UpdateHighlightOutput{Body: UpdateHighlightResponse{Found: false}}, nil
	}
	resp := toHighlightResponse(h)
	return &UpdateHighlightOutput{Body: UpdateHighlightResponse{Found: true, Highlight: &resp}}, nil
}

func (s *Server) handleDeleteHighlight(ctx context.Context, input *HighlightPathInput) (*MessageOutput, error) {
	ok, err := s.services.Reader.DeleteHighlight(ctx, input.BookID, input.HighlightID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return message("Highlight already deleted"), nil
	}
	return message("Highlight deleted"), nil
}

func (s *Server) handleJumpToHighlight(ctx context.Context, input *HighlightPathInput) (*MessageOutput, error) {
	if err := s.services.Reader.JumpTo(ctx, input.BookID, input.HighlightID); err != nil {
		return nil, err
	}
	return message("Jump requested"), nil
}

func (s *Server) handleGetFeed(ctx context.Context, input *BookPathInput) (*FeedOutput, error) {
	feed, err := s.services.Notes.Feed(ctx, input.BookID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	entries := make([]FeedEntryResponse, len(feed))
	for i, e := range feed {
		entry := FeedEntryResponse{
			ID:          e.ID(),
			Kind:        string(e.Kind),
			Highlight:   toHighlightResponse(e.Highlight),
			CreatedText: util.FormatRelative(e.Highlight.CreatedAt, now),
		}
		if e.Annotation != nil {
			a := toAnnotationResponse(*e.Annotation)
			entry.Annotation = &a
			entry.CreatedText = util.FormatRelative(e.Annotation.CreatedAt, now)
		}
		entries[i] = entry
	}
	return &FeedOutput{Body: FeedResponse{Entries: entries}}, nil
}

func toHighlightResponse(h domain.Highlight) HighlightResponse {
	return HighlightResponse{
		ID:          h.ID,
		BookID:      h.BookID,
		LocationRef: h.LocationRef,
		Text:        h.Text,
		Color:       string(h.Color),
		ColorHex:    h.Color.Hex(),
		CreatedAt:   h.CreatedAt,
		UpdatedAt:   h.UpdatedAt,
	}
}
