package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/folioapp/folio-server/internal/domain"
	"github.com/folioapp/folio-server/internal/normalize"
	"github.com/folioapp/folio-server/internal/util"
)

func (s *Server) registerReaderRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "openBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{bookID}/open",
		Summary:     "Open book",
		Description: "Opens a book in the reader, starting or resuming its study session. Any other open book is closed first.",
		Tags:        []string{"Reader"},
	}, s.handleOpenBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "closeBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{bookID}/close",
		Summary:     "Close book",
		Description: "Closes the book and moves the current session into history",
		Tags:        []string{"Reader"},
	}, s.handleCloseBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "reportLocation",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{bookID}/location",
		Summary:     "Report location",
		Description: "Records the reader's position. A change of position counts as a page read.",
		Tags:        []string{"Reader"},
	}, s.handleReportLocation)

	huma.Register(s.api, huma.Operation{
		OperationID: "reportSelection",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{bookID}/selection",
		Summary:     "Report selection",
		Description: "Records the current text selection, normalized to plain text",
		Tags:        []string{"Reader"},
	}, s.handleReportSelection)

	huma.Register(s.api, huma.Operation{
		OperationID: "setFocus",
		Method:      http.MethodPut,
		Path:        "/api/v1/books/{bookID}/focus",
		Summary:     "Set focus",
		Description: "Pauses or resumes the session timer when the reader loses or regains focus",
		Tags:        []string{"Reader"},
	}, s.handleSetFocus)

	huma.Register(s.api, huma.Operation{
		OperationID: "incrementPages",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{bookID}/pages",
		Summary:     "Count page",
		Description: "Adds one page to the current session",
		Tags:        []string{"Reader"},
	}, s.handleIncrementPages)

	huma.Register(s.api, huma.Operation{
		OperationID: "getStudyStats",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{bookID}/study",
		Summary:     "Get study stats",
		Description: "Returns current session, today and trailing-week reading time for a book",
		Tags:        []string{"Reader"},
	}, s.handleGetStudyStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "activateDecoration",
		Method:      http.MethodPost,
		Path:        "/api/v1/reader/decorations/{decorationID}/activate",
		Summary:     "Activate decoration",
		Description: "Reports a click on a highlight decoration drawn by the reading surface",
		Tags:        []string{"Reader"},
	}, s.handleActivateDecoration)
}

// === DTOs ===

// BookPathInput identifies a book.
type BookPathInput struct {
	BookID string `path:"bookID" doc:"Book ID"`
}

// StudyStatsResponse contains reading time for one book.
type StudyStatsResponse struct {
	BookID              string `json:"book_id" doc:"Book ID"`
	Open                bool   `json:"open" doc:"Whether the book is open in the reader"`
	Focused             bool   `json:"focused" doc:"Whether the session timer is running"`
	CurrentSessionTime  int64  `json:"current_session_time" doc:"Seconds read in the current session"`
	CurrentSessionPages int    `json:"current_session_pages" doc:"Pages read in the current session"`
	TodayTotal          int64  `json:"today_total" doc:"Seconds read today, including the current session"`
	WeekTotal           int64  `json:"week_total" doc:"Seconds read in the trailing seven days"`
	CurrentSessionText  string `json:"current_session_text" doc:"Current session time for display"`
	TodayText           string `json:"today_text" doc:"Today's total for display"`
	WeekText            string `json:"week_text" doc:"Week total for display"`
}

// StudyStatsOutput wraps the study stats response for Huma.
type StudyStatsOutput struct {
	Body StudyStatsResponse
}

// StudySessionResponse is one closed session.
type StudySessionResponse struct {
	Date     string `json:"date" doc:"Calendar day (YYYY-MM-DD)"`
	Duration int64  `json:"duration" doc:"Seconds read"`
	Pages    int    `json:"pages" doc:"Pages read"`
}

// CloseBookResponse reports the session written to history, if any.
type CloseBookResponse struct {
	Recorded bool                  `json:"recorded" doc:"Whether a history entry was written"`
	Session  *StudySessionResponse `json:"session,omitempty" doc:"The closed session"`
}

// CloseBookOutput wraps the close book response for Huma.
type CloseBookOutput struct {
	Body CloseBookResponse
}

// LocationRequest is the request body for reporting a location.
type LocationRequest struct {
	LocationRef string `json:"location_ref" validate:"location_ref,max=2048" doc:"Opaque position token"`
}

// LocationInput wraps the location request for Huma.
type LocationInput struct {
	BookID string `path:"bookID" doc:"Book ID"`
	Body   LocationRequest
}

// BoundsRequest is the on-screen rectangle of a selection.
type BoundsRequest struct {
	X      float64 `json:"x" doc:"Left offset"`
	Y      float64 `json:"y" doc:"Top offset"`
	Width  float64 `json:"width" validate:"gte=0" doc:"Width"`
	Height float64 `json:"height" validate:"gte=0" doc:"Height"`
}

// SelectionRequest is the request body for reporting a selection.
type SelectionRequest struct {
	Text        string        `json:"text" validate:"max=20000" doc:"Selected text"`
	Format      string        `json:"format,omitempty" validate:"omitempty,oneof=text html" doc:"Encoding of text: text (default) or html"`
	LocationRef string        `json:"location_ref" validate:"location_ref,max=2048" doc:"Position of the selection"`
	Bounds      BoundsRequest `json:"bounds" doc:"On-screen bounds of the selection"`
}

// SelectionInput wraps the selection request for Huma.
type SelectionInput struct {
	BookID string `path:"bookID" doc:"Book ID"`
	Body   SelectionRequest
}

// SelectionResponse is the normalized selection.
type SelectionResponse struct {
	Text        string        `json:"text" doc:"Normalized selected text"`
	LocationRef string        `json:"location_ref" doc:"Position of the selection"`
	Bounds      BoundsRequest `json:"bounds" doc:"On-screen bounds"`
	Empty       bool          `json:"empty" doc:"True when nothing usable was selected"`
}

// SelectionOutput wraps the selection response for Huma.
type SelectionOutput struct {
	Body SelectionResponse
}

// FocusRequest is the request body for focus changes.
type FocusRequest struct {
	Focused bool `json:"focused" doc:"Whether the reader has focus"`
}

// FocusInput wraps the focus request for Huma.
type FocusInput struct {
	BookID string `path:"bookID" doc:"Book ID"`
	Body   FocusRequest
}

// ActivateDecorationInput identifies a decoration.
type ActivateDecorationInput struct {
	DecorationID string `path:"decorationID" doc:"Decoration ID from a decorate_range event"`
}

// === Handlers ===

func (s *Server) handleOpenBook(ctx context.Context, input *BookPathInput) (*StudyStatsOutput, error) {
	snap, err := s.services.Reader.Open(ctx, input.BookID)
	if err != nil {
		return nil, err
	}
	return &StudyStatsOutput{Body: toStudyStatsResponse(snap)}, nil
}

func (s *Server) handleCloseBook(ctx context.Context, input *BookPathInput) (*CloseBookOutput, error) {
	closed, ok, err := s.services.Reader.Close(ctx, input.BookID)
	if err != nil {
		return nil, err
	}

	resp := CloseBookResponse{Recorded: ok}
	if ok {
		resp.Session = &StudySessionResponse{
			Date:     closed.Date,
			Duration: closed.Duration,
			Pages:    closed.Pages,
		}
	}
	return &CloseBookOutput{Body: resp}, nil
}

func (s *Server) handleReportLocation(ctx context.Context, input *LocationInput) (*MessageOutput, error) {
	if err := s.validate(input.Body); err != nil {
		return nil, err
	}
	if err := s.services.Reader.LocationChanged(ctx, input.BookID, input.Body.LocationRef); err != nil {
		return nil, err
	}
	return message("Location recorded"), nil
}

func (s *Server) handleReportSelection(ctx context.Context, input *SelectionInput) (*SelectionOutput, error) {
	if err := s.validate(input.Body); err != nil {
		return nil, err
	}

	b := input.Body.Bounds
	sel, err := s.services.Reader.TextSelected(ctx, input.BookID, input.Body.Text, normalize.Format(input.Body.Format), input.Body.LocationRef, domain.Bounds{
		X: b.X, Y: b.Y, Width: b.Width, Height: b.Height,
	})
	if err != nil {
		return nil, err
	}

	return &SelectionOutput{
		Body: SelectionResponse{
			Text:        sel.Text,
			LocationRef: sel.LocationRef,
			Bounds:      BoundsRequest(sel.Bounds),
			Empty:       sel.Empty(),
		},
	}, nil
}

func (s *Server) handleSetFocus(ctx context.Context, input *FocusInput) (*StudyStatsOutput, error) {
	if err := s.services.Reader.SetFocus(ctx, input.BookID, input.Body.Focused); err != nil {
		return nil, err
	}
	snap, err := s.services.Reader.Stats(ctx, input.BookID)
	if err != nil {
		return nil, err
	}
	return &StudyStatsOutput{Body: toStudyStatsResponse(snap)}, nil
}

func (s *Server) handleIncrementPages(ctx context.Context, input *BookPathInput) (*StudyStatsOutput, error) {
	snap, err := s.services.Reader.IncrementPages(ctx, input.BookID)
	if err != nil {
		return nil, err
	}
	return &StudyStatsOutput{Body: toStudyStatsResponse(snap)}, nil
}

func (s *Server) handleGetStudyStats(ctx context.Context, input *BookPathInput) (*StudyStatsOutput, error) {
	snap, err := s.services.Reader.Stats(ctx, input.BookID)
	if err != nil {
		return nil, err
	}
	return &StudyStatsOutput{Body: toStudyStatsResponse(snap)}, nil
}

func (s *Server) handleActivateDecoration(_ context.Context, input *ActivateDecorationInput) (*MessageOutput, error) {
	if s.services.Surface == nil {
		return nil, huma.Error503ServiceUnavailable("reading surface not configured")
	}
	if err := s.services.Surface.Activate(input.DecorationID); err != nil {
		return nil, err
	}
	return message("Decoration activated"), nil
}

func toStudyStatsResponse(snap domain.StudySnapshot) StudyStatsResponse {
	return StudyStatsResponse{
		BookID:              snap.BookID,
		Open:                snap.Open,
		Focused:             snap.Focused,
		CurrentSessionTime:  snap.CurrentSessionTime,
		CurrentSessionPages: snap.CurrentSessionPages,
		TodayTotal:          snap.TodayTotal,
		WeekTotal:           snap.WeekTotal,
		CurrentSessionText:  util.FormatStudyDuration(snap.CurrentSessionTime),
		TodayText:           util.FormatStudyDuration(snap.TodayTotal),
		WeekText:            util.FormatStudyDuration(snap.WeekTotal),
	}
}
