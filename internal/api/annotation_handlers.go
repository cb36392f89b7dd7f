package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/folioapp/folio-server/internal/domain"
)

func (s *Server) registerAnnotationRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listHighlightAnnotations",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{bookID}/highlights/{highlightID}/annotations",
		Summary:     "List highlight annotations",
		Description: "Returns the notes attached to a highlight",
		Tags:        []string{"Annotations"},
	}, s.handleListHighlightAnnotations)

	huma.Register(s.api, huma.Operation{
		OperationID: "createAnnotation",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{bookID}/highlights/{highlightID}/annotations",
		Summary:     "Create annotation",
		Description: "Attaches a note to a highlight",
		Tags:        []string{"Annotations"},
	}, s.handleCreateAnnotation)

	huma.Register(s.api, huma.Operation{
		OperationID: "listAnnotations",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{bookID}/annotations",
		Summary:     "List annotations",
		Description: "Returns every note in the book with its replies",
		Tags:        []string{"Annotations"},
	}, s.handleListAnnotations)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateAnnotation",
		Method:      http.MethodPatch,
		Path:        "/api/v1/books/{bookID}/annotations/{annotationID}",
		Summary:     "Update annotation",
		Description: "Replaces a note's content. An unknown ID is a no-op reported as found=false",
		Tags:        []string{"Annotations"},
	}, s.handleUpdateAnnotation)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteAnnotation",
		Method:      http.MethodDelete,
		Path:        "/api/v1/books/{bookID}/annotations/{annotationID}",
		Summary:     "Delete annotation",
		Description: "Deletes a note and its replies. The highlight is kept.",
		Tags:        []string{"Annotations"},
	}, s.handleDeleteAnnotation)

	huma.Register(s.api, huma.Operation{
		OperationID: "createReply",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/{bookID}/annotations/{annotationID}/replies",
		Summary:     "Reply to annotation",
		Description: "Appends a reply to a note",
		Tags:        []string{"Annotations"},
	}, s.handleCreateReply)
}

// === DTOs ===

// ReplyResponse contains reply data in API responses.
type ReplyResponse struct {
	ID           string    `json:"id" doc:"Reply ID"`
	AnnotationID string    `json:"annotation_id" doc:"Parent annotation ID"`
	UserID       string    `json:"user_id" doc:"Author ID"`
	UserName     string    `json:"user_name" doc:"Author display name"`
	Content      string    `json:"content" doc:"Reply text"`
	CreatedAt    time.Time `json:"created_at" doc:"Creation time"`
}

// AnnotationResponse contains annotation data in API responses.
type AnnotationResponse struct {
	ID          string          `json:"id" doc:"Annotation ID"`
	HighlightID string          `json:"highlight_id" doc:"Highlight the note is attached to"`
	UserID      string          `json:"user_id" doc:"Author ID"`
	UserName    string          `json:"user_name" doc:"Author display name"`
	Content     string          `json:"content" doc:"Note text"`
	CreatedAt   time.Time       `json:"created_at" doc:"Creation time"`
	UpdatedAt   time.Time       `json:"updated_at" doc:"Last update time"`
	Replies     []ReplyResponse `json:"replies" doc:"Replies in the order they were added"`
}

// ListAnnotationsResponse contains a list of annotations.
type ListAnnotationsResponse struct {
	Annotations []AnnotationResponse `json:"annotations" doc:"Annotations in creation order"`
}

// ListAnnotationsOutput wraps the list annotations response for Huma.
type ListAnnotationsOutput struct {
	Body ListAnnotationsResponse
}

// AnnotationOutput wraps the annotation response for Huma.
type AnnotationOutput struct {
	Body AnnotationResponse
}

// UpdateAnnotationResponse reports an edit. Editing an annotation that does
// not exist changes nothing and is not an error.
type UpdateAnnotationResponse struct {
	Found      bool                `json:"found" doc:"False when no annotation has this ID"`
	Annotation *AnnotationResponse `json:"annotation,omitempty" doc:"The edited annotation"`
}

// UpdateAnnotationOutput wraps the update annotation response for Huma.
type UpdateAnnotationOutput struct {
	Body UpdateAnnotationResponse
}

// AnnotationContentRequest is the request body for creating or editing a note.
type AnnotationContentRequest struct {
	Content string `json:"content" validate:"not_blank,max=20000" doc:"Note text"`
}

// CreateAnnotationInput wraps the create annotation request for Huma.
type CreateAnnotationInput struct {
	BookID      string `path:"bookID" doc:"Book ID"`
	HighlightID string `path:"highlightID" doc:"Highlight ID"`
	Body        AnnotationContentRequest
}

// AnnotationPathInput identifies an annotation.
type AnnotationPathInput struct {
	BookID       string `path:"bookID" doc:"Book ID"`
	AnnotationID string `path:"annotationID" doc:"Annotation ID"`
}

// UpdateAnnotationInput wraps the update annotation request for Huma.
type UpdateAnnotationInput struct {
	BookID       string `path:"bookID" doc:"Book ID"`
	AnnotationID string `path:"annotationID" doc:"Annotation ID"`
	Body         AnnotationContentRequest
}

// CreateReplyRequest is the request body for replying to a note.
type CreateReplyRequest struct {
	Content string `json:"content" validate:"not_blank,max=5000" doc:"Reply text"`
}

// CreateReplyInput wraps the create reply request for Huma.
type CreateReplyInput struct {
	BookID       string `path:"bookID" doc:"Book ID"`
	AnnotationID string `path:"annotationID" doc:"Annotation ID"`
	Body         CreateReplyRequest
}

// ReplyOutput wraps the reply response for Huma.
type ReplyOutput struct {
	Body ReplyResponse
}

// === Handlers ===

func (s *Server) handleListHighlightAnnotations(ctx context.Context, input *HighlightPathInput) (*ListAnnotationsOutput, error) {
	annotations, ok, err := s.services.Notes.AnnotationsByHighlight(ctx, input.BookID, input.HighlightID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, highlightNotFound(input.HighlightID)
	}

	resp := make([]AnnotationResponse, len(annotations))
	for i, a := range annotations {
		resp[i] = toAnnotationResponse(a)
	}
	return &ListAnnotationsOutput{Body: ListAnnotationsResponse{Annotations: resp}}, nil
}

func (s *Server) handleListAnnotations(ctx context.Context, input *BookPathInput) (*ListAnnotationsOutput, error) {
	annotations, err := s.services.Notes.Annotations(ctx, input.BookID)
	if err != nil {
		return nil, err
	}

	resp := make([]AnnotationResponse, len(annotations))
	for i, a := range annotations {
		resp[i] = toAnnotationResponse(a)
	}
	return &ListAnnotationsOutput{Body: ListAnnotationsResponse{Annotations: resp}}, nil
}

func (s *Server) handleCreateAnnotation(ctx context.Context, input *CreateAnnotationInput) (*AnnotationOutput, error) {
	if err := s.validate(input.Body); err != nil {
		return nil, err
	}

	a, err := s.services.Notes.AddAnnotation(ctx, input.BookID, input.HighlightID, input.Body.Content, s.opts.UserID, s.opts.UserName)
	if err != nil {
		return nil, err
	}
	return &AnnotationOutput{Body: toAnnotationResponse(a)}, nil
}

func (s *Server) handleUpdateAnnotation(ctx context.Context, input *UpdateAnnotationInput) (*UpdateAnnotationOutput, error) {
	if err := s.validate(input.Body); err != nil {
		return nil, err
	}

	a, ok, err := s.services.Notes.UpdateAnnotation(ctx, input.BookID, input.AnnotationID, input.Body.Content)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &UpdateAnnotationOutput{Body: UpdateAnnotationResponse{Found: false}}, nil
	}
	resp := toAnnotationResponse(a)
	return &UpdateAnnotationOutput{Body: UpdateAnnotationResponse{Found: true, Annotation: &resp}}, nil
}

func (s *Server) handleDeleteAnnotation(ctx context.Context, input *AnnotationPathInput) (*MessageOutput, error) {
	ok, err := s.services.Notes.DeleteAnnotation(ctx, input.BookID, input.AnnotationID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return message("Annotation already deleted"), nil
	}
	return message("Annotation deleted"), nil
}

func (s *Server) handleCreateReply(ctx context.Context, input *CreateReplyInput) (*ReplyOutput, error) {
	if err := s.validate(input.Body); err != nil {
		return nil, err
	}

	r, err := s.services.Notes.AddReply(ctx, input.BookID, input.AnnotationID, input.Body.Content, s.opts.UserID, s.opts.UserName)
	if err != nil {
		return nil, err
	}
	return &ReplyOutput{Body: toReplyResponse(r)}, nil
}

func toAnnotationResponse(a domain.Annotation) AnnotationResponse {
	replies := make([]ReplyResponse, len(a.Replies))
	for i, r := range a.Replies {
		replies[i] = toReplyResponse(r)
	}
	return AnnotationResponse{
		ID:          a.ID,
		HighlightID: a.HighlightID,
		UserID:      a.UserID,
		UserName:    a.UserName,
		Content:     a.Content,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
		Replies:     replies,
	}
}

func toReplyResponse(r domain.Reply) ReplyResponse {
	return ReplyResponse{
		ID:           r.ID,
		AnnotationID: r.AnnotationID,
		UserID:       r.UserID,
		UserName:     r.UserName,
		Content:      r.Content,
		CreatedAt:    r.CreatedAt,
	}
}
