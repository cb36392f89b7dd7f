package api

import (
	domainerrors "github.com/folioapp/folio-server/internal/errors"
)

// MessageResponse is a generic acknowledgement body.
type MessageResponse struct {
	Message string `json:"message" doc:"Result message"`
}

// MessageOutput wraps the message response for Huma.
type MessageOutput struct {
	Body MessageResponse
}

func message(msg string) *MessageOutput {
	return &MessageOutput{Body: MessageResponse{Message: msg}}
}

// validate runs struct validation on a request body.
func (s *Server) validate(body any) error {
	return s.validator.Validate(body)
}

func highlightNotFound(highlightID string) error {
	return domainerrors.NotFoundf("highlight %s not found", highlightID)
}
