package errors_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/folioapp/folio-server/internal/errors"
)

func TestError_IsMatchesByCode(t *testing.T) {
	err := errors.UnknownParentf("highlight %s does not exist", "hl-1")

	assert.True(t, errors.Is(err, errors.ErrUnknownParent))
	assert.False(t, errors.Is(err, errors.ErrNotFound))
	assert.Equal(t, "highlight hl-1 does not exist", err.Error())
}

func TestError_IsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("add annotation: %w", errors.UnknownParent("missing"))

	assert.True(t, stderrors.Is(wrapped, errors.ErrUnknownParent))

	var domainErr *errors.Error
	assert.True(t, errors.As(wrapped, &domainErr))
	assert.Equal(t, http.StatusUnprocessableEntity, domainErr.HTTPStatus())
}

func TestError_WithCause(t *testing.T) {
	cause := stderrors.New("disk full")
	err := errors.Wrap(cause, errors.CodeInternal, "flush highlights")

	assert.Equal(t, "flush highlights: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
}

func TestCode_HTTPStatus(t *testing.T) {
	tests := []struct {
		code errors.Code
		want int
	}{
		{errors.CodeNotFound, http.StatusNotFound},
		{errors.CodeValidation, http.StatusBadRequest},
		{errors.CodeUnknownParent, http.StatusUnprocessableEntity},
		{errors.CodeConflict, http.StatusConflict},
		{errors.CodeRateLimited, http.StatusTooManyRequests},
		{errors.CodeInternal, http.StatusInternalServerError},
		{errors.Code("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestValidationWithDetails(t *testing.T) {
	err := errors.ValidationWithDetails("validation failed", map[string]string{"color": "is invalid"})

	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Equal(t, map[string]string{"color": "is invalid"}, err.Details)
}
