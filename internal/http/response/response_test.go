package response

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/folioapp/folio-server/internal/errors"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var result Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	return result
}

func TestJSON_Success(t *testing.T) {
	w := httptest.NewRecorder()
	logger := slog.New(slog.DiscardHandler)

	Success(w, map[string]string{"status": "healthy"}, logger)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))

	result := decode(t, w)
	assert.Equal(t, Version, result.Version)
	assert.True(t, result.Success)
	assert.NotNil(t, result.Data)
	assert.Empty(t, result.Error)
}

func TestJSON_ErrorStatusIsNotSuccess(t *testing.T) {
	w := httptest.NewRecorder()

	JSON(w, http.StatusNotFound, map[string]string{"message": "test"}, nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, decode(t, w).Success, "Success should be false for status >= 400")
}

func TestTooManyRequests(t *testing.T) {
	w := httptest.NewRecorder()

	TooManyRequests(w, "slow down", nil)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	result := decode(t, w)
	assert.Equal(t, "RATE_LIMITED", result.Code)
	assert.Equal(t, "slow down", result.Error)
}

func TestHandleError_DomainError(t *testing.T) {
	w := httptest.NewRecorder()

	err := domainerrors.UnknownParent("unknown highlight").WithDetails(map[string]string{"highlight_id": "hl-1"})
	HandleError(w, err, nil)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	result := decode(t, w)
	assert.Equal(t, "UNKNOWN_PARENT", result.Code)
	assert.Equal(t, map[string]any{"highlight_id": "hl-1"}, result.Details)
}

func TestHandleError_UnknownErrorIsInternal(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, errors.New("boom"), slog.New(slog.DiscardHandler))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	result := decode(t, w)
	assert.Equal(t, "INTERNAL", result.Code)
	assert.Equal(t, "internal server error", result.Message)
}
