package api

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folioapp/folio-server/internal/http/response"
)

func TestEnvelopeTransformer_AlwaysIncludesVersion(t *testing.T) {
	tests := []struct {
		name   string
		status string
		input  any
	}{
		{
			name:   "success response",
			status: "200",
			input:  map[string]string{"id": "hl-1"},
		},
		{
			name:   "no content response",
			status: "204",
			input:  nil,
		},
		{
			name:   "plain error",
			status: "500",
			input:  errors.New("internal error"),
		},
		{
			name:   "unknown parent with details",
			status: "422",
			input: &APIError{
				Code:    "UNKNOWN_PARENT",
				Message: "highlight does not exist",
				Details: map[string]string{"highlight_id": "hl-9"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := EnvelopeTransformer(nil, tt.status, tt.input)
			require.NoError(t, err)

			jsonBytes, err := json.Marshal(result)
			require.NoError(t, err)

			var envelope map[string]any
			require.NoError(t, json.Unmarshal(jsonBytes, &envelope))

			require.Contains(t, envelope, "v", "Envelope must contain version field 'v'")
			assert.Equal(t, float64(EnvelopeVersion), envelope["v"])
		})
	}
}

func TestEnvelopeTransformer_SuccessResponse(t *testing.T) {
	data := map[string]string{"text": "Call me Ishmael"}

	result, err := EnvelopeTransformer(nil, "200", data)
	require.NoError(t, err)

	envelope, ok := result.(response.Envelope)
	require.True(t, ok, "Expected response.Envelope type")

	assert.True(t, envelope.Success)
	assert.Equal(t, data, envelope.Data)
	assert.Empty(t, envelope.Error)
	assert.Empty(t, envelope.Code)
}

func TestEnvelopeTransformer_ErrorResponse(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "500", errors.New("disk full"))
	require.NoError(t, err)

	envelope, ok := result.(response.Envelope)
	require.True(t, ok, "Expected response.Envelope type")

	assert.False(t, envelope.Success)
	assert.Nil(t, envelope.Data)
	assert.Equal(t, "disk full", envelope.Error)
}

func TestEnvelopeTransformer_ErrorWithDetails(t *testing.T) {
	apiErr := &APIError{
		Code:    "VALIDATION",
		Message: "validation failed",
		Details: map[string]string{"color": "must be one of: yellow blue pink orange"},
	}

	result, err := EnvelopeTransformer(nil, "422", apiErr)
	require.NoError(t, err)

	envelope, ok := result.(response.Envelope)
	require.True(t, ok, "Expected response.Envelope type")

	assert.False(t, envelope.Success)
	assert.Equal(t, "VALIDATION", envelope.Code)
	assert.Equal(t, "validation failed", envelope.Message)
	assert.Equal(t, apiErr.Details, envelope.Details)
}

func TestEnvelope_FieldNames(t *testing.T) {
	result, err := EnvelopeTransformer(nil, "404", &APIError{Code: "NOT_FOUND", Message: "highlight hl-1 not found"})
	require.NoError(t, err)

	raw, err := json.Marshal(result)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	for key := range fields {
		assert.Contains(t, []string{"v", "success", "error", "code", "message"}, key, "unexpected field %s", key)
	}
	assert.NotContains(t, fields, "data")
}
