package api

import (
	"github.com/danielgtaylor/huma/v2"

	"github.com/folioapp/folio-server/internal/http/response"
)

// EnvelopeVersion is sent as "v" on every response body.
const EnvelopeVersion = response.Version

// EnvelopeTransformer wraps every huma response body in the shared
// envelope: {"v":1,"success":true,"data":...} for success and
// {"v":1,"success":false,"error":...,"code":...} for failures.
func EnvelopeTransformer(_ huma.Context, _ string, v any) (any, error) {
	switch body := v.(type) {
	case *APIError:
		return response.Envelope{
			Version: EnvelopeVersion,
			Success: false,
			Error:   body.Message,
			Code:    body.Code,
			Message: body.Message,
			Details: body.Details,
		}, nil
	case error:
		return response.Envelope{
			Version: EnvelopeVersion,
			Success: false,
			Error:   body.Error(),
		}, nil
	default:
		return response.Envelope{
			Version: EnvelopeVersion,
			Success: true,
			Data:    v,
		}, nil
	}
}
