package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
	OpenBooks  []string                   `json:"open_books" doc:"Books with a running reading session"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := make(map[string]ComponentHealth)
	overall := "healthy"

	dbHealth := s.checkDatabase(ctx)
	components["database"] = dbHealth
	if dbHealth.Status != "healthy" {
		overall = "unhealthy"
	}

	sseHealth := s.checkSSEManager()
	components["sse"] = sseHealth
	if sseHealth.Status == "degraded" && overall == "healthy" {
		overall = "degraded"
	}

	notesHealth := s.checkPendingWrites()
	components["annotations"] = notesHealth
	if notesHealth.Status == "degraded" && overall == "healthy" {
		overall = "degraded"
	}

	openBooks := []string{}
	if s.services != nil && s.services.Reader != nil {
		openBooks = s.services.Reader.OpenBooks()
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Components: components,
			OpenBooks:  openBooks,
		},
	}, nil
}

// checkDatabase verifies the key-value store answers a read.
func (s *Server) checkDatabase(ctx context.Context) ComponentHealth {
	if s.store == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "database not configured",
		}
	}

	start := time.Now()
	_, err := s.store.BookIDs(ctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  "unhealthy",
			Latency: latency.String(),
			Message: "database read failed",
		}
	}

	return ComponentHealth{
		Status:  "healthy",
		Latency: latency.String(),
	}
}

// checkPendingWrites reports books whose last save failed and is waiting
// for the retry job.
func (s *Server) checkPendingWrites() ComponentHealth {
	if s.services == nil || s.services.Notes == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "annotation store not configured",
		}
	}

	pending := s.services.Notes.Pending()
	if s.services.Reader != nil {
		pending = append(pending, s.services.Reader.PendingCloses()...)
	}
	if len(pending) > 0 {
		return ComponentHealth{
			Status:  "degraded",
			Message: strconv.Itoa(len(pending)) + " book(s) waiting to be saved",
		}
	}
	return ComponentHealth{Status: "healthy"}
}

// checkSSEManager verifies the SSE event system is running.
func (s *Server) checkSSEManager() ComponentHealth {
	if s.sseManager == nil {
		return ComponentHealth{
			Status:  "degraded",
			Message: "SSE manager not configured",
		}
	}

	return ComponentHealth{
		Status:  "healthy",
		Message: formatSSEStatus(s.sseManager.ClientCount()),
	}
}

func formatSSEStatus(count int) string {
	switch count {
	case 0:
		return "no connected clients"
	case 1:
		return "1 connected client"
	default:
		return strconv.Itoa(count) + " connected clients"
	}
}
