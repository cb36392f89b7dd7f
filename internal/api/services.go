package api

import (
	"github.com/folioapp/folio-server/internal/service"
	"github.com/folioapp/folio-server/internal/sse"
)

// Services groups the engine components used by the API server.
type Services struct {
	Reader  *service.ReaderService    // Open books, timers and surface commands
	Notes   *service.AnnotationStore  // Highlights, annotations and replies
	Surface *sse.SurfaceBridge        // Decoration click-back from the browser surface
}
