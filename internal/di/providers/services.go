package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/folioapp/folio-server/internal/clock"
	"github.com/folioapp/folio-server/internal/config"
	"github.com/folioapp/folio-server/internal/logger"
	"github.com/folioapp/folio-server/internal/service"
	"github.com/folioapp/folio-server/internal/sse"
)

// ProvideAnnotationStore provides the highlight and annotation store.
func ProvideAnnotationStore(i do.Injector) (*service.AnnotationStore, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	clk := do.MustInvoke[clock.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewAnnotationStore(storeHandle.Store, sseHandle.Manager, clk, log.ForComponent("annotations").Logger), nil
}

// ReaderServiceHandle wraps the reader service so open books are torn down
// before the store closes.
type ReaderServiceHandle struct {
	*service.ReaderService
}

// Shutdown implements do.Shutdownable.
func (h *ReaderServiceHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	h.CloseAll(ctx)
	if _, err := h.RetryPendingCloses(ctx); err != nil {
		return fmt.Errorf("study sessions left unsaved: %w", err)
	}
	return nil
}

// ProvideReaderService provides the reader session service.
func ProvideReaderService(i do.Injector) (*ReaderServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	bridge := do.MustInvoke[*sse.SurfaceBridge](i)
	notes := do.MustInvoke[*service.AnnotationStore](i)
	clk := do.MustInvoke[clock.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	reader := service.NewReaderService(
		storeHandle.Store,
		notes,
		service.BookSurfaces(bridge),
		sseHandle.Manager,
		clk,
		service.ReaderOptions{
			TickInterval: cfg.Study.TickInterval,
			FlushEvery:   cfg.Study.FlushEvery,
			Location:     cfg.Study.Location,
		},
		log.ForComponent("reader").Logger,
	)

	return &ReaderServiceHandle{ReaderService: reader}, nil
}
