package providers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/samber/do/v2"

	"github.com/folioapp/folio-server/internal/config"
	"github.com/folioapp/folio-server/internal/logger"
	"github.com/folioapp/folio-server/internal/sse"
	"github.com/folioapp/folio-server/internal/store"
	"github.com/folioapp/folio-server/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// ProvideSurfaceBridge provides the bridge that drives browser reading
// surfaces over the event stream.
func ProvideSurfaceBridge(i do.Injector) (*sse.SurfaceBridge, error) {
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	return sse.NewSurfaceBridge(sseHandle.Manager), nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
	once sync.Once
	err  error
}

// Shutdown implements do.Shutdownable. It is safe to call more than once.
func (h *StoreHandle) Shutdown() error {
	h.once.Do(func() {
		h.err = h.Close()
	})
	return h.err
}

// ProvideStore provides the database store on the configured backend.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	kv, err := openKV(cfg, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized",
		"backend", cfg.Storage.Backend,
		"path", cfg.DatabasePath(),
	)

	return &StoreHandle{Store: store.New(kv, log.Logger)}, nil
}

func openKV(cfg *config.Config, log *slog.Logger) (store.KV, error) {
	switch cfg.Storage.Backend {
	case config.BackendMemory:
		log.Warn("Using in-memory storage, nothing will survive a restart")
		return store.NewMemoryKV(), nil

	case config.BackendSQLite:
		if err := os.MkdirAll(cfg.Storage.DataPath, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		return sqlite.Open(cfg.DatabasePath(), log)

	case config.BackendBadger:
		return store.OpenBadger(cfg.DatabasePath(), log)

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// ProvideSlogLogger provides access to the underlying slog.Logger for packages that need it.
func ProvideSlogLogger(i do.Injector) (*slog.Logger, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return log.Logger, nil
}
