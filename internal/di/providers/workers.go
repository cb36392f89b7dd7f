package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/folioapp/folio-server/internal/clock"
	"github.com/folioapp/folio-server/internal/config"
	"github.com/folioapp/folio-server/internal/logger"
	"github.com/folioapp/folio-server/internal/service"
)

// FlushRetryJob periodically re-saves books whose last write failed, and
// finishes study sessions whose closing write failed.
type FlushRetryJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown implements do.Shutdownable.
func (j *FlushRetryJob) Shutdown() error {
	j.cancel()
	<-j.done
	return nil
}

// ProvideFlushRetryJob provides the periodic flush retry job.
func ProvideFlushRetryJob(i do.Injector) (*FlushRetryJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	notes := do.MustInvoke[*service.AnnotationStore](i)
	reader := do.MustInvoke[*ReaderServiceHandle](i).ReaderService
	clk := do.MustInvoke[clock.Clock](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())
	job := &FlushRetryJob{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(job.done)

		ticker := clk.NewTicker(cfg.Retry.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C():
				retryFlush(ctx, notes, reader, log)
			case <-ctx.Done():
				// Final attempt before exit.
				retryFlush(context.Background(), notes, reader, log)
				return
			}
		}
	}()

	log.Info("Flush retry job started", "interval", cfg.Retry.Interval)

	return job, nil
}

func retryFlush(ctx context.Context, notes *service.AnnotationStore, reader *service.ReaderService, log *logger.Logger) {
	if len(reader.PendingCloses()) > 0 {
		closed, err := reader.RetryPendingCloses(ctx)
		if err != nil {
			log.Warn("Session close retry failed", "closed", closed, "error", err)
		} else {
			log.Info("Session close retry completed", "closed", closed)
		}
	}

	if len(notes.Pending()) == 0 {
		return
	}
	saved, err := notes.FlushPending(ctx)
	if err != nil {
		log.Warn("Flush retry failed", "saved", saved, "error", err)
		return
	}
	log.Info("Flush retry completed", "saved", saved)
}
