package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"journalflow.org/internal/workflow"
)

// Publisher is the part of the workflow service the worker drives.
type Publisher interface {
	PublishScheduled(ctx context.Context, versionID string) (bool, error)
	PublishDue(ctx context.Context, limit int) (int, error)
}

type Handlers struct {
	svc   Publisher
	batch int
	log   zerolog.Logger
}

func NewHandlers(svc Publisher, batch int, log zerolog.Logger) *Handlers {
	if batch <= 0 {
		batch = 100
	}
	return &Handlers{svc: svc, batch: batch, log: log.With().Str("component", "scheduler").Logger()}
}

func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypePublishVersion, h.HandlePublish)
	mux.HandleFunc(TypeSweepDue, h.HandleSweep)
}

// HandlePublish publishes one version. Store failures are retried; a version
// that is gone or no longer scheduled is not.
func (h *Handlers) HandlePublish(ctx context.Context, task *asynq.Task) error {
	var p PublishPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.VersionID == "" {
		return fmt.Errorf("payload without version_id: %w", asynq.SkipRetry)
	}
	published, err := h.svc.PublishScheduled(ctx, p.VersionID)
	switch {
	case errors.Is(err, workflow.ErrNotDue):
		h.log.Info().Str("version_id", p.VersionID).Msg("publish task ran early; leaving it to the sweep")
		return nil
	case workflow.KindOf(err) == workflow.KindNotFound:
		h.log.Warn().Str("version_id", p.VersionID).Msg("scheduled version no longer exists")
		return fmt.Errorf("version %s: %v: %w", p.VersionID, err, asynq.SkipRetry)
	case err != nil:
		return err
	}
	h.log.Info().Str("version_id", p.VersionID).Bool("published", published).Msg("publish task done")
	return nil
}

func (h *Handlers) HandleSweep(ctx context.Context, _ *asynq.Task) error {
	n, err := h.svc.PublishDue(ctx, h.batch)
	if n > 0 {
		h.log.Info().Int("published", n).Msg("due publications swept")
	}
	return err
}
