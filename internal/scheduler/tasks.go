// Package scheduler dispatches due publications through asynq: one delayed
// task per scheduled version plus a periodic sweep that catches anything the
// delayed tasks missed.
package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypePublishVersion = "publication:publish"
	TypeSweepDue       = "publication:sweep_due"

	Queue = "publication"
)

type PublishPayload struct {
	VersionID string `json:"version_id"`
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Client implements workflow.PublishScheduler.
type Client struct {
	enq enqueuer
}

func NewClient(c *asynq.Client) *Client {
	return &Client{enq: c}
}

func taskID(versionID string) string {
	return "publish:" + versionID
}

// SchedulePublish enqueues the publish task to run at at. Enqueueing the same
// version twice is a no-op.
func (c *Client) SchedulePublish(ctx context.Context, versionID string, at time.Time) error {
	payload, err := json.Marshal(PublishPayload{VersionID: versionID})
	if err != nil {
		return err
	}
	_, err = c.enq.EnqueueContext(ctx, asynq.NewTask(TypePublishVersion, payload),
		asynq.TaskID(taskID(versionID)),
		asynq.ProcessAt(at),
		asynq.Queue(Queue),
		asynq.MaxRetry(5),
		asynq.Timeout(time.Minute),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue publish %s: %w", versionID, err)
	}
	return nil
}
