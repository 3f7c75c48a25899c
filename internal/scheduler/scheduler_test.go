package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"journalflow.org/internal/workflow"
)

type fakeEnqueuer struct {
	tasks []*asynq.Task
	opts  [][]asynq.Option
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	f.opts = append(f.opts, opts)
	return &asynq.TaskInfo{ID: "t"}, nil
}

func TestSchedulePublishTask(t *testing.T) {
	enq := &fakeEnqueuer{}
	c := &Client{enq: enq}
	at := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	if err := c.SchedulePublish(context.Background(), "v1", at); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if len(enq.tasks) != 1 || enq.tasks[0].Type() != TypePublishVersion {
		t.Fatalf("unexpected tasks %+v", enq.tasks)
	}
	var p PublishPayload
	if err := json.Unmarshal(enq.tasks[0].Payload(), &p); err != nil || p.VersionID != "v1" {
		t.Fatalf("unexpected payload %s (%v)", enq.tasks[0].Payload(), err)
	}
	var gotID string
	var gotAt time.Time
	for _, o := range enq.opts[0] {
		switch o.Type() {
		case asynq.TaskIDOpt:
			gotID, _ = o.Value().(string)
		case asynq.ProcessAtOpt:
			gotAt, _ = o.Value().(time.Time)
		}
	}
	if gotID != "publish:v1" || !gotAt.Equal(at) {
		t.Fatalf("unexpected options id=%q at=%v", gotID, gotAt)
	}
}

func TestSchedulePublishDuplicateIsNoop(t *testing.T) {
	c := &Client{enq: &fakeEnqueuer{err: asynq.ErrTaskIDConflict}}
	if err := c.SchedulePublish(context.Background(), "v1", time.Now()); err != nil {
		t.Fatalf("expected nil on duplicate, got %v", err)
	}
	c = &Client{enq: &fakeEnqueuer{err: errors.New("redis down")}}
	if err := c.SchedulePublish(context.Background(), "v1", time.Now()); err == nil {
		t.Fatal("expected error")
	}
}

type fakePublisher struct {
	published map[string]bool
	err       error
	dueCalls  int
}

func (f *fakePublisher) PublishScheduled(_ context.Context, id string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	f.published[id] = true
	return true, nil
}

func (f *fakePublisher) PublishDue(_ context.Context, limit int) (int, error) {
	f.dueCalls++
	return limit, nil
}

func publishTask(t *testing.T, id string) *asynq.Task {
	t.Helper()
	b, err := json.Marshal(PublishPayload{VersionID: id})
	if err != nil {
		t.Fatal(err)
	}
	return asynq.NewTask(TypePublishVersion, b)
}

func TestHandlePublish(t *testing.T) {
	pub := &fakePublisher{published: map[string]bool{}}
	h := NewHandlers(pub, 10, zerolog.Nop())
	if err := h.HandlePublish(context.Background(), publishTask(t, "v1")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !pub.published["v1"] {
		t.Fatal("version not published")
	}

	if err := h.HandlePublish(context.Background(), asynq.NewTask(TypePublishVersion, []byte("{"))); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("bad payload should skip retry, got %v", err)
	}

	pub.err = workflow.ErrNotDue
	if err := h.HandlePublish(context.Background(), publishTask(t, "v2")); err != nil {
		t.Fatalf("not due should be swallowed, got %v", err)
	}

	pub.err = &workflow.Error{Kind: workflow.KindNotFound, Message: "publication version not found"}
	if err := h.HandlePublish(context.Background(), publishTask(t, "v3")); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("missing version should skip retry, got %v", err)
	}

	pub.err = &workflow.Error{Kind: workflow.KindTimeout, Message: "the store did not respond in time"}
	err := h.HandlePublish(context.Background(), publishTask(t, "v4"))
	if err == nil || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("timeouts should be retried, got %v", err)
	}
}

func TestHandleSweep(t *testing.T) {
	pub := &fakePublisher{published: map[string]bool{}}
	h := NewHandlers(pub, 25, zerolog.Nop())
	if err := h.HandleSweep(context.Background(), asynq.NewTask(TypeSweepDue, nil)); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if pub.dueCalls != 1 {
		t.Fatalf("expected one PublishDue call, got %d", pub.dueCalls)
	}
}
