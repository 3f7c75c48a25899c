package scheduler

import (
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

// NewPeriodic builds an asynq scheduler that enqueues the due-publication
// sweep every interval.
func NewPeriodic(redis asynq.RedisConnOpt, interval time.Duration) (*asynq.Scheduler, error) {
	s := asynq.NewScheduler(redis, &asynq.SchedulerOpts{
		Location: time.UTC,
		LogLevel: asynq.WarnLevel,
	})
	_, err := s.Register(fmt.Sprintf("@every %s", interval),
		asynq.NewTask(TypeSweepDue, nil),
		asynq.Queue(Queue),
		asynq.MaxRetry(0),
		asynq.Timeout(interval),
		asynq.Unique(interval),
	)
	if err != nil {
		return nil, fmt.Errorf("register sweep: %w", err)
	}
	return s, nil
}

// NewServer builds the asynq worker server for the publication queue.
func NewServer(redis asynq.RedisConnOpt, concurrency int, onError asynq.ErrorHandlerFunc) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 4
	}
	return asynq.NewServer(redis, asynq.Config{
		Queues:       map[string]int{Queue: 1},
		Concurrency:  concurrency,
		ErrorHandler: onError,
	})
}
