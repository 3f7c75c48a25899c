package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"journalflow.org/internal/activity"
	"journalflow.org/internal/workflow"
)

const activityChannel = "journalflow:activity"

type publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// ActivityRelay carries committed activity between processes over Redis
// pub/sub, so entries written by the worker reach API stream subscribers.
type ActivityRelay struct {
	pub       publisher
	subscribe func(ctx context.Context, channels ...string) *redis.PubSub
	log       zerolog.Logger
}

var _ workflow.ActivityPublisher = (*ActivityRelay)(nil)

func NewActivityRelay(rdb *redis.Client, log zerolog.Logger) *ActivityRelay {
	return &ActivityRelay{
		pub:       rdb,
		subscribe: rdb.Subscribe,
		log:       log.With().Str("component", "activity_relay").Logger(),
	}
}

func (r *ActivityRelay) Publish(ctx context.Context, e activity.Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := r.pub.Publish(ctx, activityChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish activity %d: %w", e.Sequence, err)
	}
	return nil
}

// Forward copies relayed entries into feed until ctx ends.
func (r *ActivityRelay) Forward(ctx context.Context, feed *activity.Feed) error {
	sub := r.subscribe(ctx, activityChannel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", activityChannel, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			e, err := decodeEntry(msg.Payload)
			if err != nil {
				r.log.Warn().Err(err).Msg("dropping malformed activity message")
				continue
			}
			feed.Publish(e)
		}
	}
}

func decodeEntry(payload string) (activity.Entry, error) {
	var e activity.Entry
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return activity.Entry{}, err
	}
	return e, nil
}
