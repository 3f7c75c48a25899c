package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"journalflow.org/internal/activity"
)

type fakePublisher struct {
	channel string
	payload []byte
	err     error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	return redis.NewIntResult(1, f.err)
}

func TestActivityRelayPublish(t *testing.T) {
	pub := &fakePublisher{}
	relay := &ActivityRelay{pub: pub, log: zerolog.Nop()}

	in := activity.Entry{ID: "e1", Sequence: 7, ContextID: "j1", Category: activity.CategoryPublication, Message: "published"}
	if err := relay.Publish(context.Background(), in); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if pub.channel != activityChannel {
		t.Fatalf("unexpected channel %q", pub.channel)
	}
	out, err := decodeEntry(string(pub.payload))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Sequence != 7 || out.ContextID != "j1" || out.Message != "published" {
		t.Fatalf("unexpected entry %+v", out)
	}
}

func TestActivityRelayPublishError(t *testing.T) {
	relay := &ActivityRelay{pub: &fakePublisher{err: errors.New("down")}, log: zerolog.Nop()}
	if err := relay.Publish(context.Background(), activity.Entry{Sequence: 1}); err == nil {
		t.Fatal("expected error")
	}
}

func TestDecodeEntryRejectsGarbage(t *testing.T) {
	if _, err := decodeEntry("{not json"); err == nil {
		t.Fatal("expected decode error")
	}
}
