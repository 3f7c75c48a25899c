package activity

import (
	"context"
	"testing"
	"time"
)

func TestFeedFiltersByContext(t *testing.T) {
	feed := NewFeed()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j1 := feed.Subscribe(ctx, "j1")
	all := feed.Subscribe(ctx, "")

	feed.Publish(Entry{ContextID: "j2", Message: "other journal"})
	feed.Publish(Entry{ContextID: "j1", Message: "mine"})

	select {
	case e := <-j1:
		if e.Message != "mine" {
			t.Fatalf("j1 subscriber got %q", e.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("j1 subscriber received nothing")
	}
	for _, want := range []string{"other journal", "mine"} {
		select {
		case e := <-all:
			if e.Message != want {
				t.Fatalf("global subscriber got %q, want %q", e.Message, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("global subscriber missed %q", want)
		}
	}
}

func TestFeedClosesOnCancel(t *testing.T) {
	feed := NewFeed()
	ctx, cancel := context.WithCancel(context.Background())
	ch := feed.Subscribe(ctx, "j1")
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if n := feed.Subscribers(); n != 0 {
		t.Fatalf("expected no subscribers, got %d", n)
	}
}

func TestEntryValidate(t *testing.T) {
	if err := (Entry{Category: CategoryRoles, Message: "ok"}).Validate(); err != nil {
		t.Fatalf("valid entry rejected: %v", err)
	}
	if err := (Entry{Message: "no category"}).Validate(); err == nil {
		t.Fatal("expected missing category to fail")
	}
	if err := (Entry{Category: CategoryRoles}).Validate(); err == nil {
		t.Fatal("expected missing message to fail")
	}
}
