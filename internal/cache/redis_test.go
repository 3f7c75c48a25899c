package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"journalflow.org/internal/auth"
	"journalflow.org/internal/roles"
	"journalflow.org/internal/workflow"
)

type fakeRedis struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestUsersCacheRoundTrip(t *testing.T) {
	rdb := newFakeRedis()
	c := NewUsersCache(rdb, time.Minute)
	ctx := context.Background()

	if _, ok, err := c.Get(ctx, "j1"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	users := []workflow.JournalUser{{
		User:  auth.User{ID: "u1", Name: "Ada", Email: "ada@example.org"},
		Roles: []roles.RolePath{roles.Manager, roles.Editor},
	}}
	if err := c.Set(ctx, "j1", users); err != nil {
		t.Fatalf("set: %v", err)
	}
	if rdb.ttls["journalflow:journal:j1:users"] != time.Minute {
		t.Fatalf("ttl not applied: %v", rdb.ttls)
	}

	got, ok, err := c.Get(ctx, "j1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if len(got) != 1 || got[0].ID != "u1" || len(got[0].Roles) != 2 || got[0].Status != nil {
		t.Fatalf("unexpected cached users %+v", got)
	}

	if err := c.Invalidate(ctx, "j1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx, "j1"); ok {
		t.Fatal("entry survived invalidation")
	}
}

func TestUsersCacheCorruptEntry(t *testing.T) {
	rdb := newFakeRedis()
	rdb.data["journalflow:journal:j1:users"] = "{not json"
	if _, _, err := NewUsersCache(rdb, 0).Get(context.Background(), "j1"); err == nil {
		t.Fatal("expected decode error")
	}
}
