package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"journalflow.org/internal/activity"
	"journalflow.org/internal/journal"
	"journalflow.org/internal/publication"
	"journalflow.org/internal/roles"
)

func TestClassify(t *testing.T) {
	s := &Service{log: zerolog.Nop()}
	cases := []struct {
		err  error
		kind Kind
		msg  string
	}{
		{roles.ErrAlreadyAssigned, KindAlreadyAssigned, "user already holds this role in this journal"},
		{fmt.Errorf("get: %w", journal.ErrNotFound), KindNotFound, "journal not found"},
		{publication.ErrTerminalState, KindTerminalState, "version is already published"},
		{fmt.Errorf("%w: cannot schedule a scheduled version", publication.ErrInvalidTransition), KindInvalidTransition, "cannot schedule a scheduled version"},
		{context.DeadlineExceeded, KindTimeout, "the store did not respond in time"},
		{errors.Join(activity.ErrWriteFailure, errors.New("disk")), KindStoreFailure, "the change could not be recorded and was not applied"},
		{errors.New("boom"), KindStoreFailure, "internal error"},
		{newError(KindForbidden, "nope"), KindForbidden, "nope"},
	}
	for _, tc := range cases {
		err := s.classify(context.Background(), "test", tc.err)
		var we *Error
		if !errors.As(err, &we) {
			t.Fatalf("%v: not a workflow error", tc.err)
		}
		if we.Kind != tc.kind || we.Message != tc.msg {
			t.Fatalf("%v: got %s %q, want %s %q", tc.err, we.Kind, we.Message, tc.kind, tc.msg)
		}
	}
	if s.classify(context.Background(), "test", nil) != nil {
		t.Fatal("nil must stay nil")
	}
}

func TestErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newError(KindNotFound, "missing"))
	if !errors.Is(err, &Error{Kind: KindNotFound}) {
		t.Fatal("expected kind match")
	}
	if errors.Is(err, &Error{Kind: KindForbidden}) {
		t.Fatal("unexpected kind match")
	}
	if KindOf(errors.New("raw")) != KindStoreFailure {
		t.Fatal("raw errors report store failure")
	}
}
