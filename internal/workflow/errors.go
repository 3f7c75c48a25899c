package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"journalflow.org/internal/activity"
	"journalflow.org/internal/auth"
	"journalflow.org/internal/journal"
	"journalflow.org/internal/publication"
	"journalflow.org/internal/roles"
	"journalflow.org/internal/submission"
)

// Kind is the closed set of failure kinds reported to callers.
type Kind string

const (
	KindForbidden         Kind = "forbidden"
	KindNotFound          Kind = "not_found"
	KindAlreadyAssigned   Kind = "already_assigned"
	KindInvalidTransition Kind = "invalid_transition"
	KindTerminalState     Kind = "terminal_state"
	KindValidation        Kind = "validation_error"
	KindTimeout           Kind = "timeout"
	KindStoreFailure      Kind = "store_failure"

	// KindUnauthenticated is reported by transports when no valid identity
	// accompanies a request. The orchestrator never returns it.
	KindUnauthenticated Kind = "unauthenticated"
)

// Error is the only error type returned by Service methods.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches another *Error of the same kind, so callers can write
// errors.Is(err, &workflow.Error{Kind: workflow.KindForbidden}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind carried by err. Errors that did not pass through
// the orchestrator report KindStoreFailure.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var we *Error
	if errors.As(err, &we) {
		return we.Kind
	}
	return KindStoreFailure
}

type mapping struct {
	target error
	kind   Kind
	msg    string
}

var mappings = []mapping{
	{roles.ErrAlreadyAssigned, KindAlreadyAssigned, "user already holds this role in this journal"},
	{journal.ErrPathTaken, KindAlreadyAssigned, "journal path already used"},
	{roles.ErrNotFound, KindNotFound, "role assignment not found"},
	{publication.ErrNotFound, KindNotFound, "publication version not found"},
	{journal.ErrNotFound, KindNotFound, "journal not found"},
	{submission.ErrNotFound, KindNotFound, "submission not found"},
	{submission.ErrFileNotFound, KindNotFound, "submission file not found"},
	{auth.ErrUserNotFound, KindNotFound, "user not found"},
	{publication.ErrTerminalState, KindTerminalState, "version is already published"},
	{publication.ErrInvalidTransition, KindInvalidTransition, ""},
	{publication.ErrInvalidDate, KindValidation, ""},
	{roles.ErrInvalidRole, KindValidation, ""},
	{journal.ErrInvalid, KindValidation, ""},
	{submission.ErrInvalid, KindValidation, ""},
}

// classify reduces err to an *Error. Unrecognised errors are logged with
// their detail and reported as a generic store failure.
func (s *Service) classify(ctx context.Context, intent string, err error) error {
	if err == nil {
		return nil
	}
	var we *Error
	if errors.As(err, &we) {
		return we
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(KindTimeout, "the store did not respond in time")
	}
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			msg := m.msg
			if msg == "" {
				msg = detail(err, m.target)
			}
			return &Error{Kind: m.kind, Message: msg}
		}
	}
	if errors.Is(err, activity.ErrWriteFailure) || errors.Is(err, activity.ErrInvalidEntry) {
		s.log.Error().Err(err).Str("intent", intent).Msg("activity log write failed")
		return newError(KindStoreFailure, "the change could not be recorded and was not applied")
	}
	s.log.Error().Err(err).Str("intent", intent).Msg("store failure")
	return newError(KindStoreFailure, "internal error")
}

// detail strips the sentinel prefix from a wrapped validation message.
func detail(err, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error()
	tail := prefix
	if i := strings.Index(prefix, ": "); i >= 0 {
		tail = prefix[i+2:]
	}
	rest := strings.TrimPrefix(msg, prefix)
	switch {
	case rest == msg:
		return msg
	case rest == "":
		return tail
	case strings.HasPrefix(rest, ": "):
		return rest[2:]
	default:
		return tail + rest
	}
}
