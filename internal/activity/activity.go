package activity

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Category groups entries by the kind of change they record.
type Category string

const (
	CategoryPublication Category = "publication"
	CategoryRoles       Category = "roles"
	CategoryJournal     Category = "journal"
	CategoryLibrary     Category = "library"
	CategorySubmission  Category = "submission"
	CategoryFiles       Category = "files"
)

var (
	ErrInvalidEntry = errors.New("activity: invalid entry")
	ErrWriteFailure = errors.New("activity: write failed")
)

// Entry is an immutable audit record. Sequence is assigned by the writer and
// strictly increases in append order.
type Entry struct {
	ID           string         `json:"id"`
	Sequence     int64          `json:"sequence"`
	ContextID    string         `json:"context_id,omitempty"`
	SubmissionID string         `json:"submission_id,omitempty"`
	ActorID      string         `json:"actor_id,omitempty"`
	Category     Category       `json:"category"`
	Message      string         `json:"message"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Validate checks the fields every entry must carry.
func (e Entry) Validate() error {
	if strings.TrimSpace(string(e.Category)) == "" {
		return errors.Join(ErrInvalidEntry, errors.New("category is required"))
	}
	if strings.TrimSpace(e.Message) == "" {
		return errors.Join(ErrInvalidEntry, errors.New("message is required"))
	}
	return nil
}

// Writer appends entries. There is no update or delete.
type Writer interface {
	Append(ctx context.Context, e Entry) (Entry, error)
}

// Reader returns entries in append order.
type Reader interface {
	ListForSubmission(ctx context.Context, submissionID string) ([]Entry, error)
	ListForContext(ctx context.Context, contextID string, afterSequence int64, limit int) ([]Entry, error)
}
