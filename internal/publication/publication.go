// Package publication holds the publication version lifecycle:
// draft -> scheduled -> published, or draft -> published. Published is terminal.
package publication

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusScheduled, StatusPublished:
		return true
	}
	return false
}

var (
	ErrNotFound          = errors.New("publication: version not found")
	ErrInvalidTransition = errors.New("publication: invalid transition")
	ErrTerminalState     = errors.New("publication: version already published")
	ErrInvalidDate       = errors.New("publication: invalid publish date")
	// ErrStale is returned by Store.Apply when the stored status no longer
	// matches Change.From.
	ErrStale = errors.New("publication: status changed concurrently")
)

// Version is one publishable instance of a submission.
type Version struct {
	ID           string     `json:"id"`
	SubmissionID string     `json:"submission_id"`
	ContextID    string     `json:"context_id"`
	Number       int        `json:"version"`
	Status       Status     `json:"status"`
	PublishedAt  *time.Time `json:"published_at,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Change is a planned compare-and-set transition.
type Change struct {
	VersionID   string
	From        Status
	To          Status
	PublishedAt time.Time
}

// Event names the transition for activity records.
func (c Change) Event() string {
	switch c.To {
	case StatusScheduled:
		return "scheduled"
	case StatusPublished:
		return "published"
	}
	return string(c.To)
}

// PlanSchedule validates scheduling v for publishDate. Only drafts can be
// scheduled and the date must lie strictly after now.
func PlanSchedule(v Version, publishDate, now time.Time) (Change, error) {
	switch v.Status {
	case StatusPublished:
		return Change{}, ErrTerminalState
	case StatusDraft:
	default:
		return Change{}, fmt.Errorf("%w: cannot schedule a %s version", ErrInvalidTransition, v.Status)
	}
	if publishDate.IsZero() {
		return Change{}, fmt.Errorf("%w: publish date is required", ErrInvalidDate)
	}
	if !publishDate.After(now) {
		return Change{}, fmt.Errorf("%w: publish date must be in the future", ErrInvalidDate)
	}
	return Change{
		VersionID:   v.ID,
		From:        v.Status,
		To:          StatusScheduled,
		PublishedAt: publishDate.UTC(),
	}, nil
}

// PlanPublish validates publishing v immediately at now.
func PlanPublish(v Version, now time.Time) (Change, error) {
	switch v.Status {
	case StatusPublished:
		return Change{}, ErrTerminalState
	case StatusDraft, StatusScheduled:
	default:
		return Change{}, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, v.Status)
	}
	return Change{
		VersionID:   v.ID,
		From:        v.Status,
		To:          StatusPublished,
		PublishedAt: now.UTC(),
	}, nil
}

// Store persists versions. Apply must be a conditional update on the current
// status, never a read followed by a write.
type Store interface {
	Create(ctx context.Context, v Version) (Version, error)
	Get(ctx context.Context, id string) (Version, error)
	ListForSubmission(ctx context.Context, submissionID string) ([]Version, error)
	Apply(ctx context.Context, c Change) (Version, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]Version, error)
}
