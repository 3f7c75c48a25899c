package workflow

import (
	"context"
	"io"
	"time"

	"journalflow.org/internal/activity"
	"journalflow.org/internal/auth"
	"journalflow.org/internal/journal"
	"journalflow.org/internal/publication"
	"journalflow.org/internal/roles"
	"journalflow.org/internal/submission"
)

// ActivityLog is the append-only log plus its ordered reads.
type ActivityLog interface {
	activity.Writer
	activity.Reader
}

// Repos groups the per-entity stores. Inside WithinTx every repo shares the
// same atomic unit.
type Repos interface {
	Roles() roles.Store
	Versions() publication.Store
	Activity() ActivityLog
	Journals() journal.Store
	LibraryFiles() journal.LibraryStore
	Submissions() submission.Store
	SubmissionFiles() submission.FileStore
	Users() auth.Directory
}

// Store is the relational store collaborator. WithinTx commits all writes
// made through the supplied Repos when fn returns nil and discards them
// otherwise.
type Store interface {
	Repos
	WithinTx(ctx context.Context, fn func(Repos) error) error
}

// UsersCache is a read-through cache of the Users & Roles view. It is never
// consulted for permission decisions.
type UsersCache interface {
	Get(ctx context.Context, contextID string) ([]JournalUser, bool, error)
	Set(ctx context.Context, contextID string, users []JournalUser) error
	Invalidate(ctx context.Context, contextID string) error
}

// PublishScheduler arranges for PublishScheduled to run at the given time.
type PublishScheduler interface {
	SchedulePublish(ctx context.Context, versionID string, at time.Time) error
}

// ObjectStorage is the external blob store for library file uploads.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	DownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// ActivityPublisher fans committed entries out to live subscribers.
type ActivityPublisher interface {
	Publish(ctx context.Context, e activity.Entry) error
}

type localFeed struct{ f *activity.Feed }

func (l localFeed) Publish(_ context.Context, e activity.Entry) error {
	l.f.Publish(e)
	return nil
}
