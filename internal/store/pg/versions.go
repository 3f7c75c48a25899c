package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"journalflow.org/internal/publication"
	"journalflow.org/internal/submission"
)

type versionRepo repos

const versionColumns = `id, submission_id, context_id, version, status, published_at, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (publication.Version, error) {
	var (
		v           publication.Version
		status      string
		publishedAt sql.NullTime
	)
	if err := row.Scan(&v.ID, &v.SubmissionID, &v.ContextID, &v.Number, &status, &publishedAt, &v.Notes, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return publication.Version{}, err
	}
	v.Status = publication.Status(status)
	if publishedAt.Valid {
		at := publishedAt.Time.UTC()
		v.PublishedAt = &at
	}
	return v, nil
}

// Create numbers the version after the submission's latest one. The
// submission row is locked so concurrent creates serialise.
func (r versionRepo) Create(ctx context.Context, v publication.Version) (publication.Version, error) {
	if r.q == nil {
		return publication.Version{}, errUnavailable
	}
	var contextID string
	err := r.q.QueryRowContext(ctx, `select context_id from submissions where id = $1 for update`, v.SubmissionID).Scan(&contextID)
	if errors.Is(err, sql.ErrNoRows) {
		return publication.Version{}, submission.ErrNotFound
	}
	if err != nil {
		return publication.Version{}, err
	}
	if v.ID == "" {
		v.ID = newID()
	}
	if v.Status == "" {
		v.Status = publication.StatusDraft
	}
	out, err := scanVersion(r.q.QueryRowContext(ctx, `
		insert into submission_versions (id, submission_id, context_id, version, status, notes, created_at, updated_at)
		select $1, $2, $3, coalesce(max(version), 0) + 1, $4, $5, coalesce($6, now()), coalesce($6, now())
		from submission_versions
		where submission_id = $2
		returning `+versionColumns,
		v.ID, v.SubmissionID, contextID, string(v.Status), v.Notes, nullTime(v.CreatedAt)))
	if err != nil {
		return publication.Version{}, err
	}
	return out, nil
}

func (r versionRepo) Get(ctx context.Context, id string) (publication.Version, error) {
	if r.q == nil {
		return publication.Version{}, errUnavailable
	}
	v, err := scanVersion(r.q.QueryRowContext(ctx, `select `+versionColumns+` from submission_versions where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return publication.Version{}, publication.ErrNotFound
	}
	return v, err
}

func (r versionRepo) ListForSubmission(ctx context.Context, submissionID string) ([]publication.Version, error) {
	return r.list(ctx, `
		select `+versionColumns+`
		from submission_versions
		where submission_id = $1
		order by version
	`, submissionID)
}

// Apply is the compare-and-set transition: it only matches while the row
// still has c.From.
func (r versionRepo) Apply(ctx context.Context, c publication.Change) (publication.Version, error) {
	if r.q == nil {
		return publication.Version{}, errUnavailable
	}
	v, err := scanVersion(r.q.QueryRowContext(ctx, `
		update submission_versions
		set status = $3, published_at = $4, updated_at = now()
		where id = $1 and status = $2
		returning `+versionColumns,
		c.VersionID, string(c.From), string(c.To), c.PublishedAt))
	if !errors.Is(err, sql.ErrNoRows) {
		return v, err
	}
	var exists bool
	if err := r.q.QueryRowContext(ctx, `select exists(select 1 from submission_versions where id = $1)`, c.VersionID).Scan(&exists); err != nil {
		return publication.Version{}, err
	}
	if !exists {
		return publication.Version{}, publication.ErrNotFound
	}
	return publication.Version{}, publication.ErrStale
}

func (r versionRepo) ListDue(ctx context.Context, now time.Time, limit int) ([]publication.Version, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.list(ctx, `
		select `+versionColumns+`
		from submission_versions
		where status = 'scheduled' and published_at <= $1
		order by published_at
		limit $2
	`, now, limit)
}

func (r versionRepo) list(ctx context.Context, query string, args ...any) ([]publication.Version, error) {
	if r.q == nil {
		return nil, errUnavailable
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []publication.Version
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
