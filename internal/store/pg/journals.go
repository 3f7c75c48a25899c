package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"journalflow.org/internal/journal"
)

type journalRepo repos

const journalColumns = `id, name, path, description, is_public, settings, created_at, updated_at`

func scanJournal(row rowScanner) (journal.Journal, error) {
	var (
		j   journal.Journal
		raw []byte
	)
	if err := row.Scan(&j.ID, &j.Name, &j.Path, &j.Description, &j.IsPublic, &raw, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return journal.Journal{}, err
	}
	settings, err := journal.DecodeSettings(raw)
	if err != nil {
		return journal.Journal{}, fmt.Errorf("decode settings: %w", err)
	}
	j.Settings = settings
	return j, nil
}

func (r journalRepo) Create(ctx context.Context, j journal.Journal) (journal.Journal, error) {
	if r.q == nil {
		return journal.Journal{}, errUnavailable
	}
	settings, err := j.Settings.Encode()
	if err != nil {
		return journal.Journal{}, err
	}
	if j.ID == "" {
		j.ID = newID()
	}
	out, err := scanJournal(r.q.QueryRowContext(ctx, `
		insert into journals (id, name, path, description, is_public, settings, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, coalesce($7, now()), coalesce($7, now()))
		returning `+journalColumns,
		j.ID, j.Name, j.Path, j.Description, j.IsPublic, settings, nullTime(j.CreatedAt)))
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return journal.Journal{}, journal.ErrPathTaken
	}
	return out, err
}

func (r journalRepo) Get(ctx context.Context, id string) (journal.Journal, error) {
	if r.q == nil {
		return journal.Journal{}, errUnavailable
	}
	j, err := scanJournal(r.q.QueryRowContext(ctx, `select `+journalColumns+` from journals where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return journal.Journal{}, journal.ErrNotFound
	}
	return j, err
}

func (r journalRepo) Update(ctx context.Context, j journal.Journal) (journal.Journal, error) {
	if r.q == nil {
		return journal.Journal{}, errUnavailable
	}
	settings, err := j.Settings.Encode()
	if err != nil {
		return journal.Journal{}, err
	}
	out, err := scanJournal(r.q.QueryRowContext(ctx, `
		update journals
		set name = $2, path = $3, description = $4, is_public = $5, settings = $6, updated_at = coalesce($7, now())
		where id = $1
		returning `+journalColumns,
		j.ID, j.Name, j.Path, j.Description, j.IsPublic, settings, nullTime(j.UpdatedAt)))
	if errors.Is(err, sql.ErrNoRows) {
		return journal.Journal{}, journal.ErrNotFound
	}
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
		return journal.Journal{}, journal.ErrPathTaken
	}
	return out, err
}

// Delete relies on foreign-key cascades for roles, submissions, versions and
// library files.
func (r journalRepo) Delete(ctx context.Context, id string) error {
	if r.q == nil {
		return errUnavailable
	}
	res, err := r.q.ExecContext(ctx, `delete from journals where id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return journal.ErrNotFound
	}
	return nil
}
