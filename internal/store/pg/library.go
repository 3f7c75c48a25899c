package pg

import (
	"context"
	"database/sql"
	"errors"

	"journalflow.org/internal/journal"
)

type libraryRepo repos

const libraryColumns = `id, context_id, label, description, stage, file_type, file_size, original_file_name, storage_path, remote_url, created_at, updated_at`

func scanLibraryFile(row rowScanner) (journal.LibraryFile, error) {
	var (
		f     journal.LibraryFile
		stage string
	)
	if err := row.Scan(&f.ID, &f.ContextID, &f.Label, &f.Description, &stage, &f.FileType, &f.FileSize,
		&f.OriginalFileName, &f.StoragePath, &f.RemoteURL, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return journal.LibraryFile{}, err
	}
	f.Stage = journal.Stage(stage)
	return f, nil
}

func (r libraryRepo) Create(ctx context.Context, f journal.LibraryFile) (journal.LibraryFile, error) {
	if r.q == nil {
		return journal.LibraryFile{}, errUnavailable
	}
	if f.ID == "" {
		f.ID = newID()
	}
	out, err := scanLibraryFile(r.q.QueryRowContext(ctx, `
		insert into library_files (id, context_id, label, description, stage, file_type, file_size,
			original_file_name, storage_path, remote_url, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, coalesce($11, now()), coalesce($11, now()))
		returning `+libraryColumns,
		f.ID, f.ContextID, f.Label, f.Description, string(f.Stage), f.FileType, f.FileSize,
		f.OriginalFileName, f.StoragePath, f.RemoteURL, nullTime(f.CreatedAt)))
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return journal.LibraryFile{}, journal.ErrNotFound
	}
	return out, err
}

func (r libraryRepo) Get(ctx context.Context, id string) (journal.LibraryFile, error) {
	if r.q == nil {
		return journal.LibraryFile{}, errUnavailable
	}
	f, err := scanLibraryFile(r.q.QueryRowContext(ctx, `select `+libraryColumns+` from library_files where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return journal.LibraryFile{}, journal.ErrNotFound
	}
	return f, err
}

func (r libraryRepo) Update(ctx context.Context, f journal.LibraryFile) (journal.LibraryFile, error) {
	if r.q == nil {
		return journal.LibraryFile{}, errUnavailable
	}
	out, err := scanLibraryFile(r.q.QueryRowContext(ctx, `
		update library_files
		set label = $2, description = $3, stage = $4, remote_url = $5, updated_at = coalesce($6, now())
		where id = $1
		returning `+libraryColumns,
		f.ID, f.Label, f.Description, string(f.Stage), f.RemoteURL, nullTime(f.UpdatedAt)))
	if errors.Is(err, sql.ErrNoRows) {
		return journal.LibraryFile{}, journal.ErrNotFound
	}
	return out, err
}

func (r libraryRepo) Delete(ctx context.Context, id string) error {
	if r.q == nil {
		return errUnavailable
	}
	res, err := r.q.ExecContext(ctx, `delete from library_files where id = $1`, id)
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

func (r libraryRepo) List(ctx context.Context, contextID string, stage journal.Stage) ([]journal.LibraryFile, error) {
	if r.q == nil {
		return nil, errUnavailable
	}
	rows, err := r.q.QueryContext(ctx, `
		select `+libraryColumns+`
		from library_files
		where context_id = $1 and ($2 = '' or stage = $2)
		order by created_at desc, id desc
	`, contextID, string(stage))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []journal.LibraryFile
	for rows.Next() {
		f, err := scanLibraryFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
