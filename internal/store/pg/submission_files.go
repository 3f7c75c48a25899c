package pg

import (
	"context"
	"database/sql"
	"errors"

	"journalflow.org/internal/submission"
)

type submissionFileRepo repos

const submissionFileColumns = `id, submission_id, context_id, label, stage, kind, round, visible_to_authors,
	original_file_name, file_type, file_size, storage_path, uploaded_by, uploaded_at`

func scanSubmissionFile(row rowScanner) (submission.File, error) {
	var (
		f     submission.File
		stage string
	)
	if err := row.Scan(&f.ID, &f.SubmissionID, &f.ContextID, &f.Label, &stage, &f.Kind, &f.Round, &f.VisibleToAuthors,
		&f.OriginalFileName, &f.FileType, &f.FileSize, &f.StoragePath, &f.UploadedBy, &f.UploadedAt); err != nil {
		return submission.File{}, err
	}
	f.Stage = submission.FileStage(stage)
	return f, nil
}

func (r submissionFileRepo) Create(ctx context.Context, f submission.File) (submission.File, error) {
	if r.q == nil {
		return submission.File{}, errUnavailable
	}
	if f.ID == "" {
		f.ID = newID()
	}
	out, err := scanSubmissionFile(r.q.QueryRowContext(ctx, `
		insert into submission_files (id, submission_id, context_id, label, stage, kind, round, visible_to_authors,
			original_file_name, file_type, file_size, storage_path, uploaded_by, uploaded_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, coalesce($14, now()))
		returning `+submissionFileColumns,
		f.ID, f.SubmissionID, f.ContextID, f.Label, string(f.Stage), f.Kind, f.Round, f.VisibleToAuthors,
		f.OriginalFileName, f.FileType, f.FileSize, f.StoragePath, f.UploadedBy, nullTime(f.UploadedAt)))
	if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
		return submission.File{}, submission.ErrNotFound
	}
	return out, err
}

func (r submissionFileRepo) Get(ctx context.Context, id string) (submission.File, error) {
	if r.q == nil {
		return submission.File{}, errUnavailable
	}
	f, err := scanSubmissionFile(r.q.QueryRowContext(ctx, `select `+submissionFileColumns+` from submission_files where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return submission.File{}, submission.ErrFileNotFound
	}
	return f, err
}

func (r submissionFileRepo) ListForSubmission(ctx context.Context, submissionID string) ([]submission.File, error) {
	if r.q == nil {
		return nil, errUnavailable
	}
	rows, err := r.q.QueryContext(ctx, `
		select `+submissionFileColumns+`
		from submission_files
		where submission_id = $1
		order by uploaded_at, id
	`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []submission.File
	for rows.Next() {
		f, err := scanSubmissionFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
