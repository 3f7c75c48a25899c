package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"journalflow.org/internal/journal"
	"journalflow.org/internal/submission"
)

type submissionRepo repos

// Create inserts the submission and its authors. Callers run it inside
// WithinTx so both land together.
func (r submissionRepo) Create(ctx context.Context, s submission.Submission) (submission.Submission, error) {
	if r.q == nil {
		return submission.Submission{}, errUnavailable
	}
	if s.ID == "" {
		s.ID = newID()
	}
	keywords, err := json.Marshal(nonNil(s.Keywords))
	if err != nil {
		return submission.Submission{}, fmt.Errorf("marshal keywords: %w", err)
	}
	err = r.q.QueryRowContext(ctx, `
		insert into submissions (id, context_id, submitter_id, title, abstract, keywords, language, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, coalesce($8, now()))
		returning created_at
	`, s.ID, s.ContextID, s.SubmitterID, s.Title, s.Abstract, keywords, s.Language, nullTime(s.CreatedAt)).Scan(&s.CreatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return submission.Submission{}, journal.ErrNotFound
		}
		return submission.Submission{}, err
	}
	for i, a := range s.Authors {
		if _, err := r.q.ExecContext(ctx, `
			insert into submission_authors (submission_id, seq, name, email, affiliation, country, orcid, corresponding)
			values ($1, $2, $3, $4, $5, $6, $7, $8)
		`, s.ID, i, a.Name, a.Email, a.Affiliation, a.Country, a.ORCID, a.Corresponding); err != nil {
			return submission.Submission{}, fmt.Errorf("insert author %d: %w", i, err)
		}
	}
	return s, nil
}

func (r submissionRepo) Get(ctx context.Context, id string) (submission.Submission, error) {
	if r.q == nil {
		return submission.Submission{}, errUnavailable
	}
	var (
		s        submission.Submission
		keywords []byte
	)
	err := r.q.QueryRowContext(ctx, `
		select id, context_id, submitter_id, title, abstract, keywords, language, created_at
		from submissions
		where id = $1
	`, id).Scan(&s.ID, &s.ContextID, &s.SubmitterID, &s.Title, &s.Abstract, &keywords, &s.Language, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return submission.Submission{}, submission.ErrNotFound
	}
	if err != nil {
		return submission.Submission{}, err
	}
	if len(keywords) > 0 {
		if err := json.Unmarshal(keywords, &s.Keywords); err != nil {
			return submission.Submission{}, fmt.Errorf("decode keywords: %w", err)
		}
	}

	rows, err := r.q.QueryContext(ctx, `
		select name, email, affiliation, country, orcid, corresponding
		from submission_authors
		where submission_id = $1
		order by seq
	`, id)
	if err != nil {
		return submission.Submission{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var a submission.Author
		if err := rows.Scan(&a.Name, &a.Email, &a.Affiliation, &a.Country, &a.ORCID, &a.Corresponding); err != nil {
			return submission.Submission{}, err
		}
		s.Authors = append(s.Authors, a)
	}
	return s, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
