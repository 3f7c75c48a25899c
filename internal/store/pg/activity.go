package pg

import (
	"context"
	"encoding/json"
	"fmt"

	"journalflow.org/internal/activity"
)

type activityRepo repos

const activityColumns = `id, sequence, coalesce(context_id, ''), coalesce(submission_id, ''), actor_id, category, message, metadata, created_at`

func scanEntry(row rowScanner) (activity.Entry, error) {
	var (
		e        activity.Entry
		category string
		rawMeta  []byte
	)
	if err := row.Scan(&e.ID, &e.Sequence, &e.ContextID, &e.SubmissionID, &e.ActorID, &category, &e.Message, &rawMeta, &e.CreatedAt); err != nil {
		return activity.Entry{}, err
	}
	e.Category = activity.Category(category)
	if len(rawMeta) > 0 && string(rawMeta) != "{}" {
		if err := json.Unmarshal(rawMeta, &e.Metadata); err != nil {
			return activity.Entry{}, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return e, nil
}

func (r activityRepo) Append(ctx context.Context, e activity.Entry) (activity.Entry, error) {
	if r.q == nil {
		return activity.Entry{}, errUnavailable
	}
	metaJSON := []byte("{}")
	if len(e.Metadata) > 0 {
		b, err := json.Marshal(e.Metadata)
		if err != nil {
			return activity.Entry{}, fmt.Errorf("marshal metadata: %w", err)
		}
		metaJSON = b
	}
	if e.ID == "" {
		e.ID = newID()
	}
	return scanEntry(r.q.QueryRowContext(ctx, `
		insert into submission_activity_logs (id, context_id, submission_id, actor_id, category, message, metadata, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, coalesce($8, now()))
		returning `+activityColumns,
		e.ID, nullIfEmpty(e.ContextID), nullIfEmpty(e.SubmissionID), e.ActorID, string(e.Category), e.Message, metaJSON, nullTime(e.CreatedAt)))
}

func (r activityRepo) ListForSubmission(ctx context.Context, submissionID string) ([]activity.Entry, error) {
	return r.list(ctx, `
		select `+activityColumns+`
		from submission_activity_logs
		where submission_id = $1
		order by sequence
	`, submissionID)
}

func (r activityRepo) ListForContext(ctx context.Context, contextID string, afterSequence int64, limit int) ([]activity.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	return r.list(ctx, `
		select `+activityColumns+`
		from submission_activity_logs
		where context_id = $1 and sequence > $2
		order by sequence
		limit $3
	`, contextID, afterSequence, limit)
}

func (r activityRepo) list(ctx context.Context, query string, args ...any) ([]activity.Entry, error) {
	if r.q == nil {
		return nil, errUnavailable
	}
	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []activity.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
