package workflow

import (
	"context"
	"fmt"

	"journalflow.org/internal/activity"
	"journalflow.org/internal/policy"
	"journalflow.org/internal/publication"
	"journalflow.org/internal/submission"
)

// CreatedSubmission is the result of CreateSubmission.
type CreatedSubmission struct {
	Submission submission.Submission `json:"submission"`
	Version    publication.Version   `json:"version"`
}

// CreateSubmission stores a submission together with its first draft version.
func (s *Service) CreateSubmission(ctx context.Context, actor string, in submission.Submission) (CreatedSubmission, error) {
	var out CreatedSubmission
	err := s.run(ctx, "create_submission", func(ctx context.Context) error {
		in = in.Normalize()
		in.SubmitterID = actor
		if err := in.Validate(); err != nil {
			return err
		}
		var entry activity.Entry
		err := s.store.WithinTx(ctx, func(r Repos) error {
			if err := s.authorize(ctx, r, actor, policy.CreateSubmission, policy.Journal(in.ContextID)); err != nil {
				return err
			}
			if _, err := r.Journals().Get(ctx, in.ContextID); err != nil {
				return err
			}
			now := s.now()
			in.CreatedAt = now
			sub, err := r.Submissions().Create(ctx, in)
			if err != nil {
				return err
			}
			v, err := r.Versions().Create(ctx, publication.Version{
				SubmissionID: sub.ID,
				ContextID:    sub.ContextID,
				Status:       publication.StatusDraft,
				CreatedAt:    now,
			})
			if err != nil {
				return err
			}
			out = CreatedSubmission{Submission: sub, Version: v}
			entry, err = s.appendEntry(ctx, r, actor, activity.Entry{
				ContextID:    sub.ContextID,
				SubmissionID: sub.ID,
				Category:     activity.CategorySubmission,
				Message:      fmt.Sprintf("Submission %q created", sub.Title),
				Metadata:     map[string]any{"versionId": v.ID, "authors": len(sub.Authors)},
			})
			return err
		})
		if err != nil {
			return err
		}
		s.committed(ctx, "submission.create", entry, nil)
		return nil
	})
	return out, err
}

// ListActivity returns a submission's activity entries in append order.
func (s *Service) ListActivity(ctx context.Context, actor, submissionID string) ([]activity.Entry, error) {
	var out []activity.Entry
	err := s.run(ctx, "list_activity", func(ctx context.Context) error {
		sub, err := s.store.Submissions().Get(ctx, submissionID)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, s.store, actor, policy.ViewActivity, policy.Journal(sub.ContextID)); err != nil {
			return err
		}
		out, err = s.store.Activity().ListForSubmission(ctx, submissionID)
		return err
	})
	return out, err
}

// SubscribeActivity opens a live feed of a journal's committed activity.
// Entries after afterSequence that are already stored are returned as
// backlog; the channel may repeat some of them, so callers skip sequences
// they have seen. The channel closes when ctx ends.
func (s *Service) SubscribeActivity(ctx context.Context, actor, contextID string, afterSequence int64) ([]activity.Entry, <-chan activity.Entry, error) {
	if s.feed == nil {
		return nil, nil, newError(KindNotFound, "live activity is not enabled")
	}
	var backlog []activity.Entry
	err := s.run(ctx, "subscribe_activity", func(ctx context.Context) error {
		if err := s.authorize(ctx, s.store, actor, policy.ViewActivity, policy.Journal(contextID)); err != nil {
			return err
		}
		if _, err := s.store.Journals().Get(ctx, contextID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	ch := s.feed.Subscribe(ctx, contextID)
	if afterSequence > 0 {
		err = s.run(ctx, "activity_backlog", func(ctx context.Context) error {
			var err error
			backlog, err = s.store.Activity().ListForContext(ctx, contextID, afterSequence, 500)
			return err
		})
		if err != nil {
			return nil, nil, err
		}
	}
	return backlog, ch, nil
}
