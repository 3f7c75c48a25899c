package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"journalflow.org/internal/activity"
	"journalflow.org/internal/obs"
	"journalflow.org/internal/policy"
	"journalflow.org/internal/publication"
)

// ErrNotDue is returned by PublishScheduled when the version's date has not
// arrived yet.
var ErrNotDue = errors.New("workflow: scheduled version is not due yet")

// ScheduleVersion moves a draft version of submissionID to scheduled for
// publishDate.
func (s *Service) ScheduleVersion(ctx context.Context, actor, submissionID, versionID string, publishDate time.Time) (publication.Version, error) {
	var out publication.Version
	err := s.run(ctx, "schedule_version", func(ctx context.Context) error {
		var entry activity.Entry
		err := s.store.WithinTx(ctx, func(r Repos) error {
			v, err := submissionVersion(ctx, r, submissionID, versionID)
			if err != nil {
				return err
			}
			if err := s.authorize(ctx, r, actor, policy.SchedulePublication, policy.Journal(v.ContextID)); err != nil {
				return err
			}
			plan := func(cur publication.Version) (publication.Change, error) {
				return publication.PlanSchedule(cur, publishDate, s.now())
			}
			out, err = s.transition(ctx, r, v, plan)
			if err != nil {
				return err
			}
			entry, err = s.appendEntry(ctx, r, actor, publicationEntry(out, "scheduled for publication on "+out.PublishedAt.Format("2006-01-02")))
			return err
		})
		if err != nil {
			return err
		}
		if s.scheduler != nil {
			if err := s.scheduler.SchedulePublish(ctx, out.ID, *out.PublishedAt); err != nil {
				s.log.Warn().Err(err).Str("version_id", out.ID).Msg("enqueue scheduled publish failed; sweep will pick it up")
			}
		}
		s.committed(ctx, "publication.schedule", entry, map[string]any{"version_id": out.ID})
		return nil
	})
	return out, err
}

// PublishVersion publishes a draft or scheduled version of submissionID
// immediately.
func (s *Service) PublishVersion(ctx context.Context, actor, submissionID, versionID string) (publication.Version, error) {
	var out publication.Version
	err := s.run(ctx, "publish_version", func(ctx context.Context) error {
		var entry activity.Entry
		err := s.store.WithinTx(ctx, func(r Repos) error {
			v, err := submissionVersion(ctx, r, submissionID, versionID)
			if err != nil {
				return err
			}
			if err := s.authorize(ctx, r, actor, policy.PublishSubmission, policy.Journal(v.ContextID)); err != nil {
				return err
			}
			plan := func(cur publication.Version) (publication.Change, error) {
				return publication.PlanPublish(cur, s.now())
			}
			out, err = s.transition(ctx, r, v, plan)
			if err != nil {
				return err
			}
			entry, err = s.appendEntry(ctx, r, actor, publicationEntry(out, "published"))
			return err
		})
		if err != nil {
			return err
		}
		obs.ObservePublished("manual")
		s.committed(ctx, "publication.publish", entry, map[string]any{"version_id": out.ID})
		return nil
	})
	return out, err
}

// PublishScheduled publishes one scheduled version on behalf of the system
// once its date has passed. Versions that are no longer scheduled are skipped
// and reported as published=false.
func (s *Service) PublishScheduled(ctx context.Context, versionID string) (published bool, err error) {
	notDue := false
	err = s.run(ctx, "publish_scheduled", func(ctx context.Context) error {
		var entry activity.Entry
		err := s.store.WithinTx(ctx, func(r Repos) error {
			v, err := r.Versions().Get(ctx, versionID)
			if err != nil {
				return err
			}
			if v.Status != publication.StatusScheduled {
				return nil
			}
			if v.PublishedAt != nil && v.PublishedAt.After(s.now()) {
				notDue = true
				return nil
			}
			c, err := publication.PlanPublish(v, s.now())
			if err != nil {
				return err
			}
			if v.PublishedAt != nil {
				c.PublishedAt = *v.PublishedAt
			}
			out, err := r.Versions().Apply(ctx, c)
			if errors.Is(err, publication.ErrStale) {
				return nil
			}
			if err != nil {
				return err
			}
			entry, err = s.appendEntry(ctx, r, SystemActor, publicationEntry(out, "published on schedule"))
			if err != nil {
				return err
			}
			published = true
			return nil
		})
		if err != nil || !published {
			return err
		}
		obs.ObservePublished("schedule")
		s.committed(ctx, "publication.publish_scheduled", entry, map[string]any{"version_id": versionID})
		return nil
	})
	if err == nil && notDue {
		return false, ErrNotDue
	}
	return published, err
}

// PublishDue publishes every scheduled version whose date has passed and
// returns how many were published. It keeps going past individual failures.
func (s *Service) PublishDue(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	var due []publication.Version
	err := s.run(ctx, "publish_due", func(ctx context.Context) error {
		var err error
		due, err = s.store.Versions().ListDue(ctx, s.now(), limit)
		return err
	})
	if err != nil {
		return 0, err
	}
	count := 0
	var errs []error
	for _, v := range due {
		ok, err := s.PublishScheduled(ctx, v.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("version %s: %w", v.ID, err))
			continue
		}
		if ok {
			count++
		}
	}
	return count, errors.Join(errs...)
}

// transition plans and applies a compare-and-set change. When another caller
// changed the version first, the fresh state is planned again so the loser
// sees the precise rejection.
func (s *Service) transition(ctx context.Context, r Repos, v publication.Version, plan func(publication.Version) (publication.Change, error)) (publication.Version, error) {
	c, err := plan(v)
	if err != nil {
		return publication.Version{}, err
	}
	out, err := r.Versions().Apply(ctx, c)
	if !errors.Is(err, publication.ErrStale) {
		return out, err
	}
	cur, gerr := r.Versions().Get(ctx, v.ID)
	if gerr != nil {
		return publication.Version{}, gerr
	}
	if _, perr := plan(cur); perr != nil {
		return publication.Version{}, perr
	}
	return publication.Version{}, newError(KindInvalidTransition, "version changed concurrently; reload and try again")
}

// submissionVersion loads versionID and reports it missing unless it belongs
// to submissionID.
func submissionVersion(ctx context.Context, r Repos, submissionID, versionID string) (publication.Version, error) {
	v, err := r.Versions().Get(ctx, versionID)
	if err != nil {
		return publication.Version{}, err
	}
	if v.SubmissionID != submissionID {
		return publication.Version{}, publication.ErrNotFound
	}
	return v, nil
}

func publicationEntry(v publication.Version, what string) activity.Entry {
	meta := map[string]any{"versionId": v.ID, "status": string(v.Status)}
	if v.PublishedAt != nil {
		meta["publishDate"] = v.PublishedAt.UTC().Format(time.RFC3339)
	}
	return activity.Entry{
		ContextID:    v.ContextID,
		SubmissionID: v.SubmissionID,
		Category:     activity.CategoryPublication,
		Message:      fmt.Sprintf("Publication version %d %s", v.Number, what),
		Metadata:     meta,
	}
}

// CreateVersion adds a new draft version numbered after the latest one.
func (s *Service) CreateVersion(ctx context.Context, actor, submissionID, notes string) (publication.Version, error) {
	var out publication.Version
	err := s.run(ctx, "create_version", func(ctx context.Context) error {
		var entry activity.Entry
		err := s.store.WithinTx(ctx, func(r Repos) error {
			sub, err := r.Submissions().Get(ctx, submissionID)
			if err != nil {
				return err
			}
			if err := s.authorize(ctx, r, actor, policy.CreateVersion, policy.Journal(sub.ContextID)); err != nil {
				return err
			}
			out, err = r.Versions().Create(ctx, publication.Version{
				SubmissionID: sub.ID,
				ContextID:    sub.ContextID,
				Status:       publication.StatusDraft,
				Notes:        strings.TrimSpace(notes),
				CreatedAt:    s.now(),
			})
			if err != nil {
				return err
			}
			entry, err = s.appendEntry(ctx, r, actor, publicationEntry(out, "created"))
			return err
		})
		if err != nil {
			return err
		}
		s.committed(ctx, "publication.create_version", entry, map[string]any{"version_id": out.ID})
		return nil
	})
	return out, err
}
