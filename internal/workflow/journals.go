package workflow

import (
	"context"
	"fmt"

	"journalflow.org/internal/activity"
	"journalflow.org/internal/journal"
	"journalflow.org/internal/policy"
)

// CreateJournal creates a journal with default settings. Site admins only.
func (s *Service) CreateJournal(ctx context.Context, actor string, in journal.Input) (journal.Journal, error) {
	var out journal.Journal
	err := s.run(ctx, "create_journal", func(ctx context.Context) error {
		in = in.Normalize()
		if err := in.Validate(); err != nil {
			return err
		}
		var entry activity.Entry
		err := s.store.WithinTx(ctx, func(r Repos) error {
			if err := s.authorize(ctx, r, actor, policy.CreateJournal, policy.Site()); err != nil {
				return err
			}
			now := s.now()
			var err error
			out, err = r.Journals().Create(ctx, journal.Journal{
				Name:        in.Name,
				Path:        in.Path,
				Description: in.Description,
				IsPublic:    in.IsPublic,
				Settings:    journal.DefaultSettings(),
				CreatedAt:   now,
				UpdatedAt:   now,
			})
			if err != nil {
				return err
			}
			entry, err = s.appendEntry(ctx, r, actor, activity.Entry{
				ContextID: out.ID,
				Category:  activity.CategoryJournal,
				Message:   fmt.Sprintf("Journal %q created", out.Name),
				Metadata:  map[string]any{"path": out.Path},
			})
			return err
		})
		if err != nil {
			return err
		}
		s.committed(ctx, "journal.create", entry, map[string]any{"path": out.Path})
		return nil
	})
	return out, err
}

// UpdateJournal applies a partial update, merging settings over the current ones.
func (s *Service) UpdateJournal(ctx context.Context, actor, contextID string, u journal.Update) (journal.Journal, error) {
	var out journal.Journal
	err := s.run(ctx, "update_journal", func(ctx context.Context) error {
		var entry activity.Entry
		err := s.store.WithinTx(ctx, func(r Repos) error {
			if err := s.authorize(ctx, r, actor, policy.EditJournalSettings, policy.Journal(contextID)); err != nil {
				return err
			}
			cur, err := r.Journals().Get(ctx, contextID)
			if err != nil {
				return err
			}
			next, err := u.Apply(cur)
			if err != nil {
				return err
			}
			next.UpdatedAt = s.now()
			out, err = r.Journals().Update(ctx, next)
			if err != nil {
				return err
			}
			entry, err = s.appendEntry(ctx, r, actor, activity.Entry{
				ContextID: out.ID,
				Category:  activity.CategoryJournal,
				Message:   "Journal settings updated",
				Metadata:  map[string]any{"settingsChanged": len(u.Settings) > 0},
			})
			return err
		})
		if err != nil {
			return err
		}
		s.committed(ctx, "journal.update", entry, nil)
		return nil
	})
	return out, err
}

// DeleteJournal removes a journal with its role assignments, submissions and
// library files. Activity entries are kept. Uploaded objects are removed
// after commit on a best-effort basis.
func (s *Service) DeleteJournal(ctx context.Context, actor, contextID string) error {
	return s.run(ctx, "delete_journal", func(ctx context.Context) error {
		var (
			entry activity.Entry
			files []journal.LibraryFile
		)
		err := s.store.WithinTx(ctx, func(r Repos) error {
			if err := s.authorize(ctx, r, actor, policy.DeleteJournal, policy.Journal(contextID)); err != nil {
				return err
			}
			j, err := r.Journals().Get(ctx, contextID)
			if err != nil {
				return err
			}
			files, err = r.LibraryFiles().List(ctx, contextID, "")
			if err != nil {
				return err
			}
			if err := r.Journals().Delete(ctx, contextID); err != nil {
				return err
			}
			entry, err = s.appendEntry(ctx, r, actor, activity.Entry{
				ContextID: contextID,
				Category:  activity.CategoryJournal,
				Message:   fmt.Sprintf("Journal %q deleted", j.Name),
				Metadata:  map[string]any{"path": j.Path, "libraryFiles": len(files)},
			})
			return err
		})
		if err != nil {
			return err
		}
		s.invalidateUsers(ctx, contextID)
		for _, f := range files {
			s.removeObject(ctx, f.StoragePath)
		}
		s.committed(ctx, "journal.delete", entry, nil)
		return nil
	})
}

func (s *Service) removeObject(ctx context.Context, key string) {
	if s.objects == nil || key == "" {
		return
	}
	if err := s.objects.Delete(ctx, key); err != nil {
		s.log.Warn().Err(err).Str("object_key", key).Msg("object cleanup failed")
	}
}
