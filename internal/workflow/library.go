package workflow

import (
	"context"
	"fmt"
	"io"
	"strings"

	"journalflow.org/internal/activity"
	"journalflow.org/internal/journal"
	"journalflow.org/internal/policy"
)

// Upload is file content streamed to object storage.
type Upload struct {
	FileName    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// NewLibraryFile describes a library file to create. Upload and RemoteURL
// may both be set.
type NewLibraryFile struct {
	ContextID   string        `json:"context_id"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
	Stage       journal.Stage `json:"stage"`
	RemoteURL   string        `json:"remote_url"`
	Upload      *Upload       `json:"-"`
}

// CreateLibraryFile uploads content (if any) and records the file. A failed
// commit removes the uploaded object again.
func (s *Service) CreateLibraryFile(ctx context.Context, actor string, in NewLibraryFile) (journal.LibraryFile, error) {
	var out journal.LibraryFile
	err := s.run(ctx, "create_library_file", func(ctx context.Context) error {
		if err := s.authorize(ctx, s.store, actor, policy.EditLibraryFile, policy.Journal(in.ContextID)); err != nil {
			return err
		}
		now := s.now()
		f := journal.LibraryFile{
			ContextID:   in.ContextID,
			Label:       strings.TrimSpace(in.Label),
			Description: strings.TrimSpace(in.Description),
			Stage:       in.Stage,
			RemoteURL:   strings.TrimSpace(in.RemoteURL),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if f.Stage == "" {
			f.Stage = journal.StageGeneral
		}
		if in.Upload != nil {
			if s.objects == nil {
				return newError(KindValidation, "file uploads are not configured")
			}
			f.StoragePath = journal.ObjectKey(in.ContextID, f.Label, in.Upload.FileName, now)
			f.OriginalFileName = in.Upload.FileName
			f.FileType = in.Upload.ContentType
			f.FileSize = in.Upload.Size
		}
		if err := f.Validate(); err != nil {
			return err
		}
		if _, err := s.store.Journals().Get(ctx, in.ContextID); err != nil {
			return err
		}
		if in.Upload != nil {
			if err := s.objects.Upload(ctx, f.StoragePath, in.Upload.Body, in.Upload.Size, in.Upload.ContentType); err != nil {
				return fmt.Errorf("upload library file: %w", err)
			}
		}
		var entry activity.Entry
		err := s.store.WithinTx(ctx, func(r Repos) error {
			if err := s.authorize(ctx, r, actor, policy.EditLibraryFile, policy.Journal(in.ContextID)); err != nil {
				return err
			}
			var err error
			out, err = r.LibraryFiles().Create(ctx, f)
			if err != nil {
				return err
			}
			entry, err = s.appendEntry(ctx, r, actor, libraryEntry(out, "added"))
			return err
		})
		if err != nil {
			s.removeObject(ctx, f.StoragePath)
			return err
		}
		s.committed(ctx, "library.create", entry, map[string]any{"file_id": out.ID})
		return nil
	})
	return out, err
}

// UpdateLibraryFile edits label, description, stage or remote URL.
func (s *Service) UpdateLibraryFile(ctx context.Context, actor, contextID, fileID string, u journal.LibraryUpdate) (journal.LibraryFile, error) {
	var out journal.LibraryFile
	err := s.run(ctx, "update_library_file", func(ctx context.Context) error {
		var entry activity.Entry
		err := s.store.WithinTx(ctx, func(r Repos) error {
			cur, err := journalFile(ctx, r, contextID, fileID)
			if err != nil {
				return err
			}
			if err := s.authorize(ctx, r, actor, policy.EditLibraryFile, policy.Journal(cur.ContextID)); err != nil {
				return err
			}
			next, err := u.Apply(cur)
			if err != nil {
				return err
			}
			next.UpdatedAt = s.now()
			out, err = r.LibraryFiles().Update(ctx, next)
			if err != nil {
				return err
			}
			entry, err = s.appendEntry(ctx, r, actor, libraryEntry(out, "updated"))
			return err
		})
		if err != nil {
			return err
		}
		s.committed(ctx, "library.update", entry, map[string]any{"file_id": out.ID})
		return nil
	})
	return out, err
}

// DeleteLibraryFile removes the record, then its uploaded object.
func (s *Service) DeleteLibraryFile(ctx context.Context, actor, contextID, fileID string) error {
	return s.run(ctx, "delete_library_file", func(ctx context.Context) error {
		var (
			entry activity.Entry
			cur   journal.LibraryFile
		)
		err := s.store.WithinTx(ctx, func(r Repos) error {
			var err error
			cur, err = journalFile(ctx, r, contextID, fileID)
			if err != nil {
				return err
			}
			if err := s.authorize(ctx, r, actor, policy.EditLibraryFile, policy.Journal(cur.ContextID)); err != nil {
				return err
			}
			if err := r.LibraryFiles().Delete(ctx, fileID); err != nil {
				return err
			}
			entry, err = s.appendEntry(ctx, r, actor, libraryEntry(cur, "deleted"))
			return err
		})
		if err != nil {
			return err
		}
		s.removeObject(ctx, cur.StoragePath)
		s.committed(ctx, "library.delete", entry, map[string]any{"file_id": fileID})
		return nil
	})
}

// ListLibraryFiles lists a journal's files, optionally filtered by stage.
func (s *Service) ListLibraryFiles(ctx context.Context, actor, contextID string, stage journal.Stage) ([]journal.LibraryFile, error) {
	var out []journal.LibraryFile
	err := s.run(ctx, "list_library_files", func(ctx context.Context) error {
		if stage != "" && !stage.Valid() {
			return newError(KindValidation, "unknown stage %q", stage)
		}
		if err := s.authorize(ctx, s.store, actor, policy.ViewLibraryFile, policy.Journal(contextID)); err != nil {
			return err
		}
		var err error
		out, err = s.store.LibraryFiles().List(ctx, contextID, stage)
		return err
	})
	return out, err
}

// LibraryFileDownloadURL returns a short-lived URL for an uploaded file, or
// the remote URL for link-only files.
func (s *Service) LibraryFileDownloadURL(ctx context.Context, actor, contextID, fileID string) (string, error) {
	var url string
	err := s.run(ctx, "library_file_download", func(ctx context.Context) error {
		f, err := journalFile(ctx, s.store, contextID, fileID)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, s.store, actor, policy.ViewLibraryFile, policy.Journal(f.ContextID)); err != nil {
			return err
		}
		if f.StoragePath == "" {
			url = f.RemoteURL
			return nil
		}
		if s.objects == nil {
			return newError(KindNotFound, "file storage is not configured")
		}
		url, err = s.objects.DownloadURL(ctx, f.StoragePath, s.downloadTTL)
		return err
	})
	return url, err
}

func libraryEntry(f journal.LibraryFile, what string) activity.Entry {
	return activity.Entry{
		ContextID: f.ContextID,
		Category:  activity.CategoryLibrary,
		Message:   fmt.Sprintf("Library file %q %s", f.Label, what),
		Metadata: map[string]any{
			"fileId": f.ID,
			"stage":  string(f.Stage),
			"source": f.Source(),
		},
	}
}

// journalFile loads fileID and reports it missing unless it belongs to the
// journal contextID.
func journalFile(ctx context.Context, r Repos, contextID, fileID string) (journal.LibraryFile, error) {
	f, err := r.LibraryFiles().Get(ctx, fileID)
	if err != nil {
		return journal.LibraryFile{}, err
	}
	if f.ContextID != contextID {
		return journal.LibraryFile{}, journal.ErrNotFound
	}
	return f, nil
}
