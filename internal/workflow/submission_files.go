package workflow

import (
	"context"
	"fmt"
	"strings"

	"journalflow.org/internal/activity"
	"journalflow.org/internal/policy"
	"journalflow.org/internal/submission"
)

// NewSubmissionFile describes an upload attached to a submission.
type NewSubmissionFile struct {
	SubmissionID     string               `json:"submission_id"`
	Label            string               `json:"label"`
	Stage            submission.FileStage `json:"stage"`
	Kind             string               `json:"kind"`
	Round            int                  `json:"round"`
	VisibleToAuthors bool                 `json:"visible_to_authors"`
	Upload           *Upload              `json:"-"`
}

// fileAccess is how an actor reaches a submission's files.
type fileAccess int

const (
	accessEditor fileAccess = iota + 1
	accessOwner
)

// submissionFileAccess grants editors every file of the journal's
// submissions and authors the files of submissions they submitted.
func (s *Service) submissionFileAccess(ctx context.Context, r Repos, actor string, sub submission.Submission) (fileAccess, error) {
	held, err := s.rolesIn(ctx, r, actor, sub.ContextID)
	if err != nil {
		return 0, err
	}
	pctx := policy.Journal(sub.ContextID)
	if policy.CanPerform(held, policy.EditSubmissionFiles, pctx) {
		return accessEditor, nil
	}
	if sub.SubmitterID == actor && policy.CanPerform(held, policy.AuthorSubmissionFiles, pctx) {
		return accessOwner, nil
	}
	return 0, newError(KindForbidden, "you are not allowed to %s", describe(policy.EditSubmissionFiles))
}

// UploadSubmissionFile stores content for a submission and records it.
// Authors may only add files to their own submissions in the submission,
// review and copyediting stages, and their files are always visible to
// authors. A failed commit removes the uploaded object again.
func (s *Service) UploadSubmissionFile(ctx context.Context, actor string, in NewSubmissionFile) (submission.File, error) {
	var out submission.File
	err := s.run(ctx, "upload_submission_file", func(ctx context.Context) error {
		if in.Upload == nil {
			return newError(KindValidation, "a file is required")
		}
		if s.objects == nil {
			return newError(KindValidation, "file uploads are not configured")
		}
		sub, err := s.store.Submissions().Get(ctx, in.SubmissionID)
		if err != nil {
			return err
		}
		access, err := s.submissionFileAccess(ctx, s.store, actor, sub)
		if err != nil {
			return err
		}
		now := s.now()
		f := submission.File{
			SubmissionID:     sub.ID,
			ContextID:        sub.ContextID,
			Label:            strings.TrimSpace(in.Label),
			Stage:            in.Stage,
			Kind:             strings.TrimSpace(in.Kind),
			Round:            in.Round,
			VisibleToAuthors: in.VisibleToAuthors,
			OriginalFileName: in.Upload.FileName,
			FileType:         in.Upload.ContentType,
			FileSize:         in.Upload.Size,
			UploadedBy:       actor,
			UploadedAt:       now,
		}
		if f.Stage == "" {
			f.Stage = submission.FileStageSubmission
		}
		if f.Kind == "" {
			f.Kind = submission.DefaultFileKind
		}
		if f.Round == 0 {
			f.Round = 1
		}
		if access == accessOwner {
			if !f.Stage.AuthorStage() {
				return newError(KindForbidden, "authors cannot add files in the %s stage", f.Stage)
			}
			f.VisibleToAuthors = true
		}
		f.StoragePath = submission.FileObjectKey(sub.ID, f.Stage, f.Label, in.Upload.FileName, now)
		if err := f.Validate(); err != nil {
			return err
		}
		if err := s.objects.Upload(ctx, f.StoragePath, in.Upload.Body, in.Upload.Size, in.Upload.ContentType); err != nil {
			return fmt.Errorf("upload submission file: %w", err)
		}

		var entry activity.Entry
		err = s.store.WithinTx(ctx, func(r Repos) error {
			if _, err := s.submissionFileAccess(ctx, r, actor, sub); err != nil {
				return err
			}
			var err error
			out, err = r.SubmissionFiles().Create(ctx, f)
			if err != nil {
				return err
			}
			entry, err = s.appendEntry(ctx, r, actor, submissionFileEntry(out, fmt.Sprintf("added to the %s stage", out.Stage)))
			return err
		})
		if err != nil {
			s.removeObject(ctx, f.StoragePath)
			return err
		}
		s.committed(ctx, "submission_file.upload", entry, map[string]any{"file_id": out.ID})
		return nil
	})
	return out, err
}

// ListSubmissionFiles returns a submission's files in upload order. Authors
// only see files marked visible to authors.
func (s *Service) ListSubmissionFiles(ctx context.Context, actor, submissionID string) ([]submission.File, error) {
	var out []submission.File
	err := s.run(ctx, "list_submission_files", func(ctx context.Context) error {
		sub, err := s.store.Submissions().Get(ctx, submissionID)
		if err != nil {
			return err
		}
		access, err := s.submissionFileAccess(ctx, s.store, actor, sub)
		if err != nil {
			return err
		}
		files, err := s.store.SubmissionFiles().ListForSubmission(ctx, submissionID)
		if err != nil {
			return err
		}
		for _, f := range files {
			if access == accessOwner && !f.VisibleToAuthors {
				continue
			}
			out = append(out, f)
		}
		return nil
	})
	return out, err
}

// SubmissionFileDownloadURL returns a short-lived URL for fileID and records
// the download in the submission's activity.
func (s *Service) SubmissionFileDownloadURL(ctx context.Context, actor, submissionID, fileID string) (string, error) {
	var url string
	err := s.run(ctx, "submission_file_download", func(ctx context.Context) error {
		if s.objects == nil {
			return newError(KindNotFound, "file storage is not configured")
		}
		var (
			entry activity.Entry
			f     submission.File
		)
		err := s.store.WithinTx(ctx, func(r Repos) error {
			var err error
			f, err = r.SubmissionFiles().Get(ctx, fileID)
			if err != nil {
				return err
			}
			if f.SubmissionID != submissionID {
				return submission.ErrFileNotFound
			}
			sub, err := r.Submissions().Get(ctx, submissionID)
			if err != nil {
				return err
			}
			access, err := s.submissionFileAccess(ctx, r, actor, sub)
			if err != nil {
				return err
			}
			if access == accessOwner && !f.VisibleToAuthors {
				return submission.ErrFileNotFound
			}
			entry, err = s.appendEntry(ctx, r, actor, submissionFileEntry(f, "downloaded"))
			return err
		})
		if err != nil {
			return err
		}
		url, err = s.objects.DownloadURL(ctx, f.StoragePath, s.downloadTTL)
		if err != nil {
			return err
		}
		s.committed(ctx, "submission_file.download", entry, map[string]any{"file_id": f.ID})
		return nil
	})
	return url, err
}

func submissionFileEntry(f submission.File, what string) activity.Entry {
	return activity.Entry{
		ContextID:    f.ContextID,
		SubmissionID: f.SubmissionID,
		Category:     activity.CategoryFiles,
		Message:      fmt.Sprintf("File %q %s", f.Label, what),
		Metadata: map[string]any{
			"fileId":   f.ID,
			"stage":    string(f.Stage),
			"label":    f.Label,
			"fileSize": f.FileSize,
		},
	}
}
