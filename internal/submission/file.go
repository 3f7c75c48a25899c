package submission

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// FileStage is the workflow stage a submission file was added in.
type FileStage string

const (
	FileStageSubmission  FileStage = "submission"
	FileStageReview      FileStage = "review"
	FileStageCopyediting FileStage = "copyediting"
	FileStageProduction  FileStage = "production"
)

var FileStages = []FileStage{FileStageSubmission, FileStageReview, FileStageCopyediting, FileStageProduction}

func (s FileStage) Valid() bool {
	for _, st := range FileStages {
		if s == st {
			return true
		}
	}
	return false
}

// AuthorStage reports whether authors may add files in this stage.
func (s FileStage) AuthorStage() bool {
	return s == FileStageSubmission || s == FileStageReview || s == FileStageCopyediting
}

// DefaultFileKind applies when an upload names no kind.
const DefaultFileKind = "manuscript"

// File is an uploaded document attached to a submission.
type File struct {
	ID               string    `json:"id"`
	SubmissionID     string    `json:"submission_id"`
	ContextID        string    `json:"context_id"`
	Label            string    `json:"label"`
	Stage            FileStage `json:"stage"`
	Kind             string    `json:"kind"`
	Round            int       `json:"round"`
	VisibleToAuthors bool      `json:"visible_to_authors"`
	OriginalFileName string    `json:"original_file_name"`
	FileType         string    `json:"file_type,omitempty"`
	FileSize         int64     `json:"file_size"`
	StoragePath      string    `json:"storage_path"`
	UploadedBy       string    `json:"uploaded_by"`
	UploadedAt       time.Time `json:"uploaded_at"`
}

// DisplaySize formats FileSize for people.
func (f File) DisplaySize() string {
	if f.FileSize <= 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(f.FileSize))
}

func (f File) Validate() error {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.SubmissionID, validation.Required),
		validation.Field(&f.ContextID, validation.Required),
		validation.Field(&f.Label, validation.Required.Error("label is required"), validation.Length(1, 255)),
		validation.Field(&f.Stage, validation.Required, validation.By(func(v any) error {
			if st, _ := v.(FileStage); !st.Valid() {
				return fmt.Errorf("unknown stage %q", st)
			}
			return nil
		})),
		validation.Field(&f.Kind, validation.Required, validation.Length(1, 64)),
		validation.Field(&f.Round, validation.Min(1)),
		validation.Field(&f.StoragePath, validation.Required),
		validation.Field(&f.FileSize, validation.Min(int64(0))),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// FileObjectKey builds the storage key for a submission upload:
// submissions/<submissionID>/<stage>/<unix millis>-<slug>.<ext>
func FileObjectKey(submissionID string, stage FileStage, label, fileName string, now time.Time) string {
	slug := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(label)), "-"), "-")
	if slug == "" {
		slug = "file"
	}
	return fmt.Sprintf("submissions/%s/%s/%d-%s%s", submissionID, stage, now.UnixMilli(), slug, strings.ToLower(path.Ext(fileName)))
}

// FileStore persists submission files.
type FileStore interface {
	Create(ctx context.Context, f File) (File, error)
	Get(ctx context.Context, id string) (File, error)
	ListForSubmission(ctx context.Context, submissionID string) ([]File, error)
}
