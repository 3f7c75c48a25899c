package journal

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Stage tags a library file with the workflow stage it belongs to.
type Stage string

const (
	StageGeneral     Stage = "general"
	StageSubmission  Stage = "submission"
	StageReview      Stage = "review"
	StageCopyediting Stage = "copyediting"
	StageProduction  Stage = "production"
	StageMarketing   Stage = "marketing"
)

var Stages = []Stage{StageGeneral, StageSubmission, StageReview, StageCopyediting, StageProduction, StageMarketing}

func (s Stage) Valid() bool {
	for _, st := range Stages {
		if s == st {
			return true
		}
	}
	return false
}

// LibraryFile is a journal-level document. It references an uploaded object,
// a remote URL, or both.
type LibraryFile struct {
	ID               string    `json:"id"`
	ContextID        string    `json:"context_id"`
	Label            string    `json:"label"`
	Description      string    `json:"description,omitempty"`
	Stage            Stage     `json:"stage"`
	FileType         string    `json:"file_type,omitempty"`
	FileSize         int64     `json:"file_size"`
	OriginalFileName string    `json:"original_file_name,omitempty"`
	StoragePath      string    `json:"storage_path,omitempty"`
	RemoteURL        string    `json:"remote_url,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Source reports where the content lives: "upload" or "remote".
func (f LibraryFile) Source() string {
	if f.StoragePath == "" && f.RemoteURL != "" {
		return "remote"
	}
	return "upload"
}

// DisplaySize formats FileSize for people.
func (f LibraryFile) DisplaySize() string {
	if f.FileSize <= 0 {
		return "0 B"
	}
	return humanize.Bytes(uint64(f.FileSize))
}

func (f LibraryFile) Validate() error {
	err := validation.ValidateStruct(&f,
		validation.Field(&f.ContextID, validation.Required),
		validation.Field(&f.Label,
			validation.Required.Error("label is required"),
			validation.Length(1, 255),
		),
		validation.Field(&f.Stage, validation.Required, validation.By(func(v any) error {
			if st, _ := v.(Stage); !st.Valid() {
				return fmt.Errorf("unknown stage %q", st)
			}
			return nil
		})),
		validation.Field(&f.RemoteURL, is.URL),
		validation.Field(&f.FileSize, validation.Min(int64(0))),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if f.StoragePath == "" && f.RemoteURL == "" {
		return fmt.Errorf("%w: either an uploaded file or a remote url is required", ErrInvalid)
	}
	return nil
}

// LibraryUpdate is a partial modification of a library file.
type LibraryUpdate struct {
	Label       *string `json:"label,omitempty"`
	Description *string `json:"description,omitempty"`
	Stage       *Stage  `json:"stage,omitempty"`
	RemoteURL   *string `json:"remote_url,omitempty"`
}

func (u LibraryUpdate) Apply(f LibraryFile) (LibraryFile, error) {
	if u.Label != nil {
		f.Label = strings.TrimSpace(*u.Label)
	}
	if u.Description != nil {
		f.Description = strings.TrimSpace(*u.Description)
	}
	if u.Stage != nil {
		f.Stage = *u.Stage
	}
	if u.RemoteURL != nil {
		f.RemoteURL = strings.TrimSpace(*u.RemoteURL)
	}
	if err := f.Validate(); err != nil {
		return LibraryFile{}, err
	}
	return f, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	s = nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "library-file"
	}
	return s
}

// ObjectKey builds the storage key for an upload:
// <journalID>/<unix millis>-<slug>.<ext>
func ObjectKey(journalID, label, fileName string, now time.Time) string {
	base := label
	if strings.TrimSpace(base) == "" {
		base = strings.TrimSuffix(fileName, path.Ext(fileName))
	}
	return fmt.Sprintf("%s/%d-%s%s", journalID, now.UnixMilli(), slugify(base), strings.ToLower(path.Ext(fileName)))
}

// LibraryStore persists library files.
type LibraryStore interface {
	Create(ctx context.Context, f LibraryFile) (LibraryFile, error)
	Get(ctx context.Context, id string) (LibraryFile, error)
	Update(ctx context.Context, f LibraryFile) (LibraryFile, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, contextID string, stage Stage) ([]LibraryFile, error)
}
