package journal

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"journalflow.org/internal/roles"
)

func TestInputValidate(t *testing.T) {
	ok := Input{Name: "Journal of Tests", Path: "jot-2025"}
	if err := ok.Validate(); err != nil {
		t.Fatalf("valid input rejected: %v", err)
	}
	bad := []Input{
		{Name: "JT", Path: "jt"},
		{Name: "Journal", Path: "Has Spaces"},
		{Name: "Journal", Path: "under_score"},
		{Name: "Journal", Path: ""},
	}
	for _, in := range bad {
		if err := in.Validate(); !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected ErrInvalid for %+v, got %v", in, err)
		}
	}
	norm := Input{Name: "  Journal  ", Path: " JOT "}.Normalize()
	if norm.Name != "Journal" || norm.Path != "jot" {
		t.Fatalf("unexpected normalisation: %+v", norm)
	}
}

func TestDecodeSettingsKeepsDefaults(t *testing.T) {
	s, err := DecodeSettings([]byte(`{"theme":{"headerBg":"#fff"},"context":{"publisher":"PKP"}}`))
	if err != nil {
		t.Fatalf("DecodeSettings: %v", err)
	}
	if s.Theme.HeaderBg != "#fff" || s.Theme.Theme != "default" || !s.Theme.ShowLogo {
		t.Fatalf("theme not merged over defaults: %+v", s.Theme)
	}
	if s.Context.Publisher != "PKP" {
		t.Fatalf("publisher lost: %+v", s.Context)
	}
	if got := s.Workflow.Production.AllowedGalleyFormats; len(got) != 2 {
		t.Fatalf("default galley formats lost: %v", got)
	}

	empty, err := DecodeSettings(nil)
	if err != nil {
		t.Fatalf("DecodeSettings(nil): %v", err)
	}
	if !empty.Search.IncludeSupplemental {
		t.Fatal("expected defaults for empty document")
	}
}

func TestSettingsMergeValidatesRoles(t *testing.T) {
	s := DefaultSettings()
	merged, err := s.Merge([]byte(`{"restrictBulkEmails":{"disabledRoles":["author","reader"]}}`))
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if len(merged.RestrictBulkEmails.DisabledRoles) != 2 || merged.RestrictBulkEmails.DisabledRoles[0] != roles.Author {
		t.Fatalf("unexpected disabled roles: %v", merged.RestrictBulkEmails.DisabledRoles)
	}
	if len(s.RestrictBulkEmails.DisabledRoles) != 0 {
		t.Fatal("merge mutated the receiver")
	}
	if _, err := s.Merge([]byte(`{"restrictBulkEmails":{"disabledRoles":["owner"]}}`)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unknown role, got %v", err)
	}
	if _, err := s.Merge([]byte(`{"theme":`)); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for malformed JSON, got %v", err)
	}
}

func TestUpdateApply(t *testing.T) {
	j := Journal{ID: "j1", Name: "Journal One", Path: "one", Settings: DefaultSettings()}
	name := "Journal Uno"
	public := true
	out, err := Update{Name: &name, IsPublic: &public, Settings: json.RawMessage(`{"search":{"keywords":"ojs"}}`)}.Apply(j)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Name != name || !out.IsPublic || out.Settings.Search.Keywords != "ojs" {
		t.Fatalf("update not applied: %+v", out)
	}
	short := "J"
	if _, err := (Update{Name: &short}).Apply(j); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestLibraryFileValidate(t *testing.T) {
	f := LibraryFile{ContextID: "j1", Label: "Style guide", Stage: StageGeneral, RemoteURL: "https://example.org/guide.pdf"}
	if err := f.Validate(); err != nil {
		t.Fatalf("valid file rejected: %v", err)
	}
	if f.Source() != "remote" {
		t.Fatalf("expected remote source, got %q", f.Source())
	}
	cases := []LibraryFile{
		{ContextID: "j1", Stage: StageGeneral, RemoteURL: "https://example.org"},
		{ContextID: "j1", Label: "x", Stage: Stage("archive"), RemoteURL: "https://example.org"},
		{ContextID: "j1", Label: "x", Stage: StageReview},
		{ContextID: "j1", Label: "x", Stage: StageReview, RemoteURL: "not a url"},
	}
	for _, c := range cases {
		if err := c.Validate(); !errors.Is(err, ErrInvalid) {
			t.Fatalf("expected ErrInvalid for %+v, got %v", c, err)
		}
	}
}

func TestObjectKey(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	if got := ObjectKey("j1", "Author Guidelines (v2)", "guide.PDF", now); got != "j1/1700000000000-author-guidelines-v2.pdf" {
		t.Fatalf("unexpected key %q", got)
	}
	if got := ObjectKey("j1", "", "", now); got != "j1/1700000000000-library-file" {
		t.Fatalf("unexpected fallback key %q", got)
	}
	if got := ObjectKey("j1", " ", "Report Final.docx", now); got != "j1/1700000000000-report-final.docx" {
		t.Fatalf("unexpected key from file name %q", got)
	}
}

func TestDisplaySize(t *testing.T) {
	if got := (LibraryFile{}).DisplaySize(); got != "0 B" {
		t.Fatalf("unexpected zero size %q", got)
	}
	if got := (LibraryFile{FileSize: 2000}).DisplaySize(); got != "2.0 kB" {
		t.Fatalf("unexpected size %q", got)
	}
}
