package journal

import (
	"bytes"
	"encoding/json"
	"fmt"

	"journalflow.org/internal/roles"
)

// Settings is the nested per-journal configuration. Stored documents are
// always decoded over DefaultSettings, so missing keys keep their defaults.
type Settings struct {
	Context            ContextSettings    `json:"context"`
	Search             SearchSettings     `json:"search"`
	Theme              ThemeSettings      `json:"theme"`
	RestrictBulkEmails RestrictBulkEmails `json:"restrictBulkEmails"`
	Workflow           WorkflowSettings   `json:"workflow"`
}

type ContextSettings struct {
	Name         string `json:"name"`
	Initials     string `json:"initials"`
	Abbreviation string `json:"abbreviation"`
	Publisher    string `json:"publisher"`
	ISSNOnline   string `json:"issnOnline"`
	ISSNPrint    string `json:"issnPrint"`
	FocusScope   string `json:"focusScope"`
}

type SearchSettings struct {
	Keywords            string `json:"keywords"`
	Description         string `json:"description"`
	IncludeSupplemental bool   `json:"includeSupplemental"`
}

type ThemeSettings struct {
	Theme        string `json:"theme"`
	HeaderBg     string `json:"headerBg"`
	UseSiteTheme bool   `json:"useSiteTheme"`
	ShowLogo     bool   `json:"showLogo"`
}

type RestrictBulkEmails struct {
	DisabledRoles []roles.RolePath `json:"disabledRoles"`
}

type WorkflowSettings struct {
	Submissions struct {
		AllowChecklists         bool `json:"allowChecklists"`
		RequireMetadataComplete bool `json:"requireMetadataComplete"`
	} `json:"submissions"`
	Review struct {
		AllowReviewerRecommendations bool `json:"allowReviewerRecommendations"`
		EnableReviewForms            bool `json:"enableReviewForms"`
	} `json:"review"`
	Copyediting struct {
		RequireChecklist bool `json:"requireChecklist"`
	} `json:"copyediting"`
	Production struct {
		AllowedGalleyFormats []string `json:"allowedGalleyFormats"`
		EnableProofreading   bool     `json:"enableProofreading"`
	} `json:"production"`
	Discussions struct {
		EnableEditorialDiscussions bool `json:"enableEditorialDiscussions"`
	} `json:"discussions"`
}

func DefaultSettings() Settings {
	var s Settings
	s.Search.IncludeSupplemental = true
	s.Theme = ThemeSettings{Theme: "default", HeaderBg: "#0a2d44", UseSiteTheme: true, ShowLogo: true}
	s.RestrictBulkEmails.DisabledRoles = []roles.RolePath{}
	s.Workflow.Submissions.AllowChecklists = true
	s.Workflow.Submissions.RequireMetadataComplete = true
	s.Workflow.Review.AllowReviewerRecommendations = true
	s.Workflow.Copyediting.RequireChecklist = true
	s.Workflow.Production.AllowedGalleyFormats = []string{"PDF", "HTML"}
	s.Workflow.Production.EnableProofreading = true
	s.Workflow.Discussions.EnableEditorialDiscussions = true
	return s
}

// DecodeSettings reads a stored settings document over the defaults.
func DecodeSettings(raw []byte) (Settings, error) {
	return DefaultSettings().Merge(raw)
}

// Merge decodes patch over a copy of s. Nested objects merge field by field,
// arrays are replaced.
func (s Settings) Merge(patch []byte) (Settings, error) {
	out := s.clone()
	patch = bytes.TrimSpace(patch)
	if len(patch) == 0 || bytes.Equal(patch, []byte("null")) {
		return out, nil
	}
	if err := json.Unmarshal(patch, &out); err != nil {
		return Settings{}, fmt.Errorf("%w: settings: %v", ErrInvalid, err)
	}
	for _, r := range out.RestrictBulkEmails.DisabledRoles {
		if !r.Valid() {
			return Settings{}, fmt.Errorf("%w: settings: unknown role %q", ErrInvalid, r)
		}
	}
	return out, nil
}

func (s Settings) clone() Settings {
	out := s
	out.RestrictBulkEmails.DisabledRoles = append([]roles.RolePath{}, s.RestrictBulkEmails.DisabledRoles...)
	out.Workflow.Production.AllowedGalleyFormats = append([]string{}, s.Workflow.Production.AllowedGalleyFormats...)
	return out
}

// Encode serialises settings for storage.
func (s Settings) Encode() ([]byte, error) {
	return json.Marshal(s)
}
