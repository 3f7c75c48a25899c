package submission

import (
	"errors"
	"strings"
	"testing"
)

func validSubmission() Submission {
	return Submission{
		ContextID: "j1",
		Title:     "On Testing",
		Keywords:  []string{" go ", "", "testing"},
		Authors: []Author{
			{Name: "Ada Lovelace", Email: "ADA@example.org", Country: "gb", ORCID: "0000-0002-1825-0097", Corresponding: true},
			{Name: "Charles Babbage", Email: "cb@example.org"},
		},
	}
}

func TestNormalizeAndValidate(t *testing.T) {
	s := validSubmission().Normalize()
	if err := s.Validate(); err != nil {
		t.Fatalf("valid submission rejected: %v", err)
	}
	if len(s.Keywords) != 2 || s.Keywords[0] != "go" {
		t.Fatalf("keywords not normalised: %v", s.Keywords)
	}
	if s.Authors[0].Email != "ada@example.org" || s.Authors[0].Country != "GB" {
		t.Fatalf("author not normalised: %+v", s.Authors[0])
	}
}

func TestExactlyOneCorrespondingAuthor(t *testing.T) {
	none := validSubmission()
	none.Authors[0].Corresponding = false
	err := none.Normalize().Validate()
	if !errors.Is(err, ErrInvalid) || !strings.Contains(err.Error(), "corresponding") {
		t.Fatalf("expected corresponding author error, got %v", err)
	}

	two := validSubmission()
	two.Authors[1].Corresponding = true
	if err := two.Normalize().Validate(); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for two corresponding authors, got %v", err)
	}
}

func TestValidateRejectsBadInput(t *testing.T) {
	noTitle := validSubmission()
	noTitle.Title = "  "
	noAuthors := validSubmission()
	noAuthors.Authors = nil
	badEmail := validSubmission()
	badEmail.Authors[1].Email = "nope"
	badORCID := validSubmission()
	badORCID.Authors[0].ORCID = "1234"

	for name, s := range map[string]Submission{
		"no title":   noTitle,
		"no authors": noAuthors,
		"bad email":  badEmail,
		"bad orcid":  badORCID,
	} {
		if err := s.Normalize().Validate(); !errors.Is(err, ErrInvalid) {
			t.Fatalf("%s: expected ErrInvalid, got %v", name, err)
		}
	}
}
