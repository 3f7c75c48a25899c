// Package submission holds submission metadata and its author list.
package submission

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

var (
	ErrNotFound     = errors.New("submission: not found")
	ErrFileNotFound = errors.New("submission: file not found")
	ErrInvalid      = errors.New("submission: invalid input")
)

var orcidPattern = regexp.MustCompile(`^(https://orcid\.org/)?\d{4}-\d{4}-\d{4}-\d{3}[\dX]$`)

type Author struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Affiliation   string `json:"affiliation,omitempty"`
	Country       string `json:"country,omitempty"`
	ORCID         string `json:"orcid,omitempty"`
	Corresponding bool   `json:"corresponding"`
}

func (a Author) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&a.Email, validation.Required, is.EmailFormat),
		validation.Field(&a.Country, validation.Length(2, 2), is.UpperCase),
		validation.Field(&a.ORCID, validation.Match(orcidPattern).Error("must be an ORCID iD like 0000-0002-1825-0097")),
	)
}

type Submission struct {
	ID          string    `json:"id"`
	ContextID   string    `json:"context_id"`
	SubmitterID string    `json:"submitter_id"`
	Title       string    `json:"title"`
	Abstract    string    `json:"abstract,omitempty"`
	Keywords    []string  `json:"keywords,omitempty"`
	Language    string    `json:"language,omitempty"`
	Authors     []Author  `json:"authors"`
	CreatedAt   time.Time `json:"created_at"`
}

// Normalize trims free text and drops empty keywords.
func (s Submission) Normalize() Submission {
	s.Title = strings.TrimSpace(s.Title)
	s.Abstract = strings.TrimSpace(s.Abstract)
	s.Language = strings.TrimSpace(s.Language)
	kw := make([]string, 0, len(s.Keywords))
	for _, k := range s.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			kw = append(kw, k)
		}
	}
	s.Keywords = kw
	authors := make([]Author, len(s.Authors))
	for i, a := range s.Authors {
		a.Name = strings.TrimSpace(a.Name)
		a.Email = strings.ToLower(strings.TrimSpace(a.Email))
		a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
		a.ORCID = strings.TrimSpace(a.ORCID)
		authors[i] = a
	}
	s.Authors = authors
	return s
}

// Validate checks metadata and requires exactly one corresponding author.
func (s Submission) Validate() error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.ContextID, validation.Required),
		validation.Field(&s.Title, validation.Required.Error("title is required"), validation.Length(1, 500)),
		validation.Field(&s.Language, validation.Length(2, 10)),
		validation.Field(&s.Authors, validation.Required.Error("at least one author is required")),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	corresponding := 0
	for i, a := range s.Authors {
		if err := a.Validate(); err != nil {
			return fmt.Errorf("%w: author %d: %v", ErrInvalid, i+1, err)
		}
		if a.Corresponding {
			corresponding++
		}
	}
	if corresponding != 1 {
		return fmt.Errorf("%w: exactly one corresponding author is required, got %d", ErrInvalid, corresponding)
	}
	return nil
}

type Store interface {
	Create(ctx context.Context, s Submission) (Submission, error)
	Get(ctx context.Context, id string) (Submission, error)
}
