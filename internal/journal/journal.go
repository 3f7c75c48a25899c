// Package journal models journals (the tenancy context for roles and
// submissions), their settings and their library files.
package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	ErrNotFound  = errors.New("journal: not found")
	ErrPathTaken = errors.New("journal: path already used")
	ErrInvalid   = errors.New("journal: invalid input")
)

var pathPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

type Journal struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Description string    `json:"description,omitempty"`
	IsPublic    bool      `json:"is_public"`
	Settings    Settings  `json:"settings"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Input carries the fields accepted when creating a journal.
type Input struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
}

// Normalize trims whitespace and lowercases the path.
func (in Input) Normalize() Input {
	in.Name = strings.TrimSpace(in.Name)
	in.Path = strings.ToLower(strings.TrimSpace(in.Path))
	in.Description = strings.TrimSpace(in.Description)
	return in
}

func (in Input) Validate() error {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Name,
			validation.Required.Error("journal name is required"),
			validation.Length(3, 200).Error("journal name must be at least 3 characters"),
		),
		validation.Field(&in.Path,
			validation.Required.Error("journal path is required"),
			validation.Length(1, 64),
			validation.Match(pathPattern).Error("path may only contain lowercase letters, numbers and hyphens"),
		),
		validation.Field(&in.Description, validation.Length(0, 4000)),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Update is a partial modification. Nil fields are left unchanged; Settings
// is a JSON document merged over the current settings.
type Update struct {
	Name        *string         `json:"name,omitempty"`
	Description *string         `json:"description,omitempty"`
	IsPublic    *bool           `json:"is_public,omitempty"`
	Settings    json.RawMessage `json:"settings,omitempty"`
}

// Apply returns j with u applied and validated.
func (u Update) Apply(j Journal) (Journal, error) {
	if u.Name != nil {
		j.Name = *u.Name
	}
	if u.Description != nil {
		j.Description = *u.Description
	}
	if u.IsPublic != nil {
		j.IsPublic = *u.IsPublic
	}
	in := Input{Name: j.Name, Path: j.Path, Description: j.Description}.Normalize()
	if err := in.Validate(); err != nil {
		return Journal{}, err
	}
	j.Name, j.Description = in.Name, in.Description
	if len(bytes.TrimSpace(u.Settings)) > 0 {
		merged, err := j.Settings.Merge(u.Settings)
		if err != nil {
			return Journal{}, err
		}
		j.Settings = merged
	}
	return j, nil
}

// Store persists journals. Delete removes the journal together with its role
// assignments, submissions, versions and library files.
type Store interface {
	Create(ctx context.Context, j Journal) (Journal, error)
	Get(ctx context.Context, id string) (Journal, error)
	Update(ctx context.Context, j Journal) (Journal, error)
	Delete(ctx context.Context, id string) error
}
