// Package roles models role assignments: which user holds which role path in
// which journal. An empty context id denotes a site-wide assignment.
package roles

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// RolePath is one of a closed set of permission tiers.
type RolePath string

const (
	Admin         RolePath = "admin"
	Manager       RolePath = "manager"
	Editor        RolePath = "editor"
	SectionEditor RolePath = "section_editor"
	Reviewer      RolePath = "reviewer"
	Author        RolePath = "author"
	Copyeditor    RolePath = "copyeditor"
	LayoutEditor  RolePath = "layout_editor"
	Proofreader   RolePath = "proofreader"
	GuestEditor   RolePath = "guest_editor"
	Reader        RolePath = "reader"
)

// All lists every role path in display order.
var All = []RolePath{
	Admin,
	Manager,
	Editor,
	SectionEditor,
	Reviewer,
	Author,
	Copyeditor,
	LayoutEditor,
	Proofreader,
	GuestEditor,
	Reader,
}

var labels = map[RolePath]string{
	Admin:         "Site Administrator",
	Manager:       "Journal Manager",
	Editor:        "Editor",
	SectionEditor: "Section Editor",
	Reviewer:      "Reviewer",
	Author:        "Author",
	Copyeditor:    "Copyeditor",
	LayoutEditor:  "Layout Editor",
	Proofreader:   "Proofreader",
	GuestEditor:   "Guest Editor",
	Reader:        "Reader",
}

var (
	ErrInvalidRole     = errors.New("roles: invalid role path")
	ErrAlreadyAssigned = errors.New("roles: already assigned")
	ErrNotFound        = errors.New("roles: not found")
)

// Parse normalises s and returns the matching role path. Hyphenated spellings
// such as "layout-editor" are accepted.
func Parse(s string) (RolePath, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.ReplaceAll(norm, "-", "_")
	r := RolePath(norm)
	if !r.Valid() {
		return "", fmt.Errorf("%w %q", ErrInvalidRole, s)
	}
	return r, nil
}

func (r RolePath) Valid() bool {
	_, ok := labels[r]
	return ok
}

// Label returns the human readable name of the role.
func (r RolePath) Label() string {
	if l, ok := labels[r]; ok {
		return l
	}
	return string(r)
}

func (r RolePath) String() string { return string(r) }

// Assignment is the (user, role, context) triple. The triple is unique.
type Assignment struct {
	UserID    string    `json:"user_id"`
	Role      RolePath  `json:"role"`
	ContextID string    `json:"context_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SiteWide reports whether the assignment applies outside any journal.
func (a Assignment) SiteWide() bool { return a.ContextID == "" }

// Set is an unordered collection of role paths.
type Set map[RolePath]struct{}

func NewSet(paths ...RolePath) Set {
	s := make(Set, len(paths))
	for _, p := range paths {
		s[p] = struct{}{}
	}
	return s
}

func (s Set) Has(r RolePath) bool {
	_, ok := s[r]
	return ok
}

func (s Set) Add(r RolePath) { s[r] = struct{}{} }

// Intersects reports whether s and other share at least one role.
func (s Set) Intersects(other Set) bool {
	small, big := s, other
	if len(big) < len(small) {
		small, big = big, small
	}
	for r := range small {
		if big.Has(r) {
			return true
		}
	}
	return false
}

// Slice returns the roles ordered as in All.
func (s Set) Slice() []RolePath {
	out := make([]RolePath, 0, len(s))
	for _, r := range All {
		if s.Has(r) {
			out = append(out, r)
		}
	}
	return out
}

// EffectiveIn collapses assignments into the role set a user holds inside
// contextID. Site-wide assignments apply everywhere.
func EffectiveIn(assignments []Assignment, contextID string) Set {
	set := NewSet()
	for _, a := range assignments {
		if a.SiteWide() || a.ContextID == contextID {
			set.Add(a.Role)
		}
	}
	return set
}

// SortAssignments orders assignments by user, then role display order.
func SortAssignments(list []Assignment) {
	order := make(map[RolePath]int, len(All))
	for i, r := range All {
		order[r] = i
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].UserID != list[j].UserID {
			return list[i].UserID < list[j].UserID
		}
		return order[list[i].Role] < order[list[j].Role]
	})
}

// Store persists role assignments. Implementations must reject a duplicate
// triple with ErrAlreadyAssigned even under concurrent inserts.
type Store interface {
	Assign(ctx context.Context, a Assignment) (Assignment, error)
	Revoke(ctx context.Context, userID string, role RolePath, contextID string) error
	ListForContext(ctx context.Context, contextID string) ([]Assignment, error)
	ListForUser(ctx context.Context, userID string) ([]Assignment, error)
}

// ListRolesForUser returns every role path the user holds in any context.
func ListRolesForUser(ctx context.Context, s Store, userID string) (Set, error) {
	list, err := s.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	set := NewSet()
	for _, a := range list {
		set.Add(a.Role)
	}
	return set, nil
}
