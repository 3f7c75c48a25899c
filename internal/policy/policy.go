// Package policy decides whether a role set may perform an action. It holds
// no state and performs no I/O.
package policy

import "journalflow.org/internal/roles"

// Action identifies a guarded editorial operation.
type Action string

const (
	ManageUsers         Action = "manage_users"
	ViewUsers           Action = "view_users"
	PublishSubmission   Action = "publish_submission"
	SchedulePublication Action = "schedule_publication"
	CreateVersion       Action = "create_version"
	CreateSubmission    Action = "create_submission"
	ViewActivity        Action = "view_activity"
	EditLibraryFile     Action = "edit_library_file"
	ViewLibraryFile     Action = "view_library_file"
	CreateJournal       Action = "create_journal"
	EditJournalSettings Action = "edit_journal_settings"
	DeleteJournal       Action = "delete_journal"

	// EditSubmissionFiles covers upload, listing and download of any
	// submission's files.
	EditSubmissionFiles Action = "edit_submission_files"

	// AuthorSubmissionFiles is the author's share of the same operations. The
	// caller still has to check that the author owns the submission.
	AuthorSubmissionFiles Action = "author_submission_files"
)

// Actions lists every guarded action. Each must have a rule.
var Actions = []Action{
	ManageUsers,
	ViewUsers,
	PublishSubmission,
	SchedulePublication,
	CreateVersion,
	CreateSubmission,
	ViewActivity,
	EditLibraryFile,
	ViewLibraryFile,
	CreateJournal,
	EditJournalSettings,
	DeleteJournal,
	EditSubmissionFiles,
	AuthorSubmissionFiles,
}

// Scope says where an action may be performed.
type Scope int

const (
	ScopeJournal Scope = iota
	ScopeSite
)

// Shortcut names the superuser roles that satisfy a rule regardless of its
// required set.
type Shortcut int

const (
	// AdminOrManager: site admin anywhere, journal manager in its own journal.
	AdminOrManager Shortcut = iota
	// AdminOnly: only the site administrator.
	AdminOnly
)

// Rule is one row of the permission table.
type Rule struct {
	Scope    Scope
	Shortcut Shortcut
	Required roles.Set
}

// Context is the tenancy the action targets. An empty ID is the site itself.
type Context struct {
	ID string
}

func Site() Context { return Context{} }

func Journal(id string) Context { return Context{ID: id} }

func (c Context) IsSite() bool { return c.ID == "" }

var editors = []roles.RolePath{roles.Editor, roles.SectionEditor}

var table = map[Action]Rule{
	ManageUsers:         {Scope: ScopeJournal, Shortcut: AdminOrManager, Required: roles.NewSet()},
	ViewUsers:           {Scope: ScopeJournal, Shortcut: AdminOrManager, Required: roles.NewSet(editors...)},
	PublishSubmission:   {Scope: ScopeJournal, Shortcut: AdminOrManager, Required: roles.NewSet(editors...)},
	SchedulePublication: {Scope: ScopeJournal, Shortcut: AdminOrManager, Required: roles.NewSet(editors...)},
	CreateVersion:       {Scope: ScopeJournal, Shortcut: AdminOrManager, Required: roles.NewSet(editors...)},
	CreateSubmission: {Scope: ScopeJournal, Shortcut: AdminOrManager, Required: roles.NewSet(
		roles.Author, roles.Editor, roles.SectionEditor, roles.GuestEditor,
	)},
	ViewActivity: {Scope: ScopeJournal, Shortcut: AdminOrManager, Required: roles.NewSet(
		roles.Editor, roles.SectionEditor, roles.GuestEditor,
		roles.Copyeditor, roles.LayoutEditor, roles.Proofreader,
	)},
	EditLibraryFile: {Scope: ScopeJournal, Shortcut: AdminOrManager, Required: roles.NewSet(editors...)},
	ViewLibraryFile: {Scope: ScopeJournal, Shortcut: AdminOrManager, Required: roles.NewSet(
		roles.Editor, roles.SectionEditor, roles.GuestEditor, roles.Reviewer,
		roles.Copyeditor, roles.LayoutEditor, roles.Proofreader,
	)},
	CreateJournal:         {Scope: ScopeSite, Shortcut: AdminOnly, Required: roles.NewSet()},
	EditJournalSettings:   {Scope: ScopeJournal, Shortcut: AdminOrManager, Required: roles.NewSet()},
	DeleteJournal:         {Scope: ScopeJournal, Shortcut: AdminOrManager, Required: roles.NewSet()},
	EditSubmissionFiles:   {Scope: ScopeJournal, Shortcut: AdminOrManager, Required: roles.NewSet(editors...)},
	AuthorSubmissionFiles: {Scope: ScopeJournal, Shortcut: AdminOrManager, Required: roles.NewSet(roles.Author)},
}

// RuleFor exposes the table row for an action.
func RuleFor(a Action) (Rule, bool) {
	r, ok := table[a]
	return r, ok
}

// CanPerform reports whether a user holding userRoles in ctx may perform
// action. userRoles must already be resolved for ctx (site-wide roles merged
// in). Unknown actions are denied.
func CanPerform(userRoles roles.Set, action Action, ctx Context) bool {
	rule, ok := table[action]
	if !ok {
		return false
	}
	switch rule.Scope {
	case ScopeSite:
		if !ctx.IsSite() {
			return false
		}
	case ScopeJournal:
		if ctx.IsSite() {
			return false
		}
	}
	if userRoles.Has(roles.Admin) {
		return true
	}
	if rule.Shortcut == AdminOrManager && userRoles.Has(roles.Manager) {
		return true
	}
	return userRoles.Intersects(rule.Required)
}
