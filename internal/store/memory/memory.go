// Package memory is an in-process implementation of the workflow store.
// Transactions are serialised and copy-on-write: a failed unit leaves no trace.
package memory

import (
	"context"
	"sync"

	"journalflow.org/internal/activity"
	"journalflow.org/internal/auth"
	"journalflow.org/internal/journal"
	"journalflow.org/internal/publication"
	"journalflow.org/internal/roles"
	"journalflow.org/internal/submission"
	"journalflow.org/internal/workflow"
)

type assignKey struct {
	user    string
	role    roles.RolePath
	context string
}

type state struct {
	users       map[string]auth.User
	assignments map[assignKey]roles.Assignment
	journals    map[string]journal.Journal
	submissions map[string]submission.Submission
	versions    map[string]publication.Version
	files       map[string]journal.LibraryFile
	subFiles    map[string]submission.File
	activity    []activity.Entry
	seq         int64
}

func newState() *state {
	return &state{
		users:       make(map[string]auth.User),
		assignments: make(map[assignKey]roles.Assignment),
		journals:    make(map[string]journal.Journal),
		submissions: make(map[string]submission.Submission),
		versions:    make(map[string]publication.Version),
		files:       make(map[string]journal.LibraryFile),
		subFiles:    make(map[string]submission.File),
	}
}

func (st *state) clone() *state {
	out := &state{
		users:       make(map[string]auth.User, len(st.users)),
		assignments: make(map[assignKey]roles.Assignment, len(st.assignments)),
		journals:    make(map[string]journal.Journal, len(st.journals)),
		submissions: make(map[string]submission.Submission, len(st.submissions)),
		versions:    make(map[string]publication.Version, len(st.versions)),
		files:       make(map[string]journal.LibraryFile, len(st.files)),
		subFiles:    make(map[string]submission.File, len(st.subFiles)),
		activity:    make([]activity.Entry, len(st.activity)),
		seq:         st.seq,
	}
	for k, v := range st.users {
		out.users[k] = v
	}
	for k, v := range st.assignments {
		out.assignments[k] = v
	}
	for k, v := range st.journals {
		out.journals[k] = v
	}
	for k, v := range st.submissions {
		out.submissions[k] = v
	}
	for k, v := range st.versions {
		out.versions[k] = v
	}
	for k, v := range st.files {
		out.files[k] = v
	}
	for k, v := range st.subFiles {
		out.subFiles[k] = v
	}
	copy(out.activity, st.activity)
	return out
}

// Store implements workflow.Store.
type Store struct {
	mu   sync.RWMutex
	st   *state
	base *view

	hookMu     sync.Mutex
	failAppend error
	commits    int
}

var _ workflow.Store = (*Store)(nil)

func New() *Store {
	s := &Store{st: newState()}
	s.base = &view{
		store: s,
		get:   func() *state { return s.st },
		lock:  &s.mu,
		rlock: s.mu.RLocker(),
	}
	return s
}

// WithinTx runs fn against a private copy of the state and swaps it in when
// fn succeeds and ctx is still live.
func (s *Store) WithinTx(ctx context.Context, fn func(workflow.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	tx := &view{
		store: s,
		get:   func() *state { return work },
		lock:  noopLocker{},
		rlock: noopLocker{},
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work

	s.hookMu.Lock()
	s.commits++
	s.hookMu.Unlock()
	return nil
}

func (s *Store) Roles() roles.Store { return s.base.Roles() }
func (s *Store) Versions() publication.Store { return s.base.Versions() }
func (s *Store) Activity() workflow.ActivityLog { return s.base.Activity() }
func (s *Store) Journals() journal.Store { return s.base.Journals() }
func (s *Store) LibraryFiles() journal.LibraryStore { return s.base.LibraryFiles() }
func (s *Store) Submissions() submission.Store { return s.base.Submissions() }
func (s *Store) SubmissionFiles() submission.FileStore { return s.base.SubmissionFiles() }
func (s *Store) Users() auth.Directory { return s.base.Users() }

// AddUser registers an identity, standing in for the identity provider.
func (s *Store) AddUser(u auth.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = auth.NormalizeEmail(u.Email)
	s.st.users[u.ID] = u
}

// FailActivityAppends makes every subsequent activity append return err.
// Pass nil to restore normal behaviour.
func (s *Store) FailActivityAppends(err error) {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	s.failAppend = err
}

func (s *Store) appendFailure() error {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	return s.failAppend
}

// Commits reports how many transactions have committed.
func (s *Store) Commits() int {
	s.hookMu.Lock()
	defer s.hookMu.Unlock()
	return s.commits
}

// ActivityCount reports the number of stored activity entries.
func (s *Store) ActivityCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.activity)
}

type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

// view binds repositories to either the live state (locking per call) or a
// transaction's working copy (already locked by WithinTx).
type view struct {
	store *Store
	get   func() *state
	lock  sync.Locker
	rlock sync.Locker
}

func (v *view) Roles() roles.Store { return roleRepo{v} }
func (v *view) Versions() publication.Store { return versionRepo{v} }
func (v *view) Activity() workflow.ActivityLog { return activityRepo{v} }
func (v *view) Journals() journal.Store { return journalRepo{v} }
func (v *view) LibraryFiles() journal.LibraryStore { return libraryRepo{v} }
func (v *view) Submissions() submission.Store { return submissionRepo{v} }
func (v *view) SubmissionFiles() submission.FileStore { return submissionFileRepo{v} }
func (v *view) Users() auth.Directory { return userRepo{v} }

func (v *view) write() (*state, func()) {
	v.lock.Lock()
	return v.get(), v.lock.Unlock
}

func (v *view) read() (*state, func()) {
	v.rlock.Lock()
	return v.get(), v.rlock.Unlock
}
