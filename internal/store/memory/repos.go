package memory

import (
	"context"
	"sort"
	"time"

	"journalflow.org/internal/activity"
	"journalflow.org/internal/auth"
	"journalflow.org/internal/ids"
	"journalflow.org/internal/journal"
	"journalflow.org/internal/publication"
	"journalflow.org/internal/roles"
	"journalflow.org/internal/submission"
)

func now() time.Time { return time.Now().UTC() }

type roleRepo struct{ v *view }

func (r roleRepo) Assign(_ context.Context, a roles.Assignment) (roles.Assignment, error) {
	st, unlock := r.v.write()
	defer unlock()
	if _, ok := st.users[a.UserID]; !ok {
		return roles.Assignment{}, auth.ErrUserNotFound
	}
	if a.ContextID != "" {
		if _, ok := st.journals[a.ContextID]; !ok {
			return roles.Assignment{}, journal.ErrNotFound
		}
	}
	key := assignKey{a.UserID, a.Role, a.ContextID}
	if _, ok := st.assignments[key]; ok {
		return roles.Assignment{}, roles.ErrAlreadyAssigned
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now()
	}
	st.assignments[key] = a
	return a, nil
}

func (r roleRepo) Revoke(_ context.Context, userID string, role roles.RolePath, contextID string) error {
	st, unlock := r.v.write()
	defer unlock()
	key := assignKey{userID, role, contextID}
	if _, ok := st.assignments[key]; !ok {
		return roles.ErrNotFound
	}
	delete(st.assignments, key)
	return nil
}

func (r roleRepo) ListForContext(_ context.Context, contextID string) ([]roles.Assignment, error) {
	st, unlock := r.v.read()
	defer unlock()
	var out []roles.Assignment
	for _, a := range st.assignments {
		if a.ContextID == contextID {
			out = append(out, a)
		}
	}
	roles.SortAssignments(out)
	return out, nil
}

func (r roleRepo) ListForUser(_ context.Context, userID string) ([]roles.Assignment, error) {
	st, unlock := r.v.read()
	defer unlock()
	var out []roles.Assignment
	for _, a := range st.assignments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	roles.SortAssignments(out)
	return out, nil
}

type versionRepo struct{ v *view }

func (r versionRepo) Create(_ context.Context, v publication.Version) (publication.Version, error) {
	st, unlock := r.v.write()
	defer unlock()
	sub, ok := st.submissions[v.SubmissionID]
	if !ok {
		return publication.Version{}, submission.ErrNotFound
	}
	if v.ID == "" {
		v.ID = ids.New()
	}
	if v.Status == "" {
		v.Status = publication.StatusDraft
	}
	v.ContextID = sub.ContextID
	last := 0
	for _, other := range st.versions {
		if other.SubmissionID == v.SubmissionID && other.Number > last {
			last = other.Number
		}
	}
	v.Number = last + 1
	if v.CreatedAt.IsZero() {
		v.CreatedAt = now()
	}
	v.UpdatedAt = v.CreatedAt
	st.versions[v.ID] = v
	return v, nil
}

func (r versionRepo) Get(_ context.Context, id string) (publication.Version, error) {
	st, unlock := r.v.read()
	defer unlock()
	v, ok := st.versions[id]
	if !ok {
		return publication.Version{}, publication.ErrNotFound
	}
	return v, nil
}

func (r versionRepo) ListForSubmission(_ context.Context, submissionID string) ([]publication.Version, error) {
	st, unlock := r.v.read()
	defer unlock()
	var out []publication.Version
	for _, v := range st.versions {
		if v.SubmissionID == submissionID {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (r versionRepo) Apply(_ context.Context, c publication.Change) (publication.Version, error) {
	st, unlock := r.v.write()
	defer unlock()
	v, ok := st.versions[c.VersionID]
	if !ok {
		return publication.Version{}, publication.ErrNotFound
	}
	if v.Status != c.From {
		return publication.Version{}, publication.ErrStale
	}
	at := c.PublishedAt
	v.Status = c.To
	v.PublishedAt = &at
	v.UpdatedAt = now()
	st.versions[v.ID] = v
	return v, nil
}

func (r versionRepo) ListDue(_ context.Context, at time.Time, limit int) ([]publication.Version, error) {
	st, unlock := r.v.read()
	defer unlock()
	var out []publication.Version
	for _, v := range st.versions {
		if v.Status == publication.StatusScheduled && v.PublishedAt != nil && !v.PublishedAt.After(at) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PublishedAt.Before(*out[j].PublishedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type activityRepo struct{ v *view }

func (r activityRepo) Append(_ context.Context, e activity.Entry) (activity.Entry, error) {
	if err := r.v.store.appendFailure(); err != nil {
		return activity.Entry{}, err
	}
	st, unlock := r.v.write()
	defer unlock()
	st.seq++
	e.Sequence = st.seq
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now()
	}
	if e.Metadata != nil {
		meta := make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			meta[k] = v
		}
		e.Metadata = meta
	}
	st.activity = append(st.activity, e)
	return e, nil
}

func (r activityRepo) ListForSubmission(_ context.Context, submissionID string) ([]activity.Entry, error) {
	st, unlock := r.v.read()
	defer unlock()
	var out []activity.Entry
	for _, e := range st.activity {
		if e.SubmissionID == submissionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r activityRepo) ListForContext(_ context.Context, contextID string, afterSequence int64, limit int) ([]activity.Entry, error) {
	st, unlock := r.v.read()
	defer unlock()
	var out []activity.Entry
	for _, e := range st.activity {
		if e.ContextID != contextID || e.Sequence <= afterSequence {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

type journalRepo struct{ v *view }

func pathTaken(st *state, path, exceptID string) bool {
	for id, j := range st.journals {
		if id != exceptID && j.Path == path {
			return true
		}
	}
	return false
}

func (r journalRepo) Create(_ context.Context, j journal.Journal) (journal.Journal, error) {
	st, unlock := r.v.write()
	defer unlock()
	if pathTaken(st, j.Path, "") {
		return journal.Journal{}, journal.ErrPathTaken
	}
	if j.ID == "" {
		j.ID = ids.New()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now()
		j.UpdatedAt = j.CreatedAt
	}
	st.journals[j.ID] = j
	return j, nil
}

func (r journalRepo) Get(_ context.Context, id string) (journal.Journal, error) {
	st, unlock := r.v.read()
	defer unlock()
	j, ok := st.journals[id]
	if !ok {
		return journal.Journal{}, journal.ErrNotFound
	}
	return j, nil
}

func (r journalRepo) Update(_ context.Context, j journal.Journal) (journal.Journal, error) {
	st, unlock := r.v.write()
	defer unlock()
	cur, ok := st.journals[j.ID]
	if !ok {
		return journal.Journal{}, journal.ErrNotFound
	}
	if pathTaken(st, j.Path, j.ID) {
		return journal.Journal{}, journal.ErrPathTaken
	}
	j.CreatedAt = cur.CreatedAt
	st.journals[j.ID] = j
	return j, nil
}

func (r journalRepo) Delete(_ context.Context, id string) error {
	st, unlock := r.v.write()
	defer unlock()
	if _, ok := st.journals[id]; !ok {
		return journal.ErrNotFound
	}
	delete(st.journals, id)
	for k, a := range st.assignments {
		if a.ContextID == id {
			delete(st.assignments, k)
		}
	}
	for k, s := range st.submissions {
		if s.ContextID == id {
			delete(st.submissions, k)
		}
	}
	for k, f := range st.subFiles {
		if f.ContextID == id {
			delete(st.subFiles, k)
		}
	}
	for k, v := range st.versions {
		if v.ContextID == id {
			delete(st.versions, k)
		}
	}
	for k, f := range st.files {
		if f.ContextID == id {
			delete(st.files, k)
		}
	}
	return nil
}

type libraryRepo struct{ v *view }

func (r libraryRepo) Create(_ context.Context, f journal.LibraryFile) (journal.LibraryFile, error) {
	st, unlock := r.v.write()
	defer unlock()
	if _, ok := st.journals[f.ContextID]; !ok {
		return journal.LibraryFile{}, journal.ErrNotFound
	}
	if f.ID == "" {
		f.ID = ids.New()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now()
		f.UpdatedAt = f.CreatedAt
	}
	st.files[f.ID] = f
	return f, nil
}

func (r libraryRepo) Get(_ context.Context, id string) (journal.LibraryFile, error) {
	st, unlock := r.v.read()
	defer unlock()
	f, ok := st.files[id]
	if !ok {
		return journal.LibraryFile{}, journal.ErrNotFound
	}
	return f, nil
}

func (r libraryRepo) Update(_ context.Context, f journal.LibraryFile) (journal.LibraryFile, error) {
	st, unlock := r.v.write()
	defer unlock()
	cur, ok := st.files[f.ID]
	if !ok {
		return journal.LibraryFile{}, journal.ErrNotFound
	}
	f.ContextID = cur.ContextID
	f.CreatedAt = cur.CreatedAt
	st.files[f.ID] = f
	return f, nil
}

func (r libraryRepo) Delete(_ context.Context, id string) error {
	st, unlock := r.v.write()
	defer unlock()
	if _, ok := st.files[id]; !ok {
		return journal.ErrNotFound
	}
	delete(st.files, id)
	return nil
}

func (r libraryRepo) List(_ context.Context, contextID string, stage journal.Stage) ([]journal.LibraryFile, error) {
	st, unlock := r.v.read()
	defer unlock()
	var out []journal.LibraryFile
	for _, f := range st.files {
		if f.ContextID != contextID {
			continue
		}
		if stage != "" && f.Stage != stage {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

type submissionRepo struct{ v *view }

func (r submissionRepo) Create(_ context.Context, s submission.Submission) (submission.Submission, error) {
	st, unlock := r.v.write()
	defer unlock()
	if _, ok := st.journals[s.ContextID]; !ok {
		return submission.Submission{}, journal.ErrNotFound
	}
	if s.ID == "" {
		s.ID = ids.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now()
	}
	s.Authors = append([]submission.Author(nil), s.Authors...)
	s.Keywords = append([]string(nil), s.Keywords...)
	st.submissions[s.ID] = s
	return s, nil
}

func (r submissionRepo) Get(_ context.Context, id string) (submission.Submission, error) {
	st, unlock := r.v.read()
	defer unlock()
	s, ok := st.submissions[id]
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	return s, nil
}

type submissionFileRepo struct{ v *view }

func (r submissionFileRepo) Create(_ context.Context, f submission.File) (submission.File, error) {
	st, unlock := r.v.write()
	defer unlock()
	if _, ok := st.submissions[f.SubmissionID]; !ok {
		return submission.File{}, submission.ErrNotFound
	}
	if f.ID == "" {
		f.ID = ids.New()
	}
	if f.UploadedAt.IsZero() {
		f.UploadedAt = now()
	}
	st.subFiles[f.ID] = f
	return f, nil
}

func (r submissionFileRepo) Get(_ context.Context, id string) (submission.File, error) {
	st, unlock := r.v.read()
	defer unlock()
	f, ok := st.subFiles[id]
	if !ok {
		return submission.File{}, submission.ErrFileNotFound
	}
	return f, nil
}

func (r submissionFileRepo) ListForSubmission(_ context.Context, submissionID string) ([]submission.File, error) {
	st, unlock := r.v.read()
	defer unlock()
	var out []submission.File
	for _, f := range st.subFiles {
		if f.SubmissionID == submissionID {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.Before(out[j].UploadedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

type userRepo struct{ v *view }

func (r userRepo) GetUser(_ context.Context, id string) (auth.User, error) {
	st, unlock := r.v.read()
	defer unlock()
	u, ok := st.users[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return u, nil
}

func (r userRepo) FindByEmail(_ context.Context, email string) (auth.User, error) {
	st, unlock := r.v.read()
	defer unlock()
	email = auth.NormalizeEmail(email)
	for _, u := range st.users {
		if u.Email == email {
			return u, nil
		}
	}
	return auth.User{}, auth.ErrUserNotFound
}

func (r userRepo) UsersByID(_ context.Context, idList []string) ([]auth.User, error) {
	st, unlock := r.v.read()
	defer unlock()
	out := make([]auth.User, 0, len(idList))
	for _, id := range idList {
		if u, ok := st.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}
