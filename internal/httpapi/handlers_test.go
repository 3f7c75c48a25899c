package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"journalflow.org/internal/activity"
	"journalflow.org/internal/auth"
	"journalflow.org/internal/roles"
	"journalflow.org/internal/store/memory"
	"journalflow.org/internal/workflow"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeObjects) Upload(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeObjects) DownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://files.example.org/" + key, nil
}

func (f *fakeObjects) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

type apiClient struct {
	baseURL string
	client  *http.Client
	tokens  *auth.Tokens
	store   *memory.Store
	objects *fakeObjects
	feed    *activity.Feed
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	store := memory.New()
	for _, u := range []auth.User{
		{ID: "admin", Name: "Site Admin", Email: "admin@example.org"},
		{ID: "ed", Name: "Edna Editor", Email: "Edna@Example.org"},
		{ID: "au", Name: "Arthur Author", Email: "arthur@example.org"},
	} {
		store.AddUser(u)
	}
	if _, err := store.Roles().Assign(context.Background(), roles.Assignment{UserID: "admin", Role: roles.Admin}); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	objects := &fakeObjects{objects: map[string][]byte{}}
	feed := activity.NewFeed()
	svc, err := workflow.New(store,
		workflow.WithClock(func() time.Time { return testNow }),
		workflow.WithFeed(feed),
		workflow.WithObjectStorage(objects, time.Minute),
	)
	if err != nil {
		t.Fatalf("workflow.New: %v", err)
	}
	tokens, err := auth.NewTokens("test-secret-test-secret-test-secret", "")
	if err != nil {
		t.Fatalf("tokens: %v", err)
	}

	api := New(ReadyProbe{}, "test", svc, tokens).WithRateLimit(1000, 1000)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	client := srv.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }

	return &apiClient{
		baseURL: srv.URL,
		client:  client,
		tokens:  tokens,
		store:   store,
		objects: objects,
		feed:    feed,
		t:       t,
	}
}

func (c *apiClient) token(userID string) string {
	c.t.Helper()
	tok, err := c.tokens.GenerateToken(userID, "", time.Hour)
	if err != nil {
		c.t.Fatalf("generate token: %v", err)
	}
	return tok
}

func (c *apiClient) do(method, path, user string, body any) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set(authHeader, bearer+c.token(user))
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

type envelope struct {
	OK        bool            `json:"ok"`
	Message   string          `json:"message"`
	Kind      string          `json:"kind"`
	RequestID string          `json:"request_id"`
	Journal   json.RawMessage `json:"journal"`
	Users     json.RawMessage `json:"users"`
	Version   json.RawMessage `json:"version"`
	File      json.RawMessage `json:"file"`
	Files     json.RawMessage `json:"files"`
	Activity  json.RawMessage `json:"activity"`
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expect(t *testing.T, resp *http.Response, code int) envelope {
	t.Helper()
	if resp.StatusCode != code {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, code, resp.StatusCode, body)
	}
	return decode[envelope](t, resp)
}

func field[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode field: %v", err)
	}
	return v
}

// setupJournal creates a journal with ed as editor and au as author.
func (c *apiClient) setupJournal() string {
	c.t.Helper()
	env := expect(c.t, c.do(http.MethodPost, "/v1/journals", "admin", map[string]any{
		"name": "Journal of Tests",
		"path": "jot",
	}), http.StatusCreated)
	id := field[struct {
		ID string `json:"id"`
	}](c.t, env.Journal).ID

	expect(c.t, c.do(http.MethodPost, "/v1/journals/"+id+"/users", "admin", map[string]any{
		"email": "edna@example.org", "role": "editor",
	}), http.StatusCreated)
	expect(c.t, c.do(http.MethodPost, "/v1/journals/"+id+"/users", "admin", map[string]any{
		"user_id": "au", "role": "author",
	}), http.StatusCreated)
	return id
}

func (c *apiClient) submit(journalID string) (submissionID, versionID string) {
	c.t.Helper()
	resp := c.do(http.MethodPost, "/v1/journals/"+journalID+"/submissions", "au", map[string]any{
		"title": "On Testing",
		"authors": []map[string]any{
			{"name": "Arthur Author", "email": "arthur@example.org", "corresponding": true},
		},
	})
	if resp.StatusCode != http.StatusCreated {
		expect(c.t, resp, http.StatusCreated)
	}
	out := decode[struct {
		Submission struct {
			ID string `json:"id"`
		} `json:"submission"`
		Version struct {
			ID string `json:"id"`
		} `json:"version"`
	}](c.t, resp)
	return out.Submission.ID, out.Version.ID
}

func TestPublicEndpointsSkipAuth(t *testing.T) {
	c := newTestAPI(t)
	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		resp := c.do(http.MethodGet, path, "", nil)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, resp.StatusCode)
		}
	}

	env := expect(t, c.do(http.MethodPost, "/v1/journals", "", map[string]any{"name": "x", "path": "x"}), http.StatusUnauthorized)
	if env.OK || env.RequestID == "" {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestJournalUsersFlow(t *testing.T) {
	c := newTestAPI(t)
	id := c.setupJournal()

	env := expect(t, c.do(http.MethodGet, "/v1/journals/"+id+"/users", "ed", nil), http.StatusOK)
	users := field[[]workflow.JournalUser](t, env.Users)
	if len(users) != 2 {
		t.Fatalf("expected 2 users, got %d", len(users))
	}

	env = expect(t, c.do(http.MethodPost, "/v1/journals/"+id+"/users", "admin", map[string]any{
		"user_id": "ed", "role": "editor",
	}), http.StatusConflict)
	if env.Kind != string(workflow.KindAlreadyAssigned) {
		t.Fatalf("expected already_assigned, got %+v", env)
	}

	env = expect(t, c.do(http.MethodPost, "/v1/journals/"+id+"/users", "ed", map[string]any{
		"user_id": "au", "role": "reviewer",
	}), http.StatusForbidden)
	if env.Kind != string(workflow.KindForbidden) {
		t.Fatalf("expected forbidden, got %+v", env)
	}

	expect(t, c.do(http.MethodDelete, "/v1/journals/"+id+"/users", "admin", map[string]any{
		"user_id": "au", "role": "author",
	}), http.StatusOK)
	expect(t, c.do(http.MethodDelete, "/v1/journals/"+id+"/users", "admin", map[string]any{
		"user_id": "au", "role": "author",
	}), http.StatusNotFound)
}

func TestJournalSettingsAndDelete(t *testing.T) {
	c := newTestAPI(t)
	id := c.setupJournal()

	env := expect(t, c.do(http.MethodPatch, "/v1/journals/"+id, "admin", map[string]any{
		"name": "Renamed",
	}), http.StatusOK)
	j := field[struct {
		Name string `json:"name"`
	}](t, env.Journal)
	if j.Name != "Renamed" {
		t.Fatalf("unexpected name %q", j.Name)
	}

	expect(t, c.do(http.MethodDelete, "/v1/journals/"+id, "ed", nil), http.StatusForbidden)
	expect(t, c.do(http.MethodDelete, "/v1/journals/"+id, "admin", nil), http.StatusOK)
	expect(t, c.do(http.MethodGet, "/v1/journals/"+id+"/users", "admin", nil), http.StatusNotFound)
}

func TestPublicationFlow(t *testing.T) {
	c := newTestAPI(t)
	id := c.setupJournal()
	subID, versionID := c.submit(id)

	env := expect(t, c.do(http.MethodPost, "/v1/submissions/"+subID+"/versions/"+versionID+"/schedule", "ed", map[string]any{
		"publish_date": "2026-02-01",
	}), http.StatusBadRequest)
	if env.Kind != string(workflow.KindValidation) {
		t.Fatalf("past date should be a validation error: %+v", env)
	}

	env = expect(t, c.do(http.MethodPost, "/v1/submissions/"+subID+"/versions/"+versionID+"/schedule", "ed", map[string]any{
		"publish_date": "2026-04-01",
	}), http.StatusOK)
	v := field[struct {
		Status string `json:"status"`
	}](t, env.Version)
	if v.Status != "scheduled" {
		t.Fatalf("expected scheduled, got %q", v.Status)
	}

	expect(t, c.do(http.MethodPost, "/v1/submissions/"+subID+"/versions/"+versionID+"/publish", "au", nil), http.StatusForbidden)
	expect(t, c.do(http.MethodPost, "/v1/submissions/"+subID+"/versions/"+versionID+"/publish", "ed", nil), http.StatusOK)
	env = expect(t, c.do(http.MethodPost, "/v1/submissions/"+subID+"/versions/"+versionID+"/publish", "ed", nil), http.StatusConflict)
	if env.Kind != string(workflow.KindTerminalState) {
		t.Fatalf("expected terminal_state, got %+v", env)
	}

	env = expect(t, c.do(http.MethodPost, "/v1/submissions/"+subID+"/versions", "ed", nil), http.StatusCreated)
	next := field[struct {
		Number int `json:"version"`
	}](t, env.Version)
	if next.Number != 2 {
		t.Fatalf("expected version 2, got %d", next.Number)
	}

	env = expect(t, c.do(http.MethodGet, "/v1/submissions/"+subID+"/activity", "ed", nil), http.StatusOK)
	entries := field[[]activity.Entry](t, env.Activity)
	if len(entries) != 4 {
		t.Fatalf("expected 4 activity entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Sequence <= entries[i-1].Sequence {
			t.Fatalf("activity out of order: %+v", entries)
		}
	}
}

func TestLibraryFiles(t *testing.T) {
	c := newTestAPI(t)
	id := c.setupJournal()

	env := expect(t, c.do(http.MethodPost, "/v1/journals/"+id+"/library-files", "ed", map[string]any{
		"label": "Style guide", "stage": "copyediting", "remote_url": "https://example.org/style.pdf",
	}), http.StatusCreated)
	linked := field[struct {
		ID string `json:"id"`
	}](t, env.File)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	_ = mw.WriteField("label", "Author Template")
	_ = mw.WriteField("stage", "submission")
	part, err := mw.CreateFormFile("file", "Template.DOCX")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write([]byte("template body"))
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, c.baseURL+"/v1/journals/"+id+"/library-files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(authHeader, bearer+c.token("ed"))
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	env = expect(t, resp, http.StatusCreated)
	uploaded := field[struct {
		ID          string `json:"id"`
		StoragePath string `json:"storage_path"`
	}](t, env.File)
	if !strings.HasPrefix(uploaded.StoragePath, id+"/") || !strings.HasSuffix(uploaded.StoragePath, "-author-template.docx") {
		t.Fatalf("unexpected storage path %q", uploaded.StoragePath)
	}
	if string(c.objects.objects[uploaded.StoragePath]) != "template body" {
		t.Fatalf("object not uploaded")
	}

	env = expect(t, c.do(http.MethodGet, "/v1/journals/"+id+"/library-files?stage=submission", "ed", nil), http.StatusOK)
	if files := field[[]json.RawMessage](t, env.Files); len(files) != 1 {
		t.Fatalf("expected 1 submission-stage file, got %d", len(files))
	}
	expect(t, c.do(http.MethodGet, "/v1/journals/"+id+"/library-files?stage=bogus", "ed", nil), http.StatusBadRequest)

	resp = c.do(http.MethodGet, "/v1/journals/"+id+"/library-files/"+uploaded.ID+"/download", "ed", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || !strings.HasSuffix(resp.Header.Get("Location"), uploaded.StoragePath) {
		t.Fatalf("unexpected download redirect: %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}

	expect(t, c.do(http.MethodPatch, "/v1/journals/"+id+"/library-files/"+linked.ID, "ed", map[string]any{
		"label": "House style",
	}), http.StatusOK)
	expect(t, c.do(http.MethodDelete, "/v1/journals/"+id+"/library-files/"+uploaded.ID, "ed", nil), http.StatusOK)
	if _, ok := c.objects.objects[uploaded.StoragePath]; ok {
		t.Fatalf("object not removed on delete")
	}
}

func TestActivityStream(t *testing.T) {
	c := newTestAPI(t)
	id := c.setupJournal()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/journals/"+id+"/activity/stream", nil)
	req.Header.Set(authHeader, bearer+c.token("ed"))
	req.Header.Set("Last-Event-ID", "1")
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		t.Fatalf("unexpected stream response: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	reader := bufio.NewReader(resp.Body)
	var ids []string
	readEvent := func() {
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			if strings.HasPrefix(line, "id: ") {
				ids = append(ids, strings.TrimSpace(strings.TrimPrefix(line, "id: ")))
				return
			}
		}
	}

	// journal creation is sequence 1; the two role assignments are backlog
	readEvent()
	readEvent()

	c.submit(id)
	readEvent()

	if strings.Join(ids, ",") != "2,3,4" {
		t.Fatalf("unexpected event ids: %v", ids)
	}
}

func TestParsePublishDate(t *testing.T) {
	got, err := parsePublishDate("2026-05-04")
	if err != nil || !got.Equal(time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("date only: %v %v", got, err)
	}
	got, err = parsePublishDate("2026-05-04T10:00:00+02:00")
	if err != nil || !got.Equal(time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("rfc3339: %v %v", got, err)
	}
	if _, err := parsePublishDate("04/05/2026"); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestTransportRejectionsCarryKind(t *testing.T) {
	c := newTestAPI(t)
	id := c.setupJournal()
	subID, versionID := c.submit(id)

	env := expect(t, c.do(http.MethodPost, "/v1/submissions/"+subID+"/versions/"+versionID+"/schedule", "ed", map[string]any{}), http.StatusBadRequest)
	if env.Kind != string(workflow.KindValidation) {
		t.Fatalf("missing publish_date: %+v", env)
	}

	env = expect(t, c.do(http.MethodGet, "/v1/journals/"+id+"/users", "", nil), http.StatusUnauthorized)
	if env.Kind != string(workflow.KindUnauthenticated) {
		t.Fatalf("missing token: %+v", env)
	}

	req, _ := http.NewRequest(http.MethodPost, c.baseURL+"/v1/journals/"+id+"/users", strings.NewReader(`{"user_id":`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(authHeader, bearer+c.token("admin"))
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("malformed body: %v", err)
	}
	env = expect(t, resp, http.StatusBadRequest)
	if env.Kind != string(workflow.KindValidation) {
		t.Fatalf("malformed body: %+v", env)
	}

	env = expect(t, c.do(http.MethodPut, "/v1/submissions/"+subID+"/versions/"+versionID+"/publish", "ed", nil), http.StatusMethodNotAllowed)
	if env.Kind != "method_not_allowed" {
		t.Fatalf("wrong method: %+v", env)
	}
}

func TestPathIDsMustMatch(t *testing.T) {
	c := newTestAPI(t)
	id := c.setupJournal()
	subA, _ := c.submit(id)
	_, versionB := c.submit(id)

	env := expect(t, c.do(http.MethodPost, "/v1/submissions/"+subA+"/versions/"+versionB+"/publish", "ed", nil), http.StatusNotFound)
	if env.Kind != string(workflow.KindNotFound) {
		t.Fatalf("foreign version: %+v", env)
	}
	expect(t, c.do(http.MethodPost, "/v1/submissions/"+subA+"/versions/"+versionB+"/schedule", "ed", map[string]any{
		"publish_date": "2026-04-01",
	}), http.StatusNotFound)

	env = expect(t, c.do(http.MethodPost, "/v1/journals", "admin", map[string]any{
		"name": "Other Journal", "path": "other",
	}), http.StatusCreated)
	other := field[struct {
		ID string `json:"id"`
	}](t, env.Journal).ID
	env = expect(t, c.do(http.MethodPost, "/v1/journals/"+id+"/library-files", "ed", map[string]any{
		"label": "Style guide", "remote_url": "https://example.org/style.pdf",
	}), http.StatusCreated)
	file := field[struct {
		ID string `json:"id"`
	}](t, env.File).ID

	expect(t, c.do(http.MethodGet, "/v1/journals/"+other+"/library-files/"+file+"/download", "admin", nil), http.StatusNotFound)
	expect(t, c.do(http.MethodDelete, "/v1/journals/"+other+"/library-files/"+file, "admin", nil), http.StatusNotFound)
	expect(t, c.do(http.MethodDelete, "/v1/journals/"+id+"/library-files/"+file, "admin", nil), http.StatusOK)
}

func (c *apiClient) uploadSubmissionFile(subID, user, fileName string, fields map[string]string) *http.Response {
	c.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		c.t.Fatalf("form file: %v", err)
	}
	_, _ = part.Write([]byte("manuscript body"))
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, c.baseURL+"/v1/submissions/"+subID+"/files", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(authHeader, bearer+c.token(user))
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("upload: %v", err)
	}
	return resp
}

func TestSubmissionFiles(t *testing.T) {
	c := newTestAPI(t)
	id := c.setupJournal()
	subID, _ := c.submit(id)

	type fileView struct {
		ID               string `json:"id"`
		Stage            string `json:"stage"`
		StoragePath      string `json:"storage_path"`
		VisibleToAuthors bool   `json:"visible_to_authors"`
	}

	env := expect(t, c.uploadSubmissionFile(subID, "au", "Paper.docx", map[string]string{"label": "Manuscript"}), http.StatusCreated)
	manuscript := field[fileView](t, env.File)
	if manuscript.Stage != "submission" || !manuscript.VisibleToAuthors {
		t.Fatalf("unexpected author file: %+v", manuscript)
	}
	if string(c.objects.objects[manuscript.StoragePath]) != "manuscript body" {
		t.Fatalf("object not uploaded at %q", manuscript.StoragePath)
	}

	env = expect(t, c.uploadSubmissionFile(subID, "au", "galley.pdf", map[string]string{"label": "Galley", "stage": "production"}), http.StatusForbidden)
	if env.Kind != string(workflow.KindForbidden) {
		t.Fatalf("author production upload: %+v", env)
	}
	env = expect(t, c.uploadSubmissionFile(subID, "ed", "notes.pdf", map[string]string{"label": "Notes", "round": "zero"}), http.StatusBadRequest)
	if env.Kind != string(workflow.KindValidation) {
		t.Fatalf("bad round: %+v", env)
	}
	env = expect(t, c.uploadSubmissionFile(subID, "ed", "notes.pdf", map[string]string{"label": "Editor notes", "stage": "review"}), http.StatusCreated)
	notes := field[fileView](t, env.File)

	env = expect(t, c.do(http.MethodGet, "/v1/submissions/"+subID+"/files", "au", nil), http.StatusOK)
	if files := field[[]fileView](t, env.Files); len(files) != 1 || files[0].ID != manuscript.ID {
		t.Fatalf("author should only see visible files: %+v", files)
	}
	env = expect(t, c.do(http.MethodGet, "/v1/submissions/"+subID+"/files", "ed", nil), http.StatusOK)
	if files := field[[]fileView](t, env.Files); len(files) != 2 {
		t.Fatalf("editor should see both files: %+v", files)
	}

	resp := c.do(http.MethodGet, "/v1/submissions/"+subID+"/files/"+manuscript.ID+"/download", "au", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || !strings.HasSuffix(resp.Header.Get("Location"), manuscript.StoragePath) {
		t.Fatalf("unexpected download redirect: %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	expect(t, c.do(http.MethodGet, "/v1/submissions/"+subID+"/files/"+notes.ID+"/download", "au", nil), http.StatusNotFound)
}

func TestActivityStreamOutOfOrder(t *testing.T) {
	c := newTestAPI(t)
	id := c.setupJournal()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/journals/"+id+"/activity/stream", nil)
	req.Header.Set(authHeader, bearer+c.token("ed"))
	resp, err := c.client.Do(req)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	readLine := func() string {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("read stream: %v", err)
		}
		return line
	}
	for !strings.HasPrefix(readLine(), ": stream started") {
	}

	// sequence 10 commits after 11
	for _, seq := range []int64{11, 10, 11} {
		c.feed.Publish(activity.Entry{ContextID: id, Sequence: seq, Category: activity.CategoryJournal, Message: "x"})
	}
	c.feed.Publish(activity.Entry{ContextID: id, Sequence: 12, Category: activity.CategoryJournal, Message: "y"})

	var ids []string
	for len(ids) < 3 {
		if line := readLine(); strings.HasPrefix(line, "id: ") {
			ids = append(ids, strings.TrimSpace(strings.TrimPrefix(line, "id: ")))
		}
	}
	if strings.Join(ids, ",") != "11,10,12" {
		t.Fatalf("unexpected event ids: %v", ids)
	}
}

func TestSeenSequences(t *testing.T) {
	seen := newSeenSequences(2)
	if !seen.add(5) || !seen.add(3) {
		t.Fatal("new sequences rejected")
	}
	if seen.add(5) {
		t.Fatal("repeat accepted")
	}
	if !seen.add(7) {
		t.Fatal("new sequence rejected")
	}
	// 5 is the oldest and has been evicted
	if !seen.add(5) {
		t.Fatal("evicted sequence still remembered")
	}
	if seen.add(7) {
		t.Fatal("recent sequence forgotten")
	}
}
