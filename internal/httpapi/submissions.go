package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"journalflow.org/internal/activity"
	"journalflow.org/internal/workflow"
)

type createVersionRequest struct {
	Notes string `json:"notes"`
}

type scheduleRequest struct {
	PublishDate string `json:"publish_date"`
}

// /v1/submissions/{id}/...
func (a *API) handleSubmissionScoped(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/submissions/")
	if len(parts) < 2 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id := parts[0]
	switch {
	case parts[1] == "activity" && len(parts) == 2:
		a.handleSubmissionActivity(w, r, id)
	case parts[1] == "versions" && len(parts) == 2:
		a.handleCreateVersion(w, r, id)
	case parts[1] == "versions" && len(parts) == 4 && parts[3] == "schedule":
		a.handleScheduleVersion(w, r, id, parts[2])
	case parts[1] == "versions" && len(parts) == 4 && parts[3] == "publish":
		a.handlePublishVersion(w, r, id, parts[2])
	case parts[1] == "files" && len(parts) == 2:
		a.handleSubmissionFiles(w, r, id)
	case parts[1] == "files" && len(parts) == 4 && parts[3] == "download":
		a.handleSubmissionFileDownload(w, r, id, parts[2])
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleCreateVersion(w http.ResponseWriter, r *http.Request, submissionID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req createVersionRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	v, err := a.svc.CreateVersion(r.Context(), actor(r), submissionID, req.Notes)
	if err != nil {
		writeWorkflowError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{"version": v})
}

func (a *API) handleScheduleVersion(w http.ResponseWriter, r *http.Request, submissionID, versionID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req scheduleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	date, err := parsePublishDate(req.PublishDate)
	if err != nil {
		writeFailure(w, r, http.StatusBadRequest, workflow.KindValidation, err.Error())
		return
	}
	v, err := a.svc.ScheduleVersion(r.Context(), actor(r), submissionID, versionID, date)
	if err != nil {
		writeWorkflowError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"version": v})
}

func (a *API) handlePublishVersion(w http.ResponseWriter, r *http.Request, submissionID, versionID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	v, err := a.svc.PublishVersion(r.Context(), actor(r), submissionID, versionID)
	if err != nil {
		writeWorkflowError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, map[string]any{"version": v})
}

func (a *API) handleSubmissionActivity(w http.ResponseWriter, r *http.Request, submissionID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	entries, err := a.svc.ListActivity(r.Context(), actor(r), submissionID)
	if err != nil {
		writeWorkflowError(w, r, err)
		return
	}
	if entries == nil {
		entries = []activity.Entry{}
	}
	writeOK(w, http.StatusOK, map[string]any{"activity": entries})
}

// parsePublishDate accepts RFC 3339 timestamps or bare dates (UTC midnight).
func parsePublishDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("publish_date is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Time{}, errors.New("publish_date must be RFC 3339 or YYYY-MM-DD")
}
