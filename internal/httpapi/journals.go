package httpapi

import (
	"net/http"

	"journalflow.org/internal/journal"
	"journalflow.org/internal/submission"
	"journalflow.org/internal/workflow"
)

// POST /v1/journals
func (a *API) handleJournals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var in journal.Input
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	j, err := a.svc.CreateJournal(r.Context(), actor(r), in)
	if err != nil {
		writeWorkflowError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{"journal": j})
}

// /v1/journals/{id}[/...]
func (a *API) handleJournalScoped(w http.ResponseWriter, r *http.Request) {
	parts := pathParts(r.URL.Path, "/v1/journals/")
	if len(parts) == 0 {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		a.handleJournal(w, r, id)
		return
	}

	switch parts[1] {
	case "users":
		if len(parts) == 2 {
			a.handleJournalUsers(w, r, id)
			return
		}
	case "submissions":
		if len(parts) == 2 {
			a.handleCreateSubmission(w, r, id)
			return
		}
	case "library-files":
		switch len(parts) {
		case 2:
			a.handleLibraryFiles(w, r, id)
			return
		case 3:
			a.handleLibraryFile(w, r, id, parts[2])
			return
		case 4:
			if parts[3] == "download" {
				a.handleLibraryDownload(w, r, id, parts[2])
				return
			}
		}
	case "activity":
		if len(parts) == 3 && parts[2] == "stream" {
			a.handleActivityStream(w, r, id)
			return
		}
	}
	writeError(w, r, http.StatusNotFound, "resource not found")
}

func (a *API) handleJournal(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodPatch:
		var u journal.Update
		if err := decodeJSON(w, r, &u); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		j, err := a.svc.UpdateJournal(r.Context(), actor(r), id, u)
		if err != nil {
			writeWorkflowError(w, r, err)
			return
		}
		writeOK(w, http.StatusOK, map[string]any{"journal": j})
	case http.MethodDelete:
		if err := a.svc.DeleteJournal(r.Context(), actor(r), id); err != nil {
			writeWorkflowError(w, r, err)
			return
		}
		writeOK(w, http.StatusOK, nil)
	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleJournalUsers(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		users, err := a.svc.ListJournalUsers(r.Context(), actor(r), id)
		if err != nil {
			writeWorkflowError(w, r, err)
			return
		}
		if users == nil {
			users = []workflow.JournalUser{}
		}
		writeOK(w, http.StatusOK, map[string]any{"users": users})
	case http.MethodPost:
		var c workflow.RoleChange
		if err := decodeJSON(w, r, &c); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		c.ContextID = id
		asg, err := a.svc.AssignRole(r.Context(), actor(r), c)
		if err != nil {
			writeWorkflowError(w, r, err)
			return
		}
		writeOK(w, http.StatusCreated, map[string]any{"assignment": asg})
	case http.MethodDelete:
		var c workflow.RoleChange
		if err := decodeJSON(w, r, &c); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		c.ContextID = id
		if err := a.svc.RevokeRole(r.Context(), actor(r), c); err != nil {
			writeWorkflowError(w, r, err)
			return
		}
		writeOK(w, http.StatusOK, nil)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

type createSubmissionRequest struct {
	Title    string              `json:"title"`
	Abstract string              `json:"abstract"`
	Keywords []string            `json:"keywords"`
	Language string              `json:"language"`
	Authors  []submission.Author `json:"authors"`
}

func (a *API) handleCreateSubmission(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req createSubmissionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	out, err := a.svc.CreateSubmission(r.Context(), actor(r), submission.Submission{
		ContextID: id,
		Title:     req.Title,
		Abstract:  req.Abstract,
		Keywords:  req.Keywords,
		Language:  req.Language,
		Authors:   req.Authors,
	})
	if err != nil {
		writeWorkflowError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, map[string]any{
		"submission": out.Submission,
		"version":    out.Version,
	})
}
