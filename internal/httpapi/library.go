package httpapi

import (
	"mime"
	"net/http"
	"strings"

	"journalflow.org/internal/journal"
	"journalflow.org/internal/workflow"
)

const maxUploadMemory = 8 << 20

type libraryFileRequest struct {
	Label       string        `json:"label"`
	Description string        `json:"description"`
	Stage       journal.Stage `json:"stage"`
	RemoteURL   string        `json:"remote_url"`
}

func (a *API) handleLibraryFiles(w http.ResponseWriter, r *http.Request, contextID string) {
	switch r.Method {
	case http.MethodGet:
		stage := journal.Stage(strings.TrimSpace(r.URL.Query().Get("stage")))
		files, err := a.svc.ListLibraryFiles(r.Context(), actor(r), contextID, stage)
		if err != nil {
			writeWorkflowError(w, r, err)
			return
		}
		if files == nil {
			files = []journal.LibraryFile{}
		}
		writeOK(w, http.StatusOK, map[string]any{"files": files})
	case http.MethodPost:
		in, cleanup, err := readLibraryFile(w, r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		defer cleanup()
		in.ContextID = contextID
		f, err := a.svc.CreateLibraryFile(r.Context(), actor(r), in)
		if err != nil {
			writeWorkflowError(w, r, err)
			return
		}
		writeOK(w, http.StatusCreated, map[string]any{"file": f})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// readLibraryFile accepts a JSON body for link-only files or a multipart
// form carrying the content in the "file" part.
func readLibraryFile(w http.ResponseWriter, r *http.Request) (workflow.NewLibraryFile, func(), error) {
	noop := func() {}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req libraryFileRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return workflow.NewLibraryFile{}, noop, err
		}
		return workflow.NewLibraryFile{
			Label:       req.Label,
			Description: req.Description,
			Stage:       req.Stage,
			RemoteURL:   req.RemoteURL,
		}, noop, nil
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return workflow.NewLibraryFile{}, noop, err
	}
	cleanup := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}
	in := workflow.NewLibraryFile{
		Label:       r.FormValue("label"),
		Description: r.FormValue("description"),
		Stage:       journal.Stage(r.FormValue("stage")),
		RemoteURL:   r.FormValue("remote_url"),
	}
	file, header, err := r.FormFile("file")
	switch {
	case err == http.ErrMissingFile:
	case err != nil:
		cleanup()
		return workflow.NewLibraryFile{}, noop, err
	default:
		in.Upload = &workflow.Upload{
			FileName:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		}
		closeForm := cleanup
		cleanup = func() {
			_ = file.Close()
			closeForm()
		}
	}
	return in, cleanup, nil
}

func (a *API) handleLibraryFile(w http.ResponseWriter, r *http.Request, contextID, fileID string) {
	switch r.Method {
	case http.MethodPatch:
		var u journal.LibraryUpdate
		if err := decodeJSON(w, r, &u); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		f, err := a.svc.UpdateLibraryFile(r.Context(), actor(r), contextID, fileID, u)
		if err != nil {
			writeWorkflowError(w, r, err)
			return
		}
		writeOK(w, http.StatusOK, map[string]any{"file": f})
	case http.MethodDelete:
		if err := a.svc.DeleteLibraryFile(r.Context(), actor(r), contextID, fileID); err != nil {
			writeWorkflowError(w, r, err)
			return
		}
		writeOK(w, http.StatusOK, nil)
	default:
		methodNotAllowed(w, r, http.MethodPatch, http.MethodDelete)
	}
}

func (a *API) handleLibraryDownload(w http.ResponseWriter, r *http.Request, contextID, fileID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	url, err := a.svc.LibraryFileDownloadURL(r.Context(), actor(r), contextID, fileID)
	if err != nil {
		writeWorkflowError(w, r, err)
		return
	}
	if url == "" {
		writeError(w, r, http.StatusNotFound, "file has no downloadable content")
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}
