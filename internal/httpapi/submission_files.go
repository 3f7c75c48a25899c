package httpapi

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"journalflow.org/internal/submission"
	"journalflow.org/internal/workflow"
)

func (a *API) handleSubmissionFiles(w http.ResponseWriter, r *http.Request, submissionID string) {
	switch r.Method {
	case http.MethodGet:
		files, err := a.svc.ListSubmissionFiles(r.Context(), actor(r), submissionID)
		if err != nil {
			writeWorkflowError(w, r, err)
			return
		}
		if files == nil {
			files = []submission.File{}
		}
		writeOK(w, http.StatusOK, map[string]any{"files": files})
	case http.MethodPost:
		in, cleanup, err := readSubmissionFile(r)
		if err != nil {
			writeFailure(w, r, http.StatusBadRequest, workflow.KindValidation, err.Error())
			return
		}
		defer cleanup()
		in.SubmissionID = submissionID
		f, err := a.svc.UploadSubmissionFile(r.Context(), actor(r), in)
		if err != nil {
			writeWorkflowError(w, r, err)
			return
		}
		writeOK(w, http.StatusCreated, map[string]any{"file": f})
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// readSubmissionFile parses a multipart upload: the "file" part plus label,
// stage, kind, round and visible_to_authors fields.
func readSubmissionFile(r *http.Request) (workflow.NewSubmissionFile, func(), error) {
	noop := func() {}
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return workflow.NewSubmissionFile{}, noop, errors.New("submission files are uploaded as multipart/form-data")
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return workflow.NewSubmissionFile{}, noop, err
	}
	closeForm := func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}
	in := workflow.NewSubmissionFile{
		Label: r.FormValue("label"),
		Stage: submission.FileStage(strings.TrimSpace(r.FormValue("stage"))),
		Kind:  r.FormValue("kind"),
	}
	if raw := strings.TrimSpace(r.FormValue("round")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			closeForm()
			return workflow.NewSubmissionFile{}, noop, errors.New("round must be a positive integer")
		}
		in.Round = n
	}
	if raw := strings.TrimSpace(r.FormValue("visible_to_authors")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			closeForm()
			return workflow.NewSubmissionFile{}, noop, errors.New("visible_to_authors must be true or false")
		}
		in.VisibleToAuthors = v
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		closeForm()
		if errors.Is(err, http.ErrMissingFile) {
			return workflow.NewSubmissionFile{}, noop, errors.New("file is required")
		}
		return workflow.NewSubmissionFile{}, noop, err
	}
	in.Upload = &workflow.Upload{
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	return in, func() {
		_ = file.Close()
		closeForm()
	}, nil
}

func (a *API) handleSubmissionFileDownload(w http.ResponseWriter, r *http.Request, submissionID, fileID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	url, err := a.svc.SubmissionFileDownloadURL(r.Context(), actor(r), submissionID, fileID)
	if err != nil {
		writeWorkflowError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}
