package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"journalflow.org/internal/workflow"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeOK wraps data in the success envelope.
func writeOK(w http.ResponseWriter, code int, data map[string]any) {
	payload := map[string]any{"ok": true}
	for k, v := range data {
		payload[k] = v
	}
	writeJSON(w, code, payload)
}

// Transport-only failure kinds.
const (
	kindMethodNotAllowed workflow.Kind = "method_not_allowed"
	kindRateLimited      workflow.Kind = "rate_limited"
)

var statusKind = map[int]workflow.Kind{
	http.StatusBadRequest:            workflow.KindValidation,
	http.StatusUnauthorized:          workflow.KindUnauthenticated,
	http.StatusForbidden:             workflow.KindForbidden,
	http.StatusNotFound:              workflow.KindNotFound,
	http.StatusMethodNotAllowed:      kindMethodNotAllowed,
	http.StatusRequestEntityTooLarge: workflow.KindValidation,
	http.StatusTooManyRequests:       kindRateLimited,
	http.StatusGatewayTimeout:        workflow.KindTimeout,
}

// writeError reports a transport-level rejection; the kind follows from code.
func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	kind, ok := statusKind[code]
	if !ok {
		kind = workflow.KindStoreFailure
	}
	writeFailure(w, r, code, kind, msg)
}

func writeFailure(w http.ResponseWriter, r *http.Request, code int, kind workflow.Kind, msg string) {
	payload := map[string]any{
		"ok":      false,
		"message": msg,
		"kind":    kind,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

var kindStatus = map[workflow.Kind]int{
	workflow.KindForbidden:         http.StatusForbidden,
	workflow.KindNotFound:          http.StatusNotFound,
	workflow.KindAlreadyAssigned:   http.StatusConflict,
	workflow.KindInvalidTransition: http.StatusConflict,
	workflow.KindTerminalState:     http.StatusConflict,
	workflow.KindValidation:        http.StatusBadRequest,
	workflow.KindTimeout:           http.StatusGatewayTimeout,
	workflow.KindStoreFailure:      http.StatusInternalServerError,
}

// writeWorkflowError maps an orchestrator failure onto the HTTP envelope.
func writeWorkflowError(w http.ResponseWriter, r *http.Request, err error) {
	var we *workflow.Error
	if !errors.As(err, &we) {
		writeFailure(w, r, http.StatusInternalServerError, workflow.KindStoreFailure, "internal error")
		return
	}
	code, ok := kindStatus[we.Kind]
	if !ok {
		code = http.StatusInternalServerError
	}
	writeFailure(w, r, code, we.Kind, we.Message)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// pathParts splits the path after prefix into non-empty segments.
func pathParts(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
