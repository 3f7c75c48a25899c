package httpapi

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"journalflow.org/internal/auth"
	"journalflow.org/internal/obs"
	"journalflow.org/internal/workflow"
)

// ReadyProbe pings the database and any extra dependency checks.
type ReadyProbe struct {
	DB     *sql.DB
	Checks map[string]func(context.Context) error
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	var errs []error
	for name, check := range rp.Checks {
		if err := check(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// API is the HTTP transport over the workflow service.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	svc    *workflow.Service
	tokens *auth.Tokens
	log    zerolog.Logger

	rateBurst    int
	ratePerSec   float64
	maxBodyBytes int64
	corsOrigins  []string
}

func New(rp ReadyProbe, version string, svc *workflow.Service, tokens *auth.Tokens) *API {
	a := &API{
		mux:          http.NewServeMux(),
		readyProbe:   rp,
		version:      version,
		svc:          svc,
		tokens:       tokens,
		log:          obs.Logger().With().Str("component", "httpapi").Logger(),
		rateBurst:    40,
		ratePerSec:   20,
		maxBodyBytes: 32 << 20,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/journals", a.handleJournals)
	a.mux.HandleFunc("/v1/journals/", a.handleJournalScoped)
	a.mux.HandleFunc("/v1/submissions/", a.handleSubmissionScoped)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})

	return a
}

// WithRateLimit overrides the per-client token bucket.
func (a *API) WithRateLimit(perSecond float64, burst int) *API {
	if perSecond > 0 && burst > 0 {
		a.ratePerSec = perSecond
		a.rateBurst = burst
	}
	return a
}

// WithCORSOrigins allows browser calls from the given origins in addition to localhost.
func (a *API) WithCORSOrigins(origins ...string) *API {
	a.corsOrigins = append(a.corsOrigins, origins...)
	return a
}

// Handler returns the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = obs.Instrument(h)
	h = MaxBodyBytes(h, a.maxBodyBytes)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h, a.corsOrigins...)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	return RequestID(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": obs.ServiceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    obs.ServiceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func actor(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}
