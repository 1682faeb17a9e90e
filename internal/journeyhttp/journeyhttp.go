/*
Package journeyhttp wires the Journey Tracker's validation/enrichment logic
(internal/journey) onto chi HTTP handlers for POST /t and POST /t/batch
(§4.6), following the teacher gateway's router/middleware conventions:
CORS first, then a small request-scoped JSON response helper.
*/
package journeyhttp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/outcomeops/analytics-ingest/internal/config"
	"github.com/outcomeops/analytics-ingest/internal/journey"
	"github.com/outcomeops/analytics-ingest/internal/obslog"
	"github.com/outcomeops/analytics-ingest/internal/schema"
)

const maxBatchSize = 100

// EventWriter persists one enriched session event to the Event Store.
type EventWriter interface {
	WriteOne(ctx context.Context, ev schema.SessionEvent) error
}

// Handler holds the dependencies shared by the tracker's HTTP handlers.
type Handler struct {
	cfg    *config.Config
	writer EventWriter
	logger zerolog.Logger
}

// NewHandler builds a tracker Handler.
func NewHandler(cfg *config.Config, writer EventWriter, logger zerolog.Logger) *Handler {
	return &Handler{cfg: cfg, writer: writer, logger: obslog.Named(logger, "journey-tracker")}
}

// NewRouter returns a chi Router mounting /t, /t/batch, and /healthz with the
// CORS policy of §4.6.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(corsMiddleware)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", h.HealthZ)
	r.Post("/t", h.Track)
	r.Post("/t/batch", h.TrackBatch)

	r.NotFound(writeError(http.StatusNotFound, "not found"))
	r.MethodNotAllowed(writeError(http.StatusMethodNotAllowed, "method not allowed"))

	return r
}

// corsMiddleware applies the tracker's fixed CORS policy and short-circuits
// preflight OPTIONS requests with an empty 200 response (§4.6).
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// HealthZ is a liveness probe, unauthenticated and uncached.
func (h *Handler) HealthZ(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type trackResponse struct {
	Status string `json:"status"`
}

type batchResponse struct {
	Status  string `json:"status"`
	Written int    `json:"written"`
	Errors  int    `json:"errors"`
}

// Track handles POST /t: a single tracking event.
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	if h.cfg.SessionsTable == "" {
		writeError(http.StatusInternalServerError, "SESSIONS_TABLE not configured")(w, r)
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeError(http.StatusBadRequest, "invalid request body")(w, r)
		return
	}

	var ev journey.RawEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		writeError(http.StatusBadRequest, "invalid JSON body")(w, r)
		return
	}

	if err := journey.Validate(ev, h.cfg); err != nil {
		writeError(http.StatusBadRequest, err.Error())(w, r)
		return
	}

	enriched := journey.Enrich(ev, time.Now().UTC())
	if err := h.writer.WriteOne(r.Context(), enriched); err != nil {
		h.logger.Warn().Err(err).Str("session_id", ev.SessionID).Msg("failed to write tracking event")
		writeError(http.StatusBadRequest, "failed to record event")(w, r)
		return
	}

	writeJSON(w, http.StatusOK, trackResponse{Status: "ok"})
}

type batchRequest struct {
	Events []journey.RawEvent `json:"events"`
}

// TrackBatch handles POST /t/batch: batched tracking events (§4.6). Events
// that fail validation are tallied as errors; they never fail the batch.
func (h *Handler) TrackBatch(w http.ResponseWriter, r *http.Request) {
	if h.cfg.SessionsTable == "" {
		writeError(http.StatusInternalServerError, "SESSIONS_TABLE not configured")(w, r)
		return
	}

	body, err := readBody(r)
	if err != nil {
		writeError(http.StatusBadRequest, "invalid request body")(w, r)
		return
	}

	var req batchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(http.StatusBadRequest, "invalid JSON body")(w, r)
		return
	}

	if len(req.Events) == 0 {
		writeError(http.StatusBadRequest, "no events provided")(w, r)
		return
	}
	if len(req.Events) > maxBatchSize {
		writeError(http.StatusBadRequest, "maximum 100 events per batch")(w, r)
		return
	}

	written := 0
	errs := 0
	now := time.Now().UTC()
	for _, ev := range req.Events {
		if err := journey.Validate(ev, h.cfg); err != nil {
			errs++
			continue
		}
		enriched := journey.Enrich(ev, now)
		if err := h.writer.WriteOne(r.Context(), enriched); err != nil {
			h.logger.Warn().Err(err).Str("session_id", ev.SessionID).Msg("failed to write batched tracking event")
			errs++
			continue
		}
		written++
	}

	writeJSON(w, http.StatusOK, batchResponse{Status: "ok", Written: written, Errors: errs})
}

// readBody reads the request body, transparently base64-decoding it when the
// platform delivers it wrapped (§4.6, §6).
func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if r.Header.Get("X-Body-Base64-Encoded") != "true" {
		return raw, nil
	}
	decoded, err := base64.StdEncoding.DecodeString(string(raw))
	if err != nil {
		return nil, err
	}
	return decoded, nil
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError returns a handler that writes a standardized {error} body (§7).
func writeError(status int, msg string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, errorBody{Error: msg})
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
