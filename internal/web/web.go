package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/emersion/go-ical"
	"github.com/gorilla/mux"

	"weekcal/internal/config"
	"weekcal/internal/ics"
	appLog "weekcal/internal/log"
	"weekcal/internal/model"
)

// maxBodyBytes caps POST /api/events request bodies.
const maxBodyBytes = 64 << 10

// EventSource is what the HTTP layer needs from the calendar feed.
// *ics.Feed satisfies it.
type EventSource interface {
	Body(ctx context.Context) ([]byte, error)
	Events(ctx context.Context, ref time.Time) (model.EventList, error)
}

// Server exposes the normalized week view of one ICS feed over HTTP.
type Server struct {
	src    EventSource
	auth   *config.BasicAuthConfig
	router *mux.Router
}

// NewServer constructs a new Server. cfg may be nil (no auth).
func NewServer(cfg *config.Config, src EventSource) *Server {
	s := &Server{
		src:    src,
		router: mux.NewRouter(),
	}
	if cfg != nil && cfg.BasicAuth != nil && cfg.BasicAuth.Username != "" && cfg.BasicAuth.Password != "" {
		s.auth = cfg.BasicAuth
	}
	s.registerRoutes()
	return s
}

// Handler returns the root http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.auth != nil {
		appLog.Info("HTTP basic auth enabled")
		h = basicAuth(s.auth.Username, s.auth.Password, h)
	}
	return logRequests(recoverPanics(h))
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet, http.MethodHead)
	s.router.HandleFunc("/api/events", s.handleEvents).Methods(http.MethodGet, http.MethodPost)
	s.router.HandleFunc("/calendar.ics", s.handleCalendar).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// eventsRequest is the POST body of /api/events.
type eventsRequest struct {
	CurrentTime *string `json:"current_time"`
}

// eventsResponse is the JSON response shape for /api/events. Events is null
// only alongside Error.
type eventsResponse struct {
	Events model.EventList `json:"events"`
	Error  string          `json:"error,omitempty"`
}

// handleEvents returns the week's events for a reference time.
//
//	GET  /api/events?current_time=2024-06-12T15:00:00Z
//	POST /api/events {"current_time": "2024-06-12T15:00:00Z"}
//
// A missing reference time means "now".
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	raw, err := referenceInput(r)
	if err != nil {
		writeEventsError(w, http.StatusBadRequest, err.Error())
		return
	}

	ref, err := ics.ParseReferenceTime(raw)
	if err != nil {
		writeEventsError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := s.src.Events(ctx, ref)
	if err != nil {
		var verr *ics.ValidationError
		if errors.As(err, &verr) {
			writeEventsError(w, http.StatusBadRequest, err.Error())
			return
		}
		appLog.Error("api events failed", err, "request_id", RequestID(ctx), "current_time", ref.Format(time.RFC3339))
		writeEventsError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if events == nil {
		events = model.EventList{}
	}

	appLog.Debug("api events", "request_id", RequestID(ctx), "week_start", ics.WeekStart(ref).Format(time.DateOnly), "count", len(events))
	writeJSON(w, http.StatusOK, eventsResponse{Events: events})
}

// referenceInput extracts the raw current_time value from the query string
// (GET) or the JSON body (POST).
func referenceInput(r *http.Request) (string, error) {
	if r.Method != http.MethodPost {
		return r.URL.Query().Get("current_time"), nil
	}

	var req eventsRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		return "", errors.New("invalid JSON body: " + err.Error())
	}
	if req.CurrentTime == nil {
		return "", nil
	}
	return *req.CurrentTime, nil
}

// handleCalendar passes the raw feed through as a download.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	body, err := s.src.Body(r.Context())
	if err != nil {
		appLog.Error("calendar passthrough failed", err, "request_id", RequestID(r.Context()))
		http.Error(w, "failed to fetch calendar", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", ical.MIMEType)
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeEventsError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, eventsResponse{Error: msg})
}
