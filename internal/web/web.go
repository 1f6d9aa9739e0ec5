// Package web exposes the calendar service over HTTP: a plain-JSON CRUD
// surface for raw records plus read-only consumer endpoints for the
// materialized calendar.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"taskcal/internal/config"
	"taskcal/internal/export"
	appLog "taskcal/internal/log"
	"taskcal/internal/model"
	"taskcal/internal/recur"
	"taskcal/internal/service"
)

// Server wires the HTTP routes onto a Service.
type Server struct {
	cfg *config.Config
	svc *service.Service
	mux *http.ServeMux
}

func NewServer(cfg *config.Config, svc *service.Service) *Server {
	s := &Server{
		cfg: cfg,
		svc: svc,
		mux: http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// StartServer starts an HTTP server bound to cfg.Listen and shuts it down
// when ctx is canceled.
func StartServer(ctx context.Context, cfg *config.Config, svc *service.Service) error {
	s := NewServer(cfg, svc)
	srv := &http.Server{
		Addr:    cfg.Listen,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		_ = srv.Shutdown(context.Background())
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/events/", s.handleEventByID)
	s.mux.HandleFunc("/api/projects", s.handleProjects)
	s.mux.HandleFunc("/api/calendar", s.handleCalendar)
	s.mux.HandleFunc("/api/calendar.ics", s.handleCalendarICS)
	s.mux.HandleFunc("/api/parents", s.handleParents)
	s.mux.HandleFunc("/api/parents/", s.handleParentUpcoming)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleEvents serves the raw record collection.
//
//	GET  /api/events  -> stored records (parents, standalone, exceptions)
//	POST /api/events  -> create a record; 201 with the stored form
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.svc.RawEvents(r.Context()))

	case http.MethodPost:
		var ev model.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}

		if ev.IsRecurring || ev.RecurrenceRule != "" {
			created, err := s.svc.CreateRecurringEvent(r.Context(), ev, ev.RecurrenceRule, ev.RecurrenceEnd)
			if err != nil {
				var perr *recur.ParseError
				if errors.As(err, &perr) {
					writeError(w, http.StatusBadRequest, "invalid recurrence rule")
					return
				}
				writeError(w, http.StatusInternalServerError, "failed to create event")
				return
			}
			writeJSON(w, http.StatusCreated, created)
			return
		}

		writeJSON(w, http.StatusCreated, s.svc.CreateEvent(r.Context(), ev))

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleEventByID serves one raw record.
//
//	GET    /api/events/{id} -> 200 or 404
//	PUT    /api/events/{id} -> merge patch body; 200 or 404
//	DELETE /api/events/{id} -> 204 or 404
func (s *Server) handleEventByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/events/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		ev, err := s.svc.GetEvent(r.Context(), id)
		if err != nil {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		writeJSON(w, http.StatusOK, ev)

	case http.MethodPut:
		var patch model.EventPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		updated, err := s.svc.UpdateEvent(r.Context(), id, patch)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				writeError(w, http.StatusNotFound, "not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to update event")
			return
		}
		writeJSON(w, http.StatusOK, updated)

	case http.MethodDelete:
		if !s.svc.DeleteEvent(r.Context(), id) {
			writeError(w, http.StatusNotFound, "not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.Projects(r.Context()))
}

// handleCalendar returns the materialized event list: standalone events,
// live exceptions and generated instances inside the expansion window.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	events := s.svc.LoadEvents(r.Context())
	writeJSON(w, http.StatusOK, calendarResponse{Events: events, Count: len(events)})
}

func (s *Server) handleCalendarICS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	feed := export.Feed(s.svc.LoadEvents(r.Context()), s.cfg.CalendarName)
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(feed); err != nil {
		appLog.Error("failed to write ICS response", err)
	}
}

func (s *Server) handleParents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.svc.GetRecurringParents(r.Context()))
}

// handleParentUpcoming serves GET /api/parents/{id}/upcoming?count=n.
func (s *Server) handleParentUpcoming(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/parents/")
	parentID, tail, ok := strings.Cut(rest, "/")
	if !ok || parentID == "" || tail != "upcoming" {
		http.NotFound(w, r)
		return
	}

	count := parseIntDefault(r.URL.Query().Get("count"), 5)
	instances := s.svc.GetUpcomingInstancesForParent(r.Context(), parentID, count)
	if instances == nil {
		instances = []model.Event{}
	}
	writeJSON(w, http.StatusOK, instances)
}

// calendarResponse is the JSON response shape for /api/calendar.
type calendarResponse struct {
	Events []model.Event `json:"events"`
	Count  int           `json:"count"`
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
