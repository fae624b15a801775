// Package server exposes the heartbeat ingress, health and status endpoints
// and a websocket feed of cycle reports.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"go-watchdog/internal/config"
	"go-watchdog/internal/heartbeat"
	"go-watchdog/internal/models"
	"go-watchdog/internal/scanner"
	"go-watchdog/internal/store"
)

const requestTimeout = 10 * time.Second

// Snapshot is the scanner state the server reads.
type Snapshot interface {
	Latest() (scanner.Report, bool)
	EnabledWatchdog(id int) (w models.Watchdog, found, known bool)
}

// WatchdogGetter resolves watchdogs before the scanner has loaded any.
type WatchdogGetter interface {
	GetWatchdog(ctx context.Context, id int) (models.Watchdog, error)
}

type Server struct {
	cfg     config.ServerConfig
	snap    Snapshot
	store   WatchdogGetter
	tracker *heartbeat.Tracker
	hub     *Hub
	logger  *log.Logger
	now     func() time.Time
}

func New(cfg config.ServerConfig, snap Snapshot, st WatchdogGetter, tracker *heartbeat.Tracker, logger *log.Logger) *Server {
	return &Server{
		cfg:     cfg,
		snap:    snap,
		store:   st,
		tracker: tracker,
		hub:     NewHub(),
		logger:  logger,
		now:     time.Now,
	}
}

// Broadcast pushes report to every websocket subscriber. It is meant to be
// registered as a scanner observer.
func (s *Server) Broadcast(report scanner.Report) {
	s.hub.Broadcast(report)
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))

		r.Get("/api/heartbeat/{id}", s.handleHeartbeat)
		r.Post("/api/heartbeat/{id}", s.handleHeartbeat)
		r.Get("/api/health", s.handleHealth)

		if s.cfg.StatusPage {
			r.Get("/status", s.handleStatusPage)
			r.Get("/status/json", s.handleStatusJSON)
		}
	})

	r.Get("/api/ws", s.handleWS)
	return r
}

// Start serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Router(),
		ReadHeaderTimeout: requestTimeout,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		s.hub.Close()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("http server listening", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		http.Error(w, "invalid watchdog id", http.StatusBadRequest)
		return
	}

	wd, found, err := s.lookup(r.Context(), id)
	if err != nil {
		s.logger.Error("heartbeat lookup failed", "watchdog", id, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !found || !wd.Enabled || wd.Mode != models.ModePassive {
		http.Error(w, "unknown watchdog", http.StatusNotFound)
		return
	}

	s.tracker.Record(id, s.now())
	s.logger.Debug("heartbeat received", "watchdog", id, "name", wd.Name)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) lookup(ctx context.Context, id int) (models.Watchdog, bool, error) {
	if wd, found, known := s.snap.EnabledWatchdog(id); known {
		return wd, found, nil
	}
	wd, err := s.store.GetWatchdog(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Watchdog{}, false, nil
	}
	if err != nil {
		return models.Watchdog{}, false, err
	}
	return wd, true, nil
}

type healthResponse struct {
	Status      string     `json:"status"`
	Cycle       int64      `json:"cycle"`
	LastCycleAt *time.Time `json:"last_cycle_at,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if report, ok := s.snap.Latest(); ok {
		resp.Cycle = report.Cycle
		at := report.StartedAt
		resp.LastCycleAt = &at
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatusJSON(w http.ResponseWriter, _ *http.Request) {
	report, ok := s.snap.Latest()
	if !ok {
		writeJSON(w, http.StatusOK, scanner.Report{States: []models.WatchdogState{}})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"elapsed", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
