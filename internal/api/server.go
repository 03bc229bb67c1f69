// Package api is the local control plane: a loopback-only HTTP server that
// exposes batch status, the pause/resume/cancel/skip controls, history
// queries and the recent engine log lines. Every request is token-checked,
// rate-limited and written to the audit log.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"ytdle/internal/history"
	"ytdle/internal/queue"
)

// Controller is the slice of the engine the API drives. The engine satisfies
// it; tests substitute fakes.
type Controller interface {
	Pause()
	Resume()
	Cancel()
	SkipCurrent()
	IsPaused() bool
	Counts() (successCount, failCount int)
	BatchID() string
	InFlight() int
	QueueSnapshot() []queue.Item
	CheckNetwork() bool
	NetworkStatus() string
}

type ControlServer struct {
	ctrl    Controller
	store   *history.Store
	audit   *AuditLogger
	events  *EventBuffer
	token   string
	log     *slog.Logger
	router  *chi.Mux
	limiter *rate.Limiter
	ln      net.Listener
}

// NewControlServer wires the routes. token must be non-empty; requests
// missing it are rejected.
func NewControlServer(ctrl Controller, store *history.Store, audit *AuditLogger, events *EventBuffer, token string, log *slog.Logger) *ControlServer {
	s := &ControlServer{
		ctrl:    ctrl,
		store:   store,
		audit:   audit,
		events:  events,
		token:   token,
		log:     log,
		router:  chi.NewRouter(),
		limiter: rate.NewLimiter(rate.Limit(20), 40),
	}
	s.setupRoutes()
	return s
}

// Start binds 127.0.0.1:port (0 selects an ephemeral port) and serves in the
// background. Returns the bound address.
func (s *ControlServer) Start(port int) (string, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return "", fmt.Errorf("control server failed to bind: %w", err)
	}
	s.ln = ln
	s.log.Info("Control server listening", "addr", ln.Addr().String())

	go func() {
		if err := http.Serve(ln, s.router); err != nil && !strings.Contains(err.Error(), "use of closed") {
			s.log.Error("Control server stopped", "error", err)
		}
	}()
	return ln.Addr().String(), nil
}

// Close stops the listener.
func (s *ControlServer) Close() {
	if s.ln != nil {
		s.ln.Close()
	}
}

// Handler exposes the router for httptest.
func (s *ControlServer) Handler() http.Handler {
	return s.router
}

func (s *ControlServer) setupRoutes() {
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.securityMiddleware)
	s.router.Use(s.rateLimitMiddleware)

	s.router.Get("/v1/status", s.handleStatus)
	s.router.Post("/v1/control/{action}", s.handleControl)
	s.router.Get("/v1/history", s.handleHistory)
	s.router.Get("/v1/history/stats", s.handleHistoryStats)
	s.router.Post("/v1/history/clear", s.handleHistoryClear)
	s.router.Get("/v1/history/export", s.handleHistoryExport)
	s.router.Get("/v1/network", s.handleNetwork)
	s.router.Get("/v1/events", s.handleEvents)
}

func (s *ControlServer) securityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sourceIP, _, _ := net.SplitHostPort(r.RemoteAddr)
		userAgent := r.UserAgent()
		action := fmt.Sprintf("%s %s", r.Method, r.URL.Path)

		// Loopback enforcement on top of the loopback bind.
		if sourceIP != "127.0.0.1" && sourceIP != "::1" {
			s.audit.Log(sourceIP, userAgent, action, http.StatusForbidden, "External Access Denied")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if r.Header.Get("X-YTDLE-Token") != s.token || s.token == "" {
			s.audit.Log(sourceIP, userAgent, action, http.StatusUnauthorized, "Invalid Token")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		s.audit.Log(sourceIP, userAgent, action, http.StatusOK, "Authorized")
		next.ServeHTTP(w, r)
	})
}

func (s *ControlServer) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			sourceIP, _, _ := net.SplitHostPort(r.RemoteAddr)
			s.audit.Log(sourceIP, r.UserAgent(), r.URL.Path, http.StatusTooManyRequests, "Rate Limited")
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusResponse struct {
	BatchID  string       `json:"batch_id"`
	Success  int          `json:"success"`
	Failed   int          `json:"failed"`
	Paused   bool         `json:"paused"`
	InFlight int          `json:"in_flight"`
	Network  string       `json:"network"`
	Queue    []queue.Item `json:"queue"`
}

func (s *ControlServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	success, fail := s.ctrl.Counts()
	writeJSON(w, statusResponse{
		BatchID:  s.ctrl.BatchID(),
		Success:  success,
		Failed:   fail,
		Paused:   s.ctrl.IsPaused(),
		InFlight: s.ctrl.InFlight(),
		Network:  s.ctrl.NetworkStatus(),
		Queue:    s.ctrl.QueueSnapshot(),
	})
}

func (s *ControlServer) handleControl(w http.ResponseWriter, r *http.Request) {
	switch chi.URLParam(r, "action") {
	case "pause":
		s.ctrl.Pause()
	case "resume":
		s.ctrl.Resume()
	case "cancel":
		s.ctrl.Cancel()
	case "skip":
		s.ctrl.SkipCurrent()
	default:
		http.Error(w, "Invalid action", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *ControlServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	q := r.URL.Query().Get("q")

	var (
		recs []history.Record
		err  error
	)
	if q != "" {
		recs, err = s.store.Search(q, limit)
	} else {
		switch r.URL.Query().Get("filter") {
		case "completed":
			recs, err = s.store.GetCompleted(limit)
		case "failed":
			recs, err = s.store.GetFailed(limit)
		default:
			recs, err = s.store.GetAll(limit)
		}
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, recs)
}

func (s *ControlServer) handleHistoryStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, st)
}

func (s *ControlServer) handleHistoryClear(w http.ResponseWriter, r *http.Request) {
	var (
		n   int64
		err error
	)
	switch r.URL.Query().Get("filter") {
	case "completed":
		n, err = s.store.ClearCompleted()
	case "failed":
		n, err = s.store.ClearFailed()
	case "":
		n, err = s.store.ClearAll()
	default:
		http.Error(w, "Invalid filter", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]int64{"cleared": n})
}

func (s *ControlServer) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	failed, err := s.store.GetFailed(0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, rec := range failed {
		fmt.Fprintf(w, "# Failed: %s\n", rec.ErrorMessage)
		fmt.Fprintf(w, "# Retry count: %d\n", rec.RetryCount)
		fmt.Fprintf(w, "# Date: %s\n", rec.Timestamp)
		fmt.Fprintf(w, "%s\n\n", rec.URL)
	}
}

func (s *ControlServer) handleNetwork(w http.ResponseWriter, r *http.Request) {
	online := s.ctrl.CheckNetwork()
	writeJSON(w, map[string]interface{}{
		"online": online,
		"status": s.ctrl.NetworkStatus(),
	})
}

func (s *ControlServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, s.events.Recent(limit))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
