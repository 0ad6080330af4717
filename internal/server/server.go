package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lazypower/lexisync/internal/engine"
)

// Server is the lexisync HTTP API server.
type Server struct {
	mgr     *engine.Manager
	mu      sync.Locker
	router  chi.Router
	version string
	started time.Time
}

// New creates a Server over mgr. Every handler that touches a dictionary
// holds mu for the duration of the call; pass the same lock the sync
// scheduler uses.
func New(mgr *engine.Manager, mu sync.Locker, version string) *Server {
	if mu == nil {
		mu = &sync.Mutex{}
	}
	s := &Server{
		mgr:     mgr,
		mu:      mu,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/dicts", s.handleListDicts)
		r.Get("/dicts/{name}", s.handleDictInfo)
		r.Post("/dicts/{name}/backup", s.handleBackup)
		r.Post("/dicts/{name}/sync", s.handleSync)
		r.Post("/dicts/{name}/upgrade", s.handleUpgrade)

		r.Post("/sync", s.handleSyncAll)
		r.Post("/restore", s.handleRestore)
	})
	r.Handle("/metrics", promhttp.Handler())

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"user_id": s.mgr.UserID(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
