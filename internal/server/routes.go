package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lazypower/lexisync/internal/logger"
	"github.com/lazypower/lexisync/internal/store"
)

func (s *Server) handleListDicts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	names, err := s.mgr.ListDictionaries()
	s.mu.Unlock()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"dicts": names,
		"count": len(names),
	})
}

func (s *Server) handleDictInfo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	s.mu.Lock()
	info, err := s.mgr.Info(name)
	s.mu.Unlock()
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "dictionary not found: "+name)
	case errors.Is(err, store.ErrNotUserDb):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, info)
	}
}

// outcome reports a bool manager result the same way for every action
// route: 200 on success, 500 otherwise. Details are in the daemon log.
func outcome(w http.ResponseWriter, action, name string, ok bool) {
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"ok":     false,
			"action": action,
			"dict":   name,
			"error":  action + " failed, see daemon log",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":     true,
		"action": action,
		"dict":   name,
	})
}

func (s *Server) handleBackup(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.mu.Lock()
	ok := s.mgr.Backup(name)
	s.mu.Unlock()
	outcome(w, "backup", name, ok)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.mu.Lock()
	ok := s.mgr.Synchronize(name)
	s.mu.Unlock()
	outcome(w, "sync", name, ok)
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	s.mu.Lock()
	ok := s.mgr.UpgradeUserDict(name)
	s.mu.Unlock()
	outcome(w, "upgrade", name, ok)
}

func (s *Server) handleSyncAll(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ok := s.mgr.SynchronizeAll()
	s.mu.Unlock()
	outcome(w, "sync", "", ok)
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Snapshot string `json:"snapshot"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Snapshot == "" {
		writeError(w, http.StatusBadRequest, "snapshot required")
		return
	}

	logger.Log.Info("api_restore", zap.String("snapshot", req.Snapshot), zap.String("remote", r.RemoteAddr))
	s.mu.Lock()
	ok := s.mgr.Restore(req.Snapshot)
	s.mu.Unlock()
	outcome(w, "restore", "", ok)
}
