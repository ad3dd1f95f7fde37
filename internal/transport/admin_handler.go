// Package transport exposes the node's HTTP control surface.
package transport

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	syncservice "github.com/microbecode/madara/internal/service/sync"
)

// SyncController is the orchestrator surface the admin endpoints drive.
type SyncController interface {
	Status() syncservice.Status
	Pause()
	Resume()
	Restart()
}

// AdminHandler serves sync control and health endpoints.
type AdminHandler struct {
	sync   SyncController
	logger *zap.Logger
}

// NewAdminHandler returns an AdminHandler instance.
func NewAdminHandler(sync SyncController, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		sync:   sync,
		logger: logger.Named("admin"),
	}
}

// Register mounts the admin routes on mux.
func (h *AdminHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.Health)
	mux.HandleFunc("/sync/status", h.Status)
	mux.HandleFunc("/sync/pause", h.Pause)
	mux.HandleFunc("/sync/resume", h.Resume)
	mux.HandleFunc("/sync/restart", h.Restart)
}

// Health reports server health.
func (h *AdminHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.respond(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Status reports the orchestrator's state, cursor and source lag.
func (h *AdminHandler) Status(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	h.respond(w, http.StatusOK, h.sync.Status())
}

// Pause suspends the sync pipeline between steps.
func (h *AdminHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.sync.Pause)
}

// Resume lifts a pause. A halted sync needs Restart instead.
func (h *AdminHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.sync.Resume)
}

// Restart clears a halt and resumes from the persisted cursor.
func (h *AdminHandler) Restart(w http.ResponseWriter, r *http.Request) {
	h.control(w, r, h.sync.Restart)
}

func (h *AdminHandler) control(w http.ResponseWriter, r *http.Request, action func()) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	action()
	h.respond(w, http.StatusAccepted, h.sync.Status())
}

func (h *AdminHandler) respond(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("write admin response", zap.Error(err))
	}
}
