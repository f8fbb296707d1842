// Package api exposes the daemon's control surface over a local HTTP
// listener. The CLI is the only intended client.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/routined/internal/domain"
	"github.com/eliteGoblin/focusd/routined/internal/store"
)

// Status is the daemon status snapshot returned by GET /v1/status.
type Status struct {
	Running         bool      `json:"running"`
	StartedAt       time.Time `json:"startedAt"`
	ActiveRoutineID string    `json:"activeRoutineId,omitempty"`
	ActiveRoutine   string    `json:"activeRoutine,omitempty"`
	FocusMode       bool      `json:"focusMode"`
	RoutineCount    int       `json:"routineCount"`
	DataDir         string    `json:"dataDir"`
	Version         string    `json:"version"`
}

// Controller is the daemon surface the API exposes. Implemented by
// daemon.Core; every call is serialized behind the core mutex.
type Controller interface {
	Routines() []domain.Routine
	AddRoutine(r domain.Routine) (domain.Routine, error)
	UpdateRoutine(r domain.Routine) error
	DeleteRoutine(id string) error
	ToggleRoutine(id string) (domain.Routine, error)
	FocusMode() bool
	SetFocusMode(enabled bool) error
	AddWhitelisted(pkg string) error
	ReportForeground(ev domain.ForegroundEvent)
	Status() Status
}

// Handler builds the HTTP router over the controller.
type Handler struct {
	ctrl   Controller
	logger *zap.Logger
}

// NewHandler creates the API handler.
func NewHandler(ctrl Controller, logger *zap.Logger) *Handler {
	return &Handler{ctrl: ctrl, logger: logger}
}

// Router returns the chi router with all routes mounted.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/status", h.getStatus)

		r.Route("/routines", func(r chi.Router) {
			r.Get("/", h.listRoutines)
			r.Post("/", h.addRoutine)
			r.Put("/{id}", h.updateRoutine)
			r.Delete("/{id}", h.deleteRoutine)
			r.Post("/{id}/toggle", h.toggleRoutine)
		})

		r.Get("/focus", h.getFocus)
		r.Put("/focus", h.setFocus)

		r.Post("/whitelist", h.addWhitelisted)
		r.Post("/events/foreground", h.reportForeground)
	})
	return r
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

func (h *Handler) listRoutines(w http.ResponseWriter, r *http.Request) {
	routines := h.ctrl.Routines()
	records := make([]json.RawMessage, 0, len(routines))
	for _, rt := range routines {
		data, err := store.MarshalRoutine(rt)
		if err != nil {
			h.writeError(w, http.StatusInternalServerError, err)
			return
		}
		records = append(records, data)
	}
	writeJSON(w, http.StatusOK, records)
}

func (h *Handler) addRoutine(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.decodeRoutine(w, r)
	if !ok {
		return
	}
	added, err := h.ctrl.AddRoutine(rt)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.writeRoutine(w, http.StatusCreated, added)
}

func (h *Handler) updateRoutine(w http.ResponseWriter, r *http.Request) {
	rt, ok := h.decodeRoutine(w, r)
	if !ok {
		return
	}
	rt.ID = chi.URLParam(r, "id")
	if err := h.ctrl.UpdateRoutine(rt); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrRoutineNotFound) {
			status = http.StatusNotFound
		}
		h.writeError(w, status, err)
		return
	}
	h.writeRoutine(w, http.StatusOK, rt)
}

func (h *Handler) deleteRoutine(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.DeleteRoutine(chi.URLParam(r, "id")); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) toggleRoutine(w http.ResponseWriter, r *http.Request) {
	rt, err := h.ctrl.ToggleRoutine(chi.URLParam(r, "id"))
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, store.ErrRoutineNotFound) {
			status = http.StatusNotFound
		}
		h.writeError(w, status, err)
		return
	}
	h.writeRoutine(w, http.StatusOK, rt)
}

func (h *Handler) getFocus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": h.ctrl.FocusMode()})
}

func (h *Handler) setFocus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return
	}
	if err := h.ctrl.SetFocusMode(body.Enabled); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": body.Enabled})
}

func (h *Handler) addWhitelisted(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PackageName string `json:"packageName"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PackageName == "" {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("packageName required"))
		return
	}
	if err := h.ctrl.AddWhitelisted(body.PackageName); err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reportForeground(w http.ResponseWriter, r *http.Request) {
	var body struct {
		PackageName string    `json:"packageName"`
		At          time.Time `json:"at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.PackageName == "" {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("packageName required"))
		return
	}
	h.ctrl.ReportForeground(domain.ForegroundEvent{
		PackageName: body.PackageName,
		At:          body.At,
	})
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) decodeRoutine(w http.ResponseWriter, r *http.Request) (domain.Routine, bool) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid body: %w", err))
		return domain.Routine{}, false
	}
	rt, err := store.UnmarshalRoutine(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return domain.Routine{}, false
	}
	return rt, true
}

func (h *Handler) writeRoutine(w http.ResponseWriter, status int, rt domain.Routine) {
	data, err := store.MarshalRoutine(rt)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
