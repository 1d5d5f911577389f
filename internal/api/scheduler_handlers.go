package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brandpulse/scout/internal/scheduler"
)

func (s *Server) schedulerStats(w http.ResponseWriter, r *http.Request) {
	storeStats, err := s.store.Stats(r.Context(), s.clock.Now())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"queue":            s.queue.Stats(),
		"store":            storeStats,
		"tasks":            s.registry.ListTasks(),
		"schedulerRunning": s.registry.Started(),
	})
}

func (s *Server) listTasks(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"tasks": s.registry.ListTasks()})
}

func (s *Server) listPresets(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"presets": scheduler.Presets()})
}

func (s *Server) startScheduler(w http.ResponseWriter, _ *http.Request) {
	s.registry.Start(s.schedCtx)
	s.writeJSON(w, http.StatusOK, map[string]any{"running": true})
}

func (s *Server) stopScheduler(w http.ResponseWriter, _ *http.Request) {
	s.registry.Stop()
	s.writeJSON(w, http.StatusOK, map[string]any{"running": false})
}

func (s *Server) runTask(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.registry.RunTask(r.Context(), name); err != nil {
		if errors.Is(err, scheduler.ErrUnknownTask) {
			s.writeError(w, http.StatusNotFound, "task not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"task": name, "result": "ok"})
}

func (s *Server) stopTask(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !s.registry.StopTask(name) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"task": name, "result": "stopped"})
}

func (s *Server) pauseQueue(w http.ResponseWriter, _ *http.Request) {
	s.queue.Pause()
	s.writeJSON(w, http.StatusOK, map[string]string{"queue": "paused"})
}

func (s *Server) resumeQueue(w http.ResponseWriter, _ *http.Request) {
	s.queue.Resume()
	s.writeJSON(w, http.StatusOK, map[string]string{"queue": "resumed"})
}
