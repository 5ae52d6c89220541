package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hamed0406/stockwatch/internal/dispatch"
	"github.com/hamed0406/stockwatch/internal/domain"
)

// durationParts is the days/hours/minutes/seconds form timers are entered in.
type durationParts struct {
	Days    int `json:"days"`
	Hours   int `json:"hours"`
	Minutes int `json:"minutes"`
	Seconds int `json:"seconds"`
}

type reminderPayload struct {
	Interval int64  `json:"interval"`
	Message  string `json:"message"`
	Enabled  bool   `json:"enabled"`
}

type addTimerPayload struct {
	domain.TimerSpec
	Threshold int64            `json:"threshold"`
	Reminder  *reminderPayload `json:"reminder,omitempty"`
	durationParts
}

func (s *Server) handleListTimers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Tracker.Timers())
}

func (s *Server) handleAddTimer(w http.ResponseWriter, r *http.Request) {
	var p addTimerPayload
	if !decode(w, r, &p) {
		return
	}
	spec := p.TimerSpec
	spec.Threshold = time.Duration(p.Threshold) * time.Millisecond
	if p.Reminder != nil {
		spec.Reminder = &domain.TimerReminder{
			Interval: time.Duration(p.Reminder.Interval) * time.Millisecond,
			Message:  p.Reminder.Message,
			Enabled:  p.Reminder.Enabled,
		}
	}

	t, err := s.Tracker.AddTimer(r.Context(), spec, p.Days, p.Hours, p.Minutes, p.Seconds)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *Server) handleUpdateTimer(w http.ResponseWriter, r *http.Request) {
	var p durationParts
	if !decode(w, r, &p) {
		return
	}
	t, err := s.Tracker.UpdateTimer(r.Context(), chi.URLParam(r, "id"), p.Days, p.Hours, p.Minutes, p.Seconds)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleResetTimer(w http.ResponseWriter, r *http.Request) {
	t, err := s.Tracker.ResetTimer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleDeleteTimer(w http.ResponseWriter, r *http.Request) {
	if err := s.Tracker.DeleteTimer(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListResources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Tracker.Resources())
}

func (s *Server) handleAddResource(w http.ResponseWriter, r *http.Request) {
	var spec domain.ResourceSpec
	if !decode(w, r, &spec) {
		return
	}
	res, err := s.Tracker.AddResource(r.Context(), spec)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleUpdateResource(w http.ResponseWriter, r *http.Request) {
	var patch domain.ResourcePatch
	if !decode(w, r, &patch) {
		return
	}
	res, err := s.Tracker.UpdateResource(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleDeleteResource(w http.ResponseWriter, r *http.Request) {
	if err := s.Tracker.DeleteResource(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type powerPayload struct {
	Duration int64 `json:"duration"`
}

func (s *Server) handleGetPower(w http.ResponseWriter, r *http.Request) {
	p, ok := s.Tracker.Power()
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"power": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"power": p})
}

func (s *Server) handleSetPower(w http.ResponseWriter, r *http.Request) {
	var p powerPayload
	if !decode(w, r, &p) {
		return
	}
	pt, err := s.Tracker.SetPowerTimer(r.Context(), time.Duration(p.Duration)*time.Millisecond)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"power": pt})
}

func (s *Server) handleClearPower(w http.ResponseWriter, r *http.Request) {
	s.Tracker.ClearPowerTimer(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Tracker.Settings())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	class := domain.NotificationClass(chi.URLParam(r, "class"))
	st, err := s.Tracker.ToggleNotifications(r.Context(), class)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// inAppView is the wire form of an in-app notification; times are unix ms.
type inAppView struct {
	ID                  string       `json:"id"`
	Title               string       `json:"title"`
	Body                string       `json:"body"`
	Level               domain.Level `json:"level"`
	Timestamp           int64        `json:"timestamp"`
	ExpiresAt           int64        `json:"expiresAt,omitempty"`
	RequiresInteraction bool         `json:"requiresInteraction"`
}

func toInAppView(n dispatch.InAppNotification) inAppView {
	v := inAppView{
		ID:                  n.ID,
		Title:               n.Title,
		Body:                n.Body,
		Level:               n.Level,
		Timestamp:           n.Timestamp.UnixMilli(),
		RequiresInteraction: n.RequiresInteraction,
	}
	if !n.ExpiresAt.IsZero() {
		v.ExpiresAt = n.ExpiresAt.UnixMilli()
	}
	return v
}

func (s *Server) handleListInApp(w http.ResponseWriter, r *http.Request) {
	items := s.Tracker.InAppNotifications()
	out := make([]inAppView, 0, len(items))
	for _, n := range items {
		out = append(out, toInAppView(n))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleDismissInApp(w http.ResponseWriter, r *http.Request) {
	if !s.Tracker.DismissInAppNotification(chi.URLParam(r, "id")) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type appStatePayload struct {
	Foreground bool `json:"foreground"`
}

func (s *Server) handleAppState(w http.ResponseWriter, r *http.Request) {
	var p appStatePayload
	if !decode(w, r, &p) {
		return
	}
	s.Tracker.SetForeground(p.Foreground)
	s.Logger.Debug("app_state", zap.Bool("foreground", p.Foreground))
	writeJSON(w, http.StatusOK, appStatePayload{Foreground: s.Tracker.Foreground()})
}
