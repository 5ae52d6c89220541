package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/stockwatch/internal/dispatch"
	"github.com/hamed0406/stockwatch/internal/domain"
	apimw "github.com/hamed0406/stockwatch/internal/httpapi/middleware"
	"github.com/hamed0406/stockwatch/internal/store"
)

// Tracker is the application service the API drives.
type Tracker interface {
	AddTimer(ctx context.Context, spec domain.TimerSpec, days, hours, minutes, seconds int) (domain.Timer, error)
	UpdateTimer(ctx context.Context, id string, days, hours, minutes, seconds int) (domain.Timer, error)
	ResetTimer(ctx context.Context, id string) (domain.Timer, error)
	DeleteTimer(ctx context.Context, id string) error
	Timers() []domain.Timer

	AddResource(ctx context.Context, spec domain.ResourceSpec) (domain.Resource, error)
	UpdateResource(ctx context.Context, id string, patch domain.ResourcePatch) (domain.Resource, error)
	DeleteResource(ctx context.Context, id string) error
	Resources() []domain.Resource

	SetPowerTimer(ctx context.Context, d time.Duration) (domain.PowerTimer, error)
	ClearPowerTimer(ctx context.Context)
	Power() (domain.PowerTimer, bool)

	ToggleNotifications(ctx context.Context, class domain.NotificationClass) (domain.Settings, error)
	Settings() domain.Settings
	InAppNotifications() []dispatch.InAppNotification
	DismissInAppNotification(id string) bool
	SetForeground(fg bool)
	Foreground() bool
}

type Server struct {
	Logger  *zap.Logger
	Tracker Tracker
}

func NewServer(l *zap.Logger, t Tracker) *Server {
	return &Server{Logger: l, Tracker: t}
}

// Router wires the API. Reads need a public or admin key and are rate
// limited per client IP; writes need an admin key. Empty origins allow all.
func (s *Server) Router(keys apimw.Keys, origins []string, publicRPM, publicBurst int) http.Handler {
	r := chi.NewRouter()
	if len(origins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RateLimit(publicRPM, publicBurst))

		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAny(keys))
			r.Get("/timers", s.handleListTimers)
			r.Get("/resources", s.handleListResources)
			r.Get("/power", s.handleGetPower)
			r.Get("/settings", s.handleSettings)
			r.Get("/inapp", s.handleListInApp)
		})

		r.Group(func(r chi.Router) {
			r.Use(apimw.RequireAdmin(keys))
			r.Post("/timers", s.handleAddTimer)
			r.Put("/timers/{id}", s.handleUpdateTimer)
			r.Delete("/timers/{id}", s.handleDeleteTimer)
			r.Post("/timers/{id}/reset", s.handleResetTimer)

			r.Post("/resources", s.handleAddResource)
			r.Patch("/resources/{id}", s.handleUpdateResource)
			r.Delete("/resources/{id}", s.handleDeleteResource)

			r.Put("/power", s.handleSetPower)
			r.Delete("/power", s.handleClearPower)

			r.Post("/notifications/{class}/toggle", s.handleToggle)
			r.Delete("/inapp/{id}", s.handleDismissInApp)
			r.Put("/app-state", s.handleAppState)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeErr maps domain errors onto status codes.
func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid input", "fields": ve.Fields})
	case errors.Is(err, domain.ErrInvalid):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		s.Logger.Error("api_error", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad payload"})
		return false
	}
	return true
}
