// Package api exposes the dashboard, notification and intake projections over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tmis-business-guru/internal/common/auth"
	"tmis-business-guru/internal/common/errors"
	"tmis-business-guru/internal/common/logger"
	"tmis-business-guru/internal/dashboard"
	"tmis-business-guru/internal/gateway"
	"tmis-business-guru/internal/models"
	"tmis-business-guru/internal/notifications"
	"tmis-business-guru/internal/wizard"
)

// Backend is the part of the gateway the API passes requests through to.
type Backend interface {
	wizard.Submitter
	ListClients(ctx context.Context) ([]models.ClientRecord, error)
	GetClient(ctx context.Context, id string) (*models.ClientRecord, error)
	UpdateClient(ctx context.Context, id string, changes map[string]interface{}) (*gateway.UpdateResult, error)
	DeleteClient(ctx context.Context, id string) error
	DownloadDocument(ctx context.Context, clientID, docType string) (*gateway.Document, error)
	UploadDocument(ctx context.Context, clientID string, file gateway.FileUpload) (*models.ClientRecord, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	ListTeam(ctx context.Context) ([]models.User, error)
	Chat(ctx context.Context, message string) (*gateway.ChatReply, error)
}

type Deps struct {
	Backend       Backend
	Dashboard     *dashboard.Service
	Notifications *notifications.Service
	Wizards       *wizard.Registry
	Fields        *gateway.FieldUpdater
	JWTSecret     string
	CompactLegend bool
	Logger        logger.Logger
	// Ready reports whether dependencies such as the watermark store are reachable.
	Ready func(ctx context.Context) error
}

type Handler struct {
	deps   Deps
	errs   *errors.ErrorHandler
	logger logger.Logger
}

func NewHandler(deps Deps) *Handler {
	log := logger.ForComponent(deps.Logger, "api")
	return &Handler{
		deps:   deps,
		errs:   errors.NewErrorHandler(log),
		logger: log,
	}
}

// NewRouter wires every route.
func NewRouter(deps Deps) *chi.Mux {
	h := NewHandler(deps)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(h.logger))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(deps.JWTSecret, h.errs))

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/stats", h.DashboardStats)
			r.Get("/weekly", h.DashboardWeekly)
			r.Get("/charts", h.DashboardCharts)
			r.Post("/refresh", h.DashboardRefresh)
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", h.Notifications)
			r.Post("/clear", h.ClearNotifications)
			r.Post("/visit", h.VisitNotifications)
		})

		r.Route("/intake", func(r chi.Router) {
			r.Post("/", h.OpenIntake)
			r.Route("/{wizardId}", func(r chi.Router) {
				r.Get("/", h.GetIntake)
				r.Delete("/", h.CloseIntake)
				r.Put("/form", h.UpdateIntakeForm)
				r.Post("/next", h.NextIntakeStep)
				r.Post("/back", h.PreviousIntakeStep)
				r.Post("/bank-statements", h.AddBankStatement)
				r.Delete("/bank-statements", h.RemoveBankStatement)
				r.Put("/documents/{docKey}", h.AttachIntakeDocument)
				r.Delete("/documents/{docKey}", h.DetachIntakeDocument)
				r.Post("/submit", h.SubmitIntake)
			})
		})

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Route("/{clientId}", func(r chi.Router) {
				r.Get("/", h.GetClient)
				r.Put("/", h.UpdateClient)
				r.Delete("/", h.DeleteClient)
				r.Patch("/fields", h.QueueFieldUpdate)
				r.Get("/documents/{docType}", h.DownloadDocument)
				r.Put("/documents/{docType}", h.UploadDocument)
			})
		})

		r.Get("/team", h.ListTeam)
		r.Get("/users", h.ListUsers)
		r.Post("/chat", h.Chat)
	})

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.deps.Ready != nil {
		if err := h.deps.Ready(r.Context()); err != nil {
			h.logger.Warn("readiness check failed", map[string]interface{}{"error": err})
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
