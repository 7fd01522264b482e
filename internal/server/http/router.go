// Package httpserver exposes the JSON API over HTTP.
package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"go.uber.org/zap"

	"github.com/and161185/jdue/internal/metrics"
	"github.com/and161185/jdue/internal/service"
	"github.com/and161185/jdue/internal/session"
)

// Deps are the collaborators of the HTTP API.
type Deps struct {
	Auth          service.AuthService
	Passkeys      service.PasskeyService
	Projects      service.ProjectService
	Tasks         service.TaskService
	Admin         service.AdminService
	Notifications service.NotificationService

	Sessions *session.Issuer
	Accounts Accounts
	Metrics  *metrics.Metrics // optional
	Log      *zap.Logger

	CORSOrigins []string
	RateLimit   int // auth requests per minute per IP; 0 disables
	Location    *time.Location
	Version     string
}

type api struct {
	Deps
	now func() time.Time
}

// NewRouter wires middleware and routes.
func NewRouter(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Location == nil {
		d.Location = time.UTC
	}
	a := &api{Deps: d, now: time.Now}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(recoverer(d.Log))
	r.Use(logRequests(d.Log))
	r.Use(instrument(d.Metrics))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", a.health)

		r.Route("/auth", func(r chi.Router) {
			if d.RateLimit > 0 {
				r.Use(httprate.LimitByIP(d.RateLimit, time.Minute))
			}
			r.Post("/register", a.register)
			r.Post("/login", a.login)
			r.Post("/passkey/login/begin", a.passkeyLoginBegin)
			r.Post("/passkey/login/finish", a.passkeyLoginFinish)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticate(d.Sessions, d.Accounts, d.Log))

			r.Route("/users/me", func(r chi.Router) {
				r.Get("/", a.me)
				r.Put("/", a.updateMe)
				r.Get("/passkeys", a.listPasskeys)
				r.Post("/passkeys/begin", a.passkeyRegisterBegin)
				r.Post("/passkeys/finish", a.passkeyRegisterFinish)
				r.Delete("/passkeys/{credentialId}", a.revokePasskey)
			})

			r.Get("/data", a.data)

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", a.listProjects)
				r.Post("/", a.createProject)
				r.Put("/{id}", a.renameProject)
				r.Delete("/{id}", a.deleteProject)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", a.listTasks)
				r.Post("/", a.createTask)
				r.Put("/{id}", a.updateTask)
				r.Delete("/{id}", a.deleteTask)
				r.Post("/{id}/toggle", a.toggleTask)
				r.Post("/{id}/notifications", a.markTaskNotification)
			})

			r.Get("/notifications", a.listNotifications)
			r.Post("/notifications/{id}/read", a.readNotification)

			r.Route("/admin", func(r chi.Router) {
				r.Use(requireAdmin(d.Log))
				r.Get("/users", a.adminUsers)
				r.Post("/users", a.adminCreateUser)
				r.Put("/users/{id}/status", a.adminSetStatus)
				r.Delete("/users/{id}", a.adminDeleteUser)
				r.Get("/stats", a.adminStats)
			})
		})
	})
	return r
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": a.now().UTC(),
		"version":   a.Version,
	})
}
