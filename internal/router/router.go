package router

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/stevi10623-crypto/deductly-intake/internal/auth"
	"github.com/stevi10623-crypto/deductly-intake/internal/handler"
	mw "github.com/stevi10623-crypto/deductly-intake/internal/middleware"
)

// Handlers groups everything the router dispatches to.
type Handlers struct {
	Auth      *handler.AuthHandler
	Intake    *handler.IntakeHandler
	Clients   *handler.ClientHandler
	Dashboard *handler.DashboardHandler
}

func New(jwtSecret, corsOrigin string, log *zap.Logger, h Handlers) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(mw.Logger(log))
	r.Use(mw.CORS(corsOrigin))

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/login", h.Auth.Login)
		r.Get("/schema", h.Intake.Schema)

		// Client questionnaire, authorized by the intake token
		r.Route("/intake/{token}", func(r chi.Router) {
			r.Get("/", h.Intake.View)
			r.Put("/answers", h.Intake.Answer)
			r.Post("/back", h.Intake.Back)
			r.Post("/continue", h.Intake.Continue)
			r.Post("/files/{sectionId}", h.Intake.Upload)
			r.Delete("/files", h.Intake.DeleteFile)
		})

		// Staff routes
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(jwtSecret))

			r.Get("/auth/me", h.Auth.Me)
			r.Put("/auth/me", h.Auth.UpdateMe)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Get("/users", h.Auth.ListUsers)
				r.Post("/users", h.Auth.CreateUser)
				r.Delete("/users/{userId}", h.Auth.DeleteUser)
				r.Put("/users/{userId}/password", h.Auth.ResetPassword)
			})

			r.Get("/dashboard", h.Dashboard.Dashboard)

			r.Get("/clients", h.Clients.List)
			r.Post("/clients", h.Clients.Create)
			r.Get("/clients/export", h.Clients.ExportList)
			r.Get("/clients/{clientId}", h.Clients.Get)
			r.Delete("/clients/{clientId}", h.Clients.Delete)
			r.Put("/clients/{clientId}/intake/status", h.Clients.SetStatus)
			r.Get("/clients/{clientId}/export", h.Clients.Export)
			r.Get("/clients/{clientId}/files", h.Clients.File)
		})
	})

	return r
}
