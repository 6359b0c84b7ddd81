package api

import (
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/go-chi/chi/v5"

	"github.com/daap14/adminportal/internal/api/handler"
	"github.com/daap14/adminportal/internal/api/middleware"
	"github.com/daap14/adminportal/internal/metrics"
	"github.com/daap14/adminportal/internal/notify"
)

// SessionManager resolves, writes and ends cookie sessions.
type SessionManager interface {
	middleware.SessionResolver
	handler.SessionWriter
}

// RouterDeps holds all dependencies needed by the router.
type RouterDeps struct {
	DBPinger    handler.Pinger
	CachePinger handler.Pinger
	Version     string
	OpenAPISpec []byte

	Sessions      SessionManager
	Authenticator handler.Authenticator
	Users         handler.UserDirectory
	Credentials   handler.CredentialFlows
	Invitations   handler.InvitationEngine
	Submissions   handler.SubmissionService
	Sender        notify.Sender

	FrontendURL       string
	MinPasswordLength int
	CORSOrigins       []string
	// RateLimiter guards the unauthenticated endpoints; nil disables it.
	RateLimiter    *middleware.RateLimiter
	MetricsHandler http.Handler
}

// NewRouter creates and configures a Chi router with all middleware and routes.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(chimiddleware.Logger)
	r.Use(metrics.Instrument)

	healthHandler := handler.NewHealthHandler(deps.DBPinger, deps.CachePinger, deps.Version)
	r.Get("/health", healthHandler.ServeHTTP)

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	if len(deps.OpenAPISpec) > 0 {
		openapiHandler := handler.NewOpenAPIHandler(deps.OpenAPISpec)
		r.Get("/openapi.json", openapiHandler.ServeHTTP)
	}

	authHandler := handler.NewAuthHandler(deps.Authenticator, deps.Sessions)
	passwordHandler := handler.NewPasswordHandler(deps.Credentials, deps.MinPasswordLength)
	invitationHandler := handler.NewInvitationHandler(deps.Invitations, deps.Sender, deps.FrontendURL, deps.MinPasswordLength)
	userHandler := handler.NewUserHandler(deps.Users)
	submissionHandler := handler.NewSubmissionHandler(deps.Submissions)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS(deps.CORSOrigins))

		// Unauthenticated endpoints.
		r.Group(func(r chi.Router) {
			if deps.RateLimiter != nil {
				r.Use(deps.RateLimiter.Middleware)
			}
			r.Post("/unified-login", authHandler.UnifiedLogin)
			r.Post("/admin-login", authHandler.AdminLogin)
			r.Post("/forgot-password", passwordHandler.ForgotPassword)
			r.Post("/verify-reset-code", passwordHandler.VerifyResetCode)
			r.Post("/reset-password", passwordHandler.ResetPassword)
			r.Get("/validate-invite", invitationHandler.Validate)
			r.Post("/accept-invite", invitationHandler.Accept)
			r.Post("/contact", submissionHandler.Contact)
		})
		r.Post("/logout", authHandler.Logout)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireAuth(deps.Sessions))

			r.Get("/current-user", authHandler.CurrentUser)
			r.Post("/change-password/request", passwordHandler.RequestChange)
			r.Post("/change-password/confirm", passwordHandler.ConfirmChange)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdminRole())

				r.Post("/manager/change-password/request", passwordHandler.RequestManagerChange)
				r.Post("/manager/change-password/confirm", passwordHandler.ConfirmManagerChange)

				r.Route("/invites", func(r chi.Router) {
					r.Post("/", invitationHandler.Create)
					r.Get("/", invitationHandler.List)
					r.Post("/{id}/resend", invitationHandler.Resend)
				})

				r.Route("/users", func(r chi.Router) {
					r.Get("/", userHandler.List)
					r.Delete("/{id}", userHandler.Deactivate)
				})
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdminOrManager())

				r.Route("/submissions", func(r chi.Router) {
					r.Get("/", submissionHandler.List)
					r.Patch("/{id}/status", submissionHandler.UpdateStatus)
					r.Patch("/{id}/read", submissionHandler.MarkRead)
				})
			})
		})
	})

	return r
}
