package handler

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/quillscribe/portal/internal/metrics"
	"github.com/quillscribe/portal/internal/middleware"
)

// Pages registers the server-rendered site on the root router.
type Pages interface {
	Register(r chi.Router)
}

// RouterConfig wires handlers and middleware into the HTTP router. Nil
// handlers leave their routes unregistered.
type RouterConfig struct {
	Logger        *slog.Logger
	Metrics       metrics.Recorder
	Authenticator middleware.Authenticator
	Limiter       middleware.IPLimiter
	Security      middleware.SecurityConfig
	CORS          middleware.CORSConfig

	AuthRatePerMinute    int
	ContactRatePerMinute int

	Health   *HealthHandler
	Exporter *MetricsHandler
	Auth     *AuthHandler
	Models   *ModelHandler
	Settings *SettingsHandler
	Library  *LibraryHandler
	Contact  *ContactHandler
	Admin    *AdminHandler
	APIKeys  *APIKeyHandler
	Site     Pages
}

// NewRouter builds the chi router with all routes and middleware.
func NewRouter(cfg RouterConfig) *chi.Mux {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger, cfg.Metrics))
	r.Use(middleware.Recoverer(logger, cfg.Security.IsDevelopment))
	r.Use(middleware.Security(cfg.Security))
	r.Use(middleware.CORS(cfg.CORS))
	if cfg.Security.MaxRequestBodySize > 0 {
		r.Use(middleware.MaxBodySize(cfg.Security.MaxRequestBodySize))
	}

	// Health endpoints (no auth required)
	if cfg.Health != nil {
		r.Get("/healthz", cfg.Health.Healthz)
		r.Get("/readyz", cfg.Health.Readyz)
	}
	if cfg.Exporter != nil {
		r.Get("/metrics", cfg.Exporter.Metrics)
	}

	requireAuth := middleware.Auth(middleware.AuthConfig{
		Logger:        logger,
		Authenticator: cfg.Authenticator,
	})
	authLimit := middleware.RateLimitIP(middleware.RateLimitConfig{
		Logger:        logger,
		Limiter:       cfg.Limiter,
		Bucket:        "auth",
		RatePerMinute: cfg.AuthRatePerMinute,
	})
	contactLimit := middleware.RateLimitIP(middleware.RateLimitConfig{
		Logger:        logger,
		Limiter:       cfg.Limiter,
		Bucket:        "contact",
		RatePerMinute: cfg.ContactRatePerMinute,
	})
	validID := middleware.ValidateIDParams("id")

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireJSON)

		// Public
		if cfg.Settings != nil {
			r.Get("/settings/theme", cfg.Settings.Theme)
		}
		if cfg.Models != nil {
			r.Get("/models/{provider}", cfg.Models.List)
			r.Get("/models/{provider}/{modelId}", cfg.Models.Get)
		}
		if cfg.Contact != nil {
			r.With(contactLimit).Post("/contact", cfg.Contact.Submit)
		}
		if cfg.Auth != nil {
			r.Route("/auth", func(r chi.Router) {
				r.With(authLimit).Post("/signup", cfg.Auth.Signup)
				r.With(authLimit).Post("/login", cfg.Auth.Login)
				r.With(authLimit).Post("/confirm", cfg.Auth.Confirm)
				r.With(requireAuth).Post("/logout", cfg.Auth.Logout)
				r.With(requireAuth).Get("/me", cfg.Auth.Me)
			})
		}

		// Signed-in users
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			if cfg.Auth != nil {
				r.With(middleware.RequireWrite()).Patch("/account/profile", cfg.Auth.UpdateProfile)
			}
			if cfg.Settings != nil {
				r.With(middleware.RequireRead()).Get("/models/defaults", cfg.Settings.DefaultModels)
				r.With(middleware.RequireAdmin()).Put("/models/defaults", cfg.Settings.SetDefaultModels)
			}
			if cfg.Library != nil {
				r.With(middleware.RequireRead()).Get("/dashboard/stats", cfg.Library.DashboardStats)

				r.Route("/library", func(r chi.Router) {
					r.With(middleware.RequireRead()).Get("/folders", cfg.Library.ListFolders)
					r.With(middleware.RequireWrite()).Post("/folders", cfg.Library.CreateFolder)
					r.With(middleware.RequireWrite(), validID).Delete("/folders/{id}", cfg.Library.DeleteFolder)

					r.With(middleware.RequireRead()).Get("/transcripts", cfg.Library.ListTranscripts)
					r.With(middleware.RequireWrite()).Post("/transcripts", cfg.Library.CreateTranscript)
					r.With(middleware.RequireRead(), validID).Get("/transcripts/{id}", cfg.Library.GetTranscript)
					r.With(middleware.RequireWrite(), validID).Patch("/transcripts/{id}", cfg.Library.UpdateTranscript)
					r.With(middleware.RequireWrite(), validID).Delete("/transcripts/{id}", cfg.Library.DeleteTranscript)
				})
			}
		})

		// Admins
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(middleware.RequireAdmin())

			if cfg.Models != nil {
				r.Post("/refresh-models", cfg.Models.RefreshAll)
				r.Post("/refresh-models/{provider}", cfg.Models.Refresh)
				r.Get("/admin/models", cfg.Models.Overview)
			}
			if cfg.Settings != nil {
				r.Patch("/admin/settings/theme", cfg.Settings.UpdateTheme)
				r.Post("/admin/settings/theme/reset", cfg.Settings.ResetTheme)
			}
			if cfg.Admin != nil {
				r.Get("/admin/stats", cfg.Admin.Stats)
				r.Get("/admin/logs", cfg.Admin.Logs)
			}
			if cfg.APIKeys != nil {
				r.Route("/admin/api-keys", func(r chi.Router) {
					r.Get("/", cfg.APIKeys.ListAPIKeys)
					r.Post("/", cfg.APIKeys.CreateAPIKey)
					r.With(validID).Delete("/{id}", cfg.APIKeys.RevokeAPIKey)
					r.With(validID).Post("/{id}/rotate", cfg.APIKeys.RotateAPIKey)
				})
			}
		})

		r.NotFound(NotFound)
		r.MethodNotAllowed(MethodNotAllowed)
	})

	if cfg.Site != nil {
		cfg.Site.Register(r)
	}

	// 404 and 405 handlers
	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	return r
}
