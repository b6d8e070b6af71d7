// Package api serves the JSON API under /api together with the event stream,
// the health check and Prometheus metrics.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shelfwise/shelfwise-server/internal/auth"
	"github.com/shelfwise/shelfwise-server/internal/ratelimit"
	"github.com/shelfwise/shelfwise-server/internal/search"
	"github.com/shelfwise/shelfwise-server/internal/service"
	"github.com/shelfwise/shelfwise-server/internal/sse"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

// Services groups the business services used by the handlers.
type Services struct {
	Auth    *service.AuthService
	Library *service.LibraryService
}

// Options holds the optional collaborators of a Server.
type Options struct {
	// AllowedOrigins enables CORS for these origins. Empty disables CORS.
	AllowedOrigins []string
	// AuthRateLimiter limits login and registration per client IP.
	AuthRateLimiter *ratelimit.KeyedRateLimiter
	// Sessions lets cookie-authenticated browsers call the API.
	Sessions *auth.Sessions
	// Events serves GET /api/events when set.
	Events *sse.Manager
	// Store and Search are checked by the health endpoint when set.
	Store  store.Users
	Search *search.Index
	// Pages registers additional routes, such as the HTML pages, on the
	// same router after authentication middleware.
	Pages func(chi.Router)
}

// Server is the HTTP handler of the whole service.
type Server struct {
	services *Services
	opts     Options
	router   *chi.Mux
	api      huma.API
	logger   *slog.Logger
}

// NewServer creates a server with every route registered.
func NewServer(services *Services, opts Options, logger *slog.Logger) *Server {
	router := chi.NewRouter()

	s := &Server{
		services: services,
		opts:     opts,
		router:   router,
		logger:   logger,
	}

	s.setupMiddleware()

	humaConfig := huma.DefaultConfig("Shelfwise API", "1.0.0")
	humaConfig.Info.Description = "Personal library with capacity-bounded shelves"
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerLibraryRoutes()
	s.registerShelfRoutes()
	s.registerSettingsRoutes()

	router.Handle("/metrics", promhttp.Handler())
	if opts.Events != nil {
		router.Get("/api/events", sse.NewHandler(opts.Events, s.sseUser, logger).ServeHTTP)
	}
	if opts.Pages != nil {
		opts.Pages(router)
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)

	if len(s.opts.AllowedOrigins) > 0 {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.opts.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	s.router.Use(s.authenticate)
}

func (s *Server) sseUser(r *http.Request) (string, bool) {
	userID := userIDFrom(r.Context())
	return userID, userID != ""
}
