// Package web serves the server-rendered HTML pages: sign-in, registration
// and the library page with its forms. Every form posts back to the server
// and either redirects to the library or renders it again with the error
// next to the submitted values.
package web

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shelfwise/shelfwise-server/internal/auth"
	"github.com/shelfwise/shelfwise-server/internal/ratelimit"
	"github.com/shelfwise/shelfwise-server/internal/service"
)

//go:embed templates/*.html
var templateFS embed.FS

// Config holds the collaborators of a Handler.
type Config struct {
	Library  *service.LibraryService
	Auth     *service.AuthService
	Sessions *auth.Sessions
	// AuthRateLimiter limits sign-in and registration per client IP. Nil
	// disables the limit.
	AuthRateLimiter *ratelimit.KeyedRateLimiter
	Logger          *slog.Logger
}

// Handler renders the HTML pages.
type Handler struct {
	library  *service.LibraryService
	auth     *service.AuthService
	sessions *auth.Sessions
	limiter  *ratelimit.KeyedRateLimiter
	pages    map[string]*template.Template
	logger   *slog.Logger
}

// New parses the page templates and returns a Handler.
func New(cfg Config) (*Handler, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{"index", "login", "registry"} {
		t, err := template.New("layout.html").Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		pages[name] = t
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		library:  cfg.Library,
		auth:     cfg.Auth,
		sessions: cfg.Sessions,
		limiter:  cfg.AuthRateLimiter,
		pages:    pages,
		logger:   logger,
	}, nil
}

// Register mounts the pages on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/login", h.loginPage)
	r.With(h.rateLimit).Post("/login", h.login)
	r.Get("/registry", h.registryPage)
	r.With(h.rateLimit).Post("/registry", h.register)
	r.Get("/logout", h.logout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireUser)

		r.Get("/", h.index)
		r.Post("/books", h.addBook)
		r.Post("/books/{id}/delete", h.deleteBook)
		r.Post("/books/{id}/move", h.moveBook)
		r.Post("/shelves", h.createShelf)
		r.Post("/shelves/{id}", h.editShelf)
		r.Post("/shelves/{id}/delete", h.deleteShelf)
	})
}

func (h *Handler) render(w http.ResponseWriter, status int, page string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := h.pages[page].Execute(w, data); err != nil {
		h.logger.Error("render page", "page", page, "error", err)
	}
}

var funcs = template.FuncMap{
	"percent": func(used, capacity int) int {
		if capacity <= 0 {
			return 0
		}
		p := used * 100 / capacity
		return min(p, 100)
	},
}
