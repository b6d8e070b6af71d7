package web

import (
	"context"
	"net/http"

	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/metrics"
	"github.com/shelfwise/shelfwise-server/internal/ratelimit"
	"github.com/shelfwise/shelfwise-server/internal/service"
)

type ctxKey struct{}

type sessionUser struct {
	ID       string
	Username string
}

func currentUser(ctx context.Context) sessionUser {
	u, _ := ctx.Value(ctxKey{}).(sessionUser)
	return u
}

// requireUser redirects to /login unless the session names an existing user.
func (h *Handler) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := h.sessions.UserID(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		user, err := h.auth.CurrentUser(r.Context(), userID)
		if err != nil {
			_ = h.sessions.End(w, r)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKey{}, sessionUser{ID: user.ID, Username: user.Username})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil {
			ip := ratelimit.ClientIP(r)
			if !h.limiter.Allow(ip) {
				metrics.RateLimitedTotal.Inc()
				h.logger.Warn("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				http.Error(w, "Too many requests, try again later.", http.StatusTooManyRequests)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type authPage struct {
	Username string
	Error    string
	Notice   string
}

func (h *Handler) loginPage(w http.ResponseWriter, r *http.Request) {
	page := authPage{}
	if r.URL.Query().Get("registered") != "" {
		page.Notice = "Account created, sign in to continue."
	}
	h.render(w, http.StatusOK, "login", page)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	creds := service.Credentials{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}

	user, err := h.auth.Authenticate(r.Context(), creds)
	if err != nil {
		h.render(w, statusFor(err), "login", authPage{Username: creds.Username, Error: domainerrors.Message(err)})
		return
	}
	if err := h.sessions.Start(w, r, user.ID); err != nil {
		h.logger.Error("start session", "user_id", user.ID, "error", err)
		h.render(w, http.StatusInternalServerError, "login", authPage{Username: creds.Username, Error: "Could not sign in, try again."})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) registryPage(w http.ResponseWriter, _ *http.Request) {
	h.render(w, http.StatusOK, "registry", authPage{})
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	creds := service.Credentials{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}

	if _, err := h.auth.Register(r.Context(), creds); err != nil {
		h.render(w, statusFor(err), "registry", authPage{Username: creds.Username, Error: domainerrors.Message(err)})
		return
	}
	http.Redirect(w, r, "/login?registered=1", http.StatusSeeOther)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.End(w, r); err != nil {
		h.logger.Warn("end session", "error", err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// statusFor maps err to the status of a re-rendered page. Unexpected errors
// show a generic message through the same page.
func statusFor(err error) int {
	return domainerrors.CodeOf(err).HTTPStatus()
}
