package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/sessions"
)

const (
	sessionName      = "shelfwise_session"
	sessionKeyUserID = "user_id"
)

// Sessions keeps the signed-in user in a signed cookie. The form pages sign
// users in this way, and the JSON API accepts the same cookie as an
// alternative to a bearer token.
type Sessions struct {
	store *sessions.CookieStore
}

// NewSessions creates a cookie session store signed with secret.
func NewSessions(secret []byte, maxAge time.Duration, secure bool) *Sessions {
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{store: store}
}

// UserID returns the user signed in on r.
func (s *Sessions) UserID(r *http.Request) (string, bool) {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		return "", false
	}
	userID, ok := session.Values[sessionKeyUserID].(string)
	return userID, ok && userID != ""
}

// Start signs userID in. Any previous session is discarded first so a
// session ID planted before sign-in is never reused.
func (s *Sessions) Start(w http.ResponseWriter, r *http.Request, userID string) error {
	if old, err := s.store.Get(r, sessionName); err == nil && !old.IsNew {
		old.Options.MaxAge = -1
		if err := old.Save(r, w); err != nil {
			return fmt.Errorf("invalidate old session: %w", err)
		}
	}

	session, err := s.store.New(r, sessionName)
	if err != nil && session == nil {
		return fmt.Errorf("create session: %w", err)
	}
	session.Values[sessionKeyUserID] = userID
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// End signs the user out.
func (s *Sessions) End(w http.ResponseWriter, r *http.Request) error {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		session, err = s.store.New(r, sessionName)
		if err != nil && session == nil {
			return fmt.Errorf("create session: %w", err)
		}
	}
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
