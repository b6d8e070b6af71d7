package providers

import (
	"github.com/jonboulle/clockwork"
	"github.com/samber/do/v2"

	"github.com/shelfwise/shelfwise-server/internal/auth"
	"github.com/shelfwise/shelfwise-server/internal/config"
	"github.com/shelfwise/shelfwise-server/internal/logger"
	"github.com/shelfwise/shelfwise-server/internal/ratelimit"
)

// AuthKey wraps the authentication key bytes.
type AuthKey []byte

// ProvideClock provides the wall clock shared by services and token issuing.
func ProvideClock(i do.Injector) (clockwork.Clock, error) {
	return clockwork.NewRealClock(), nil
}

// ProvideAuthKey loads or generates the authentication key.
func ProvideAuthKey(i do.Injector) (AuthKey, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	key, err := auth.LoadOrGenerateKey(cfg.Data.BasePath)
	if err != nil {
		return nil, err
	}

	cfg.Auth.AccessTokenKey = key

	log.Info("Authentication key loaded",
		"access_token_duration", cfg.Auth.AccessTokenDuration,
	)

	return AuthKey(key), nil
}

// ProvideTokenService provides the PASETO token service.
func ProvideTokenService(i do.Injector) (*auth.TokenService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	authKey := do.MustInvoke[AuthKey](i)
	clock := do.MustInvoke[clockwork.Clock](i)

	return auth.NewTokenService([]byte(authKey), cfg.Auth.AccessTokenDuration, clock)
}

// ProvideSessions provides the signed cookie store used by the HTML forms
// and cookie-authenticated API calls.
func ProvideSessions(i do.Injector) (*auth.Sessions, error) {
	cfg := do.MustInvoke[*config.Config](i)
	authKey := do.MustInvoke[AuthKey](i)

	secret := []byte(cfg.Auth.SessionSecret)
	if len(secret) == 0 {
		secret = []byte(authKey)
	}

	return auth.NewSessions(secret, cfg.Auth.SessionMaxAge, cfg.IsProduction()), nil
}

// RateLimiterHandle wraps the auth rate limiter so its eviction loop stops on shutdown.
type RateLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideAuthRateLimiter provides the per-IP limiter for login and registration.
func ProvideAuthRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	limiter := ratelimit.New(cfg.RateLimit.AuthPerSecond, cfg.RateLimit.AuthBurst)
	return &RateLimiterHandle{KeyedRateLimiter: limiter}, nil
}
