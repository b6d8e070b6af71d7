package auth

import (
	"encoding/json"
	"fmt"
	"time"

	"aidanwoods.dev/go-paseto"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/shelfwise/shelfwise-server/internal/domain"
)

const (
	tokenIssuer   = "shelfwise-server"
	tokenAudience = "shelfwise-client"
)

// TokenService issues and verifies PASETO v4.local access tokens.
type TokenService struct {
	key      paseto.V4SymmetricKey
	duration time.Duration
	clock    clockwork.Clock
}

// NewTokenService creates a token service from a 32-byte key.
func NewTokenService(key []byte, duration time.Duration, clock clockwork.Clock) (*TokenService, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("PASETO v4 key must be exactly %d bytes, got %d", KeySize, len(key))
	}
	if duration <= 0 {
		return nil, fmt.Errorf("token duration must be positive, got %s", duration)
	}
	sk, err := paseto.V4SymmetricKeyFromBytes(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create PASETO symmetric key: %w", err)
	}
	return &TokenService{key: sk, duration: duration, clock: clock}, nil
}

// GenerateAccessToken returns an encrypted token for user.
func (s *TokenService) GenerateAccessToken(user *domain.User) (string, error) {
	now := s.clock.Now()

	token := paseto.NewToken()
	token.SetIssuer(tokenIssuer)
	token.SetSubject(user.ID)
	token.SetAudience(tokenAudience)
	token.SetIssuedAt(now)
	token.SetNotBefore(now)
	token.SetExpiration(now.Add(s.duration))
	token.SetJti(uuid.NewString())
	token.SetString("user_id", user.ID)
	token.SetString("username", user.Username)

	return token.V4Encrypt(s.key, nil), nil
}

// VerifyAccessToken decrypts tokenString and checks audience, issuer and
// validity window against the service clock.
func (s *TokenService) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	parser := paseto.NewParserWithoutExpiryCheck()
	parser.AddRule(paseto.ForAudience(tokenAudience))
	parser.AddRule(paseto.IssuedBy(tokenIssuer))
	parser.AddRule(paseto.ValidAt(s.clock.Now()))

	token, err := parser.ParseV4Local(s.key, tokenString, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	var claims AccessClaims
	if err := json.Unmarshal(token.ClaimsJSON(), &claims); err != nil {
		return nil, fmt.Errorf("parse claims: %w", err)
	}
	return &claims, nil
}

// Duration returns the access token lifetime.
func (s *TokenService) Duration() time.Duration {
	return s.duration
}
