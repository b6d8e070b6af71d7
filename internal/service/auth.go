package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/shelfwise/shelfwise-server/internal/auth"
	"github.com/shelfwise/shelfwise-server/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/id"
	"github.com/shelfwise/shelfwise-server/internal/metrics"
	"github.com/shelfwise/shelfwise-server/internal/store"
	"github.com/shelfwise/shelfwise-server/internal/validation"
)

// AuthService registers users, checks credentials and issues access tokens.
type AuthService struct {
	users        store.Users
	tokenService *auth.TokenService
	validator    *validation.Validator
	clock        clockwork.Clock
	logger       *slog.Logger
}

// NewAuthService creates an authentication service. A nil clock means the
// real one.
func NewAuthService(users store.Users, tokenService *auth.TokenService, clock clockwork.Clock, logger *slog.Logger) *AuthService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &AuthService{
		users:        users,
		tokenService: tokenService,
		validator:    validation.New(),
		clock:        clock,
		logger:       logger,
	}
}

// Credentials is the input of Register and Login.
type Credentials struct {
	Username string `json:"username" validate:"notblank,max=64"`
	Password string `json:"password" validate:"required,max=1024"`
}

// AuthResponse is returned after a successful registration or login.
type AuthResponse struct {
	Token    string       `json:"token"`
	Username string       `json:"username"`
	User     *domain.User `json:"-"`
}

// Register creates a user and signs them in.
func (s *AuthService) Register(ctx context.Context, req Credentials) (resp *AuthResponse, err error) {
	defer func() { recordAuth("register", err) }()

	req.Username = strings.TrimSpace(req.Username)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	if _, err := s.users.GetUserByUsername(ctx, req.Username); err == nil {
		return nil, domainerrors.AlreadyExists("user already exists")
	} else if !store.IsNotFound(err) {
		return nil, fmt.Errorf("look up user: %w", err)
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, domainerrors.Validation(err.Error())
	}
	userID, err := id.User()
	if err != nil {
		return nil, fmt.Errorf("generate user ID: %w", err)
	}

	user := &domain.User{
		ID:           userID,
		Username:     req.Username,
		PasswordHash: hash,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, domainerrors.AlreadyExists("user already exists")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return s.issue(user)
}

// Login checks a username and password. Unknown users and wrong passwords
// fail with the same error.
func (s *AuthService) Login(ctx context.Context, req Credentials) (resp *AuthResponse, err error) {
	defer func() { recordAuth("login", err) }()

	req.Username = strings.TrimSpace(req.Username)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, domainerrors.InvalidCredentials("invalid username or password")
		}
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if !auth.VerifyPassword(user.PasswordHash, req.Password) {
		s.logger.Debug("password mismatch", "username", req.Username)
		return nil, domainerrors.InvalidCredentials("invalid username or password")
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return s.issue(user)
}

// Authenticate checks username and password without issuing a token. The
// form surface uses it before starting a cookie session.
func (s *AuthService) Authenticate(ctx context.Context, req Credentials) (*domain.User, error) {
	resp, err := s.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.User, nil
}

// VerifyAccessToken returns the user a token was issued to.
func (s *AuthService) VerifyAccessToken(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokenService.VerifyAccessToken(token)
	if err != nil {
		return nil, domainerrors.Unauthorized("invalid or expired token").WithCause(err)
	}
	return s.CurrentUser(ctx, claims.UserID)
}

// CurrentUser loads an authenticated user. A user deleted since signing in
// is treated as unauthenticated.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if store.IsNotFound(err) {
			return nil, domainerrors.Unauthorized("user no longer exists")
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResponse, error) {
	token, err := s.tokenService.GenerateAccessToken(user)
	if err != nil {
		return nil, fmt.Errorf("generate access token: %w", err)
	}
	return &AuthResponse{Token: token, Username: user.Username, User: user}, nil
}

func recordAuth(action string, err error) {
	result := "success"
	if err != nil {
		result = strings.ToLower(string(domainerrors.CodeOf(err)))
	}
	metrics.AuthAttemptsTotal.WithLabelValues(action, result).Inc()
}
