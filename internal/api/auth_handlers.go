package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfwise/shelfwise-server/internal/service"
)

func (s *Server) registerAuthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "register",
		Method:        http.MethodPost,
		Path:          "/api/auth/register",
		Summary:       "Register new user",
		Description:   "Creates a user account and returns an access token",
		Tags:          []string{"Authentication"},
		DefaultStatus: http.StatusCreated,
		Middlewares:   huma.Middlewares{s.rateLimitAuth},
	}, s.handleRegister)

	huma.Register(s.api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/api/auth/login",
		Summary:     "User login",
		Description: "Checks credentials and returns an access token",
		Tags:        []string{"Authentication"},
		Middlewares: huma.Middlewares{s.rateLimitAuth},
	}, s.handleLogin)

	huma.Register(s.api, huma.Operation{
		OperationID: "currentUser",
		Method:      http.MethodGet,
		Path:        "/api/current-user",
		Summary:     "Current user",
		Description: "Returns the authenticated user",
		Tags:        []string{"Authentication"},
		Security:    bearerAuth,
	}, s.handleCurrentUser)
}

// === DTOs ===

// CredentialsRequest is the request body for registration and login.
type CredentialsRequest struct {
	Username string `json:"username" doc:"Username"`
	Password string `json:"password" doc:"Password"`
}

// CredentialsInput wraps the credentials for Huma.
type CredentialsInput struct {
	Body CredentialsRequest
}

// AuthResponse contains an access token for the signed-in user.
type AuthResponse struct {
	Token    string `json:"token" doc:"PASETO access token, sent as a bearer token"`
	Username string `json:"username" doc:"Username"`
}

// AuthOutput wraps the auth response for Huma.
type AuthOutput struct {
	Body AuthResponse
}

// CurrentUserResponse describes the authenticated user.
type CurrentUserResponse struct {
	Username string `json:"username" doc:"Username"`
}

// CurrentUserOutput wraps the current user response for Huma.
type CurrentUserOutput struct {
	Body CurrentUserResponse
}

// === Handlers ===

func (s *Server) handleRegister(ctx context.Context, input *CredentialsInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.Register(ctx, service.Credentials(input.Body))
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: AuthResponse{Token: resp.Token, Username: resp.Username}}, nil
}

func (s *Server) handleLogin(ctx context.Context, input *CredentialsInput) (*AuthOutput, error) {
	resp, err := s.services.Auth.Login(ctx, service.Credentials(input.Body))
	if err != nil {
		return nil, err
	}
	return &AuthOutput{Body: AuthResponse{Token: resp.Token, Username: resp.Username}}, nil
}

func (s *Server) handleCurrentUser(ctx context.Context, _ *struct{}) (*CurrentUserOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.services.Auth.CurrentUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &CurrentUserOutput{Body: CurrentUserResponse{Username: user.Username}}, nil
}
