package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfwise/shelfwise-server/internal/service"
)

func (s *Server) registerSettingsRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getShelfSettings",
		Method:      http.MethodGet,
		Path:        "/api/shelf-settings",
		Summary:     "Get shelf settings",
		Tags:        []string{"Settings"},
		Security:    bearerAuth,
	}, s.handleGetSettings)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateShelfSettings",
		Method:      http.MethodPut,
		Path:        "/api/shelf-settings",
		Summary:     "Update shelf settings",
		Description: "Changes the shelves created for an empty library. Existing shelves are not touched.",
		Tags:        []string{"Settings"},
		Security:    bearerAuth,
	}, s.handleUpdateSettings)
}

// SettingsOutput wraps the settings response for Huma.
type SettingsOutput struct {
	Body SettingsResponse
}

// UpdateSettingsRequest is the request body for updating shelf settings.
// Omitted fields are left unchanged.
type UpdateSettingsRequest struct {
	NumberOfShelves *int `json:"numberOfShelves,omitempty" doc:"Shelves created for an empty library"`
	ShelfCapacity   *int `json:"shelfCapacity,omitempty" maximum:"1000000" doc:"Capacity of created shelves"`
}

// UpdateSettingsInput wraps the update settings request for Huma.
type UpdateSettingsInput struct {
	Body UpdateSettingsRequest
}

func (s *Server) handleGetSettings(ctx context.Context, _ *struct{}) (*SettingsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	settings, err := s.services.Library.Settings(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &SettingsOutput{Body: toSettingsResponse(settings)}, nil
}

func (s *Server) handleUpdateSettings(ctx context.Context, input *UpdateSettingsInput) (*SettingsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	settings, err := s.services.Library.UpdateSettings(ctx, userID, service.UpdateSettingsRequest{
		NumberOfShelves: input.Body.NumberOfShelves,
		ShelfCapacity:   input.Body.ShelfCapacity,
	})
	if err != nil {
		return nil, err
	}
	return &SettingsOutput{Body: toSettingsResponse(settings)}, nil
}
