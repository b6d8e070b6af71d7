package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfwise/shelfwise-server/internal/service"
)

func (s *Server) registerShelfRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createShelf",
		Method:        http.MethodPost,
		Path:          "/api/shelves",
		Summary:       "Create shelf",
		Description:   "Appends a shelf after the user's last one",
		Tags:          []string{"Shelves"},
		Security:      bearerAuth,
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateShelf)

	huma.Register(s.api, huma.Operation{
		OperationID: "editShelf",
		Method:      http.MethodPut,
		Path:        "/api/shelves/{id}",
		Summary:     "Edit shelf",
		Description: "Renames a shelf or changes its capacity. Capacity cannot drop below the pages already on it.",
		Tags:        []string{"Shelves"},
		Security:    bearerAuth,
	}, s.handleEditShelf)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteShelf",
		Method:      http.MethodDelete,
		Path:        "/api/shelves/{id}",
		Summary:     "Delete shelf",
		Description: "Deletes a shelf together with every book on it",
		Tags:        []string{"Shelves"},
		Security:    bearerAuth,
	}, s.handleDeleteShelf)
}

// === DTOs ===

// CreateShelfRequest is the request body for creating a shelf.
type CreateShelfRequest struct {
	Name     string `json:"name" doc:"Shelf name"`
	Capacity int    `json:"capacity" maximum:"1000000" doc:"Capacity in pages, 1 to 1000000"`
}

// CreateShelfInput wraps the create shelf request for Huma.
type CreateShelfInput struct {
	Body CreateShelfRequest
}

// EditShelfRequest is the request body for editing a shelf. Omitted fields
// are left unchanged.
type EditShelfRequest struct {
	Name     *string `json:"name,omitempty" doc:"New name"`
	Capacity *int    `json:"capacity,omitempty" maximum:"1000000" doc:"New capacity in pages"`
}

// EditShelfInput wraps the edit shelf request for Huma.
type EditShelfInput struct {
	ID   string `path:"id" doc:"Shelf ID"`
	Body EditShelfRequest
}

// ShelfIDInput contains the shelf ID path parameter.
type ShelfIDInput struct {
	ID string `path:"id" doc:"Shelf ID"`
}

// ShelfEnvelope contains one shelf.
type ShelfEnvelope struct {
	Shelf ShelfResponse `json:"shelf" doc:"The shelf"`
}

// ShelfOutput wraps a single shelf response for Huma.
type ShelfOutput struct {
	Body ShelfEnvelope
}

// === Handlers ===

func (s *Server) handleCreateShelf(ctx context.Context, input *CreateShelfInput) (*ShelfOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	shelf, err := s.services.Library.CreateShelf(ctx, userID, service.CreateShelfRequest{
		Name:     input.Body.Name,
		Capacity: input.Body.Capacity,
	})
	if err != nil {
		return nil, err
	}
	return &ShelfOutput{Body: ShelfEnvelope{Shelf: toShelfResponse(shelf)}}, nil
}

func (s *Server) handleEditShelf(ctx context.Context, input *EditShelfInput) (*ShelfOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	shelf, err := s.services.Library.EditShelf(ctx, userID, input.ID, service.EditShelfRequest{
		Name:     input.Body.Name,
		Capacity: input.Body.Capacity,
	})
	if err != nil {
		return nil, err
	}
	return &ShelfOutput{Body: ShelfEnvelope{Shelf: toShelfResponse(shelf)}}, nil
}

func (s *Server) handleDeleteShelf(ctx context.Context, input *ShelfIDInput) (*SuccessOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Library.DeleteShelf(ctx, userID, input.ID); err != nil {
		return nil, err
	}
	return &SuccessOutput{Body: SuccessResponse{Success: true}}, nil
}
