package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/shelfwise/shelfwise-server/internal/search"
	"github.com/shelfwise/shelfwise-server/internal/service"
)

var bearerAuth = []map[string][]string{{"bearer": {}}}

func (s *Server) registerLibraryRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getLibrary",
		Method:      http.MethodGet,
		Path:        "/api/books",
		Summary:     "Get library",
		Description: "Places unassigned books, then returns every shelf with its books and the shelf settings",
		Tags:        []string{"Books"},
		Security:    bearerAuth,
	}, s.handleGetLibrary)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchBooks",
		Method:      http.MethodGet,
		Path:        "/api/books/search",
		Summary:     "Search books",
		Description: "Finds books whose title matches every word of the query",
		Tags:        []string{"Books"},
		Security:    bearerAuth,
	}, s.handleSearchBooks)

	huma.Register(s.api, huma.Operation{
		OperationID:   "addBook",
		Method:        http.MethodPost,
		Path:          "/api/books",
		Summary:       "Add book",
		Description:   "Adds a book to the requested shelf or to the first shelf with room",
		Tags:          []string{"Books"},
		Security:      bearerAuth,
		DefaultStatus: http.StatusCreated,
	}, s.handleAddBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBook",
		Method:      http.MethodDelete,
		Path:        "/api/books/{id}",
		Summary:     "Delete book",
		Description: "Deletes a book. Deleting a missing book succeeds.",
		Tags:        []string{"Books"},
		Security:    bearerAuth,
	}, s.handleDeleteBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "moveBook",
		Method:      http.MethodPut,
		Path:        "/api/books/{id}/move",
		Summary:     "Move book",
		Description: "Moves a book to another shelf with enough room",
		Tags:        []string{"Books"},
		Security:    bearerAuth,
	}, s.handleMoveBook)
}

// === DTOs ===

// LibraryOutput wraps the library response for Huma.
type LibraryOutput struct {
	Body LibraryResponse
}

// SearchBooksInput contains parameters for searching books.
type SearchBooksInput struct {
	Query string `query:"q" doc:"Words to match against titles"`
	Limit int    `query:"limit" minimum:"0" maximum:"100" doc:"Maximum number of results (default 20)"`
}

// SearchBooksResponse contains search results.
type SearchBooksResponse struct {
	Books []search.Hit `json:"books" doc:"Matching books ordered by relevance"`
}

// SearchBooksOutput wraps the search response for Huma.
type SearchBooksOutput struct {
	Body SearchBooksResponse
}

// AddBookRequest is the request body for adding a book.
type AddBookRequest struct {
	Title   string `json:"title" doc:"Title"`
	Pages   int    `json:"pages" maximum:"1000000" doc:"Page count, 1 to 1000000"`
	ShelfID string `json:"shelfId,omitempty" doc:"Target shelf. Omit to use the first shelf with room."`
}

// AddBookInput wraps the add book request for Huma.
type AddBookInput struct {
	Body AddBookRequest
}

// BookEnvelope contains one book.
type BookEnvelope struct {
	Book BookResponse `json:"book" doc:"The book"`
}

// BookOutput wraps a single book response for Huma.
type BookOutput struct {
	Body BookEnvelope
}

// BookIDInput contains the book ID path parameter.
type BookIDInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// MoveBookRequest is the request body for moving a book.
type MoveBookRequest struct {
	ShelfID string `json:"shelfId,omitempty" doc:"Destination shelf"`
}

// MoveBookInput wraps the move book request for Huma.
type MoveBookInput struct {
	ID   string `path:"id" doc:"Book ID"`
	Body MoveBookRequest
}

// SuccessResponse reports a completed operation without a result.
type SuccessResponse struct {
	Success bool `json:"success" doc:"Always true"`
}

// SuccessOutput wraps a success response for Huma.
type SuccessOutput struct {
	Body SuccessResponse
}

// === Handlers ===

func (s *Server) handleGetLibrary(ctx context.Context, _ *struct{}) (*LibraryOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	lib, err := s.services.Library.Library(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &LibraryOutput{Body: toLibraryResponse(lib)}, nil
}

func (s *Server) handleSearchBooks(ctx context.Context, input *SearchBooksInput) (*SearchBooksOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	hits, err := s.services.Library.SearchBooks(ctx, userID, input.Query, input.Limit)
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []search.Hit{}
	}
	return &SearchBooksOutput{Body: SearchBooksResponse{Books: hits}}, nil
}

func (s *Server) handleAddBook(ctx context.Context, input *AddBookInput) (*BookOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	book, err := s.services.Library.AddBook(ctx, userID, service.AddBookRequest{
		Title:   input.Body.Title,
		Pages:   input.Body.Pages,
		ShelfID: input.Body.ShelfID,
	})
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: BookEnvelope{Book: toBookResponse(book)}}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *BookIDInput) (*SuccessOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Library.DeleteBook(ctx, userID, input.ID); err != nil {
		return nil, err
	}
	return &SuccessOutput{Body: SuccessResponse{Success: true}}, nil
}

func (s *Server) handleMoveBook(ctx context.Context, input *MoveBookInput) (*BookOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	book, err := s.services.Library.MoveBook(ctx, userID, input.ID, input.Body.ShelfID)
	if err != nil {
		return nil, err
	}
	return &BookOutput{Body: BookEnvelope{Book: toBookResponse(book)}}, nil
}
