// Package store defines the record store the library core runs against.
//
// Every backend (sqlite, kv, postgres) implements Store. Book, shelf and
// settings records are only reachable through a Library obtained from View or
// Update, and a Library is bound to one user, so a caller can never read or
// write another user's records.
package store

import (
	"context"

	"github.com/shelfwise/shelfwise-server/internal/domain"
)

// Store is a record store backend.
type Store interface {
	Users

	// View runs fn with a read-only Library for userID.
	View(ctx context.Context, userID string, fn func(Library) error) error
	// Update runs fn with a read-write Library for userID as one unit of work.
	// Changes are committed when fn returns nil and discarded otherwise.
	Update(ctx context.Context, userID string, fn func(Library) error) error

	Close() error
}

// Users manages accounts.
type Users interface {
	// CreateUser returns ErrAlreadyExists when the username is taken.
	CreateUser(ctx context.Context, user *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
	// ListUsers returns every user ordered by username.
	ListUsers(ctx context.Context) ([]*domain.User, error)
}

// Library is one user's books, shelves and settings.
//
// Lookups of a missing record return ErrNotFound. References to shelves are
// checked against the same user: assigning a book to a shelf the user does
// not own fails with ErrNotFound.
type Library interface {
	UserID() string

	// FindBooks returns the user's books ordered by title, then ID.
	FindBooks(ctx context.Context) ([]*domain.Book, error)
	GetBook(ctx context.Context, id string) (*domain.Book, error)
	CreateBook(ctx context.Context, book *domain.Book) error
	// AssignBook sets the shelf reference of one book.
	AssignBook(ctx context.Context, bookID string, shelf domain.ShelfRef) error
	DeleteBook(ctx context.Context, id string) error
	// DeleteBooksOnShelf removes every book on shelfID and returns their IDs.
	DeleteBooksOnShelf(ctx context.Context, shelfID string) ([]string, error)
	// UnassignShelf clears the shelf reference of every book on shelfID and
	// returns how many books changed.
	UnassignShelf(ctx context.Context, shelfID string) (int, error)

	// FindShelves returns the user's shelves ordered by index.
	FindShelves(ctx context.Context) ([]*domain.Shelf, error)
	GetShelf(ctx context.Context, id string) (*domain.Shelf, error)
	// CreateShelf returns ErrAlreadyExists when the index is taken.
	CreateShelf(ctx context.Context, shelf *domain.Shelf) error
	// UpdateShelf writes name, capacity and index.
	UpdateShelf(ctx context.Context, shelf *domain.Shelf) error
	DeleteShelf(ctx context.Context, id string) error

	FindSettings(ctx context.Context) (*domain.ShelfSettings, error)
	// CreateSettings returns ErrAlreadyExists when settings exist.
	CreateSettings(ctx context.Context, settings *domain.ShelfSettings) error
	UpdateSettings(ctx context.Context, settings *domain.ShelfSettings) error
}
