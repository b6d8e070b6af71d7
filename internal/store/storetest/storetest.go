// Package storetest holds the behavior shared by every store.Store backend.
// Each backend's tests call Run with a constructor for a fresh, empty store.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

// Factory returns a new empty store. The factory registers its own cleanup.
type Factory func(t *testing.T) store.Store

// Epoch is the instant used for every timestamp written by the suite.
var Epoch = time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)

// Run executes the conformance suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(*testing.T, store.Store)
	}{
		{"Users", testUsers},
		{"ShelvesOrderedByIndex", testShelvesOrdered},
		{"ShelfIndexUnique", testShelfIndexUnique},
		{"UpdateShelf", testUpdateShelf},
		{"DeleteShelfUnassignsBooks", testDeleteShelfUnassigns},
		{"BooksOrderedByTitle", testBooksOrdered},
		{"AssignBook", testAssignBook},
		{"AssignToForeignShelf", testAssignForeignShelf},
		{"DeleteBook", testDeleteBook},
		{"UnassignShelf", testUnassignShelf},
		{"DeleteBooksOnShelf", testDeleteBooksOnShelf},
		{"UserIsolation", testIsolation},
		{"Settings", testSettings},
		{"UpdateRollsBack", testRollback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

// SeedUser creates a user with the given ID and username.
func SeedUser(t *testing.T, s store.Store, id, username string) *domain.User {
	t.Helper()
	u := &domain.User{ID: id, Username: username, PasswordHash: "hash-" + id, CreatedAt: Epoch}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

func update(t *testing.T, s store.Store, userID string, fn func(store.Library) error) {
	t.Helper()
	require.NoError(t, s.Update(context.Background(), userID, fn))
}

func view(t *testing.T, s store.Store, userID string, fn func(store.Library) error) {
	t.Helper()
	require.NoError(t, s.View(context.Background(), userID, fn))
}

func shelf(id, userID string, index, capacity int) *domain.Shelf {
	return &domain.Shelf{
		ID:        id,
		UserID:    userID,
		Name:      "Shelf " + id,
		Capacity:  capacity,
		Index:     index,
		CreatedAt: Epoch,
		UpdatedAt: Epoch,
	}
}

func book(id, userID, title string, pages int, ref domain.ShelfRef) *domain.Book {
	return &domain.Book{
		ID:        id,
		UserID:    userID,
		Title:     title,
		Pages:     pages,
		Shelf:     ref,
		CreatedAt: Epoch,
		UpdatedAt: Epoch,
	}
}

func bookIDs(books []*domain.Book) []string {
	ids := make([]string, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}
	return ids
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()
	SeedUser(t, s, "user-b", "bob")
	SeedUser(t, s, "user-a", "alice")

	got, err := s.GetUser(ctx, "user-a")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, "hash-user-a", got.PasswordHash)
	assert.True(t, Epoch.Equal(got.CreatedAt))

	got, err = s.GetUserByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "user-b", got.ID)

	_, err = s.GetUserByUsername(ctx, "Bob")
	assert.ErrorIs(t, err, store.ErrNotFound, "usernames are case sensitive")

	_, err = s.GetUser(ctx, "user-missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.CreateUser(ctx, &domain.User{ID: "user-c", Username: "alice", PasswordHash: "x", CreatedAt: Epoch})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, "bob", users[1].Username)
}

func testShelvesOrdered(t *testing.T, s store.Store) {
	SeedUser(t, s, "user-1", "reader")

	update(t, s, "user-1", func(lib store.Library) error {
		ctx := context.Background()
		for _, sh := range []*domain.Shelf{
			shelf("shelf-c", "user-1", 7, 10),
			shelf("shelf-a", "user-1", 0, 10),
			shelf("shelf-b", "user-1", 3, 10),
		} {
			if err := lib.CreateShelf(ctx, sh); err != nil {
				return err
			}
		}
		return nil
	})

	view(t, s, "user-1", func(lib store.Library) error {
		assert.Equal(t, "user-1", lib.UserID())
		shelves, err := lib.FindShelves(context.Background())
		require.NoError(t, err)
		require.Len(t, shelves, 3)
		assert.Equal(t, []int{0, 3, 7}, []int{shelves[0].Index, shelves[1].Index, shelves[2].Index})
		assert.Equal(t, "shelf-a", shelves[0].ID)
		assert.Equal(t, "user-1", shelves[0].UserID)
		assert.True(t, Epoch.Equal(shelves[0].CreatedAt))

		got, err := lib.GetShelf(context.Background(), "shelf-b")
		require.NoError(t, err)
		assert.Equal(t, "Shelf shelf-b", got.Name)
		assert.Equal(t, 10, got.Capacity)

		_, err = lib.GetShelf(context.Background(), "shelf-missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
}

func testShelfIndexUnique(t *testing.T, s store.Store) {
	SeedUser(t, s, "user-1", "reader")
	SeedUser(t, s, "user-2", "writer")

	update(t, s, "user-1", func(lib store.Library) error {
		return lib.CreateShelf(context.Background(), shelf("shelf-1", "user-1", 0, 10))
	})

	err := s.Update(context.Background(), "user-1", func(lib store.Library) error {
		return lib.CreateShelf(context.Background(), shelf("shelf-2", "user-1", 0, 10))
	})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	// Indices are unique per user, not globally.
	update(t, s, "user-2", func(lib store.Library) error {
		return lib.CreateShelf(context.Background(), shelf("shelf-3", "user-2", 0, 10))
	})
}

func testUpdateShelf(t *testing.T, s store.Store) {
	SeedUser(t, s, "user-1", "reader")
	later := Epoch.Add(time.Hour)

	update(t, s, "user-1", func(lib store.Library) error {
		ctx := context.Background()
		sh := shelf("shelf-1", "user-1", 0, 10)
		if err := lib.CreateShelf(ctx, sh); err != nil {
			return err
		}
		sh.Name = ""
		sh.Capacity = 25
		sh.UpdatedAt = later
		return lib.UpdateShelf(ctx, sh)
	})

	view(t, s, "user-1", func(lib store.Library) error {
		got, err := lib.GetShelf(context.Background(), "shelf-1")
		require.NoError(t, err)
		assert.Equal(t, "", got.Name)
		assert.Equal(t, "Shelf 1", got.DisplayName())
		assert.Equal(t, 25, got.Capacity)
		assert.True(t, later.Equal(got.UpdatedAt))
		return nil
	})

	err := s.Update(context.Background(), "user-1", func(lib store.Library) error {
		return lib.UpdateShelf(context.Background(), shelf("shelf-missing", "user-1", 4, 10))
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDeleteShelfUnassigns(t *testing.T, s store.Store) {
	SeedUser(t, s, "user-1", "reader")

	update(t, s, "user-1", func(lib store.Library) error {
		ctx := context.Background()
		if err := lib.CreateShelf(ctx, shelf("shelf-1", "user-1", 0, 10)); err != nil {
			return err
		}
		if err := lib.CreateBook(ctx, book("book-1", "user-1", "Dune", 4, domain.OnShelf("shelf-1"))); err != nil {
			return err
		}
		return lib.DeleteShelf(ctx, "shelf-1")
	})

	view(t, s, "user-1", func(lib store.Library) error {
		b, err := lib.GetBook(context.Background(), "book-1")
		require.NoError(t, err)
		assert.False(t, b.Shelf.IsAssigned())
		return nil
	})

	err := s.Update(context.Background(), "user-1", func(lib store.Library) error {
		return lib.DeleteShelf(context.Background(), "shelf-1")
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testBooksOrdered(t *testing.T, s store.Store) {
	SeedUser(t, s, "user-1", "reader")

	update(t, s, "user-1", func(lib store.Library) error {
		ctx := context.Background()
		for _, b := range []*domain.Book{
			book("book-3", "user-1", "Solaris", 3, domain.Unassigned()),
			book("book-1", "user-1", "Dune", 4, domain.Unassigned()),
			book("book-2", "user-1", "Dune", 2, domain.Unassigned()),
		} {
			if err := lib.CreateBook(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})

	view(t, s, "user-1", func(lib store.Library) error {
		books, err := lib.FindBooks(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"book-1", "book-2", "book-3"}, bookIDs(books))
		assert.Equal(t, "user-1", books[0].UserID)
		assert.Equal(t, 4, books[0].Pages)
		assert.False(t, books[0].Shelf.IsAssigned())
		assert.True(t, Epoch.Equal(books[0].CreatedAt))
		return nil
	})
}

func testAssignBook(t *testing.T, s store.Store) {
	SeedUser(t, s, "user-1", "reader")

	update(t, s, "user-1", func(lib store.Library) error {
		ctx := context.Background()
		if err := lib.CreateShelf(ctx, shelf("shelf-1", "user-1", 0, 10)); err != nil {
			return err
		}
		if err := lib.CreateBook(ctx, book("book-1", "user-1", "Dune", 4, domain.Unassigned())); err != nil {
			return err
		}
		return lib.AssignBook(ctx, "book-1", domain.OnShelf("shelf-1"))
	})

	view(t, s, "user-1", func(lib store.Library) error {
		b, err := lib.GetBook(context.Background(), "book-1")
		require.NoError(t, err)
		assert.True(t, b.OnShelf("shelf-1"))
		return nil
	})

	update(t, s, "user-1", func(lib store.Library) error {
		return lib.AssignBook(context.Background(), "book-1", domain.Unassigned())
	})
	view(t, s, "user-1", func(lib store.Library) error {
		b, err := lib.GetBook(context.Background(), "book-1")
		require.NoError(t, err)
		assert.False(t, b.Shelf.IsAssigned())
		return nil
	})

	err := s.Update(context.Background(), "user-1", func(lib store.Library) error {
		return lib.AssignBook(context.Background(), "book-missing", domain.OnShelf("shelf-1"))
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.Update(context.Background(), "user-1", func(lib store.Library) error {
		return lib.AssignBook(context.Background(), "book-1", domain.OnShelf("shelf-missing"))
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testAssignForeignShelf(t *testing.T, s store.Store) {
	SeedUser(t, s, "user-1", "reader")
	SeedUser(t, s, "user-2", "writer")

	update(t, s, "user-2", func(lib store.Library) error {
		return lib.CreateShelf(context.Background(), shelf("shelf-theirs", "user-2", 0, 10))
	})

	err := s.Update(context.Background(), "user-1", func(lib store.Library) error {
		return lib.CreateBook(context.Background(), book("book-1", "user-1", "Dune", 4, domain.OnShelf("shelf-theirs")))
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	update(t, s, "user-1", func(lib store.Library) error {
		return lib.CreateBook(context.Background(), book("book-1", "user-1", "Dune", 4, domain.Unassigned()))
	})
	err = s.Update(context.Background(), "user-1", func(lib store.Library) error {
		return lib.AssignBook(context.Background(), "book-1", domain.OnShelf("shelf-theirs"))
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testDeleteBook(t *testing.T, s store.Store) {
	SeedUser(t, s, "user-1", "reader")

	update(t, s, "user-1", func(lib store.Library) error {
		ctx := context.Background()
		if err := lib.CreateBook(ctx, book("book-1", "user-1", "Dune", 4, domain.Unassigned())); err != nil {
			return err
		}
		return lib.DeleteBook(ctx, "book-1")
	})

	err := s.View(context.Background(), "user-1", func(lib store.Library) error {
		_, err := lib.GetBook(context.Background(), "book-1")
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.Update(context.Background(), "user-1", func(lib store.Library) error {
		return lib.DeleteBook(context.Background(), "book-1")
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func seedShelfWithBooks(t *testing.T, s store.Store) {
	t.Helper()
	SeedUser(t, s, "user-1", "reader")
	update(t, s, "user-1", func(lib store.Library) error {
		ctx := context.Background()
		if err := lib.CreateShelf(ctx, shelf("shelf-1", "user-1", 0, 10)); err != nil {
			return err
		}
		if err := lib.CreateShelf(ctx, shelf("shelf-2", "user-1", 1, 10)); err != nil {
			return err
		}
		for _, b := range []*domain.Book{
			book("book-1", "user-1", "Dune", 4, domain.OnShelf("shelf-1")),
			book("book-2", "user-1", "Emma", 2, domain.OnShelf("shelf-1")),
			book("book-3", "user-1", "Ulysses", 3, domain.OnShelf("shelf-2")),
			book("book-4", "user-1", "Walden", 1, domain.Unassigned()),
		} {
			if err := lib.CreateBook(ctx, b); err != nil {
				return err
			}
		}
		return nil
	})
}

func testUnassignShelf(t *testing.T, s store.Store) {
	seedShelfWithBooks(t, s)

	var n int
	update(t, s, "user-1", func(lib store.Library) error {
		var err error
		n, err = lib.UnassignShelf(context.Background(), "shelf-1")
		return err
	})
	assert.Equal(t, 2, n)

	view(t, s, "user-1", func(lib store.Library) error {
		books, err := lib.FindBooks(context.Background())
		require.NoError(t, err)
		require.Len(t, books, 4)
		for _, b := range books {
			assert.False(t, b.OnShelf("shelf-1"), b.ID)
		}
		assert.True(t, books[2].OnShelf("shelf-2"))
		return nil
	})
}

func testDeleteBooksOnShelf(t *testing.T, s store.Store) {
	seedShelfWithBooks(t, s)

	var deleted []string
	update(t, s, "user-1", func(lib store.Library) error {
		var err error
		deleted, err = lib.DeleteBooksOnShelf(context.Background(), "shelf-1")
		return err
	})
	assert.ElementsMatch(t, []string{"book-1", "book-2"}, deleted)

	view(t, s, "user-1", func(lib store.Library) error {
		books, err := lib.FindBooks(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"book-3", "book-4"}, bookIDs(books))
		return nil
	})
}

func testIsolation(t *testing.T, s store.Store) {
	SeedUser(t, s, "user-1", "reader")
	SeedUser(t, s, "user-2", "writer")

	update(t, s, "user-1", func(lib store.Library) error {
		ctx := context.Background()
		if err := lib.CreateShelf(ctx, shelf("shelf-1", "user-1", 0, 10)); err != nil {
			return err
		}
		return lib.CreateBook(ctx, book("book-1", "user-1", "Dune", 4, domain.OnShelf("shelf-1")))
	})

	view(t, s, "user-2", func(lib store.Library) error {
		ctx := context.Background()
		books, err := lib.FindBooks(ctx)
		require.NoError(t, err)
		assert.Empty(t, books)

		shelves, err := lib.FindShelves(ctx)
		require.NoError(t, err)
		assert.Empty(t, shelves)

		_, err = lib.GetBook(ctx, "book-1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		_, err = lib.GetShelf(ctx, "shelf-1")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})

	err := s.Update(context.Background(), "user-2", func(lib store.Library) error {
		return lib.DeleteBook(context.Background(), "book-1")
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	err = s.Update(context.Background(), "user-2", func(lib store.Library) error {
		return lib.DeleteShelf(context.Background(), "shelf-1")
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	var n int
	update(t, s, "user-2", func(lib store.Library) error {
		var err error
		n, err = lib.UnassignShelf(context.Background(), "shelf-1")
		return err
	})
	assert.Zero(t, n)

	view(t, s, "user-1", func(lib store.Library) error {
		b, err := lib.GetBook(context.Background(), "book-1")
		require.NoError(t, err)
		assert.True(t, b.OnShelf("shelf-1"))
		return nil
	})
}

func testSettings(t *testing.T, s store.Store) {
	SeedUser(t, s, "user-1", "reader")

	err := s.View(context.Background(), "user-1", func(lib store.Library) error {
		_, err := lib.FindSettings(context.Background())
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	update(t, s, "user-1", func(lib store.Library) error {
		return lib.CreateSettings(context.Background(), domain.NewShelfSettings("user-1", 5, 10, Epoch))
	})

	err = s.Update(context.Background(), "user-1", func(lib store.Library) error {
		return lib.CreateSettings(context.Background(), domain.NewShelfSettings("user-1", 3, 3, Epoch))
	})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	later := Epoch.Add(time.Minute)
	update(t, s, "user-1", func(lib store.Library) error {
		ctx := context.Background()
		settings, err := lib.FindSettings(ctx)
		if err != nil {
			return err
		}
		settings.NumberOfShelves = 0
		settings.ShelfCapacity = 42
		settings.UpdatedAt = later
		return lib.UpdateSettings(ctx, settings)
	})

	view(t, s, "user-1", func(lib store.Library) error {
		settings, err := lib.FindSettings(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "user-1", settings.UserID)
		assert.Equal(t, 0, settings.NumberOfShelves)
		assert.Equal(t, 42, settings.ShelfCapacity)
		assert.True(t, Epoch.Equal(settings.CreatedAt))
		assert.True(t, later.Equal(settings.UpdatedAt))
		return nil
	})
}

var errAbort = errors.New("abort")

func testRollback(t *testing.T, s store.Store) {
	SeedUser(t, s, "user-1", "reader")

	err := s.Update(context.Background(), "user-1", func(lib store.Library) error {
		ctx := context.Background()
		if err := lib.CreateShelf(ctx, shelf("shelf-1", "user-1", 0, 10)); err != nil {
			return err
		}
		if err := lib.CreateBook(ctx, book("book-1", "user-1", "Dune", 4, domain.Unassigned())); err != nil {
			return err
		}
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	view(t, s, "user-1", func(lib store.Library) error {
		books, err := lib.FindBooks(context.Background())
		require.NoError(t, err)
		assert.Empty(t, books)
		shelves, err := lib.FindShelves(context.Background())
		require.NoError(t, err)
		assert.Empty(t, shelves)
		return nil
	})
}
