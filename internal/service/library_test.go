package service

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shelfwise/shelfwise-server/internal/config"
	"github.com/shelfwise/shelfwise-server/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/logger"
	"github.com/shelfwise/shelfwise-server/internal/search"
	"github.com/shelfwise/shelfwise-server/internal/sse"
	"github.com/shelfwise/shelfwise-server/internal/store"
	"github.com/shelfwise/shelfwise-server/internal/store/sqlite"
	"github.com/shelfwise/shelfwise-server/internal/store/storetest"
)

const testUser = "user-alice"

type fixture struct {
	svc   *LibraryService
	store store.Store
	clock *clockwork.FakeClock
}

func newFixture(t *testing.T, defaultCount int) *fixture {
	t.Helper()
	log := logger.Discard().Logger
	clock := clockwork.NewFakeClockAt(storetest.Epoch)

	st, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"), log, store.WithClock(clock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	storetest.SeedUser(t, st, testUser, "alice")

	defaults := config.ShelvesConfig{DefaultCount: defaultCount, DefaultCapacity: 10, AdHocCapacity: 100}
	return &fixture{
		svc:   NewLibraryService(st, defaults, clock, log),
		store: st,
		clock: clock,
	}
}

func (f *fixture) shelf(t *testing.T, name string, capacity int) *domain.Shelf {
	t.Helper()
	s, err := f.svc.CreateShelf(context.Background(), testUser, CreateShelfRequest{Name: name, Capacity: capacity})
	require.NoError(t, err)
	return s
}

func (f *fixture) book(t *testing.T, title string, pages int, shelfID string) *domain.Book {
	t.Helper()
	b, err := f.svc.AddBook(context.Background(), testUser, AddBookRequest{Title: title, Pages: pages, ShelfID: shelfID})
	require.NoError(t, err)
	return b
}

// rawBook writes an unassigned book straight to the store, bypassing placement.
func (f *fixture) rawBook(t *testing.T, bookID, title string, pages int) {
	t.Helper()
	err := f.store.Update(context.Background(), testUser, func(tx store.Library) error {
		return tx.CreateBook(context.Background(), &domain.Book{ID: bookID, UserID: testUser, Title: title, Pages: pages})
	})
	require.NoError(t, err)
}

func (f *fixture) library(t *testing.T) *domain.Library {
	t.Helper()
	lib, err := f.svc.Library(context.Background(), testUser)
	require.NoError(t, err)
	return lib
}

func assertCode(t *testing.T, err error, code domainerrors.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, domainerrors.CodeOf(err), err.Error())
}

func TestLibrary_InitializesShelvesFromSettings(t *testing.T) {
	f := newFixture(t, 3)

	lib := f.library(t)

	require.Len(t, lib.Shelves, 3)
	for i, v := range lib.Shelves {
		assert.Equal(t, domain.DefaultShelfName(i+1), v.Name)
		assert.Equal(t, i, v.Index)
		assert.Equal(t, 10, v.Capacity)
		assert.Empty(t, v.Books)
	}
	assert.Equal(t, 3, lib.Settings.NumberOfShelves)
	assert.Equal(t, 10, lib.Settings.ShelfCapacity)

	// A second view finds shelves and does not initialize again.
	assert.Len(t, f.library(t).Shelves, 3)
}

func TestLibrary_ZeroShelfSetting(t *testing.T) {
	f := newFixture(t, 0)

	lib := f.library(t)

	assert.Empty(t, lib.Shelves)
	assert.Equal(t, 0, lib.Settings.NumberOfShelves)
}

func TestLibrary_PlacesUnassignedBooks(t *testing.T) {
	f := newFixture(t, 0)
	first := f.shelf(t, "First", 10)
	second := f.shelf(t, "Second", 5)
	f.rawBook(t, "book-b", "Яма", 7)
	f.rawBook(t, "book-a", "Азбука", 3)

	lib := f.library(t)

	require.Len(t, lib.Shelves, 2)
	assert.Equal(t, first.ID, lib.Shelves[0].ID)
	assert.Equal(t, second.ID, lib.Shelves[1].ID)
	// Азбука is placed first and takes 3 of 10; Яма (7) still fits on the first shelf.
	require.Len(t, lib.Shelves[0].Books, 2)
	assert.Equal(t, "Азбука", lib.Shelves[0].Books[0].Title)
	assert.Equal(t, "Яма", lib.Shelves[0].Books[1].Title)
	assert.Equal(t, 10, lib.Shelves[0].UsedPages)

	// Placement is persisted, so viewing again changes nothing.
	again := f.library(t)
	assert.Equal(t, 10, again.Shelves[0].UsedPages)
	assert.Equal(t, 0, again.Shelves[1].UsedPages)
}

func TestLibrary_OverflowGoesToLeastUsedShelf(t *testing.T) {
	f := newFixture(t, 0)
	full := f.shelf(t, "Full", 5)
	almost := f.shelf(t, "Almost", 5)
	f.book(t, "Five", 5, full.ID)
	f.book(t, "Four", 4, almost.ID)
	f.rawBook(t, "book-x", "Three", 3)

	lib := f.library(t)

	assert.Equal(t, 5, lib.Shelves[0].UsedPages)
	assert.Equal(t, 7, lib.Shelves[1].UsedPages)
	assert.True(t, lib.Shelves[1].Overflowing())
}

func TestAddBook_FirstBookCreatesShelf(t *testing.T) {
	f := newFixture(t, 0)

	b := f.book(t, "  Dune  ", 42, "shelf-elsewhere")

	assert.Equal(t, "Dune", b.Title)
	lib := f.library(t)
	require.Len(t, lib.Shelves, 1)
	s := lib.Shelves[0]
	assert.Equal(t, "Shelf 1", s.Name)
	assert.Equal(t, 100, s.Capacity)
	assert.Equal(t, 0, s.Index)
	assert.True(t, b.OnShelf(s.ID))
}

func TestAddBook_FirstBookTooLargeLeavesNothingBehind(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.svc.AddBook(context.Background(), testUser, AddBookRequest{Title: "Tome", Pages: 150})

	assertCode(t, err, domainerrors.CodeCapacityExceeded)
	assert.Empty(t, f.library(t).Shelves)
}

func TestAddBook_Rejects(t *testing.T) {
	tests := []struct {
		name string
		req  func(shelfID string) AddBookRequest
		code domainerrors.Code
	}{
		{"blank title", func(string) AddBookRequest { return AddBookRequest{Title: "   ", Pages: 1} }, domainerrors.CodeValidation},
		{"zero pages", func(string) AddBookRequest { return AddBookRequest{Title: "A", Pages: 0} }, domainerrors.CodeValidation},
		{"negative pages", func(string) AddBookRequest { return AddBookRequest{Title: "A", Pages: -3} }, domainerrors.CodeValidation},
		{"unknown shelf", func(string) AddBookRequest { return AddBookRequest{Title: "A", Pages: 1, ShelfID: "shelf-nope"} }, domainerrors.CodeNotFound},
		{"requested shelf full", func(id string) AddBookRequest { return AddBookRequest{Title: "A", Pages: 6, ShelfID: id} }, domainerrors.CodeCapacityExceeded},
		{"no shelf fits", func(string) AddBookRequest { return AddBookRequest{Title: "A", Pages: 11} }, domainerrors.CodeNoFittingShelf},
		{"pages above limit", func(id string) AddBookRequest { return AddBookRequest{Title: "A", Pages: domain.MaxPages + 1, ShelfID: id} }, domainerrors.CodeValidation},
		{"pages at int limit", func(id string) AddBookRequest { return AddBookRequest{Title: "A", Pages: math.MaxInt, ShelfID: id} }, domainerrors.CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 0)
			s := f.shelf(t, "Only", 10)
			f.book(t, "Existing", 5, s.ID)

			_, err := f.svc.AddBook(context.Background(), testUser, tt.req(s.ID))

			assertCode(t, err, tt.code)
			assert.Equal(t, 5, f.library(t).UsedPages())
		})
	}
}

func TestAddBook_FirstFit(t *testing.T) {
	f := newFixture(t, 0)
	big := f.shelf(t, "Big", 10)
	f.shelf(t, "Small", 5)

	b := f.book(t, "Seven", 7, "")

	assert.True(t, b.OnShelf(big.ID))
}

func TestAddBook_ExactFit(t *testing.T) {
	f := newFixture(t, 0)
	s := f.shelf(t, "Shelf", 10)
	f.book(t, "A", 6, s.ID)

	b := f.book(t, "B", 4, s.ID)

	assert.True(t, b.OnShelf(s.ID))
	assert.Equal(t, 10, f.library(t).Shelves[0].UsedPages)
}

func TestDeleteBook(t *testing.T) {
	f := newFixture(t, 0)
	s := f.shelf(t, "Shelf", 10)
	b := f.book(t, "A", 6, s.ID)

	require.NoError(t, f.svc.DeleteBook(context.Background(), testUser, b.ID))
	assert.Equal(t, 0, f.library(t).UsedPages())

	// Deleting again is not an error.
	assert.NoError(t, f.svc.DeleteBook(context.Background(), testUser, b.ID))
}

func TestCreateShelf(t *testing.T) {
	f := newFixture(t, 0)

	first := f.shelf(t, "  Fiction  ", 10)
	second := f.shelf(t, "Poetry", 3)

	assert.Equal(t, "Fiction", first.Name)
	assert.Equal(t, 0, first.Index)
	assert.Equal(t, 1, second.Index)

	_, err := f.svc.CreateShelf(context.Background(), testUser, CreateShelfRequest{Name: " ", Capacity: 5})
	assertCode(t, err, domainerrors.CodeValidation)
	_, err = f.svc.CreateShelf(context.Background(), testUser, CreateShelfRequest{Name: "X", Capacity: 0})
	assertCode(t, err, domainerrors.CodeValidation)
}

func TestCreateShelf_IndexFollowsHighest(t *testing.T) {
	f := newFixture(t, 0)
	f.shelf(t, "A", 1)
	b := f.shelf(t, "B", 1)
	f.shelf(t, "C", 1)
	require.NoError(t, f.svc.DeleteShelf(context.Background(), testUser, b.ID))

	d := f.shelf(t, "D", 1)

	assert.Equal(t, 3, d.Index)
}

func TestEditShelf(t *testing.T) {
	f := newFixture(t, 0)
	s := f.shelf(t, "Shelf", 10)
	f.book(t, "A", 8, s.ID)
	ctx := context.Background()

	t.Run("shrinking below usage is rejected", func(t *testing.T) {
		_, err := f.svc.EditShelf(ctx, testUser, s.ID, EditShelfRequest{Capacity: ptr(5)})
		assertCode(t, err, domainerrors.CodeCapacityExceeded)
		assert.Equal(t, 10, f.library(t).Shelves[0].Capacity)
	})

	t.Run("shrinking to usage is allowed", func(t *testing.T) {
		got, err := f.svc.EditShelf(ctx, testUser, s.ID, EditShelfRequest{Capacity: ptr(8)})
		require.NoError(t, err)
		assert.Equal(t, 8, got.Capacity)
	})

	t.Run("non-positive capacity", func(t *testing.T) {
		_, err := f.svc.EditShelf(ctx, testUser, s.ID, EditShelfRequest{Capacity: ptr(0)})
		assertCode(t, err, domainerrors.CodeValidation)
	})

	t.Run("capacity above limit", func(t *testing.T) {
		_, err := f.svc.EditShelf(ctx, testUser, s.ID, EditShelfRequest{Capacity: ptr(math.MaxInt)})
		assertCode(t, err, domainerrors.CodeValidation)
		assert.Equal(t, 8, f.library(t).Shelves[0].Capacity)
	})

	t.Run("empty name falls back to display name", func(t *testing.T) {
		got, err := f.svc.EditShelf(ctx, testUser, s.ID, EditShelfRequest{Name: ptr("")})
		require.NoError(t, err)
		assert.Empty(t, got.Name)
		assert.Equal(t, "Shelf 1", got.DisplayName())
		assert.Equal(t, 8, got.Capacity)
	})

	t.Run("missing shelf", func(t *testing.T) {
		_, err := f.svc.EditShelf(ctx, testUser, "shelf-nope", EditShelfRequest{Name: ptr("x")})
		assertCode(t, err, domainerrors.CodeNotFound)
	})
}

func TestDeleteShelf_DeletesItsBooks(t *testing.T) {
	f := newFixture(t, 0)
	keep := f.shelf(t, "Keep", 10)
	drop := f.shelf(t, "Drop", 10)
	f.book(t, "Kept", 4, keep.ID)
	f.book(t, "Gone 1", 3, drop.ID)
	f.book(t, "Gone 2", 2, drop.ID)

	require.NoError(t, f.svc.DeleteShelf(context.Background(), testUser, drop.ID))

	lib := f.library(t)
	require.Len(t, lib.Shelves, 1)
	require.Len(t, lib.Shelves[0].Books, 1)
	assert.Equal(t, "Kept", lib.Shelves[0].Books[0].Title)

	err := f.svc.DeleteShelf(context.Background(), testUser, drop.ID)
	assertCode(t, err, domainerrors.CodeNotFound)
}

func TestMoveBook(t *testing.T) {
	f := newFixture(t, 0)
	a := f.shelf(t, "A", 10)
	b := f.shelf(t, "B", 10)
	book := f.book(t, "Moving", 6, a.ID)
	f.book(t, "Blocker", 5, b.ID)
	ctx := context.Background()

	t.Run("errors are checked in order", func(t *testing.T) {
		_, err := f.svc.MoveBook(ctx, testUser, "book-nope", "")
		assertCode(t, err, domainerrors.CodeNotFound)
		_, err = f.svc.MoveBook(ctx, testUser, book.ID, " ")
		assertCode(t, err, domainerrors.CodeValidation)
		_, err = f.svc.MoveBook(ctx, testUser, book.ID, "shelf-nope")
		assertCode(t, err, domainerrors.CodeNotFound)
		_, err = f.svc.MoveBook(ctx, testUser, book.ID, b.ID)
		assertCode(t, err, domainerrors.CodeCapacityExceeded)
	})

	t.Run("moving within the same shelf ignores its own pages", func(t *testing.T) {
		got, err := f.svc.MoveBook(ctx, testUser, book.ID, a.ID)
		require.NoError(t, err)
		assert.True(t, got.OnShelf(a.ID))
	})

	t.Run("moves when there is room", func(t *testing.T) {
		_, err := f.svc.EditShelf(ctx, testUser, b.ID, EditShelfRequest{Capacity: ptr(11)})
		require.NoError(t, err)

		got, err := f.svc.MoveBook(ctx, testUser, book.ID, b.ID)
		require.NoError(t, err)
		assert.True(t, got.OnShelf(b.ID))

		lib := f.library(t)
		assert.Equal(t, 0, lib.Shelves[0].UsedPages)
		assert.Equal(t, 11, lib.Shelves[1].UsedPages)
	})
}

func TestCreateShelf_CapacityAboveLimit(t *testing.T) {
	f := newFixture(t, 0)

	_, err := f.svc.CreateShelf(context.Background(), testUser, CreateShelfRequest{Name: "Huge", Capacity: domain.MaxShelfCapacity + 1})

	assertCode(t, err, domainerrors.CodeValidation)
	assert.Empty(t, f.library(t).Shelves)
}

// A book stored with a page count beyond any shelf must not slip onto a
// shelf through integer wraparound.
func TestMoveBook_HugeStoredBookDoesNotFit(t *testing.T) {
	f := newFixture(t, 0)
	s := f.shelf(t, "Shelf", 10)
	f.book(t, "Small", 5, s.ID)
	f.rawBook(t, "book-huge", "Huge", math.MaxInt)
	ctx := context.Background()

	_, err := f.svc.MoveBook(ctx, testUser, "book-huge", s.ID)
	assertCode(t, err, domainerrors.CodeCapacityExceeded)

	err = f.store.View(ctx, testUser, func(tx store.Library) error {
		b, err := tx.GetBook(ctx, "book-huge")
		if err != nil {
			return err
		}
		assert.False(t, b.Shelf.IsAssigned())
		return nil
	})
	require.NoError(t, err)
}

func TestSettings(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	settings, err := f.svc.Settings(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, 2, settings.NumberOfShelves)
	assert.Equal(t, 10, settings.ShelfCapacity)

	f.clock.Advance(time.Hour)
	updated, err := f.svc.UpdateSettings(ctx, testUser, UpdateSettingsRequest{NumberOfShelves: ptr(4)})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.NumberOfShelves)
	assert.Equal(t, 10, updated.ShelfCapacity)
	assert.Equal(t, storetest.Epoch.Add(time.Hour), updated.UpdatedAt)

	// Only future initialization uses the new values.
	lib := f.library(t)
	assert.Len(t, lib.Shelves, 4)

	_, err = f.svc.UpdateSettings(ctx, testUser, UpdateSettingsRequest{NumberOfShelves: ptr(1)})
	require.NoError(t, err)
	assert.Len(t, f.library(t).Shelves, 4)

	_, err = f.svc.UpdateSettings(ctx, testUser, UpdateSettingsRequest{ShelfCapacity: ptr(0)})
	assertCode(t, err, domainerrors.CodeValidation)
	_, err = f.svc.UpdateSettings(ctx, testUser, UpdateSettingsRequest{NumberOfShelves: ptr(-1)})
	assertCode(t, err, domainerrors.CodeValidation)
	_, err = f.svc.UpdateSettings(ctx, testUser, UpdateSettingsRequest{ShelfCapacity: ptr(domain.MaxShelfCapacity + 1)})
	assertCode(t, err, domainerrors.CodeValidation)
}

func TestUsersAreIsolated(t *testing.T) {
	f := newFixture(t, 0)
	storetest.SeedUser(t, f.store, "user-bob", "bob")
	s := f.shelf(t, "Alice's", 10)
	ctx := context.Background()

	_, err := f.svc.AddBook(ctx, "user-bob", AddBookRequest{Title: "Sneaky", Pages: 1, ShelfID: s.ID})
	// Bob has no shelves, so he gets his own first shelf instead.
	require.NoError(t, err)

	bob, err := f.svc.Library(ctx, "user-bob")
	require.NoError(t, err)
	require.Len(t, bob.Shelves, 1)
	assert.NotEqual(t, s.ID, bob.Shelves[0].ID)

	_, err = f.svc.EditShelf(ctx, "user-bob", s.ID, EditShelfRequest{Capacity: ptr(1)})
	assertCode(t, err, domainerrors.CodeNotFound)
	assert.Equal(t, 0, f.library(t).UsedPages())
}

func TestConcurrentAddsRespectCapacity(t *testing.T) {
	f := newFixture(t, 0)
	s := f.shelf(t, "Tight", 10)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for range 20 {
		wg.Go(func() {
			_, err := f.svc.AddBook(context.Background(), testUser, AddBookRequest{Title: "Page", Pages: 1, ShelfID: s.ID})
			errs <- err
		})
	}
	wg.Wait()
	close(errs)

	ok, rejected := 0, 0
	for err := range errs {
		if err == nil {
			ok++
		} else {
			assert.True(t, domainerrors.Is(err, domainerrors.ErrCapacityExceeded), err.Error())
			rejected++
		}
	}
	assert.Equal(t, 10, ok)
	assert.Equal(t, 10, rejected)
	assert.Equal(t, 10, f.library(t).Shelves[0].UsedPages)
	assert.Equal(t, 0, f.svc.locks.size())
}

func TestCanceledContext(t *testing.T) {
	f := newFixture(t, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Library(ctx, testUser)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMutationsEmitEvents(t *testing.T) {
	f := newFixture(t, 0)
	m := sse.NewManager(logger.Discard().Logger, sse.WithClock(f.clock))
	f.svc.SetEventManager(m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	client, err := m.Connect(testUser)
	require.NoError(t, err)

	s := f.shelf(t, "Shelf", 10)
	f.book(t, "Book", 1, s.ID)

	for _, want := range []string{OpCreateShelf, OpAddBook} {
		select {
		case e := <-client.EventChan:
			assert.Equal(t, sse.EventLibraryUpdated, e.Type)
			assert.Equal(t, want, e.Data.(sse.LibraryChange).Operation)
		case <-time.After(2 * time.Second):
			t.Fatalf("no %s event", want)
		}
	}
}

func TestSearchBooks(t *testing.T) {
	f := newFixture(t, 0)
	s := f.shelf(t, "Shelf", 1000)
	f.book(t, "Война и мир", 100, s.ID)
	f.book(t, "Мир Полудня", 100, s.ID)
	f.book(t, "Dune", 100, s.ID)
	ctx := context.Background()

	t.Run("fallback without index", func(t *testing.T) {
		hits, err := f.svc.SearchBooks(ctx, testUser, "МИР", 0)
		require.NoError(t, err)
		assert.Len(t, hits, 2)
	})

	t.Run("with index", func(t *testing.T) {
		idx, err := search.Open(search.Options{Logger: logger.Discard().Logger})
		require.NoError(t, err)
		t.Cleanup(func() { _ = idx.Close() })
		f.svc.SetSearchIndex(idx)
		require.NoError(t, f.svc.RebuildSearchIndex(ctx))

		hits, err := f.svc.SearchBooks(ctx, testUser, "мир", 10)
		require.NoError(t, err)
		assert.Len(t, hits, 2)

		added := f.book(t, "Дюна", 100, s.ID)
		hits, err = f.svc.SearchBooks(ctx, testUser, "дюн", 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, added.ID, hits[0].ID)

		require.NoError(t, f.svc.DeleteBook(ctx, testUser, added.ID))
		hits, err = f.svc.SearchBooks(ctx, testUser, "дюн", 10)
		require.NoError(t, err)
		assert.Empty(t, hits)

		hits, err = f.svc.SearchBooks(ctx, testUser, "   ", 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestUserLocksRelease(t *testing.T) {
	l := newUserLocks()
	unlock := l.lock("a")
	assert.Equal(t, 1, l.size())
	unlock()
	assert.Equal(t, 0, l.size())
}

func ptr[T any](v T) *T { return &v }
