package kv

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/jonboulle/clockwork"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

// library is store.Library over one Badger transaction, scoped to userID
// through the key prefixes of its tables.
type library struct {
	txn    *badger.Txn
	userID string
	clock  clockwork.Clock

	books    *table[domain.Book]
	shelves  *table[domain.Shelf]
	settings *table[domain.ShelfSettings]
}

func (l *library) UserID() string { return l.userID }

func (l *library) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return l.clock.Now()
	}
	return t
}

func (l *library) checkShelf(ref domain.ShelfRef) error {
	shelfID, ok := ref.ID()
	if !ok {
		return nil
	}
	if _, err := l.shelves.get(l.txn, shelfID); err != nil {
		if store.IsNotFound(err) {
			return store.ErrNotFound.WithMessagef("shelf %s not found", shelfID)
		}
		return err
	}
	return nil
}

func (l *library) FindBooks(ctx context.Context) ([]*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	books, err := l.books.collect(l.txn)
	if err != nil {
		return nil, err
	}
	for _, b := range books {
		b.UserID = l.userID
	}
	slices.SortFunc(books, func(a, b *domain.Book) int {
		return cmp.Or(cmp.Compare(a.Title, b.Title), cmp.Compare(a.ID, b.ID))
	})
	return books, nil
}

func (l *library) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := l.books.get(l.txn, id)
	if err != nil {
		return nil, err
	}
	b.UserID = l.userID
	return b, nil
}

func (l *library) CreateBook(ctx context.Context, book *domain.Book) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.checkShelf(book.Shelf); err != nil {
		return err
	}
	book.UserID = l.userID
	book.CreatedAt = l.stamp(book.CreatedAt)
	book.UpdatedAt = l.stamp(book.UpdatedAt)
	return l.books.create(l.txn, book.ID, book)
}

func (l *library) AssignBook(ctx context.Context, bookID string, shelf domain.ShelfRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.checkShelf(shelf); err != nil {
		return err
	}
	b, err := l.books.get(l.txn, bookID)
	if err != nil {
		return err
	}
	b.Shelf = shelf
	b.UpdatedAt = l.clock.Now()
	return l.books.update(l.txn, bookID, b)
}

func (l *library) DeleteBook(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.books.delete(l.txn, id)
}

// booksOn returns the books referencing shelfID.
func (l *library) booksOn(shelfID string) ([]*domain.Book, error) {
	all, err := l.books.collect(l.txn)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(b *domain.Book) bool { return !b.OnShelf(shelfID) }), nil
}

func (l *library) DeleteBooksOnShelf(ctx context.Context, shelfID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	books, err := l.booksOn(shelfID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(books))
	for _, b := range books {
		if err := l.books.delete(l.txn, b.ID); err != nil {
			return nil, err
		}
		ids = append(ids, b.ID)
	}
	return ids, nil
}

func (l *library) UnassignShelf(ctx context.Context, shelfID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	books, err := l.booksOn(shelfID)
	if err != nil {
		return 0, err
	}
	now := l.clock.Now()
	for _, b := range books {
		b.Shelf = domain.Unassigned()
		b.UpdatedAt = now
		if err := l.books.update(l.txn, b.ID, b); err != nil {
			return 0, err
		}
	}
	return len(books), nil
}

func (l *library) FindShelves(ctx context.Context) ([]*domain.Shelf, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	shelves, err := l.shelves.collect(l.txn)
	if err != nil {
		return nil, err
	}
	for _, s := range shelves {
		s.UserID = l.userID
	}
	slices.SortFunc(shelves, func(a, b *domain.Shelf) int { return cmp.Compare(a.Index, b.Index) })
	return shelves, nil
}

func (l *library) GetShelf(ctx context.Context, id string) (*domain.Shelf, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := l.shelves.get(l.txn, id)
	if err != nil {
		return nil, err
	}
	s.UserID = l.userID
	return s, nil
}

func (l *library) CreateShelf(ctx context.Context, shelf *domain.Shelf) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	shelf.UserID = l.userID
	shelf.CreatedAt = l.stamp(shelf.CreatedAt)
	shelf.UpdatedAt = l.stamp(shelf.UpdatedAt)
	return l.shelves.create(l.txn, shelf.ID, shelf)
}

func (l *library) UpdateShelf(ctx context.Context, shelf *domain.Shelf) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	shelf.UpdatedAt = l.stamp(shelf.UpdatedAt)
	old, err := l.shelves.get(l.txn, shelf.ID)
	if err != nil {
		return err
	}
	next := *shelf
	next.CreatedAt = old.CreatedAt
	return l.shelves.update(l.txn, shelf.ID, &next)
}

// DeleteShelf clears the reference of every book on the shelf, then removes it.
func (l *library) DeleteShelf(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := l.shelves.get(l.txn, id); err != nil {
		return err
	}
	if _, err := l.UnassignShelf(ctx, id); err != nil {
		return err
	}
	return l.shelves.delete(l.txn, id)
}

func (l *library) FindSettings(ctx context.Context) (*domain.ShelfSettings, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s, err := l.settings.get(l.txn, l.userID)
	if err != nil {
		return nil, err
	}
	s.UserID = l.userID
	return s, nil
}

func (l *library) CreateSettings(ctx context.Context, settings *domain.ShelfSettings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	settings.UserID = l.userID
	settings.CreatedAt = l.stamp(settings.CreatedAt)
	settings.UpdatedAt = l.stamp(settings.UpdatedAt)
	return l.settings.create(l.txn, l.userID, settings)
}

func (l *library) UpdateSettings(ctx context.Context, settings *domain.ShelfSettings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	settings.UpdatedAt = l.stamp(settings.UpdatedAt)
	return l.settings.update(l.txn, l.userID, settings)
}
