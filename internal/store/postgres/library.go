package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jonboulle/clockwork"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

// library is store.Library over one transaction, scoped to userID.
type library struct {
	tx     pgx.Tx
	userID string
	clock  clockwork.Clock
}

func (l *library) UserID() string { return l.userID }

func (l *library) stamp(t time.Time) time.Time {
	if t.IsZero() {
		return l.clock.Now()
	}
	return t
}

const bookColumns = `id, user_id, title, pages, shelf_id, created_at, updated_at`

func scanBook(row pgx.Row) (*domain.Book, error) {
	var (
		b       domain.Book
		shelfID *string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.Title, &b.Pages, &shelfID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if shelfID != nil {
		b.Shelf = domain.OnShelf(*shelfID)
	}
	b.CreatedAt, b.UpdatedAt = b.CreatedAt.UTC(), b.UpdatedAt.UTC()
	return &b, nil
}

// shelfRefArg maps a reference to NULL or the shelf ID.
func shelfRefArg(ref domain.ShelfRef) *string {
	if id, ok := ref.ID(); ok {
		return &id
	}
	return nil
}

func (l *library) checkShelf(ctx context.Context, ref domain.ShelfRef) error {
	shelfID, ok := ref.ID()
	if !ok {
		return nil
	}
	var one int
	err := l.tx.QueryRow(ctx, `SELECT 1 FROM shelves WHERE id = $1 AND user_id = $2`, shelfID, l.userID).Scan(&one)
	if err != nil {
		if store.IsNotFound(notFound(err)) {
			return store.ErrNotFound.WithMessagef("shelf %s not found", shelfID)
		}
		return err
	}
	return nil
}

func (l *library) FindBooks(ctx context.Context) ([]*domain.Book, error) {
	rows, err := l.tx.Query(ctx,
		`SELECT `+bookColumns+` FROM books WHERE user_id = $1 ORDER BY title COLLATE "C", id`, l.userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Book, error) {
		return scanBook(row)
	})
}

func (l *library) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	b, err := scanBook(l.tx.QueryRow(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = $1 AND user_id = $2`, id, l.userID))
	return b, notFound(err)
}

func (l *library) CreateBook(ctx context.Context, book *domain.Book) error {
	if err := l.checkShelf(ctx, book.Shelf); err != nil {
		return err
	}
	book.UserID = l.userID
	book.CreatedAt = l.stamp(book.CreatedAt)
	book.UpdatedAt = l.stamp(book.UpdatedAt)

	_, err := l.tx.Exec(ctx,
		`INSERT INTO books (`+bookColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		book.ID, l.userID, book.Title, book.Pages, shelfRefArg(book.Shelf), book.CreatedAt, book.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (l *library) AssignBook(ctx context.Context, bookID string, shelf domain.ShelfRef) error {
	if err := l.checkShelf(ctx, shelf); err != nil {
		return err
	}
	tag, err := l.tx.Exec(ctx,
		`UPDATE books SET shelf_id = $1, updated_at = $2 WHERE id = $3 AND user_id = $4`,
		shelfRefArg(shelf), l.clock.Now(), bookID, l.userID,
	)
	if err != nil {
		return err
	}
	return affected(tag)
}

func (l *library) DeleteBook(ctx context.Context, id string) error {
	tag, err := l.tx.Exec(ctx, `DELETE FROM books WHERE id = $1 AND user_id = $2`, id, l.userID)
	if err != nil {
		return err
	}
	return affected(tag)
}

func (l *library) DeleteBooksOnShelf(ctx context.Context, shelfID string) ([]string, error) {
	rows, err := l.tx.Query(ctx,
		`DELETE FROM books WHERE shelf_id = $1 AND user_id = $2 RETURNING id`, shelfID, l.userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (l *library) UnassignShelf(ctx context.Context, shelfID string) (int, error) {
	tag, err := l.tx.Exec(ctx,
		`UPDATE books SET shelf_id = NULL, updated_at = $1 WHERE shelf_id = $2 AND user_id = $3`,
		l.clock.Now(), shelfID, l.userID,
	)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

const shelfColumns = `id, user_id, name, capacity, idx, created_at, updated_at`

func scanShelf(row pgx.Row) (*domain.Shelf, error) {
	var s domain.Shelf
	if err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.Capacity, &s.Index, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.CreatedAt, s.UpdatedAt = s.CreatedAt.UTC(), s.UpdatedAt.UTC()
	return &s, nil
}

func (l *library) FindShelves(ctx context.Context) ([]*domain.Shelf, error) {
	rows, err := l.tx.Query(ctx,
		`SELECT `+shelfColumns+` FROM shelves WHERE user_id = $1 ORDER BY idx`, l.userID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*domain.Shelf, error) {
		return scanShelf(row)
	})
}

func (l *library) GetShelf(ctx context.Context, id string) (*domain.Shelf, error) {
	s, err := scanShelf(l.tx.QueryRow(ctx,
		`SELECT `+shelfColumns+` FROM shelves WHERE id = $1 AND user_id = $2`, id, l.userID))
	return s, notFound(err)
}

func (l *library) CreateShelf(ctx context.Context, shelf *domain.Shelf) error {
	shelf.UserID = l.userID
	shelf.CreatedAt = l.stamp(shelf.CreatedAt)
	shelf.UpdatedAt = l.stamp(shelf.UpdatedAt)

	_, err := l.tx.Exec(ctx,
		`INSERT INTO shelves (`+shelfColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		shelf.ID, l.userID, shelf.Name, shelf.Capacity, shelf.Index, shelf.CreatedAt, shelf.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithMessagef("shelf index %d already used", shelf.Index)
	}
	return err
}

func (l *library) UpdateShelf(ctx context.Context, shelf *domain.Shelf) error {
	shelf.UpdatedAt = l.stamp(shelf.UpdatedAt)
	tag, err := l.tx.Exec(ctx,
		`UPDATE shelves SET name = $1, capacity = $2, idx = $3, updated_at = $4 WHERE id = $5 AND user_id = $6`,
		shelf.Name, shelf.Capacity, shelf.Index, shelf.UpdatedAt, shelf.ID, l.userID,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithMessagef("shelf index %d already used", shelf.Index)
	}
	if err != nil {
		return err
	}
	return affected(tag)
}

func (l *library) DeleteShelf(ctx context.Context, id string) error {
	tag, err := l.tx.Exec(ctx, `DELETE FROM shelves WHERE id = $1 AND user_id = $2`, id, l.userID)
	if err != nil {
		return err
	}
	return affected(tag)
}

func (l *library) FindSettings(ctx context.Context) (*domain.ShelfSettings, error) {
	s := domain.ShelfSettings{UserID: l.userID}
	err := l.tx.QueryRow(ctx, `
		SELECT number_of_shelves, shelf_capacity, created_at, updated_at
		FROM shelf_settings WHERE user_id = $1`, l.userID,
	).Scan(&s.NumberOfShelves, &s.ShelfCapacity, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	s.CreatedAt, s.UpdatedAt = s.CreatedAt.UTC(), s.UpdatedAt.UTC()
	return &s, nil
}

func (l *library) CreateSettings(ctx context.Context, settings *domain.ShelfSettings) error {
	settings.UserID = l.userID
	settings.CreatedAt = l.stamp(settings.CreatedAt)
	settings.UpdatedAt = l.stamp(settings.UpdatedAt)

	_, err := l.tx.Exec(ctx, `
		INSERT INTO shelf_settings (user_id, number_of_shelves, shelf_capacity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		l.userID, settings.NumberOfShelves, settings.ShelfCapacity, settings.CreatedAt, settings.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (l *library) UpdateSettings(ctx context.Context, settings *domain.ShelfSettings) error {
	settings.UpdatedAt = l.stamp(settings.UpdatedAt)
	tag, err := l.tx.Exec(ctx, `
		UPDATE shelf_settings SET number_of_shelves = $1, shelf_capacity = $2, updated_at = $3
		WHERE user_id = $4`,
		settings.NumberOfShelves, settings.ShelfCapacity, settings.UpdatedAt, l.userID,
	)
	if err != nil {
		return err
	}
	return affected(tag)
}
