package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

// bookColumns must match the scan order in scanBook.
const bookColumns = `id, user_id, title, pages, shelf_id, created_at, updated_at`

func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var (
		b         domain.Book
		shelfID   sql.NullString
		createdAt string
		updatedAt string
	)
	err := scanner.Scan(&b.ID, &b.UserID, &b.Title, &b.Pages, &shelfID, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if shelfID.Valid {
		b.Shelf = domain.OnShelf(shelfID.String)
	}
	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func shelfRefArg(ref domain.ShelfRef) sql.NullString {
	id, _ := ref.ID()
	return nullString(id)
}

// checkShelf returns store.ErrNotFound unless ref is unassigned or points at
// one of this user's shelves.
func (l *library) checkShelf(ctx context.Context, ref domain.ShelfRef) error {
	shelfID, ok := ref.ID()
	if !ok {
		return nil
	}
	var one int
	err := l.tx.QueryRowContext(ctx,
		`SELECT 1 FROM shelves WHERE id = ? AND user_id = ?`, shelfID, l.userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound.WithMessagef("shelf %s not found", shelfID)
	}
	return err
}

func (l *library) FindBooks(ctx context.Context) ([]*domain.Book, error) {
	rows, err := l.tx.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE user_id = ? ORDER BY title, id`, l.userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*domain.Book
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

func (l *library) GetBook(ctx context.Context, id string) (*domain.Book, error) {
	row := l.tx.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE id = ? AND user_id = ?`, id, l.userID)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return b, err
}

func (l *library) CreateBook(ctx context.Context, book *domain.Book) error {
	if err := l.checkShelf(ctx, book.Shelf); err != nil {
		return err
	}
	book.UserID = l.userID
	book.CreatedAt = l.stamp(book.CreatedAt)
	book.UpdatedAt = l.stamp(book.UpdatedAt)

	_, err := l.tx.ExecContext(ctx,
		`INSERT INTO books (`+bookColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		book.ID, l.userID, book.Title, book.Pages, shelfRefArg(book.Shelf),
		formatTime(book.CreatedAt), formatTime(book.UpdatedAt),
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
	res, err := l.tx.ExecContext(ctx,
		`UPDATE books SET shelf_id = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		shelfRefArg(shelf), formatTime(l.clock.Now()), bookID, l.userID,
	)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

func (l *library) DeleteBook(ctx context.Context, id string) error {
	res, err := l.tx.ExecContext(ctx, `DELETE FROM books WHERE id = ? AND user_id = ?`, id, l.userID)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

func (l *library) DeleteBooksOnShelf(ctx context.Context, shelfID string) ([]string, error) {
	rows, err := l.tx.QueryContext(ctx,
		`DELETE FROM books WHERE shelf_id = ? AND user_id = ? RETURNING id`, shelfID, l.userID)
	if err != nil {
		return nil, fmt.Errorf("delete books on shelf: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (l *library) UnassignShelf(ctx context.Context, shelfID string) (int, error) {
	res, err := l.tx.ExecContext(ctx,
		`UPDATE books SET shelf_id = NULL, updated_at = ? WHERE shelf_id = ? AND user_id = ?`,
		formatTime(l.clock.Now()), shelfID, l.userID,
	)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
