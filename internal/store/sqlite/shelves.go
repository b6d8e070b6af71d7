package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

// shelfColumns must match the scan order in scanShelf.
const shelfColumns = `id, user_id, name, capacity, idx, created_at, updated_at`

func scanShelf(scanner interface{ Scan(dest ...any) error }) (*domain.Shelf, error) {
	var (
		s         domain.Shelf
		createdAt string
		updatedAt string
	)
	err := scanner.Scan(&s.ID, &s.UserID, &s.Name, &s.Capacity, &s.Index, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if s.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

func (l *library) FindShelves(ctx context.Context) ([]*domain.Shelf, error) {
	rows, err := l.tx.QueryContext(ctx,
		`SELECT `+shelfColumns+` FROM shelves WHERE user_id = ? ORDER BY idx`, l.userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var shelves []*domain.Shelf
	for rows.Next() {
		s, err := scanShelf(rows)
		if err != nil {
			return nil, err
		}
		shelves = append(shelves, s)
	}
	return shelves, rows.Err()
}

func (l *library) GetShelf(ctx context.Context, id string) (*domain.Shelf, error) {
	row := l.tx.QueryRowContext(ctx,
		`SELECT `+shelfColumns+` FROM shelves WHERE id = ? AND user_id = ?`, id, l.userID)
	s, err := scanShelf(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return s, err
}

// CreateShelf returns store.ErrAlreadyExists when the user already has a
// shelf at the same index.
func (l *library) CreateShelf(ctx context.Context, shelf *domain.Shelf) error {
	shelf.UserID = l.userID
	shelf.CreatedAt = l.stamp(shelf.CreatedAt)
	shelf.UpdatedAt = l.stamp(shelf.UpdatedAt)

	_, err := l.tx.ExecContext(ctx,
		`INSERT INTO shelves (`+shelfColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		shelf.ID, l.userID, shelf.Name, shelf.Capacity, shelf.Index,
		formatTime(shelf.CreatedAt), formatTime(shelf.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithMessagef("shelf index %d already used", shelf.Index)
	}
	return err
}

func (l *library) UpdateShelf(ctx context.Context, shelf *domain.Shelf) error {
	shelf.UpdatedAt = l.stamp(shelf.UpdatedAt)
	res, err := l.tx.ExecContext(ctx,
		`UPDATE shelves SET name = ?, capacity = ?, idx = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		shelf.Name, shelf.Capacity, shelf.Index, formatTime(shelf.UpdatedAt), shelf.ID, l.userID,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists.WithMessagef("shelf index %d already used", shelf.Index)
	}
	if err != nil {
		return err
	}
	return rowsAffected(res)
}

// DeleteShelf removes the shelf; the foreign key clears the reference of
// any book still on it.
func (l *library) DeleteShelf(ctx context.Context, id string) error {
	res, err := l.tx.ExecContext(ctx, `DELETE FROM shelves WHERE id = ? AND user_id = ?`, id, l.userID)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}
