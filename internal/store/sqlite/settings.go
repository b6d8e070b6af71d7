package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

func (l *library) FindSettings(ctx context.Context) (*domain.ShelfSettings, error) {
	var (
		s         = domain.ShelfSettings{UserID: l.userID}
		createdAt string
		updatedAt string
	)
	err := l.tx.QueryRowContext(ctx, `
		SELECT number_of_shelves, shelf_capacity, created_at, updated_at
		FROM shelf_settings WHERE user_id = ?`, l.userID,
	).Scan(&s.NumberOfShelves, &s.ShelfCapacity, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
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

func (l *library) CreateSettings(ctx context.Context, settings *domain.ShelfSettings) error {
	settings.UserID = l.userID
	settings.CreatedAt = l.stamp(settings.CreatedAt)
	settings.UpdatedAt = l.stamp(settings.UpdatedAt)

	_, err := l.tx.ExecContext(ctx, `
		INSERT INTO shelf_settings (user_id, number_of_shelves, shelf_capacity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		l.userID, settings.NumberOfShelves, settings.ShelfCapacity,
		formatTime(settings.CreatedAt), formatTime(settings.UpdatedAt),
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

func (l *library) UpdateSettings(ctx context.Context, settings *domain.ShelfSettings) error {
	settings.UpdatedAt = l.stamp(settings.UpdatedAt)
	res, err := l.tx.ExecContext(ctx, `
		UPDATE shelf_settings SET number_of_shelves = ?, shelf_capacity = ?, updated_at = ?
		WHERE user_id = ?`,
		settings.NumberOfShelves, settings.ShelfCapacity, formatTime(settings.UpdatedAt), l.userID,
	)
	if err != nil {
		return err
	}
	return rowsAffected(res)
}
