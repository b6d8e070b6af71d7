package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/id"
	"github.com/shelfwise/shelfwise-server/internal/metrics"
	"github.com/shelfwise/shelfwise-server/internal/shelving"
	"github.com/shelfwise/shelfwise-server/internal/sse"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

// CreateShelfRequest is the input of CreateShelf.
type CreateShelfRequest struct {
	Name     string `json:"name" validate:"notblank,max=200"`
	Capacity int    `json:"capacity" validate:"gt=0,max=1000000"`
}

// EditShelfRequest is the input of EditShelf. Nil fields are left alone.
type EditShelfRequest struct {
	Name     *string `json:"name,omitempty"`
	Capacity *int    `json:"capacity,omitempty"`
}

// CreateShelf appends a shelf after the user's last one.
func (s *LibraryService) CreateShelf(ctx context.Context, userID string, req CreateShelfRequest) (*domain.Shelf, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	shelfID, err := id.Shelf()
	if err != nil {
		return nil, fmt.Errorf("generate shelf ID: %w", err)
	}

	var (
		shelf *domain.Shelf
		dist  *shelving.Distribution
	)
	err = s.update(ctx, userID, OpCreateShelf, func(tx store.Library) error {
		shelves, err := tx.FindShelves(ctx)
		if err != nil {
			return fmt.Errorf("find shelves: %w", err)
		}

		now := s.clock.Now()
		shelf = &domain.Shelf{
			ID:        shelfID,
			UserID:    userID,
			Name:      req.Name,
			Capacity:  req.Capacity,
			Index:     domain.MaxIndex(shelves) + 1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.CreateShelf(ctx, shelf); err != nil {
			return fmt.Errorf("create shelf: %w", err)
		}

		dist, err = s.distribute(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("shelf created",
		"user_id", userID,
		"shelf_id", shelf.ID,
		"index", shelf.Index,
		"capacity", shelf.Capacity,
	)
	s.changed(ctx, userID, dist, sse.LibraryChange{Operation: OpCreateShelf, ShelfID: shelf.ID})
	return shelf, nil
}

// EditShelf renames and resizes a shelf. A supplied name is stored as given,
// so an empty name falls back to the display name "Shelf {n}". A supplied
// capacity must be positive and at least the pages already on the shelf.
func (s *LibraryService) EditShelf(ctx context.Context, userID, shelfID string, req EditShelfRequest) (*domain.Shelf, error) {
	if c := req.Capacity; c != nil && (*c <= 0 || *c > domain.MaxShelfCapacity) {
		return nil, domainerrors.Validationf("capacity must be between 1 and %d", domain.MaxShelfCapacity)
	}

	var (
		shelf *domain.Shelf
		dist  *shelving.Distribution
	)
	err := s.update(ctx, userID, OpEditShelf, func(tx store.Library) error {
		var err error
		shelf, err = tx.GetShelf(ctx, shelfID)
		if err != nil {
			if store.IsNotFound(err) {
				return domainerrors.NotFound("shelf not found")
			}
			return fmt.Errorf("get shelf: %w", err)
		}

		if req.Capacity != nil {
			books, err := tx.FindBooks(ctx)
			if err != nil {
				return fmt.Errorf("find books: %w", err)
			}
			used := shelving.UsedPages(books, shelf.ID, "")
			if !shelving.CanResize(used, *req.Capacity) {
				metrics.CapacityRejectionsTotal.WithLabelValues(OpEditShelf).Inc()
				return domainerrors.CapacityExceededf(
					"the new capacity %d is less than the %d pages already on the shelf", *req.Capacity, used)
			}
			shelf.Capacity = *req.Capacity
		}
		if req.Name != nil {
			shelf.Name = strings.TrimSpace(*req.Name)
		}
		shelf.UpdatedAt = s.clock.Now()

		if err := tx.UpdateShelf(ctx, shelf); err != nil {
			return fmt.Errorf("update shelf: %w", err)
		}

		dist, err = s.distribute(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("shelf updated", "user_id", userID, "shelf_id", shelf.ID, "capacity", shelf.Capacity)
	s.changed(ctx, userID, dist, sse.LibraryChange{Operation: OpEditShelf, ShelfID: shelf.ID})
	return shelf, nil
}

// DeleteShelf deletes a shelf together with every book on it.
func (s *LibraryService) DeleteShelf(ctx context.Context, userID, shelfID string) error {
	var (
		removed []string
		dist    *shelving.Distribution
	)
	err := s.update(ctx, userID, OpDeleteShelf, func(tx store.Library) error {
		if _, err := tx.GetShelf(ctx, shelfID); err != nil {
			if store.IsNotFound(err) {
				return domainerrors.NotFound("shelf not found")
			}
			return fmt.Errorf("get shelf: %w", err)
		}

		var err error
		removed, err = tx.DeleteBooksOnShelf(ctx, shelfID)
		if err != nil {
			return fmt.Errorf("delete books on shelf: %w", err)
		}
		if err := tx.DeleteShelf(ctx, shelfID); err != nil {
			return fmt.Errorf("delete shelf: %w", err)
		}

		dist, err = s.distribute(ctx, tx)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("shelf deleted", "user_id", userID, "shelf_id", shelfID, "books_deleted", len(removed))
	s.unindex(ctx, removed)
	s.changed(ctx, userID, dist, sse.LibraryChange{Operation: OpDeleteShelf, ShelfID: shelfID})
	return nil
}
