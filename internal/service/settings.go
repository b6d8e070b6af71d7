package service

import (
	"context"
	"fmt"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/sse"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

// maxShelfCount bounds numberOfShelves so one request cannot create an
// unbounded number of shelves.
const maxShelfCount = 1000

// UpdateSettingsRequest is the input of UpdateSettings. Nil fields are left alone.
type UpdateSettingsRequest struct {
	NumberOfShelves *int `json:"numberOfShelves,omitempty"`
	ShelfCapacity   *int `json:"shelfCapacity,omitempty"`
}

// Settings returns the user's shelf settings, creating the defaults on first use.
func (s *LibraryService) Settings(ctx context.Context, userID string) (*domain.ShelfSettings, error) {
	var settings *domain.ShelfSettings
	err := s.update(ctx, userID, OpViewSettings, func(tx store.Library) error {
		var err error
		settings, err = s.ensureSettings(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// UpdateSettings changes the values used the next time the user's shelves are
// initialized. Existing shelves are not touched.
func (s *LibraryService) UpdateSettings(ctx context.Context, userID string, req UpdateSettingsRequest) (*domain.ShelfSettings, error) {
	if n := req.NumberOfShelves; n != nil && (*n < 0 || *n > maxShelfCount) {
		return nil, domainerrors.Validationf("numberOfShelves must be between 0 and %d", maxShelfCount)
	}
	if c := req.ShelfCapacity; c != nil && (*c <= 0 || *c > domain.MaxShelfCapacity) {
		return nil, domainerrors.Validationf("shelfCapacity must be between 1 and %d", domain.MaxShelfCapacity)
	}

	var settings *domain.ShelfSettings
	err := s.update(ctx, userID, OpUpdateSettings, func(tx store.Library) error {
		var err error
		settings, err = s.ensureSettings(ctx, tx)
		if err != nil {
			return err
		}
		if req.NumberOfShelves != nil {
			settings.NumberOfShelves = *req.NumberOfShelves
		}
		if req.ShelfCapacity != nil {
			settings.ShelfCapacity = *req.ShelfCapacity
		}
		settings.UpdatedAt = s.clock.Now()
		if err := tx.UpdateSettings(ctx, settings); err != nil {
			return fmt.Errorf("update settings: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("shelf settings updated",
		"user_id", userID,
		"number_of_shelves", settings.NumberOfShelves,
		"shelf_capacity", settings.ShelfCapacity,
	)
	s.changed(ctx, userID, nil, sse.LibraryChange{Operation: OpUpdateSettings})
	return settings, nil
}

// ensureSettings returns the user's settings, creating them from the
// configured defaults when missing.
func (s *LibraryService) ensureSettings(ctx context.Context, tx store.Library) (*domain.ShelfSettings, error) {
	settings, err := tx.FindSettings(ctx)
	if err == nil {
		return settings, nil
	}
	if !store.IsNotFound(err) {
		return nil, fmt.Errorf("find settings: %w", err)
	}

	settings = domain.NewShelfSettings(tx.UserID(), s.defaults.DefaultCount, s.defaults.DefaultCapacity, s.clock.Now())
	if err := tx.CreateSettings(ctx, settings); err != nil {
		return nil, fmt.Errorf("create settings: %w", err)
	}
	s.logger.Debug("created default shelf settings", "user_id", settings.UserID)
	return settings, nil
}
