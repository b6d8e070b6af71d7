package shelving

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/jonboulle/clockwork"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	"github.com/shelfwise/shelfwise-server/internal/id"
)

// ShelfSet is the part of a user's record store the initializer mutates.
type ShelfSet interface {
	FindShelves(ctx context.Context) ([]*domain.Shelf, error)
	CreateShelf(ctx context.Context, shelf *domain.Shelf) error
	UpdateShelf(ctx context.Context, shelf *domain.Shelf) error
	DeleteShelf(ctx context.Context, shelfID string) error
	// UnassignShelf clears the shelf reference of every book on shelfID and
	// returns how many books changed.
	UnassignShelf(ctx context.Context, shelfID string) (int, error)
}

// InitReport summarizes what Reconcile changed.
type InitReport struct {
	Created    []*domain.Shelf
	Removed    []string
	Resized    int
	Unassigned int
}

// Changed reports whether Reconcile touched the store.
func (r InitReport) Changed() bool {
	return len(r.Created) > 0 || len(r.Removed) > 0 || r.Resized > 0
}

// Initializer brings a user's shelf set to a desired count and capacity.
type Initializer struct {
	clock  clockwork.Clock
	newID  func() (string, error)
	logger *slog.Logger
}

// NewInitializer creates an Initializer.
func NewInitializer(clock clockwork.Clock, logger *slog.Logger) *Initializer {
	return &Initializer{clock: clock, newID: id.Shelf, logger: logger}
}

// Reconcile makes userID own exactly count shelves of the given capacity.
//
// Excess shelves are removed from the tail (highest index first) after their
// books are unassigned. Missing shelves are appended as "Shelf {n}" with
// indices continuing after the current maximum. Every surviving shelf is set
// to capacity.
func (in *Initializer) Reconcile(ctx context.Context, set ShelfSet, userID string, count, capacity int) (InitReport, error) {
	var report InitReport

	if count < 0 {
		return report, fmt.Errorf("reconcile shelves: negative shelf count %d", count)
	}
	if capacity <= 0 {
		return report, fmt.Errorf("reconcile shelves: capacity must be positive, got %d", capacity)
	}

	shelves, err := set.FindShelves(ctx)
	if err != nil {
		return report, fmt.Errorf("find shelves: %w", err)
	}
	shelves = slices.Clone(shelves)
	SortShelves(shelves)

	for len(shelves) > count {
		last := shelves[len(shelves)-1]
		n, err := set.UnassignShelf(ctx, last.ID)
		if err != nil {
			return report, fmt.Errorf("unassign books from shelf %s: %w", last.ID, err)
		}
		if err := set.DeleteShelf(ctx, last.ID); err != nil {
			return report, fmt.Errorf("delete shelf %s: %w", last.ID, err)
		}
		report.Unassigned += n
		report.Removed = append(report.Removed, last.ID)
		shelves = shelves[:len(shelves)-1]
	}

	now := in.clock.Now()

	for _, s := range shelves {
		if s.Capacity == capacity {
			continue
		}
		s.Capacity = capacity
		s.UpdatedAt = now
		if err := set.UpdateShelf(ctx, s); err != nil {
			return report, fmt.Errorf("resize shelf %s: %w", s.ID, err)
		}
		report.Resized++
	}

	existing := len(shelves)
	next := domain.MaxIndex(shelves) + 1
	for k := 0; existing+k < count; k++ {
		shelfID, err := in.newID()
		if err != nil {
			return report, fmt.Errorf("create shelf: %w", err)
		}
		shelf := &domain.Shelf{
			ID:        shelfID,
			UserID:    userID,
			Name:      domain.DefaultShelfName(existing + k + 1),
			Capacity:  capacity,
			Index:     next + k,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := set.CreateShelf(ctx, shelf); err != nil {
			return report, fmt.Errorf("create shelf: %w", err)
		}
		report.Created = append(report.Created, shelf)
	}

	if report.Changed() {
		in.logger.Info("shelves initialized",
			"user_id", userID,
			"created", len(report.Created),
			"removed", len(report.Removed),
			"resized", report.Resized,
			"unassigned_books", report.Unassigned,
		)
	}
	return report, nil
}
