package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/shelfwise/shelfwise-server/internal/config"
	"github.com/shelfwise/shelfwise-server/internal/domain"
	"github.com/shelfwise/shelfwise-server/internal/metrics"
	"github.com/shelfwise/shelfwise-server/internal/search"
	"github.com/shelfwise/shelfwise-server/internal/shelving"
	"github.com/shelfwise/shelfwise-server/internal/sse"
	"github.com/shelfwise/shelfwise-server/internal/store"
	"github.com/shelfwise/shelfwise-server/internal/validation"
)

// Library operation names, used for metrics and events.
const (
	OpViewLibrary    = "view_library"
	OpAddBook        = "add_book"
	OpDeleteBook     = "delete_book"
	OpMoveBook       = "move_book"
	OpCreateShelf    = "create_shelf"
	OpEditShelf      = "edit_shelf"
	OpDeleteShelf    = "delete_shelf"
	OpViewSettings   = "view_settings"
	OpUpdateSettings = "update_settings"
)

// LibraryService runs every operation on a user's books, shelves and shelf
// settings. Each call holds the user's lock and runs in one store unit of
// work, so concurrent requests cannot push a shelf past its capacity.
type LibraryService struct {
	store       store.Store
	defaults    config.ShelvesConfig
	initializer *shelving.Initializer
	distributor *shelving.Distributor
	validator   *validation.Validator
	locks       *userLocks
	clock       clockwork.Clock
	logger      *slog.Logger

	sseManager *sse.Manager
	index      *search.Index
}

// NewLibraryService creates a library service. A nil clock means the real one.
func NewLibraryService(st store.Store, defaults config.ShelvesConfig, clock clockwork.Clock, logger *slog.Logger) *LibraryService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LibraryService{
		store:       st,
		defaults:    defaults,
		initializer: shelving.NewInitializer(clock, logger),
		distributor: shelving.NewDistributor(logger),
		validator:   validation.New(),
		locks:       newUserLocks(),
		clock:       clock,
		logger:      logger,
	}
}

// SetEventManager enables library.updated events.
func (s *LibraryService) SetEventManager(m *sse.Manager) {
	s.sseManager = m
}

// SetSearchIndex enables title search and keeps the index in step with
// every change.
func (s *LibraryService) SetSearchIndex(idx *search.Index) {
	s.index = idx
}

// Library returns the user's shelves with their books and the user's shelf
// settings. A user without shelves first gets the configured number of
// shelves, and unassigned books are placed before returning.
func (s *LibraryService) Library(ctx context.Context, userID string) (*domain.Library, error) {
	var (
		lib  *domain.Library
		dist *shelving.Distribution
	)
	err := s.update(ctx, userID, OpViewLibrary, func(tx store.Library) error {
		settings, err := s.ensureSettings(ctx, tx)
		if err != nil {
			return err
		}

		shelves, err := tx.FindShelves(ctx)
		if err != nil {
			return fmt.Errorf("find shelves: %w", err)
		}
		if len(shelves) == 0 {
			report, err := s.initializer.Reconcile(ctx, tx, userID, settings.NumberOfShelves, settings.ShelfCapacity)
			if err != nil {
				return fmt.Errorf("initialize shelves: %w", err)
			}
			metrics.ShelvesInitializedTotal.Add(float64(len(report.Created)))
		}

		dist, err = s.distribute(ctx, tx)
		if err != nil {
			return err
		}
		lib = &domain.Library{Shelves: dist.Shelves, Settings: settings}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordPlacements(dist)
	if len(dist.Placements) > 0 {
		s.reindex(ctx, dist)
	}
	return lib, nil
}

// update runs fn for userID under the user's lock in one read-write unit of
// work and records the operation's outcome.
func (s *LibraryService) update(ctx context.Context, userID, op string, fn func(store.Library) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	defer func() { metrics.ObserveOperation(op, start, err) }()

	unlock := s.locks.lock(userID)
	defer unlock()

	return s.store.Update(ctx, userID, fn)
}

func (s *LibraryService) view(ctx context.Context, userID, op string, fn func(store.Library) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	defer func() { metrics.ObserveOperation(op, start, err) }()

	return s.store.View(ctx, userID, fn)
}

// distribute places the user's unassigned books and returns the result.
func (s *LibraryService) distribute(ctx context.Context, tx store.Library) (*shelving.Distribution, error) {
	shelves, err := tx.FindShelves(ctx)
	if err != nil {
		return nil, fmt.Errorf("find shelves: %w", err)
	}
	books, err := tx.FindBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("find books: %w", err)
	}
	dist, err := s.distributor.Distribute(ctx, shelves, books, tx)
	if err != nil {
		return nil, fmt.Errorf("distribute books: %w", err)
	}
	return dist, nil
}

func (s *LibraryService) recordPlacements(dist *shelving.Distribution) {
	if dist == nil {
		return
	}
	for _, p := range dist.Placements {
		strategy := metrics.StrategyFirstFit
		if p.Overflow {
			strategy = metrics.StrategyOverflow
		}
		metrics.BooksPlacedTotal.WithLabelValues(strategy).Inc()
	}
}

// changed runs the bookkeeping shared by every committed mutation.
func (s *LibraryService) changed(ctx context.Context, userID string, dist *shelving.Distribution, change sse.LibraryChange) {
	s.recordPlacements(dist)
	s.reindex(ctx, dist)
	if s.sseManager != nil {
		s.sseManager.LibraryChanged(userID, change)
	}
}
