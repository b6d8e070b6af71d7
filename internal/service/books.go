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

// Messages shown to users when a book does not fit.
const (
	msgBookDoesNotFit = "the book does not fit on this shelf: shelf capacity exceeded"
	msgNoFittingShelf = "the book does not fit on any shelf: add a shelf or increase the capacity of an existing one"
)

// AddBookRequest is the input of AddBook. ShelfID is optional.
type AddBookRequest struct {
	Title   string `json:"title" validate:"notblank,max=500"`
	Pages   int    `json:"pages" validate:"gt=0,max=1000000"`
	ShelfID string `json:"shelfId"`
}

// AddBook creates a book.
//
// A user without shelves first gets one shelf of the ad-hoc capacity and the
// book goes there. Otherwise a requested shelf must exist and have room, and
// without a requested shelf at least one shelf must have room. The new book
// is then placed along with any other unassigned books.
func (s *LibraryService) AddBook(ctx context.Context, userID string, req AddBookRequest) (*domain.Book, error) {
	req.Title = strings.TrimSpace(req.Title)
	req.ShelfID = strings.TrimSpace(req.ShelfID)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	bookID, err := id.Book()
	if err != nil {
		return nil, fmt.Errorf("generate book ID: %w", err)
	}

	var (
		book *domain.Book
		dist *shelving.Distribution
	)
	err = s.update(ctx, userID, OpAddBook, func(tx store.Library) error {
		shelves, err := tx.FindShelves(ctx)
		if err != nil {
			return fmt.Errorf("find shelves: %w", err)
		}
		books, err := tx.FindBooks(ctx)
		if err != nil {
			return fmt.Errorf("find books: %w", err)
		}

		target := req.ShelfID
		if len(shelves) == 0 {
			shelf, err := s.createAdHocShelf(ctx, tx)
			if err != nil {
				return err
			}
			shelves = []*domain.Shelf{shelf}
			target = shelf.ID
		}

		if target != "" {
			shelf := findShelf(shelves, target)
			if shelf == nil {
				return domainerrors.NotFound("shelf not found")
			}
			if !shelving.Fits(shelving.UsedPages(books, shelf.ID, ""), shelf.Capacity, req.Pages) {
				metrics.CapacityRejectionsTotal.WithLabelValues(OpAddBook).Inc()
				return domainerrors.CapacityExceeded(msgBookDoesNotFit)
			}
		} else if _, ok := shelving.FirstFit(shelves, shelving.Usage(books), req.Pages); !ok {
			metrics.CapacityRejectionsTotal.WithLabelValues(OpAddBook).Inc()
			return domainerrors.NoFittingShelf(msgNoFittingShelf)
		}

		now := s.clock.Now()
		book = &domain.Book{
			ID:        bookID,
			UserID:    userID,
			Title:     req.Title,
			Pages:     req.Pages,
			Shelf:     domain.OnShelf(target),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.CreateBook(ctx, book); err != nil {
			return fmt.Errorf("create book: %w", err)
		}

		dist, err = s.distribute(ctx, tx)
		if err != nil {
			return err
		}
		book = findBook(dist, book.ID, book)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("book added",
		"user_id", userID,
		"book_id", book.ID,
		"shelf_id", book.Shelf.String(),
		"pages", book.Pages,
	)
	s.changed(ctx, userID, dist, sse.LibraryChange{Operation: OpAddBook, BookID: book.ID, ShelfID: shelfIDOf(book)})
	return book, nil
}

// DeleteBook removes a book. Deleting a book that does not exist succeeds.
func (s *LibraryService) DeleteBook(ctx context.Context, userID, bookID string) error {
	var (
		deleted bool
		dist    *shelving.Distribution
	)
	err := s.update(ctx, userID, OpDeleteBook, func(tx store.Library) error {
		err := tx.DeleteBook(ctx, bookID)
		switch {
		case err == nil:
			deleted = true
		case store.IsNotFound(err):
		default:
			return fmt.Errorf("delete book: %w", err)
		}

		dist, err = s.distribute(ctx, tx)
		return err
	})
	if err != nil {
		return err
	}
	if !deleted {
		s.logger.Debug("book already gone", "user_id", userID, "book_id", bookID)
		return nil
	}

	s.logger.Info("book deleted", "user_id", userID, "book_id", bookID)
	s.unindex(ctx, []string{bookID})
	s.changed(ctx, userID, dist, sse.LibraryChange{Operation: OpDeleteBook, BookID: bookID})
	return nil
}

// MoveBook puts a book on another shelf when the shelf has room for it. The
// book's own pages do not count against the target's usage.
func (s *LibraryService) MoveBook(ctx context.Context, userID, bookID, shelfID string) (*domain.Book, error) {
	shelfID = strings.TrimSpace(shelfID)

	var (
		book *domain.Book
		dist *shelving.Distribution
	)
	err := s.update(ctx, userID, OpMoveBook, func(tx store.Library) error {
		var err error
		book, err = tx.GetBook(ctx, bookID)
		if err != nil {
			if store.IsNotFound(err) {
				return domainerrors.NotFound("book not found")
			}
			return fmt.Errorf("get book: %w", err)
		}
		if shelfID == "" {
			return domainerrors.Validation("shelfId is required")
		}
		shelf, err := tx.GetShelf(ctx, shelfID)
		if err != nil {
			if store.IsNotFound(err) {
				return domainerrors.NotFound("shelf not found")
			}
			return fmt.Errorf("get shelf: %w", err)
		}

		books, err := tx.FindBooks(ctx)
		if err != nil {
			return fmt.Errorf("find books: %w", err)
		}
		if !shelving.Fits(shelving.UsedPages(books, shelf.ID, book.ID), shelf.Capacity, book.Pages) {
			metrics.CapacityRejectionsTotal.WithLabelValues(OpMoveBook).Inc()
			return domainerrors.CapacityExceeded(msgBookDoesNotFit)
		}

		ref := domain.OnShelf(shelf.ID)
		if err := tx.AssignBook(ctx, book.ID, ref); err != nil {
			return fmt.Errorf("assign book: %w", err)
		}
		book.Shelf = ref
		book.UpdatedAt = s.clock.Now()

		dist, err = s.distribute(ctx, tx)
		if err != nil {
			return err
		}
		book = findBook(dist, book.ID, book)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("book moved", "user_id", userID, "book_id", book.ID, "shelf_id", shelfID)
	s.changed(ctx, userID, dist, sse.LibraryChange{Operation: OpMoveBook, BookID: book.ID, ShelfID: shelfID})
	return book, nil
}

func (s *LibraryService) createAdHocShelf(ctx context.Context, tx store.Library) (*domain.Shelf, error) {
	shelfID, err := id.Shelf()
	if err != nil {
		return nil, fmt.Errorf("generate shelf ID: %w", err)
	}
	now := s.clock.Now()
	shelf := &domain.Shelf{
		ID:        shelfID,
		UserID:    tx.UserID(),
		Name:      domain.DefaultShelfName(1),
		Capacity:  s.defaults.AdHocCapacity,
		Index:     0,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := tx.CreateShelf(ctx, shelf); err != nil {
		return nil, fmt.Errorf("create shelf: %w", err)
	}
	s.logger.Debug("created first shelf", "user_id", shelf.UserID, "shelf_id", shelf.ID)
	return shelf, nil
}

func findShelf(shelves []*domain.Shelf, shelfID string) *domain.Shelf {
	for _, sh := range shelves {
		if sh.ID == shelfID {
			return sh
		}
	}
	return nil
}

// findBook returns the distributed copy of bookID, or fallback when the
// distribution does not hold it.
func findBook(dist *shelving.Distribution, bookID string, fallback *domain.Book) *domain.Book {
	for _, v := range dist.Shelves {
		for _, b := range v.Books {
			if b.ID == bookID {
				return b
			}
		}
	}
	for _, b := range dist.Unplaced {
		if b.ID == bookID {
			return b
		}
	}
	return fallback
}

func shelfIDOf(b *domain.Book) string {
	shelfID, _ := b.Shelf.ID()
	return shelfID
}
