package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	"github.com/shelfwise/shelfwise-server/internal/search"
	"github.com/shelfwise/shelfwise-server/internal/shelving"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

const opSearchBooks = "search_books"

// SearchBooks finds the user's books by title. Without a search index it
// falls back to a case-insensitive substring match over the store.
func (s *LibraryService) SearchBooks(ctx context.Context, userID, query string, limit int) ([]search.Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []search.Hit{}, nil
	}
	if limit <= 0 {
		limit = search.DefaultLimit
	}

	if s.index != nil {
		hits, err := s.index.Search(ctx, userID, query, limit)
		if err != nil {
			return nil, fmt.Errorf("search books: %w", err)
		}
		return hits, nil
	}

	hits := []search.Hit{}
	err := s.view(ctx, userID, opSearchBooks, func(tx store.Library) error {
		books, err := tx.FindBooks(ctx)
		if err != nil {
			return fmt.Errorf("find books: %w", err)
		}
		needle := strings.ToLower(query)
		for _, b := range books {
			if len(hits) == limit {
				break
			}
			if strings.Contains(strings.ToLower(b.Title), needle) {
				hits = append(hits, search.Hit{ID: b.ID, Title: b.Title})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// RebuildSearchIndex indexes every user's books. Run at startup so the index
// matches the store after restarts or a store switch.
func (s *LibraryService) RebuildSearchIndex(ctx context.Context) error {
	if s.index == nil {
		return nil
	}
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}

	total := 0
	for _, u := range users {
		var books []*domain.Book
		err := s.store.View(ctx, u.ID, func(tx store.Library) error {
			var err error
			books, err = tx.FindBooks(ctx)
			return err
		})
		if err != nil {
			return fmt.Errorf("load books of %s: %w", u.ID, err)
		}
		if err := s.index.IndexBooks(ctx, books); err != nil {
			return fmt.Errorf("index books of %s: %w", u.ID, err)
		}
		total += len(books)
	}

	s.logger.Info("search index rebuilt", "users", len(users), "books", total)
	return nil
}

// reindex refreshes every book in dist. Index failures are logged and never
// fail the operation that caused them.
func (s *LibraryService) reindex(ctx context.Context, dist *shelving.Distribution) {
	if s.index == nil || dist == nil {
		return
	}
	var books []*domain.Book
	for _, v := range dist.Shelves {
		books = append(books, v.Books...)
	}
	books = append(books, dist.Unplaced...)
	if len(books) == 0 {
		return
	}
	if err := s.index.IndexBooks(ctx, books); err != nil {
		s.logger.Warn("failed to update search index", slog.String("error", err.Error()))
	}
}

func (s *LibraryService) unindex(ctx context.Context, ids []string) {
	if s.index == nil || len(ids) == 0 {
		return
	}
	if err := s.index.DeleteBooks(ctx, ids); err != nil {
		s.logger.Warn("failed to remove books from search index", slog.String("error", err.Error()))
	}
}
