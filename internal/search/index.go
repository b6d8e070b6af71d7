package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/shelfwise/shelfwise-server/internal/domain"
)

// mappingVersion is bumped whenever buildIndexMapping changes; an on-disk
// index with another version is rebuilt at startup.
const mappingVersion = "1"

// Index wraps a Bleve index of book titles.
//
// All methods are safe for concurrent use. The mutex guards the index
// handle across Rebuild.
type Index struct {
	index  bleve.Index
	path   string // empty for in-memory indexes
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the index.
type Options struct {
	// DataPath is the directory holding search.bleve. Empty keeps the index
	// in memory.
	DataPath string
	Logger   *slog.Logger
}

// Open opens the on-disk index under opts.DataPath, creating or rebuilding
// it when missing, unreadable or built with an older mapping.
func Open(opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if opts.DataPath == "" {
		m, err := buildIndexMapping()
		if err != nil {
			return nil, fmt.Errorf("build mapping: %w", err)
		}
		idx, err := bleve.NewMemOnly(m)
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		return &Index{index: idx, logger: logger}, nil
	}

	indexPath := filepath.Join(opts.DataPath, "search.bleve")
	versionPath := filepath.Join(opts.DataPath, "search.version")

	var idx bleve.Index
	if _, err := os.Stat(indexPath); err == nil {
		version, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil || string(version) != mappingVersion:
			logger.Info("search index mapping changed, rebuilding", "new_version", mappingVersion)
		default:
			idx, err = bleve.Open(indexPath)
			if err != nil {
				logger.Warn("failed to open search index, recreating", "path", indexPath, "error", err)
				idx = nil
			}
		}
		if idx == nil {
			if err := os.RemoveAll(indexPath); err != nil {
				return nil, fmt.Errorf("remove old index: %w", err)
			}
		}
	}

	if idx == nil {
		created, err := createIndex(indexPath)
		if err != nil {
			return nil, err
		}
		idx = created
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			logger.Warn("failed to write search version file", "error", err)
		}
		logger.Info("created search index", "path", indexPath)
	}

	return &Index{index: idx, path: indexPath, logger: logger}, nil
}

func createIndex(path string) (bleve.Index, error) {
	m, err := buildIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("build mapping: %w", err)
	}
	idx, err := bleve.New(path, m)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return idx, nil
}

// Close closes the index.
func (x *Index) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.index.Close()
}

// IndexBook adds or replaces one book.
func (x *Index) IndexBook(_ context.Context, b *domain.Book) error {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.index.Index(b.ID, NewDocument(b).ToMap())
}

// IndexBooks adds or replaces books in batches.
func (x *Index) IndexBooks(ctx context.Context, books []*domain.Book) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	const batchSize = 500
	for i := 0; i < len(books); i += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+batchSize, len(books))

		batch := x.index.NewBatch()
		for _, b := range books[i:end] {
			if err := batch.Index(b.ID, NewDocument(b).ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", b.ID, err)
			}
		}
		if err := x.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// DeleteBooks removes books by ID. Unknown IDs are ignored.
func (x *Index) DeleteBooks(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	x.mu.RLock()
	defer x.mu.RUnlock()

	batch := x.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	return x.index.Batch(batch)
}

// DocumentCount returns the number of indexed books.
func (x *Index) DocumentCount() (uint64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.index.DocCount()
}

// Rebuild drops every document. Callers reindex afterwards.
func (x *Index) Rebuild() error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if err := x.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	if x.path == "" {
		m, err := buildIndexMapping()
		if err != nil {
			return fmt.Errorf("build mapping: %w", err)
		}
		idx, err := bleve.NewMemOnly(m)
		if err != nil {
			return fmt.Errorf("create index: %w", err)
		}
		x.index = idx
		return nil
	}

	if err := os.RemoveAll(x.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}
	idx, err := createIndex(x.path)
	if err != nil {
		return err
	}
	x.index = idx
	x.logger.Info("rebuilt search index", "path", x.path)
	return nil
}
