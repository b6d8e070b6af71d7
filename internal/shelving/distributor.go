package shelving

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/shelfwise/shelfwise-server/internal/domain"
)

// Assigner persists a book's shelf placement.
type Assigner interface {
	AssignBook(ctx context.Context, bookID string, shelf domain.ShelfRef) error
}

// AssignFunc adapts a function to Assigner.
type AssignFunc func(ctx context.Context, bookID string, shelf domain.ShelfRef) error

// AssignBook calls f.
func (f AssignFunc) AssignBook(ctx context.Context, bookID string, shelf domain.ShelfRef) error {
	return f(ctx, bookID, shelf)
}

// Placement records one book placed by a distribution pass.
type Placement struct {
	BookID   string
	ShelfID  string
	Overflow bool // no shelf had room; placed on the least used shelf
}

// Distribution is the outcome of Distribute.
type Distribution struct {
	// Shelves in index order, each with its books sorted by title.
	Shelves []*domain.ShelfView
	// Placements made by this pass, in placement order.
	Placements []Placement
	// Unplaced holds books left without a shelf because the user has none.
	Unplaced []*domain.Book
}

// Overflows counts placements that exceeded capacity.
func (d *Distribution) Overflows() int {
	n := 0
	for _, p := range d.Placements {
		if p.Overflow {
			n++
		}
	}
	return n
}

// Distributor places unassigned books onto shelves.
type Distributor struct {
	logger *slog.Logger
}

// NewDistributor creates a Distributor.
func NewDistributor(logger *slog.Logger) *Distributor {
	return &Distributor{logger: logger}
}

// Distribute places every unassigned book and returns the resulting shelves.
//
// Books already on an existing shelf stay there without a capacity check. A
// reference to a shelf that is not in shelves counts as unassigned. Unassigned
// books are taken in title order and put on the first shelf, by index, where
// they fit. When none fits, the book goes to the shelf with the fewest used
// pages (lowest index on ties) even though that overflows it. Each placement
// is persisted through assign as soon as it is decided, and the book's Shelf
// field is updated in place.
func (d *Distributor) Distribute(ctx context.Context, shelves []*domain.Shelf, books []*domain.Book, assign Assigner) (*Distribution, error) {
	ordered := slices.Clone(shelves)
	SortShelves(ordered)

	views := make([]*domain.ShelfView, len(ordered))
	byID := make(map[string]*domain.ShelfView, len(ordered))
	for i, s := range ordered {
		v := &domain.ShelfView{Shelf: s, DisplayName: s.DisplayName(), Books: []*domain.Book{}}
		views[i] = v
		byID[s.ID] = v
	}

	var unassigned []*domain.Book
	for _, b := range books {
		if shelfID, ok := b.Shelf.ID(); ok {
			if v, found := byID[shelfID]; found {
				v.Books = append(v.Books, b)
				v.UsedPages += b.Pages
				continue
			}
		}
		unassigned = append(unassigned, b)
	}

	result := &Distribution{Shelves: views}

	if len(views) == 0 {
		result.Unplaced = unassigned
		return result, nil
	}

	SortBooks(unassigned)

	for _, b := range unassigned {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		target, overflow := pick(views, b.Pages)
		ref := domain.OnShelf(target.ID)
		if err := assign.AssignBook(ctx, b.ID, ref); err != nil {
			return nil, fmt.Errorf("assign book %s to shelf %s: %w", b.ID, target.ID, err)
		}
		b.Shelf = ref
		target.Books = append(target.Books, b)
		target.UsedPages += b.Pages

		result.Placements = append(result.Placements, Placement{BookID: b.ID, ShelfID: target.ID, Overflow: overflow})
		if overflow {
			d.logger.Warn("shelf overflow",
				"book_id", b.ID,
				"shelf_id", target.ID,
				"used_pages", target.UsedPages,
				"capacity", target.Capacity,
			)
		}
	}

	for _, v := range views {
		SortBooks(v.Books)
	}

	if len(result.Placements) > 0 {
		d.logger.Debug("books distributed",
			"placed", len(result.Placements),
			"overflow", result.Overflows(),
		)
	}
	return result, nil
}

// pick returns the first view with room for pages, or the least used view
// and overflow=true when none has room. views must be non-empty.
func pick(views []*domain.ShelfView, pages int) (*domain.ShelfView, bool) {
	for _, v := range views {
		if Fits(v.UsedPages, v.Capacity, pages) {
			return v, false
		}
	}
	least := views[0]
	for _, v := range views[1:] {
		if v.UsedPages < least.UsedPages {
			least = v
		}
	}
	return least, true
}
