package shelving

import (
	"cmp"
	"slices"
	"sync"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/shelfwise/shelfwise-server/internal/domain"
)

// A collate.Collator keeps scratch buffers and is not safe for concurrent use.
var collators = sync.Pool{
	New: func() any { return collate.New(language.Russian) },
}

// CompareTitles orders two titles with Russian collation, so Cyrillic titles
// sort alphabetically regardless of case.
func CompareTitles(a, b string) int {
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)
	return c.CompareString(a, b)
}

// SortBooks sorts books by title, breaking ties by ID so the order is total.
func SortBooks(books []*domain.Book) {
	c := collators.Get().(*collate.Collator)
	defer collators.Put(c)

	slices.SortStableFunc(books, func(a, b *domain.Book) int {
		if r := c.CompareString(a.Title, b.Title); r != 0 {
			return r
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// SortShelves sorts shelves by index.
func SortShelves(shelves []*domain.Shelf) {
	slices.SortStableFunc(shelves, func(a, b *domain.Shelf) int {
		return cmp.Compare(a.Index, b.Index)
	})
}
