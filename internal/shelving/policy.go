package shelving

import (
	"github.com/shelfwise/shelfwise-server/internal/domain"
)

// Fits reports whether pages more pages fit on a shelf of the given capacity
// that already holds used pages. Negative inputs never fit.
func Fits(used, capacity, pages int) bool {
	if used < 0 || pages < 0 || used > capacity {
		return false
	}
	return pages <= capacity-used
}

// CanResize reports whether a shelf currently holding used pages may be
// resized to capacity.
func CanResize(used, capacity int) bool {
	return capacity > 0 && Fits(used, capacity, 0)
}

// UsedPages sums the pages of books on shelfID, skipping the book with ID
// exclude (pass "" to skip nothing).
func UsedPages(books []*domain.Book, shelfID, exclude string) int {
	total := 0
	for _, b := range books {
		if b.ID == exclude || !b.OnShelf(shelfID) {
			continue
		}
		total += b.Pages
	}
	return total
}

// Usage returns used pages per shelf ID for every assigned book.
func Usage(books []*domain.Book) map[string]int {
	usage := make(map[string]int)
	for _, b := range books {
		if id, ok := b.Shelf.ID(); ok {
			usage[id] += b.Pages
		}
	}
	return usage
}

// FirstFit returns the first shelf, in the given order, that can take pages.
func FirstFit(shelves []*domain.Shelf, usage map[string]int, pages int) (*domain.Shelf, bool) {
	for _, s := range shelves {
		if Fits(usage[s.ID], s.Capacity, pages) {
			return s, true
		}
	}
	return nil, false
}
