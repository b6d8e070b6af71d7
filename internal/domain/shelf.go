package domain

import (
	"strconv"
	"time"
)

// MaxShelfCapacity is the largest capacity a shelf may have.
const MaxShelfCapacity = 1_000_000

// Shelf is a named, capacity-bounded container for a user's books. Index
// orders a user's shelves and is unique per user.
type Shelf struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	Index     int       `json:"shelfIndex"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DisplayName returns Name, or "Shelf {Index+1}" when the name is empty.
func (s *Shelf) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return DefaultShelfName(s.Index + 1)
}

// DefaultShelfName returns the name given to the n-th (1-based) generated shelf.
func DefaultShelfName(n int) string {
	return "Shelf " + strconv.Itoa(n)
}

// MaxIndex returns the highest index among shelves, or -1 when there are none.
func MaxIndex(shelves []*Shelf) int {
	maxIdx := -1
	for _, s := range shelves {
		if s.Index > maxIdx {
			maxIdx = s.Index
		}
	}
	return maxIdx
}

// ShelfView is a shelf together with the books placed on it, as returned to
// clients after distribution.
type ShelfView struct {
	*Shelf
	DisplayName string  `json:"displayName"`
	UsedPages   int     `json:"usedPages"`
	Books       []*Book `json:"books"`
}

// Free returns the remaining capacity, negative when the shelf overflowed.
func (v *ShelfView) Free() int {
	return v.Capacity - v.UsedPages
}

// Overflowing reports whether used pages exceed capacity.
func (v *ShelfView) Overflowing() bool {
	return v.UsedPages > v.Capacity
}
