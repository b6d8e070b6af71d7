package domain

import "time"

// Default shelf settings for a new user.
const (
	DefaultNumberOfShelves = 5
	DefaultShelfCapacity   = 10
)

// ShelfSettings is the per-user singleton driving shelf initialization.
type ShelfSettings struct {
	UserID          string    `json:"-"`
	NumberOfShelves int       `json:"numberOfShelves"`
	ShelfCapacity   int       `json:"shelfCapacity"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// NewShelfSettings returns settings for userID with the given defaults.
func NewShelfSettings(userID string, count, capacity int, now time.Time) *ShelfSettings {
	return &ShelfSettings{
		UserID:          userID,
		NumberOfShelves: count,
		ShelfCapacity:   capacity,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Library is the full view of a user's shelves and settings.
type Library struct {
	Shelves  []*ShelfView   `json:"shelves"`
	Settings *ShelfSettings `json:"shelfSettings"`
}

// UsedPages returns the total pages placed across every shelf.
func (l *Library) UsedPages() int {
	total := 0
	for _, s := range l.Shelves {
		total += s.UsedPages
	}
	return total
}
