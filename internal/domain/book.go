package domain

import "time"

// MaxPages is the largest page count a book may have.
const MaxPages = 1_000_000

// Book is a user's book. Pages is always positive.
type Book struct {
	ID        string    `json:"id"`
	UserID    string    `json:"-"`
	Title     string    `json:"title"`
	Pages     int       `json:"pages"`
	Shelf     ShelfRef  `json:"shelfId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OnShelf reports whether the book is assigned to shelfID.
func (b *Book) OnShelf(shelfID string) bool {
	return b.Shelf.Is(shelfID)
}
