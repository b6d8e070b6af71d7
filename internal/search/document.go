// Package search maintains a Bleve full-text index over book titles. Every
// document carries its owner's ID and every query filters on it, so one
// index serves all users without leaking titles between them.
package search

import (
	"github.com/shelfwise/shelfwise-server/internal/domain"
)

// Document is the indexed form of a book.
type Document struct {
	ID      string
	UserID  string
	Title   string
	Pages   int
	ShelfID string
}

// NewDocument builds the index document for b.
func NewDocument(b *domain.Book) *Document {
	shelfID, _ := b.Shelf.ID()
	return &Document{
		ID:      b.ID,
		UserID:  b.UserID,
		Title:   b.Title,
		Pages:   b.Pages,
		ShelfID: shelfID,
	}
}

// ToMap converts the document to the field names used by the index mapping.
func (d *Document) ToMap() map[string]any {
	m := map[string]any{
		"id":      d.ID,
		"user_id": d.UserID,
		"title":   d.Title,
		"pages":   d.Pages,
	}
	if d.ShelfID != "" {
		m["shelf_id"] = d.ShelfID
	}
	return m
}
