package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ShelfRef is an optional reference from a book to a shelf. The zero value is
// unassigned. Stores map it to NULL or the shelf ID.
type ShelfRef struct {
	id string
}

// Unassigned returns the reference of a book not placed on any shelf.
func Unassigned() ShelfRef { return ShelfRef{} }

// OnShelf returns a reference to shelfID. An empty ID yields Unassigned.
func OnShelf(shelfID string) ShelfRef { return ShelfRef{id: shelfID} }

// ID returns the referenced shelf ID and whether the reference is assigned.
func (r ShelfRef) ID() (string, bool) { return r.id, r.id != "" }

// IsAssigned reports whether the reference points at a shelf.
func (r ShelfRef) IsAssigned() bool { return r.id != "" }

// Is reports whether the reference points at shelfID.
func (r ShelfRef) Is(shelfID string) bool { return r.id != "" && r.id == shelfID }

// String returns the shelf ID or "unassigned".
func (r ShelfRef) String() string {
	if r.id == "" {
		return "unassigned"
	}
	return r.id
}

// MarshalJSON encodes the reference as the shelf ID or null.
func (r ShelfRef) MarshalJSON() ([]byte, error) {
	if r.id == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.id)
}

// UnmarshalJSON accepts null, "" or a shelf ID string.
func (r *ShelfRef) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = Unassigned()
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("shelf reference: %w", err)
	}
	*r = OnShelf(v)
	return nil
}
