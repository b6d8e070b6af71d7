// Package sse pushes server-sent events to connected clients so open pages
// and API consumers learn when a user's library changes.
package sse

import "time"

// EventType names an event on the wire.
type EventType string

// Event types.
const (
	// EventLibraryUpdated follows every mutation of a user's books, shelves
	// or settings.
	EventLibraryUpdated EventType = "library.updated"
	// EventConnected is the first event on every stream.
	EventConnected EventType = "connected"
	// EventHeartbeat keeps idle connections open.
	EventHeartbeat EventType = "heartbeat"
)

// Event is one message on the stream. UserID selects the recipients and is
// never sent.
type Event struct {
	Type      EventType `json:"type"`
	UserID    string    `json:"-"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LibraryChange describes what changed in a library.updated event.
type LibraryChange struct {
	Operation string `json:"operation"`
	BookID    string `json:"bookId,omitempty"`
	ShelfID   string `json:"shelfId,omitempty"`
}

// NewLibraryUpdatedEvent returns a library.updated event for userID.
func NewLibraryUpdatedEvent(userID string, change LibraryChange, at time.Time) Event {
	return Event{Type: EventLibraryUpdated, UserID: userID, Data: change, Timestamp: at}
}

// NewHeartbeatEvent returns a heartbeat.
func NewHeartbeatEvent(at time.Time) Event {
	return Event{Type: EventHeartbeat, Timestamp: at}
}
