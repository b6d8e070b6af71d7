package api

import (
	"time"

	"github.com/shelfwise/shelfwise-server/internal/domain"
)

// BookResponse is a book in API responses. ShelfID is null for a book not
// placed on any shelf.
type BookResponse struct {
	ID        string    `json:"id" doc:"Book ID"`
	Title     string    `json:"title" doc:"Title"`
	Pages     int       `json:"pages" doc:"Page count"`
	ShelfID   *string   `json:"shelfId" doc:"Shelf holding the book, null when unplaced"`
	CreatedAt time.Time `json:"createdAt" doc:"Creation time"`
	UpdatedAt time.Time `json:"updatedAt" doc:"Last update time"`
}

// ShelfResponse is a shelf in API responses.
type ShelfResponse struct {
	ID          string    `json:"id" doc:"Shelf ID"`
	Name        string    `json:"name" doc:"Shelf name"`
	DisplayName string    `json:"displayName" doc:"Name, or a generated one when empty"`
	Capacity    int       `json:"capacity" doc:"Capacity in pages"`
	ShelfIndex  int       `json:"shelfIndex" doc:"Position among the user's shelves"`
	CreatedAt   time.Time `json:"createdAt" doc:"Creation time"`
	UpdatedAt   time.Time `json:"updatedAt" doc:"Last update time"`
}

// LibraryShelfResponse is a shelf with the books placed on it.
type LibraryShelfResponse struct {
	ID          string         `json:"id" doc:"Shelf ID"`
	Name        string         `json:"name" doc:"Shelf name"`
	DisplayName string         `json:"displayName" doc:"Name, or a generated one when empty"`
	Capacity    int            `json:"capacity" doc:"Capacity in pages"`
	ShelfIndex  int            `json:"shelfIndex" doc:"Position among the user's shelves"`
	UsedPages   int            `json:"usedPages" doc:"Pages of the books placed on the shelf"`
	Books       []BookResponse `json:"books" doc:"Books ordered by title"`
}

// SettingsResponse is a user's shelf settings.
type SettingsResponse struct {
	NumberOfShelves int `json:"numberOfShelves" doc:"Shelves created for an empty library"`
	ShelfCapacity   int `json:"shelfCapacity" doc:"Capacity of created shelves"`
}

// LibraryResponse is the full library view.
type LibraryResponse struct {
	Shelves       []LibraryShelfResponse `json:"shelves" doc:"Shelves ordered by index"`
	ShelfSettings SettingsResponse       `json:"shelfSettings" doc:"Shelf settings"`
}

func toBookResponse(b *domain.Book) BookResponse {
	resp := BookResponse{
		ID:        b.ID,
		Title:     b.Title,
		Pages:     b.Pages,
		CreatedAt: b.CreatedAt,
		UpdatedAt: b.UpdatedAt,
	}
	if shelfID, ok := b.Shelf.ID(); ok {
		resp.ShelfID = &shelfID
	}
	return resp
}

func toShelfResponse(s *domain.Shelf) ShelfResponse {
	return ShelfResponse{
		ID:          s.ID,
		Name:        s.Name,
		DisplayName: s.DisplayName(),
		Capacity:    s.Capacity,
		ShelfIndex:  s.Index,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func toSettingsResponse(s *domain.ShelfSettings) SettingsResponse {
	return SettingsResponse{NumberOfShelves: s.NumberOfShelves, ShelfCapacity: s.ShelfCapacity}
}

func toLibraryResponse(lib *domain.Library) LibraryResponse {
	shelves := make([]LibraryShelfResponse, 0, len(lib.Shelves))
	for _, v := range lib.Shelves {
		books := make([]BookResponse, 0, len(v.Books))
		for _, b := range v.Books {
			books = append(books, toBookResponse(b))
		}
		shelves = append(shelves, LibraryShelfResponse{
			ID:          v.ID,
			Name:        v.Name,
			DisplayName: v.DisplayName,
			Capacity:    v.Capacity,
			ShelfIndex:  v.Index,
			UsedPages:   v.UsedPages,
			Books:       books,
		})
	}
	return LibraryResponse{Shelves: shelves, ShelfSettings: toSettingsResponse(lib.Settings)}
}
