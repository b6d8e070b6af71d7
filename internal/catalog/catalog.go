// Package catalog reads and writes a user's library as a YAML document so it
// can be backed up, moved between stores or edited by hand.
//
//	version: 1
//	owner: reader
//	settings:
//	  numberOfShelves: 5
//	  shelfCapacity: 10
//	shelves:
//	  - name: Poetry
//	    capacity: 20
//	    books:
//	      - title: Odes
//	        pages: 15
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	"github.com/shelfwise/shelfwise-server/internal/service"
)

// Version is the catalog format written by Encode.
const Version = 1

// Catalog is one user's shelves with their books and the shelf settings.
type Catalog struct {
	Version    int       `yaml:"version"`
	Owner      string    `yaml:"owner,omitempty"`
	ExportedAt time.Time `yaml:"exportedAt,omitempty"`
	Settings   *Settings `yaml:"settings,omitempty"`
	Shelves    []Shelf   `yaml:"shelves"`
}

// Settings mirrors domain.ShelfSettings.
type Settings struct {
	NumberOfShelves int `yaml:"numberOfShelves"`
	ShelfCapacity   int `yaml:"shelfCapacity"`
}

// Shelf is a shelf and the books placed on it.
type Shelf struct {
	Name     string `yaml:"name"`
	Capacity int    `yaml:"capacity"`
	Books    []Book `yaml:"books,omitempty"`
}

// Book is a title and its page count.
type Book struct {
	Title string `yaml:"title"`
	Pages int    `yaml:"pages"`
}

// FromLibrary builds a catalog of lib. Shelves without a name are written
// with their display name.
func FromLibrary(lib *domain.Library, owner string, at time.Time) *Catalog {
	c := &Catalog{
		Version:    Version,
		Owner:      owner,
		ExportedAt: at.UTC(),
		Shelves:    make([]Shelf, 0, len(lib.Shelves)),
	}
	if lib.Settings != nil {
		c.Settings = &Settings{
			NumberOfShelves: lib.Settings.NumberOfShelves,
			ShelfCapacity:   lib.Settings.ShelfCapacity,
		}
	}
	for _, v := range lib.Shelves {
		shelf := Shelf{Name: v.DisplayName, Capacity: v.Capacity}
		for _, b := range v.Books {
			shelf.Books = append(shelf.Books, Book{Title: b.Title, Pages: b.Pages})
		}
		c.Shelves = append(c.Shelves, shelf)
	}
	return c
}

// Encode writes c as YAML.
func (c *Catalog) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return enc.Close()
}

// Decode reads one catalog from r and validates it. Unknown keys are
// rejected so typos do not silently drop data.
func Decode(r io.Reader) (*Catalog, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("decode catalog: empty document")
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks the version and that every shelf and book is complete.
// It does not check capacities; Import reports books that do not fit.
func (c *Catalog) Validate() error {
	if c.Version != Version {
		return fmt.Errorf("unsupported catalog version %d (want %d)", c.Version, Version)
	}
	if s := c.Settings; s != nil && (s.NumberOfShelves < 0 || !inRange(s.ShelfCapacity, domain.MaxShelfCapacity)) {
		return fmt.Errorf("settings: numberOfShelves must not be negative and shelfCapacity must be from 1 to %d", domain.MaxShelfCapacity)
	}

	var errs []error
	for i, s := range c.Shelves {
		if strings.TrimSpace(s.Name) == "" {
			errs = append(errs, fmt.Errorf("shelf %d: name is required", i+1))
		}
		if !inRange(s.Capacity, domain.MaxShelfCapacity) {
			errs = append(errs, fmt.Errorf("shelf %d: capacity must be from 1 to %d", i+1, domain.MaxShelfCapacity))
		}
		for j, b := range s.Books {
			if strings.TrimSpace(b.Title) == "" {
				errs = append(errs, fmt.Errorf("shelf %d, book %d: title is required", i+1, j+1))
			}
			if !inRange(b.Pages, domain.MaxPages) {
				errs = append(errs, fmt.Errorf("shelf %d, book %d: pages must be from 1 to %d", i+1, j+1, domain.MaxPages))
			}
		}
	}
	return errors.Join(errs...)
}

func inRange(n, limit int) bool {
	return n > 0 && n <= limit
}

// Library is the part of the library service used by Import.
type Library interface {
	CreateShelf(ctx context.Context, userID string, req service.CreateShelfRequest) (*domain.Shelf, error)
	AddBook(ctx context.Context, userID string, req service.AddBookRequest) (*domain.Book, error)
	UpdateSettings(ctx context.Context, userID string, req service.UpdateSettingsRequest) (*domain.ShelfSettings, error)
}

// Skipped is a book Import could not add.
type Skipped struct {
	Shelf  string
	Title  string
	Reason string
}

// Report summarizes an import.
type Report struct {
	ShelvesCreated int
	BooksAdded     int
	Skipped        []Skipped
}

// Import adds every shelf of c after the user's existing shelves and puts its
// books on it. A book that is rejected, for example because it no longer
// fits, is recorded in the report and the import continues. Settings are
// applied first when present.
func Import(ctx context.Context, lib Library, userID string, c *Catalog) (*Report, error) {
	report := &Report{}

	if c.Settings != nil {
		_, err := lib.UpdateSettings(ctx, userID, service.UpdateSettingsRequest{
			NumberOfShelves: &c.Settings.NumberOfShelves,
			ShelfCapacity:   &c.Settings.ShelfCapacity,
		})
		if err != nil {
			return report, fmt.Errorf("apply settings: %w", err)
		}
	}

	for _, s := range c.Shelves {
		shelf, err := lib.CreateShelf(ctx, userID, service.CreateShelfRequest{Name: s.Name, Capacity: s.Capacity})
		if err != nil {
			return report, fmt.Errorf("create shelf %q: %w", s.Name, err)
		}
		report.ShelvesCreated++

		for _, b := range s.Books {
			_, err := lib.AddBook(ctx, userID, service.AddBookRequest{Title: b.Title, Pages: b.Pages, ShelfID: shelf.ID})
			if err != nil {
				if ctx.Err() != nil {
					return report, ctx.Err()
				}
				report.Skipped = append(report.Skipped, Skipped{Shelf: s.Name, Title: b.Title, Reason: err.Error()})
				continue
			}
			report.BooksAdded++
		}
	}
	return report, nil
}
