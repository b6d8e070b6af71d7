// Package id generates the prefixed identifiers used for every stored record.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for each record kind, e.g. "book-V1StGXR8_Z5jdHi6B-myT".
const (
	PrefixUser   = "user"
	PrefixBook   = "book"
	PrefixShelf  = "shelf"
	PrefixClient = "sse"
)

// Generate returns prefix + "-" + a 21 character NanoID.
// It fails only when the system cannot supply secure randomness.
func Generate(prefix string) (string, error) {
	nid, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + nid, nil
}

// MustGenerate is like Generate but panics on failure.
func MustGenerate(prefix string) string {
	v, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return v
}

// Book returns a new book ID.
func Book() (string, error) { return Generate(PrefixBook) }

// Shelf returns a new shelf ID.
func Shelf() (string, error) { return Generate(PrefixShelf) }

// User returns a new user ID.
func User() (string, error) { return Generate(PrefixUser) }
