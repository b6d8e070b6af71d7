// Package kv is a store.Store backend on an embedded Badger key-value
// database. Records are JSON values under prefixed keys:
//
//	user:{id}                 account
//	book:{userID}:{id}        book
//	shelf:{userID}:{id}       shelf
//	settings:{userID}         shelf settings
//	idx:...                   unique secondary indexes
package kv

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/jonboulle/clockwork"

	"github.com/shelfwise/shelfwise-server/internal/domain"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

// userRecord is the stored form of domain.User, which hides its hash from JSON.
type userRecord struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (r *userRecord) toDomain() *domain.User {
	return &domain.User{ID: r.ID, Username: r.Username, PasswordHash: r.PasswordHash, CreatedAt: r.CreatedAt}
}

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	clock  clockwork.Clock
	logger *slog.Logger
	users  *table[userRecord]
}

var _ store.Store = (*Store)(nil)

// Open opens or creates the database in the directory at path.
func Open(path string, logger *slog.Logger, opts ...store.Option) (*Store, error) {
	o := store.ApplyOptions(opts...)

	bopts := badger.DefaultOptions(path)
	bopts.Logger = nil
	bopts.SyncWrites = true
	bopts.CompactL0OnClose = true

	return open(bopts, logger, o)
}

// OpenInMemory opens a database that lives only in memory.
func OpenInMemory(logger *slog.Logger, opts ...store.Option) (*Store, error) {
	bopts := badger.DefaultOptions("").WithInMemory(true)
	bopts.Logger = nil
	return open(bopts, logger, store.ApplyOptions(opts...))
}

func open(bopts badger.Options, logger *slog.Logger, o store.Options) (*Store, error) {
	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	logger.Debug("badger store opened", "path", bopts.Dir, "in_memory", bopts.InMemory)
	return &Store{
		db:     db,
		clock:  o.Clock,
		logger: logger,
		users: newTable[userRecord]("user:").
			withIndex("username", func(u *userRecord) string { return u.Username }),
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger db: %w", err)
	}
	return nil
}

// CreateUser stores a user. Returns store.ErrAlreadyExists on a taken
// username or ID.
func (s *Store) CreateUser(ctx context.Context, user *domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.clock.Now()
	}
	rec := &userRecord{ID: user.ID, Username: user.Username, PasswordHash: user.PasswordHash, CreatedAt: user.CreatedAt}
	return s.db.Update(func(txn *badger.Txn) error {
		return s.users.create(txn, user.ID, rec)
	})
}

// GetUser returns the user with id.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var user *domain.User
	err := s.db.View(func(txn *badger.Txn) error {
		rec, err := s.users.get(txn, id)
		if err != nil {
			return err
		}
		user = rec.toDomain()
		return nil
	})
	return user, err
}

// GetUserByUsername returns the user with an exact username match.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var user *domain.User
	err := s.db.View(func(txn *badger.Txn) error {
		rec, err := s.users.lookup(txn, "username", username)
		if err != nil {
			return err
		}
		user = rec.toDomain()
		return nil
	})
	return user, err
}

// ListUsers returns every user ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]*domain.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var users []*domain.User
	err := s.db.View(func(txn *badger.Txn) error {
		recs, err := s.users.collect(txn)
		if err != nil {
			return err
		}
		for _, r := range recs {
			users = append(users, r.toDomain())
		}
		return nil
	})
	slices.SortFunc(users, func(a, b *domain.User) int {
		return cmp.Compare(a.Username, b.Username)
	})
	return users, err
}

// View runs fn inside a read-only Badger transaction.
func (s *Store) View(ctx context.Context, userID string, fn func(store.Library) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(s.library(txn, userID))
	})
}

// Update runs fn inside a read-write Badger transaction, committed when fn
// returns nil.
func (s *Store) Update(ctx context.Context, userID string, fn func(store.Library) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return fn(s.library(txn, userID))
	})
}

func (s *Store) library(txn *badger.Txn, userID string) *library {
	return &library{
		txn:    txn,
		userID: userID,
		clock:  s.clock,
		books:  newTable[domain.Book]("book:" + userID + ":"),
		shelves: newTable[domain.Shelf]("shelf:"+userID+":").
			withIndex("index", func(s *domain.Shelf) string { return strconv.Itoa(s.Index) }),
		settings: newTable[domain.ShelfSettings]("settings:"),
	}
}
