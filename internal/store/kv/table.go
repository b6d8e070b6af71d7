package kv

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"

	"github.com/dgraph-io/badger/v4"

	"github.com/shelfwise/shelfwise-server/internal/store"
)

// table stores JSON-encoded records of type T under prefix+id, with optional
// unique secondary indexes kept under "idx:"+prefix+name+":"+value so that
// scanning prefix never sees index keys.
type table[T any] struct {
	prefix  string
	indexes []index[T]
}

type index[T any] struct {
	name   string
	keyGen func(*T) string
}

func newTable[T any](prefix string) *table[T] {
	return &table[T]{prefix: prefix}
}

// withIndex adds a unique secondary index.
func (t *table[T]) withIndex(name string, keyGen func(*T) string) *table[T] {
	t.indexes = append(t.indexes, index[T]{name: name, keyGen: keyGen})
	return t
}

func (t *table[T]) key(id string) []byte {
	return []byte(t.prefix + id)
}

func (t *table[T]) indexKey(name, value string) []byte {
	return []byte("idx:" + t.prefix + name + ":" + value)
}

func (t *table[T]) get(txn *badger.Txn, id string) (*T, error) {
	item, err := txn.Get(t.key(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var v T
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &v)
	}); err != nil {
		return nil, fmt.Errorf("decode %s%s: %w", t.prefix, id, err)
	}
	return &v, nil
}

func (t *table[T]) exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// lookup follows a secondary index to its record.
func (t *table[T]) lookup(txn *badger.Txn, name, value string) (*T, error) {
	item, err := txn.Get(t.indexKey(name, value))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	id, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	return t.get(txn, string(id))
}

// create writes a new record. Returns store.ErrAlreadyExists when the ID or
// any index value is taken.
func (t *table[T]) create(txn *badger.Txn, id string, v *T) error {
	taken, err := t.exists(txn, t.key(id))
	if err != nil {
		return fmt.Errorf("check existing key: %w", err)
	}
	if taken {
		return store.ErrAlreadyExists
	}
	for _, idx := range t.indexes {
		taken, err := t.exists(txn, t.indexKey(idx.name, idx.keyGen(v)))
		if err != nil {
			return fmt.Errorf("check index key: %w", err)
		}
		if taken {
			return store.ErrAlreadyExists.WithMessagef("%s %q already used", idx.name, idx.keyGen(v))
		}
	}
	return t.write(txn, id, nil, v)
}

// update replaces the record stored under id, moving index keys that changed.
func (t *table[T]) update(txn *badger.Txn, id string, v *T) error {
	old, err := t.get(txn, id)
	if err != nil {
		return err
	}
	for _, idx := range t.indexes {
		if idx.keyGen(old) == idx.keyGen(v) {
			continue
		}
		taken, err := t.exists(txn, t.indexKey(idx.name, idx.keyGen(v)))
		if err != nil {
			return fmt.Errorf("check index key: %w", err)
		}
		if taken {
			return store.ErrAlreadyExists.WithMessagef("%s %q already used", idx.name, idx.keyGen(v))
		}
	}
	return t.write(txn, id, old, v)
}

func (t *table[T]) write(txn *badger.Txn, id string, old, v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s%s: %w", t.prefix, id, err)
	}
	if err := txn.Set(t.key(id), data); err != nil {
		return fmt.Errorf("set key: %w", err)
	}
	for _, idx := range t.indexes {
		if old != nil {
			if err := txn.Delete(t.indexKey(idx.name, idx.keyGen(old))); err != nil {
				return fmt.Errorf("delete index key: %w", err)
			}
		}
		if err := txn.Set(t.indexKey(idx.name, idx.keyGen(v)), []byte(id)); err != nil {
			return fmt.Errorf("set index key: %w", err)
		}
	}
	return nil
}

// delete removes the record and its index keys. Returns store.ErrNotFound
// when nothing is stored under id.
func (t *table[T]) delete(txn *badger.Txn, id string) error {
	old, err := t.get(txn, id)
	if err != nil {
		return err
	}
	for _, idx := range t.indexes {
		if err := txn.Delete(t.indexKey(idx.name, idx.keyGen(old))); err != nil {
			return fmt.Errorf("delete index key: %w", err)
		}
	}
	return txn.Delete(t.key(id))
}

// all yields every record under the table prefix in key order.
func (t *table[T]) all(txn *badger.Txn) iter.Seq2[*T, error] {
	return func(yield func(*T, error) bool) {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(t.prefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var v T
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			})
			if err != nil {
				yield(nil, fmt.Errorf("decode %s: %w", it.Item().Key(), err))
				return
			}
			if !yield(&v, nil) {
				return
			}
		}
	}
}

// collect gathers all records, stopping at the first decode error.
func (t *table[T]) collect(txn *badger.Txn) ([]*T, error) {
	var out []*T
	for v, err := range t.all(txn) {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
