// Package kvstore wraps go.etcd.io/bbolt with the tree/bucket vocabulary
// the rest of audiocore is written against: named trees that support
// lexicographic prefix and range scans, upsert, delete, and a finite,
// non-restartable iterator — the same shape the original's embedded
// sled database exposed to the metadata and queue services.
package kvstore

import (
	"bytes"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// Store opens a single bbolt file and lazily creates named trees (bbolt
// buckets) on first use.
type Store struct {
	db *bbolt.DB
}

// Open opens or creates the database file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open kvstore %q: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying file handle.
func (s *Store) Close() error { return s.db.Close() }

// Flush fsyncs the database to durable storage. bbolt already fsyncs on
// every write transaction commit, so this extra Sync is kept to satisfy
// the repository contract's explicit flush() operation.
func (s *Store) Flush() error { return s.db.Sync() }

// Flush fsyncs the store backing this tree.
func (t *Tree) Flush() error { return t.store.Flush() }

// Tree is a named bucket within the store.
type Tree struct {
	store *Store
	name  []byte
}

// Tree returns a handle to the named tree, creating it if absent.
func (s *Store) Tree(name string) (*Tree, error) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create tree %q: %w", name, err)
	}
	return &Tree{store: s, name: []byte(name)}, nil
}

// Put upserts key -> value.
func (t *Tree) Put(key, value []byte) error {
	return t.store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(t.name).Put(key, value)
	})
}

// PutString upserts key -> value for string-valued scalar entries (the
// "status" tree's typical use).
func (t *Tree) PutString(key, value string) error {
	return t.Put([]byte(key), []byte(value))
}

// Get returns (value, true) if key exists, else (nil, false).
func (t *Tree) Get(key []byte) ([]byte, bool) {
	var out []byte
	_ = t.store.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(t.name).Get(key)
		if v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, out != nil
}

// Delete removes key. A non-existent key is not an error.
func (t *Tree) Delete(key []byte) error {
	return t.store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(t.name).Delete(key)
	})
}

// DeleteAll empties the tree.
func (t *Tree) DeleteAll() error {
	return t.store.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(t.name); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(t.name)
		return err
	})
}

// Len returns the number of entries in the tree.
func (t *Tree) Len() int {
	n := 0
	_ = t.store.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(t.name).Stats().KeyN
		return nil
	})
	return n
}

// Entry is a single key/value pair yielded by iteration helpers.
type Entry struct {
	Key   []byte
	Value []byte
}

// All returns every entry in key order. Finite, materialised once per
// call — callers that only need a prefix or filter should prefer
// PrefixScan/RangeFrom to avoid paying for the full set, per the design
// note that iterators should avoid materialising the whole tree when
// unnecessary.
func (t *Tree) All() []Entry {
	var out []Entry
	_ = t.store.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(t.name).ForEach(func(k, v []byte) error {
			out = append(out, Entry{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)})
			return nil
		})
	})
	return out
}

// First returns the lexicographically first entry, if any.
func (t *Tree) First() (Entry, bool) {
	var e Entry
	found := false
	_ = t.store.db.View(func(tx *bbolt.Tx) error {
		k, v := tx.Bucket(t.name).Cursor().First()
		if k != nil {
			e = Entry{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)}
			found = true
		}
		return nil
	})
	return e, found
}

// Last returns the lexicographically last entry, if any.
func (t *Tree) Last() (Entry, bool) {
	var e Entry
	found := false
	_ = t.store.db.View(func(tx *bbolt.Tx) error {
		k, v := tx.Bucket(t.name).Cursor().Last()
		if k != nil {
			e = Entry{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)}
			found = true
		}
		return nil
	})
	return e, found
}

// NextAfter returns the first entry with a key strictly greater than
// key, the bbolt analog of sled's get_gt.
func (t *Tree) NextAfter(key []byte) (Entry, bool) {
	var e Entry
	found := false
	_ = t.store.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(t.name).Cursor()
		k, v := c.Seek(key)
		if k != nil && bytes.Equal(k, key) {
			k, v = c.Next()
		}
		if k != nil {
			e = Entry{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)}
			found = true
		}
		return nil
	})
	return e, found
}

// PrevBefore returns the last entry with a key strictly less than key,
// the bbolt analog of sled's get_lt.
func (t *Tree) PrevBefore(key []byte) (Entry, bool) {
	var e Entry
	found := false
	_ = t.store.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(t.name).Cursor()
		k, _ := c.Seek(key)
		if k == nil {
			// key is past the end; the last entry overall is the answer.
			k, v := c.Last()
			if k != nil {
				e = Entry{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)}
				found = true
			}
			return nil
		}
		pk, pv := c.Prev()
		if pk != nil {
			e = Entry{Key: append([]byte(nil), pk...), Value: append([]byte(nil), pv...)}
			found = true
		}
		return nil
	})
	return e, found
}

// PrefixScan returns every entry whose key starts with prefix, in key
// order.
func (t *Tree) PrefixScan(prefix []byte) []Entry {
	var out []Entry
	_ = t.store.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(t.name).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			out = append(out, Entry{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)})
		}
		return nil
	})
	return out
}

// RangeFrom returns every entry with key >= from, in key order.
func (t *Tree) RangeFrom(from []byte) []Entry {
	var out []Entry
	_ = t.store.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(t.name).Cursor()
		for k, v := c.Seek(from); k != nil; k, v = c.Next() {
			out = append(out, Entry{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)})
		}
		return nil
	})
	return out
}

// NthFromStart returns the entry at position n (0-based) in key order,
// the bbolt analog of sled's `.iter().nth(n)`.
func (t *Tree) NthFromStart(n int) (Entry, bool) {
	var e Entry
	found := false
	_ = t.store.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(t.name).Cursor()
		i := 0
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if i == n {
				e = Entry{Key: append([]byte(nil), k...), Value: append([]byte(nil), v...)}
				found = true
				return nil
			}
			i++
		}
		return nil
	})
	return e, found
}

// NextID returns a fresh monotonically increasing 64-bit id; encoded
// with Uint64Key, its byte order matches numeric order — the
// bbolt analog of sled's generate_id(), used by the queue to append
// entries in insertion order.
func (t *Tree) NextID() (uint64, error) {
	var id uint64
	err := t.store.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(t.name)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = seq
		return nil
	})
	return id, err
}
