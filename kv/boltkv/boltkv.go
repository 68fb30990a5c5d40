// Package boltkv backs kv.Store with go.etcd.io/bbolt: one database file,
// one bucket, all scoping in the key bytes.
package boltkv

import (
	"context"
	"fmt"

	"github.com/forestrie/go-dwn/kv"
	bolt "go.etcd.io/bbolt"
)

var rootBucket = []byte("dwn")

// Store is a kv.Store backed by one bbolt database file and one bucket; all
// tenant/kind scoping lives in the key bytes themselves, not in bucket
// structure, so range scans over arbitrary prefixes stay a single cursor
// walk.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) a bbolt database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltkv: opening %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(rootBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltkv: creating bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Put(_ context.Context, key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).Put(key, value)
	})
}

func (s *Store) Get(_ context.Context, key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(rootBucket).Get(key)
		if v == nil {
			return kv.ErrNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, key []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(rootBucket).Delete(key)
	})
}

func (s *Store) Scan(_ context.Context, prefix []byte) (kv.Iterator, error) {
	tx, err := s.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("boltkv: starting scan transaction: %w", err)
	}
	return &iterator{tx: tx, cursor: tx.Bucket(rootBucket).Cursor(), prefix: prefix, started: false}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type iterator struct {
	tx      *bolt.Tx
	cursor  *bolt.Cursor
	prefix  []byte
	started bool
	key     []byte
	value   []byte
}

func (it *iterator) Next() bool {
	var k, v []byte
	if !it.started {
		it.started = true
		k, v = it.cursor.Seek(it.prefix)
	} else {
		k, v = it.cursor.Next()
	}
	if k == nil || !hasPrefix(k, it.prefix) {
		it.key, it.value = nil, nil
		return false
	}
	it.key = append([]byte(nil), k...)
	it.value = append([]byte(nil), v...)
	return true
}

func (it *iterator) Key() []byte   { return it.key }
func (it *iterator) Value() []byte { return it.value }
func (it *iterator) Err() error    { return nil }
func (it *iterator) Close() error  { return it.tx.Rollback() }

func hasPrefix(k, prefix []byte) bool {
	if len(prefix) == 0 {
		return true
	}
	if len(k) < len(prefix) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}
