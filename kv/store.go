// Package kv defines the embedded key-value store external collaborator:
// mstore, dstore and eventlog are all built on this interface rather than
// any specific storage engine, keeping the storage logic separate from the
// concrete backing store.
package kv

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when key is absent.
var ErrNotFound = errors.New("kv: key not found")

// Store is a flat, ordered byte-string key-value store. Every key written
// through this interface is expected to already carry whatever tenant/kind
// prefixing its caller needs; the store itself knows nothing about tenancy.
type Store interface {
	// Put writes value under key, replacing any existing value.
	Put(ctx context.Context, key, value []byte) error
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key []byte) ([]byte, error)
	// Delete removes key. It is not an error to delete an absent key.
	Delete(ctx context.Context, key []byte) error
	// Scan returns an Iterator over all keys with the given prefix, in
	// ascending lexicographic order.
	Scan(ctx context.Context, prefix []byte) (Iterator, error)
	// Close releases resources held by the store.
	Close() error
}

// Iterator walks a range of keys in ascending order. Callers must call
// Close when done, and must not use Key()/Value() before a Next() that
// returned true or after one that returned false.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}

// Retryable reports whether err represents a transient storage condition a
// caller may retry once inside a read.
// The reference implementations in this repository never
// produce transient errors (bbolt and the in-memory map both fail
// deterministically), so this always returns false; it exists as the seam a
// production backing store's errors would be classified through.
func Retryable(err error) bool {
	return false
}
