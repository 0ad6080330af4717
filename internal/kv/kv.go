// Package kv is the ordered key/value capability the user dictionary store is
// written against. Keys are compared bytewise by every driver, so iteration
// order is identical across backends and snapshots move freely between them.
package kv

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrNotFound is returned by Get for an absent key and by a read-only
	// Open for an absent store.
	ErrNotFound = errors.New("kv: not found")

	// ErrReadOnly is returned by writes on a backend opened read-only.
	ErrReadOnly = errors.New("kv: read-only")

	// ErrUnknownBackend is returned by Lookup for an unregistered driver name.
	ErrUnknownBackend = errors.New("kv: unknown backend")
)

// Backend is one open ordered key/value database.
type Backend interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error

	// NewIterator returns an iterator over all keys >= start in bytewise
	// order. A nil start begins at the first key.
	NewIterator(start []byte) (Iterator, error)

	Close() error
}

// Iterator walks a Backend in key order. Key and Value are only valid until
// the next call to Next; callers copy what they keep.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Err() error
	Close() error
}

// Driver opens backends of one kind and manages the files behind them.
type Driver interface {
	Name() string

	// Open opens the store at path, creating it unless readOnly is set.
	// A read-only open of a missing store fails with ErrNotFound.
	Open(path string, readOnly bool) (Backend, error)

	Exists(path string) bool

	// Remove deletes every file backing the store at path.
	Remove(path string) error
}

// DefaultBackend is the driver used when none is configured.
const DefaultBackend = "leveldb"

var drivers = map[string]Driver{
	"leveldb": levelDriver{},
	"pebble":  pebbleDriver{},
	"sqlite":  sqliteDriver{},
}

// Lookup returns the driver registered under name. An empty name selects
// DefaultBackend.
func Lookup(name string) (Driver, error) {
	if name == "" {
		name = DefaultBackend
	}
	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
	return d, nil
}

// Backends lists the registered driver names in sorted order.
func Backends() []string {
	names := make([]string, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
