package kv

import (
	"errors"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"

	"github.com/lazypower/lexisync/internal/logger"
)

type pebbleDriver struct{}

func (pebbleDriver) Name() string { return "pebble" }

func (pebbleDriver) Open(path string, readOnly bool) (Backend, error) {
	if readOnly && !dirExists(path) {
		return nil, fmt.Errorf("open pebble %s: %w", path, ErrNotFound)
	}
	db, err := pebble.Open(path, &pebble.Options{
		ReadOnly:         readOnly,
		ErrorIfNotExists: readOnly,
		Logger:           logger.Log.Sugar(),
	})
	if err != nil {
		return nil, fmt.Errorf("open pebble %s: %w", path, err)
	}
	return &pebbleBackend{db: db, readOnly: readOnly}, nil
}

func (pebbleDriver) Exists(path string) bool { return dirExists(path) }

func (pebbleDriver) Remove(path string) error { return os.RemoveAll(path) }

type pebbleBackend struct {
	db       *pebble.DB
	readOnly bool
}

func (b *pebbleBackend) Get(key []byte) ([]byte, error) {
	v, closer, err := b.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), v...), nil
}

func (b *pebbleBackend) Put(key, value []byte) error {
	if b.readOnly {
		return ErrReadOnly
	}
	return b.db.Set(key, value, pebble.Sync)
}

func (b *pebbleBackend) Delete(key []byte) error {
	if b.readOnly {
		return ErrReadOnly
	}
	return b.db.Delete(key, pebble.Sync)
}

func (b *pebbleBackend) NewIterator(start []byte) (Iterator, error) {
	opts := &pebble.IterOptions{}
	if len(start) > 0 {
		opts.LowerBound = start
	}
	it, err := b.db.NewIter(opts)
	if err != nil {
		return nil, err
	}
	return &pebbleIterator{it: it}, nil
}

func (b *pebbleBackend) Close() error { return b.db.Close() }

type pebbleIterator struct {
	it      *pebble.Iterator
	started bool
}

func (i *pebbleIterator) Next() bool {
	if !i.started {
		i.started = true
		return i.it.First()
	}
	return i.it.Next()
}

func (i *pebbleIterator) Key() []byte   { return i.it.Key() }
func (i *pebbleIterator) Value() []byte { return i.it.Value() }
func (i *pebbleIterator) Err() error    { return i.it.Error() }
func (i *pebbleIterator) Close() error  { return i.it.Close() }
