package kv

import (
	"errors"
	"fmt"
	"os"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

type levelDriver struct{}

func (levelDriver) Name() string { return "leveldb" }

func (levelDriver) Open(path string, readOnly bool) (Backend, error) {
	if readOnly && !dirExists(path) {
		return nil, fmt.Errorf("open leveldb %s: %w", path, ErrNotFound)
	}
	db, err := leveldb.OpenFile(path, &opt.Options{
		ReadOnly:       readOnly,
		ErrorIfMissing: readOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &levelBackend{db: db, readOnly: readOnly}, nil
}

func (levelDriver) Exists(path string) bool { return dirExists(path) }

func (levelDriver) Remove(path string) error { return os.RemoveAll(path) }

type levelBackend struct {
	db       *leveldb.DB
	readOnly bool
}

func (b *levelBackend) Get(key []byte) ([]byte, error) {
	v, err := b.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	return v, err
}

func (b *levelBackend) Put(key, value []byte) error {
	if b.readOnly {
		return ErrReadOnly
	}
	return b.db.Put(key, value, nil)
}

func (b *levelBackend) Delete(key []byte) error {
	if b.readOnly {
		return ErrReadOnly
	}
	return b.db.Delete(key, nil)
}

func (b *levelBackend) NewIterator(start []byte) (Iterator, error) {
	return &levelIterator{it: b.db.NewIterator(&util.Range{Start: start}, nil)}, nil
}

func (b *levelBackend) Close() error { return b.db.Close() }

type levelIterator struct {
	it iterator.Iterator
}

func (i *levelIterator) Next() bool    { return i.it.Next() }
func (i *levelIterator) Key() []byte   { return i.it.Key() }
func (i *levelIterator) Value() []byte { return i.it.Value() }
func (i *levelIterator) Err() error    { return i.it.Error() }

func (i *levelIterator) Close() error {
	i.it.Release()
	return i.it.Error()
}

func dirExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
