package kv

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// The kv table is keyed by BLOB so SQLite orders keys with memcmp, the same
// order the LSM backends use.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
    key   BLOB PRIMARY KEY,
    value BLOB NOT NULL
) WITHOUT ROWID
`

type sqliteDriver struct{}

func (sqliteDriver) Name() string { return "sqlite" }

func (sqliteDriver) Open(path string, readOnly bool) (Backend, error) {
	if readOnly && !fileExists(path) {
		return nil, fmt.Errorf("open sqlite %s: %w", path, ErrNotFound)
	}

	dsn := path
	if readOnly {
		dsn = "file:" + path + "?mode=ro"
	} else if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	b := &sqliteBackend{db: sqlDB, readOnly: readOnly}
	if !readOnly {
		if err := b.configurePragmas(); err != nil {
			sqlDB.Close()
			return nil, err
		}
		if _, err := sqlDB.Exec(sqliteSchema); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("create kv table: %w", err)
		}
	}
	return b, nil
}

func (sqliteDriver) Exists(path string) bool { return fileExists(path) }

func (sqliteDriver) Remove(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

type sqliteBackend struct {
	db       *sql.DB
	readOnly bool
}

func (b *sqliteBackend) configurePragmas() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := b.db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

func (b *sqliteBackend) Get(key []byte) ([]byte, error) {
	var v []byte
	err := b.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get: %w", err)
	}
	return v, nil
}

func (b *sqliteBackend) Put(key, value []byte) error {
	if b.readOnly {
		return ErrReadOnly
	}
	_, err := b.db.Exec(`
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("put: %w", err)
	}
	return nil
}

func (b *sqliteBackend) Delete(key []byte) error {
	if b.readOnly {
		return ErrReadOnly
	}
	if _, err := b.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func (b *sqliteBackend) NewIterator(start []byte) (Iterator, error) {
	if start == nil {
		start = []byte{}
	}
	rows, err := b.db.Query(`SELECT key, value FROM kv WHERE key >= ? ORDER BY key`, start)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	return &sqliteIterator{rows: rows}, nil
}

func (b *sqliteBackend) Close() error { return b.db.Close() }

type sqliteIterator struct {
	rows       *sql.Rows
	key, value []byte
	err        error
}

func (i *sqliteIterator) Next() bool {
	if i.err != nil || !i.rows.Next() {
		return false
	}
	if err := i.rows.Scan(&i.key, &i.value); err != nil {
		i.err = fmt.Errorf("scan row: %w", err)
		return false
	}
	return true
}

func (i *sqliteIterator) Key() []byte   { return i.key }
func (i *sqliteIterator) Value() []byte { return i.value }

func (i *sqliteIterator) Err() error {
	if i.err != nil {
		return i.err
	}
	return i.rows.Err()
}

func (i *sqliteIterator) Close() error {
	if err := i.rows.Close(); err != nil {
		return err
	}
	return i.Err()
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
