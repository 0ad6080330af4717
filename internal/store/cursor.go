package store

import (
	"bytes"

	"github.com/lazypower/lexisync/internal/kv"
)

// Cursor walks the records of a DB whose keys start with a prefix, in key
// order. Jump repositions it.
type Cursor struct {
	db     *DB
	prefix []byte
	it     kv.Iterator
	done   bool

	key, value string
	err        error
}

// Query returns a cursor over every record whose key starts with prefix.
// Query("") covers metadata too; Jump(" ") skips past it.
func (db *DB) Query(prefix string) (*Cursor, error) {
	if db.backend == nil {
		return nil, ErrClosed
	}
	c := &Cursor{db: db, prefix: []byte(prefix)}
	if err := c.Jump(prefix); err != nil {
		return nil, err
	}
	return c, nil
}

// Jump moves the cursor to the first key >= key.
func (c *Cursor) Jump(key string) error {
	if c.it != nil {
		c.it.Close()
		c.it = nil
	}
	start := []byte(key)
	if bytes.Compare(start, c.prefix) < 0 {
		start = c.prefix
	}
	it, err := c.db.backend.NewIterator(start)
	if err != nil {
		c.err = err
		return err
	}
	c.it = it
	c.done = false
	return nil
}

// Next advances to the next record.
func (c *Cursor) Next() bool {
	if c.it == nil || c.done {
		return false
	}
	if !c.it.Next() {
		c.done = true
		return false
	}
	k := c.it.Key()
	if !bytes.HasPrefix(k, c.prefix) {
		c.done = true
		return false
	}
	c.key = string(k)
	c.value = string(c.it.Value())
	return true
}

// Key returns the current key.
func (c *Cursor) Key() string { return c.key }

// Value returns the current packed value.
func (c *Cursor) Value() string { return c.value }

// Err returns the first error met while iterating.
func (c *Cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	if c.it != nil {
		return c.it.Err()
	}
	return nil
}

// Close releases the underlying iterator.
func (c *Cursor) Close() error {
	if c.it == nil {
		return nil
	}
	err := c.it.Close()
	c.it = nil
	return err
}
