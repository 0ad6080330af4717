package kv

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/golang/snappy"
)

// Snapshot stream layout, inside a snappy framed stream:
//
//	magic (8 bytes)
//	record*    tagRecord | uvarint(len key) | key | uvarint(len value) | value
//	trailer    tagEnd | uvarint(record count)
var snapshotMagic = []byte("LXSNAP\x00\x01")

const (
	tagEnd    byte = 0
	tagRecord byte = 1

	maxSnapshotField = 1 << 24
)

// ErrCorruptSnapshot is returned by Load for a stream that was not produced
// by Dump or was cut short.
var ErrCorruptSnapshot = errors.New("kv: corrupt snapshot")

// Dump writes every key/value pair of b to w in key order and returns the
// number of records written.
func Dump(b Backend, w io.Writer) (int, error) {
	sw := snappy.NewBufferedWriter(w)
	if _, err := sw.Write(snapshotMagic); err != nil {
		return 0, fmt.Errorf("write snapshot header: %w", err)
	}

	it, err := b.NewIterator(nil)
	if err != nil {
		return 0, fmt.Errorf("open iterator: %w", err)
	}
	defer it.Close()

	tmp := make([]byte, binary.MaxVarintLen64)
	putField := func(p []byte) error {
		n := binary.PutUvarint(tmp, uint64(len(p)))
		if _, err := sw.Write(tmp[:n]); err != nil {
			return err
		}
		_, err := sw.Write(p)
		return err
	}

	count := 0
	for it.Next() {
		if _, err := sw.Write([]byte{tagRecord}); err != nil {
			return count, fmt.Errorf("write record: %w", err)
		}
		if err := putField(it.Key()); err != nil {
			return count, fmt.Errorf("write record: %w", err)
		}
		if err := putField(it.Value()); err != nil {
			return count, fmt.Errorf("write record: %w", err)
		}
		count++
	}
	if err := it.Err(); err != nil {
		return count, fmt.Errorf("iterate: %w", err)
	}

	n := binary.PutUvarint(tmp, uint64(count))
	if _, err := sw.Write(append([]byte{tagEnd}, tmp[:n]...)); err != nil {
		return count, fmt.Errorf("write snapshot trailer: %w", err)
	}
	if err := sw.Close(); err != nil {
		return count, fmt.Errorf("flush snapshot: %w", err)
	}
	return count, nil
}

// Load reads a stream produced by Dump and writes every record into b.
// Records already written stay written when the stream turns out corrupt.
func Load(b Backend, r io.Reader) (int, error) {
	br := bufio.NewReader(snappy.NewReader(r))

	head := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(br, head); err != nil {
		return 0, fmt.Errorf("%w: read header: %v", ErrCorruptSnapshot, err)
	}
	if !bytes.Equal(head, snapshotMagic) {
		return 0, fmt.Errorf("%w: bad magic", ErrCorruptSnapshot)
	}

	readField := func() ([]byte, error) {
		n, err := binary.ReadUvarint(br)
		if err != nil {
			return nil, err
		}
		if n > maxSnapshotField {
			return nil, fmt.Errorf("field length %d too large", n)
		}
		p := make([]byte, n)
		if _, err := io.ReadFull(br, p); err != nil {
			return nil, err
		}
		return p, nil
	}

	count := 0
	for {
		tag, err := br.ReadByte()
		if err != nil {
			return count, fmt.Errorf("%w: record %d: %v", ErrCorruptSnapshot, count, err)
		}
		switch tag {
		case tagRecord:
			key, err := readField()
			if err != nil {
				return count, fmt.Errorf("%w: record %d key: %v", ErrCorruptSnapshot, count, err)
			}
			value, err := readField()
			if err != nil {
				return count, fmt.Errorf("%w: record %d value: %v", ErrCorruptSnapshot, count, err)
			}
			if err := b.Put(key, value); err != nil {
				return count, fmt.Errorf("load record %d: %w", count, err)
			}
			count++
		case tagEnd:
			want, err := binary.ReadUvarint(br)
			if err != nil {
				return count, fmt.Errorf("%w: read trailer: %v", ErrCorruptSnapshot, err)
			}
			if want != uint64(count) {
				return count, fmt.Errorf("%w: %d records, trailer says %d", ErrCorruptSnapshot, count, want)
			}
			return count, nil
		default:
			return count, fmt.Errorf("%w: unknown tag %#x", ErrCorruptSnapshot, tag)
		}
	}
}
