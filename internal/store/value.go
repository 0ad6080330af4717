package store

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrMalformedValue is returned by Unpack for a record not produced by Pack.
var ErrMalformedValue = errors.New("store: malformed value")

// Value is the statistics record stored under every entry key.
type Value struct {
	// Commits counts how often the entry was committed. A negative count
	// marks the entry deleted; only the sign is meaningful then.
	Commits int
	// Dee is the decayed usage weight.
	Dee float64
	// Tick is the logical clock of the originating store when the value
	// was last written.
	Tick uint64
}

// Deleted reports whether v is a tombstone.
func (v Value) Deleted() bool { return v.Commits < 0 }

// Pack encodes v as "c=<commits> d=<dee> t=<tick>". Dee is written in its
// shortest exact form, so Unpack(Pack(v)) returns v unchanged.
func (v Value) Pack() string {
	return "c=" + strconv.Itoa(v.Commits) +
		" d=" + strconv.FormatFloat(v.Dee, 'g', -1, 64) +
		" t=" + strconv.FormatUint(v.Tick, 10)
}

// Unpack decodes a record written by Pack. Every field must be present
// exactly once.
func Unpack(s string) (Value, error) {
	var v Value
	if s == "" {
		return v, fmt.Errorf("%w: empty", ErrMalformedValue)
	}

	var seen [3]bool
	for _, field := range strings.Split(s, " ") {
		k, raw, ok := strings.Cut(field, "=")
		if !ok || raw == "" {
			return Value{}, fmt.Errorf("%w: field %q", ErrMalformedValue, field)
		}
		var idx int
		var err error
		switch k {
		case "c":
			idx = 0
			v.Commits, err = strconv.Atoi(raw)
		case "d":
			idx = 1
			v.Dee, err = strconv.ParseFloat(raw, 64)
			if err == nil && (math.IsNaN(v.Dee) || math.IsInf(v.Dee, 0)) {
				err = errors.New("not finite")
			}
		case "t":
			idx = 2
			v.Tick, err = strconv.ParseUint(raw, 10, 64)
		default:
			return Value{}, fmt.Errorf("%w: unknown field %q", ErrMalformedValue, k)
		}
		if err != nil {
			return Value{}, fmt.Errorf("%w: field %q: %v", ErrMalformedValue, field, err)
		}
		if seen[idx] {
			return Value{}, fmt.Errorf("%w: duplicate field %q", ErrMalformedValue, k)
		}
		seen[idx] = true
	}
	if !seen[0] || !seen[1] || !seen[2] {
		return Value{}, fmt.Errorf("%w: %q missing fields", ErrMalformedValue, s)
	}
	return v, nil
}
