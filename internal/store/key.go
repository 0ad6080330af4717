package store

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedKey is returned for an entry key with no tab, or with the tab
// in first position.
var ErrMalformedKey = errors.New("store: malformed key")

// keySeparator sits between the code and the text of every entry key.
const keySeparator = " \t"

// MakeKey builds the entry key for code and text.
func MakeKey(code, text string) string {
	return code + keySeparator + text
}

// SplitKey returns the code (without its trailing space) and the text of an
// entry key.
func SplitKey(key string) (code, text string, ok bool) {
	i := strings.IndexByte(key, '\t')
	if i <= 0 {
		return "", "", false
	}
	return strings.TrimSuffix(key[:i], " "), key[i+1:], true
}

// RepairKey returns key with a space inserted before the tab when an older
// importer left it out. repaired reports whether the key changed.
func RepairKey(key string) (fixed string, repaired bool, err error) {
	i := strings.IndexByte(key, '\t')
	if i <= 0 {
		return key, false, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}
	if key[i-1] == ' ' {
		return key, false, nil
	}
	return key[:i] + " " + key[i:], true, nil
}

// NormalizeCode trims the code and collapses runs of spaces between its
// syllables.
func NormalizeCode(code string) string {
	parts := strings.Split(strings.TrimSpace(code), " ")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
