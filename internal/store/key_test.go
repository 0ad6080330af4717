package store

import (
	"errors"
	"strings"
	"testing"
)

func TestMakeAndSplitKey(t *testing.T) {
	key := MakeKey("mo untain", "mountain")
	if key != "mo untain \tmountain" {
		t.Fatalf("MakeKey = %q", key)
	}
	code, text, ok := SplitKey(key)
	if !ok || code != "mo untain" || text != "mountain" {
		t.Errorf("SplitKey = %q, %q, %v", code, text, ok)
	}

	if _, _, ok := SplitKey("no tab here"); ok {
		t.Error("SplitKey accepted a key without tab")
	}
	if _, _, ok := SplitKey("\ttext"); ok {
		t.Error("SplitKey accepted a key starting with tab")
	}
}

func TestRepairKey(t *testing.T) {
	tests := []struct {
		in       string
		want     string
		repaired bool
	}{
		{"ni hao \t你好", "ni hao \t你好", false},
		{"ni hao\t你好", "ni hao \t你好", true},
		{"a\tb", "a \tb", true},
		{" \tx", " \tx", false},
	}
	for _, tt := range tests {
		got, repaired, err := RepairKey(tt.in)
		if err != nil {
			t.Errorf("RepairKey(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want || repaired != tt.repaired {
			t.Errorf("RepairKey(%q) = %q, %v; want %q, %v", tt.in, got, repaired, tt.want, tt.repaired)
		}

		// Repair is idempotent and always yields a well-formed key.
		again, repaired2, err := RepairKey(got)
		if err != nil || again != got || repaired2 {
			t.Errorf("RepairKey(%q) second pass = %q, %v, %v", got, again, repaired2, err)
		}
		i := strings.IndexByte(again, '\t')
		if again[i-1] != ' ' {
			t.Errorf("repaired key %q has no space before tab", again)
		}
		if len(got)-len(tt.in) > 1 {
			t.Errorf("repair of %q inserted more than one byte", tt.in)
		}
	}
}

func TestRepairKeyMalformed(t *testing.T) {
	for _, in := range []string{"", "no tab", "\tleading"} {
		if _, _, err := RepairKey(in); !errors.Is(err, ErrMalformedKey) {
			t.Errorf("RepairKey(%q) err = %v, want ErrMalformedKey", in, err)
		}
	}
}

func TestNormalizeCode(t *testing.T) {
	tests := map[string]string{
		"ha lo":          "ha lo",
		"  ha   lo  ":    "ha lo",
		"mo untain":      "mo untain",
		"single":         "single",
		"":               "",
		"   ":            "",
		"a  b   c    d ": "a b c d",
	}
	for in, want := range tests {
		if got := NormalizeCode(in); got != want {
			t.Errorf("NormalizeCode(%q) = %q, want %q", in, got, want)
		}
	}
}
