package idgen

import (
	"strings"
	"testing"
)

func TestUUIDv7_UniqueAndSortable(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]bool)
	var prev string
	for i := 0; i < 100; i++ {
		id := gen()
		if seen[id] {
			t.Fatalf("duplicate id: %s", id)
		}
		seen[id] = true
		// UUIDv7 embeds a millisecond timestamp prefix, so IDs generated in
		// order never sort before an earlier one.
		if prev != "" && id < prev {
			t.Fatalf("id %s sorts before earlier id %s", id, prev)
		}
		prev = id
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("kw_", UUIDv7())
	id := gen()
	if !strings.HasPrefix(id, "kw_") {
		t.Fatalf("id %q missing prefix", id)
	}
	if _, err := Parse(strings.TrimPrefix(id, "kw_")); err != nil {
		t.Fatalf("suffix is not a UUID: %v", err)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse("not-a-uuid"); err == nil {
		t.Fatal("expected error for invalid UUID")
	}
}
