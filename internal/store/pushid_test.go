package store

import (
	"sort"
	"testing"
	"time"
)

func TestNewPushIDShape(t *testing.T) {
	id := NewPushID()
	if len(id) != 20 {
		t.Fatalf("len(id) = %d, want 20", len(id))
	}
	if !segmentPattern.MatchString(id) {
		t.Fatalf("id %q is not a valid path segment", id)
	}
}

func TestPushIDsAreUniqueAndOrdered(t *testing.T) {
	fixed := time.UnixMilli(1700000000000)
	g := &pushIDGenerator{now: func() time.Time { return fixed }}

	ids := make([]string, 0, 200)
	seen := map[string]bool{}
	for i := 0; i < 200; i++ {
		id := g.next()
		if seen[id] {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = true
		ids = append(ids, id)
	}

	if !sort.StringsAreSorted(ids) {
		t.Fatal("ids generated in the same millisecond are not ordered")
	}
}

func TestPushIDsSortByTime(t *testing.T) {
	current := time.UnixMilli(1700000000000)
	g := &pushIDGenerator{now: func() time.Time { return current }}

	first := g.next()
	current = current.Add(time.Second)
	second := g.next()

	if first >= second {
		t.Fatalf("first %q should sort before second %q", first, second)
	}
}
