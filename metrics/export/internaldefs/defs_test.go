package internaldefs

import (
	"strings"
	"testing"
)

func TestCumulative(t *testing.T) {
	got := Cumulative([]uint64{1, 2, 3})
	want := [BucketCount]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
	if Cumulative(nil) != [BucketCount]uint64{} {
		t.Fatal("nil input should produce zero buckets")
	}
}

func TestCounterNamesAreUniqueAndPrefixed(t *testing.T) {
	seen := map[string]bool{}
	for _, def := range CounterDefs {
		if !strings.HasPrefix(def.Name, "identity_") || !strings.HasSuffix(def.Name, "_total") {
			t.Fatalf("bad counter name %q", def.Name)
		}
		if seen[def.Name] {
			t.Fatalf("duplicate counter name %q", def.Name)
		}
		seen[def.Name] = true
	}
}
