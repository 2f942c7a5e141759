package cli

import (
	"math"
	"strings"
	"testing"

	"github.com/matzehuels/blockworld/pkg/mml"
)

func TestStatsTable(t *testing.T) {
	st := mml.Stats{Counts: map[string]int{"1": 3, "2": 1}, Total: 4, Width: 5}
	out := statsTable(st)

	for _, want := range []string{"SIZE", "1×1", "2×2", "75.0%", "25.0%", "total"} {
		if !strings.Contains(out, want) {
			t.Errorf("statsTable() missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "1×1") > strings.Index(out, "2×2") {
		t.Error("sizes should be listed ascending")
	}
}

func TestStatsTableEmpty(t *testing.T) {
	out := statsTable(mml.Stats{Counts: map[string]int{}})
	if !strings.Contains(out, "total") {
		t.Errorf("empty stats should still show the total row:\n%s", out)
	}
}

func TestFillRatio(t *testing.T) {
	st := mml.Stats{Counts: map[string]int{"1": 1, "2": 1, "4": 1}, Total: 3}
	// 1 + 4 + 16 cells on a 5x4 grid
	if got := fillRatio(st, 5, 4); math.Abs(got-21.0/20.0) > 1e-9 {
		t.Errorf("fillRatio() = %v, want %v", got, 21.0/20.0)
	}
	if got := fillRatio(st, 0, 4); got != 0 {
		t.Errorf("fillRatio() on empty grid = %v, want 0", got)
	}
}
