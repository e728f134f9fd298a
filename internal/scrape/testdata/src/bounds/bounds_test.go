package bounds

import (
	"testing"

	"github.com/unbound-force/boundfit/internal/scrape/testdata/src/bounds/assert"
)

func TestLatency(t *testing.T) {
	got := Latency(3)
	if got > 20.0 {
		t.Errorf("latency too high: %v", got)
	}
	if 1.5 > got {
		t.Fatalf("latency too low: %v", got)
	}
}

func TestCount(t *testing.T) {
	n := Count()
	if n >= 10 {
		t.Errorf("count too high: %d", n)
	}
	if n != 3 {
		t.Errorf("count = %d, want 3", n)
	}
}

func TestRatio(t *testing.T) {
	r := Ratio()
	assert.Less(t, r, 0.9)
	assert.Greater(t, r, -1e-3)
	assert.InDelta(t, 0.75, r, 0.01)
	assert.Contains(t, "ratio", "rat")
	t.Run("non-negative", func(t *testing.T) {
		if r < float64(0) {
			t.Error("negative ratio")
		}
	})
}

func TestNoLiteral(t *testing.T) {
	a, b := Ratio(), Latency(1)
	if a > b {
		t.Error("ratio above latency")
	}
}

func checkCeiling(t *testing.T, v float64) {
	if v > 100 {
		t.Errorf("%v above ceiling", v)
	}
}

func TestHelper(t *testing.T) {
	checkCeiling(t, Latency(2))
}
