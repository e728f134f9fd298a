package sampling

import (
	"bufio"
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/unbound-force/boundfit/internal/taxonomy"
)

// maxLineSize bounds a single line of test output.
const maxLineSize = 1 << 20

// ParseOutput extracts the operand values from the output of one
// invocation. Every line containing tag must carry at least two
// finite numbers after it. When the assertion ran several times, the
// line whose actual value is the direction extreme is kept. A record
// without any usable line is a parse error.
func ParseOutput(out []byte, tag string, d taxonomy.Direction, reverse bool) taxonomy.SampleRecord {
	sc := bufio.NewScanner(bytes.NewReader(out))
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var best []float64
	actual := 0
	if reverse {
		actual = 1
	}
	for sc.Scan() {
		line := sc.Text()
		idx := strings.Index(line, tag)
		if idx < 0 {
			continue
		}
		values, err := parseFields(line[idx+len(tag):])
		if err != nil {
			return taxonomy.SampleRecord{ParseError: true, Err: err.Error()}
		}
		if best == nil || extreme(d, values[actual], best[actual]) {
			best = values
		}
	}
	if err := sc.Err(); err != nil {
		return taxonomy.SampleRecord{ParseError: true, Err: fmt.Sprintf("reading output: %v", err)}
	}
	if best == nil {
		return taxonomy.SampleRecord{ParseError: true, Err: "no tagged output"}
	}
	return taxonomy.SampleRecord{Values: best}
}

func parseFields(s string) ([]float64, error) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return nil, fmt.Errorf("expected two values, got %q", strings.TrimSpace(s))
	}
	values := make([]float64, 2)
	for i, f := range fields[:2] {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("non-numeric value %q", f)
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("non-finite value %q", f)
		}
		values[i] = v
	}
	return values, nil
}

// extreme reports whether v is further in the bound direction than
// cur.
func extreme(d taxonomy.Direction, v, cur float64) bool {
	if d == taxonomy.DirectionMin {
		return v < cur
	}
	return v > cur
}
