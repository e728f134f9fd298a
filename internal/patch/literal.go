package patch

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/unbound-force/boundfit/internal/taxonomy"
)

// minDecimals is the minimum number of fractional digits rendered
// for a floating-point literal.
const minDecimals = 4

// RenderLiteral renders bound in the notation of the original literal
// source text. Integers are rounded outward (up for MAX_BOUND, down
// for MIN_BOUND) and keep their base prefix. Floats keep at least
// their original number of decimals and exponent notation when the
// original used it, also rounded outward.
func RenderLiteral(literal string, bound float64, d taxonomy.Direction) (string, error) {
	if math.IsInf(bound, 0) || math.IsNaN(bound) {
		return "", fmt.Errorf("cannot render non-finite bound %v", bound)
	}
	if !d.IsBound() {
		return "", fmt.Errorf("cannot render a bound for direction %s", d)
	}

	body := strings.ReplaceAll(strings.TrimLeft(literal, "+-"), "_", "")
	lower := strings.ToLower(body)

	switch {
	case strings.HasPrefix(lower, "0x") && strings.ContainsAny(lower, ".p"):
		// Hexadecimal floats are rendered as decimal floats.
		return formatFixed(bound, minDecimals, d), nil
	case strings.HasPrefix(lower, "0x"):
		return formatInt(bound, d, 16, body[:2])
	case strings.HasPrefix(lower, "0b"):
		return formatInt(bound, d, 2, body[:2])
	case strings.HasPrefix(lower, "0o"):
		return formatInt(bound, d, 8, body[:2])
	case strings.ContainsAny(lower, ".e"):
		mantissa, _, hasExp := strings.Cut(lower, "e")
		decimals := 0
		if _, frac, ok := strings.Cut(mantissa, "."); ok {
			decimals = len(frac)
		}
		decimals = max(decimals, minDecimals)
		if hasExp {
			return formatExp(bound, decimals, d), nil
		}
		return formatFixed(bound, decimals, d), nil
	case len(lower) > 1 && lower[0] == '0':
		return formatInt(bound, d, 8, "0")
	default:
		return formatInt(bound, d, 10, "")
	}
}

// renderFractional is RenderLiteral for a quantity that takes
// non-integer values: integer literals switch to decimal notation
// with minDecimals digits.
func renderFractional(literal string, bound float64, d taxonomy.Direction) (string, error) {
	if !isIntLiteral(literal) {
		return RenderLiteral(literal, bound, d)
	}
	if math.IsInf(bound, 0) || math.IsNaN(bound) {
		return "", fmt.Errorf("cannot render non-finite bound %v", bound)
	}
	if !d.IsBound() {
		return "", fmt.Errorf("cannot render a bound for direction %s", d)
	}
	return formatFixed(bound, minDecimals, d), nil
}

func isIntLiteral(literal string) bool {
	lower := strings.ToLower(strings.TrimLeft(literal, "+-"))
	switch {
	case strings.HasPrefix(lower, "0x"):
		return !strings.ContainsAny(lower, ".p")
	case strings.HasPrefix(lower, "0b"), strings.HasPrefix(lower, "0o"):
		return true
	}
	return !strings.ContainsAny(lower, ".e")
}

func formatInt(bound float64, d taxonomy.Direction, base int, prefix string) (string, error) {
	v := roundOutward(bound, 1, d)
	if v > math.MaxInt64 || v < math.MinInt64 {
		return "", fmt.Errorf("bound %v overflows an integer literal", bound)
	}
	n := int64(v)
	if n == 0 {
		return "0", nil
	}
	sign := ""
	if n < 0 {
		sign, n = "-", -n
	}
	return sign + prefix + strconv.FormatInt(n, base), nil
}

func formatFixed(bound float64, decimals int, d taxonomy.Direction) string {
	v := roundOutward(bound, math.Pow10(-decimals), d)
	return strconv.FormatFloat(v, 'f', decimals, 64)
}

func formatExp(bound float64, decimals int, d taxonomy.Direction) string {
	if bound == 0 {
		return strconv.FormatFloat(0, 'e', decimals, 64)
	}
	exp := int(math.Floor(math.Log10(math.Abs(bound))))
	v := roundOutward(bound, math.Pow10(exp-decimals), d)
	return strconv.FormatFloat(v, 'e', decimals, 64)
}

// roundOutward rounds v to a multiple of step away from the asserted
// region: up for MAX_BOUND, down for MIN_BOUND. Values already on a
// multiple, up to float noise, are kept.
func roundOutward(v, step float64, d taxonomy.Direction) float64 {
	q := v / step
	if r := math.Round(q); math.Abs(q-r) < 1e-9*math.Max(1, math.Abs(q)) {
		q = r
	}
	if d == taxonomy.DirectionMin {
		return math.Floor(q) * step
	}
	return math.Ceil(q) * step
}
