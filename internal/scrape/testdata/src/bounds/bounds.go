// Package bounds is a fixture with numeric bound assertions in its
// tests.
package bounds

// Latency returns a simulated latency in milliseconds.
func Latency(i int) float64 {
	return 5 + float64(i%7)*0.5
}

// Count returns a fixed count.
func Count() int {
	return 3
}

// Ratio returns a fixed ratio.
func Ratio() float64 {
	return 0.75
}
