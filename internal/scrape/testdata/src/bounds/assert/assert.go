// Package assert is a minimal stub mimicking testify/assert for
// fixture purposes. Its call signatures match testify so the
// assertion scraper can exercise its testify recognition logic.
package assert

import "testing"

// Less checks e1 < e2 (stub).
func Less(t *testing.T, e1, e2 float64, _ ...interface{}) bool {
	return e1 < e2
}

// Greater checks e1 > e2 (stub).
func Greater(t *testing.T, e1, e2 float64, _ ...interface{}) bool {
	return e1 > e2
}

// InDelta checks |expected-actual| <= delta (stub).
func InDelta(t *testing.T, expected, actual, delta float64, _ ...interface{}) bool {
	d := expected - actual
	return d <= delta && -d <= delta
}

// Contains checks substring containment (stub).
func Contains(t *testing.T, s, sub string, _ ...interface{}) bool {
	return len(sub) <= len(s)
}
