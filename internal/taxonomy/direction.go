package taxonomy

import (
	"fmt"
	"go/token"
)

// Direction is the bound direction of an assertion. The zero value is
// not a valid direction; values are only produced by the constants,
// ParseDirection and the operator mappings below.
type Direction int

// Direction constants.
const (
	DirectionMax Direction = iota + 1
	DirectionMin
	DirectionEquality
)

var directionNames = map[Direction]string{
	DirectionMax:      "MAX_BOUND",
	DirectionMin:      "MIN_BOUND",
	DirectionEquality: "EQUALITY",
}

// ParseDirection returns the Direction named by s.
func ParseDirection(s string) (Direction, error) {
	for d, name := range directionNames {
		if name == s {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// String returns the canonical tag (MAX_BOUND, MIN_BOUND, EQUALITY).
func (d Direction) String() string {
	if name, ok := directionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Valid reports whether d is one of the declared directions.
func (d Direction) Valid() bool {
	_, ok := directionNames[d]
	return ok
}

// IsBound reports whether d is a max or min bound.
func (d Direction) IsBound() bool {
	return d == DirectionMax || d == DirectionMin
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("invalid direction %d", int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(b []byte) error {
	parsed, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// failureOpDirection maps the operator of an if-statement failure
// condition "actual OP literal" to the direction it guards.
var failureOpDirection = map[token.Token]Direction{
	token.GTR: DirectionMax, // if x > L { fail } => x <= L
	token.GEQ: DirectionMax,
	token.LSS: DirectionMin, // if x < L { fail } => x >= L
	token.LEQ: DirectionMin,
	token.EQL: DirectionEquality,
	token.NEQ: DirectionEquality,
}

// FailureConditionDirection returns the direction guarded by a failure
// branch "if a OP b". reverse is true when the literal is a.
func FailureConditionDirection(op token.Token, reverse bool) (Direction, bool) {
	d, ok := failureOpDirection[op]
	if !ok {
		return 0, false
	}
	if reverse {
		d = d.mirror()
	}
	return d, true
}

// testifyDirection maps a testify method called as "M(t, actual,
// literal)" to the direction it asserts.
var testifyDirection = map[string]Direction{
	"Less":           DirectionMax,
	"LessOrEqual":    DirectionMax,
	"Greater":        DirectionMin,
	"GreaterOrEqual": DirectionMin,
	"Equal":          DirectionEquality,
	"EqualValues":    DirectionEquality,
	"InDelta":        DirectionEquality,
	"InEpsilon":      DirectionEquality,
}

// TestifyDirection returns the direction asserted by a testify call.
// reverse is true when the literal is the first compared argument.
func TestifyDirection(method string, reverse bool) (Direction, bool) {
	d, ok := testifyDirection[method]
	if !ok {
		return 0, false
	}
	if reverse {
		d = d.mirror()
	}
	return d, true
}

func (d Direction) mirror() Direction {
	switch d {
	case DirectionMax:
		return DirectionMin
	case DirectionMin:
		return DirectionMax
	}
	return d
}
