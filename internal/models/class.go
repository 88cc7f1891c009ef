package models

import "fmt"

// ClassType is an energy-efficiency class per EN ISO 52120-1.
// A is the best achievable class, D the worst. NA marks a sub-category
// that does not apply to the building.
type ClassType string

const (
	ClassA  ClassType = "A"
	ClassB  ClassType = "B"
	ClassC  ClassType = "C"
	ClassD  ClassType = "D"
	ClassNA ClassType = "NA"
)

var classSeverity = map[ClassType]int{
	ClassA: 1,
	ClassB: 2,
	ClassC: 3,
	ClassD: 4,
}

// Severity returns the comparable badness of a class (A=1 .. D=4).
// NA and unknown values return 0 and never participate in worst-class
// comparisons.
func (c ClassType) Severity() int {
	return classSeverity[c]
}

// IsNA reports whether the class is the not-applicable marker.
func (c ClassType) IsNA() bool {
	return c == ClassNA
}

// Valid reports whether the value is one of the five known classes.
func (c ClassType) Valid() bool {
	return c == ClassNA || classSeverity[c] != 0
}

// ParseClass validates a wire value into a ClassType.
func ParseClass(s string) (ClassType, error) {
	c := ClassType(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown class %q", s)
	}
	return c, nil
}
