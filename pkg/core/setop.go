package core

import "fmt"

// SetOperation is one of the set-style operators a combine applies to a
// pair of remote objects. Operators are not commutative in general: the
// selected object is always the left operand.
type SetOperation string

const (
	SetUnion        SetOperation = "Union"
	SetIntersection SetOperation = "Intersection"
	SetExclude      SetOperation = "Exclude"
	SetReplace      SetOperation = "Replace"
)

// AllSetOperations lists the supported combine operators.
func AllSetOperations() []SetOperation {
	return []SetOperation{SetUnion, SetIntersection, SetExclude, SetReplace}
}

// Valid reports whether op is a supported operator.
func (op SetOperation) Valid() bool {
	switch op {
	case SetUnion, SetIntersection, SetExclude, SetReplace:
		return true
	default:
		return false
	}
}

func (op SetOperation) String() string {
	return string(op)
}

// ParseSetOperation validates a wire or user-supplied operator name.
func ParseSetOperation(s string) (SetOperation, error) {
	op := SetOperation(s)
	if !op.Valid() {
		return "", fmt.Errorf("unknown set operation %q", s)
	}
	return op, nil
}
