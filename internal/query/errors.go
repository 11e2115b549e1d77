package query

import (
	"errors"
	"strings"
)

// ErrUnknownOperator is returned by Compile when a where-clause names an
// operator outside the catalog.
var ErrUnknownOperator = errors.New("unknown operator")

// ErrInvalidOperand is returned by Compile when an operand has the wrong
// shape for its operator (e.g. between without two numeric bounds).
var ErrInvalidOperand = errors.New("invalid operand")

// UnknownColumnError reports every requested column name that is absent from
// the header row. It is returned before any side effect takes place.
type UnknownColumnError struct {
	Columns []string
}

func (e *UnknownColumnError) Error() string {
	return "unknown column(s): " + strings.Join(e.Columns, ", ")
}

// unknownColumns returns an *UnknownColumnError for the names missing from
// h, or nil when all names resolve.
func unknownColumns(h HeaderIndex, names []string) error {
	if missing := h.Unknown(names); len(missing) > 0 {
		return &UnknownColumnError{Columns: missing}
	}
	return nil
}
