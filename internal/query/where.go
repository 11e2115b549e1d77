package query

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/JonMunkholm/sheetq/internal/sheet"
)

// Criterion is what a where-clause says about one column: either a Scalar
// (sugar for equal) or an explicit list of operator/operand pairs.
type Criterion interface{ isCriterion() }

// Scalar matches cells loosely equal to Value.
type Scalar struct {
	Value sheet.Value
}

// Operators is a conjunction of operator/operand pairs on one column.
type Operators []Pair

func (Scalar) isCriterion()    {}
func (Operators) isCriterion() {}

// Pair is one operator applied to one operand.
type Pair struct {
	Op      Operator
	Operand any
}

// Condition binds a criterion to a column name.
type Condition struct {
	Column    string
	Criterion Criterion
}

// Where is an ordered where-clause. Conditions are combined with AND; the
// order decides the order in which columns are scanned.
type Where []Condition

// Eq appends an equality condition.
func (w Where) Eq(column string, value sheet.Value) Where {
	return append(w, Condition{Column: column, Criterion: Scalar{Value: value}})
}

// Op appends a single-operator condition.
func (w Where) Op(column string, op Operator, operand any) Where {
	return append(w, Condition{Column: column, Criterion: Operators{{Op: op, Operand: operand}}})
}

// Columns returns the column names referenced, in clause order.
func (w Where) Columns() []string {
	cols := make([]string, len(w))
	for i, c := range w {
		cols[i] = c.Column
	}
	return cols
}

// pairs returns the operator/operand pairs a criterion expands to.
func pairs(c Criterion) []Pair {
	switch x := c.(type) {
	case Scalar:
		return []Pair{{Op: OpEqual, Operand: x.Value}}
	case Operators:
		return x
	}
	return nil
}

// UnmarshalJSON decodes {"col": scalar | {"op": operand, ...}, ...}
// preserving key order. Objects become Operators, everything else a Scalar.
func (w *Where) UnmarshalJSON(data []byte) error {
	var out Where
	err := walkObject(data, func(key string, raw json.RawMessage) error {
		raw = bytes.TrimSpace(raw)
		if len(raw) > 0 && raw[0] == '{' {
			var ops Operators
			err := walkObject(raw, func(op string, operand json.RawMessage) error {
				v, err := decodeValue(operand)
				if err != nil {
					return err
				}
				ops = append(ops, Pair{Op: Operator(op), Operand: v})
				return nil
			})
			if err != nil {
				return fmt.Errorf("column %q: %w", key, err)
			}
			out = append(out, Condition{Column: key, Criterion: ops})
			return nil
		}
		if len(raw) > 0 && raw[0] == '[' {
			return fmt.Errorf("column %q: %w: a list is only valid as an operator operand", key, ErrInvalidOperand)
		}
		v, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("column %q: %w", key, err)
		}
		out = append(out, Condition{Column: key, Criterion: Scalar{Value: v}})
		return nil
	})
	if err != nil {
		return err
	}
	*w = out
	return nil
}

// MarshalJSON encodes the clause back to its ordered object form.
func (w Where) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range w {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(c.Column)
		buf.Write(key)
		buf.WriteByte(':')

		switch x := c.Criterion.(type) {
		case Scalar:
			v, err := json.Marshal(x.Value)
			if err != nil {
				return nil, err
			}
			buf.Write(v)
		case Operators:
			buf.WriteByte('{')
			for j, p := range x {
				if j > 0 {
					buf.WriteByte(',')
				}
				op, _ := json.Marshal(string(p.Op))
				buf.Write(op)
				buf.WriteByte(':')
				v, err := json.Marshal(operandJSON(p.Operand))
				if err != nil {
					return nil, err
				}
				buf.Write(v)
			}
			buf.WriteByte('}')
		default:
			buf.WriteString("null")
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// walkObject calls fn for each member of a JSON object, in document order.
func walkObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected a JSON object")
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}

// decodeValue decodes a JSON scalar or array, keeping integers as int.
func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalizeJSON(v), nil
}

func normalizeJSON(v any) any {
	switch x := v.(type) {
	case json.Number:
		return sheet.Normalize(x)
	case []any:
		for i := range x {
			x[i] = normalizeJSON(x[i])
		}
		return x
	}
	return v
}

// UnmarshalJSON decodes a record object, keeping integers as int so values
// written through the HTTP API compare the same as those set in Go.
func (r *Record) UnmarshalJSON(data []byte) error {
	out := Record{}
	err := walkObject(data, func(key string, raw json.RawMessage) error {
		v, err := decodeValue(raw)
		if err != nil {
			return fmt.Errorf("column %q: %w", key, err)
		}
		out[key] = v
		return nil
	})
	if err != nil {
		return err
	}
	*r = out
	return nil
}
