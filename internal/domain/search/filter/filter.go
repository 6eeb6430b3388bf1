package filter

import (
	"fmt"
	"strconv"
)

// MaxValues is the maximum number of values accepted by the in/not_in operators.
const MaxValues = 256

// DocIDField is the metadata field holding a segment's source document id.
const DocIDField = "doc_id"

// Operator is a single-field comparison.
type Operator string

// Supported operators.
const (
	Equals            Operator = "equals"
	NotEquals         Operator = "not_equals"
	In                Operator = "in"
	NotIn             Operator = "not_in"
	GreaterThan       Operator = "greater_than"
	GreaterThanEquals Operator = "greater_than_equals"
	LessThan          Operator = "less_than"
	LessThanEquals    Operator = "less_than_equals"
)

// IsValid checks if the operator is supported.
func (o Operator) IsValid() bool {
	switch o {
	case Equals, NotEquals, In, NotIn, GreaterThan, GreaterThanEquals, LessThan, LessThanEquals:
		return true
	}
	return false
}

// IsSet reports whether the operator takes a list of values.
func (o Operator) IsSet() bool { return o == In || o == NotIn }

// IsNumeric reports whether the operator compares numbers.
func (o Operator) IsNumeric() bool {
	return o == GreaterThan || o == GreaterThanEquals || o == LessThan || o == LessThanEquals
}

// IsNegated reports whether the operator excludes matches.
func (o Operator) IsNegated() bool { return o == NotEquals || o == NotIn }

// Metadata restricts retrieval to segments whose field satisfies the operator.
// The zero value is an absent filter.
type Metadata struct {
	field  string
	op     Operator
	values []string
	number float64
}

// New validates and creates a filter. value is a string or number for scalar
// operators, a []string or []any of strings for in/not_in, and a number for ranges.
func New(field string, op Operator, value any) (Metadata, error) {
	if field == "" {
		return Metadata{}, fmt.Errorf("filter field is required")
	}
	if op == "" {
		op = Equals
	}
	if !op.IsValid() {
		return Metadata{}, fmt.Errorf("invalid filter operator: %q", op)
	}

	switch {
	case op.IsNumeric():
		n, err := toNumber(value)
		if err != nil {
			return Metadata{}, fmt.Errorf("operator %s on field %q: %w", op, field, err)
		}
		return Metadata{field: field, op: op, number: n}, nil
	case op.IsSet():
		vals, err := toStrings(value)
		if err != nil {
			return Metadata{}, fmt.Errorf("operator %s on field %q: %w", op, field, err)
		}
		if len(vals) == 0 {
			return Metadata{}, fmt.Errorf("operator %s on field %q requires at least one value", op, field)
		}
		if len(vals) > MaxValues {
			return Metadata{}, fmt.Errorf("too many values for field %q (max %d)", field, MaxValues)
		}
		return Metadata{field: field, op: op, values: vals}, nil
	default:
		s, err := toString(value)
		if err != nil {
			return Metadata{}, fmt.Errorf("operator %s on field %q: %w", op, field, err)
		}
		if s == "" {
			return Metadata{}, fmt.Errorf("value is required for field %q", field)
		}
		return Metadata{field: field, op: op, values: []string{s}}, nil
	}
}

// DocumentIn restricts retrieval to the given document ids.
func DocumentIn(docIDs []string) (Metadata, error) {
	return New(DocIDField, In, docIDs)
}

// IsEmpty reports whether the filter is absent.
func (m Metadata) IsEmpty() bool { return m.field == "" }

// Field returns the filtered metadata field.
func (m Metadata) Field() string { return m.field }

// Operator returns the comparison operator.
func (m Metadata) Operator() Operator { return m.op }

// Values returns the compared string values (one for scalar operators).
func (m Metadata) Values() []string { return m.values }

// Number returns the numeric bound for range operators.
func (m Metadata) Number() float64 { return m.number }

func toNumber(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, fmt.Errorf("value %q is not a number", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("value of type %T is not a number", v)
	}
}

func toString(v any) (string, error) {
	switch s := v.(type) {
	case string:
		return s, nil
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(s), nil
	case int64:
		return strconv.FormatInt(s, 10), nil
	case bool:
		return strconv.FormatBool(s), nil
	default:
		return "", fmt.Errorf("value of type %T is not a scalar", v)
	}
}

func toStrings(v any) ([]string, error) {
	switch vals := v.(type) {
	case []string:
		return vals, nil
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			s, err := toString(item)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		return []string{vals}, nil
	default:
		return nil, fmt.Errorf("value of type %T is not a list", v)
	}
}
