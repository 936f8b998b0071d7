package types

import (
	"cmp"
	"fmt"

	"github.com/cockroachdb/errors"
)

// Value is the content of one register in one row. Numbers and strings use
// native Go types, bool is allowed for conditions, []Value holds a list and
// nil is an empty cell.
type Value = any

// AsFloat64 converts a numeric value.
func AsFloat64(v Value) (float64, bool) {
	switch x := v.(type) {
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}

// AsInt64 converts a numeric value, truncating floats.
func AsInt64(v Value) (int64, error) {
	switch x := v.(type) {
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case float32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	}
	return 0, errors.Newf("cannot convert %T to int64", v)
}

// Compare orders two values. Empty cells sort first. Numbers compare by
// value across types, strings and bools compare naturally, lists
// element-wise; values of unrelated types order by their type.
func Compare(a, b Value) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if fa, ok := AsFloat64(a); ok {
		if fb, ok := AsFloat64(b); ok {
			if ia, ok := a.(int64); ok {
				if ib, ok := b.(int64); ok {
					return cmp.Compare(ia, ib)
				}
			}
			return cmp.Compare(fa, fb)
		}
	}
	switch x := a.(type) {
	case string:
		if y, ok := b.(string); ok {
			return cmp.Compare(x, y)
		}
	case bool:
		if y, ok := b.(bool); ok {
			return cmp.Compare(boolRank(x), boolRank(y))
		}
	case []Value:
		if y, ok := b.([]Value); ok {
			for i := 0; i < len(x) && i < len(y); i++ {
				if c := Compare(x[i], y[i]); c != 0 {
					return c
				}
			}
			return cmp.Compare(len(x), len(y))
		}
	}
	return cmp.Compare(rank(a), rank(b))
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

// rank orders unrelated types: numbers, bools, strings, lists, the rest.
func rank(v Value) int {
	if _, ok := AsFloat64(v); ok {
		return 0
	}
	switch v.(type) {
	case bool:
		return 1
	case string:
		return 2
	case []Value:
		return 3
	}
	return 4
}

// ValueToString renders a value for text output.
func ValueToString(v Value) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case float32:
		return fmt.Sprintf("%g", x)
	case float64:
		return fmt.Sprintf("%g", x)
	}
	return fmt.Sprintf("%v", v)
}
