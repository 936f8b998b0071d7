package pipeline

import (
	"github.com/cockroachdb/errors"

	"github.com/harshithgowdakt/blockexec/internal/executor"
	"github.com/harshithgowdakt/blockexec/internal/rows"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// ErrUnknownFunc is returned for a calculation naming no known function.
var ErrUnknownFunc = errors.New("unknown function")

type binaryFunc func(a, b types.Value) (types.Value, error)

var calculationFuncs = map[string]binaryFunc{
	"add": intOp(func(a, b int64) (int64, error) { return a + b, nil }),
	"sub": intOp(func(a, b int64) (int64, error) { return a - b, nil }),
	"mul": intOp(func(a, b int64) (int64, error) { return a * b, nil }),
	"mod": intOp(func(a, b int64) (int64, error) {
		if b == 0 {
			return 0, errors.New("modulo by zero")
		}
		return a % b, nil
	}),
	"eq": compareOp(func(c int) bool { return c == 0 }),
	"ne": compareOp(func(c int) bool { return c != 0 }),
	"lt": compareOp(func(c int) bool { return c < 0 }),
	"gt": compareOp(func(c int) bool { return c > 0 }),
	// range turns n into the list [0, n).
	"range": func(a, _ types.Value) (types.Value, error) {
		n, err := types.AsInt64(a)
		if err != nil {
			return nil, err
		}
		list := make([]types.Value, 0, max(n, 0))
		for i := int64(0); i < n; i++ {
			list = append(list, i)
		}
		return list, nil
	},
}

func intOp(op func(a, b int64) (int64, error)) binaryFunc {
	return func(a, b types.Value) (types.Value, error) {
		if a == nil || b == nil {
			return nil, nil
		}
		x, err := types.AsInt64(a)
		if err != nil {
			return nil, err
		}
		y, err := types.AsInt64(b)
		if err != nil {
			return nil, err
		}
		return op(x, y)
	}
}

func compareOp(pred func(int) bool) binaryFunc {
	return func(a, b types.Value) (types.Value, error) {
		return pred(types.Compare(a, b)), nil
	}
}

// calculation binds a named function to an input register and a constant.
func calculation(name string, reg types.RegisterID, constant types.Value) (executor.CalculationFunc, error) {
	fn, ok := calculationFuncs[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownFunc, "%q", name)
	}
	return func(row rows.InputRow) (types.Value, error) {
		return fn(row.Value(reg), constant)
	}, nil
}

// convertValue maps a decoded YAML scalar or sequence onto a register value.
func convertValue(v any) (types.Value, error) {
	switch x := v.(type) {
	case nil, bool, string, int64, float64:
		return x, nil
	case int:
		return int64(x), nil
	case uint64:
		return x, nil
	case []any:
		list := make([]types.Value, len(x))
		for i, e := range x {
			c, err := convertValue(e)
			if err != nil {
				return nil, err
			}
			list[i] = c
		}
		return list, nil
	}
	return nil, errors.Newf("unsupported value %v of type %T", v, v)
}

func convertRows(in [][]any) ([][]types.Value, error) {
	out := make([][]types.Value, len(in))
	for i, row := range in {
		out[i] = make([]types.Value, len(row))
		for j, v := range row {
			c, err := convertValue(v)
			if err != nil {
				return nil, errors.Wrapf(err, "row %d", i)
			}
			out[i][j] = c
		}
	}
	return out, nil
}
