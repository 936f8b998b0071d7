package executor

import (
	"github.com/cockroachdb/errors"

	"github.com/harshithgowdakt/blockexec/internal/fetcher"
	"github.com/harshithgowdakt/blockexec/internal/rows"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// Predicate decides whether a row is kept.
type Predicate func(row rows.InputRow) (bool, error)

// RegisterIsTrue keeps rows whose register reg holds a truthy value: a true
// bool, a non-zero number or a non-empty string.
func RegisterIsTrue(reg types.RegisterID) Predicate {
	return func(row rows.InputRow) (bool, error) {
		switch v := row.Value(reg).(type) {
		case nil:
			return false, nil
		case bool:
			return v, nil
		case string:
			return v != "", nil
		default:
			f, ok := types.AsFloat64(v)
			if !ok {
				return false, errors.Newf("register %d holds %T, not a condition", reg, v)
			}
			return f != 0, nil
		}
	}
}

// FilterExecutor copies the rows a predicate accepts and counts the others.
type FilterExecutor struct {
	fetcher *fetcher.SingleRowFetcher
	pred    Predicate
}

// ProduceRow implements Executor.
func (e *FilterExecutor) ProduceRow(out *rows.OutputRow) (types.ExecutionState, Stats, error) {
	var stats Stats
	for {
		state, row, err := e.fetcher.FetchRow()
		if err != nil {
			return types.StateDone, stats, err
		}
		if state == types.StateWaiting {
			return types.StateWaiting, stats, nil
		}
		if !row.IsInitialized() {
			return state, stats, nil
		}
		keep, err := e.pred(row)
		if err != nil {
			return types.StateDone, stats, err
		}
		if keep {
			out.CopyRow(row)
			return state, stats, nil
		}
		stats.Filtered++
		if state == types.StateDone {
			return types.StateDone, stats, nil
		}
	}
}

// Close releases the fetcher's current block.
func (e *FilterExecutor) Close() { e.fetcher.Close() }

// FilterKind keeps the rows of nrRegs wide input for which pred holds.
func FilterKind(nrRegs int, pred Predicate) Kind[*FilterExecutor] {
	return Kind[*FilterExecutor]{
		Name:       "Filter",
		Properties: Properties{PreservesOrder: true},
		Infos:      PassThroughInfos(nrRegs),
		New: func(bf *fetcher.BlockFetcher) *FilterExecutor {
			return &FilterExecutor{fetcher: fetcher.NewSingleRowFetcher(bf, bf.BatchSize()), pred: pred}
		},
	}
}
