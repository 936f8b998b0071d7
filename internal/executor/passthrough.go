package executor

import (
	"github.com/cockroachdb/errors"

	"github.com/harshithgowdakt/blockexec/internal/fetcher"
	"github.com/harshithgowdakt/blockexec/internal/rows"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// IDExecutor forwards every row unchanged.
type IDExecutor struct {
	fetcher *fetcher.SingleRowFetcher
}

// ProduceRow implements Executor.
func (e *IDExecutor) ProduceRow(out *rows.OutputRow) (types.ExecutionState, Stats, error) {
	state, row, err := e.fetcher.FetchRow()
	if err != nil || state == types.StateWaiting {
		return state, Stats{}, err
	}
	if row.IsInitialized() {
		out.CopyRow(row)
	}
	return state, Stats{}, nil
}

// Close releases the fetcher's current block.
func (e *IDExecutor) Close() { e.fetcher.Close() }

// IDKind forwards the rows of its dependency, relabeling upstream blocks.
func IDKind(nrRegs int) Kind[*IDExecutor] {
	return Kind[*IDExecutor]{
		Name:       "ID",
		Properties: Properties{PreservesOrder: true, AllowsBlockPassthrough: true},
		Infos:      PassThroughInfos(nrRegs),
		New: func(bf *fetcher.BlockFetcher) *IDExecutor {
			return &IDExecutor{fetcher: fetcher.NewSingleRowFetcher(bf, bf.BatchSize())}
		},
	}
}

// CalculationFunc computes one value from an input row.
type CalculationFunc func(row rows.InputRow) (types.Value, error)

// CalculationExecutor writes the result of a function into one new register
// of every row.
type CalculationExecutor struct {
	fetcher *fetcher.SingleRowFetcher
	out     types.RegisterID
	fn      CalculationFunc
}

// ProduceRow implements Executor.
func (e *CalculationExecutor) ProduceRow(out *rows.OutputRow) (types.ExecutionState, Stats, error) {
	state, row, err := e.fetcher.FetchRow()
	if err != nil || state == types.StateWaiting {
		return state, Stats{}, err
	}
	if !row.IsInitialized() {
		return state, Stats{}, nil
	}
	v, err := e.fn(row)
	if err != nil {
		return types.StateDone, Stats{}, errors.Wrapf(err, "calculating register %d", e.out)
	}
	out.SetValue(e.out, row, v)
	return state, Stats{}, nil
}

// Close releases the fetcher's current block.
func (e *CalculationExecutor) Close() { e.fetcher.Close() }

// CalculationKind writes fn's result into register out of nrRegs wide rows.
func CalculationKind(nrRegs int, out types.RegisterID, fn CalculationFunc) Kind[*CalculationExecutor] {
	return Kind[*CalculationExecutor]{
		Name:       "Calculation",
		Properties: Properties{PreservesOrder: true, AllowsBlockPassthrough: true},
		Infos:      PassThroughInfos(nrRegs, out),
		New: func(bf *fetcher.BlockFetcher) *CalculationExecutor {
			return &CalculationExecutor{
				fetcher: fetcher.NewSingleRowFetcher(bf, bf.BatchSize()),
				out:     out,
				fn:      fn,
			}
		},
	}
}
