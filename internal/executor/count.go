package executor

import (
	"github.com/harshithgowdakt/blockexec/internal/fetcher"
	"github.com/harshithgowdakt/blockexec/internal/rows"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// CountExecutor consumes every upstream row and emits a single row holding
// the number of rows seen.
type CountExecutor struct {
	fetcher *fetcher.SingleRowFetcher
	out     types.RegisterID
	count   uint64
}

// ProduceRow implements Executor.
func (e *CountExecutor) ProduceRow(out *rows.OutputRow) (types.ExecutionState, Stats, error) {
	for {
		state, row, err := e.fetcher.FetchRow()
		if err != nil {
			return types.StateDone, Stats{}, err
		}
		if state == types.StateWaiting {
			return types.StateWaiting, Stats{}, nil
		}
		if row.IsInitialized() {
			e.count++
		}
		if state == types.StateDone {
			out.SetValue(e.out, rows.InputRow{}, e.count)
			return types.StateDone, Stats{}, nil
		}
	}
}

// Close releases the fetcher's current block.
func (e *CountExecutor) Close() { e.fetcher.Close() }

// CountKind counts the rows of its single dependency into register out of a
// fresh nrRegs wide row; no input register is kept.
func CountKind(nrRegs int, out types.RegisterID) Kind[*CountExecutor] {
	return Kind[*CountExecutor]{
		Name:       "Count",
		Properties: Properties{},
		Infos:      NewInfos(nil, rows.NewRegisterSet(out), nil, nrRegs, nrRegs),
		New: func(bf *fetcher.BlockFetcher) *CountExecutor {
			return &CountExecutor{fetcher: fetcher.NewSingleRowFetcher(bf, bf.BatchSize()), out: out}
		},
	}
}
