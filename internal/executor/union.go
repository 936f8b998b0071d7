package executor

import (
	"github.com/harshithgowdakt/blockexec/internal/fetcher"
	"github.com/harshithgowdakt/blockexec/internal/rows"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// UnionExecutor forwards the rows of all its dependencies, draining them one
// after another in dependency order.
type UnionExecutor struct {
	fetcher *fetcher.MultiDependencySingleRowFetcher
	current int
}

// ProduceRow implements Executor.
func (e *UnionExecutor) ProduceRow(out *rows.OutputRow) (types.ExecutionState, Stats, error) {
	n := e.fetcher.NumDependencies()
	for e.current < n {
		state, row, err := e.fetcher.FetchRowForDependency(e.current)
		if err != nil {
			return types.StateDone, Stats{}, err
		}
		if state == types.StateWaiting {
			return types.StateWaiting, Stats{}, nil
		}
		if state == types.StateDone {
			e.current++
		}
		if row.IsInitialized() {
			out.CopyRow(row)
			if e.current >= n {
				return types.StateDone, Stats{}, nil
			}
			return types.StateHasMore, Stats{}, nil
		}
	}
	return types.StateDone, Stats{}, nil
}

// Close releases the blocks held by every dependency cursor.
func (e *UnionExecutor) Close() { e.fetcher.Close() }

// UnionKind concatenates dependencies of nrRegs wide rows.
func UnionKind(nrRegs int) Kind[*UnionExecutor] {
	return Kind[*UnionExecutor]{
		Name:       "Union",
		Properties: Properties{},
		Infos:      PassThroughInfos(nrRegs),
		New: func(bf *fetcher.BlockFetcher) *UnionExecutor {
			return &UnionExecutor{fetcher: fetcher.NewMultiDependencySingleRowFetcher(bf, bf.BatchSize())}
		},
	}
}
