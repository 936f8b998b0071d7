package executor

import (
	"github.com/cockroachdb/errors"

	"github.com/harshithgowdakt/blockexec/internal/fetcher"
	"github.com/harshithgowdakt/blockexec/internal/rows"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// ErrListExpected is returned when the enumerated register holds no list.
var ErrListExpected = errors.New("list expected")

// EnumerateListExecutor emits one row per element of the list held in an
// input register. An empty cell enumerates nothing.
type EnumerateListExecutor struct {
	fetcher *fetcher.SingleRowFetcher
	in, out types.RegisterID

	row           rows.InputRow
	list          []types.Value
	pos           int
	upstreamState types.ExecutionState
}

// ProduceRow implements Executor.
func (e *EnumerateListExecutor) ProduceRow(out *rows.OutputRow) (types.ExecutionState, Stats, error) {
	for {
		if e.row.IsInitialized() && e.pos < len(e.list) {
			out.SetValue(e.out, e.row, e.list[e.pos])
			e.pos++
			if e.pos == len(e.list) && e.upstreamState == types.StateDone {
				return types.StateDone, Stats{}, nil
			}
			return types.StateHasMore, Stats{}, nil
		}
		if e.upstreamState == types.StateDone {
			return types.StateDone, Stats{}, nil
		}

		state, row, err := e.fetcher.FetchRow()
		if err != nil {
			return types.StateDone, Stats{}, err
		}
		if state == types.StateWaiting {
			return types.StateWaiting, Stats{}, nil
		}
		e.upstreamState = state
		e.row = row
		e.list, e.pos = nil, 0
		if !row.IsInitialized() {
			continue
		}
		switch v := row.Value(e.in).(type) {
		case nil:
		case []types.Value:
			e.list = v
		default:
			return types.StateDone, Stats{}, errors.Wrapf(ErrListExpected, "register %d holds %T", e.in, v)
		}
	}
}

// Close releases the fetcher's current block.
func (e *EnumerateListExecutor) Close() {
	e.row = rows.InputRow{}
	e.fetcher.Close()
}

// EnumerateListKind enumerates the list in register in into register out of
// nrRegs wide rows.
func EnumerateListKind(nrRegs int, in, out types.RegisterID) Kind[*EnumerateListExecutor] {
	infos := PassThroughInfos(nrRegs, out)
	infos.InputRegisters.Add(in)
	return Kind[*EnumerateListExecutor]{
		Name:       "EnumerateList",
		Properties: Properties{PreservesOrder: true},
		Infos:      infos,
		New: func(bf *fetcher.BlockFetcher) *EnumerateListExecutor {
			return &EnumerateListExecutor{
				fetcher: fetcher.NewSingleRowFetcher(bf, bf.BatchSize()),
				in:      in,
				out:     out,
			}
		},
	}
}

// NoResultsExecutor never produces a row and never reads its input.
type NoResultsExecutor struct{}

// ProduceRow implements Executor.
func (NoResultsExecutor) ProduceRow(*rows.OutputRow) (types.ExecutionState, Stats, error) {
	return types.StateDone, Stats{}, nil
}

// NoResultsKind produces nothing.
func NoResultsKind(nrRegs int) Kind[NoResultsExecutor] {
	return Kind[NoResultsExecutor]{
		Name:       "NoResults",
		Properties: Properties{PreservesOrder: true},
		Infos:      PassThroughInfos(nrRegs),
		New:        func(*fetcher.BlockFetcher) NoResultsExecutor { return NoResultsExecutor{} },
	}
}
