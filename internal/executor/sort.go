package executor

import (
	"sort"

	"github.com/harshithgowdakt/blockexec/internal/block"
	"github.com/harshithgowdakt/blockexec/internal/fetcher"
	"github.com/harshithgowdakt/blockexec/internal/rows"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// SortKey is one sort criterion.
type SortKey struct {
	Register   types.RegisterID
	Descending bool
}

// SortExecutor materializes its whole input into manager blocks, sorts it
// stably and then emits one row per call.
type SortExecutor struct {
	fetcher   *fetcher.SingleRowFetcher
	manager   *block.Manager
	keys      []SortKey
	batchSize int

	buffers []*block.ItemBlock
	fill    int
	order   []rows.InputRow
	pos     int
	sorted  bool
}

// ProduceRow implements Executor.
func (e *SortExecutor) ProduceRow(out *rows.OutputRow) (types.ExecutionState, Stats, error) {
	if !e.sorted {
		for {
			state, row, err := e.fetcher.FetchRow()
			if err != nil {
				return types.StateDone, Stats{}, err
			}
			if state == types.StateWaiting {
				return types.StateWaiting, Stats{}, nil
			}
			if row.IsInitialized() {
				if err := e.buffer(row); err != nil {
					return types.StateDone, Stats{}, err
				}
			}
			if state == types.StateDone {
				break
			}
		}
		e.sortRows()
		e.sorted = true
	}

	if e.pos >= len(e.order) {
		e.Close()
		return types.StateDone, Stats{}, nil
	}
	out.CopyRow(e.order[e.pos])
	e.pos++
	if e.pos == len(e.order) {
		e.Close()
		return types.StateDone, Stats{}, nil
	}
	return types.StateHasMore, Stats{}, nil
}

// buffer copies row into the last buffer block, requesting a new one when
// it is full.
func (e *SortExecutor) buffer(row rows.InputRow) error {
	if len(e.buffers) == 0 || e.fill == e.buffers[len(e.buffers)-1].Size() {
		b, err := e.manager.RequestBlock(e.batchSize, row.NumRegisters())
		if err != nil {
			return err
		}
		e.buffers = append(e.buffers, b)
		e.fill = 0
	}
	b := e.buffers[len(e.buffers)-1]
	for r := 0; r < row.NumRegisters(); r++ {
		reg := types.RegisterID(r)
		b.SetValue(e.fill, reg, row.Value(reg))
	}
	e.order = append(e.order, rows.NewInputRow(rows.NewBorrowedInputShell(b, nil), e.fill))
	e.fill++
	return nil
}

func (e *SortExecutor) sortRows() {
	sort.SliceStable(e.order, func(i, j int) bool {
		for _, k := range e.keys {
			c := types.Compare(e.order[i].Value(k.Register), e.order[j].Value(k.Register))
			if c == 0 {
				continue
			}
			if k.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// Close returns the buffer blocks. Rows already emitted were copied out.
func (e *SortExecutor) Close() {
	for _, b := range e.buffers {
		e.manager.ReturnBlock(b)
	}
	e.buffers = nil
	e.order = nil
	e.pos = 0
	e.fetcher.Close()
}

// SortKind sorts nrRegs wide input by keys.
func SortKind(nrRegs int, keys []SortKey) Kind[*SortExecutor] {
	return Kind[*SortExecutor]{
		Name:       "Sort",
		Properties: Properties{},
		Infos:      PassThroughInfos(nrRegs),
		New: func(bf *fetcher.BlockFetcher) *SortExecutor {
			return &SortExecutor{
				fetcher:   fetcher.NewSingleRowFetcher(bf, bf.BatchSize()),
				manager:   bf.Manager(),
				keys:      keys,
				batchSize: bf.BatchSize(),
			}
		},
	}
}
