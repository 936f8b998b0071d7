package executor

import (
	"github.com/harshithgowdakt/blockexec/internal/fetcher"
	"github.com/harshithgowdakt/blockexec/internal/rows"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// LimitExecutor skips offset rows and forwards at most limit rows. With
// fullCount set it keeps reading upstream to the end and reports every row
// it saw in Stats.FullCount.
type LimitExecutor struct {
	fetcher   *fetcher.SingleRowFetcher
	offset    int64
	limit     int64
	fullCount bool

	skipped int64
	emitted int64
}

// ProduceRow implements Executor.
func (e *LimitExecutor) ProduceRow(out *rows.OutputRow) (types.ExecutionState, Stats, error) {
	var stats Stats
	if e.emitted >= e.limit && !e.fullCount {
		return types.StateDone, stats, nil
	}
	for {
		state, row, err := e.fetcher.FetchRow()
		if err != nil {
			return types.StateDone, stats, err
		}
		if state == types.StateWaiting {
			return types.StateWaiting, stats, nil
		}
		if !row.IsInitialized() {
			return types.StateDone, stats, nil
		}
		if e.fullCount {
			stats.FullCount++
		}

		switch {
		case e.skipped < e.offset:
			e.skipped++
		case e.emitted < e.limit:
			out.CopyRow(row)
			e.emitted++
			if e.emitted == e.limit && !e.fullCount {
				return types.StateDone, stats, nil
			}
			return state, stats, nil
		}
		if state == types.StateDone {
			return types.StateDone, stats, nil
		}
	}
}

// Close releases the fetcher's current block.
func (e *LimitExecutor) Close() { e.fetcher.Close() }

// LimitKind forwards rows [offset, offset+limit) of nrRegs wide input.
func LimitKind(nrRegs int, offset, limit int64, fullCount bool) Kind[*LimitExecutor] {
	return Kind[*LimitExecutor]{
		Name:       "Limit",
		Properties: Properties{PreservesOrder: true},
		Infos:      PassThroughInfos(nrRegs),
		New: func(bf *fetcher.BlockFetcher) *LimitExecutor {
			return &LimitExecutor{
				fetcher:   fetcher.NewSingleRowFetcher(bf, bf.BatchSize()),
				offset:    offset,
				limit:     limit,
				fullCount: fullCount,
			}
		},
	}
}
