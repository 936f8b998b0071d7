package fetcher

import (
	"github.com/cockroachdb/errors"

	"github.com/harshithgowdakt/blockexec/internal/rows"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// rowCursor walks one dependency's block sequence row by row.
type rowCursor struct {
	shell         *rows.InputBlockShell
	index         int
	upstreamState types.ExecutionState
}

func (c *rowCursor) indexIsValid() bool {
	return c.shell != nil && c.index < c.shell.Size()
}

func (c *rowCursor) isLastRowInBlock() bool {
	return c.shell != nil && c.index+1 == c.shell.Size()
}

// next returns the next row, calling fetch for a new block when the current
// one is used up. The previous block is released here, never earlier, so
// the last returned row stays readable until this call.
func (c *rowCursor) next(fetch func() (types.ExecutionState, *rows.InputBlockShell, error)) (types.ExecutionState, rows.InputRow, error) {
	if !c.indexIsValid() {
		c.shell.Release()
		c.shell = nil

		if c.upstreamState != types.StateDone {
			state, shell, err := fetch()
			if err != nil {
				return types.StateDone, rows.InputRow{}, err
			}
			if state == types.StateWaiting {
				return types.StateWaiting, rows.InputRow{}, nil
			}
			c.upstreamState = state
			c.shell = shell
			c.index = 0
		}
	}

	if c.shell == nil {
		return types.StateDone, rows.InputRow{}, nil
	}
	state := types.StateHasMore
	if c.isLastRowInBlock() && c.upstreamState == types.StateDone {
		state = types.StateDone
	}
	row := rows.NewInputRow(c.shell, c.index)
	c.index++
	return state, row, nil
}

func (c *rowCursor) close() {
	c.shell.Release()
	c.shell = nil
}

// SingleRowFetcher hands out one upstream row at a time and hides block
// boundaries from executors.
type SingleRowFetcher struct {
	source BlockSource
	atMost int
	cursor rowCursor
}

// NewSingleRowFetcher creates a row fetcher asking source for atMost rows
// per block.
func NewSingleRowFetcher(source BlockSource, atMost int) *SingleRowFetcher {
	return &SingleRowFetcher{source: source, atMost: atMost}
}

// FetchRow returns the next row. While WAITING nothing moves, so the
// identical retry resumes at the same position. The last row is delivered
// together with DONE; later calls return DONE and an invalid row without
// touching the upstream.
func (f *SingleRowFetcher) FetchRow() (types.ExecutionState, rows.InputRow, error) {
	return f.cursor.next(func() (types.ExecutionState, *rows.InputBlockShell, error) {
		return f.source.FetchBlock(f.atMost)
	})
}

// Close releases the current block.
func (f *SingleRowFetcher) Close() { f.cursor.close() }

// MultiDependencySingleRowFetcher keeps one independent row cursor per
// dependency.
type MultiDependencySingleRowFetcher struct {
	source  MultiBlockSource
	atMost  int
	cursors []rowCursor
}

// NewMultiDependencySingleRowFetcher creates a fan-in row fetcher.
func NewMultiDependencySingleRowFetcher(source MultiBlockSource, atMost int) *MultiDependencySingleRowFetcher {
	return &MultiDependencySingleRowFetcher{
		source:  source,
		atMost:  atMost,
		cursors: make([]rowCursor, source.NumDependencies()),
	}
}

// NumDependencies returns the number of upstream cursors.
func (f *MultiDependencySingleRowFetcher) NumDependencies() int { return len(f.cursors) }

// FetchRowForDependency behaves like SingleRowFetcher.FetchRow on the
// cursor of dependency dep only.
func (f *MultiDependencySingleRowFetcher) FetchRowForDependency(dep int) (types.ExecutionState, rows.InputRow, error) {
	if dep < 0 || dep >= len(f.cursors) {
		panic(errors.AssertionFailedf("dependency %d out of range [0, %d)", dep, len(f.cursors)))
	}
	return f.cursors[dep].next(func() (types.ExecutionState, *rows.InputBlockShell, error) {
		return f.source.FetchBlockForDependency(dep, f.atMost)
	})
}

// Close releases every cursor's current block.
func (f *MultiDependencySingleRowFetcher) Close() {
	for i := range f.cursors {
		f.cursors[i].close()
	}
}
