package fetcher

import (
	"github.com/cockroachdb/errors"

	"github.com/harshithgowdakt/blockexec/internal/block"
	"github.com/harshithgowdakt/blockexec/internal/faults"
	"github.com/harshithgowdakt/blockexec/internal/rows"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// FaultFetchBlock makes every block fetch fail when armed.
const FaultFetchBlock = "fetcher/fetch-block"

// Upstream is anything a block can pull batches from.
type Upstream interface {
	Pull(atMost int) (types.ExecutionState, *block.ItemBlock, error)
}

// BlockSource is what a single-dependency row fetcher reads blocks from.
type BlockSource interface {
	FetchBlock(atMost int) (types.ExecutionState, *rows.InputBlockShell, error)
}

// MultiBlockSource is what a fan-in row fetcher reads blocks from.
type MultiBlockSource interface {
	NumDependencies() int
	FetchBlockForDependency(dep, atMost int) (types.ExecutionState, *rows.InputBlockShell, error)
}

// prefetched is a queued pass-through block as seen by the row fetcher.
type prefetched struct {
	state types.ExecutionState
	shell *rows.InputBlockShell
}

// BlockFetcher pulls whole blocks from the dependencies of one execution
// block and wraps them in input shells. It is rebuilt on every cursor reset.
type BlockFetcher struct {
	deps      []Upstream
	manager   *block.Manager
	inputRegs rows.RegisterSet
	faults    *faults.Registry
	batchSize int

	// passThrough is the one-slot queue the driver takes its output block from.
	passThrough *block.ItemBlock
	pending     *prefetched
	injected    *block.ItemBlock
	done        []bool
}

// NewBlockFetcher creates a fetcher over deps.
func NewBlockFetcher(deps []Upstream, m *block.Manager, inputRegs rows.RegisterSet, batchSize int) *BlockFetcher {
	if inputRegs == nil {
		inputRegs = rows.NewRegisterSet()
	}
	return &BlockFetcher{
		deps:      deps,
		manager:   m,
		inputRegs: inputRegs,
		batchSize: batchSize,
		done:      make([]bool, len(deps)),
	}
}

// SetFaults attaches a fault registry.
func (f *BlockFetcher) SetFaults(r *faults.Registry) { f.faults = r }

// Manager returns the block manager used for shells and seeds.
func (f *BlockFetcher) Manager() *block.Manager { return f.manager }

// BatchSize returns the default number of rows row fetchers ask for.
func (f *BlockFetcher) BatchSize() int { return f.batchSize }

// NumDependencies returns the number of upstream blocks.
func (f *BlockFetcher) NumDependencies() int { return len(f.deps) }

// InjectBlock seeds the fetcher with b. The next FetchBlock returns it
// together with DONE. Only valid for blocks without dependencies.
func (f *BlockFetcher) InjectBlock(b *block.ItemBlock) {
	if len(f.deps) != 0 {
		panic(errors.AssertionFailedf("injecting a seed block into a fetcher with %d dependencies", len(f.deps)))
	}
	if f.injected != nil {
		panic(errors.AssertionFailedf("seed block already injected"))
	}
	f.injected = b
}

// FetchBlock pulls up to atMost rows from the single dependency. The shell
// is nil exactly when the upstream delivered no block.
func (f *BlockFetcher) FetchBlock(atMost int) (types.ExecutionState, *rows.InputBlockShell, error) {
	if p := f.pending; p != nil {
		f.pending = nil
		return p.state, p.shell, nil
	}
	if len(f.deps) > 1 {
		panic(errors.AssertionFailedf("FetchBlock on a fetcher with %d dependencies", len(f.deps)))
	}
	if len(f.deps) == 0 {
		if err := f.faults.Check(FaultFetchBlock); err != nil {
			return types.StateDone, nil, err
		}
		b := f.injected
		f.injected = nil
		if b == nil {
			return types.StateDone, nil, nil
		}
		return types.StateDone, rows.NewOwnedInputShell(f.manager, b, f.inputRegs), nil
	}
	return f.FetchBlockForDependency(0, atMost)
}

// FetchBlockForDependency pulls up to atMost rows from dependency dep.
func (f *BlockFetcher) FetchBlockForDependency(dep, atMost int) (types.ExecutionState, *rows.InputBlockShell, error) {
	state, b, err := f.pull(dep, atMost)
	if err != nil || b == nil {
		return state, nil, err
	}
	return state, rows.NewOwnedInputShell(f.manager, b, f.inputRegs), nil
}

// PrefetchBlock pulls from dependency 0 and queues the block for the driver's
// pass-through path. The row fetcher's next FetchBlock sees the same block,
// borrowed, with the upstream's own state. Returns HASMORE whenever a block
// was queued.
func (f *BlockFetcher) PrefetchBlock(atMost int) (types.ExecutionState, error) {
	if f.passThrough != nil || f.pending != nil {
		panic(errors.AssertionFailedf("prefetch with a block already queued"))
	}
	var (
		state types.ExecutionState
		b     *block.ItemBlock
		err   error
	)
	if len(f.deps) == 0 {
		if err = f.faults.Check(FaultFetchBlock); err != nil {
			return types.StateDone, err
		}
		state, b = types.StateDone, f.injected
		f.injected = nil
	} else {
		state, b, err = f.pull(0, atMost)
		if err != nil {
			return state, err
		}
	}
	if b == nil {
		return state, nil
	}
	f.passThrough = b
	f.pending = &prefetched{state: state, shell: rows.NewBorrowedInputShell(b, f.inputRegs)}
	return types.StateHasMore, nil
}

// TakePassThroughBlock moves the queued block out of the fetcher. Panics if
// nothing is queued.
func (f *BlockFetcher) TakePassThroughBlock() *block.ItemBlock {
	b := f.passThrough
	if b == nil {
		panic(errors.AssertionFailedf("no pass-through block queued"))
	}
	f.passThrough = nil
	return b
}

// Close returns every block the fetcher still owns.
func (f *BlockFetcher) Close() {
	f.manager.ReturnBlock(f.passThrough)
	f.manager.ReturnBlock(f.injected)
	f.passThrough, f.injected, f.pending = nil, nil, nil
}

func (f *BlockFetcher) pull(dep, atMost int) (types.ExecutionState, *block.ItemBlock, error) {
	if dep < 0 || dep >= len(f.deps) {
		panic(errors.AssertionFailedf("dependency %d out of range [0, %d)", dep, len(f.deps)))
	}
	if err := f.faults.Check(FaultFetchBlock); err != nil {
		return types.StateDone, nil, err
	}
	if f.done[dep] {
		return types.StateDone, nil, nil
	}
	state, b, err := f.deps[dep].Pull(atMost)
	if err != nil {
		return types.StateDone, nil, errors.Wrapf(err, "fetching from dependency %d", dep)
	}
	switch {
	case state == types.StateWaiting && b != nil:
		panic(errors.AssertionFailedf("dependency %d returned a block while waiting", dep))
	case state == types.StateHasMore && b == nil:
		panic(errors.AssertionFailedf("dependency %d returned HASMORE without a block", dep))
	case b != nil && b.Size() == 0:
		panic(errors.AssertionFailedf("dependency %d returned an empty block", dep))
	}
	if state == types.StateDone {
		f.done[dep] = true
	}
	return state, b, nil
}
