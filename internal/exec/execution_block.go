package exec

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/harshithgowdakt/blockexec/internal/block"
	"github.com/harshithgowdakt/blockexec/internal/executor"
	"github.com/harshithgowdakt/blockexec/internal/fetcher"
	"github.com/harshithgowdakt/blockexec/internal/rows"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// ExecutionBlock binds one executor kind to its fetcher chain and output
// blocks. The kind is fixed for the block's lifetime; the fetcher and the
// executor are rebuilt from scratch on every InitializeCursor.
type ExecutionBlock[E executor.Executor] struct {
	engine    *Engine
	kind      executor.Kind[E]
	deps      []Block
	upstreams []fetcher.Upstream
	keep      []types.RegisterID

	fetcher  *fetcher.BlockFetcher
	executor E
	out      *rows.OutputRow
	// exhausted is set once the executor returned DONE in this generation.
	exhausted bool
	// failed holds the executor error that ended this generation.
	failed error
}

// NewExecutionBlock creates a block running kind over deps. Blocks without
// dependencies deliver nothing until InitializeCursor seeds them.
func NewExecutionBlock[E executor.Executor](engine *Engine, kind executor.Kind[E], deps ...Block) (*ExecutionBlock[E], error) {
	if err := kind.Infos.Validate(); err != nil {
		return nil, errors.Wrapf(err, "%s", kind.Name)
	}
	if kind.Properties.AllowsBlockPassthrough && kind.Infos.NumInputRegisters != kind.Infos.NumOutputRegisters {
		return nil, errors.Newf("%s: pass-through needs equal register counts, got %d in and %d out",
			kind.Name, kind.Infos.NumInputRegisters, kind.Infos.NumOutputRegisters)
	}
	b := &ExecutionBlock[E]{
		engine:    engine,
		kind:      kind,
		deps:      deps,
		upstreams: make([]fetcher.Upstream, len(deps)),
		keep:      rows.SortedRegisters(kind.Infos.RegistersToKeep),
	}
	for i, d := range deps {
		b.upstreams[i] = d
	}
	b.newGeneration()
	return b, nil
}

// Name returns the operator kind's name.
func (b *ExecutionBlock[E]) Name() string { return b.kind.Name }

// Dependencies returns the upstream blocks.
func (b *ExecutionBlock[E]) Dependencies() []Block { return b.deps }

// Pull implements Block.
func (b *ExecutionBlock[E]) Pull(atMost int) (types.ExecutionState, *block.ItemBlock, error) {
	if err := b.engine.Faults.Check(FaultPullBegin); err != nil {
		return types.StateDone, nil, err
	}
	if atMost <= 0 {
		return types.StateDone, nil, errors.Wrapf(ErrInvalidArgument, "%s: pull of %d rows", b.kind.Name, atMost)
	}
	atMost = min(atMost, max(b.engine.BatchSize, DefaultBatchSize))
	state, res, err := b.pull(atMost)
	if err != nil {
		return state, nil, err
	}
	n := 0
	if res != nil {
		n = res.Size()
	}
	b.engine.Stats.ObservePull(b.kind.Name, state, n)
	return state, res, nil
}

func (b *ExecutionBlock[E]) pull(atMost int) (types.ExecutionState, *block.ItemBlock, error) {
	if b.failed != nil {
		return types.StateDone, nil, b.failed
	}
	if b.exhausted {
		return types.StateDone, nil, nil
	}
	if b.out == nil {
		state, err := b.openOutput(atMost)
		if err != nil {
			return types.StateDone, nil, err
		}
		if b.out == nil {
			if state == types.StateDone {
				b.exhausted = true
			}
			return state, nil, nil
		}
	}

	for !b.out.IsFull() {
		state, stats, err := b.executor.ProduceRow(b.out)
		if !stats.IsZero() {
			b.engine.Stats.AddStats(b.kind.Name, stats)
		}
		if err != nil {
			b.failed = errors.Wrapf(err, "%s", b.kind.Name)
			return types.StateDone, nil, b.failed
		}
		produced := b.out.Produced()
		switch state {
		case types.StateWaiting:
			if produced {
				panic(errors.AssertionFailedf("%s produced a row while waiting", b.kind.Name))
			}
			return types.StateWaiting, nil, nil
		case types.StateDone:
			if produced {
				b.out.AdvanceRow()
			}
			b.exhausted = true
			return types.StateDone, b.finishOutput(), nil
		}
		if produced {
			b.out.AdvanceRow()
		}
	}
	return types.StateHasMore, b.finishOutput(), nil
}

// openOutput opens the output block: the relabeled upstream block for
// pass-through kinds, a fresh manager block otherwise. A pass-through kind
// whose upstream delivered nothing leaves b.out nil and reports why.
func (b *ExecutionBlock[E]) openOutput(atMost int) (types.ExecutionState, error) {
	if err := b.engine.Faults.Check(FaultPullOutputBlock); err != nil {
		return types.StateDone, err
	}
	infos := b.kind.Infos
	if b.kind.Properties.AllowsBlockPassthrough {
		state, err := b.fetcher.PrefetchBlock(atMost)
		if err != nil || state != types.StateHasMore {
			return state, err
		}
		blk := b.fetcher.TakePassThroughBlock()
		if blk.NumRegisters() != infos.NumOutputRegisters {
			panic(errors.AssertionFailedf("%s: pass-through block has %d registers, want %d",
				b.kind.Name, blk.NumRegisters(), infos.NumOutputRegisters))
		}
		shell := rows.NewOutputBlockShell(blk, infos.OutputRegisters, infos.RegistersToKeep)
		b.out = rows.NewOutputRow(shell, true)
		return types.StateHasMore, nil
	}

	blk, err := b.engine.Manager.RequestBlock(atMost, infos.NumOutputRegisters)
	if err != nil {
		if errors.Is(err, block.ErrOutOfMemory) {
			b.engine.Logger.Warn("[exec] output block refused",
				zap.String("block", b.kind.Name), zap.Int("rows", atMost), zap.Error(err))
		}
		return types.StateDone, err
	}
	b.out = rows.NewOutputRow(rows.NewOutputBlockShell(blk, infos.OutputRegisters, infos.RegistersToKeep), false)
	return types.StateHasMore, nil
}

// finishOutput detaches the output block. An empty block goes back to the
// manager and nil is returned in its place.
func (b *ExecutionBlock[E]) finishOutput() *block.ItemBlock {
	blk := b.out.StealBlock()
	b.out = nil
	if blk.Size() == 0 {
		b.engine.Manager.ReturnBlock(blk)
		return nil
	}
	return blk
}

// Skip implements Block by pulling and dropping the rows.
func (b *ExecutionBlock[E]) Skip(atMost int) (types.ExecutionState, int, error) {
	if err := b.engine.Faults.Check(FaultSkipBegin); err != nil {
		return types.StateDone, 0, err
	}
	state, blk, err := b.Pull(atMost)
	if blk == nil {
		return state, 0, err
	}
	n := blk.Size()
	b.engine.Manager.ReturnBlock(blk)
	return state, n, err
}

// InitializeCursor implements Block.
func (b *ExecutionBlock[E]) InitializeCursor(items *block.ItemBlock, pos int) error {
	b.releaseGeneration()
	b.newGeneration()

	if len(b.deps) == 0 {
		seed, err := b.seed(items, pos)
		if err != nil {
			return errors.Wrapf(err, "%s: seeding cursor", b.kind.Name)
		}
		b.fetcher.InjectBlock(seed)
	}
	for _, d := range b.deps {
		if err := d.InitializeCursor(items, pos); err != nil {
			return err
		}
	}
	b.engine.Logger.Debug("[exec] cursor initialized",
		zap.String("block", b.kind.Name), zap.Int("deps", len(b.deps)), zap.Int("pos", pos))
	return nil
}

func (b *ExecutionBlock[E]) seed(items *block.ItemBlock, pos int) (*block.ItemBlock, error) {
	m := b.engine.Manager
	nrIn := b.kind.Infos.NumInputRegisters
	if nrIn == 0 {
		nrIn = 1
	}
	if items == nil {
		return m.RequestBlock(1, nrIn)
	}
	if items.NumRegisters() != nrIn {
		return nil, errors.Wrapf(ErrInvalidArgument, "seed block has %d registers, want %d",
			items.NumRegisters(), nrIn)
	}
	return m.SliceRow(items, pos, b.keep)
}

// Close implements Block.
func (b *ExecutionBlock[E]) Close() {
	b.releaseGeneration()
	for _, d := range b.deps {
		d.Close()
	}
}

func (b *ExecutionBlock[E]) newGeneration() {
	bf := fetcher.NewBlockFetcher(b.upstreams, b.engine.Manager, b.kind.Infos.InputRegisters, b.engine.BatchSize)
	bf.SetFaults(b.engine.Faults)
	b.fetcher = bf
	b.executor = b.kind.New(bf)
	b.exhausted = false
	b.failed = nil
}

// releaseGeneration returns the open output block and everything the
// current executor and fetcher hold.
func (b *ExecutionBlock[E]) releaseGeneration() {
	if b.out != nil {
		b.engine.Manager.ReturnBlock(b.out.StealBlock())
		b.out = nil
	}
	if c, ok := any(b.executor).(executor.Closer); ok {
		c.Close()
	}
	if b.fetcher != nil {
		b.fetcher.Close()
	}
}
