package exec

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/harshithgowdakt/blockexec/internal/block"
	"github.com/harshithgowdakt/blockexec/internal/block/blocktest"
	"github.com/harshithgowdakt/blockexec/internal/executor"
	"github.com/harshithgowdakt/blockexec/internal/faults"
	"github.com/harshithgowdakt/blockexec/internal/fetcher"
	"github.com/harshithgowdakt/blockexec/internal/rows"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// scriptedBlock is a leaf block replaying a fixed script of pulls.
type scriptedBlock struct {
	*blocktest.Scripted
	inits  int
	closed bool
}

func (s *scriptedBlock) Name() string { return "Scripted" }

func (s *scriptedBlock) Skip(int) (types.ExecutionState, int, error) {
	panic("skip on scripted block")
}

func (s *scriptedBlock) InitializeCursor(*block.ItemBlock, int) error {
	s.inits++
	return nil
}

func (s *scriptedBlock) Close() { s.closed = true }

func newTestEngine(limit int64) *Engine {
	e := NewEngine(block.NewManager(block.NewResourceMonitor(limit)), zap.NewNop())
	e.BatchSize = 10
	return e
}

func script(t *testing.T, e *Engine, nrRegs int, steps ...blocktest.Step) *scriptedBlock {
	return &scriptedBlock{Scripted: &blocktest.Scripted{T: t, M: e.Manager, NrRegs: nrRegs, Steps: steps}}
}

func mustBlock[E executor.Executor](t *testing.T, e *Engine, kind executor.Kind[E], deps ...Block) *ExecutionBlock[E] {
	t.Helper()
	b, err := NewExecutionBlock(e, kind, deps...)
	require.NoError(t, err)
	require.NoError(t, b.InitializeCursor(nil, 0))
	return b
}

func keepAll(rows.InputRow) (bool, error) { return true, nil }

func TestCountOverEmptyUpstream(t *testing.T) {
	e := newTestEngine(0)
	up := script(t, e, 1, blocktest.Waiting(), blocktest.Done())
	b := mustBlock(t, e, executor.CountKind(1, 0), up)
	require.Equal(t, 1, up.inits)

	state, res, err := b.Pull(10)
	require.NoError(t, err)
	require.Equal(t, types.StateWaiting, state)
	require.Nil(t, res)

	state, res, err = b.Pull(10)
	require.NoError(t, err)
	require.Equal(t, types.StateDone, state)
	require.Equal(t, []types.Value{uint64(0)}, blocktest.Column(res, 0))
	e.Manager.ReturnBlock(res)

	// Exhausted: neither the executor nor the upstream is asked again.
	state, res, err = b.Pull(10)
	require.NoError(t, err)
	require.Equal(t, types.StateDone, state)
	require.Nil(t, res)
	require.Equal(t, 2, up.Calls)

	b.Close()
	require.True(t, up.closed)
	require.Equal(t, int64(0), e.Manager.Monitor().Current())
}

func TestNoEmptyBlockIsDelivered(t *testing.T) {
	e := newTestEngine(0)
	up := script(t, e, 1,
		blocktest.HasMore(blocktest.IntRows(1, 2, 3)...),
		blocktest.Done(blocktest.IntRows(4)...),
	)
	dropAll := func(rows.InputRow) (bool, error) { return false, nil }
	b := mustBlock(t, e, executor.FilterKind(1, dropAll), up)

	state, res, err := b.Pull(2)
	require.NoError(t, err)
	require.Equal(t, types.StateDone, state)
	require.Nil(t, res)
	require.Equal(t, int64(4), e.Stats.(*Statistics).Total().Filtered)

	b.Close()
	require.Equal(t, int64(0), e.Manager.Monitor().Current())
}

func TestPullHonorsAtMost(t *testing.T) {
	e := newTestEngine(0)
	up := script(t, e, 1,
		blocktest.HasMore(blocktest.IntRows(1, 2, 3)...),
		blocktest.Done(blocktest.IntRows(4, 5)...),
	)
	b := mustBlock(t, e, executor.FilterKind(1, keepAll), up)

	var sizes []int
	var vals []types.Value
	var states []types.ExecutionState
	for {
		state, res, err := b.Pull(2)
		require.NoError(t, err)
		states = append(states, state)
		if res != nil {
			require.NotZero(t, res.Size())
			sizes = append(sizes, res.Size())
			vals = append(vals, blocktest.Column(res, 0)...)
			e.Manager.ReturnBlock(res)
		}
		if state == types.StateDone {
			break
		}
	}
	require.Equal(t, []int{2, 2, 1}, sizes)
	require.Equal(t, []types.ExecutionState{types.StateHasMore, types.StateHasMore, types.StateDone}, states)
	require.Len(t, vals, 5)

	stats := e.Stats.(*Statistics)
	require.Equal(t, int64(5), stats.Rows("Filter"))
	require.Equal(t, int64(3), stats.Pulls("Filter"))
}

func TestPassThroughRelabelsUpstreamBlocks(t *testing.T) {
	e := newTestEngine(0)
	up := script(t, e, 2,
		blocktest.Waiting(),
		blocktest.HasMore(blocktest.IntRows(1, 2, 3)...),
		blocktest.Done(blocktest.IntRows(4, 5)...),
	)
	triple := func(row rows.InputRow) (types.Value, error) { return row.Value(0).(int64) * 3, nil }
	b := mustBlock(t, e, executor.CalculationKind(2, 1, triple), up)

	state, res, err := b.Pull(5)
	require.NoError(t, err)
	require.Equal(t, types.StateWaiting, state)
	require.Nil(t, res)

	var got [][]types.Value
	for state != types.StateDone {
		state, res, err = b.Pull(5)
		require.NoError(t, err)
		require.NotNil(t, res)
		require.Equal(t, 2, res.NumRegisters())
		for i := 0; i < res.Size(); i++ {
			got = append(got, []types.Value{res.GetValue(i, 0), res.GetValue(i, 1)})
		}
		e.Manager.ReturnBlock(res)
	}
	require.Equal(t, [][]types.Value{
		{int64(1), int64(3)}, {int64(2), int64(6)}, {int64(3), int64(9)},
		{int64(4), int64(12)}, {int64(5), int64(15)},
	}, got)
	// One block in, one block out: nothing beyond the upstream blocks was allocated.
	require.Equal(t, int64(2), e.Manager.Stats().Requested)
	require.Equal(t, int64(0), e.Manager.Monitor().Current())
}

func TestPassThroughConservation(t *testing.T) {
	e := newTestEngine(0)
	var upstream []*block.ItemBlock
	up := &recordingUpstream{inner: script(t, e, 2,
		blocktest.HasMore([]types.Value{int64(1), "a"}, []types.Value{int64(2), "b"}),
		blocktest.Done([]types.Value{int64(3), "c"}),
	), seen: &upstream}
	b := mustBlock(t, e, executor.IDKind(2), up)

	for i := 0; ; i++ {
		state, res, err := b.Pull(10)
		require.NoError(t, err)
		require.Same(t, upstream[i], res)
		require.False(t, res.Pinned())
		e.Manager.ReturnBlock(res)
		if state == types.StateDone {
			break
		}
	}
	require.Len(t, upstream, 2)
}

func TestPassThroughUpstreamDoneWithoutBlock(t *testing.T) {
	e := newTestEngine(0)
	up := script(t, e, 1, blocktest.HasMore(blocktest.IntRows(1)...), blocktest.Done())
	b := mustBlock(t, e, executor.IDKind(1), up)

	state, res, err := b.Pull(10)
	require.NoError(t, err)
	require.Equal(t, types.StateHasMore, state)
	e.Manager.ReturnBlock(res)

	state, res, err = b.Pull(10)
	require.NoError(t, err)
	require.Equal(t, types.StateDone, state)
	require.Nil(t, res)

	state, _, err = b.Pull(10)
	require.NoError(t, err)
	require.Equal(t, types.StateDone, state)
	require.Equal(t, 2, up.Calls)
}

func TestPassThroughRegisterMismatchPanics(t *testing.T) {
	e := newTestEngine(0)
	up := script(t, e, 1, blocktest.Done(blocktest.IntRows(1)...))
	b := mustBlock(t, e, executor.IDKind(2), up)
	require.Panics(t, func() { _, _, _ = b.Pull(10) })
}

func TestOutOfMemoryPropagates(t *testing.T) {
	e := newTestEngine(block.BlockBytes(4, 1) + block.BlockBytes(10, 1))
	up := script(t, e, 1, blocktest.Done(blocktest.IntRows(1, 2, 3, 4)...))
	filter := mustBlock(t, e, executor.FilterKind(1, keepAll), up)
	count := mustBlock(t, e, executor.CountKind(1, 0), filter)

	// The count block gets its output block, the filter's does not fit.
	_, res, err := count.Pull(10)
	require.Nil(t, res)
	require.True(t, errors.Is(err, block.ErrOutOfMemory))

	count.Close()
	require.Equal(t, int64(0), e.Manager.Monitor().Current())

	// The budget is intact: a query that fits still runs.
	up2 := script(t, e, 1, blocktest.Done(blocktest.IntRows(7)...))
	small := mustBlock(t, e, executor.CountKind(1, 0), up2)
	state, res, err := small.Pull(2)
	require.NoError(t, err)
	require.Equal(t, types.StateDone, state)
	require.Equal(t, []types.Value{uint64(1)}, blocktest.Column(res, 0))
	e.Manager.ReturnBlock(res)
}

func TestOversizedPullIsCapped(t *testing.T) {
	e := newTestEngine(0)
	up := script(t, e, 4, blocktest.Done(blocktest.IntRows(1, 2)...))
	b := mustBlock(t, e, executor.FilterKind(4, keepAll), up)

	state, res, err := b.Pull(1 << 62)
	require.NoError(t, err)
	require.Equal(t, types.StateDone, state)
	require.Equal(t, []types.Value{int64(1), int64(2)}, blocktest.Column(res, 0))
	require.LessOrEqual(t, e.Manager.Monitor().Peak(), block.BlockBytes(DefaultBatchSize, 4)+block.BlockBytes(2, 4))
	e.Manager.ReturnBlock(res)

	b.Close()
	require.Equal(t, int64(0), e.Manager.Monitor().Current())
}

func TestExecutorErrorIsSticky(t *testing.T) {
	errBadRow := errors.New("bad row")
	failOnTwo := func(row rows.InputRow) (bool, error) {
		if row.Value(0) == int64(2) {
			return false, errBadRow
		}
		return true, nil
	}
	e := newTestEngine(0)
	up := script(t, e, 1,
		blocktest.HasMore(blocktest.IntRows(1, 2, 3)...),
		blocktest.Done(blocktest.IntRows(4)...),
	)
	b := mustBlock(t, e, executor.FilterKind(1, failOnTwo), up)

	_, res, err := b.Pull(10)
	require.Nil(t, res)
	require.True(t, errors.Is(err, errBadRow))

	// Row 3 is never handed to the executor.
	_, res, err = b.Pull(10)
	require.Nil(t, res)
	require.True(t, errors.Is(err, errBadRow))
	_, n, err := b.Skip(10)
	require.Zero(t, n)
	require.True(t, errors.Is(err, errBadRow))
	require.Equal(t, 1, up.Calls)

	// A new cursor clears the failure.
	require.NoError(t, b.InitializeCursor(nil, 0))
	state, res, err := b.Pull(10)
	require.NoError(t, err)
	require.Equal(t, types.StateDone, state)
	require.Equal(t, []types.Value{int64(4)}, blocktest.Column(res, 0))
	e.Manager.ReturnBlock(res)

	b.Close()
	require.Equal(t, int64(0), e.Manager.Monitor().Current())
}

func TestRejectsNonPositiveAtMost(t *testing.T) {
	e := newTestEngine(0)
	up := script(t, e, 1)
	b := mustBlock(t, e, executor.IDKind(1), up)

	_, res, err := b.Pull(0)
	require.Nil(t, res)
	require.True(t, errors.Is(err, ErrInvalidArgument))
	_, n, err := b.Skip(-1)
	require.Zero(t, n)
	require.True(t, errors.Is(err, ErrInvalidArgument))
	require.Zero(t, up.Calls)
}

func TestFaultPoints(t *testing.T) {
	for _, point := range []string{
		FaultPullBegin, FaultPullOutputBlock, FaultSkipBegin,
		fetcher.FaultFetchBlock, block.FaultRequestBlock,
	} {
		t.Run(point, func(t *testing.T) {
			e := newTestEngine(0)
			reg := faults.NewRegistry()
			e.SetFaults(reg)
			up := script(t, e, 1, blocktest.Done(blocktest.IntRows(1)...))
			b := mustBlock(t, e, executor.FilterKind(1, keepAll), up)

			reg.Enable(point)
			_, _, err := b.Skip(10)
			require.True(t, errors.Is(err, faults.ErrDebug))

			reg.ClearAll()
			if point == fetcher.FaultFetchBlock {
				// Raised inside the executor: the block stays failed until a new cursor.
				_, _, err = b.Skip(10)
				require.True(t, errors.Is(err, faults.ErrDebug))
				require.NoError(t, b.InitializeCursor(nil, 0))
			}
			state, n, err := b.Skip(10)
			require.NoError(t, err)
			require.Equal(t, types.StateDone, state)
			require.Equal(t, 1, n)
			b.Close()
			require.Equal(t, int64(0), e.Manager.Monitor().Current())
		})
	}
}

func TestSkipCountsRows(t *testing.T) {
	e := newTestEngine(0)
	up := script(t, e, 1,
		blocktest.HasMore(blocktest.IntRows(1, 2, 3)...),
		blocktest.Done(blocktest.IntRows(4)...),
	)
	b := mustBlock(t, e, executor.IDKind(1), up)

	state, n, err := b.Skip(3)
	require.NoError(t, err)
	require.Equal(t, types.StateHasMore, state)
	require.Equal(t, 3, n)
	state, n, err = b.Skip(3)
	require.NoError(t, err)
	require.Equal(t, types.StateDone, state)
	require.Equal(t, 1, n)
	require.Equal(t, int64(0), e.Manager.Monitor().Current())
}

func TestSeedWithoutItems(t *testing.T) {
	e := newTestEngine(0)
	b := mustBlock(t, e, executor.IDKind(2))

	state, res, err := b.Pull(10)
	require.NoError(t, err)
	require.Equal(t, types.StateDone, state)
	require.Equal(t, 1, res.Size())
	require.True(t, res.IsEmpty(0, 0))
	require.True(t, res.IsEmpty(0, 1))
	e.Manager.ReturnBlock(res)
}

func TestSeedFromItems(t *testing.T) {
	e := newTestEngine(0)
	items := blocktest.Build(t, e.Manager, 2,
		[]types.Value{int64(1), "a"},
		[]types.Value{int64(2), "b"},
	)
	b, err := NewExecutionBlock(e, executor.IDKind(2))
	require.NoError(t, err)

	// Never initialized: nothing to deliver.
	state, res, err := b.Pull(10)
	require.NoError(t, err)
	require.Equal(t, types.StateDone, state)
	require.Nil(t, res)

	for pos, want := range []string{"a", "b"} {
		require.NoError(t, b.InitializeCursor(items, pos))
		state, res, err := b.Pull(10)
		require.NoError(t, err)
		require.Equal(t, types.StateDone, state)
		require.Equal(t, want, res.GetValue(0, 1))
		e.Manager.ReturnBlock(res)
	}

	require.Error(t, b.InitializeCursor(items, 2))
	e.Manager.ReturnBlock(items)
	b.Close()
	require.Equal(t, int64(0), e.Manager.Monitor().Current())
}

func TestSeedRegisterMismatch(t *testing.T) {
	e := newTestEngine(0)
	items := blocktest.Ints(t, e.Manager, 1)
	b, err := NewExecutionBlock(e, executor.IDKind(2))
	require.NoError(t, err)
	err = b.InitializeCursor(items, 0)
	require.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestInitializeCursorReturnsOpenOutput(t *testing.T) {
	e := newTestEngine(0)
	up := script(t, e, 1,
		blocktest.HasMore(blocktest.IntRows(1, 2)...),
		blocktest.Waiting(),
		blocktest.Done(blocktest.IntRows(9)...),
	)
	b := mustBlock(t, e, executor.FilterKind(1, keepAll), up)

	state, res, err := b.Pull(10)
	require.NoError(t, err)
	require.Equal(t, types.StateWaiting, state)
	require.Nil(t, res)
	require.NotZero(t, e.Manager.Monitor().Current())

	require.NoError(t, b.InitializeCursor(nil, 0))
	require.Equal(t, 2, up.inits)
	require.Equal(t, int64(0), e.Manager.Monitor().Current())

	// The new generation starts from scratch.
	state, res, err = b.Pull(10)
	require.NoError(t, err)
	require.Equal(t, types.StateDone, state)
	require.Equal(t, []types.Value{int64(9)}, blocktest.Column(res, 0))
	e.Manager.ReturnBlock(res)
}

func TestInitializeCursorAfterDone(t *testing.T) {
	e := newTestEngine(0)
	b := mustBlock(t, e, executor.CountKind(1, 0))
	for i := 0; i < 3; i++ {
		state, res, err := b.Pull(10)
		require.NoError(t, err)
		require.Equal(t, types.StateDone, state)
		require.Equal(t, []types.Value{uint64(1)}, blocktest.Column(res, 0))
		e.Manager.ReturnBlock(res)

		state, res, err = b.Pull(10)
		require.NoError(t, err)
		require.Equal(t, types.StateDone, state)
		require.Nil(t, res)
		require.NoError(t, b.InitializeCursor(nil, 0))
	}
	b.Close()
	require.Equal(t, int64(0), e.Manager.Monitor().Current())
}

func TestUnionOverBlocks(t *testing.T) {
	e := newTestEngine(0)
	a := script(t, e, 1, blocktest.Waiting(), blocktest.Done(blocktest.IntRows(1, 2)...))
	c := script(t, e, 1, blocktest.Done(blocktest.IntRows(3)...))
	b := mustBlock(t, e, executor.UnionKind(1), a, c)

	var vals []types.Value
	for {
		state, res, err := b.Pull(10)
		require.NoError(t, err)
		if res != nil {
			vals = append(vals, blocktest.Column(res, 0)...)
			e.Manager.ReturnBlock(res)
		}
		if state == types.StateDone {
			break
		}
	}
	require.Equal(t, []types.Value{int64(1), int64(2), int64(3)}, vals)
	require.Equal(t, 1, a.inits)
	require.Equal(t, 1, c.inits)
}

// misbehaving writes a row and then claims to be waiting.
type misbehaving struct{}

func (misbehaving) ProduceRow(out *rows.OutputRow) (types.ExecutionState, executor.Stats, error) {
	out.SetValue(0, rows.InputRow{}, int64(1))
	return types.StateWaiting, executor.Stats{}, nil
}

func TestWaitingWithRowPanics(t *testing.T) {
	e := newTestEngine(0)
	kind := executor.Kind[misbehaving]{
		Name:  "Misbehaving",
		Infos: executor.NewInfos(nil, rows.NewRegisterSet(0), nil, 1, 1),
		New:   func(*fetcher.BlockFetcher) misbehaving { return misbehaving{} },
	}
	b := mustBlock(t, e, kind)
	require.Panics(t, func() { _, _, _ = b.Pull(10) })
}

func TestNewExecutionBlockValidates(t *testing.T) {
	e := newTestEngine(0)
	_, err := NewExecutionBlock(e, executor.CalculationKind(1, 1, nil))
	require.Error(t, err)

	kind := executor.IDKind(2)
	kind.Infos.NumOutputRegisters = 3
	_, err = NewExecutionBlock(e, kind)
	require.Error(t, err)
}

// recordingUpstream remembers every block its inner upstream delivered.
type recordingUpstream struct {
	inner *scriptedBlock
	seen  *[]*block.ItemBlock
}

func (r *recordingUpstream) Name() string { return "Recording" }

func (r *recordingUpstream) Pull(atMost int) (types.ExecutionState, *block.ItemBlock, error) {
	state, b, err := r.inner.Pull(atMost)
	if b != nil {
		*r.seen = append(*r.seen, b)
	}
	return state, b, err
}

func (r *recordingUpstream) Skip(n int) (types.ExecutionState, int, error) { return r.inner.Skip(n) }

func (r *recordingUpstream) InitializeCursor(items *block.ItemBlock, pos int) error {
	return r.inner.InitializeCursor(items, pos)
}

func (r *recordingUpstream) Close() { r.inner.Close() }
