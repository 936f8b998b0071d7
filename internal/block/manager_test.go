package block

import (
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/blockexec/internal/faults"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

func TestRequestAndReturnAccounting(t *testing.T) {
	mon := NewResourceMonitor(0)
	m := NewManager(mon)

	b, err := m.RequestBlock(10, 3)
	require.NoError(t, err)
	require.Equal(t, 10, b.Size())
	require.Equal(t, 3, b.NumRegisters())
	require.Equal(t, BlockBytes(10, 3), mon.Current())

	m.ReturnBlock(b)
	require.Equal(t, int64(0), mon.Current())
	require.Equal(t, BlockBytes(10, 3), mon.Peak())
}

func TestReturnedBlockIsReusedAndCleared(t *testing.T) {
	m := NewManager(NewResourceMonitor(0))

	b, err := m.RequestBlock(4, 2)
	require.NoError(t, err)
	b.SetValue(1, 1, int64(42))
	b.ShrinkTo(2)
	m.ReturnBlock(b)

	again, err := m.RequestBlock(4, 2)
	require.NoError(t, err)
	require.Same(t, b, again)
	require.Equal(t, 4, again.Size())
	require.True(t, again.IsEmpty(1, 1))

	stats := m.Stats()
	require.Equal(t, int64(2), stats.Requested)
	require.Equal(t, int64(1), stats.Reused)
	require.Equal(t, int64(1), stats.Returned)
}

func TestRequestOverBudgetKeepsCounterIntact(t *testing.T) {
	limit := BlockBytes(10, 2) + BlockBytes(5, 2)
	mon := NewResourceMonitor(limit)
	m := NewManager(mon)

	first, err := m.RequestBlock(10, 2)
	require.NoError(t, err)
	before := mon.Current()

	_, err = m.RequestBlock(100, 2)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrOutOfMemory))
	require.Equal(t, before, mon.Current())

	// A request within the remaining budget still succeeds.
	second, err := m.RequestBlock(5, 2)
	require.NoError(t, err)
	require.Equal(t, limit, mon.Current())

	m.ReturnBlock(first)
	m.ReturnBlock(second)
	require.Equal(t, int64(0), mon.Current())
}

func TestRequestOversizedShape(t *testing.T) {
	for _, limit := range []int64{0, 1 << 20} {
		mon := NewResourceMonitor(limit)
		m := NewManager(mon)

		for _, shape := range [][2]int{{1 << 32, 1 << 32}, {MaxBlockCells + 1, 1}, {1 << 62, 4}} {
			_, err := m.RequestBlock(shape[0], shape[1])
			require.True(t, errors.Is(err, ErrOutOfMemory), "%d x %d", shape[0], shape[1])
			require.Equal(t, int64(0), mon.Current())
		}

		b, err := m.RequestBlock(8, 2)
		require.NoError(t, err)
		require.Equal(t, BlockBytes(8, 2), mon.Current())
		m.ReturnBlock(b)
		require.Equal(t, int64(0), mon.Current())
	}
}

func TestRequestInvalidShape(t *testing.T) {
	m := NewManager(NewResourceMonitor(0))
	_, err := m.RequestBlock(0, 1)
	require.True(t, errors.Is(err, ErrInvalidShape))
	_, err = m.RequestBlock(1, 0)
	require.True(t, errors.Is(err, ErrInvalidShape))
}

func TestReturnPinnedBlockPanics(t *testing.T) {
	m := NewManager(NewResourceMonitor(0))
	b, err := m.RequestBlock(1, 1)
	require.NoError(t, err)
	b.Pin()
	require.Panics(t, func() { m.ReturnBlock(b) })
	b.Unpin()
	require.NotPanics(t, func() { m.ReturnBlock(b) })
}

func TestRequestFaultPoint(t *testing.T) {
	m := NewManager(NewResourceMonitor(0))
	reg := faults.NewRegistry()
	m.SetFaults(reg)

	reg.Enable(FaultRequestBlock)
	_, err := m.RequestBlock(1, 1)
	require.True(t, errors.Is(err, faults.ErrDebug))
	require.Equal(t, int64(0), m.Monitor().Current())

	reg.ClearAll()
	b, err := m.RequestBlock(1, 1)
	require.NoError(t, err)
	m.ReturnBlock(b)
}

func TestConcurrentBudget(t *testing.T) {
	mon := NewResourceMonitor(BlockBytes(8, 1) * 4)
	m := NewManager(mon)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				b, err := m.RequestBlock(8, 1)
				if err != nil {
					continue
				}
				m.ReturnBlock(b)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int64(0), mon.Current())
	require.LessOrEqual(t, mon.Peak(), mon.Limit())
}

func TestSliceRow(t *testing.T) {
	m := NewManager(NewResourceMonitor(0))
	src, err := m.RequestBlock(3, 3)
	require.NoError(t, err)
	for row := 0; row < 3; row++ {
		for reg := 0; reg < 3; reg++ {
			src.SetValue(row, types.RegisterID(reg), int64(row*10+reg))
		}
	}

	b, err := m.SliceRow(src, 2, []types.RegisterID{0, 2})
	require.NoError(t, err)
	require.Equal(t, 1, b.Size())
	require.Equal(t, 3, b.NumRegisters())
	require.Equal(t, int64(20), b.GetValue(0, 0))
	require.True(t, b.IsEmpty(0, 1))
	require.Equal(t, int64(22), b.GetValue(0, 2))

	_, err = m.SliceRow(src, 3, nil)
	require.Error(t, err)
}

func TestShrinkNeverGrows(t *testing.T) {
	m := NewManager(NewResourceMonitor(0))
	b, err := m.RequestBlock(4, 1)
	require.NoError(t, err)
	b.SetValue(3, 0, int64(1))
	b.ShrinkTo(2)
	require.Equal(t, 2, b.Size())
	require.Equal(t, 4, b.Capacity())
	require.Panics(t, func() { b.ShrinkTo(3) })
	require.Panics(t, func() { b.GetValue(2, 0) })
}
