package block

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/sasha-s/go-deadlock"

	"github.com/harshithgowdakt/blockexec/internal/faults"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

const (
	// cellBytes is the accounted size of one register value.
	cellBytes = 16
	// blockOverhead is the accounted size of the block header.
	blockOverhead = 64
	// DefaultPooledPerShape bounds how many returned blocks of one shape are kept.
	DefaultPooledPerShape = 16
	// MaxBlockCells bounds rows x registers of a single block.
	MaxBlockCells = 1 << 30
)

// FaultRequestBlock makes RequestBlock fail when armed.
const FaultRequestBlock = "block/manager/request"

// ErrInvalidShape is returned for a request with no rows or no registers.
var ErrInvalidShape = errors.New("invalid block shape")

// BlockBytes returns the number of bytes charged for a rows x regs block.
// Shapes RequestBlock accepts never overflow.
func BlockBytes(rows, regs int) int64 {
	return int64(rows)*int64(regs)*cellBytes + blockOverhead
}

type shape struct {
	rows, regs int
}

// Manager hands out item blocks and takes them back for reuse. One manager
// serves every execution block of a process; the free lists are shared and
// locked, the budget lives in the ResourceMonitor.
type Manager struct {
	monitor        *ResourceMonitor
	faults         *faults.Registry
	pooledPerShape int

	mu   deadlock.Mutex
	free map[shape][]*ItemBlock

	requested atomic.Int64
	reused    atomic.Int64
	returned  atomic.Int64
}

// NewManager creates a manager charging blocks against monitor.
func NewManager(monitor *ResourceMonitor) *Manager {
	return &Manager{
		monitor:        monitor,
		pooledPerShape: DefaultPooledPerShape,
		free:           make(map[shape][]*ItemBlock),
	}
}

// SetFaults attaches a fault registry.
func (m *Manager) SetFaults(r *faults.Registry) { m.faults = r }

// SetPooledPerShape changes how many returned blocks of one shape are kept.
func (m *Manager) SetPooledPerShape(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pooledPerShape = n
}

// Monitor returns the budget this manager charges.
func (m *Manager) Monitor() *ResourceMonitor { return m.monitor }

// RequestBlock returns an empty block of the requested shape.
func (m *Manager) RequestBlock(rows, regs int) (*ItemBlock, error) {
	if rows <= 0 || regs <= 0 {
		return nil, errors.Wrapf(ErrInvalidShape, "%d rows x %d registers", rows, regs)
	}
	if rows > MaxBlockCells/regs {
		return nil, errors.Wrapf(ErrOutOfMemory, "block of %d rows x %d registers exceeds %d cells",
			rows, regs, MaxBlockCells)
	}
	if err := m.faults.Check(FaultRequestBlock); err != nil {
		return nil, err
	}
	if err := m.monitor.Reserve(BlockBytes(rows, regs)); err != nil {
		return nil, err
	}
	m.requested.Add(1)

	if b := m.takeFree(shape{rows, regs}); b != nil {
		m.reused.Add(1)
		return b, nil
	}
	return newItemBlock(rows, regs), nil
}

// ReturnBlock hands a block back. Returning a block still referenced by a
// row view is a programming error.
func (m *Manager) ReturnBlock(b *ItemBlock) {
	if b == nil {
		return
	}
	if b.Pinned() {
		panic(errors.AssertionFailedf("returning block still referenced by %d row views", b.pins))
	}
	m.monitor.Release(BlockBytes(b.capacity, b.nrRegs))
	m.returned.Add(1)

	b.reset()
	s := shape{b.capacity, b.nrRegs}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.free[s]) < m.pooledPerShape {
		m.free[s] = append(m.free[s], b)
	}
}

func (m *Manager) takeFree(s shape) *ItemBlock {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.free[s]
	if len(list) == 0 {
		return nil
	}
	b := list[len(list)-1]
	m.free[s] = list[:len(list)-1]
	return b
}

// ManagerStats is a snapshot of the manager's counters.
type ManagerStats struct {
	Requested int64
	Reused    int64
	Returned  int64
	InUse     int64 // bytes
	Peak      int64 // bytes
}

// Stats returns a snapshot of the manager's counters.
func (m *Manager) Stats() ManagerStats {
	return ManagerStats{
		Requested: m.requested.Load(),
		Reused:    m.reused.Load(),
		Returned:  m.returned.Load(),
		InUse:     m.monitor.Current(),
		Peak:      m.monitor.Peak(),
	}
}

// SliceRow copies the given registers of one row of src into a new
// single-row block with the same register count.
func (m *Manager) SliceRow(src *ItemBlock, pos int, regs []types.RegisterID) (*ItemBlock, error) {
	if pos < 0 || pos >= src.Size() {
		return nil, errors.Wrapf(ErrInvalidShape, "row %d outside block of %d rows", pos, src.Size())
	}
	b, err := m.RequestBlock(1, src.NumRegisters())
	if err != nil {
		return nil, err
	}
	b.CopyRowFrom(0, src, pos, regs)
	return b, nil
}
