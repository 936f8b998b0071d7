package block

import (
	"github.com/cockroachdb/errors"

	"github.com/harshithgowdakt/blockexec/internal/types"
)

// ItemBlock is a dense rows x registers grid of values and the unit of data
// transfer between execution blocks. Its capacity is fixed at creation; the
// reported size only ever shrinks.
type ItemBlock struct {
	data     []types.Value
	nrItems  int
	capacity int
	nrRegs   int
	pins     int
}

func newItemBlock(nrItems, nrRegs int) *ItemBlock {
	return &ItemBlock{
		data:     make([]types.Value, nrItems*nrRegs),
		nrItems:  nrItems,
		capacity: nrItems,
		nrRegs:   nrRegs,
	}
}

// Size returns the number of rows in the block.
func (b *ItemBlock) Size() int { return b.nrItems }

// Capacity returns the number of rows the block was created with.
func (b *ItemBlock) Capacity() int { return b.capacity }

// NumRegisters returns the number of registers per row.
func (b *ItemBlock) NumRegisters() int { return b.nrRegs }

// GetValue returns the value at (row, reg). Empty cells are nil.
func (b *ItemBlock) GetValue(row int, reg types.RegisterID) types.Value {
	return b.data[b.index(row, reg)]
}

// SetValue writes the value at (row, reg).
func (b *ItemBlock) SetValue(row int, reg types.RegisterID, v types.Value) {
	b.data[b.index(row, reg)] = v
}

// IsEmpty reports whether (row, reg) was never written.
func (b *ItemBlock) IsEmpty(row int, reg types.RegisterID) bool {
	return b.data[b.index(row, reg)] == nil
}

// CopyRowFrom copies the given registers of src's row into row of b.
func (b *ItemBlock) CopyRowFrom(row int, src *ItemBlock, srcRow int, regs []types.RegisterID) {
	for _, r := range regs {
		b.SetValue(row, r, src.GetValue(srcRow, r))
	}
}

// ShrinkTo reduces the reported size to n rows. Rows beyond n are cleared so
// a consumer never sees partially written rows.
func (b *ItemBlock) ShrinkTo(n int) {
	if n > b.nrItems || n < 0 {
		panic(errors.AssertionFailedf("cannot shrink block of %d rows to %d", b.nrItems, n))
	}
	clear(b.data[n*b.nrRegs : b.nrItems*b.nrRegs])
	b.nrItems = n
}

// Pin marks the block as referenced by a live row view.
func (b *ItemBlock) Pin() { b.pins++ }

// Unpin drops one row view reference.
func (b *ItemBlock) Unpin() {
	if b.pins == 0 {
		panic(errors.AssertionFailedf("unpin of unpinned block"))
	}
	b.pins--
}

// Pinned reports whether any row view still references the block.
func (b *ItemBlock) Pinned() bool { return b.pins > 0 }

func (b *ItemBlock) index(row int, reg types.RegisterID) int {
	if row < 0 || row >= b.nrItems || int(reg) < 0 || int(reg) >= b.nrRegs {
		panic(errors.AssertionFailedf("cell (%d, %d) out of range for %dx%d block",
			row, reg, b.nrItems, b.nrRegs))
	}
	return row*b.nrRegs + int(reg)
}

// reset restores the full capacity and clears every cell for reuse.
func (b *ItemBlock) reset() {
	clear(b.data)
	b.nrItems = b.capacity
	b.pins = 0
}
