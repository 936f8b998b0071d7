package rows

import (
	"github.com/cockroachdb/errors"

	"github.com/harshithgowdakt/blockexec/internal/block"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// InputRow is a read-only cursor on one row of an input shell. The zero
// value is the invalid row. A row is valid only until the next fetch call
// on the fetcher that returned it.
type InputRow struct {
	shell *InputBlockShell
	index int
}

// NewInputRow addresses row index of shell.
func NewInputRow(shell *InputBlockShell, index int) InputRow {
	return InputRow{shell: shell, index: index}
}

// IsInitialized reports whether the row addresses data.
func (r InputRow) IsInitialized() bool { return r.shell != nil && r.shell.block != nil }

// Value returns the value of reg.
func (r InputRow) Value(reg types.RegisterID) types.Value {
	return r.shell.block.GetValue(r.index, reg)
}

// NumRegisters returns the register count of the underlying block.
func (r InputRow) NumRegisters() int { return r.shell.block.NumRegisters() }

// Block returns the underlying block.
func (r InputRow) Block() *block.ItemBlock {
	if r.shell == nil {
		return nil
	}
	return r.shell.block
}

// Index returns the row's offset in its block.
func (r InputRow) Index() int { return r.index }

// SameRowAs reports whether both rows address the same cell row of the same block.
func (r InputRow) SameRowAs(o InputRow) bool {
	return r.Block() != nil && r.Block() == o.Block() && r.index == o.index
}

// OutputRow is a write cursor bound to one block for its whole lifetime.
// A row is produced once every output register is written and the kept
// registers were copied from the source row; AdvanceRow commits it.
type OutputRow struct {
	shell       *OutputBlockShell
	block       *block.ItemBlock
	keep        []types.RegisterID
	numOutputs  int
	passThrough bool

	baseIndex     int
	inputCopied   bool
	valuesWritten int
}

// NewOutputRow binds a cursor to shell's block. In pass-through mode the
// block is a relabeled upstream block and CopyRow only checks that the
// source row sits at the cursor's position.
func NewOutputRow(shell *OutputBlockShell, passThrough bool) *OutputRow {
	b := shell.Block()
	b.Pin()
	return &OutputRow{
		shell:       shell,
		block:       b,
		keep:        SortedRegisters(shell.keepRegs),
		numOutputs:  shell.outputRegs.Cardinality(),
		passThrough: passThrough,
	}
}

// SetValue writes v into the output register reg of the current row and,
// once all output registers are written, copies the kept registers from
// source.
func (o *OutputRow) SetValue(reg types.RegisterID, source InputRow, v types.Value) {
	o.checkOpen()
	if !o.shell.outputRegs.Contains(reg) {
		panic(errors.AssertionFailedf("register %d is not an output register", reg))
	}
	if o.valuesWritten >= o.numOutputs {
		panic(errors.AssertionFailedf("all %d output registers already written for row %d",
			o.numOutputs, o.baseIndex))
	}
	o.block.SetValue(o.baseIndex, reg, v)
	o.valuesWritten++
	if o.valuesWritten == o.numOutputs {
		o.CopyRow(source)
	}
}

// CopyRow copies the kept registers of source into the current row. Copying
// an invalid source marks the row as copied without touching any register.
func (o *OutputRow) CopyRow(source InputRow) {
	o.checkOpen()
	if o.inputCopied {
		return
	}
	if o.passThrough {
		if !source.IsInitialized() || source.Block() != o.block || source.Index() != o.baseIndex {
			panic(errors.AssertionFailedf("pass-through row %d does not match source row %d",
				o.baseIndex, source.Index()))
		}
	} else if source.IsInitialized() {
		o.block.CopyRowFrom(o.baseIndex, source.Block(), source.Index(), o.keep)
	}
	o.inputCopied = true
}

// Produced reports whether the current row is complete.
func (o *OutputRow) Produced() bool {
	return o.inputCopied && o.valuesWritten == o.numOutputs
}

// AdvanceRow commits the current row and moves to the next one.
func (o *OutputRow) AdvanceRow() {
	if !o.Produced() {
		panic(errors.AssertionFailedf("advancing row %d before it was produced", o.baseIndex))
	}
	o.baseIndex++
	o.inputCopied = false
	o.valuesWritten = 0
}

// IsFull reports whether no further row fits.
func (o *OutputRow) IsFull() bool {
	return o.block == nil || o.baseIndex >= o.block.Size()
}

// NumRowsWritten returns the number of committed rows.
func (o *OutputRow) NumRowsWritten() int { return o.baseIndex }

// NumRowsLeft returns the number of rows that still fit.
func (o *OutputRow) NumRowsLeft() int {
	if o.block == nil {
		return 0
	}
	return o.block.Size() - o.baseIndex
}

// IsPassThrough reports whether the cursor writes into a relabeled block.
func (o *OutputRow) IsPassThrough() bool { return o.passThrough }

// StealBlock detaches the block, shrunk to the committed rows. The cursor
// is unusable afterwards.
func (o *OutputRow) StealBlock() *block.ItemBlock {
	b := o.block
	if b == nil {
		return nil
	}
	b.ShrinkTo(o.baseIndex)
	b.Unpin()
	o.block = nil
	o.shell = nil
	return b
}

func (o *OutputRow) checkOpen() {
	if o.block == nil {
		panic(errors.AssertionFailedf("write to output row after its block was stolen"))
	}
}
