package rows

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/harshithgowdakt/blockexec/internal/block"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// RegisterSet is the set of registers an operator reads or writes.
type RegisterSet = mapset.Set[types.RegisterID]

// NewRegisterSet builds a register set from ids.
func NewRegisterSet(ids ...types.RegisterID) RegisterSet {
	return mapset.NewThreadUnsafeSet(ids...)
}

// SortedRegisters returns the members of s in ascending order.
func SortedRegisters(s RegisterSet) []types.RegisterID {
	if s == nil {
		return nil
	}
	out := s.ToSlice()
	slices.Sort(out)
	return out
}

// InputBlockShell wraps an upstream block together with the registers the
// consumer declared as input. An owning shell pins the block and hands it
// back to the manager on Release; a borrowed shell does neither.
type InputBlockShell struct {
	block     *block.ItemBlock
	inputRegs RegisterSet
	manager   *block.Manager
}

// NewOwnedInputShell takes ownership of b.
func NewOwnedInputShell(m *block.Manager, b *block.ItemBlock, inputRegs RegisterSet) *InputBlockShell {
	b.Pin()
	return &InputBlockShell{block: b, inputRegs: inputRegs, manager: m}
}

// NewBorrowedInputShell addresses b without owning it. Used when the block
// is queued for pass-through and will become the caller's output block.
func NewBorrowedInputShell(b *block.ItemBlock, inputRegs RegisterSet) *InputBlockShell {
	return &InputBlockShell{block: b, inputRegs: inputRegs}
}

// Block returns the wrapped block.
func (s *InputBlockShell) Block() *block.ItemBlock { return s.block }

// InputRegisters returns the declared input registers.
func (s *InputBlockShell) InputRegisters() RegisterSet { return s.inputRegs }

// Owned reports whether Release returns the block to the manager.
func (s *InputBlockShell) Owned() bool { return s.manager != nil }

// Size returns the number of rows in the wrapped block.
func (s *InputBlockShell) Size() int { return s.block.Size() }

// Release drops the shell's reference. Owning shells return the block.
// Rows taken from the shell must not be read afterwards.
func (s *InputBlockShell) Release() {
	if s == nil || s.block == nil {
		return
	}
	if s.manager != nil {
		s.block.Unpin()
		s.manager.ReturnBlock(s.block)
	}
	s.block = nil
}

// OutputBlockShell is a block an operator writes into, with the registers it
// produces and the upstream registers it keeps.
type OutputBlockShell struct {
	block      *block.ItemBlock
	outputRegs RegisterSet
	keepRegs   RegisterSet
}

// NewOutputBlockShell wraps b for writing.
func NewOutputBlockShell(b *block.ItemBlock, outputRegs, keepRegs RegisterSet) *OutputBlockShell {
	if outputRegs == nil {
		outputRegs = NewRegisterSet()
	}
	if keepRegs == nil {
		keepRegs = NewRegisterSet()
	}
	return &OutputBlockShell{block: b, outputRegs: outputRegs, keepRegs: keepRegs}
}

// Block returns the wrapped block.
func (s *OutputBlockShell) Block() *block.ItemBlock { return s.block }

// OutputRegisters returns the registers the operator writes.
func (s *OutputBlockShell) OutputRegisters() RegisterSet { return s.outputRegs }

// RegistersToKeep returns the upstream registers copied into every row.
func (s *OutputBlockShell) RegistersToKeep() RegisterSet { return s.keepRegs }
