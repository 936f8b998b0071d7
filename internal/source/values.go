// Package source holds leaf blocks: data enters a pipeline through them via
// the same Pull contract every execution block offers.
package source

import (
	"github.com/cockroachdb/errors"

	"github.com/harshithgowdakt/blockexec/internal/block"
	"github.com/harshithgowdakt/blockexec/internal/exec"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// ValuesBlock serves rows held in memory.
type ValuesBlock struct {
	manager *block.Manager
	nrRegs  int
	rows    [][]types.Value

	// WaitPolls is the number of WAITING answers before each batch, for
	// exercising suspension.
	WaitPolls int

	pos    int
	polled int
}

var _ exec.Block = (*ValuesBlock)(nil)

// NewValuesBlock creates a block serving rows, each padded or cut to nrRegs
// registers.
func NewValuesBlock(m *block.Manager, nrRegs int, rows [][]types.Value) *ValuesBlock {
	return &ValuesBlock{manager: m, nrRegs: nrRegs, rows: rows}
}

// Name implements exec.Block.
func (v *ValuesBlock) Name() string { return "Values" }

// Pull implements exec.Block.
func (v *ValuesBlock) Pull(atMost int) (types.ExecutionState, *block.ItemBlock, error) {
	if atMost <= 0 {
		return types.StateDone, nil, errors.Wrapf(exec.ErrInvalidArgument, "pull of %d rows", atMost)
	}
	if v.pos >= len(v.rows) {
		return types.StateDone, nil, nil
	}
	if v.polled < v.WaitPolls {
		v.polled++
		return types.StateWaiting, nil, nil
	}
	n := min(atMost, len(v.rows)-v.pos)
	b, err := v.manager.RequestBlock(n, v.nrRegs)
	if err != nil {
		return types.StateDone, nil, err
	}
	for i := 0; i < n; i++ {
		row := v.rows[v.pos+i]
		for reg := 0; reg < v.nrRegs && reg < len(row); reg++ {
			b.SetValue(i, types.RegisterID(reg), row[reg])
		}
	}
	v.pos += n
	v.polled = 0
	if v.pos >= len(v.rows) {
		return types.StateDone, b, nil
	}
	return types.StateHasMore, b, nil
}

// Skip implements exec.Block.
func (v *ValuesBlock) Skip(atMost int) (types.ExecutionState, int, error) {
	state, b, err := v.Pull(atMost)
	if b == nil {
		return state, 0, err
	}
	n := b.Size()
	v.manager.ReturnBlock(b)
	return state, n, nil
}

// InitializeCursor rewinds to the first row. Values blocks carry their own
// data, so the seed row is ignored.
func (v *ValuesBlock) InitializeCursor(*block.ItemBlock, int) error {
	v.pos, v.polled = 0, 0
	return nil
}

// Close implements exec.Block.
func (v *ValuesBlock) Close() {}
