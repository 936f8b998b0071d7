// Package blocktest builds item blocks from literal rows for tests.
package blocktest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/blockexec/internal/block"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// NewManager returns a manager with an unlimited budget.
func NewManager() *block.Manager {
	return block.NewManager(block.NewResourceMonitor(0))
}

// Build creates a block holding rows. Every row must have nrRegs values;
// nil values stay empty.
func Build(t testing.TB, m *block.Manager, nrRegs int, rows ...[]types.Value) *block.ItemBlock {
	t.Helper()
	b, err := m.RequestBlock(len(rows), nrRegs)
	require.NoError(t, err)
	for i, row := range rows {
		require.Len(t, row, nrRegs)
		for reg, v := range row {
			b.SetValue(i, types.RegisterID(reg), v)
		}
	}
	return b
}

// Ints creates a single-register block of int64 values.
func Ints(t testing.TB, m *block.Manager, vals ...int64) *block.ItemBlock {
	t.Helper()
	rows := make([][]types.Value, len(vals))
	for i, v := range vals {
		rows[i] = []types.Value{v}
	}
	return Build(t, m, 1, rows...)
}

// Column returns the values of one register across all rows.
func Column(b *block.ItemBlock, reg types.RegisterID) []types.Value {
	if b == nil {
		return nil
	}
	out := make([]types.Value, b.Size())
	for i := range out {
		out[i] = b.GetValue(i, reg)
	}
	return out
}

// Step is one scripted upstream answer. A step without rows delivers no block.
type Step struct {
	State types.ExecutionState
	Rows  [][]types.Value
}

// Waiting is a suspended answer.
func Waiting() Step { return Step{State: types.StateWaiting} }

// HasMore delivers rows with more to come.
func HasMore(rows ...[]types.Value) Step { return Step{State: types.StateHasMore, Rows: rows} }

// Done delivers the final rows, if any.
func Done(rows ...[]types.Value) Step { return Step{State: types.StateDone, Rows: rows} }

// IntRows turns each value into a single-register row.
func IntRows(vals ...int64) [][]types.Value {
	out := make([][]types.Value, len(vals))
	for i, v := range vals {
		out[i] = []types.Value{v}
	}
	return out
}

// Scripted is an upstream replaying Steps in order. Pulling past the end of
// the script fails the test.
type Scripted struct {
	T      testing.TB
	M      *block.Manager
	NrRegs int
	Steps  []Step
	Calls  int
}

// Pull implements the upstream contract.
func (u *Scripted) Pull(atMost int) (types.ExecutionState, *block.ItemBlock, error) {
	require.Less(u.T, u.Calls, len(u.Steps), "upstream pulled after its script ended")
	s := u.Steps[u.Calls]
	u.Calls++
	if len(s.Rows) == 0 {
		return s.State, nil, nil
	}
	require.LessOrEqual(u.T, len(s.Rows), atMost)
	nrRegs := u.NrRegs
	if nrRegs == 0 {
		nrRegs = len(s.Rows[0])
	}
	return s.State, Build(u.T, u.M, nrRegs, padRows(s.Rows, nrRegs)...), nil
}

func padRows(rows [][]types.Value, nrRegs int) [][]types.Value {
	out := make([][]types.Value, len(rows))
	for i, r := range rows {
		out[i] = make([]types.Value, nrRegs)
		copy(out[i], r)
	}
	return out
}
