// Package executor holds the business logic of operators. An executor pulls
// rows through its row fetcher and writes at most one row per ProduceRow
// call; batching, suspension and block reuse are left to exec.ExecutionBlock.
package executor

import (
	"github.com/cockroachdb/errors"

	"github.com/harshithgowdakt/blockexec/internal/fetcher"
	"github.com/harshithgowdakt/blockexec/internal/rows"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// Properties are fixed per operator kind.
type Properties struct {
	// PreservesOrder is set when output rows keep the input order.
	PreservesOrder bool
	// AllowsBlockPassthrough is set when the operator writes at most one new
	// register onto a relabeled upstream block instead of a block of its own.
	AllowsBlockPassthrough bool
}

// Stats is the additive per-call statistics record.
type Stats struct {
	Filtered  int64
	FullCount int64
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Filtered += o.Filtered
	s.FullCount += o.FullCount
}

// IsZero reports whether nothing was recorded.
func (s Stats) IsZero() bool { return s == Stats{} }

// Infos is the register layout of one operator.
type Infos struct {
	InputRegisters     rows.RegisterSet
	OutputRegisters    rows.RegisterSet
	RegistersToKeep    rows.RegisterSet
	NumInputRegisters  int
	NumOutputRegisters int
}

// NewInfos builds a register layout. Nil sets are treated as empty.
func NewInfos(in, out, keep rows.RegisterSet, nrIn, nrOut int) Infos {
	if in == nil {
		in = rows.NewRegisterSet()
	}
	if out == nil {
		out = rows.NewRegisterSet()
	}
	if keep == nil {
		keep = rows.NewRegisterSet()
	}
	return Infos{
		InputRegisters:     in,
		OutputRegisters:    out,
		RegistersToKeep:    keep,
		NumInputRegisters:  nrIn,
		NumOutputRegisters: nrOut,
	}
}

// PassThroughInfos is the layout of an operator on nrRegs wide rows that
// writes the registers out and keeps every other one.
func PassThroughInfos(nrRegs int, out ...types.RegisterID) Infos {
	written := rows.NewRegisterSet(out...)
	keep := rows.NewRegisterSet()
	for r := 0; r < nrRegs; r++ {
		if !written.Contains(types.RegisterID(r)) {
			keep.Add(types.RegisterID(r))
		}
	}
	return NewInfos(keep.Clone(), written, keep, nrRegs, nrRegs)
}

// Validate checks that every register fits the declared register counts.
func (i Infos) Validate() error {
	for _, r := range rows.SortedRegisters(i.InputRegisters) {
		if int(r) < 0 || int(r) >= i.NumInputRegisters {
			return errors.Newf("input register %d outside %d input registers", r, i.NumInputRegisters)
		}
	}
	for _, r := range rows.SortedRegisters(i.RegistersToKeep) {
		if int(r) < 0 || int(r) >= i.NumInputRegisters || int(r) >= i.NumOutputRegisters {
			return errors.Newf("kept register %d outside %d input / %d output registers",
				r, i.NumInputRegisters, i.NumOutputRegisters)
		}
	}
	for _, r := range rows.SortedRegisters(i.OutputRegisters) {
		if int(r) < 0 || int(r) >= i.NumOutputRegisters {
			return errors.Newf("output register %d outside %d output registers", r, i.NumOutputRegisters)
		}
		if i.RegistersToKeep.Contains(r) {
			return errors.Newf("register %d is both kept and written", r)
		}
	}
	return nil
}

// Executor is one operator's business logic. ProduceRow writes at most one
// row into out. It returns WAITING (nothing written) when an upstream pull
// suspended, HASMORE when more output may follow and DONE once no further
// output can ever be produced.
type Executor interface {
	ProduceRow(out *rows.OutputRow) (types.ExecutionState, Stats, error)
}

// Closer is implemented by executors that hold blocks of their own.
type Closer interface {
	Close()
}

// Kind describes one operator kind. It is fixed for the lifetime of an
// execution block; New builds a fresh executor, including its row fetcher,
// on every cursor reset.
type Kind[E Executor] struct {
	Name       string
	Properties Properties
	Infos      Infos
	New        func(bf *fetcher.BlockFetcher) E
}
