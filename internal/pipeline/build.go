package pipeline

import (
	"slices"

	"github.com/cockroachdb/errors"

	"github.com/harshithgowdakt/blockexec/internal/codec"
	"github.com/harshithgowdakt/blockexec/internal/config"
	"github.com/harshithgowdakt/blockexec/internal/exec"
	"github.com/harshithgowdakt/blockexec/internal/executor"
	"github.com/harshithgowdakt/blockexec/internal/source"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// plan assigns registers. Every block of a pipeline has the same width:
// the source columns plus one register per operator that writes one.
type plan struct {
	width   int
	nrRegs  int
	next    types.RegisterID
	visible []types.RegisterID
}

func newPlan(p config.Pipeline) plan {
	width := 1
	for _, s := range p.Sources {
		for _, row := range s.Rows {
			width = max(width, len(row))
		}
	}
	nrRegs := width
	for _, op := range p.Operators {
		if writesRegister(op.Type) {
			nrRegs++
		}
	}
	pl := plan{width: width, nrRegs: nrRegs, next: types.RegisterID(width)}
	for r := 0; r < width; r++ {
		pl.visible = append(pl.visible, types.RegisterID(r))
	}
	return pl
}

func writesRegister(opType string) bool {
	switch opType {
	case config.OpCalculation, config.OpCount, config.OpEnumerate:
		return true
	}
	return false
}

func (pl *plan) input(reg int) (types.RegisterID, error) {
	r := types.RegisterID(reg)
	if reg < 0 || !slices.Contains(pl.visible, r) {
		return 0, errors.Newf("register %d is not available, have %v", reg, pl.visible)
	}
	return r, nil
}

func (pl *plan) output() types.RegisterID {
	r := pl.next
	pl.next++
	pl.visible = append(pl.visible, r)
	return r
}

// Build wires p into a query: its sources, a union when there is more than
// one, then the operator chain.
func Build(p config.Pipeline, e *exec.Engine) (*Query, error) {
	pl := newPlan(p)
	stats := exec.NewStatistics()
	qe := *e
	qe.Stats = exec.TeeSink{stats, e.Stats}

	var deps []exec.Block
	for i, s := range p.Sources {
		src, err := buildSource(s, &qe, pl.nrRegs)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline %s: source %d", p.Name, i)
		}
		deps = append(deps, src)
	}
	root := deps[0]
	if len(deps) > 1 {
		u, err := exec.NewExecutionBlock(&qe, executor.UnionKind(pl.nrRegs), deps...)
		if err != nil {
			return nil, errors.Wrapf(err, "pipeline %s", p.Name)
		}
		root = u
	}
	for i, op := range p.Operators {
		next, err := buildOperator(op, &qe, &pl, root)
		if err != nil {
			root.Close()
			return nil, errors.Wrapf(err, "pipeline %s: operator %d (%s)", p.Name, i, op.Type)
		}
		root = next
	}
	q := NewQuery(p.Name, root, &qe, slices.Clone(pl.visible))
	q.stats = stats
	return q, nil
}

func buildSource(s config.Source, e *exec.Engine, nrRegs int) (exec.Block, error) {
	data, err := convertRows(s.Rows)
	if err != nil {
		return nil, err
	}
	switch s.Type {
	case config.SourceValues:
		v := source.NewValuesBlock(e.Manager, nrRegs, data)
		v.WaitPolls = s.WaitPolls
		return v, nil
	case config.SourceRemote:
		c, err := codec.ByName(s.Codec)
		if err != nil {
			return nil, err
		}
		return source.NewLoopbackBlock(e.Manager, nrRegs, data, c, s.FrameRows, e.Logger), nil
	}
	return nil, errors.Newf("unknown source type %q", s.Type)
}

func buildOperator(op config.Operator, e *exec.Engine, pl *plan, dep exec.Block) (exec.Block, error) {
	n := pl.nrRegs
	switch op.Type {
	case config.OpID:
		return wrap(e, executor.IDKind(n), dep)
	case config.OpCalculation:
		in, err := pl.input(op.Register)
		if err != nil {
			return nil, err
		}
		constant, err := convertValue(op.Value)
		if err != nil {
			return nil, err
		}
		fn, err := calculation(op.Func, in, constant)
		if err != nil {
			return nil, err
		}
		return wrap(e, executor.CalculationKind(n, pl.output(), fn), dep)
	case config.OpFilter:
		in, err := pl.input(op.Register)
		if err != nil {
			return nil, err
		}
		return wrap(e, executor.FilterKind(n, executor.RegisterIsTrue(in)), dep)
	case config.OpLimit:
		return wrap(e, executor.LimitKind(n, op.Offset, op.Limit, op.FullCount), dep)
	case config.OpSort:
		keys := make([]executor.SortKey, len(op.Keys))
		for i, k := range op.Keys {
			reg, err := pl.input(k.Register)
			if err != nil {
				return nil, err
			}
			keys[i] = executor.SortKey{Register: reg, Descending: k.Descending}
		}
		return wrap(e, executor.SortKind(n, keys), dep)
	case config.OpCount:
		pl.visible = nil
		return wrap(e, executor.CountKind(n, pl.output()), dep)
	case config.OpEnumerate:
		in, err := pl.input(op.Register)
		if err != nil {
			return nil, err
		}
		return wrap(e, executor.EnumerateListKind(n, in, pl.output()), dep)
	case config.OpNoResults:
		return wrap(e, executor.NoResultsKind(n), dep)
	}
	return nil, errors.Newf("unknown operator type %q", op.Type)
}

func wrap[E executor.Executor](e *exec.Engine, kind executor.Kind[E], dep exec.Block) (exec.Block, error) {
	b, err := exec.NewExecutionBlock(e, kind, dep)
	if err != nil {
		return nil, err
	}
	return b, nil
}
