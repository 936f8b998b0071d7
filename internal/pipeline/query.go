// Package pipeline drives execution blocks from the top: it runs queries to
// completion, runs many of them on a worker pool and builds them from
// configuration.
package pipeline

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/harshithgowdakt/blockexec/internal/block"
	"github.com/harshithgowdakt/blockexec/internal/exec"
	"github.com/harshithgowdakt/blockexec/internal/executor"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// DefaultPollInterval is the pause after a WAITING answer.
const DefaultPollInterval = time.Millisecond

// Query is a root block plus what is needed to drive it.
type Query struct {
	Name string
	Root exec.Block
	// Registers lists the registers holding the query's result columns.
	Registers    []types.RegisterID
	BatchSize    int
	PollInterval time.Duration

	engine *exec.Engine
	stats  *exec.Statistics
}

// NewQuery wraps root. Statistics of the query's blocks are only collected
// when the query was built by Build.
func NewQuery(name string, root exec.Block, e *exec.Engine, registers []types.RegisterID) *Query {
	return &Query{
		Name:         name,
		Root:         root,
		Registers:    registers,
		BatchSize:    e.BatchSize,
		PollInterval: DefaultPollInterval,
		engine:       e,
	}
}

// Result holds the blocks a query delivered. They stay accounted in the
// manager until Release.
type Result struct {
	Blocks    []*block.ItemBlock
	Registers []types.RegisterID
	Rows      int
	Pulls     int
	Waits     int
	Stats     executor.Stats
	Elapsed   time.Duration

	manager *block.Manager
}

// Release returns every block to the manager.
func (r *Result) Release() {
	if r == nil {
		return
	}
	for _, b := range r.Blocks {
		r.manager.ReturnBlock(b)
	}
	r.Blocks = nil
}

// Run initializes the cursor and pulls until DONE. WAITING answers back off
// for PollInterval; ctx cancels the wait and the loop.
func (q *Query) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	res := &Result{Registers: q.Registers, manager: q.engine.Manager}
	defer q.Root.Close()

	if err := q.Root.InitializeCursor(nil, 0); err != nil {
		return nil, errors.Wrapf(err, "query %s", q.Name)
	}
	batch := q.BatchSize
	if batch <= 0 {
		batch = exec.DefaultBatchSize
	}
	for {
		if err := ctx.Err(); err != nil {
			res.Release()
			return nil, err
		}
		state, b, err := q.Root.Pull(batch)
		res.Pulls++
		if err != nil {
			res.Release()
			return nil, errors.Wrapf(err, "query %s", q.Name)
		}
		if b != nil {
			res.Blocks = append(res.Blocks, b)
			res.Rows += b.Size()
		}
		if state == types.StateDone {
			break
		}
		if state == types.StateWaiting {
			res.Waits++
			if err := q.backoff(ctx); err != nil {
				res.Release()
				return nil, err
			}
		}
	}
	if q.stats != nil {
		res.Stats = q.stats.Total()
	}
	res.Elapsed = time.Since(start)
	q.engine.Logger.Debug("[pipeline] query finished",
		zap.String("query", q.Name), zap.Int("rows", res.Rows),
		zap.Int("pulls", res.Pulls), zap.Int("waits", res.Waits), zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

func (q *Query) backoff(ctx context.Context) error {
	if q.PollInterval <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(q.PollInterval)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
