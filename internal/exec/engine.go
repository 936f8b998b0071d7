// Package exec drives executors: it owns the output block lifecycle, the
// pass-through path and cursor resets of every execution block.
package exec

import (
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/harshithgowdakt/blockexec/internal/block"
	"github.com/harshithgowdakt/blockexec/internal/faults"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// DefaultBatchSize is the number of rows row fetchers ask for per block.
// Pulls asking for more rows than this or the engine's batch size are
// capped.
const DefaultBatchSize = 1000

// Fault points of the driver.
const (
	FaultPullBegin       = "exec/pull/begin"
	FaultPullOutputBlock = "exec/pull/output-block"
	FaultSkipBegin       = "exec/skip/begin"
)

// ErrInvalidArgument is returned for a pull or skip of fewer than one row.
var ErrInvalidArgument = errors.New("invalid argument")

// Block is the contract every execution block offers its consumer.
type Block interface {
	Name() string
	// Pull returns up to atMost rows. A WAITING result never carries a block
	// and a returned block is never empty.
	Pull(atMost int) (types.ExecutionState, *block.ItemBlock, error)
	// Skip drops up to atMost rows and reports how many were dropped.
	Skip(atMost int) (types.ExecutionState, int, error)
	// InitializeCursor resets the block and its whole upstream subgraph.
	// Blocks without dependencies are seeded with row pos of items, or with
	// one empty row when items is nil.
	InitializeCursor(items *block.ItemBlock, pos int) error
	// Close returns every block still held, here and upstream.
	Close()
}

// Engine is what execution blocks of one process share.
type Engine struct {
	Manager   *block.Manager
	Stats     StatsSink
	Faults    *faults.Registry
	Logger    *zap.Logger
	BatchSize int
}

// NewEngine creates an engine with an in-memory statistics sink and the
// default batch size.
func NewEngine(m *block.Manager, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		Manager:   m,
		Stats:     NewStatistics(),
		Logger:    logger,
		BatchSize: DefaultBatchSize,
	}
}

// SetFaults attaches a fault registry to the engine and its manager.
func (e *Engine) SetFaults(r *faults.Registry) {
	e.Faults = r
	e.Manager.SetFaults(r)
}
