package source

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/harshithgowdakt/blockexec/internal/block"
	"github.com/harshithgowdakt/blockexec/internal/codec"
	"github.com/harshithgowdakt/blockexec/internal/exec"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// LoopbackBlock streams in-memory rows through encoded frames: a sender
// goroutine encodes batches of FrameRows rows and a RemoteBlock consumes
// them. Every InitializeCursor starts a new stream.
type LoopbackBlock struct {
	manager   *block.Manager
	nrRegs    int
	rows      [][]types.Value
	codec     codec.Codec
	frameRows int
	logger    *zap.Logger

	remote *RemoteBlock
	cancel context.CancelFunc
	wg     sync.WaitGroup
	err    error
}

var _ exec.Block = (*LoopbackBlock)(nil)

// NewLoopbackBlock creates a loopback stream. It delivers nothing until
// its cursor is initialized.
func NewLoopbackBlock(m *block.Manager, nrRegs int, rows [][]types.Value, c codec.Codec, frameRows int, logger *zap.Logger) *LoopbackBlock {
	if frameRows <= 0 {
		frameRows = exec.DefaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoopbackBlock{manager: m, nrRegs: nrRegs, rows: rows, codec: c, frameRows: frameRows, logger: logger}
}

// Name implements exec.Block.
func (l *LoopbackBlock) Name() string { return "Loopback" }

// Pull implements exec.Block. A failed sender surfaces once the stream
// has been drained.
func (l *LoopbackBlock) Pull(atMost int) (types.ExecutionState, *block.ItemBlock, error) {
	if l.remote == nil {
		return types.StateDone, nil, nil
	}
	state, b, err := l.remote.Pull(atMost)
	if err == nil && state == types.StateDone {
		l.wg.Wait()
		err = l.err
	}
	return state, b, err
}

// Skip implements exec.Block.
func (l *LoopbackBlock) Skip(atMost int) (types.ExecutionState, int, error) {
	state, b, err := l.Pull(atMost)
	if b == nil {
		return state, 0, err
	}
	n := b.Size()
	l.manager.ReturnBlock(b)
	return state, n, err
}

// InitializeCursor stops the running stream, if any, and starts a new one.
func (l *LoopbackBlock) InitializeCursor(*block.ItemBlock, int) error {
	l.stop()
	frames := make(chan []byte, 1)
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.err = nil
	l.remote = NewRemoteBlock(l.manager, frames)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.err = l.feed(ctx, NewSender(l.codec, frames))
	}()
	return nil
}

func (l *LoopbackBlock) feed(ctx context.Context, s *Sender) error {
	defer s.Close()
	values := NewValuesBlock(l.manager, l.nrRegs, l.rows)
	for {
		state, b, err := values.Pull(l.frameRows)
		if err != nil {
			l.logger.Warn("[source] loopback sender failed", zap.Error(err))
			return err
		}
		if b != nil {
			err = s.Send(ctx, b)
			l.manager.ReturnBlock(b)
			if err != nil {
				return err
			}
		}
		if state == types.StateDone {
			return nil
		}
	}
}

// Close implements exec.Block.
func (l *LoopbackBlock) Close() { l.stop() }

func (l *LoopbackBlock) stop() {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.wg.Wait()
	if l.remote != nil {
		l.remote.Close()
		l.remote = nil
	}
}
