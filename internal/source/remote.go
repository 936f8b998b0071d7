package source

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/harshithgowdakt/blockexec/internal/block"
	"github.com/harshithgowdakt/blockexec/internal/codec"
	"github.com/harshithgowdakt/blockexec/internal/exec"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// RemoteBlock serves blocks arriving as encoded frames on a channel, for
// example from another process. It never blocks: with no frame ready it
// reports WAITING.
type RemoteBlock struct {
	manager *block.Manager
	frames  <-chan []byte

	current *block.ItemBlock
	offset  int
	closed  bool
	regs    []types.RegisterID

	received int
}

var _ exec.Block = (*RemoteBlock)(nil)

// NewRemoteBlock creates a block reading frames. The sender closes the
// channel after its last frame.
func NewRemoteBlock(m *block.Manager, frames <-chan []byte) *RemoteBlock {
	return &RemoteBlock{manager: m, frames: frames}
}

// Name implements exec.Block.
func (r *RemoteBlock) Name() string { return "Remote" }

// FramesReceived returns the number of frames decoded so far.
func (r *RemoteBlock) FramesReceived() int { return r.received }

// Pull implements exec.Block.
func (r *RemoteBlock) Pull(atMost int) (types.ExecutionState, *block.ItemBlock, error) {
	if atMost <= 0 {
		return types.StateDone, nil, errors.Wrapf(exec.ErrInvalidArgument, "pull of %d rows", atMost)
	}
	if r.current == nil {
		if r.closed {
			return types.StateDone, nil, nil
		}
		select {
		case f, ok := <-r.frames:
			if !ok {
				r.closed = true
				return types.StateDone, nil, nil
			}
			b, err := codec.DecodeBlock(f, r.manager)
			if err != nil {
				return types.StateDone, nil, errors.Wrapf(err, "frame %d", r.received)
			}
			r.received++
			r.current, r.offset = b, 0
		default:
			return types.StateWaiting, nil, nil
		}
	}
	return r.handOut(atMost)
}

// handOut delivers up to atMost rows of the current frame. A frame that
// fits is handed over as is.
func (r *RemoteBlock) handOut(atMost int) (types.ExecutionState, *block.ItemBlock, error) {
	cur := r.current
	remaining := cur.Size() - r.offset
	if r.offset == 0 && remaining <= atMost {
		r.current = nil
		return types.StateHasMore, cur, nil
	}
	n := min(atMost, remaining)
	out, err := r.manager.RequestBlock(n, cur.NumRegisters())
	if err != nil {
		return types.StateDone, nil, err
	}
	regs := r.allRegisters(cur.NumRegisters())
	for i := 0; i < n; i++ {
		out.CopyRowFrom(i, cur, r.offset+i, regs)
	}
	r.offset += n
	if r.offset == cur.Size() {
		r.manager.ReturnBlock(cur)
		r.current = nil
	}
	return types.StateHasMore, out, nil
}

func (r *RemoteBlock) allRegisters(n int) []types.RegisterID {
	if len(r.regs) != n {
		r.regs = make([]types.RegisterID, n)
		for i := range r.regs {
			r.regs[i] = types.RegisterID(i)
		}
	}
	return r.regs
}

// Skip implements exec.Block.
func (r *RemoteBlock) Skip(atMost int) (types.ExecutionState, int, error) {
	state, b, err := r.Pull(atMost)
	if b == nil {
		return state, 0, err
	}
	n := b.Size()
	r.manager.ReturnBlock(b)
	return state, n, nil
}

// InitializeCursor drops the undelivered rest of the current frame. A
// stream cannot be replayed.
func (r *RemoteBlock) InitializeCursor(*block.ItemBlock, int) error {
	r.dropCurrent()
	return nil
}

// Close implements exec.Block.
func (r *RemoteBlock) Close() { r.dropCurrent() }

func (r *RemoteBlock) dropCurrent() {
	r.manager.ReturnBlock(r.current)
	r.current, r.offset = nil, 0
}

// Sender encodes blocks into frames for a RemoteBlock.
type Sender struct {
	codec  codec.Codec
	frames chan<- []byte
}

// NewSender creates a sender writing to frames.
func NewSender(c codec.Codec, frames chan<- []byte) *Sender {
	return &Sender{codec: c, frames: frames}
}

// Send encodes b and delivers the frame unless ctx is done first.
func (s *Sender) Send(ctx context.Context, b *block.ItemBlock) error {
	f, err := codec.EncodeBlock(s.codec, b)
	if err != nil {
		return err
	}
	select {
	case s.frames <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals the end of the stream.
func (s *Sender) Close() { close(s.frames) }
