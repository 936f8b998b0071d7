package codec

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
)

// Frame files are a sequence of frames, each preceded by its length as
// 4 bytes little-endian.

// WriteFrames appends frames to w.
func WriteFrames(w io.Writer, frames ...[]byte) error {
	var lenBuf [4]byte
	for _, f := range frames {
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(f)))
		if _, err := w.Write(lenBuf[:]); err != nil {
			return errors.Wrap(err, "writing frame length")
		}
		if _, err := w.Write(f); err != nil {
			return errors.Wrap(err, "writing frame")
		}
	}
	return nil
}

// ReadFrames reads every frame from r until EOF.
func ReadFrames(r io.Reader) ([][]byte, error) {
	var frames [][]byte
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.EOF {
				return frames, nil
			}
			return nil, errors.Wrapf(ErrCorruptFrame, "frame %d: truncated length", len(frames))
		}
		f := make([]byte, binary.LittleEndian.Uint32(lenBuf[:]))
		if _, err := io.ReadFull(r, f); err != nil {
			return nil, errors.Wrapf(ErrCorruptFrame, "frame %d: truncated body", len(frames))
		}
		frames = append(frames, f)
	}
}
