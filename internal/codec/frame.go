package codec

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/spaolacci/murmur3"
)

// Frame format:
//   [method_byte (1)] [total_size_with_header (4 LE)] [uncompressed_size (4 LE)]
//   [murmur3_32 of payload (4 LE)] [payload...]
//
// total_size_with_header includes the 13-byte header itself.

const HeaderSize = 13

var (
	// ErrCorruptFrame is returned for truncated or inconsistent frames.
	ErrCorruptFrame = errors.New("corrupt frame")
	// ErrChecksumMismatch is returned when the payload does not match its checksum.
	ErrChecksumMismatch = errors.New("frame checksum mismatch")
)

// Header is the fixed-size frame prefix.
type Header struct {
	Method           byte
	TotalSize        uint32
	UncompressedSize uint32
	Checksum         uint32
}

// CompressFrame compresses data and returns the full frame. Input LZ4 cannot
// shrink is stored uncompressed.
func CompressFrame(c Codec, data []byte) ([]byte, error) {
	compressed, err := c.Compress(data)
	if errors.Is(err, errIncompressible) {
		c = &NoneCodec{}
		compressed, err = c.Compress(data)
	}
	if err != nil {
		return nil, err
	}

	totalSize := HeaderSize + len(compressed)
	frame := make([]byte, totalSize)

	frame[0] = c.MethodByte()
	binary.LittleEndian.PutUint32(frame[1:5], uint32(totalSize))
	binary.LittleEndian.PutUint32(frame[5:9], uint32(len(data)))
	binary.LittleEndian.PutUint32(frame[9:13], murmur3.Sum32(compressed))

	copy(frame[HeaderSize:], compressed)
	return frame, nil
}

// ReadHeader parses the header of a frame.
func ReadHeader(frame []byte) (Header, error) {
	if len(frame) < HeaderSize {
		return Header{}, errors.Wrapf(ErrCorruptFrame, "%d bytes is shorter than the header", len(frame))
	}
	return Header{
		Method:           frame[0],
		TotalSize:        binary.LittleEndian.Uint32(frame[1:5]),
		UncompressedSize: binary.LittleEndian.Uint32(frame[5:9]),
		Checksum:         binary.LittleEndian.Uint32(frame[9:13]),
	}, nil
}

// DecompressFrame validates a frame and returns its uncompressed payload.
func DecompressFrame(frame []byte) ([]byte, error) {
	h, err := ReadHeader(frame)
	if err != nil {
		return nil, err
	}
	if int(h.TotalSize) > len(frame) || h.TotalSize < HeaderSize {
		return nil, errors.Wrapf(ErrCorruptFrame, "header says %d bytes, have %d", h.TotalSize, len(frame))
	}
	payload := frame[HeaderSize:h.TotalSize]
	if sum := murmur3.Sum32(payload); sum != h.Checksum {
		return nil, errors.Wrapf(ErrChecksumMismatch, "got %08x, header says %08x", sum, h.Checksum)
	}
	c, err := ByMethod(h.Method)
	if err != nil {
		return nil, err
	}
	return c.Decompress(payload, int(h.UncompressedSize))
}
