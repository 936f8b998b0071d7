package codec

import (
	"github.com/cockroachdb/errors"
	"github.com/pierrec/lz4/v4"
)

// errIncompressible tells the frame writer to fall back to NoneCodec.
var errIncompressible = errors.New("lz4: incompressible input")

// maxRatio is the largest expansion an LZ4 block can encode.
const maxRatio = 255

// LZ4Codec implements LZ4 block compression.
type LZ4Codec struct{}

func (c *LZ4Codec) MethodByte() byte { return MethodLZ4 }

func (c *LZ4Codec) Compress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return []byte{}, nil
	}
	dst := make([]byte, lz4.CompressBlockBound(len(src)))
	n, err := lz4.CompressBlock(src, dst, nil)
	if err != nil {
		return nil, errors.Wrap(err, "lz4 compress")
	}
	if n == 0 || n >= len(src) {
		return nil, errIncompressible
	}
	return dst[:n], nil
}

func (c *LZ4Codec) Decompress(src []byte, decompressedSize int) ([]byte, error) {
	if decompressedSize == 0 {
		return []byte{}, nil
	}
	if decompressedSize < 0 || decompressedSize > maxRatio*len(src)+16 {
		return nil, errors.Wrapf(ErrCorruptFrame, "lz4: %d compressed bytes cannot hold %d", len(src), decompressedSize)
	}
	dst := make([]byte, decompressedSize)
	n, err := lz4.UncompressBlock(src, dst)
	if err != nil {
		return nil, errors.Wrap(err, "lz4 decompress")
	}
	if n != decompressedSize {
		return nil, errors.Newf("lz4 decompress: expected %d bytes, got %d", decompressedSize, n)
	}
	return dst, nil
}
