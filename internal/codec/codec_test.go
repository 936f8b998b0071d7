package codec

import (
	"bytes"
	"encoding/binary"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/harshithgowdakt/blockexec/internal/block/blocktest"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

func TestFrameCompressible(t *testing.T) {
	data := []byte(strings.Repeat("blockexec ", 200))
	frame, err := CompressFrame(&LZ4Codec{}, data)
	require.NoError(t, err)

	h, err := ReadHeader(frame)
	require.NoError(t, err)
	require.Equal(t, MethodLZ4, h.Method)
	require.Equal(t, uint32(len(frame)), h.TotalSize)
	require.Equal(t, uint32(len(data)), h.UncompressedSize)
	require.Less(t, len(frame), len(data))

	out, err := DecompressFrame(frame)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestFrameIncompressibleFallsBackToNone(t *testing.T) {
	data := []byte{0x01, 0x7f, 0x33}
	frame, err := CompressFrame(&LZ4Codec{}, data)
	require.NoError(t, err)
	require.Equal(t, MethodNone, frame[0])

	out, err := DecompressFrame(frame)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestFrameChecksumMismatch(t *testing.T) {
	frame, err := CompressFrame(&NoneCodec{}, []byte("payload"))
	require.NoError(t, err)
	frame[HeaderSize] ^= 0xff
	_, err = DecompressFrame(frame)
	require.True(t, errors.Is(err, ErrChecksumMismatch))
}

func TestFrameCorrupt(t *testing.T) {
	_, err := DecompressFrame([]byte{MethodNone, 1})
	require.True(t, errors.Is(err, ErrCorruptFrame))

	frame, err := CompressFrame(&NoneCodec{}, []byte("payload"))
	require.NoError(t, err)
	_, err = DecompressFrame(frame[:len(frame)-1])
	require.True(t, errors.Is(err, ErrCorruptFrame))

	frame[0] = 0x99
	_, err = DecompressFrame(frame)
	require.True(t, errors.Is(err, ErrUnknownMethod))
}

func TestBlockRoundTrip(t *testing.T) {
	m := blocktest.NewManager()
	src := blocktest.Build(t, m, 4,
		[]types.Value{int64(-5), "hello", nil, true},
		[]types.Value{uint8(7), float32(1.5), 2.25, []types.Value{int64(1), "x", nil}},
		[]types.Value{uint64(1 << 40), int16(-3), uint32(99), false},
	)
	for _, c := range []Codec{&LZ4Codec{}, &NoneCodec{}} {
		frame, err := EncodeBlock(c, src)
		require.NoError(t, err)

		got, err := DecodeBlock(frame, m)
		require.NoError(t, err)
		require.Equal(t, src.Size(), got.Size())
		require.Equal(t, src.NumRegisters(), got.NumRegisters())
		for reg := 0; reg < 4; reg++ {
			r := types.RegisterID(reg)
			require.Equal(t, blocktest.Column(src, r), blocktest.Column(got, r))
		}
		m.ReturnBlock(got)
	}
	m.ReturnBlock(src)
	require.Equal(t, int64(0), m.Monitor().Current())
}

func TestEncodeRejects(t *testing.T) {
	m := blocktest.NewManager()
	_, err := EncodeBlock(&LZ4Codec{}, nil)
	require.Error(t, err)

	b := blocktest.Build(t, m, 1, []types.Value{struct{}{}})
	_, err = EncodeBlock(&LZ4Codec{}, b)
	require.Error(t, err)
}

func TestDecodeTruncatedPayloadReturnsBlock(t *testing.T) {
	m := blocktest.NewManager()
	// Two rows declared, one cell present.
	payload := []byte{2, 1, tagBool, 1}
	frame, err := CompressFrame(&NoneCodec{}, payload)
	require.NoError(t, err)
	_, err = DecodeBlock(frame, m)
	require.True(t, errors.Is(err, ErrCorruptFrame))
	require.Equal(t, int64(0), m.Monitor().Current())
}

func TestDecodeImplausibleShape(t *testing.T) {
	m := blocktest.NewManager()
	for _, shape := range [][2]uint64{{1 << 32, 1 << 32}, {1 << 20, 1 << 20}, {4, 1}} {
		payload := binary.AppendUvarint(nil, shape[0])
		payload = binary.AppendUvarint(payload, shape[1])
		payload = append(payload, tagEmpty)
		frame, err := CompressFrame(&NoneCodec{}, payload)
		require.NoError(t, err)

		_, err = DecodeBlock(frame, m)
		require.True(t, errors.Is(err, ErrCorruptFrame), "%d x %d", shape[0], shape[1])
		require.Equal(t, int64(0), m.Monitor().Current())
	}
}

func TestLZ4FrameWithInflatedSize(t *testing.T) {
	frame, err := CompressFrame(&LZ4Codec{}, []byte(strings.Repeat("blockexec ", 200)))
	require.NoError(t, err)
	require.Equal(t, MethodLZ4, frame[0])

	// The checksum covers the payload only, so the header edit goes unnoticed there.
	binary.LittleEndian.PutUint32(frame[5:9], 0xffffffff)
	_, err = DecompressFrame(frame)
	require.True(t, errors.Is(err, ErrCorruptFrame))
}

func TestFrameFile(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrames(&buf, []byte("a"), []byte("bcd")))
	frames, err := ReadFrames(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, [][]byte{[]byte("a"), []byte("bcd")}, frames)

	_, err = ReadFrames(bytes.NewReader(buf.Bytes()[:buf.Len()-1]))
	require.True(t, errors.Is(err, ErrCorruptFrame))
}

func TestByName(t *testing.T) {
	c, err := ByName("LZ4")
	require.NoError(t, err)
	require.Equal(t, MethodLZ4, c.MethodByte())
	c, err = ByName("none")
	require.NoError(t, err)
	require.Equal(t, MethodNone, c.MethodByte())
	_, err = ByName("zstd")
	require.True(t, errors.Is(err, ErrUnknownMethod))
	require.Equal(t, "lz4", MethodName(MethodLZ4))
}
