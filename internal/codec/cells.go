package codec

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	"github.com/cockroachdb/errors"

	"github.com/harshithgowdakt/blockexec/internal/block"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// Payload layout: VarUInt(rows) VarUInt(registers), then every cell row by
// row. A cell is a tag byte followed by its value: fixed-size types as raw
// little-endian bytes, strings as VarUInt(length) + bytes, lists as
// VarUInt(length) + cells. Tag 0 is an empty cell.

const (
	tagEmpty byte = 0
	tagBool  byte = 0x40
)

func typeTag(dt types.DataType) byte { return byte(dt) + 1 }

// EncodeBlock serializes b into a frame compressed with c.
func EncodeBlock(c Codec, b *block.ItemBlock) ([]byte, error) {
	if b == nil || b.Size() == 0 {
		return nil, errors.Wrap(ErrCorruptFrame, "refusing to encode an empty block")
	}
	var buf bytes.Buffer
	writeVarUInt(&buf, uint64(b.Size()))
	writeVarUInt(&buf, uint64(b.NumRegisters()))
	for row := 0; row < b.Size(); row++ {
		for reg := 0; reg < b.NumRegisters(); reg++ {
			if err := writeValue(&buf, b.GetValue(row, types.RegisterID(reg))); err != nil {
				return nil, errors.Wrapf(err, "cell (%d, %d)", row, reg)
			}
		}
	}
	return CompressFrame(c, buf.Bytes())
}

// DecodeBlock parses a frame into a block requested from m.
func DecodeBlock(frame []byte, m *block.Manager) (*block.ItemBlock, error) {
	payload, err := DecompressFrame(frame)
	if err != nil {
		return nil, err
	}
	r := bytes.NewReader(payload)
	nrRows, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, errors.Wrap(ErrCorruptFrame, "reading row count")
	}
	nrRegs, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, errors.Wrap(ErrCorruptFrame, "reading register count")
	}
	// Every cell takes at least one byte.
	if nrRows == 0 || nrRegs == 0 || nrRows > math.MaxInt32 || nrRegs > math.MaxInt32 ||
		nrRows > uint64(len(payload))/nrRegs {
		return nil, errors.Wrapf(ErrCorruptFrame, "implausible shape %dx%d", nrRows, nrRegs)
	}
	b, err := m.RequestBlock(int(nrRows), int(nrRegs))
	if err != nil {
		return nil, err
	}
	for row := 0; row < int(nrRows); row++ {
		for reg := 0; reg < int(nrRegs); reg++ {
			v, err := readValue(r)
			if err != nil {
				m.ReturnBlock(b)
				return nil, errors.Wrapf(err, "cell (%d, %d)", row, reg)
			}
			b.SetValue(row, types.RegisterID(reg), v)
		}
	}
	return b, nil
}

func writeVarUInt(w *bytes.Buffer, v uint64) {
	var buf [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(buf[:], v)
	w.Write(buf[:n])
}

func writeValue(w *bytes.Buffer, v types.Value) error {
	if v == nil {
		w.WriteByte(tagEmpty)
		return nil
	}
	if x, ok := v.(bool); ok {
		w.WriteByte(tagBool)
		if x {
			w.WriteByte(1)
		} else {
			w.WriteByte(0)
		}
		return nil
	}
	dt, ok := types.TypeOf(v)
	if !ok {
		return errors.Newf("unsupported value type %T", v)
	}
	w.WriteByte(typeTag(dt))
	switch x := v.(type) {
	case string:
		writeVarUInt(w, uint64(len(x)))
		w.WriteString(x)
		return nil
	case []types.Value:
		writeVarUInt(w, uint64(len(x)))
		for _, e := range x {
			if err := writeValue(w, e); err != nil {
				return err
			}
		}
		return nil
	}
	return binary.Write(w, binary.LittleEndian, v)
}

func readValue(r *bytes.Reader) (types.Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return nil, errors.Wrap(ErrCorruptFrame, "truncated cell")
	}
	switch tag {
	case tagEmpty:
		return nil, nil
	case tagBool:
		b, err := r.ReadByte()
		if err != nil {
			return nil, errors.Wrap(ErrCorruptFrame, "truncated bool")
		}
		return b != 0, nil
	}
	dt := types.DataType(tag - 1)
	switch dt {
	case types.TypeString:
		n, err := binary.ReadUvarint(r)
		if err != nil || n > uint64(r.Len()) {
			return nil, errors.Wrap(ErrCorruptFrame, "truncated string")
		}
		s := make([]byte, n)
		if _, err := io.ReadFull(r, s); err != nil {
			return nil, errors.Wrap(ErrCorruptFrame, "truncated string")
		}
		return string(s), nil
	case types.TypeList:
		n, err := binary.ReadUvarint(r)
		if err != nil || n > uint64(r.Len()) {
			return nil, errors.Wrap(ErrCorruptFrame, "truncated list")
		}
		list := make([]types.Value, n)
		for i := range list {
			if list[i], err = readValue(r); err != nil {
				return nil, err
			}
		}
		return list, nil
	}
	return readFixed(r, dt)
}

func readFixed(r *bytes.Reader, dt types.DataType) (types.Value, error) {
	size := dt.FixedSize()
	if size == 0 {
		return nil, errors.Wrapf(ErrCorruptFrame, "unknown cell tag %d", byte(dt)+1)
	}
	var raw [8]byte
	if _, err := io.ReadFull(r, raw[:size]); err != nil {
		return nil, errors.Wrapf(ErrCorruptFrame, "truncated %s", dt.Name())
	}
	le := binary.LittleEndian
	switch dt {
	case types.TypeUInt8:
		return raw[0], nil
	case types.TypeUInt16:
		return le.Uint16(raw[:]), nil
	case types.TypeUInt32, types.TypeDateTime:
		return le.Uint32(raw[:]), nil
	case types.TypeUInt64:
		return le.Uint64(raw[:]), nil
	case types.TypeInt8:
		return int8(raw[0]), nil
	case types.TypeInt16:
		return int16(le.Uint16(raw[:])), nil
	case types.TypeInt32:
		return int32(le.Uint32(raw[:])), nil
	case types.TypeInt64:
		return int64(le.Uint64(raw[:])), nil
	case types.TypeFloat32:
		return math.Float32frombits(le.Uint32(raw[:])), nil
	case types.TypeFloat64:
		return math.Float64frombits(le.Uint64(raw[:])), nil
	}
	return nil, errors.Wrapf(ErrCorruptFrame, "unknown cell tag %d", byte(dt)+1)
}
