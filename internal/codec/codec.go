// Package codec serializes item blocks into compressed, checksummed frames
// for transfer between processes.
package codec

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Codec compresses and decompresses frame payloads.
type Codec interface {
	// MethodByte returns the single-byte codec identifier.
	MethodByte() byte
	Compress(src []byte) ([]byte, error)
	Decompress(src []byte, decompressedSize int) ([]byte, error)
}

// Method byte constants.
const (
	MethodNone byte = 0x02
	MethodLZ4  byte = 0x82
)

// ErrUnknownMethod is returned for a frame or name naming no known codec.
var ErrUnknownMethod = errors.New("unknown compression method")

// ByName returns the codec called name ("lz4" or "none").
func ByName(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "lz4", "":
		return &LZ4Codec{}, nil
	case "none":
		return &NoneCodec{}, nil
	}
	return nil, errors.Wrapf(ErrUnknownMethod, "%q", name)
}

// ByMethod returns the codec identified by a frame's method byte.
func ByMethod(method byte) (Codec, error) {
	switch method {
	case MethodLZ4:
		return &LZ4Codec{}, nil
	case MethodNone:
		return &NoneCodec{}, nil
	}
	return nil, errors.Wrapf(ErrUnknownMethod, "0x%02x", method)
}

// MethodName renders a method byte for humans.
func MethodName(method byte) string {
	switch method {
	case MethodLZ4:
		return "lz4"
	case MethodNone:
		return "none"
	}
	return "unknown"
}
