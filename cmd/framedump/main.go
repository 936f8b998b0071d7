package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"

	"github.com/harshithgowdakt/blockexec/internal/block"
	"github.com/harshithgowdakt/blockexec/internal/codec"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

type frameJSON struct {
	Index            int             `json:"index"`
	Method           string          `json:"method"`
	MethodByte       uint8           `json:"method_byte"`
	TotalSize        uint32          `json:"total_bytes_with_header"`
	UncompressedSize uint32          `json:"uncompressed_bytes"`
	Checksum         string          `json:"checksum"`
	Ratio            float64         `json:"ratio"`
	Rows             int             `json:"rows,omitempty"`
	Registers        int             `json:"registers,omitempty"`
	Data             [][]types.Value `json:"data,omitempty"`
	Error            string          `json:"error,omitempty"`
}

type dumpJSON struct {
	File     string      `json:"file"`
	FileSize string      `json:"file_size"`
	Frames   []frameJSON `json:"frames"`
}

func main() {
	path := flag.String("file", "", "Frame file written by blockexec run --frames")
	rows := flag.Bool("rows", false, "Decode frames and include their rows")
	flag.Parse()

	if *path == "" {
		fatalf("missing required -file")
	}
	f, err := os.Open(*path)
	if err != nil {
		fatalf("open frame file: %v", err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		fatalf("stat frame file: %v", err)
	}
	out, err := dump(f, *rows)
	if err != nil {
		fatalf("%v", err)
	}
	out.File = *path
	out.FileSize = humanize.IBytes(uint64(st.Size()))

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fatalf("encode: %v", err)
	}
}

func dump(r io.Reader, withRows bool) (*dumpJSON, error) {
	frames, err := codec.ReadFrames(r)
	if err != nil {
		return nil, errors.Wrap(err, "read frames")
	}
	m := block.NewManager(block.NewResourceMonitor(0))
	out := &dumpJSON{Frames: make([]frameJSON, 0, len(frames))}
	for i, frame := range frames {
		j := frameJSON{Index: i}
		h, err := codec.ReadHeader(frame)
		if err != nil {
			j.Error = err.Error()
			out.Frames = append(out.Frames, j)
			continue
		}
		j.Method = codec.MethodName(h.Method)
		j.MethodByte = h.Method
		j.TotalSize = h.TotalSize
		j.UncompressedSize = h.UncompressedSize
		j.Checksum = fmt.Sprintf("%08x", h.Checksum)
		if h.UncompressedSize > 0 {
			j.Ratio = float64(h.TotalSize) / float64(h.UncompressedSize)
		}

		b, err := codec.DecodeBlock(frame, m)
		if err != nil {
			j.Error = err.Error()
			out.Frames = append(out.Frames, j)
			continue
		}
		j.Rows, j.Registers = b.Size(), b.NumRegisters()
		if withRows {
			for row := 0; row < b.Size(); row++ {
				vals := make([]types.Value, b.NumRegisters())
				for reg := range vals {
					vals[reg] = b.GetValue(row, types.RegisterID(reg))
				}
				j.Data = append(j.Data, vals)
			}
		}
		m.ReturnBlock(b)
		out.Frames = append(out.Frames, j)
	}
	return out, nil
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
