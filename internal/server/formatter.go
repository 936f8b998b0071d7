package server

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/harshithgowdakt/blockexec/internal/block"
	"github.com/harshithgowdakt/blockexec/internal/types"
)

// OutputFormat specifies the result format.
type OutputFormat string

const (
	FormatTabSeparated OutputFormat = "TabSeparated"
	FormatJSON         OutputFormat = "JSON"
	FormatCSV          OutputFormat = "CSV"
)

// ParseFormat parses a format string (case-insensitive).
func ParseFormat(s string) OutputFormat {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "csv":
		return FormatCSV
	default:
		return FormatTabSeparated
	}
}

// ColumnName names the result column held in reg.
func ColumnName(reg types.RegisterID) string { return fmt.Sprintf("r%d", reg) }

// FormatBlocks writes the registers regs of every block in the specified
// format.
func FormatBlocks(w io.Writer, blocks []*block.ItemBlock, regs []types.RegisterID, format OutputFormat) error {
	names := make([]string, len(regs))
	for i, r := range regs {
		names[i] = ColumnName(r)
	}
	switch format {
	case FormatJSON:
		return formatJSON(w, blocks, regs, names)
	case FormatCSV:
		return formatCSV(w, blocks, regs, names)
	default:
		return formatTabSeparated(w, blocks, regs, names)
	}
}

func formatTabSeparated(w io.Writer, blocks []*block.ItemBlock, regs []types.RegisterID, names []string) error {
	if _, err := fmt.Fprintln(w, strings.Join(names, "\t")); err != nil {
		return err
	}
	for _, b := range blocks {
		for row := 0; row < b.Size(); row++ {
			vals := make([]string, len(regs))
			for i, reg := range regs {
				vals[i] = types.ValueToString(b.GetValue(row, reg))
			}
			if _, err := fmt.Fprintln(w, strings.Join(vals, "\t")); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatCSV(w io.Writer, blocks []*block.ItemBlock, regs []types.RegisterID, names []string) error {
	if _, err := fmt.Fprintln(w, strings.Join(quoteCSV(names), ",")); err != nil {
		return err
	}
	for _, b := range blocks {
		for row := 0; row < b.Size(); row++ {
			vals := make([]string, len(regs))
			for i, reg := range regs {
				v := b.GetValue(row, reg)
				s := types.ValueToString(v)
				if _, ok := v.(string); ok {
					s = `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
				}
				vals[i] = s
			}
			if _, err := fmt.Fprintln(w, strings.Join(vals, ",")); err != nil {
				return err
			}
		}
	}
	return nil
}

func formatJSON(w io.Writer, blocks []*block.ItemBlock, regs []types.RegisterID, names []string) error {
	type resultJSON struct {
		Meta []map[string]string `json:"meta"`
		Data []map[string]any    `json:"data"`
		Rows int                 `json:"rows"`
	}

	result := resultJSON{Data: []map[string]any{}}
	for i, reg := range regs {
		result.Meta = append(result.Meta, map[string]string{"name": names[i], "type": columnType(blocks, reg)})
	}
	for _, b := range blocks {
		for row := 0; row < b.Size(); row++ {
			rowMap := make(map[string]any, len(regs))
			for i, reg := range regs {
				rowMap[names[i]] = b.GetValue(row, reg)
			}
			result.Data = append(result.Data, rowMap)
		}
	}
	result.Rows = len(result.Data)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// columnType names the type of the first non-empty cell of reg.
func columnType(blocks []*block.ItemBlock, reg types.RegisterID) string {
	for _, b := range blocks {
		for row := 0; row < b.Size(); row++ {
			v := b.GetValue(row, reg)
			if v == nil {
				continue
			}
			if _, ok := v.(bool); ok {
				return "Bool"
			}
			if dt, ok := types.TypeOf(v); ok {
				return dt.Name()
			}
			return fmt.Sprintf("%T", v)
		}
	}
	return "Nothing"
}

func quoteCSV(vals []string) []string {
	result := make([]string, len(vals))
	for i, v := range vals {
		if strings.ContainsAny(v, ",\"\n") {
			result[i] = `"` + strings.ReplaceAll(v, `"`, `""`) + `"`
		} else {
			result[i] = v
		}
	}
	return result
}
