package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/yaq-go/yaqd-rgb/pkg/wire"
)

// maxInlineArray is the longest array printed in full.
const maxInlineArray = 8

// writeJSON encodes v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonable(v))
}

// jsonable converts CBOR-decoded maps with interface keys into string-keyed
// maps.
func jsonable(v any) any {
	switch t := v.(type) {
	case map[any]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[fmt.Sprint(k)] = jsonable(val)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, val := range t {
			m[k] = jsonable(val)
		}
		return m
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = jsonable(val)
		}
		return out
	default:
		return v
	}
}

func shouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func newTable(w io.Writer, header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	if shouldColorize(w) {
		tw.SetStyle(table.StyleColoredDark)
	} else {
		tw.SetStyle(table.StyleRounded)
	}
	if header != nil {
		tw.AppendHeader(header)
	}
	return tw
}

// formatValue renders a result on one line. Long arrays are summarised.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(t))
	case []float64:
		items := make([]any, len(t))
		for i, f := range t {
			items[i] = f
		}
		return formatValue(items)
	case []any:
		if len(t) > maxInlineArray {
			return summarizeArray(t)
		}
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any, map[any]any:
		data, err := json.Marshal(jsonable(t))
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(data)
	default:
		return fmt.Sprint(t)
	}
}

func summarizeArray(values []any) string {
	if nums, ok := wire.ToFloat64Slice(values); ok && len(nums) > 0 {
		lo, hi := nums[0], nums[0]
		for _, n := range nums {
			lo = min(lo, n)
			hi = max(hi, n)
		}
		return fmt.Sprintf("<%d values, %g .. %g>", len(nums), lo, hi)
	}
	return fmt.Sprintf("<%d values>", len(values))
}

// printResult writes a call result. Maps become key/value tables.
func printResult(w io.Writer, v any, asJSON bool) error {
	if asJSON {
		return writeJSON(w, v)
	}

	m, ok := jsonable(v).(map[string]any)
	if !ok {
		_, err := fmt.Fprintln(w, formatValue(v))
		return err
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := newTable(w, table.Row{"Key", "Value"})
	for _, k := range keys {
		tw.AppendRow(table.Row{k, formatValue(m[k])})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{{Number: 1, Align: text.AlignLeft}})
	tw.Render()
	return nil
}
