package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/s0up4200/glpictl/filter"
)

// printer renders command results as a table or as JSON
type printer struct {
	out     io.Writer
	format  string
	noColor bool
}

func newPrinter(out io.Writer) *printer {
	p := &printer{out: out, format: "table"}
	if cfg != nil {
		p.format = cfg.Output.Format
		p.noColor = !cfg.Logging.Color
	}
	return p
}

func (p *printer) json() bool {
	return p.format == "json"
}

// JSON writes v indented
func (p *printer) JSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(p.out, string(b))
	return err
}

// Rows prints rows under columns. Without columns, the union of the row
// keys is used.
func (p *printer) Rows(columns []string, rows []filter.Row) error {
	if p.json() {
		if rows == nil {
			rows = []filter.Row{}
		}
		return p.JSON(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(p.out, "No results.")
		return nil
	}

	if len(columns) == 0 {
		columns = rowColumns(rows)
	}

	table := tablewriter.NewWriter(p.out)
	table.SetHeader(columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = formatCell(row[col])
		}
		table.Append(cells)
	}
	table.Render()

	return nil
}

// Record prints a single object as a two column table
func (p *printer) Record(record map[string]any) error {
	if p.json() {
		return p.JSON(record)
	}

	table := tablewriter.NewWriter(p.out)
	table.SetHeader([]string{"field", "value"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for _, key := range sortColumns(slices.Collect(maps.Keys(record))) {
		table.Append([]string{key, formatCell(record[key])})
	}
	table.Render()

	return nil
}

// Success prints a green check mark line
func (p *printer) Success(format string, args ...any) {
	p.mark(color.New(color.FgGreen, color.Bold), "✓", format, args...)
}

// Failure prints a red cross line
func (p *printer) Failure(format string, args ...any) {
	p.mark(color.New(color.FgRed, color.Bold), "✗", format, args...)
}

func (p *printer) mark(c *color.Color, symbol, format string, args ...any) {
	if p.noColor {
		c.DisableColor()
	}
	c.Fprintf(p.out, "%s %s\n", symbol, fmt.Sprintf(format, args...))
}

// rowColumns returns the union of the keys of rows, ordered by sortColumns.
func rowColumns(rows []filter.Row) []string {
	seen := make(map[string]struct{})
	for _, row := range rows {
		for key := range row {
			seen[key] = struct{}{}
		}
	}
	return sortColumns(slices.Collect(maps.Keys(seen)))
}

// sortColumns puts "id" first, numeric keys in numeric order, then the
// remaining keys alphabetically.
func sortColumns(keys []string) []string {
	slices.SortFunc(keys, compareColumns)
	return keys
}

func compareColumns(a, b string) int {
	if a == b {
		return 0
	}
	if a == "id" {
		return -1
	}
	if b == "id" {
		return 1
	}

	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	switch {
	case errA == nil && errB == nil:
		return na - nb
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	return strings.Compare(a, b)
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
