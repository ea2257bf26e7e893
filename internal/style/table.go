package style

import (
	"regexp"
	"strings"
)

// Alignment controls how a cell is padded within its column.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
	AlignCenter
)

// Column describes one table column.
type Column struct {
	Name  string
	Width int
	Align Alignment
	Style func(string) string
}

// Table renders fixed-width rows for terminal listings.
type Table struct {
	columns   []Column
	rows      [][]string
	indent    string
	headerSep bool
}

// NewTable creates a table with a header separator and two-space indent.
func NewTable(columns ...Column) *Table {
	return &Table{columns: columns, indent: "  ", headerSep: true}
}

// SetIndent sets the prefix written before every line.
func (t *Table) SetIndent(indent string) *Table {
	t.indent = indent
	return t
}

// SetHeaderSeparator toggles the line under the header.
func (t *Table) SetHeaderSeparator(on bool) *Table {
	t.headerSep = on
	return t
}

// AddRow appends a row, padding missing cells with "".
func (t *Table) AddRow(values ...string) *Table {
	row := make([]string, len(t.columns))
	copy(row, values)
	t.rows = append(t.rows, row)
	return t
}

// Render returns the table as text, one line per row.
func (t *Table) Render() string {
	if len(t.columns) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(t.indent)
	for i, col := range t.columns {
		name := Bold.Render(col.Name)
		b.WriteString(t.pad(name, col.Name, col.Width, col.Align))
		if i < len(t.columns)-1 {
			b.WriteString(" ")
		}
	}
	b.WriteString("\n")

	if t.headerSep {
		b.WriteString(t.indent)
		for i, col := range t.columns {
			b.WriteString(Dim.Render(strings.Repeat("─", col.Width)))
			if i < len(t.columns)-1 {
				b.WriteString(" ")
			}
		}
		b.WriteString("\n")
	}

	for _, row := range t.rows {
		b.WriteString(t.indent)
		for i, col := range t.columns {
			plain := truncate(row[i], col.Width)
			styled := plain
			if col.Style != nil {
				styled = col.Style(plain)
			}
			b.WriteString(t.pad(styled, plain, col.Width, col.Align))
			if i < len(t.columns)-1 {
				b.WriteString(" ")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// pad pads styled to width based on the visible length of plain.
func (t *Table) pad(styled, plain string, width int, align Alignment) string {
	n := len([]rune(plain))
	if n >= width {
		return styled
	}
	gap := width - n
	switch align {
	case AlignRight:
		return strings.Repeat(" ", gap) + styled
	case AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + styled + strings.Repeat(" ", gap-left)
	default:
		return styled + strings.Repeat(" ", gap)
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width || width <= 3 {
		return s
	}
	return string(r[:width-3]) + "..."
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripAnsi(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}
