// Package candidate holds the uploaded candidate table.
package candidate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Well-known column headers.
const (
	ColumnName     = "Name"
	ColumnSkills   = "Skills"
	ColumnExp      = "Exp"
	ColumnLocation = "Location"
	ColumnCTC      = "CTC"
	ColumnCompany  = "Company"
)

// Table is an immutable, ordered set of candidate rows sharing one header.
// Row identity is positional.
type Table struct {
	columns []string
	pos     map[string]int
	rows    [][]string
}

// New validates the header and copies rows, padding short rows with empty cells.
// Cells beyond the header are discarded.
func New(columns []string, rows [][]string) (*Table, error) {
	if len(columns) == 0 {
		return nil, errors.New("table has no columns")
	}

	cols := make([]string, len(columns))
	pos := make(map[string]int, len(columns))
	for i, c := range columns {
		c = strings.TrimSpace(c)
		if c == "" {
			return nil, fmt.Errorf("column %d has an empty header", i+1)
		}
		if _, dup := pos[c]; dup {
			return nil, fmt.Errorf("duplicate column %q", c)
		}
		cols[i] = c
		pos[c] = i
	}

	out := make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, len(cols))
		copy(row, r)
		out[i] = row
	}

	return &Table{columns: cols, pos: pos, rows: out}, nil
}

// Columns returns the header in sheet order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rows)
}

// Lookup resolves a column by exact header, falling back to a case-insensitive match.
func (t *Table) Lookup(name string) (string, bool) {
	if _, ok := t.pos[name]; ok {
		return name, true
	}
	for _, c := range t.columns {
		if strings.EqualFold(c, name) {
			return c, true
		}
	}
	return "", false
}

// Value returns the cell at row i in the named column.
func (t *Table) Value(i int, column string) string {
	p, ok := t.pos[column]
	if !ok || i < 0 || i >= len(t.rows) {
		return ""
	}
	return t.rows[i][p]
}

// Record returns row i.
func (t *Table) Record(i int) Record {
	return Record{columns: t.columns, values: t.rows[i]}
}

// Distinct returns the non-empty values of a column in first-appearance order.
func (t *Table) Distinct(column string) []string {
	p, ok := t.pos[column]
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, r := range t.rows {
		v := r[p]
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// WithoutColumn returns a copy of the table lacking every column whose header
// equals name case-insensitively. The receiver is returned unchanged if none match.
func (t *Table) WithoutColumn(name string) *Table {
	keep := make([]int, 0, len(t.columns))
	for i, c := range t.columns {
		if !strings.EqualFold(c, name) {
			keep = append(keep, i)
		}
	}
	if len(keep) == len(t.columns) {
		return t
	}

	cols := make([]string, len(keep))
	pos := make(map[string]int, len(keep))
	for j, i := range keep {
		cols[j] = t.columns[i]
		pos[cols[j]] = j
	}
	rows := make([][]string, len(t.rows))
	for r, row := range t.rows {
		nr := make([]string, len(keep))
		for j, i := range keep {
			nr[j] = row[i]
		}
		rows[r] = nr
	}
	return &Table{columns: cols, pos: pos, rows: rows}
}

// Record is a read-only view of one row.
type Record struct {
	columns []string
	values  []string
}

// Get returns the cell for column.
func (r Record) Get(column string) string {
	for i, c := range r.columns {
		if c == column {
			return r.values[i]
		}
	}
	return ""
}

// Map returns the row as column -> cell, skipping empty cells when skipEmpty is set.
func (r Record) Map(skipEmpty bool) map[string]string {
	m := make(map[string]string, len(r.columns))
	for i, c := range r.columns {
		if skipEmpty && r.values[i] == "" {
			continue
		}
		m[c] = r.values[i]
	}
	return m
}

// MarshalJSON writes the row as an object with keys in header order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
