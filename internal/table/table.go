// Package table holds the token table every extractor reads from: a fixed
// catalog of named columns over a single global token index space, plus the
// proposition id of every token.
package table

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnknownColumn = errors.New("unknown column")
	ErrNotInteger    = errors.New("value is not an integer")
	ErrOutOfRange    = errors.New("token index out of range")
)

// Table is immutable once built. Token indices are 0-based and dense.
type Table struct {
	columns []string
	index   map[string]int
	cells   [][]string // cells[column][token]
	props   []int
}

// Len returns the number of tokens.
func (t *Table) Len() int {
	return len(t.props)
}

// Columns returns the column catalog in declaration order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the values of a column indexed by token. The returned slice
// is shared with the table and must not be modified.
func (t *Table) Column(name string) ([]string, bool) {
	c, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cells[c], true
}

// Value returns the cell of column name at token i.
func (t *Table) Value(name string, i int) (string, error) {
	c, ok := t.index[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownColumn, name)
	}
	if i < 0 || i >= len(t.props) {
		return "", fmt.Errorf("%w: %d", ErrOutOfRange, i)
	}
	return t.cells[c][i], nil
}

// Int parses the cell of column name at token i as a signed integer.
func (t *Table) Int(name string, i int) (int, error) {
	v, err := t.Value(name, i)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%w: %s[%d] = %q", ErrNotInteger, name, i, v)
	}
	return n, nil
}

// Proposition returns the proposition id of token i.
func (t *Table) Proposition(i int) int {
	return t.props[i]
}

// Builder accumulates rows into a Table.
type Builder struct {
	columns []string
	index   map[string]int
	cells   [][]string
	props   []int
}

func NewBuilder(columns []string) (*Builder, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		if c == "" {
			return nil, fmt.Errorf("empty column name at position %d", i)
		}
		if _, dup := index[c]; dup {
			return nil, fmt.Errorf("duplicate column %s", c)
		}
		index[c] = i
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Builder{
		columns: cols,
		index:   index,
		cells:   make([][]string, len(columns)),
	}, nil
}

// Append adds one token row belonging to proposition prop. It returns the
// global index assigned to the token.
func (b *Builder) Append(prop int, values []string) (int, error) {
	if len(values) != len(b.columns) {
		return 0, fmt.Errorf("row has %d values, expected %d", len(values), len(b.columns))
	}
	for c, v := range values {
		b.cells[c] = append(b.cells[c], v)
	}
	b.props = append(b.props, prop)
	return len(b.props) - 1, nil
}

func (b *Builder) Len() int {
	return len(b.props)
}

// Table freezes the builder. The builder must not be used afterwards.
func (b *Builder) Table() *Table {
	return &Table{
		columns: b.columns,
		index:   b.index,
		cells:   b.cells,
		props:   b.props,
	}
}
