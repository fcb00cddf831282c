package features

import (
	"strconv"

	"github.com/RoaringBitmap/roaring"
)

// Value is one feature cell. A zero Value is missing, which keeps an absent
// lookup apart from a real empty string.
type Value struct {
	Text  string
	Valid bool
}

func Missing() Value {
	return Value{}
}

func Text(s string) Value {
	return Value{Text: s, Valid: true}
}

func Int(n int) Value {
	return Value{Text: strconv.Itoa(n), Valid: true}
}

// Render returns the text of v or marker when v is missing.
func (v Value) Render(marker string) string {
	if !v.Valid {
		return marker
	}
	return v.Text
}

// Block holds the features of one proposition, tokens [Lower, Upper).
type Block struct {
	Lower int
	Upper int
	order []string
	cols  map[string][]Value
}

func NewBlock(lower, upper int) *Block {
	return &Block{
		Lower: lower,
		Upper: upper,
		cols:  make(map[string][]Value),
	}
}

// Declare makes sure column name exists, filled with missing values.
func (b *Block) Declare(name string) []Value {
	c, ok := b.cols[name]
	if !ok {
		c = make([]Value, b.Upper-b.Lower)
		b.cols[name] = c
		b.order = append(b.order, name)
	}
	return c
}

// Set stores v for global token i.
func (b *Block) Set(name string, i int, v Value) {
	b.Declare(name)[i-b.Lower] = v
}

// Get returns the value of column name at global token i.
func (b *Block) Get(name string, i int) (Value, bool) {
	c, ok := b.cols[name]
	if !ok || i < b.Lower || i >= b.Upper {
		return Missing(), false
	}
	return c[i-b.Lower], true
}

// Columns returns column names in the order they were first produced.
func (b *Block) Columns() []string {
	return append([]string(nil), b.order...)
}

// Frame is the feature table of a whole corpus, indexed by global token.
type Frame struct {
	n       int
	order   []string
	index   map[string]int
	cols    [][]Value
	dropped *roaring.Bitmap
}

func NewFrame(n int) *Frame {
	return &Frame{
		n:       n,
		index:   make(map[string]int),
		dropped: roaring.New(),
	}
}

// Len returns the number of tokens, dropped ones included.
func (f *Frame) Len() int {
	return f.n
}

func (f *Frame) column(name string) []Value {
	c, ok := f.index[name]
	if !ok {
		c = len(f.cols)
		f.index[name] = c
		f.order = append(f.order, name)
		f.cols = append(f.cols, make([]Value, f.n))
	}
	return f.cols[c]
}

// Merge copies a proposition block into the frame. Blocks must be merged in
// proposition order for a reproducible column order.
func (f *Frame) Merge(b *Block) {
	for _, name := range b.order {
		copy(f.column(name)[b.Lower:b.Upper], b.cols[name])
	}
}

// Declare makes sure column name exists, filled with missing values.
func (f *Frame) Declare(name string) {
	f.column(name)
}

// Set stores v for token i.
func (f *Frame) Set(name string, i int, v Value) {
	f.column(name)[i] = v
}

// Drop excludes tokens [lower, upper) from Tokens.
func (f *Frame) Drop(lower, upper int) {
	if upper > lower {
		f.dropped.AddRange(uint64(lower), uint64(upper))
	}
}

// Tokens returns the global indices of all tokens that were not dropped.
func (f *Frame) Tokens() []int {
	out := make([]int, 0, f.n-int(f.dropped.GetCardinality()))
	for i := 0; i < f.n; i++ {
		if !f.dropped.Contains(uint32(i)) {
			out = append(out, i)
		}
	}
	return out
}

// Dropped reports whether token i was dropped.
func (f *Frame) Dropped(i int) bool {
	return f.dropped.Contains(uint32(i))
}

// Columns returns the feature column names.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.order...)
}

// Value returns the feature of column name at token i.
func (f *Frame) Value(name string, i int) (Value, bool) {
	c, ok := f.index[name]
	if !ok || i < 0 || i >= f.n {
		return Missing(), false
	}
	return f.cols[c][i], true
}

// Row returns the features of token i in column order.
func (f *Frame) Row(i int) []Value {
	row := make([]Value, len(f.cols))
	for c := range f.cols {
		row[c] = f.cols[c][i]
	}
	return row
}
