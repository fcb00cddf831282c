// Package corpus reads CoNLL-style token tables: one tab separated row per
// token, a blank line between propositions, lines starting with # ignored.
package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/agentic-research/propfeat/internal/table"
	billy "github.com/go-git/go-billy/v5"
)

// DefaultColumns is the field layout of the PropBank.Br CoNLL release.
var DefaultColumns = []string{"ID", "FORM", "LEMMA", "GPOS", "MORF", "DTREE", "FUNC", "CTREE", "PRED", "HEAD"}

var ErrBadRow = errors.New("malformed corpus row")

const maxLineSize = 1 << 20

// Partition is the token range [Start, Finish) read from one file.
type Partition struct {
	Name   string
	Start  int
	Finish int
}

// Corpus is a token table and the files it was assembled from.
type Corpus struct {
	Table      *table.Table
	Partitions []Partition
}

// Reader loads CoNLL files from a billy filesystem.
type Reader struct {
	fs      billy.Filesystem
	columns []string
}

func NewReader(fs billy.Filesystem, columns []string) *Reader {
	if len(columns) == 0 {
		columns = DefaultColumns
	}
	return &Reader{fs: fs, columns: columns}
}

// Read concatenates the given files, or the regular files of the given
// directories in name order, into one token index space. Proposition ids
// start at 1 and grow by one per proposition across all files.
func (r *Reader) Read(paths ...string) (*Corpus, error) {
	b, err := table.NewBuilder(r.columns)
	if err != nil {
		return nil, err
	}
	files, err := r.expand(paths)
	if err != nil {
		return nil, err
	}
	c := &Corpus{}
	prop := 1
	for _, name := range files {
		start := b.Len()
		if prop, err = r.readFile(b, name, prop); err != nil {
			return nil, err
		}
		c.Partitions = append(c.Partitions, Partition{Name: name, Start: start, Finish: b.Len()})
	}
	c.Table = b.Table()
	return c, nil
}

func (r *Reader) expand(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := r.fs.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		entries, err := r.fs.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", p, err)
		}
		var names []string
		for _, e := range entries {
			if e.Mode().IsRegular() {
				names = append(names, r.fs.Join(p, e.Name()))
			}
		}
		sort.Strings(names)
		files = append(files, names...)
	}
	return files, nil
}

func (r *Reader) readFile(b *table.Builder, name string, prop int) (int, error) {
	f, err := r.fs.Open(name)
	if err != nil {
		return prop, fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()
	return r.scan(b, f, name, prop)
}

func (r *Reader) scan(b *table.Builder, src io.Reader, name string, prop int) (int, error) {
	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	open := false
	var lineNo int
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r\n")
		if strings.TrimSpace(line) == "" {
			if open {
				prop++
				open = false
			}
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != len(r.columns) {
			return prop, fmt.Errorf("%w: %s:%d: %d fields, expected %d", ErrBadRow, name, lineNo, len(fields), len(r.columns))
		}
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if _, err := b.Append(prop, fields); err != nil {
			return prop, fmt.Errorf("%s:%d: %w", name, lineNo, err)
		}
		open = true
	}
	if err := sc.Err(); err != nil {
		return prop, fmt.Errorf("read %s: %w", name, err)
	}
	if open {
		prop++
	}
	return prop, nil
}
