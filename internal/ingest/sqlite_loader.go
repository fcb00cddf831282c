package ingest

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/RoaringBitmap/roaring"
	"github.com/agentic-research/propfeat/internal/corpus"
	"github.com/agentic-research/propfeat/internal/features"
	"github.com/agentic-research/propfeat/internal/segment"
	"github.com/agentic-research/propfeat/internal/table"
	"github.com/ohler55/ojg/oj"
	_ "modernc.org/sqlite"
)

var ErrNoRun = errors.New("no such run in feature store")

// StreamSQLite iterates over the tokens table of a record corpus in token
// order, calling fn for each row. Only one parsed record is alive at a time.
func StreamSQLite(dbPath string, fn func(id, proposition int, record any) error) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	rows, err := db.Query("SELECT id, proposition, record FROM tokens ORDER BY id")
	if err != nil {
		return fmt.Errorf("query tokens: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for rows.Next() {
		var id, prop int
		var raw string
		if err := rows.Scan(&id, &prop, &raw); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		parsed, err := oj.ParseString(raw)
		if err != nil {
			return fmt.Errorf("parse record %d: %w", id, err)
		}
		if err := fn(id, prop, parsed); err != nil {
			return err
		}
	}
	return rows.Err()
}

// LoadSQLiteCorpus builds a token table from record corpora. Each column is
// the first match of its JSONPath selector, "" when nothing matches.
// Proposition ids of later databases are shifted past the largest id of
// earlier ones so that propositions from different files never merge.
func LoadSQLiteCorpus(columns []string, selectors map[string]string, paths ...string) (*corpus.Corpus, error) {
	b, err := table.NewBuilder(columns)
	if err != nil {
		return nil, err
	}
	var walker Walker = NewJsonWalker()
	c := &corpus.Corpus{}
	base := 0
	for _, path := range paths {
		start := b.Len()
		last := base
		err := StreamSQLite(path, func(id, prop int, record any) error {
			values := make([]string, len(columns))
			for k, col := range columns {
				v, err := firstText(walker, record, selectors[col])
				if err != nil {
					return fmt.Errorf("token %d column %s: %w", id, col, err)
				}
				values[k] = v
			}
			last = max(last, base+prop)
			_, err := b.Append(base+prop, values)
			return err
		})
		if err != nil {
			return nil, err
		}
		base = last + 1
		c.Partitions = append(c.Partitions, corpus.Partition{Name: path, Start: start, Finish: b.Len()})
	}
	c.Table = b.Table()
	return c, nil
}

// ReadFeatureStore loads one stored run. An empty runID selects the most
// recent run.
func ReadFeatureStore(dbPath, runID string) (*Result, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	var n int
	if runID == "" {
		err = db.QueryRow("SELECT id, tokens FROM runs ORDER BY created DESC LIMIT 1").Scan(&runID, &n)
	} else {
		err = db.QueryRow("SELECT tokens FROM runs WHERE id = ?", runID).Scan(&n)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNoRun, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	columns, err := readColumns(db, runID)
	if err != nil {
		return nil, err
	}
	res := &Result{RunID: runID, Frame: features.NewFrame(n)}

	rows, err := db.Query(
		"SELECT token, proposition, position, value FROM features WHERE run_id = ? ORDER BY token, position", runID)
	if err != nil {
		return nil, fmt.Errorf("query features: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for _, name := range columns {
		res.Frame.Declare(name)
	}
	seen := roaring.New()
	open := false
	var cur segment.Proposition
	for rows.Next() {
		var token, prop, pos int
		var value sql.NullString
		if err := rows.Scan(&token, &prop, &pos, &value); err != nil {
			return nil, fmt.Errorf("scan feature: %w", err)
		}
		if token < 0 || token >= n || pos < 0 || pos >= len(columns) {
			return nil, fmt.Errorf("feature %d/%d out of range", token, pos)
		}
		if !open || prop != cur.ID {
			if open {
				res.Propositions = append(res.Propositions, cur)
			}
			cur = segment.Proposition{ID: prop, Lower: token, Predicate: segment.NoPredicate}
			open = true
		}
		cur.Upper = token + 1
		if value.Valid {
			res.Frame.Set(columns[pos], token, features.Text(value.String))
		}
		seen.Add(uint32(token))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate features: %w", err)
	}
	if open {
		res.Propositions = append(res.Propositions, cur)
	}

	for i := 0; i < n; i++ {
		if !seen.Contains(uint32(i)) {
			res.Frame.Drop(i, i+1)
		}
	}
	res.Stats.Propositions = len(res.Propositions)
	res.Stats.Tokens = int(seen.GetCardinality())
	return res, nil
}

func readColumns(db *sql.DB, runID string) ([]string, error) {
	rows, err := db.Query("SELECT name FROM columns WHERE run_id = ? ORDER BY position", runID)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}
