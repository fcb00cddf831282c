package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/agentic-research/propfeat/internal/features"
	"github.com/agentic-research/propfeat/internal/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

type tokenRow struct {
	id     int
	prop   int
	record string
}

func createCorpusDB(t *testing.T, name string, rows []tokenRow) string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), name)

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	_, err = db.Exec("CREATE TABLE tokens (id INTEGER PRIMARY KEY, proposition INTEGER NOT NULL, record TEXT NOT NULL)")
	require.NoError(t, err)
	for _, r := range rows {
		_, err = db.Exec("INSERT INTO tokens (id, proposition, record) VALUES (?, ?, ?)", r.id, r.prop, r.record)
		require.NoError(t, err)
	}
	return dbPath
}

var selectors = map[string]string{
	"ID":    "$.id",
	"FORM":  "$.form",
	"DTREE": "$.head",
	"PRED":  "$.pred",
}

func TestLoadSQLiteCorpus(t *testing.T) {
	first := createCorpusDB(t, "a.db", []tokenRow{
		{1, 1, `{"id":1,"form":"Ele","head":2,"pred":"-"}`},
		{2, 1, `{"id":2,"form":"foi","head":0,"pred":"ser"}`},
	})
	second := createCorpusDB(t, "b.db", []tokenRow{
		{1, 1, `{"id":1,"form":"Chove","head":0}`},
	})

	c, err := LoadSQLiteCorpus([]string{"ID", "FORM", "DTREE", "PRED"}, selectors, first, second)
	require.NoError(t, err)

	tbl := c.Table
	require.Equal(t, 3, tbl.Len())
	form, _ := tbl.Column("FORM")
	assert.Equal(t, []string{"Ele", "foi", "Chove"}, form)
	head, _ := tbl.Column("DTREE")
	assert.Equal(t, []string{"2", "0", "0"}, head)
	pred, _ := tbl.Column("PRED")
	assert.Equal(t, []string{"-", "ser", ""}, pred)
	assert.Equal(t, 1, tbl.Proposition(1))
	assert.Equal(t, 3, tbl.Proposition(2))

	require.Len(t, c.Partitions, 2)
	assert.Equal(t, 2, c.Partitions[0].Finish)
	assert.Equal(t, 2, c.Partitions[1].Start)
}

func TestLoadSQLiteCorpus_ZeroBasedPropositions(t *testing.T) {
	first := createCorpusDB(t, "a.db", []tokenRow{
		{1, 0, `{"id":1,"form":"Chove","head":0,"pred":"chover"}`},
	})
	second := createCorpusDB(t, "b.db", []tokenRow{
		{1, 0, `{"id":1,"form":"Neva","head":0,"pred":"nevar"}`},
	})

	c, err := LoadSQLiteCorpus([]string{"ID", "FORM", "DTREE", "PRED"}, selectors, first, second)
	require.NoError(t, err)
	assert.Equal(t, 0, c.Table.Proposition(0))
	assert.Equal(t, 1, c.Table.Proposition(1))

	props, err := segment.Segment(c.Table, segment.DefaultOptions())
	require.NoError(t, err)
	require.Len(t, props, 2)
	for _, p := range props {
		assert.NoError(t, p.Invalid)
		assert.Equal(t, 1, p.Len())
	}
}

func TestLoadSQLiteCorpus_Errors(t *testing.T) {
	t.Run("bad json", func(t *testing.T) {
		db := createCorpusDB(t, "bad.db", []tokenRow{{1, 1, `{"id":`}})
		_, err := LoadSQLiteCorpus([]string{"ID"}, selectors, db)
		assert.Error(t, err)
	})

	t.Run("bad selector", func(t *testing.T) {
		db := createCorpusDB(t, "sel.db", []tokenRow{{1, 1, `{"id":1}`}})
		_, err := LoadSQLiteCorpus([]string{"ID"}, map[string]string{"ID": "$["}, db)
		assert.Error(t, err)
	})

	t.Run("missing table", func(t *testing.T) {
		_, err := LoadSQLiteCorpus([]string{"ID"}, selectors, filepath.Join(t.TempDir(), "empty.db"))
		assert.Error(t, err)
	})
}

func TestFeatureStore_RoundTrip(t *testing.T) {
	res, err := runSample(t, sampleConfig(t, true, 2))
	require.NoError(t, err)

	dbPath := filepath.Join(t.TempDir(), "features.db")
	w, err := NewFeatureWriter(dbPath)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), res))
	require.NoError(t, w.Close())

	got, err := ReadFeatureStore(dbPath, "")
	require.NoError(t, err)
	assert.Equal(t, res.RunID, got.RunID)
	assert.Equal(t, res.Frame.Len(), got.Frame.Len())
	assert.Equal(t, res.Frame.Columns(), got.Frame.Columns())
	assert.Equal(t, res.Frame.Tokens(), got.Frame.Tokens())
	for _, i := range res.Frame.Tokens() {
		assert.Equal(t, res.Frame.Row(i), got.Frame.Row(i), "token %d", i)
	}
	require.Len(t, got.Propositions, 2)
	assert.Equal(t, 1, got.Propositions[0].ID)
	assert.Equal(t, 3, got.Propositions[1].ID)
	assert.Equal(t, 5, got.Propositions[1].Lower)
	assert.Equal(t, 7, got.Propositions[1].Upper)

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	var rejected, partitions int
	require.NoError(t, db.QueryRow("SELECT count(*) FROM rejections WHERE run_id = ?", res.RunID).Scan(&rejected))
	require.NoError(t, db.QueryRow("SELECT count(*) FROM partitions WHERE run_id = ?", res.RunID).Scan(&partitions))
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 1, partitions)

	_, err = ReadFeatureStore(dbPath, "no-such-run")
	assert.True(t, errors.Is(err, ErrNoRun))
}

func TestFeatureStore_ManyPropositions(t *testing.T) {
	const props, size, cols = 2000, 5, 4
	n := props * size
	res := &Result{RunID: "many", Frame: features.NewFrame(n)}
	for p := 0; p < props; p++ {
		res.Propositions = append(res.Propositions, segment.Proposition{
			ID: p, Lower: p * size, Upper: (p + 1) * size, Predicate: segment.NoPredicate,
		})
	}
	for c := 0; c < cols; c++ {
		name := fmt.Sprintf("COL_%02d", c)
		res.Frame.Declare(name)
		for i := 0; i < n; i++ {
			if (i+c)%3 != 0 {
				res.Frame.Set(name, i, features.Int(i*cols+c))
			}
		}
	}
	res.Frame.Drop(10, 15)

	dbPath := filepath.Join(t.TempDir(), "features.db")
	w, err := NewFeatureWriter(dbPath)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), res))
	require.NoError(t, w.Close())

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	got, err := ReadFeatureStore(dbPath, "many")
	runtime.ReadMemStats(&after)
	require.NoError(t, err)

	// one frame of n x cols values plus per-row decoding, never a block per
	// proposition spanning the rest of the corpus
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(256<<20))

	assert.Equal(t, res.Frame.Columns(), got.Frame.Columns())
	assert.Equal(t, res.Frame.Tokens(), got.Frame.Tokens())
	for _, i := range []int{0, 1, 9, 15, n / 2, n - 1} {
		assert.Equal(t, res.Frame.Row(i), got.Frame.Row(i), "token %d", i)
	}
	require.Len(t, got.Propositions, props-1)
	last := got.Propositions[len(got.Propositions)-1]
	assert.Equal(t, props-1, last.ID)
	assert.Equal(t, n-size, last.Lower)
	assert.Equal(t, n, last.Upper)
	assert.Equal(t, n-size, got.Stats.Tokens)
}
