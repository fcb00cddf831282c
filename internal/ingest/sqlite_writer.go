package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const featureSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	created INTEGER NOT NULL,
	tokens INTEGER NOT NULL,
	propositions INTEGER NOT NULL,
	config JSON
);

CREATE TABLE IF NOT EXISTS columns (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	name TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS features (
	run_id TEXT NOT NULL,
	token INTEGER NOT NULL,
	proposition INTEGER NOT NULL,
	position INTEGER NOT NULL,
	value TEXT,
	PRIMARY KEY (run_id, token, position)
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS rejections (
	run_id TEXT NOT NULL,
	proposition INTEGER NOT NULL,
	lower INTEGER NOT NULL,
	upper INTEGER NOT NULL,
	reason TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS partitions (
	run_id TEXT NOT NULL,
	name TEXT NOT NULL,
	start INTEGER NOT NULL,
	finish INTEGER NOT NULL
);
`

// FeatureWriter stores runs in a SQLite feature store. Features are kept
// in long format, one row per token and column; a missing value is NULL.
type FeatureWriter struct {
	db        *sql.DB
	tx        *sql.Tx
	stmt      *sql.Stmt
	batchSize int
	count     int
}

// NewFeatureWriter opens or creates the store at dbPath.
func NewFeatureWriter(dbPath string) (*FeatureWriter, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// Performance tuning for bulk insert
	if _, err := db.Exec("PRAGMA synchronous = OFF"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode = MEMORY"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(featureSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &FeatureWriter{db: db, batchSize: 10000}, nil
}

func (w *FeatureWriter) beginTx(ctx context.Context) error {
	var err error
	w.tx, err = w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	w.stmt, err = w.tx.PrepareContext(ctx, `
		INSERT INTO features (run_id, token, proposition, position, value)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = w.tx.Rollback()
		w.tx = nil
	}
	return err
}

func (w *FeatureWriter) commitTx() error {
	if w.stmt != nil {
		_ = w.stmt.Close()
		w.stmt = nil
	}
	if w.tx == nil {
		return nil
	}
	err := w.tx.Commit()
	w.tx = nil
	return err
}

func (w *FeatureWriter) rollback() {
	if w.stmt != nil {
		_ = w.stmt.Close()
		w.stmt = nil
	}
	if w.tx != nil {
		_ = w.tx.Rollback()
		w.tx = nil
	}
}

// Write implements Sink. Dropped tokens are not stored.
func (w *FeatureWriter) Write(ctx context.Context, res *Result) error {
	if err := w.writeRun(ctx, res); err != nil {
		return err
	}
	if err := w.beginTx(ctx); err != nil {
		return err
	}
	f := res.Frame
	props := propositionOf(res)
	for _, i := range f.Tokens() {
		for pos, v := range f.Row(i) {
			var value any
			if v.Valid {
				value = v.Text
			}
			if _, err := w.stmt.ExecContext(ctx, res.RunID, i, props[i], pos, value); err != nil {
				w.rollback()
				return fmt.Errorf("insert feature %d/%d: %w", i, pos, err)
			}
			w.count++
			if w.count < w.batchSize {
				continue
			}
			if err := w.commitTx(); err != nil {
				return fmt.Errorf("commit: %w", err)
			}
			if err := w.beginTx(ctx); err != nil {
				return err
			}
			w.count = 0
		}
	}
	if err := w.commitTx(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	log.Debug().Str("run", res.RunID).Int("tokens", len(f.Tokens())).Msg("features stored")
	return nil
}

func (w *FeatureWriter) writeRun(ctx context.Context, res *Result) error {
	var conf []byte
	if res.Config != nil {
		var err error
		if conf, err = json.Marshal(res.Config); err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
	}
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }() // no-op after commit

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO runs (id, created, tokens, propositions, config) VALUES (?, ?, ?, ?, ?)",
		res.RunID, time.Now().UnixNano(), res.Frame.Len(), len(res.Propositions), string(conf),
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for pos, name := range res.Frame.Columns() {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO columns (run_id, position, name) VALUES (?, ?, ?)", res.RunID, pos, name,
		); err != nil {
			return fmt.Errorf("insert column %s: %w", name, err)
		}
	}
	for _, r := range res.Rejections {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO rejections (run_id, proposition, lower, upper, reason) VALUES (?, ?, ?, ?, ?)",
			res.RunID, r.Proposition, r.Lower, r.Upper, r.Err.Error(),
		); err != nil {
			return fmt.Errorf("insert rejection: %w", err)
		}
	}
	for _, p := range res.Partitions {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO partitions (run_id, name, start, finish) VALUES (?, ?, ?, ?)",
			res.RunID, p.Name, p.Start, p.Finish,
		); err != nil {
			return fmt.Errorf("insert partition %s: %w", p.Name, err)
		}
	}
	return tx.Commit()
}

// propositionOf maps every token to its proposition id.
func propositionOf(res *Result) []int {
	out := make([]int, res.Frame.Len())
	for _, p := range res.Propositions {
		for i := p.Lower; i < p.Upper; i++ {
			out[i] = p.ID
		}
	}
	return out
}

func (w *FeatureWriter) Close() error {
	w.rollback()
	if _, err := w.db.Exec("CREATE INDEX IF NOT EXISTS idx_features_prop ON features(run_id, proposition)"); err != nil {
		log.Warn().Err(err).Msg("index creation failed")
	}
	return w.db.Close()
}

var _ Sink = (*FeatureWriter)(nil)
