package ingest

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	billy "github.com/go-git/go-billy/v5"
	"github.com/rs/zerolog/log"
)

// TSVWriter writes the feature table as tab separated text: a header row,
// then one row per kept token keyed by TOKEN and PROPOSITION. Missing
// values are rendered as the configured marker.
type TSVWriter struct {
	out    io.WriteCloser
	marker string
}

// NewTSVWriter creates path on fs.
func NewTSVWriter(fs billy.Filesystem, path, marker string) (*TSVWriter, error) {
	f, err := fs.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &TSVWriter{out: f, marker: marker}, nil
}

// Write implements Sink.
func (w *TSVWriter) Write(ctx context.Context, res *Result) error {
	cw := csv.NewWriter(w.out)
	cw.Comma = '\t'

	cols := res.Frame.Columns()
	header := append([]string{"TOKEN", "PROPOSITION"}, cols...)
	if err := cw.Write(header); err != nil {
		return err
	}
	props := propositionOf(res)
	record := make([]string, len(header))
	for n, i := range res.Frame.Tokens() {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		record[0] = strconv.Itoa(i)
		record[1] = strconv.Itoa(props[i])
		for k, v := range res.Frame.Row(i) {
			record[k+2] = v.Render(w.marker)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write token %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	log.Debug().Str("run", res.RunID).Int("columns", len(cols)).Msg("features written")
	return nil
}

func (w *TSVWriter) Close() error {
	return w.out.Close()
}

var _ Sink = (*TSVWriter)(nil)
