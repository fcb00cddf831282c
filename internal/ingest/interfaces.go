package ingest

import "context"

// Sink persists the outcome of an extraction run.
type Sink interface {
	Write(ctx context.Context, res *Result) error
	Close() error
}

// Walker evaluates selectors against decoded corpus records.
type Walker interface {
	// Query executes a selector against root and returns the matches in
	// document order.
	Query(root any, selector string) ([]Match, error)
}

// Match is a single selector result.
type Match interface {
	// Text renders the matched value as a token table cell.
	Text() string
}
