package output

import (
	"context"
	"path/filepath"
	"strings"
)

// Writer persists the result periods of one run.
type Writer interface {
	WriteHeader(ctx context.Context, h Header) error
	WritePeriod(ctx context.Context, p Period) error
	Close() error
}

// Open creates the results writer for path. An empty path discards
// results; .db and .sqlite files get a SQLite database; anything else is a
// length-delimited protobuf stream.
func Open(path string) (Writer, error) {
	if path == "" {
		return Discard(), nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return NewSQLiteWriter(path)
	default:
		return CreateStream(path)
	}
}

// Discard returns a writer that drops everything.
func Discard() Writer { return discard{} }

type discard struct{}

func (discard) WriteHeader(context.Context, Header) error { return nil }
func (discard) WritePeriod(context.Context, Period) error { return nil }
func (discard) Close() error                              { return nil }
