package output

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strconv"

	_ "modernc.org/sqlite" // SQLite driver
)

// resultsSchema holds one row per element and report time.
const resultsSchema = `
CREATE TABLE IF NOT EXISTS run (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS nodes (
    idx INTEGER PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS links (
    idx INTEGER PRIMARY KEY,
    id TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS node_results (
    time INTEGER NOT NULL,
    node INTEGER NOT NULL REFERENCES nodes(idx),
    demand REAL,
    head REAL,
    pressure REAL,
    quality REAL,
    PRIMARY KEY (time, node)
);

CREATE TABLE IF NOT EXISTS link_results (
    time INTEGER NOT NULL,
    link INTEGER NOT NULL REFERENCES links(idx),
    flow REAL,
    velocity REAL,
    headloss REAL,
    quality REAL,
    status INTEGER,
    PRIMARY KEY (time, link)
);
`

// SQLiteWriter stores results in a SQLite database so they can be queried
// after the run. Element indices in the tables are 1-based.
type SQLiteWriter struct {
	db *sql.DB
}

// NewSQLiteWriter creates a fresh results database at path, replacing any
// existing file.
func NewSQLiteWriter(path string) (*SQLiteWriter, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to replace results database: %w", err)
	}
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open results database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), resultsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create results schema: %w", err)
	}
	return &SQLiteWriter{db: db}, nil
}

// WriteHeader stores run metadata and the element tables.
func (s *SQLiteWriter) WriteHeader(ctx context.Context, h Header) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		meta := map[string]string{
			"title":         h.Title,
			"flow_units":    h.FlowUnits,
			"length_units":  h.LengthUnits,
			"pressure":      h.Pressure,
			"quality_type":  h.QualityType,
			"quality_units": h.QualityUnits,
			"duration":      strconv.FormatInt(h.Duration, 10),
			"report_start":  strconv.FormatInt(h.ReportStart, 10),
			"report_step":   strconv.FormatInt(h.ReportStep, 10),
		}
		for k, v := range meta {
			if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO run (key, value) VALUES (?, ?)`, k, v); err != nil {
				return fmt.Errorf("failed to write run metadata: %w", err)
			}
		}
		for i, id := range h.NodeIDs {
			if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO nodes (idx, id, type) VALUES (?, ?, ?)`,
				i+1, id, pick(h.NodeTypes, i)); err != nil {
				return fmt.Errorf("failed to write node %s: %w", id, err)
			}
		}
		for k, id := range h.LinkIDs {
			if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO links (idx, id, type) VALUES (?, ?, ?)`,
				k+1, id, pick(h.LinkTypes, k)); err != nil {
				return fmt.Errorf("failed to write link %s: %w", id, err)
			}
		}
		return nil
	})
}

// WritePeriod stores the node and link rows of one report time.
func (s *SQLiteWriter) WritePeriod(ctx context.Context, p Period) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		nodeStmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO node_results (time, node, demand, head, pressure, quality) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare node results: %w", err)
		}
		defer nodeStmt.Close()
		for i, r := range p.Nodes {
			if _, err := nodeStmt.ExecContext(ctx, p.Time, i+1, r.Demand, r.Head, r.Pressure, r.Quality); err != nil {
				return fmt.Errorf("failed to write node results at t=%d: %w", p.Time, err)
			}
		}

		linkStmt, err := tx.PrepareContext(ctx,
			`INSERT OR REPLACE INTO link_results (time, link, flow, velocity, headloss, quality, status) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare link results: %w", err)
		}
		defer linkStmt.Close()
		for k, r := range p.Links {
			if _, err := linkStmt.ExecContext(ctx, p.Time, k+1, r.Flow, r.Velocity, r.Headloss, r.Quality, int(r.Status)); err != nil {
				return fmt.Errorf("failed to write link results at t=%d: %w", p.Time, err)
			}
		}
		return nil
	})
}

func (s *SQLiteWriter) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}
	return nil
}

// DB exposes the underlying database for queries.
func (s *SQLiteWriter) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *SQLiteWriter) Close() error {
	return s.db.Close()
}

func pick(xs []string, i int) string {
	if i < len(xs) {
		return xs[i]
	}
	return ""
}
