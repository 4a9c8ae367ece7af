// Package store exports frame size results to a SQLite database so they can
// be queried by other audit tooling.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/maxgio92/framesize"

	_ "modernc.org/sqlite"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS runs (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	path       TEXT NOT NULL,
	arch       TEXT NOT NULL,
	total      INTEGER NOT NULL,
	created_at TEXT NOT NULL
)`, `
CREATE TABLE IF NOT EXISTS functions (
	run_id  INTEGER NOT NULL REFERENCES runs(id),
	idx     INTEGER NOT NULL,
	name    TEXT,
	size    INTEGER NOT NULL,
	type    TEXT,
	error   TEXT,
	PRIMARY KEY (run_id, idx)
)`, `
CREATE TABLE IF NOT EXISTS outcomes (
	run_id  INTEGER NOT NULL REFERENCES runs(id),
	seq     INTEGER NOT NULL,
	line    TEXT NOT NULL,
	idx     INTEGER,
	size    INTEGER NOT NULL,
	error   TEXT,
	PRIMARY KEY (run_id, seq)
)`,
}

// Store is a SQLite database holding analysis runs.
type Store struct {
	db *sql.DB
}

// Run describes one analysis to persist.
type Run struct {
	Path      string
	Arch      framesize.Arch
	Functions []framesize.Function
	Report    *framesize.Report
}

// Open opens or creates the database at path and applies the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes a run in a single transaction and returns its id.
func (s *Store) Save(ctx context.Context, run Run) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var total uint64
	if run.Report != nil {
		total = run.Report.Total
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (path, arch, total, created_at) VALUES (?, ?, ?, ?)`,
		run.Path, string(run.Arch), int64(total), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, fn := range run.Functions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO functions (run_id, idx, name, size, type, error) VALUES (?, ?, ?, ?, ?, ?)`,
			id, fn.Index, nullString(fn.Name), int64(fn.Size), nullString(string(fn.Type)), errString(fn.Err)); err != nil {
			return 0, fmt.Errorf("failed to insert func[%d]: %w", fn.Index, err)
		}
	}

	if run.Report != nil {
		for seq, o := range run.Report.Outcomes {
			var idx sql.NullInt64
			if o.Err == nil {
				idx = sql.NullInt64{Int64: int64(o.Frame.Index), Valid: true}
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO outcomes (run_id, seq, line, idx, size, error) VALUES (?, ?, ?, ?, ?, ?)`,
				id, seq, o.Line, idx, int64(o.Frame.Size), errString(o.Err)); err != nil {
				return 0, fmt.Errorf("failed to insert outcome %d: %w", seq, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

// FunctionSize is a row of the functions table.
type FunctionSize struct {
	Index uint32
	Name  string
	Size  uint64
	Error string
}

// Functions returns the function rows of a run ordered by index.
func (s *Store) Functions(ctx context.Context, runID int64) ([]FunctionSize, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, COALESCE(name, ''), size, COALESCE(error, '') FROM functions WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FunctionSize
	for rows.Next() {
		var (
			fs   FunctionSize
			size int64
		)
		if err := rows.Scan(&fs.Index, &fs.Name, &size, &fs.Error); err != nil {
			return nil, err
		}
		fs.Size = uint64(size)
		out = append(out, fs)
	}
	return out, rows.Err()
}

// Total returns the stored trace total of a run.
func (s *Store) Total(ctx context.Context, runID int64) (uint64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT total FROM runs WHERE id = ?`, runID).Scan(&total)
	return uint64(total), err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func errString(err error) sql.NullString {
	if err == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: err.Error(), Valid: true}
}
