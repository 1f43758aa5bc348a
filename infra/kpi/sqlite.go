// Package kpi keeps a local history of optimization runs.
package kpi

import (
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	coremetrics "github.com/kilianp07/ems/core/metrics"
)

// DefaultLimit bounds Recent when the caller passes no limit.
const DefaultLimit = 50

// SQLiteStore persists run records in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS optimization_runs (
        run_id TEXT PRIMARY KEY,
        ts INTEGER,
        status TEXT,
        backend TEXT,
        steps INTEGER,
        variables INTEGER,
        binaries INTEGER,
        constraints INTEGER,
        solve_ns INTEGER,
        total_cost REAL
    );
    CREATE INDEX IF NOT EXISTS optimization_runs_ts ON optimization_runs(ts);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// RecordRun inserts the run, replacing an earlier record with the same id.
func (s *SQLiteStore) RecordRun(ev coremetrics.RunEvent) error {
	_, err := s.db.Exec(`INSERT INTO optimization_runs
        (run_id, ts, status, backend, steps, variables, binaries, constraints, solve_ns, total_cost)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(run_id) DO UPDATE SET
            ts = excluded.ts,
            status = excluded.status,
            backend = excluded.backend,
            steps = excluded.steps,
            variables = excluded.variables,
            binaries = excluded.binaries,
            constraints = excluded.constraints,
            solve_ns = excluded.solve_ns,
            total_cost = excluded.total_cost`,
		ev.RunID, ev.Time.UnixNano(), ev.Status, ev.Backend, ev.Steps, ev.Variables,
		ev.Binaries, ev.Constraints, int64(ev.SolveDuration), ev.TotalCost)
	return err
}

// Recent returns up to limit runs, newest first.
func (s *SQLiteStore) Recent(limit int) ([]coremetrics.RunEvent, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.Query(`SELECT run_id, ts, status, backend, steps, variables, binaries,
        constraints, solve_ns, total_cost
        FROM optimization_runs ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	res := []coremetrics.RunEvent{}
	for rows.Next() {
		var (
			ev      coremetrics.RunEvent
			ts      int64
			solveNS int64
		)
		if err := rows.Scan(&ev.RunID, &ts, &ev.Status, &ev.Backend, &ev.Steps, &ev.Variables,
			&ev.Binaries, &ev.Constraints, &solveNS, &ev.TotalCost); err != nil {
			return nil, err
		}
		ev.Time = time.Unix(0, ts).UTC()
		ev.SolveDuration = time.Duration(solveNS)
		res = append(res, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }
