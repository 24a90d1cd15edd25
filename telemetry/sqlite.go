package telemetry

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	// registers the "sqlite" driver.
	_ "modernc.org/sqlite"
)

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id            TEXT PRIMARY KEY,
		system            TEXT,
		mode              TEXT,
		period_s          DOUBLE,
		goal_x            DOUBLE,
		goal_y            DOUBLE,
		goal_theta        DOUBLE,
		started_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE TABLE IF NOT EXISTS steps (
		run_id            TEXT,
		t                 DOUBLE,
		x                 DOUBLE,
		y                 DOUBLE,
		theta             DOUBLE,
		stage_obj         DOUBLE,
		accum_obj         DOUBLE,
		v                 DOUBLE,
		omega             DOUBLE,
		FOREIGN KEY(run_id) REFERENCES runs(run_id)
	);
`

// SQLiteSink stores records in a SQLite database, one row in runs per run and one row in steps per
// record. Several runs may share a database file.
type SQLiteSink struct {
	db     *sql.DB
	insert *sql.Stmt
}

// NewSQLiteSink opens or creates the database at path and registers the run.
func NewSQLiteSink(ctx context.Context, path string, info RunInfo) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "cannot create telemetry schema"), db.Close())
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO runs (run_id, system, mode, period_s, goal_x, goal_y, goal_theta, started_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		info.RunID, info.System, info.Mode, info.Period.Seconds(), info.Goal.X, info.Goal.Y, info.Goal.Theta, info.Started.UTC(),
	); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "cannot register run %s", info.RunID), db.Close())
	}
	insert, err := db.PrepareContext(ctx,
		`INSERT INTO steps (run_id, t, x, y, theta, stage_obj, accum_obj, v, omega) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, multierr.Combine(err, db.Close())
	}
	return &SQLiteSink{db: db, insert: insert}, nil
}

// Write inserts r.
func (ss *SQLiteSink) Write(ctx context.Context, r Record) error {
	_, err := ss.insert.ExecContext(ctx,
		r.RunID, r.Time, r.X, r.Y, r.Theta, r.RunningObjective, r.AccumulatedObjective, r.V, r.Omega)
	return err
}

// DB exposes the underlying database, mostly for inspection after a run.
func (ss *SQLiteSink) DB() *sql.DB {
	return ss.db
}

// Close releases the database.
func (ss *SQLiteSink) Close() error {
	return multierr.Combine(ss.insert.Close(), ss.db.Close())
}
