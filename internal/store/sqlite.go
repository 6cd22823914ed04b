package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sunat-tools/ruc-resolver/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local and
// development runs without a Postgres instance.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sdb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sdb.Exec(pragma); err != nil {
			sdb.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sdb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS ruc_lookup (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	ruc          TEXT NOT NULL,
	razon_social TEXT,
	fuente       TEXT,
	estado       TEXT,
	scraped_at   DATETIME,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_ruc_lookup_ruc ON ruc_lookup(ruc);
CREATE INDEX IF NOT EXISTS idx_ruc_lookup_pending ON ruc_lookup(ruc) WHERE razon_social IS NULL;

CREATE TABLE IF NOT EXISTS resolve_runs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME,
	attempted    INTEGER NOT NULL DEFAULT 0,
	resolved     INTEGER NOT NULL DEFAULT 0,
	absent       INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0,
	error        TEXT
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Pending(ctx context.Context, limit int) ([]model.RUC, error) {
	query := `SELECT ruc FROM (
		SELECT ruc, estado, MIN(id) AS first_id FROM ruc_lookup
		WHERE razon_social IS NULL
		GROUP BY ruc
	)
	ORDER BY CASE WHEN estado = 'ACTIVO' THEN 1 ELSE 2 END, first_id`

	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: pending rucs")
	}
	defer rows.Close()

	var rucs []model.RUC
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ruc")
		}
		rucs = append(rucs, model.RUC(r))
	}
	return rucs, eris.Wrap(rows.Err(), "sqlite: pending iterate")
}

func (s *SQLiteStore) ResolveAll(ctx context.Context, ruc model.RUC, name, source string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ruc_lookup SET razon_social = ?, fuente = ?, scraped_at = ? WHERE ruc = ? AND razon_social IS NULL`,
		name, source, time.Now().UTC(), ruc.String(),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: resolve %s", ruc)
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) MarkAbsent(ctx context.Context, ruc model.RUC, sentinel string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE ruc_lookup SET razon_social = ?, scraped_at = ? WHERE ruc = ? AND razon_social IS NULL`,
		sentinel, time.Now().UTC(), ruc.String(),
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: mark absent %s", ruc)
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT
		count(*),
		count(CASE WHEN razon_social IS NOT NULL AND razon_social NOT IN (?, ?) THEN 1 END),
		count(CASE WHEN razon_social IN (?, ?) THEN 1 END),
		count(CASE WHEN razon_social IS NULL THEN 1 END),
		count(DISTINCT CASE WHEN razon_social IS NULL THEN ruc END)
		FROM ruc_lookup`,
		model.SentinelNotFound, model.SentinelInvalid,
		model.SentinelNotFound, model.SentinelInvalid,
	).Scan(&st.TotalRows, &st.Resolved, &st.Absent, &st.Pending, &st.UniquePending)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: stats")
	}
	return &st, nil
}

func (s *SQLiteStore) StartRun(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO resolve_runs (id, status, started_at) VALUES (?, 'running', ?)`,
		id, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: start run")
	}
	return id, nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, runID string, totals RunTotals, runErr string) error {
	status := "complete"
	var errVal any
	if runErr != "" {
		status = "failed"
		errVal = runErr
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE resolve_runs
		 SET status = ?, completed_at = ?, attempted = ?, resolved = ?, absent = ?, failed = ?, error = ?
		 WHERE id = ?`,
		status, time.Now().UTC(), totals.Attempted, totals.Resolved, totals.Absent, totals.Failed, errVal, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finish run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, started_at, completed_at, attempted, resolved, absent, failed, error
		 FROM resolve_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var errStr sql.NullString
		if err := rows.Scan(&r.ID, &r.Status, &r.StartedAt, &r.CompletedAt,
			&r.Totals.Attempted, &r.Totals.Resolved, &r.Totals.Absent, &r.Totals.Failed, &errStr); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if errStr.Valid {
			r.Error = errStr.String
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// Seed inserts identifier rows directly; the Postgres path uses COPY via
// the load command, SQLite takes a plain multi-insert transaction.
func (s *SQLiteStore) Seed(ctx context.Context, rucs []model.RUC) (int64, error) {
	if len(rucs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin seed tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO ruc_lookup (ruc) VALUES (?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare seed")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, r := range rucs {
		if _, err := stmt.ExecContext(ctx, r.String()); err != nil {
			return n, eris.Wrapf(err, "sqlite: seed %s", r)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return n, eris.Wrap(err, "sqlite: commit seed tx")
	}
	return n, nil
}
