package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sunat-tools/ruc-resolver/internal/db"
	"github.com/sunat-tools/ruc-resolver/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	sqlResolveAll = `UPDATE ruc_lookup
	 SET razon_social = $1, fuente = $2, scraped_at = now()
	 WHERE ruc = $3 AND razon_social IS NULL`

	sqlMarkAbsent = `UPDATE ruc_lookup
	 SET razon_social = $1, scraped_at = now()
	 WHERE ruc = $2 AND razon_social IS NULL`
)

// preparedStatements lists the hot write paths, prepared on each new
// connection.
var preparedStatements = map[string]string{
	"resolve_all": sqlResolveAll,
	"mark_absent": sqlMarkAbsent,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool (used by tests via pgxmock).
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying pool for subsystems that need direct access
// (e.g., the CSV bulk loader).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS ruc_lookup (
	id           BIGSERIAL PRIMARY KEY,
	ruc          VARCHAR(11) NOT NULL,
	razon_social TEXT,
	fuente       TEXT,
	estado       TEXT,
	scraped_at   TIMESTAMPTZ,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_ruc_lookup_ruc ON ruc_lookup(ruc);
CREATE INDEX IF NOT EXISTS idx_ruc_lookup_pending ON ruc_lookup(ruc) WHERE razon_social IS NULL;

CREATE TABLE IF NOT EXISTS resolve_runs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ,
	attempted    BIGINT NOT NULL DEFAULT 0,
	resolved     BIGINT NOT NULL DEFAULT 0,
	absent       BIGINT NOT NULL DEFAULT 0,
	failed       BIGINT NOT NULL DEFAULT 0,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_resolve_runs_started ON resolve_runs(started_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Pending returns distinct unresolved identifiers, ACTIVO rows first, then
// by first insertion id. Sentinel rows are non-null, so they never appear.
func (s *PostgresStore) Pending(ctx context.Context, limit int) ([]model.RUC, error) {
	query := `SELECT ruc FROM (
		SELECT DISTINCT ON (ruc) ruc, estado, id FROM ruc_lookup
		WHERE razon_social IS NULL
		ORDER BY ruc, id
	) t
	ORDER BY CASE WHEN estado = 'ACTIVO' THEN 1 ELSE 2 END, id`

	args := []any{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: pending rucs")
	}
	defer rows.Close()

	var rucs []model.RUC
	for rows.Next() {
		var r string
		if err := rows.Scan(&r); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ruc")
		}
		rucs = append(rucs, model.RUC(r))
	}
	return rucs, eris.Wrap(rows.Err(), "postgres: pending iterate")
}

// ResolveAll writes the legal name to every row sharing the RUC that is
// still unresolved. The IS NULL guard makes the write idempotent: a second
// worker resolving the same identifier affects zero rows and is not an
// error.
func (s *PostgresStore) ResolveAll(ctx context.Context, ruc model.RUC, name, source string) (int64, error) {
	tag, err := s.pool.Exec(ctx, sqlResolveAll, name, source, ruc.String())
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: resolve %s", ruc)
	}
	return tag.RowsAffected(), nil
}

// MarkAbsent writes a terminal sentinel to every still-unresolved row
// sharing the RUC, removing it from future pending sets.
func (s *PostgresStore) MarkAbsent(ctx context.Context, ruc model.RUC, sentinel string) (int64, error) {
	tag, err := s.pool.Exec(ctx, sqlMarkAbsent, sentinel, ruc.String())
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: mark absent %s", ruc)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, `SELECT
		count(*),
		count(*) FILTER (WHERE razon_social IS NOT NULL AND razon_social NOT IN ($1, $2)),
		count(*) FILTER (WHERE razon_social IN ($1, $2)),
		count(*) FILTER (WHERE razon_social IS NULL),
		count(DISTINCT ruc) FILTER (WHERE razon_social IS NULL)
		FROM ruc_lookup`,
		model.SentinelNotFound, model.SentinelInvalid,
	).Scan(&st.TotalRows, &st.Resolved, &st.Absent, &st.Pending, &st.UniquePending)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: stats")
	}
	return &st, nil
}

func (s *PostgresStore) StartRun(ctx context.Context) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO resolve_runs (id, status, started_at) VALUES ($1, 'running', now())`,
		id,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: start run")
	}
	return id, nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, runID string, totals RunTotals, runErr string) error {
	status := "complete"
	if runErr != "" {
		status = "failed"
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE resolve_runs
		 SET status = $1, completed_at = now(), attempted = $2, resolved = $3, absent = $4, failed = $5, error = NULLIF($6, '')
		 WHERE id = $7`,
		status, totals.Attempted, totals.Resolved, totals.Absent, totals.Failed, runErr, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finish run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, started_at, completed_at, attempted, resolved, absent, failed, error
		 FROM resolve_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var errStr *string
		if err := rows.Scan(&r.ID, &r.Status, &r.StartedAt, &r.CompletedAt,
			&r.Totals.Attempted, &r.Totals.Resolved, &r.Totals.Absent, &r.Totals.Failed, &errStr); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if errStr != nil {
			r.Error = *errStr
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
