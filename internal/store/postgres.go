package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/mptmeter/internal/mpt"
)

// Schema is the DDL for the analysis history. [PostgresStore.Migrate] applies
// it idempotently.
const Schema = `
CREATE TABLE IF NOT EXISTS mpt_analyses (
    id               UUID PRIMARY KEY,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    source           TEXT NOT NULL DEFAULT '',
    correlation_id   TEXT NOT NULL DEFAULT '',
    urgency          TEXT NOT NULL,
    duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
    result           JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mpt_analyses_created ON mpt_analyses(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_mpt_analyses_urgency ON mpt_analyses(urgency);
`

// DB is the subset of pgx used by [PostgresStore]. Both *pgxpool.Pool and
// *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL. The full [mpt.Result] is
// kept as JSONB; urgency and duration are duplicated into columns for
// querying.
type PostgresStore struct {
	db   DB
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an existing connection or pool. The caller runs
// [PostgresStore.Migrate] before first use.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects a pool to dsn, pings it and applies [Schema].
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	s := &PostgresStore{db: pool, pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate executes [Schema].
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Save implements [Store].
func (s *PostgresStore) Save(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("store: marshal result: %w", err)
	}
	const query = `
		INSERT INTO mpt_analyses (id, created_at, source, correlation_id, urgency, duration_seconds, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = s.db.Exec(ctx, query,
		rec.ID.String(), rec.CreatedAt, string(rec.Source), rec.CorrelationID,
		string(rec.Result.Urgency), rec.Result.DurationSeconds, body,
	)
	if err != nil {
		return fmt.Errorf("store: save %s: %w", rec.ID, err)
	}
	return nil
}

// Get implements [Store].
func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	const query = `
		SELECT id::text, created_at, source, correlation_id, result
		FROM mpt_analyses
		WHERE id = $1`
	rec, err := scanRecord(s.db.QueryRow(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Record{}, fmt.Errorf("store: get %s: %w", id, err)
	}
	return rec, nil
}

// List implements [Store].
func (s *PostgresStore) List(ctx context.Context, limit int) ([]Record, error) {
	query := `
		SELECT id::text, created_at, source, correlation_id, result
		FROM mpt_analyses
		ORDER BY created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	return out, nil
}

// Ping verifies the connection when the store owns a pool.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if s.pool == nil {
		return nil
	}
	return s.pool.Ping(ctx)
}

// Close releases the pool opened by [OpenPostgres].
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func scanRecord(row pgx.Row) (Record, error) {
	var (
		rec    Record
		id     string
		source string
		corr   string
		body   []byte
		at     time.Time
	)
	if err := row.Scan(&id, &at, &source, &corr, &body); err != nil {
		return Record{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Record{}, fmt.Errorf("parse id %q: %w", id, err)
	}
	var res mpt.Result
	if err := json.Unmarshal(body, &res); err != nil {
		return Record{}, fmt.Errorf("unmarshal result: %w", err)
	}
	rec.ID = parsed
	rec.CreatedAt = at
	rec.Source = Source(source)
	rec.CorrelationID = corr
	rec.Result = res
	return rec, nil
}
