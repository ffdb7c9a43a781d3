package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PratikDhanave/audit-sync-monitor/internal/models"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// DB abstracts the pgxpool.Pool methods the store uses, so tests can mock it.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Ping(ctx context.Context) error
}

// PostgresStore keeps sync entries in a table ordered by an identity column.
// Each append is a single INSERT, so writers never lose each other's rows.
type PostgresStore struct {
	db   DB
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{db: pool, pool: pool}, nil
}

// NewPostgresStoreWithDB wraps an existing DB handle. Close is a no-op.
func NewPostgresStoreWithDB(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.db.Exec(ctx, schemaSQL)
	return err
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}

// Append inserts e. Entries without an id get one; replaying an entry that is
// already stored is a no-op thanks to the unique id.
func (p *PostgresStore) Append(ctx context.Context, e models.SyncEntry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	opsJSON, err := json.Marshal(nonNilCounts(e.OperatorCounts))
	if err != nil {
		return fmt.Errorf("serializing operator counts: %w", err)
	}
	records := e.Records
	if records == nil {
		records = []models.AuditRecord{}
	}
	recordsJSON, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("serializing records: %w", err)
	}

	// ts stays NULL for timestamps that do not parse; range queries skip them.
	var ts *time.Time
	if t, ok := e.Time(); ok {
		ts = &t
	}

	_, err = p.db.Exec(ctx, `
		INSERT INTO sync_entries(id, ts, ts_raw, status, new_count, total_count, operator_counts, records)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (id) DO NOTHING
	`, e.ID, ts, e.Timestamp, string(e.Status), e.NewCount, e.TotalSeenCount, opsJSON, recordsJSON)
	if err != nil {
		return fmt.Errorf("inserting sync entry: %w", err)
	}
	return nil
}

// Entries returns every entry in insertion order.
func (p *PostgresStore) Entries(ctx context.Context) ([]models.SyncEntry, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, ts_raw, status, new_count, total_count, operator_counts, records
		FROM sync_entries
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("listing sync entries: %w", err)
	}
	return collectEntries(rows)
}

// EntriesBetween returns entries with from <= ts <= to in insertion order.
// Rows without a parseable timestamp are never returned.
func (p *PostgresStore) EntriesBetween(ctx context.Context, from, to *time.Time) ([]models.SyncEntry, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, ts_raw, status, new_count, total_count, operator_counts, records
		FROM sync_entries
		WHERE ts IS NOT NULL
		  AND ($1::TIMESTAMPTZ IS NULL OR ts >= $1)
		  AND ($2::TIMESTAMPTZ IS NULL OR ts <= $2)
		ORDER BY seq
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("listing sync entries in range: %w", err)
	}
	return collectEntries(rows)
}

// scanner abstracts pgx.Rows for the shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func collectEntries(rows pgx.Rows) ([]models.SyncEntry, error) {
	defer rows.Close()

	var out []models.SyncEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}
	return out, nil
}

func scanEntry(s scanner) (models.SyncEntry, error) {
	var (
		e           models.SyncEntry
		status      string
		opsJSON     []byte
		recordsJSON []byte
	)
	if err := s.Scan(&e.ID, &e.Timestamp, &status, &e.NewCount, &e.TotalSeenCount, &opsJSON, &recordsJSON); err != nil {
		return e, fmt.Errorf("scanning sync entry: %w", err)
	}
	e.Status = models.Status(status)

	if err := json.Unmarshal(opsJSON, &e.OperatorCounts); err != nil {
		return e, fmt.Errorf("%w: entry %s operator counts: %v", ErrCorrupt, e.ID, err)
	}
	if err := json.Unmarshal(recordsJSON, &e.Records); err != nil {
		return e, fmt.Errorf("%w: entry %s records: %v", ErrCorrupt, e.ID, err)
	}
	return e, nil
}

func nonNilCounts(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}
