package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx pool for the postgres snapshot backend.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// PostgresSnapshot stores a collection in a two-column jsonb table, one row
// per record. Saves replace the full collection inside one transaction, so
// readers of the table never observe a partial write.
type PostgresSnapshot struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgresSnapshot(ctx context.Context, pool *pgxpool.Pool, collection string) (*PostgresSnapshot, error) {
	table := "hustled_" + collection
	_, err := pool.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id  text PRIMARY KEY,
			doc jsonb NOT NULL
		)
	`, table))
	if err != nil {
		return nil, fmt.Errorf("create table %s: %w", table, err)
	}
	return &PostgresSnapshot{pool: pool, table: table}, nil
}

func (p *PostgresSnapshot) Load(ctx context.Context) (map[string]json.RawMessage, error) {
	rows, err := p.pool.Query(ctx, fmt.Sprintf(`SELECT id, doc FROM %s`, p.table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]json.RawMessage{}
	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, err
		}
		out[id] = json.RawMessage(doc)
	}
	return out, rows.Err()
}

func (p *PostgresSnapshot) Save(ctx context.Context, data map[string]json.RawMessage) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s`, p.table)); err != nil {
		return err
	}
	for id, doc := range data {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`
			INSERT INTO %s (id, doc) VALUES ($1, $2)
		`, p.table), id, []byte(doc)); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
