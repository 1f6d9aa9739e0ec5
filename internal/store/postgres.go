package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskcal/internal/model"
)

// Postgres stores each raw record as an (id, payload jsonb) row. The payload
// column carries the full Event document, so schema evolution never needs a
// migration beyond this table.
type Postgres struct {
	pool *pgxpool.Pool
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS events (
	id      varchar PRIMARY KEY,
	payload jsonb NOT NULL
)`

// ConnectPostgres opens a pool for dsn and ensures the events table exists.
func ConnectPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: pgxpool: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: create table: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Ready reports whether the database is reachable.
func (p *Postgres) Ready(ctx context.Context) error {
	var one int
	return p.pool.QueryRow(ctx, "select 1").Scan(&one)
}

func (p *Postgres) ReadAll(ctx context.Context) ([]model.Event, error) {
	rows, err := p.pool.Query(ctx, "SELECT payload FROM events")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var ev model.Event
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// WriteAll replaces the whole collection in one transaction, matching the
// whole-document semantics of the other backends.
func (p *Postgres) WriteAll(ctx context.Context, events []model.Event) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM events"); err != nil {
		return err
	}

	if len(events) > 0 {
		placeholders := make([]string, 0, len(events))
		args := make([]any, 0, len(events)*2)
		argi := 1
		for _, ev := range events {
			payload, err := json.Marshal(ev)
			if err != nil {
				return err
			}
			placeholders = append(placeholders, fmt.Sprintf("($%d,$%d::jsonb)", argi, argi+1))
			args = append(args, ev.ID, string(payload))
			argi += 2
		}
		sql := "INSERT INTO events (id, payload) VALUES " + strings.Join(placeholders, ",")
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
