package save

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PGBackend stores save payloads in a Postgres table, one row per key.
type PGBackend struct {
	pool *pgxpool.Pool
}

var _ Backend = (*PGBackend)(nil)

// NewPGBackend connects to Postgres and applies pending migrations.
func NewPGBackend(ctx context.Context, dsn string) (*PGBackend, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("save: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("save: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("save: ping: %w", err)
	}

	if err = runMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PGBackend{pool: pool}, nil
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("save: set dialect: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("save: run migrations: %w", err)
	}
	return nil
}

func (b *PGBackend) Save(ctx context.Context, key string, data []byte, meta Metadata) error {
	if err := validateKey(key); err != nil {
		return err
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("save: marshal metadata: %w", err)
	}
	_, err = b.pool.Exec(ctx,
		`INSERT INTO world_saves (key, payload, metadata, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (key) DO UPDATE
		 SET payload = EXCLUDED.payload, metadata = EXCLUDED.metadata, updated_at = now()`,
		key, data, metaJSON,
	)
	if err != nil {
		return fmt.Errorf("save: upsert %s: %w", key, err)
	}
	return nil
}

func (b *PGBackend) Load(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	var payload []byte
	err := b.pool.QueryRow(ctx,
		`SELECT payload FROM world_saves WHERE key = $1`, key,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("save: load %s: %w", key, err)
	}
	return payload, nil
}

func (b *PGBackend) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	tag, err := b.pool.Exec(ctx, `DELETE FROM world_saves WHERE key = $1`, key)
	if err != nil {
		return fmt.Errorf("save: delete %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}

func (b *PGBackend) List(ctx context.Context) ([]string, error) {
	rows, err := b.pool.Query(ctx, `SELECT key FROM world_saves ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("save: list: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err = rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("save: list scan: %w", err)
		}
		keys = append(keys, key)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("save: list rows: %w", err)
	}
	return keys, nil
}

func (b *PGBackend) Close() {
	b.pool.Close()
}
