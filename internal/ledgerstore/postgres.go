package ledgerstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS star_ledger (
	height BIGINT PRIMARY KEY,
	data   BYTEA  NOT NULL
)`

// PostgresStore persists blocks to a PostgreSQL table.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// OpenPostgres connects to dsn, pings the server and ensures the schema.
func OpenPostgres(ctx context.Context, dsn string, logger *zap.Logger) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres driver requires a DSN")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewPostgresStore(pool, logger)
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	logger.Info("connected to postgres ledger store")
	return s, nil
}

// NewPostgresStore creates a PostgresStore backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// EnsureSchema creates the star_ledger table if it does not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create star_ledger table: %w", err)
	}
	return nil
}

// Put implements Store. Heights are immutable, so an existing row is never
// overwritten.
func (s *PostgresStore) Put(ctx context.Context, height uint64, data []byte) error {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO star_ledger (height, data) VALUES ($1, $2)
		 ON CONFLICT (height) DO NOTHING`,
		int64(height), data,
	)
	if err != nil {
		return fmt.Errorf("insert block %d: %w", height, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("block %d already stored", height)
	}
	s.logger.Debug("ledger block stored", zap.Uint64("height", height))
	return nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, height uint64) ([]byte, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT data FROM star_ledger WHERE height = $1`, int64(height),
	).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get block %d: %w", height, err)
	}
	return data, nil
}

// Iterate implements Store. It streams rows ordered by height.
func (s *PostgresStore) Iterate(ctx context.Context, fn func(height uint64, data []byte) error) error {
	rows, err := s.pool.Query(ctx, `SELECT height, data FROM star_ledger ORDER BY height ASC`)
	if err != nil {
		return fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			height int64
			data   []byte
		)
		if err := rows.Scan(&height, &data); err != nil {
			return fmt.Errorf("scan ledger row: %w", err)
		}
		if err := fn(uint64(height), data); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Close implements Store.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
