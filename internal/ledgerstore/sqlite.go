package ledgerstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

const (
	defaultSQLiteFile = "ledger.db"
	sqliteBusyTimeout = 5000
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS star_ledger (
	height INTEGER PRIMARY KEY,
	data   BLOB    NOT NULL
)`

// SQLiteStore persists blocks to a single SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	file   string
	logger *zap.Logger
}

// OpenSQLite opens (or creates) the database file at path.
func OpenSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		path = defaultSQLiteFile
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s", filepath.Clean(absPath)))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps the pragmas below in effect for every statement.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	for _, pragma := range []string{
		fmt.Sprintf("PRAGMA busy_timeout=%d", sqliteBusyTimeout),
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=FULL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create star_ledger table: %w", err)
	}

	logger.Info("sqlite ledger store opened", zap.String("file", absPath))
	return &SQLiteStore{db: db, file: absPath, logger: logger}, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, height uint64, data []byte) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO star_ledger (height, data) VALUES (?, ?)`, int64(height), data,
	); err != nil {
		return fmt.Errorf("insert block %d: %w", height, err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, height uint64) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM star_ledger WHERE height = ?`, int64(height),
	).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get block %d: %w", height, err)
	}
	return data, nil
}

// Iterate implements Store. Rows are collected before fn runs so that fn may
// call back into the store without deadlocking the single connection.
func (s *SQLiteStore) Iterate(ctx context.Context, fn func(height uint64, data []byte) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT height, data FROM star_ledger ORDER BY height ASC`)
	if err != nil {
		return fmt.Errorf("query ledger: %w", err)
	}

	type row struct {
		height uint64
		data   []byte
	}
	var all []row
	for rows.Next() {
		var (
			height int64
			data   []byte
		)
		if err := rows.Scan(&height, &data); err != nil {
			rows.Close()
			return fmt.Errorf("scan ledger row: %w", err)
		}
		all = append(all, row{height: uint64(height), data: data})
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	for _, r := range all {
		if err := fn(r.height, r.data); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
