package ledgerstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ErrNotFound is returned by Get when no block is stored at the height.
var ErrNotFound = errors.New("ledger height not found")

// Store is the interface for height-keyed block persistence.
// MemoryStore, PebbleStore, PostgresStore and SQLiteStore implement it.
type Store interface {
	// Put stores data at height. A successful Put survives a restart for
	// every driver except memory.
	Put(ctx context.Context, height uint64, data []byte) error

	// Get returns the bytes stored at height, or ErrNotFound.
	Get(ctx context.Context, height uint64) ([]byte, error)

	// Iterate calls fn for every stored height in ascending order starting
	// at 0. Iteration stops at the first error returned by fn.
	Iterate(ctx context.Context, fn func(height uint64, data []byte) error) error

	// Close releases the underlying resources.
	Close() error
}

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverPebble   = "pebble"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config selects and parameterises a Store driver.
type Config struct {
	Driver string // memory, pebble, postgres or sqlite
	Path   string // directory (pebble) or file (sqlite)
	DSN    string // postgres connection string
}

// Open builds the Store described by cfg.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	var (
		s   Store
		err error
	)
	switch strings.ToLower(cfg.Driver) {
	case DriverMemory, "":
		return NewMemoryStore(), nil
	case DriverPebble:
		s, err = OpenPebble(cfg.Path, logger)
	case DriverPostgres:
		s, err = OpenPostgres(ctx, cfg.DSN, logger)
	case DriverSQLite:
		s, err = OpenSQLite(ctx, cfg.Path, logger)
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
