package ledgerstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"go.uber.org/zap"
)

// codeBlock prefixes every block key so the keyspace can grow other record
// types without colliding with heights.
const codeBlock byte = 0x01

// PebbleStore persists blocks in an embedded pebble database.
type PebbleStore struct {
	db     *pebble.DB
	logger *zap.Logger
}

// OpenPebble opens (or creates) a pebble database in dir.
func OpenPebble(dir string, logger *zap.Logger) (*PebbleStore, error) {
	if dir == "" {
		return nil, errors.New("pebble driver requires a data directory")
	}
	cache := pebble.NewCache(8 << 20)
	defer cache.Unref()

	db, err := pebble.Open(dir, &pebble.Options{Cache: cache})
	if err != nil {
		return nil, fmt.Errorf("open pebble db: %w", err)
	}
	logger.Info("pebble ledger store opened", zap.String("dir", dir))
	return &PebbleStore{db: db, logger: logger}, nil
}

func blockKey(height uint64) []byte {
	key := make([]byte, 9)
	key[0] = codeBlock
	binary.BigEndian.PutUint64(key[1:], height)
	return key
}

// Put implements Store. Writes are synced before returning.
func (s *PebbleStore) Put(_ context.Context, height uint64, data []byte) error {
	if err := s.db.Set(blockKey(height), data, pebble.Sync); err != nil {
		return fmt.Errorf("store block %d: %w", height, err)
	}
	return nil
}

// Get implements Store.
func (s *PebbleStore) Get(_ context.Context, height uint64) ([]byte, error) {
	val, closer, err := s.db.Get(blockKey(height))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get block %d: %w", height, err)
	}
	defer closer.Close()

	data := make([]byte, len(val))
	copy(data, val)
	return data, nil
}

// Iterate implements Store. Big-endian keys make pebble's byte order equal
// to height order.
func (s *PebbleStore) Iterate(ctx context.Context, fn func(height uint64, data []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{codeBlock},
		UpperBound: []byte{codeBlock + 1},
	})
	if err != nil {
		return fmt.Errorf("create iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := iter.Key()
		if len(key) != 9 {
			return fmt.Errorf("malformed block key %x", key)
		}
		val := iter.Value()
		data := make([]byte, len(val))
		copy(data, val)
		if err := fn(binary.BigEndian.Uint64(key[1:]), data); err != nil {
			return err
		}
	}
	return iter.Error()
}

// Close implements Store.
func (s *PebbleStore) Close() error {
	return s.db.Close()
}
