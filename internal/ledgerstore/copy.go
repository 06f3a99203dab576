package ledgerstore

import (
	"context"
	"errors"
	"fmt"
)

// ErrDestinationNotEmpty is returned by Copy when dst already holds blocks.
var ErrDestinationNotEmpty = errors.New("destination ledger is not empty")

// Copy writes every block of src into dst in height order and returns the
// number copied. dst must be empty.
func Copy(ctx context.Context, dst, src Store) (int, error) {
	if _, err := dst.Get(ctx, 0); err == nil {
		return 0, ErrDestinationNotEmpty
	} else if !errors.Is(err, ErrNotFound) {
		return 0, fmt.Errorf("probe destination: %w", err)
	}

	n := 0
	err := src.Iterate(ctx, func(height uint64, data []byte) error {
		if err := dst.Put(ctx, height, data); err != nil {
			return fmt.Errorf("put height %d: %w", height, err)
		}
		n++
		return nil
	})
	return n, err
}
