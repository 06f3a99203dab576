package chain

import (
	"context"
	"errors"
	"fmt"
)

// Verify walks the stored ledger and checks every block from height 1 on:
// its hash is recomputed from the stored bytes and its previous hash is
// compared to the predecessor's stored hash. It returns nil for an intact
// chain, an *IntegrityError for the first violation, or a storage error.
//
// Verify reads the store directly, bypassing the block cache, so that edits
// made underneath a running process are still detected.
func (c *Chain) Verify(ctx context.Context) error {
	var (
		next     uint64
		prevHash string
		report   *IntegrityError
	)
	err := c.store.Iterate(ctx, func(height uint64, data []byte) error {
		if height != next {
			report = &IntegrityError{Height: next, Kind: HeightGap}
			return errStopScan
		}
		next++

		b, err := decodeBlock(data)
		if err != nil {
			return fmt.Errorf("height %d: %w", height, err)
		}
		if height == 0 {
			prevHash = b.Hash
			return nil
		}

		want, err := b.ComputeHash()
		if err != nil {
			return err
		}
		if b.Hash != want {
			report = &IntegrityError{Height: height, Kind: HashMismatch}
			return errStopScan
		}
		if b.PreviousHash != prevHash {
			report = &IntegrityError{Height: height, Kind: LinkMismatch}
			return errStopScan
		}
		prevHash = b.Hash
		return nil
	})
	if err != nil && !errors.Is(err, errStopScan) {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	if report != nil {
		return report
	}
	return nil
}
