package chain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the chain.
var (
	ErrNotFound = errors.New("block not found")
	ErrStorage  = errors.New("ledger storage failure")
)

// MismatchKind names the invariant a block violates.
type MismatchKind string

// Integrity failure kinds reported by Verify.
const (
	HashMismatch MismatchKind = "hash mismatch"
	LinkMismatch MismatchKind = "link mismatch"
	HeightGap    MismatchKind = "height gap"
)

// IntegrityError reports the first block that fails self-validation.
type IntegrityError struct {
	Height uint64
	Kind   MismatchKind
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("%s at height %d", e.Kind, e.Height)
}
