// Package chain implements the star ledger: an append-only sequence of
// blocks where every block records the SHA-256 of its predecessor.
//
// The chain begins with a genesis block at height 0 whose previous hash is
// empty. Block hashes cover the canonical JSON encoding of every field except
// the hash itself, so any edit to a stored block is detectable via Verify.
//
// Chain is the single writer of its ledgerstore.Store. Appends run under a
// write lock; reads snapshot the tip height and may run concurrently.
package chain
