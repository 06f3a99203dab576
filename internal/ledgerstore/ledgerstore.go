// Package ledgerstore provides height-keyed persistence for the star ledger.
//
// A Store maps a block height to the serialized bytes of that block. It knows
// nothing about hashing or chaining; the chain package is the only writer and
// serialises calls to Put.
//
// Four implementations of the Store interface are provided:
//   - MemoryStore: in-process, for testing and development.
//   - PebbleStore: embedded LSM key-value store, the default for a single node.
//   - PostgresStore: durable, shared database.
//   - SQLiteStore: single-file database.
package ledgerstore
