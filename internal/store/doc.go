// Package store provides SQLite-backed durable storage for stepper.
//
// The store holds:
//   - Accounts: the key-value substrate every program record lives in
//   - Transactions: one record per executed transaction, ok or failed
//   - Logs: program log lines per transaction, in emission order
//   - Frames: every program invocation per transaction, in entry order
//
// # Critical Patterns
//
// All-or-Nothing Commit:
//   - CommitTransaction writes the transaction record and every changed
//     account in one SQL transaction
//   - A failed transaction passes no accounts; only its record is stored
//
// Logical Ordering:
//   - All ordering uses seq INTEGER (logical clock), NEVER timestamps
//
// Account Purge:
//   - An account whose balance drops to zero is deleted, matching the
//     "absent" state programs observe for unallocated addresses
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Keys are stored as base58 text; account data as BLOB.
package store
