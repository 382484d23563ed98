// Package engine implements the stepper invocation host.
//
// The engine executes transactions against accounts held in the store. A
// transaction is a list of instructions; each instruction names a program,
// the accounts it touches and an opaque payload. Programs may invoke other
// programs, themselves included, nested one level deeper each time.
//
// ARCHITECTURE:
//
// Single-Writer Execution:
// Transactions run one at a time. Submit() enqueues a transaction for the
// Run() loop; Execute() runs one synchronously under the same lock. This
// ensures:
// - No interleaving between transactions
// - Each nested invocation strictly happens-after the writes before it
// - Records for distinct identities never contend (isolation is structural)
//
// Transaction Flow:
//  1. Signatures verified; only verified keys carry signer privilege
//  2. Each instruction runs at stack height 1
//  3. Nested invocations run at height+1, bounded by the depth ceiling
//  4. Account rules checked at every frame boundary (ownership, privileges)
//  5. On success all touched accounts commit in one store transaction;
//     on any failure nothing but the failed transaction record is written
//
// CRITICAL PATTERNS:
//
// Depth Ceiling:
// The maximum stack height is a configurable parameter (default 5, i.e. one
// top-level call plus four nested continuations). Exceeding it aborts the
// whole transaction with DepthExceededError.
//
// Logical Clock:
// Every transaction is stamped with a monotonic seq from Clock.Next().
// NEVER use wall-clock timestamps for ordering.
package engine
