// Package ir provides the shared value types for stepper.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal. This keeps ir
// the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Keys are fixed 32-byte values rendered as base58 text
//   - Account data is an opaque byte slice; its layout belongs to the owner program
//   - Hashes use SHA-256 with domain separation (domain + 0x00 + data)
//   - Golden traces use canonical JSON (sorted keys, NFC strings, no floats)
package ir
