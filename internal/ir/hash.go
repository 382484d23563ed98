package ir

import (
	"crypto/ed25519"
	"crypto/sha256"
)

// Domain prefixes for derived keys.
// Version suffix enables future algorithm migration.
const (
	DomainIdentity = "stepper/identity/v1"
	DomainProgram  = "stepper/program/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// ProgramIDFromName returns the stable program id for a named program.
func ProgramIDFromName(name string) Pubkey {
	return Pubkey(hashWithDomain(DomainProgram, []byte(name)))
}

// IdentityKey derives a deterministic Ed25519 signing key for a named
// development identity. The same name always yields the same key.
func IdentityKey(name string) ed25519.PrivateKey {
	seed := hashWithDomain(DomainIdentity, []byte(name))
	return ed25519.NewKeyFromSeed(seed[:])
}

// PubkeyOf returns the public half of an Ed25519 key as a Pubkey.
func PubkeyOf(key ed25519.PrivateKey) Pubkey {
	var pk Pubkey
	copy(pk[:], key.Public().(ed25519.PublicKey))
	return pk
}
