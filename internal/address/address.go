// Package address derives program-controlled storage addresses.
//
// A derived address is SHA-256(seed_1 || ... || seed_k || program_id ||
// "ProgramDerivedAddress") and is only valid when the digest does NOT decode
// as an Ed25519 curve point. Off-curve addresses have no private key, so the
// only authority that can sign for them is the program whose id went into the
// hash, by presenting the same seeds to the engine.
package address

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"github.com/roach88/stepper/internal/ir"
)

const (
	// MaxSeeds is the maximum number of seeds, bump included.
	MaxSeeds = 16

	// MaxSeedLen is the maximum length of a single seed.
	MaxSeedLen = 32

	// marker is appended after the program id.
	marker = "ProgramDerivedAddress"
)

// StateSeed is the fixed seed prefix for computation records.
var StateSeed = []byte("fib")

var (
	// ErrMaxSeedLengthExceeded is returned when there are too many seeds or a seed is too long.
	ErrMaxSeedLengthExceeded = errors.New("max seed length exceeded")

	// ErrInvalidSeeds is returned when the seeds hash onto the curve.
	ErrInvalidSeeds = errors.New("provided seeds do not result in a valid address")

	// ErrNoViableBump is returned when every bump in [0,255] lands on the curve.
	ErrNoViableBump = errors.New("unable to find a viable program address bump seed")
)

// CreateProgramAddress hashes seeds with the program id and rejects the
// result if it lies on the curve.
func CreateProgramAddress(seeds [][]byte, programID ir.Pubkey) (ir.Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return ir.Pubkey{}, fmt.Errorf("%w: %d seeds", ErrMaxSeedLengthExceeded, len(seeds))
	}
	h := sha256.New()
	for i, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return ir.Pubkey{}, fmt.Errorf("%w: seed %d is %d bytes", ErrMaxSeedLengthExceeded, i, len(seed))
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(marker))

	var candidate ir.Pubkey
	copy(candidate[:], h.Sum(nil))
	if IsOnCurve(candidate) {
		return ir.Pubkey{}, ErrInvalidSeeds
	}
	return candidate, nil
}

// FindProgramAddress searches the bump downward from 255 and returns the
// first off-curve address together with its bump. The search is pure: the
// same seeds and program id always give the same result.
func FindProgramAddress(seeds [][]byte, programID ir.Pubkey) (ir.Pubkey, uint8, error) {
	if len(seeds) >= MaxSeeds {
		return ir.Pubkey{}, 0, fmt.Errorf("%w: %d seeds leave no room for the bump", ErrMaxSeedLengthExceeded, len(seeds))
	}
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)
	bump := []byte{0}
	withBump[len(seeds)] = bump

	for b := 255; b >= 0; b-- {
		bump[0] = uint8(b)
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(b), nil
		}
		if !errors.Is(err, ErrInvalidSeeds) {
			return ir.Pubkey{}, 0, err
		}
	}
	return ir.Pubkey{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether key decodes as an Ed25519 point.
func IsOnCurve(key ir.Pubkey) bool {
	_, err := new(edwards25519.Point).SetBytes(key[:])
	return err == nil
}

// StateSeeds returns the seeds (without bump) for an identity's record.
func StateSeeds(identity ir.Pubkey) [][]byte {
	return [][]byte{StateSeed, identity[:]}
}

// StateAddress returns the record address and bump owned by identity under
// programID.
func StateAddress(programID, identity ir.Pubkey) (ir.Pubkey, uint8, error) {
	return FindProgramAddress(StateSeeds(identity), programID)
}

// SignerSeeds returns the full seed set, bump included, a program presents
// to sign for identity's record.
func SignerSeeds(identity ir.Pubkey, bump uint8) [][]byte {
	return [][]byte{StateSeed, identity[:], {bump}}
}
