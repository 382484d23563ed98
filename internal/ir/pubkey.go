package ir

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeyLen is the byte length of every key.
const PubkeyLen = 32

// Pubkey identifies an account, a program or a signing identity.
type Pubkey [PubkeyLen]byte

// SystemProgramID is the all-zero key owning every unallocated account.
var SystemProgramID = Pubkey{}

// ParsePubkey decodes base58 text into a Pubkey.
func ParsePubkey(s string) (Pubkey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return Pubkey{}, fmt.Errorf("parse pubkey %q: %w", s, err)
	}
	return PubkeyFromBytes(raw)
}

// MustParsePubkey is like ParsePubkey but panics on error.
// Use only in tests or for compile-time constants.
func MustParsePubkey(s string) Pubkey {
	pk, err := ParsePubkey(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PubkeyFromBytes copies exactly 32 bytes into a Pubkey.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var pk Pubkey
	if len(b) != PubkeyLen {
		return pk, fmt.Errorf("pubkey must be %d bytes, got %d", PubkeyLen, len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// String returns the base58 encoding.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// Bytes returns a copy of the key bytes.
func (p Pubkey) Bytes() []byte {
	out := make([]byte, PubkeyLen)
	copy(out, p[:])
	return out
}

// IsZero reports whether p is the all-zero key.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// Compare orders keys bytewise. Used for deterministic account ordering.
func (p Pubkey) Compare(o Pubkey) int {
	return bytes.Compare(p[:], o[:])
}

// MarshalText implements encoding.TextMarshaler (base58).
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler (base58).
func (p *Pubkey) UnmarshalText(text []byte) error {
	pk, err := ParsePubkey(string(text))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}
