package testutil

import (
	"context"
	"crypto/ed25519"
	"testing"

	"github.com/roach88/stepper/internal/ir"
	"github.com/roach88/stepper/internal/store"
)

// Identity is a named, deterministic keypair.
type Identity struct {
	Name string
	Key  ed25519.PrivateKey
}

// NewIdentity derives the keypair for name.
func NewIdentity(name string) Identity {
	return Identity{Name: name, Key: ir.IdentityKey(name)}
}

// Pubkey returns the identity's address.
func (id Identity) Pubkey() ir.Pubkey {
	return ir.PubkeyOf(id.Key)
}

// OpenStore opens an in-memory store that is closed when t finishes.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// Fund creates or tops up the identity's account.
func Fund(t testing.TB, st *store.Store, id Identity, lamports uint64) {
	t.Helper()
	if _, err := st.Airdrop(context.Background(), id.Pubkey(), lamports); err != nil {
		t.Fatalf("fund %s: %v", id.Name, err)
	}
}
