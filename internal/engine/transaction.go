package engine

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/roach88/stepper/internal/ir"
)

// Transaction is an ordered list of instructions executed atomically.
type Transaction struct {
	// ID is assigned by the engine when empty.
	ID string

	// Payer must sign every transaction.
	Payer ir.Pubkey

	Instructions []ir.Instruction

	// Signatures over Message(), keyed by signer.
	Signatures map[ir.Pubkey][]byte
}

// NewTransaction builds an unsigned transaction.
func NewTransaction(payer ir.Pubkey, ixs ...ir.Instruction) *Transaction {
	return &Transaction{
		Payer:        payer,
		Instructions: ixs,
		Signatures:   make(map[ir.Pubkey][]byte),
	}
}

// Message returns the deterministic byte form that signers sign.
//
// Layout: payer | u32 count | per instruction: program | u32 metas |
// per meta: key, flags | u32 len | data. Integers are little-endian.
func (t *Transaction) Message() []byte {
	msg := make([]byte, 0, 128)
	msg = append(msg, t.Payer[:]...)
	msg = binary.LittleEndian.AppendUint32(msg, uint32(len(t.Instructions)))
	for _, ix := range t.Instructions {
		msg = append(msg, ix.ProgramID[:]...)
		msg = binary.LittleEndian.AppendUint32(msg, uint32(len(ix.Accounts)))
		for _, m := range ix.Accounts {
			msg = append(msg, m.Pubkey[:]...)
			var flags byte
			if m.IsSigner {
				flags |= 1
			}
			if m.IsWritable {
				flags |= 2
			}
			msg = append(msg, flags)
		}
		msg = binary.LittleEndian.AppendUint32(msg, uint32(len(ix.Data)))
		msg = append(msg, ix.Data...)
	}
	return msg
}

// Sign adds a signature for each key. Sign after the instructions are final.
func (t *Transaction) Sign(keys ...ed25519.PrivateKey) *Transaction {
	if t.Signatures == nil {
		t.Signatures = make(map[ir.Pubkey][]byte)
	}
	msg := t.Message()
	for _, k := range keys {
		t.Signatures[ir.PubkeyOf(k)] = ed25519.Sign(k, msg)
	}
	return t
}

// verifySignatures checks every signature and that each account marked
// as a signer, and the payer, signed the message. Once it passes, the
// IsSigner flags on top-level account metas are trusted as privileges.
func (t *Transaction) verifySignatures() error {
	msg := t.Message()
	signers := make(map[ir.Pubkey]bool, len(t.Signatures))
	for key, sig := range t.Signatures {
		if !ed25519.Verify(ed25519.PublicKey(key[:]), msg, sig) {
			return &SignatureError{Signer: key, Message: "invalid signature"}
		}
		signers[key] = true
	}

	if !signers[t.Payer] {
		return &SignatureError{Signer: t.Payer, Message: "payer must sign"}
	}
	for _, ix := range t.Instructions {
		for _, m := range ix.Accounts {
			if m.IsSigner && !signers[m.Pubkey] {
				return &SignatureError{Signer: m.Pubkey, Message: "missing required signature"}
			}
		}
	}
	return nil
}
