package ir

// AccountMeta names one account an instruction touches and the privileges
// the caller grants for it.
type AccountMeta struct {
	Pubkey     Pubkey `json:"pubkey"`
	IsSigner   bool   `json:"is_signer"`
	IsWritable bool   `json:"is_writable"`
}

// NewAccountMeta returns a writable meta.
func NewAccountMeta(key Pubkey, signer bool) AccountMeta {
	return AccountMeta{Pubkey: key, IsSigner: signer, IsWritable: true}
}

// NewReadonlyAccountMeta returns a read-only meta.
func NewReadonlyAccountMeta(key Pubkey, signer bool) AccountMeta {
	return AccountMeta{Pubkey: key, IsSigner: signer, IsWritable: false}
}

// Instruction is a single program call: target program, ordered accounts
// and an opaque payload.
type Instruction struct {
	ProgramID Pubkey        `json:"program_id"`
	Accounts  []AccountMeta `json:"accounts"`
	Data      []byte        `json:"data"`
}

// Account is a stored record. An account that was never funded is
// represented by the zero Account owned by the system program.
type Account struct {
	Key      Pubkey `json:"key"`
	Lamports uint64 `json:"lamports"`
	Owner    Pubkey `json:"owner"`
	Data     []byte `json:"data"`
}

// NewEmptyAccount returns the implicit record for an address nothing has
// allocated yet.
func NewEmptyAccount(key Pubkey) Account {
	return Account{Key: key, Owner: SystemProgramID}
}

// IsEmpty reports whether the account holds nothing worth persisting.
func (a Account) IsEmpty() bool {
	return a.Lamports == 0 && len(a.Data) == 0 && a.Owner == SystemProgramID
}

// Clone returns a deep copy.
func (a Account) Clone() Account {
	c := a
	if a.Data != nil {
		c.Data = make([]byte, len(a.Data))
		copy(c.Data, a.Data)
	}
	return c
}
