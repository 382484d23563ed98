// Package alloc builds and executes requests to create a funded record.
//
// The wire shape of CreateAccount is fixed by the system allocator and is
// compatibility-critical:
//
//	u32 LE tag (0) | u64 LE lamports | u64 LE space | 32-byte owner
package alloc

import (
	"encoding/binary"
	"fmt"

	"github.com/roach88/stepper/internal/ir"
)

// Rent parameters. Not configurable: the funding amount must be bit-stable.
const (
	// AccountStorageOverhead is the per-record byte charge on top of data.
	AccountStorageOverhead = 128
	// LamportsPerByteYear is the yearly storage price per byte.
	LamportsPerByteYear = 3480
	// ExemptionThresholdYears is how many years of rent make a record exempt.
	ExemptionThresholdYears = 2
)

// TagCreateAccount selects CreateAccount in the system allocator.
const TagCreateAccount uint32 = 0

// CreateAccountLen is the encoded size of a CreateAccount payload.
const CreateAccountLen = 4 + 8 + 8 + ir.PubkeyLen

// MaxDataLen is the largest record the allocator will create.
const MaxDataLen = 10 * 1024 * 1024

// RentMinimum returns the balance that makes a record of dataLen bytes
// rent exempt.
func RentMinimum(dataLen uint64) uint64 {
	return (AccountStorageOverhead + dataLen) * LamportsPerByteYear * ExemptionThresholdYears
}

// CreateAccountArgs is the decoded CreateAccount payload.
type CreateAccountArgs struct {
	Lamports uint64
	Space    uint64
	Owner    ir.Pubkey
}

// EncodeCreateAccount writes the CreateAccount payload.
func EncodeCreateAccount(args CreateAccountArgs) []byte {
	buf := make([]byte, CreateAccountLen)
	binary.LittleEndian.PutUint32(buf[0:4], TagCreateAccount)
	binary.LittleEndian.PutUint64(buf[4:12], args.Lamports)
	binary.LittleEndian.PutUint64(buf[12:20], args.Space)
	copy(buf[20:], args.Owner[:])
	return buf
}

// DecodeCreateAccount parses a CreateAccount payload.
func DecodeCreateAccount(data []byte) (CreateAccountArgs, error) {
	if len(data) != CreateAccountLen {
		return CreateAccountArgs{}, fmt.Errorf("create account payload: want %d bytes, got %d", CreateAccountLen, len(data))
	}
	if tag := binary.LittleEndian.Uint32(data[0:4]); tag != TagCreateAccount {
		return CreateAccountArgs{}, fmt.Errorf("create account payload: unknown tag %d", tag)
	}
	var args CreateAccountArgs
	args.Lamports = binary.LittleEndian.Uint64(data[4:12])
	args.Space = binary.LittleEndian.Uint64(data[12:20])
	copy(args.Owner[:], data[20:])
	return args, nil
}

// CreateAccount builds the instruction asking the system allocator to move
// lamports from `from` to a new record at `to`, sized to space bytes and
// owned by owner. Both parties must sign.
func CreateAccount(from, to ir.Pubkey, lamports, space uint64, owner ir.Pubkey) ir.Instruction {
	return ir.Instruction{
		ProgramID: ir.SystemProgramID,
		Accounts: []ir.AccountMeta{
			ir.NewAccountMeta(from, true),
			ir.NewAccountMeta(to, true),
		},
		Data: EncodeCreateAccount(CreateAccountArgs{
			Lamports: lamports,
			Space:    space,
			Owner:    owner,
		}),
	}
}
