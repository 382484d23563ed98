package program

import (
	"encoding/binary"

	"github.com/roach88/stepper/internal/address"
	"github.com/roach88/stepper/internal/ir"
)

// accountMetas returns the fixed account list: record, payer, allocator.
func accountMetas(record, payer ir.Pubkey) []ir.AccountMeta {
	return []ir.AccountMeta{
		ir.NewAccountMeta(record, false),
		ir.NewAccountMeta(payer, true),
		ir.NewReadonlyAccountMeta(ir.SystemProgramID, false),
	}
}

// StartInstruction builds the init call for payer's record with n steps.
func StartInstruction(programID, payer ir.Pubkey, n uint64) (ir.Instruction, error) {
	record, _, err := address.StateAddress(programID, payer)
	if err != nil {
		return ir.Instruction{}, err
	}
	return ir.Instruction{
		ProgramID: programID,
		Accounts:  accountMetas(record, payer),
		Data:      binary.LittleEndian.AppendUint64(nil, n),
	}, nil
}

// ResumeInstruction builds the empty-payload call that advances record.
func ResumeInstruction(programID, record, payer ir.Pubkey) ir.Instruction {
	return ir.Instruction{
		ProgramID: programID,
		Accounts:  accountMetas(record, payer),
		Data:      []byte{},
	}
}

// ResumeFor builds the resume call for payer's own record.
func ResumeFor(programID, payer ir.Pubkey) (ir.Instruction, error) {
	record, _, err := address.StateAddress(programID, payer)
	if err != nil {
		return ir.Instruction{}, err
	}
	return ResumeInstruction(programID, record, payer), nil
}

// ResultValue decodes the 8-byte return data set by a terminal resume.
func ResultValue(data []byte) (uint64, bool) {
	if len(data) != 8 {
		return 0, false
	}
	return binary.LittleEndian.Uint64(data), true
}
