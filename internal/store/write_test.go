package store

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/roach88/stepper/internal/ir"
)

func TestCommitTransaction_WritesRecordAndAccounts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	program := testKey(9)
	rec := createTestRecord("tx-1", 1, ir.TxStatusOK)
	rec.Logs = []string{"first", "second"}
	rec.Frames = []ir.FrameRecord{
		{Ordinal: 0, ProgramID: program, Height: 1, Status: ir.TxStatusOK},
		{Ordinal: 1, ProgramID: program, Height: 2, Status: ir.TxStatusOK},
	}
	rec.ReturnProgram = program
	rec.ReturnData = []byte{1, 2, 3}
	rec.MaxHeight = 2

	accounts := []ir.Account{
		{Key: testKey(2), Lamports: 100, Owner: program, Data: []byte{0xAA}},
		{Key: testKey(3), Lamports: 50, Owner: ir.SystemProgramID},
	}

	if err := s.CommitTransaction(ctx, rec, accounts); err != nil {
		t.Fatalf("CommitTransaction() failed: %v", err)
	}

	got, err := s.ReadTransaction(ctx, "tx-1")
	if err != nil {
		t.Fatalf("ReadTransaction() failed: %v", err)
	}
	if got.Seq != 1 || got.Status != ir.TxStatusOK || got.MaxHeight != 2 {
		t.Errorf("record = %+v", got)
	}
	if got.ReturnProgram != program || !bytes.Equal(got.ReturnData, []byte{1, 2, 3}) {
		t.Errorf("return data = %s %v", got.ReturnProgram, got.ReturnData)
	}
	if len(got.Logs) != 2 || got.Logs[0] != "first" || got.Logs[1] != "second" {
		t.Errorf("logs = %v", got.Logs)
	}
	if len(got.Frames) != 2 || got.Frames[1].Height != 2 || got.Frames[1].ProgramID != program {
		t.Errorf("frames = %+v", got.Frames)
	}

	acct, found, err := s.GetAccount(ctx, testKey(2))
	if err != nil || !found {
		t.Fatalf("GetAccount() found=%v err=%v", found, err)
	}
	if acct.Lamports != 100 || acct.Owner != program || !bytes.Equal(acct.Data, []byte{0xAA}) {
		t.Errorf("account = %+v", acct)
	}
}

func TestCommitTransaction_FailedRecordLeavesAccounts(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.Airdrop(ctx, testKey(2), 10); err != nil {
		t.Fatalf("Airdrop() failed: %v", err)
	}

	rec := createTestRecord("tx-fail", 1, ir.TxStatusFailed)
	rec.Error = "boom"
	if err := s.CommitTransaction(ctx, rec, nil); err != nil {
		t.Fatalf("CommitTransaction() failed: %v", err)
	}

	got, err := s.ReadTransaction(ctx, "tx-fail")
	if err != nil {
		t.Fatalf("ReadTransaction() failed: %v", err)
	}
	if got.Status != ir.TxStatusFailed || got.Error != "boom" {
		t.Errorf("record = %+v", got)
	}
	if got.ReturnData != nil {
		t.Errorf("failed record should carry no return data, got %v", got.ReturnData)
	}

	acct, _, _ := s.GetAccount(ctx, testKey(2))
	if acct.Lamports != 10 {
		t.Errorf("lamports = %d, want 10", acct.Lamports)
	}
}

func TestCommitTransaction_ZeroLamportsDeletes(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.Airdrop(ctx, testKey(2), 10); err != nil {
		t.Fatalf("Airdrop() failed: %v", err)
	}

	rec := createTestRecord("tx-drain", 1, ir.TxStatusOK)
	drained := ir.Account{Key: testKey(2), Owner: ir.SystemProgramID}
	if err := s.CommitTransaction(ctx, rec, []ir.Account{drained}); err != nil {
		t.Fatalf("CommitTransaction() failed: %v", err)
	}

	_, found, err := s.GetAccount(ctx, testKey(2))
	if err != nil {
		t.Fatalf("GetAccount() failed: %v", err)
	}
	if found {
		t.Error("zero-lamport account should be deleted")
	}
}

func TestCommitTransaction_DuplicateIDRejected(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.CommitTransaction(ctx, createTestRecord("tx-1", 1, ir.TxStatusOK), nil); err != nil {
		t.Fatalf("first CommitTransaction() failed: %v", err)
	}

	update := []ir.Account{{Key: testKey(4), Lamports: 1}}
	err := s.CommitTransaction(ctx, createTestRecord("tx-1", 2, ir.TxStatusOK), update)
	if !errors.Is(err, ErrDuplicateTransaction) {
		t.Fatalf("expected ErrDuplicateTransaction, got %v", err)
	}

	// Nothing from the rejected commit may land.
	if _, found, _ := s.GetAccount(ctx, testKey(4)); found {
		t.Error("account written by a rejected commit")
	}
}

func TestCommitTransaction_Atomic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// The second frame violates the (tx_id, ordinal) primary key, aborting
	// the whole commit.
	rec := createTestRecord("tx-bad", 1, ir.TxStatusOK)
	rec.Frames = []ir.FrameRecord{
		{Ordinal: 0, ProgramID: testKey(9), Height: 1, Status: ir.TxStatusOK},
		{Ordinal: 0, ProgramID: testKey(9), Height: 2, Status: ir.TxStatusOK},
	}
	err := s.CommitTransaction(ctx, rec, []ir.Account{{Key: testKey(5), Lamports: 1}})
	if err == nil {
		t.Fatal("expected commit error")
	}

	if _, err := s.ReadTransaction(ctx, "tx-bad"); err == nil {
		t.Error("record persisted from aborted commit")
	}
	if _, found, _ := s.GetAccount(ctx, testKey(5)); found {
		t.Error("account persisted from aborted commit")
	}
}

func TestAirdrop(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	acct, err := s.Airdrop(ctx, testKey(1), 1000)
	if err != nil {
		t.Fatalf("Airdrop() failed: %v", err)
	}
	if acct.Lamports != 1000 || acct.Owner != ir.SystemProgramID || len(acct.Data) != 0 {
		t.Errorf("first airdrop = %+v", acct)
	}

	acct, err = s.Airdrop(ctx, testKey(1), 500)
	if err != nil {
		t.Fatalf("second Airdrop() failed: %v", err)
	}
	if acct.Lamports != 1500 {
		t.Errorf("lamports = %d, want 1500", acct.Lamports)
	}
}

func TestAirdrop_ZeroRejected(t *testing.T) {
	s := createTestStore(t)
	if _, err := s.Airdrop(context.Background(), testKey(1), 0); err == nil {
		t.Error("expected error for zero airdrop")
	}
}

func TestPutAccount(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	want := ir.Account{Key: testKey(6), Lamports: 3, Owner: testKey(9), Data: []byte{1, 2}}
	if err := s.PutAccount(ctx, want); err != nil {
		t.Fatalf("PutAccount() failed: %v", err)
	}

	got, found, err := s.GetAccount(ctx, want.Key)
	if err != nil || !found {
		t.Fatalf("GetAccount() found=%v err=%v", found, err)
	}
	if got.Owner != want.Owner || !bytes.Equal(got.Data, want.Data) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
