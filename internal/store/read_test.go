package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/roach88/stepper/internal/ir"
	"github.com/roach88/stepper/internal/txquery"
)

func TestGetAccount_Missing(t *testing.T) {
	s := createTestStore(t)

	acct, found, err := s.GetAccount(context.Background(), testKey(1))
	if err != nil {
		t.Fatalf("GetAccount() failed: %v", err)
	}
	if found {
		t.Error("found = true for missing account")
	}
	if acct.Lamports != 0 {
		t.Errorf("missing account lamports = %d", acct.Lamports)
	}
}

func TestListAccountsByOwner(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	program := testKey(9)
	rec := createTestRecord("tx-1", 1, ir.TxStatusOK)
	err := s.CommitTransaction(ctx, rec, []ir.Account{
		{Key: testKey(3), Lamports: 1, Owner: program},
		{Key: testKey(2), Lamports: 1, Owner: program},
		{Key: testKey(4), Lamports: 1, Owner: ir.SystemProgramID},
	})
	if err != nil {
		t.Fatalf("CommitTransaction() failed: %v", err)
	}

	owned, err := s.ListAccountsByOwner(ctx, program)
	if err != nil {
		t.Fatalf("ListAccountsByOwner() failed: %v", err)
	}
	if len(owned) != 2 {
		t.Fatalf("len = %d, want 2", len(owned))
	}
	if owned[0].Key.String() > owned[1].Key.String() {
		t.Errorf("accounts not ordered by key: %s, %s", owned[0].Key, owned[1].Key)
	}

	none, err := s.ListAccountsByOwner(ctx, testKey(8))
	if err != nil {
		t.Fatalf("ListAccountsByOwner() failed: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", none)
	}
}

func TestReadTransaction_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadTransaction(context.Background(), "missing")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestReadTransactions_OrderedBySeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Insert out of order; reads come back by seq.
	for _, seq := range []int64{3, 1, 2} {
		rec := createTestRecord(fmt.Sprintf("tx-%d", seq), seq, ir.TxStatusOK)
		rec.Logs = []string{fmt.Sprintf("line %d", seq)}
		if err := s.CommitTransaction(ctx, rec, nil); err != nil {
			t.Fatalf("CommitTransaction(%d) failed: %v", seq, err)
		}
	}

	all, err := s.ReadTransactions(ctx, 0, 0)
	if err != nil {
		t.Fatalf("ReadTransactions() failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len = %d, want 3", len(all))
	}
	for i, rec := range all {
		want := int64(i + 1)
		if rec.Seq != want {
			t.Errorf("all[%d].Seq = %d, want %d", i, rec.Seq, want)
		}
		if len(rec.Logs) != 1 || rec.Logs[0] != fmt.Sprintf("line %d", want) {
			t.Errorf("all[%d].Logs = %v", i, rec.Logs)
		}
	}

	tail, err := s.ReadTransactions(ctx, 1, 1)
	if err != nil {
		t.Fatalf("ReadTransactions(after=1, limit=1) failed: %v", err)
	}
	if len(tail) != 1 || tail[0].Seq != 2 {
		t.Errorf("tail = %+v", tail)
	}
}

func TestQueryTransactions_Filter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	recs := []ir.TxRecord{
		createTestRecord("tx-1", 1, ir.TxStatusOK),
		createTestRecord("tx-2", 2, ir.TxStatusFailed),
		createTestRecord("tx-3", 3, ir.TxStatusOK),
		createTestRecord("tx-4", 4, ir.TxStatusFailed),
	}
	recs[2].Payer = testKey(2)
	recs[3].Payer = testKey(2)
	recs[3].MaxHeight = 5
	for _, rec := range recs {
		if err := s.CommitTransaction(ctx, rec, nil); err != nil {
			t.Fatalf("CommitTransaction(%s) failed: %v", rec.ID, err)
		}
	}

	tests := []struct {
		name  string
		query txquery.Query
		want  []string
	}{
		{"failed", txquery.Where(txquery.Equals{Field: txquery.FieldStatus, Value: ir.TxStatusFailed}), []string{"tx-2", "tx-4"}},
		{"payer", txquery.Where(txquery.Equals{Field: txquery.FieldPayer, Value: testKey(2)}), []string{"tx-3", "tx-4"}},
		{"payer and status", txquery.Where(
			txquery.Equals{Field: txquery.FieldPayer, Value: testKey(1)},
			txquery.Equals{Field: txquery.FieldStatus, Value: ir.TxStatusOK},
		), []string{"tx-1"}},
		{"height", txquery.Where(txquery.AtLeast{Field: txquery.FieldMaxHeight, Value: 5}), []string{"tx-4"}},
		{"limit", txquery.Query{Limit: 2}, []string{"tx-1", "tx-2"}},
		{"none", txquery.Where(txquery.Equals{Field: txquery.FieldID, Value: "missing"}), []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.QueryTransactions(ctx, tt.query)
			if err != nil {
				t.Fatalf("QueryTransactions() failed: %v", err)
			}
			ids := []string{}
			for _, rec := range got {
				ids = append(ids, rec.ID)
			}
			if fmt.Sprint(ids) != fmt.Sprint(tt.want) {
				t.Errorf("ids = %v, want %v", ids, tt.want)
			}
		})
	}

	if _, err := s.QueryTransactions(ctx, txquery.Where(txquery.Equals{Field: "lamports", Value: "1"})); err == nil {
		t.Error("QueryTransactions() with unknown field succeeded")
	}
}

func TestLastSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.LastSeq(ctx)
	if err != nil {
		t.Fatalf("LastSeq() failed: %v", err)
	}
	if seq != 0 {
		t.Errorf("empty store LastSeq = %d, want 0", seq)
	}

	for _, n := range []int64{5, 9, 7} {
		if err := s.CommitTransaction(ctx, createTestRecord(fmt.Sprintf("tx-%d", n), n, ir.TxStatusOK), nil); err != nil {
			t.Fatalf("CommitTransaction() failed: %v", err)
		}
	}

	seq, err = s.LastSeq(ctx)
	if err != nil {
		t.Fatalf("LastSeq() failed: %v", err)
	}
	if seq != 9 {
		t.Errorf("LastSeq = %d, want 9", seq)
	}
}
