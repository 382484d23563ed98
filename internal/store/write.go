package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/stepper/internal/ir"
)

// ErrDuplicateTransaction is returned when a transaction ID or seq is
// already recorded.
var ErrDuplicateTransaction = errors.New("transaction already recorded")

// CommitTransaction records rec and writes every account in accounts in a
// single SQL transaction. Either everything lands or nothing does.
//
// Accounts with zero lamports are deleted rather than stored. Logs and
// frames are written in slice order; their index is the slice position.
//
// A failed transaction is committed with accounts == nil so its record,
// logs and frames are kept for inspection.
func (s *Store) CommitTransaction(ctx context.Context, rec ir.TxRecord, accounts []ir.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit transaction: begin tx: %w", err)
	}
	defer tx.Rollback()

	var returnData any
	if rec.ReturnData != nil {
		returnData = rec.ReturnData
	}
	var returnProgram string
	if !rec.ReturnProgram.IsZero() || rec.ReturnData != nil {
		returnProgram = rec.ReturnProgram.String()
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO transactions
		(id, seq, payer, status, error, return_program, return_data, max_height, engine_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		rec.ID,
		rec.Seq,
		rec.Payer.String(),
		rec.Status,
		rec.Error,
		returnProgram,
		returnData,
		rec.MaxHeight,
		rec.EngineVersion,
	)
	if err != nil {
		return fmt.Errorf("commit transaction: insert record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("commit transaction: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("commit transaction %s: %w", rec.ID, ErrDuplicateTransaction)
	}

	for i, line := range rec.Logs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tx_logs (tx_id, idx, line) VALUES (?, ?, ?)
		`, rec.ID, i, line); err != nil {
			return fmt.Errorf("commit transaction: insert log %d: %w", i, err)
		}
	}

	for _, f := range rec.Frames {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tx_frames (tx_id, ordinal, program_id, height, status, error)
			VALUES (?, ?, ?, ?, ?, ?)
		`, rec.ID, f.Ordinal, f.ProgramID.String(), f.Height, f.Status, f.Error); err != nil {
			return fmt.Errorf("commit transaction: insert frame %d: %w", f.Ordinal, err)
		}
	}

	for _, acct := range accounts {
		if err := putAccount(ctx, tx, acct, rec.Seq); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: commit: %w", err)
	}
	return nil
}

// Airdrop credits lamports to key outside any transaction. A missing
// account is created owned by the system program with empty data.
func (s *Store) Airdrop(ctx context.Context, key ir.Pubkey, lamports uint64) (ir.Account, error) {
	if lamports == 0 {
		return ir.Account{}, fmt.Errorf("airdrop: lamports must be positive")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ir.Account{}, fmt.Errorf("airdrop: begin tx: %w", err)
	}
	defer tx.Rollback()

	acct, found, err := getAccount(ctx, tx, key)
	if err != nil {
		return ir.Account{}, fmt.Errorf("airdrop: %w", err)
	}
	if !found {
		acct = ir.NewEmptyAccount(key)
	}
	if acct.Lamports+lamports < acct.Lamports {
		return ir.Account{}, fmt.Errorf("airdrop: balance of %s would overflow", key)
	}
	acct.Lamports += lamports

	var seq int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM transactions`).Scan(&seq); err != nil {
		return ir.Account{}, fmt.Errorf("airdrop: read seq: %w", err)
	}
	if err := putAccount(ctx, tx, acct, seq); err != nil {
		return ir.Account{}, fmt.Errorf("airdrop: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return ir.Account{}, fmt.Errorf("airdrop: commit: %w", err)
	}
	return acct, nil
}

// PutAccount writes acct directly. Intended for fixtures that need a record
// no program would produce.
func (s *Store) PutAccount(ctx context.Context, acct ir.Account) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put account: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := putAccount(ctx, tx, acct, 0); err != nil {
		return fmt.Errorf("put account: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put account: commit: %w", err)
	}
	return nil
}

// putAccount upserts acct, or deletes it when its balance is zero.
func putAccount(ctx context.Context, tx *sql.Tx, acct ir.Account, seq int64) error {
	if acct.Lamports == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE pubkey = ?`, acct.Key.String()); err != nil {
			return fmt.Errorf("delete account %s: %w", acct.Key, err)
		}
		return nil
	}

	data := acct.Data
	if data == nil {
		data = []byte{}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO accounts (pubkey, lamports, owner, data, updated_seq)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(pubkey) DO UPDATE SET
			lamports = excluded.lamports,
			owner = excluded.owner,
			data = excluded.data,
			updated_seq = excluded.updated_seq
	`,
		acct.Key.String(),
		int64(acct.Lamports),
		acct.Owner.String(),
		data,
		seq,
	)
	if err != nil {
		return fmt.Errorf("write account %s: %w", acct.Key, err)
	}
	return nil
}
