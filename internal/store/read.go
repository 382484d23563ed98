package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/stepper/internal/ir"
	"github.com/roach88/stepper/internal/txquery"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// GetAccount returns the stored record for key.
// found is false when nothing is stored; the returned Account is then zero.
func (s *Store) GetAccount(ctx context.Context, key ir.Pubkey) (ir.Account, bool, error) {
	return getAccount(ctx, s.db, key)
}

func getAccount(ctx context.Context, q queryer, key ir.Pubkey) (ir.Account, bool, error) {
	row := q.QueryRowContext(ctx, `
		SELECT pubkey, lamports, owner, data
		FROM accounts
		WHERE pubkey = ?
	`, key.String())

	acct, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Account{}, false, nil
	}
	if err != nil {
		return ir.Account{}, false, fmt.Errorf("read account %s: %w", key, err)
	}
	return acct, true, nil
}

// ListAccountsByOwner returns every account owned by owner, ordered by key.
// Returns an empty slice (not nil) if there are none.
func (s *Store) ListAccountsByOwner(ctx context.Context, owner ir.Pubkey) ([]ir.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pubkey, lamports, owner, data
		FROM accounts
		WHERE owner = ?
		ORDER BY pubkey COLLATE BINARY ASC
	`, owner.String())
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	accounts := []ir.Account{}
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return accounts, nil
}

// ReadTransaction retrieves a transaction record with its logs and frames.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadTransaction(ctx context.Context, id string) (ir.TxRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, seq, payer, status, error, return_program, return_data, max_height, engine_version
		FROM transactions
		WHERE id = ?
	`, id)

	rec, err := scanTxRecord(row)
	if err != nil {
		return ir.TxRecord{}, err
	}
	if err := s.fillTxDetail(ctx, &rec); err != nil {
		return ir.TxRecord{}, err
	}
	return rec, nil
}

// ReadTransactions returns up to limit transactions with seq greater than
// afterSeq, in seq order. A non-positive limit means no limit.
func (s *Store) ReadTransactions(ctx context.Context, afterSeq int64, limit int) ([]ir.TxRecord, error) {
	q := txquery.Where(txquery.After{Seq: afterSeq})
	if limit > 0 {
		q = q.WithLimit(limit)
	}
	return s.QueryTransactions(ctx, q)
}

// QueryTransactions returns the transactions matching q, in seq order.
func (s *Store) QueryTransactions(ctx context.Context, q txquery.Query) ([]ir.TxRecord, error) {
	query, params, err := txquery.Compile(q)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}

	records := []ir.TxRecord{}
	for rows.Next() {
		rec, err := scanTxRecord(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	rows.Close()

	// Detail queries run after rows is closed; the pool holds one connection.
	for i := range records {
		if err := s.fillTxDetail(ctx, &records[i]); err != nil {
			return nil, err
		}
	}
	return records, nil
}

// LastSeq returns the highest transaction seq recorded, or 0.
// Used on startup to resume the logical clock.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM transactions
	`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}

func (s *Store) fillTxDetail(ctx context.Context, rec *ir.TxRecord) error {
	logs, err := s.readLogs(ctx, rec.ID)
	if err != nil {
		return err
	}
	frames, err := s.readFrames(ctx, rec.ID)
	if err != nil {
		return err
	}
	rec.Logs = logs
	rec.Frames = frames
	return nil
}

func (s *Store) readLogs(ctx context.Context, txID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT line FROM tx_logs
		WHERE tx_id = ?
		ORDER BY idx ASC
	`, txID)
	if err != nil {
		return nil, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	logs := []string{}
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("scan log: %w", err)
		}
		logs = append(logs, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate logs: %w", err)
	}
	return logs, nil
}

func (s *Store) readFrames(ctx context.Context, txID string) ([]ir.FrameRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, program_id, height, status, error
		FROM tx_frames
		WHERE tx_id = ?
		ORDER BY ordinal ASC
	`, txID)
	if err != nil {
		return nil, fmt.Errorf("query frames: %w", err)
	}
	defer rows.Close()

	frames := []ir.FrameRecord{}
	for rows.Next() {
		var f ir.FrameRecord
		var program string
		if err := rows.Scan(&f.Ordinal, &program, &f.Height, &f.Status, &f.Error); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		if f.ProgramID, err = ir.ParsePubkey(program); err != nil {
			return nil, fmt.Errorf("scan frame: %w", err)
		}
		frames = append(frames, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate frames: %w", err)
	}
	return frames, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(sc scanner) (ir.Account, error) {
	var (
		key, owner string
		lamports   int64
		data       []byte
	)
	if err := sc.Scan(&key, &lamports, &owner, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.Account{}, err
		}
		return ir.Account{}, fmt.Errorf("scan account: %w", err)
	}

	var acct ir.Account
	var err error
	if acct.Key, err = ir.ParsePubkey(key); err != nil {
		return ir.Account{}, fmt.Errorf("scan account key: %w", err)
	}
	if acct.Owner, err = ir.ParsePubkey(owner); err != nil {
		return ir.Account{}, fmt.Errorf("scan account owner: %w", err)
	}
	acct.Lamports = uint64(lamports)
	acct.Data = data
	if acct.Data == nil {
		acct.Data = []byte{}
	}
	return acct, nil
}

func scanTxRecord(sc scanner) (ir.TxRecord, error) {
	var (
		rec           ir.TxRecord
		payer         string
		returnProgram string
		returnData    []byte
	)
	err := sc.Scan(
		&rec.ID,
		&rec.Seq,
		&payer,
		&rec.Status,
		&rec.Error,
		&returnProgram,
		&returnData,
		&rec.MaxHeight,
		&rec.EngineVersion,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ir.TxRecord{}, err
		}
		return ir.TxRecord{}, fmt.Errorf("scan transaction: %w", err)
	}

	if rec.Payer, err = ir.ParsePubkey(payer); err != nil {
		return ir.TxRecord{}, fmt.Errorf("scan transaction payer: %w", err)
	}
	if returnProgram != "" {
		if rec.ReturnProgram, err = ir.ParsePubkey(returnProgram); err != nil {
			return ir.TxRecord{}, fmt.Errorf("scan transaction return program: %w", err)
		}
	}
	rec.ReturnData = returnData
	return rec, nil
}
