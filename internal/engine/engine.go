package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/stepper/internal/ir"
	"github.com/roach88/stepper/internal/store"
)

// TxIDGenerator generates unique transaction ids.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type TxIDGenerator interface {
	Generate() string
}

// DefaultMaxDepth is the default maximum invoke stack height: one top-level
// call plus four nested invocations.
const DefaultMaxDepth = 5

// Engine executes transactions one at a time against the store.
//
// Thread-safety model:
//   - Submit(): safe from any goroutine
//   - Execute(): safe from any goroutine; serialized with Run's processing
//   - Run(): must be called from exactly one goroutine
//   - Register(): call before executing transactions
type Engine struct {
	store    *store.Store
	clock    SeqClock
	programs map[ir.Pubkey]Program
	queue    *txQueue
	txGen    TxIDGenerator
	maxDepth int
	metrics  *Metrics
	logger   *slog.Logger

	// clockSynced is set once the clock has caught up with the store.
	clockSynced bool

	mu sync.Mutex // single writer
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithMaxDepth sets the maximum invoke stack height.
//
// Default: 5 (DefaultMaxDepth)
// Use WithMaxDepth(6) to let a five-step chain finish in one transaction.
func WithMaxDepth(maxDepth int) Option {
	return func(e *Engine) {
		e.maxDepth = maxDepth
	}
}

// WithClock replaces the logical clock. The engine will not resume it
// from the store.
func WithClock(c SeqClock) Option {
	return func(e *Engine) {
		e.clock = c
		e.clockSynced = true
	}
}

// WithTxIDGenerator replaces the UUIDv7 id generator.
func WithTxIDGenerator(g TxIDGenerator) Option {
	return func(e *Engine) {
		e.txGen = g
	}
}

// WithMetrics attaches metrics collectors.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine over the given store.
func New(s *store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		clock:    NewClock(),
		programs: make(map[ir.Pubkey]Program),
		queue:    newTxQueue(),
		txGen:    UUIDv7Generator{},
		maxDepth: DefaultMaxDepth,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}
	if e.metrics == nil {
		e.metrics = NewMetrics(nil)
	}

	return e
}

// Register makes p callable under id.
func (e *Engine) Register(id ir.Pubkey, p Program) {
	e.programs[id] = p
}

// MaxDepth returns the configured stack height ceiling.
func (e *Engine) MaxDepth() int {
	return e.maxDepth
}

// Receipt is the outcome of one transaction.
type Receipt struct {
	TxID          string
	Seq           int64
	Status        string
	Err           error
	Logs          []string
	ReturnProgram ir.Pubkey
	ReturnData    []byte
	MaxHeight     int
	Frames        []ir.FrameRecord
}

// OK reports whether the transaction committed.
func (r *Receipt) OK() bool {
	return r.Status == ir.TxStatusOK
}

// txn is the working set of one transaction. Accounts are loaded lazily
// from the store and only written back if the transaction succeeds.
type txn struct {
	engine        *Engine
	accounts      map[ir.Pubkey]*ir.Account
	loaded        map[ir.Pubkey]ir.Account
	logs          []string
	frames        []ir.FrameRecord
	maxHeight     int
	returnProgram ir.Pubkey
	returnData    []byte
}

func (t *txn) log(line string) {
	t.logs = append(t.logs, line)
}

// account returns the shared record for key, loading it on first use.
func (t *txn) account(ctx context.Context, key ir.Pubkey) (*ir.Account, error) {
	if acct, ok := t.accounts[key]; ok {
		return acct, nil
	}
	stored, found, err := t.engine.store.GetAccount(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", key, err)
	}
	if !found {
		stored = ir.NewEmptyAccount(key)
	}
	t.loaded[key] = stored.Clone()
	t.accounts[key] = &stored
	return &stored, nil
}

// dirty returns the accounts that changed, in key order.
func (t *txn) dirty() []ir.Account {
	var out []ir.Account
	for key, acct := range t.accounts {
		orig := t.loaded[key]
		if orig.Lamports == acct.Lamports && orig.Owner == acct.Owner && string(orig.Data) == string(acct.Data) {
			continue
		}
		out = append(out, acct.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Compare(out[j].Key) < 0 })
	return out
}

// Execute runs tx to completion and persists the outcome.
//
// A transaction either commits every account change it made or none of
// them. The returned error is the transaction failure, if any; the receipt
// is returned in both cases. Store failures are returned with a nil receipt.
func (e *Engine) Execute(ctx context.Context, tx *Transaction) (*Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.syncClock(ctx); err != nil {
		return nil, err
	}
	if tx.ID == "" {
		tx.ID = e.txGen.Generate()
	}
	seq := e.clock.Next()

	t := &txn{
		engine:   e,
		accounts: make(map[ir.Pubkey]*ir.Account),
		loaded:   make(map[ir.Pubkey]ir.Account),
	}

	e.logger.Debug("executing transaction",
		"tx", tx.ID,
		"seq", seq,
		"payer", tx.Payer,
		"instructions", len(tx.Instructions),
	)

	txErr := e.run(ctx, t, tx)

	rec := ir.TxRecord{
		ID:            tx.ID,
		Seq:           seq,
		Payer:         tx.Payer,
		Status:        ir.TxStatusOK,
		ReturnProgram: t.returnProgram,
		ReturnData:    t.returnData,
		MaxHeight:     t.maxHeight,
		EngineVersion: ir.EngineVersion,
		Logs:          t.logs,
		Frames:        t.frames,
	}

	var changes []ir.Account
	if txErr != nil {
		rec.Status = ir.TxStatusFailed
		rec.Error = txErr.Error()
		rec.ReturnData = nil
		rec.ReturnProgram = ir.Pubkey{}
	} else {
		changes = t.dirty()
	}

	if err := e.store.CommitTransaction(ctx, rec, changes); err != nil {
		return nil, fmt.Errorf("commit transaction %s: %w", tx.ID, err)
	}

	e.metrics.observe(rec)

	if txErr != nil {
		e.logger.Info("transaction failed",
			"tx", tx.ID,
			"seq", seq,
			"max_height", t.maxHeight,
			"error", txErr,
		)
	} else {
		e.logger.Info("transaction committed",
			"tx", tx.ID,
			"seq", seq,
			"max_height", t.maxHeight,
			"accounts_written", len(changes),
		)
	}

	return &Receipt{
		TxID:          tx.ID,
		Seq:           seq,
		Status:        rec.Status,
		Err:           txErr,
		Logs:          rec.Logs,
		ReturnProgram: rec.ReturnProgram,
		ReturnData:    rec.ReturnData,
		MaxHeight:     rec.MaxHeight,
		Frames:        rec.Frames,
	}, txErr
}

func (e *Engine) run(ctx context.Context, t *txn, tx *Transaction) error {
	if err := tx.verifySignatures(); err != nil {
		return err
	}
	for i, ix := range tx.Instructions {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.processInstruction(ctx, t, ix, 1); err != nil {
			return &InstructionError{Index: i, ProgramID: ix.ProgramID, Err: err}
		}
	}
	return nil
}

// processInstruction runs one frame at the given stack height.
func (e *Engine) processInstruction(ctx context.Context, t *txn, ix ir.Instruction, height int) error {
	if height > e.maxDepth {
		e.metrics.DepthExceeded.Inc()
		t.log(fmt.Sprintf("Program %s invoke [%d] rejected: max stack height %d", ix.ProgramID, height, e.maxDepth))
		return &DepthExceededError{ProgramID: ix.ProgramID, Height: height, Limit: e.maxDepth}
	}
	prog, ok := e.programs[ix.ProgramID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, ix.ProgramID)
	}

	ic := &InvokeContext{
		ctx:       ctx,
		tx:        t,
		programID: ix.ProgramID,
		height:    height,
		pre:       make(map[ir.Pubkey]snapshot, len(ix.Accounts)),
	}
	for _, m := range ix.Accounts {
		acct, err := t.account(ctx, m.Pubkey)
		if err != nil {
			return err
		}
		ic.accounts = append(ic.accounts, &AccountInfo{
			Key:        m.Pubkey,
			IsSigner:   m.IsSigner,
			IsWritable: m.IsWritable,
			acct:       acct,
		})
		snap, seen := ic.pre[m.Pubkey]
		if !seen {
			snap.acct = acct.Clone()
		}
		snap.writable = snap.writable || m.IsWritable
		ic.pre[m.Pubkey] = snap
	}

	if height > t.maxHeight {
		t.maxHeight = height
	}
	ordinal := len(t.frames)
	t.frames = append(t.frames, ir.FrameRecord{Ordinal: ordinal, ProgramID: ix.ProgramID, Height: height})
	e.metrics.Invocations.WithLabelValues(fmt.Sprintf("%d", height)).Inc()
	t.log(fmt.Sprintf("Program %s invoke [%d]", ix.ProgramID, height))

	err := prog.Process(ic, ix.Data)
	if err == nil {
		err = ic.verify()
	}
	if err != nil {
		t.frames[ordinal].Status = ir.TxStatusFailed
		t.frames[ordinal].Error = err.Error()
		t.log(fmt.Sprintf("Program %s failed: %v", ix.ProgramID, err))
		return err
	}

	t.frames[ordinal].Status = ir.TxStatusOK
	t.log(fmt.Sprintf("Program %s success", ix.ProgramID))
	return nil
}

// Submit enqueues tx for the Run loop and waits for its receipt.
// Returns ErrStopped if the engine is no longer accepting transactions.
func (e *Engine) Submit(ctx context.Context, tx *Transaction) (*Receipt, error) {
	req := &txRequest{ctx: ctx, tx: tx, done: make(chan txResult, 1)}
	if !e.queue.Enqueue(req) {
		return nil, ErrStopped
	}
	select {
	case res := <-req.done:
		return res.receipt, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// ErrStopped is returned by Submit after Stop or Run's return.
var ErrStopped = errors.New("engine stopped")

// Run processes submitted transactions one at a time until ctx is
// cancelled or Stop() is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (e *Engine) Run(ctx context.Context) error {
	e.logger.Info("engine starting", "max_depth", e.maxDepth)

	for {
		req, ok := e.queue.TryDequeue()
		if ok {
			receipt, err := e.Execute(req.ctx, req.tx)
			req.done <- txResult{receipt: receipt, err: err}
			continue
		}

		select {
		case <-ctx.Done():
			e.logger.Info("engine stopping: context cancelled")
			e.queue.Close()
			e.drain()
			return ctx.Err()

		case <-e.queue.Wait():
			if e.queue.Closed() && e.queue.Len() == 0 {
				e.logger.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// drain fails every request still queued after shutdown.
func (e *Engine) drain() {
	for {
		req, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		req.done <- txResult{err: ErrStopped}
	}
}

// Stop gracefully shuts down the engine.
// Closes the queue, which will cause Run() to return once it is drained.
func (e *Engine) Stop() {
	e.queue.Close()
}
