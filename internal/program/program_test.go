package program_test

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/stepper/internal/address"
	"github.com/roach88/stepper/internal/alloc"
	"github.com/roach88/stepper/internal/engine"
	"github.com/roach88/stepper/internal/ir"
	"github.com/roach88/stepper/internal/program"
	"github.com/roach88/stepper/internal/state"
	"github.com/roach88/stepper/internal/store"
)

const startingBalance = 10_000_000

type harness struct {
	t      *testing.T
	store  *store.Store
	engine *engine.Engine
}

func newHarness(t *testing.T, opts ...engine.Option) *harness {
	t.Helper()
	s, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	e := engine.New(s, opts...)
	alloc.Register(e)
	program.Register(e, program.New())
	return &harness{t: t, store: s, engine: e}
}

func (h *harness) fund(name string, lamports uint64) (ed25519.PrivateKey, ir.Pubkey) {
	h.t.Helper()
	key := ir.IdentityKey(name)
	pk := ir.PubkeyOf(key)
	_, err := h.store.Airdrop(context.Background(), pk, lamports)
	require.NoError(h.t, err)
	return key, pk
}

func (h *harness) exec(key ed25519.PrivateKey, ix ir.Instruction) (*engine.Receipt, error) {
	h.t.Helper()
	tx := engine.NewTransaction(ir.PubkeyOf(key), ix).Sign(key)
	return h.engine.Execute(context.Background(), tx)
}

func (h *harness) start(key ed25519.PrivateKey, n uint64) (*engine.Receipt, error) {
	h.t.Helper()
	ix, err := program.StartInstruction(program.ID, ir.PubkeyOf(key), n)
	require.NoError(h.t, err)
	return h.exec(key, ix)
}

func (h *harness) resume(key ed25519.PrivateKey) (*engine.Receipt, error) {
	h.t.Helper()
	ix, err := program.ResumeFor(program.ID, ir.PubkeyOf(key))
	require.NoError(h.t, err)
	return h.exec(key, ix)
}

func (h *harness) record(identity ir.Pubkey) (ir.Account, bool) {
	h.t.Helper()
	addr, _, err := address.StateAddress(program.ID, identity)
	require.NoError(h.t, err)
	acct, found, err := h.store.GetAccount(context.Background(), addr)
	require.NoError(h.t, err)
	return acct, found
}

func (h *harness) state(identity ir.Pubkey) state.State {
	h.t.Helper()
	acct, found := h.record(identity)
	require.True(h.t, found, "record for %s not found", identity)
	s, err := state.Decode(acct.Data)
	require.NoError(h.t, err)
	return s
}

func (h *harness) balance(key ir.Pubkey) uint64 {
	h.t.Helper()
	acct, _, err := h.store.GetAccount(context.Background(), key)
	require.NoError(h.t, err)
	return acct.Lamports
}

// seed writes a record directly, bypassing the program.
func (h *harness) seed(identity ir.Pubkey, owner ir.Pubkey, data []byte) {
	h.t.Helper()
	addr, _, err := address.StateAddress(program.ID, identity)
	require.NoError(h.t, err)
	require.NoError(h.t, h.store.PutAccount(context.Background(), ir.Account{
		Key:      addr,
		Lamports: alloc.RentMinimum(state.DataLen),
		Owner:    owner,
		Data:     data,
	}))
}

func programLogs(lines []string) []string {
	var out []string
	for _, l := range lines {
		if msg, ok := strings.CutPrefix(l, "Program log: "); ok {
			out = append(out, msg)
		}
	}
	return out
}

func TestStart_ScenarioTable(t *testing.T) {
	tests := []struct {
		n    uint64
		want state.State
	}{
		{n: 0, want: state.State{A: 0, B: 1, Remaining: 0}},
		{n: 1, want: state.State{A: 1, B: 1, Remaining: 0}},
		{n: 3, want: state.State{A: 2, B: 3, Remaining: 0}},
		{n: 4, want: state.State{A: 3, B: 5, Remaining: 0}},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("n=%d", tt.n), func(t *testing.T) {
			h := newHarness(t)
			key, payer := h.fund("alice", startingBalance)

			receipt, err := h.start(key, tt.n)
			require.NoError(t, err)
			assert.True(t, receipt.OK())

			got := h.state(payer)
			_, bump, err := address.StateAddress(program.ID, payer)
			require.NoError(t, err)
			tt.want.Bump = bump
			assert.Equal(t, tt.want, got)

			acct, _ := h.record(payer)
			assert.Equal(t, program.ID, acct.Owner)
			assert.Equal(t, alloc.RentMinimum(state.DataLen), acct.Lamports)
			assert.Equal(t, uint64(startingBalance)-alloc.RentMinimum(state.DataLen), h.balance(payer))
		})
	}
}

func TestStart_MaxHeight(t *testing.T) {
	// init at height 1, create at 2, then one frame per continuation.
	tests := []struct {
		n    uint64
		want int
	}{
		{0, 2},
		{1, 2},
		{2, 3},
		{4, 5},
	}
	for _, tt := range tests {
		h := newHarness(t)
		key, _ := h.fund("alice", startingBalance)
		receipt, err := h.start(key, tt.n)
		require.NoError(t, err)
		assert.Equal(t, tt.want, receipt.MaxHeight, "n=%d", tt.n)
	}
}

func TestStart_Logs(t *testing.T) {
	h := newHarness(t)
	key, _ := h.fund("alice", startingBalance)

	receipt, err := h.start(key, 3)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"init: a=0 b=1 n=3",
		"step: a=1 b=1 n=2",
		"step: a=1 b=2 n=1",
		"step: a=2 b=3 n=0",
		"done: 3",
	}, programLogs(receipt.Logs))

	assert.Equal(t, "Program "+program.ID.String()+" invoke [1]", receipt.Logs[0])
	assert.Equal(t, "Program "+program.ID.String()+" success", receipt.Logs[len(receipt.Logs)-1])
}

func TestStart_ReturnsFinalValue(t *testing.T) {
	h := newHarness(t)
	key, _ := h.fund("alice", startingBalance)

	receipt, err := h.start(key, 4)
	require.NoError(t, err)

	v, ok := program.ResultValue(receipt.ReturnData)
	require.True(t, ok)
	assert.Equal(t, uint64(5), v)
	assert.Equal(t, program.ID, receipt.ReturnProgram)
}

func TestStart_ZeroStepsSetsNoReturnData(t *testing.T) {
	h := newHarness(t)
	key, _ := h.fund("alice", startingBalance)

	receipt, err := h.start(key, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"init: a=0 b=1 n=0"}, programLogs(receipt.Logs))
	assert.Nil(t, receipt.ReturnData)
}

func TestStart_DepthCeilingRollsBackEverything(t *testing.T) {
	h := newHarness(t)
	key, payer := h.fund("alice", startingBalance)

	receipt, err := h.start(key, 5)
	require.Error(t, err)
	assert.True(t, engine.IsDepthExceeded(err), "got %v", err)
	require.NotNil(t, receipt)
	assert.False(t, receipt.OK())
	assert.Nil(t, receipt.ReturnData)

	_, found := h.record(payer)
	assert.False(t, found, "no record may persist after a depth failure")
	assert.Equal(t, uint64(startingBalance), h.balance(payer))

	// The failure itself is recorded.
	rec, err := h.store.ReadTransaction(context.Background(), receipt.TxID)
	require.NoError(t, err)
	assert.Equal(t, ir.TxStatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "stack height exceeded")
}

func TestStart_ConfigurableCeiling(t *testing.T) {
	h := newHarness(t, engine.WithMaxDepth(6))
	key, payer := h.fund("alice", startingBalance)

	receipt, err := h.start(key, 5)
	require.NoError(t, err)
	assert.Equal(t, 6, receipt.MaxHeight)
	assert.Equal(t, uint64(8), h.state(payer).B)

	shallow := newHarness(t, engine.WithMaxDepth(3))
	alice, _ := shallow.fund("alice", startingBalance)
	bob, _ := shallow.fund("bob", startingBalance)
	_, err = shallow.start(alice, 2)
	assert.NoError(t, err)
	_, err = shallow.start(bob, 3)
	assert.True(t, engine.IsDepthExceeded(err), "got %v", err)
}

func TestStart_WrongRecordAddress(t *testing.T) {
	h := newHarness(t)
	key, payer := h.fund("alice", startingBalance)
	_, bob := h.fund("bob", startingBalance)

	// Alice names Bob's record.
	bobRecord, _, err := address.StateAddress(program.ID, bob)
	require.NoError(t, err)
	ix, err := program.StartInstruction(program.ID, payer, 3)
	require.NoError(t, err)
	ix.Accounts[0].Pubkey = bobRecord

	_, err = h.exec(key, ix)
	assert.True(t, program.IsCode(err, program.ErrCodeInvalidSeeds), "got %v", err)

	_, found, err := h.store.GetAccount(context.Background(), bobRecord)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, uint64(startingBalance), h.balance(payer))
}

func TestStart_WrongSystemProgram(t *testing.T) {
	h := newHarness(t)
	key, payer := h.fund("alice", startingBalance)

	ix, err := program.StartInstruction(program.ID, payer, 1)
	require.NoError(t, err)
	ix.Accounts[2].Pubkey = ir.ProgramIDFromName("impostor")

	_, err = h.exec(key, ix)
	assert.True(t, program.IsCode(err, program.ErrCodeIncorrectSystemProgram), "got %v", err)
	_, found := h.record(payer)
	assert.False(t, found)
}

func TestStart_ShortPayload(t *testing.T) {
	h := newHarness(t)
	key, payer := h.fund("alice", startingBalance)

	ix, err := program.StartInstruction(program.ID, payer, 1)
	require.NoError(t, err)
	ix.Data = ix.Data[:7]

	_, err = h.exec(key, ix)
	assert.True(t, program.IsCode(err, program.ErrCodeInvalidInstructionData), "got %v", err)
}

func TestStart_LongPayloadUsesFirstEightBytes(t *testing.T) {
	h := newHarness(t)
	key, payer := h.fund("alice", startingBalance)

	ix, err := program.StartInstruction(program.ID, payer, 1)
	require.NoError(t, err)
	ix.Data = append(ix.Data, 0xFF, 0xFF)

	_, err = h.exec(key, ix)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), h.state(payer).B)
}

func TestStart_PayerMustSign(t *testing.T) {
	h := newHarness(t)
	key, payer := h.fund("alice", startingBalance)

	ix, err := program.StartInstruction(program.ID, payer, 1)
	require.NoError(t, err)
	ix.Accounts[1].IsSigner = false

	_, err = h.exec(key, ix)
	assert.True(t, program.IsCode(err, program.ErrCodeMissingSignature), "got %v", err)
}

func TestStart_NotEnoughAccounts(t *testing.T) {
	h := newHarness(t)
	key, payer := h.fund("alice", startingBalance)

	ix, err := program.StartInstruction(program.ID, payer, 1)
	require.NoError(t, err)
	ix.Accounts = ix.Accounts[:2]

	_, err = h.exec(key, ix)
	assert.True(t, program.IsCode(err, program.ErrCodeNotEnoughAccounts), "got %v", err)
}

func TestStart_InsufficientFunds(t *testing.T) {
	h := newHarness(t)
	key, payer := h.fund("alice", 1_000)

	_, err := h.start(key, 1)
	assert.True(t, alloc.IsCode(err, alloc.ErrCodeInsufficientFunds), "got %v", err)
	_, found := h.record(payer)
	assert.False(t, found)
	assert.Equal(t, uint64(1_000), h.balance(payer))
}

func TestResume_TerminalIsIdempotent(t *testing.T) {
	h := newHarness(t)
	key, payer := h.fund("alice", startingBalance)

	_, err := h.start(key, 3)
	require.NoError(t, err)
	before := h.state(payer)

	for i := 0; i < 2; i++ {
		receipt, err := h.resume(key)
		require.NoError(t, err)
		assert.Equal(t, []string{"done: 3"}, programLogs(receipt.Logs))
		v, ok := program.ResultValue(receipt.ReturnData)
		require.True(t, ok)
		assert.Equal(t, uint64(3), v)
		assert.Equal(t, before, h.state(payer))
	}
}

func TestResume_SeededPartialRecord(t *testing.T) {
	h := newHarness(t)
	key, payer := h.fund("alice", startingBalance)

	_, bump, err := address.StateAddress(program.ID, payer)
	require.NoError(t, err)
	h.seed(payer, program.ID, state.Encode(state.State{A: 1, B: 2, Remaining: 2, Bump: bump}))

	receipt, err := h.resume(key)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"step: a=2 b=3 n=1",
		"step: a=3 b=5 n=0",
		"done: 5",
	}, programLogs(receipt.Logs))
	assert.Equal(t, state.State{A: 3, B: 5, Remaining: 0, Bump: bump}, h.state(payer))
}

func TestResume_FailedResumeIsRetryable(t *testing.T) {
	h := newHarness(t)
	key, payer := h.fund("alice", startingBalance)

	_, bump, err := address.StateAddress(program.ID, payer)
	require.NoError(t, err)
	seeded := state.State{A: 0, B: 1, Remaining: 6, Bump: bump}
	h.seed(payer, program.ID, state.Encode(seeded))

	// Six frames cannot fit under the ceiling.
	_, err = h.resume(key)
	require.True(t, engine.IsDepthExceeded(err), "got %v", err)
	assert.Equal(t, seeded, h.state(payer))

	// With a deeper ceiling the same record resumes cleanly.
	h.engine = engine.New(h.store, engine.WithMaxDepth(6))
	alloc.Register(h.engine)
	program.Register(h.engine, program.New())
	_, err = h.resume(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(13), h.state(payer).B)
}

func TestResume_Isolation(t *testing.T) {
	h := newHarness(t)
	alice, alicePK := h.fund("alice", startingBalance)
	bob, bobPK := h.fund("bob", startingBalance)

	_, err := h.start(alice, 3)
	require.NoError(t, err)
	aliceState := h.state(alicePK)

	_, err = h.start(bob, 1)
	require.NoError(t, err)

	assert.Equal(t, aliceState, h.state(alicePK))
	assert.Equal(t, uint64(1), h.state(bobPK).B)
	assert.Equal(t, uint64(3), h.state(alicePK).B)

	aliceRecord, _ := h.record(alicePK)
	bobRecord, _ := h.record(bobPK)
	assert.NotEqual(t, aliceRecord.Key, bobRecord.Key)

	_, err = h.resume(bob)
	require.NoError(t, err)
	assert.Equal(t, aliceState, h.state(alicePK))
}

func TestResume_OtherIdentityRejected(t *testing.T) {
	h := newHarness(t)
	_, alicePK := h.fund("alice", startingBalance)
	bob, bobPK := h.fund("bob", startingBalance)

	_, bump, err := address.StateAddress(program.ID, alicePK)
	require.NoError(t, err)
	h.seed(alicePK, program.ID, state.Encode(state.State{A: 0, B: 1, Remaining: 2, Bump: bump}))

	aliceRecord, _ := h.record(alicePK)
	_, err = h.exec(bob, program.ResumeInstruction(program.ID, aliceRecord.Key, bobPK))
	assert.True(t, program.IsCode(err, program.ErrCodeInvalidSeeds), "got %v", err)
	assert.Equal(t, uint64(2), h.state(alicePK).Remaining)
}

func TestResume_IllegalOwner(t *testing.T) {
	h := newHarness(t)
	key, payer := h.fund("alice", startingBalance)
	h.seed(payer, ir.ProgramIDFromName("other"), make([]byte, state.DataLen))

	_, err := h.resume(key)
	assert.True(t, program.IsCode(err, program.ErrCodeIllegalOwner), "got %v", err)
}

func TestResume_DataTooSmall(t *testing.T) {
	h := newHarness(t)
	key, payer := h.fund("alice", startingBalance)
	h.seed(payer, program.ID, make([]byte, 10))

	_, err := h.resume(key)
	assert.True(t, program.IsCode(err, program.ErrCodeDataTooSmall), "got %v", err)
}

func TestResume_Overflow(t *testing.T) {
	h := newHarness(t)
	key, payer := h.fund("alice", startingBalance)

	_, bump, err := address.StateAddress(program.ID, payer)
	require.NoError(t, err)
	seeded := state.State{A: math.MaxUint64, B: 1, Remaining: 1, Bump: bump}
	h.seed(payer, program.ID, state.Encode(seeded))

	_, err = h.resume(key)
	assert.True(t, program.IsCode(err, program.ErrCodeArithmeticOverflow), "got %v", err)
	assert.Equal(t, seeded, h.state(payer))
}

func TestResume_AbsentRecord(t *testing.T) {
	h := newHarness(t)
	key, payer := h.fund("alice", startingBalance)

	_, err := h.resume(key)
	assert.True(t, program.IsCode(err, program.ErrCodeInvalidInstructionData), "got %v", err)
	_, found := h.record(payer)
	assert.False(t, found)
}

func TestStart_OnExistingRecordResumes(t *testing.T) {
	h := newHarness(t)
	key, payer := h.fund("alice", startingBalance)

	_, err := h.start(key, 2)
	require.NoError(t, err)
	balance := h.balance(payer)

	receipt, err := h.start(key, 9)
	require.NoError(t, err)
	assert.Equal(t, []string{"done: 2"}, programLogs(receipt.Logs))
	assert.Equal(t, balance, h.balance(payer), "no second allocation")
}
