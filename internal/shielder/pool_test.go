package shielder_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shielder/internal/shielder"
	"shielder/internal/token"
)

var (
	owner    = shielder.NewScalar(0x0e)
	poolAddr = shielder.NewScalar(0x9001)
	alice    = shielder.NewScalar(0xa11ce)
	bob      = shielder.NewScalar(0xb0b)
	relayer  = shielder.NewScalar(0x4e1a7)
	tokenA   = shielder.NewScalar(0)
	tokenB   = shielder.NewScalar(1)
	tokens   = [shielder.TokenSlots]shielder.Scalar{tokenA, tokenB}
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

type recorder struct {
	mu      sync.Mutex
	events  []shielder.Event
	ctxErrs []error
}

func (r *recorder) Publish(ctx context.Context, ev shielder.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return ctx.Err()
}

func (r *recorder) kinds() []shielder.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]shielder.EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

var errFrozen = errors.New("outgoing transfers frozen")

// gate forwards to a ledger handle and refuses the pool's outgoing transfers while frozen.
type gate struct {
	shielder.FungibleToken
	frozen bool
}

func (g *gate) Transfer(ctx context.Context, to shielder.Scalar, amount *uint256.Int) error {
	if g.frozen {
		return errFrozen
	}
	return g.FungibleToken.Transfer(ctx, to, amount)
}

type harness struct {
	pool    *shielder.Pool
	ledgers map[shielder.Scalar]*token.Memory
	gates   map[shielder.Scalar]*gate
	events  *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{ledgers: make(map[shielder.Scalar]*token.Memory), gates: make(map[shielder.Scalar]*gate), events: &recorder{}}
	h.pool = shielder.NewPool(shielder.NewPoolState(owner, poolAddr), shielder.NativeBackend{}, shielder.WithEventSink(h.events))
	for i, id := range tokens {
		ledger := token.NewMemory([]string{"AAA", "BBB"}[i])
		for _, holder := range []shielder.Scalar{alice, bob} {
			require.NoError(t, ledger.Mint(holder, u(100)))
			ledger.Approve(holder, poolAddr, u(1000))
		}
		g := &gate{FungibleToken: ledger.Handle(poolAddr)}
		require.NoError(t, h.pool.RegisterToken(context.Background(), owner, id, g))
		h.ledgers[id] = ledger
		h.gates[id] = g
	}
	return h
}

func (h *harness) balance(id, who shielder.Scalar) uint64 {
	return h.ledgers[id].BalanceOf(who).Uint64()
}

// note is the client-side view of one registered note.
type note struct {
	user    shielder.Scalar
	id      shielder.Scalar
	secrets shielder.NoteSecrets
	account shielder.Account
	leaf    uint32
}

func (h *harness) register(t *testing.T, user shielder.Scalar) *note {
	t.Helper()
	id, err := shielder.RandomScalar()
	require.NoError(t, err)
	secrets, err := shielder.NewNoteSecrets()
	require.NoError(t, err)
	acc := shielder.NewAccount(tokens)
	st := shielder.CreationStatement{NewNote: shielder.NewNote(id, secrets, acc).Commitment(), Tokens: tokens}
	proof, err := shielder.NativeBackend{}.ProveCreation(st, shielder.CreationWitness{ID: id, Trapdoor: secrets.Trapdoor, Nullifier: secrets.Nullifier})
	require.NoError(t, err)
	leaf, err := h.pool.Register(context.Background(), st, proof.Data)
	require.NoError(t, err)
	return &note{user: user, id: id, secrets: secrets, account: acc, leaf: leaf}
}

type pendingUpdate struct {
	st      shielder.UpdateStatement
	proof   []byte
	secrets shielder.NoteSecrets
	account shielder.Account
}

func (h *harness) prepare(t *testing.T, n *note, op shielder.OpPub) *pendingUpdate {
	t.Helper()
	next, err := shielder.NewNoteSecrets()
	require.NoError(t, err)
	acc, err := n.account.Apply(shielder.Operation{Pub: op, Priv: shielder.OpPriv{User: n.user}})
	require.NoError(t, err)
	path, ok := h.pool.MerklePath(n.leaf)
	require.True(t, ok)
	st := shielder.UpdateStatement{
		Op:           op,
		NewNote:      shielder.NewNote(n.id, next, acc).Commitment(),
		MerkleRoot:   h.pool.CurrentRoot(),
		OldNullifier: n.secrets.Nullifier,
	}
	w := shielder.UpdateWitness{
		ID:           n.id,
		OldTrapdoor:  n.secrets.Trapdoor,
		NewTrapdoor:  next.Trapdoor,
		NewNullifier: next.Nullifier,
		OldAccount:   n.account,
		OpPriv:       shielder.OpPriv{User: n.user},
		Path:         path,
		LeafIndex:    n.leaf,
	}
	proof, err := shielder.NativeBackend{}.ProveUpdate(st, w)
	require.NoError(t, err)
	return &pendingUpdate{st: st, proof: proof.Data, secrets: next, account: acc}
}

func (h *harness) submit(n *note, p *pendingUpdate) error {
	leaf, err := h.pool.Update(context.Background(), p.st, p.proof)
	if err != nil {
		return err
	}
	n.secrets, n.account, n.leaf = p.secrets, p.account, leaf
	return nil
}

// view is the pool's persisted state: tree, roots log, nullifiers and registered tokens.
func (h *harness) view(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, h.pool.SaveToFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestPoolDepositWithdrawScenario(t *testing.T) {
	h := newHarness(t)
	n := h.register(t, alice)

	require.NoError(t, h.submit(n, h.prepare(t, n, shielder.Deposit(u(10), tokenA, alice))))
	assert.Equal(t, uint64(90), h.balance(tokenA, alice))
	assert.Equal(t, uint64(10), h.balance(tokenA, poolAddr))

	withdraw := h.prepare(t, n, shielder.Withdraw(u(4), tokenA, alice))
	require.NoError(t, h.submit(n, withdraw))
	assert.Equal(t, uint64(94), h.balance(tokenA, alice))
	assert.Equal(t, uint64(6), h.balance(tokenA, poolAddr))
	assert.True(t, h.pool.ContainsNullifier(withdraw.st.OldNullifier))

	before := h.view(t)
	_, err := h.pool.Update(context.Background(), withdraw.st, withdraw.proof)
	require.ErrorIs(t, err, shielder.ErrNullifierAlreadyUsed)
	assert.Equal(t, before, h.view(t))
	assert.Equal(t, uint64(94), h.balance(tokenA, alice))

	bal, ok := n.account.Balance(tokenA)
	require.True(t, ok)
	assert.Equal(t, uint64(6), bal.Uint64())
	assert.Equal(t, []shielder.EventKind{
		shielder.EventTokenRegistered, shielder.EventTokenRegistered,
		shielder.EventNoteRegistered, shielder.EventDeposited, shielder.EventWithdrawn,
	}, h.events.kinds())
}

func TestPoolConservation(t *testing.T) {
	h := newHarness(t)
	notes := []*note{h.register(t, alice), h.register(t, bob)}
	steps := []struct {
		who int
		op  func(user shielder.Scalar) shielder.OpPub
	}{
		{0, func(user shielder.Scalar) shielder.OpPub { return shielder.Deposit(u(30), tokenA, user) }},
		{1, func(user shielder.Scalar) shielder.OpPub { return shielder.Deposit(u(20), tokenB, user) }},
		{0, func(user shielder.Scalar) shielder.OpPub { return shielder.Withdraw(u(7), tokenA, user) }},
		{1, func(user shielder.Scalar) shielder.OpPub { return shielder.Deposit(u(5), tokenA, user) }},
		{1, func(user shielder.Scalar) shielder.OpPub { return shielder.Withdraw(u(20), tokenB, user) }},
		{0, func(user shielder.Scalar) shielder.OpPub { return shielder.Deposit(u(1), tokenB, user) }},
	}
	for _, step := range steps {
		n := notes[step.who]
		require.NoError(t, h.submit(n, h.prepare(t, n, step.op(n.user))))
	}

	for _, id := range tokens {
		var shielded uint64
		for _, n := range notes {
			b, _ := n.account.Balance(id)
			shielded += b.Uint64()
		}
		assert.Equal(t, shielded, h.balance(id, poolAddr), "token %s", id)
		assert.Equal(t, uint64(200), h.balance(id, alice)+h.balance(id, bob)+h.balance(id, poolAddr))
	}
}

func TestPoolAcceptsHistoricalRoot(t *testing.T) {
	h := newHarness(t)
	n := h.register(t, alice)
	p := h.prepare(t, n, shielder.Deposit(u(3), tokenA, alice))

	h.register(t, bob)
	require.NotEqual(t, p.st.MerkleRoot, h.pool.CurrentRoot())
	require.NoError(t, h.submit(n, p))
}

func TestPoolRejectsUnknownRoot(t *testing.T) {
	h := newHarness(t)
	n := h.register(t, alice)
	p := h.prepare(t, n, shielder.Deposit(u(3), tokenA, alice))
	p.st.MerkleRoot = shielder.NewScalar(12345)

	before := h.view(t)
	_, err := h.pool.Update(context.Background(), p.st, p.proof)
	require.ErrorIs(t, err, shielder.ErrUnknownMerkleRoot)
	assert.Equal(t, before, h.view(t))
}

func TestPoolRejectsForgedUpdates(t *testing.T) {
	h := newHarness(t)
	n := h.register(t, alice)
	require.NoError(t, h.submit(n, h.prepare(t, n, shielder.Deposit(u(10), tokenA, alice))))

	p := h.prepare(t, n, shielder.Withdraw(u(4), tokenA, alice))
	p.st.Op = shielder.Withdraw(u(9), tokenA, alice)
	before := h.view(t)
	_, err := h.pool.Update(context.Background(), p.st, p.proof)
	require.ErrorIs(t, err, shielder.ErrVerificationFailed)

	p = h.prepare(t, n, shielder.Withdraw(u(4), tokenA, alice))
	p.st.Op = shielder.Withdraw(u(4), tokenA, bob)
	_, err = h.pool.Update(context.Background(), p.st, p.proof)
	require.ErrorIs(t, err, shielder.ErrUserMismatch)

	assert.Equal(t, before, h.view(t))
	assert.Equal(t, uint64(90), h.balance(tokenA, alice))
}

func TestPoolSettlementFailureReverts(t *testing.T) {
	h := newHarness(t)
	n := h.register(t, alice)
	h.ledgers[tokenA].Approve(alice, poolAddr, u(5))

	p := h.prepare(t, n, shielder.Deposit(u(10), tokenA, alice))
	before := h.view(t)
	_, err := h.pool.Update(context.Background(), p.st, p.proof)
	var tokErr *shielder.TokenError
	require.True(t, errors.As(err, &tokErr))
	assert.ErrorIs(t, err, token.ErrInsufficientAllowance)
	assert.Equal(t, before, h.view(t))
	assert.False(t, h.pool.ContainsNullifier(p.st.OldNullifier))

	h.ledgers[tokenA].Approve(alice, poolAddr, u(10))
	require.NoError(t, h.submit(n, p))
	assert.Equal(t, uint64(10), h.balance(tokenA, poolAddr))
}

func TestPoolRefusedFeeTransferReverts(t *testing.T) {
	h := newHarness(t)
	n := h.register(t, alice)
	require.NoError(t, h.submit(n, h.prepare(t, n, shielder.Deposit(u(10), tokenA, alice))))
	require.NoError(t, h.submit(n, h.prepare(t, n, shielder.Deposit(u(10), tokenB, alice))))

	h.gates[tokenB].frozen = true
	p := h.prepare(t, n, shielder.WithdrawWithRelayerFee(u(5), tokenA, alice, u(1), tokenB, relayer))
	before := h.view(t)
	leaf, err := h.pool.Update(context.Background(), p.st, p.proof)
	var tokErr *shielder.TokenError
	require.True(t, errors.As(err, &tokErr))
	assert.Equal(t, tokenB, tokErr.Token)
	assert.ErrorIs(t, err, errFrozen)
	assert.NotErrorIs(t, err, shielder.ErrSettlementIncomplete)
	assert.Zero(t, leaf)

	assert.Equal(t, before, h.view(t))
	assert.False(t, h.pool.ContainsNullifier(p.st.OldNullifier))
	assert.Equal(t, uint64(90), h.balance(tokenA, alice))
	assert.Equal(t, uint64(10), h.balance(tokenA, poolAddr))
	assert.Equal(t, uint64(0), h.balance(tokenB, relayer))

	// the note is still live and pays out once
	require.NoError(t, h.submit(n, h.prepare(t, n, shielder.Withdraw(u(5), tokenA, alice))))
	_, err = h.pool.Update(context.Background(), p.st, p.proof)
	require.ErrorIs(t, err, shielder.ErrNullifierAlreadyUsed)
	assert.Equal(t, uint64(95), h.balance(tokenA, alice))

	for _, id := range tokens {
		b, _ := n.account.Balance(id)
		assert.Equal(t, b.Uint64(), h.balance(id, poolAddr), "token %s", id)
	}
}

func TestPoolRefusedDepositFeeReturnsDeposit(t *testing.T) {
	h := newHarness(t)
	n := h.register(t, alice)
	require.NoError(t, h.submit(n, h.prepare(t, n, shielder.Deposit(u(10), tokenB, alice))))

	h.gates[tokenB].frozen = true
	p := h.prepare(t, n, shielder.DepositWithRelayerFee(u(6), tokenA, alice, u(1), tokenB, relayer))
	before := h.view(t)
	_, err := h.pool.Update(context.Background(), p.st, p.proof)
	require.ErrorIs(t, err, errFrozen)
	assert.NotErrorIs(t, err, shielder.ErrSettlementIncomplete)

	assert.Equal(t, before, h.view(t))
	assert.Equal(t, uint64(100), h.balance(tokenA, alice))
	assert.Equal(t, uint64(0), h.balance(tokenA, poolAddr))
	assert.Equal(t, uint64(10), h.balance(tokenB, poolAddr))
}

func TestPoolIncompleteSettlementKeepsSpend(t *testing.T) {
	h := newHarness(t)
	n := h.register(t, alice)
	require.NoError(t, h.submit(n, h.prepare(t, n, shielder.Deposit(u(10), tokenA, alice))))
	require.NoError(t, h.submit(n, h.prepare(t, n, shielder.Deposit(u(10), tokenB, alice))))

	h.gates[tokenA].frozen = true
	p := h.prepare(t, n, shielder.WithdrawWithRelayerFee(u(5), tokenA, alice, u(1), tokenB, relayer))
	next := h.pool.NextLeafIndex()
	leaf, err := h.pool.Update(context.Background(), p.st, p.proof)
	require.ErrorIs(t, err, shielder.ErrSettlementIncomplete)
	var tokErr *shielder.TokenError
	require.True(t, errors.As(err, &tokErr))
	assert.Equal(t, tokenA, tokErr.Token)
	assert.Equal(t, next, leaf)

	assert.True(t, h.pool.ContainsNullifier(p.st.OldNullifier))
	assert.Equal(t, uint64(1), h.balance(tokenB, relayer))
	assert.Equal(t, uint64(90), h.balance(tokenA, alice))
	assert.Equal(t, shielder.EventWithdrawn, h.events.kinds()[len(h.events.kinds())-1])

	h.gates[tokenA].frozen = false
	_, err = h.pool.Update(context.Background(), p.st, p.proof)
	require.ErrorIs(t, err, shielder.ErrNullifierAlreadyUsed)
	replay := h.prepare(t, n, shielder.Withdraw(u(10), tokenA, alice))
	_, err = h.pool.Update(context.Background(), replay.st, replay.proof)
	require.ErrorIs(t, err, shielder.ErrNullifierAlreadyUsed)
	assert.Equal(t, uint64(90), h.balance(tokenA, alice))

	// the committed note owns 5 A and 9 B, the pool holds at least that
	n.secrets, n.account, n.leaf = p.secrets, p.account, leaf
	for _, id := range tokens {
		b, _ := n.account.Balance(id)
		assert.GreaterOrEqual(t, h.balance(id, poolAddr), b.Uint64(), "token %s", id)
	}
	require.NoError(t, h.submit(n, h.prepare(t, n, shielder.Withdraw(u(5), tokenA, alice))))
	assert.Equal(t, uint64(95), h.balance(tokenA, alice))
}

func TestPoolRejectsOverdraftProof(t *testing.T) {
	h := newHarness(t)
	n := h.register(t, alice)
	path, ok := h.pool.MerklePath(n.leaf)
	require.True(t, ok)
	next, err := shielder.NewNoteSecrets()
	require.NoError(t, err)

	st := shielder.UpdateStatement{
		Op:           shielder.Withdraw(u(5), tokenA, alice),
		NewNote:      shielder.NewNote(n.id, next, n.account).Commitment(),
		MerkleRoot:   h.pool.CurrentRoot(),
		OldNullifier: n.secrets.Nullifier,
	}
	proof, err := json.Marshal(shielder.UpdateWitness{
		ID:           n.id,
		OldTrapdoor:  n.secrets.Trapdoor,
		NewTrapdoor:  next.Trapdoor,
		NewNullifier: next.Nullifier,
		OldAccount:   n.account,
		OpPriv:       shielder.OpPriv{User: alice},
		Path:         path,
		LeafIndex:    n.leaf,
	})
	require.NoError(t, err)

	before := h.view(t)
	_, err = h.pool.Update(context.Background(), st, proof)
	require.ErrorIs(t, err, shielder.ErrArithmetic)
	assert.Equal(t, before, h.view(t))
	assert.Equal(t, uint64(100), h.balance(tokenA, alice))
	assert.Equal(t, uint64(0), h.balance(tokenA, poolAddr))
}

func TestPoolPublishesCommittedUpdateAfterCancel(t *testing.T) {
	h := newHarness(t)
	n := h.register(t, alice)
	p := h.prepare(t, n, shielder.Deposit(u(3), tokenA, alice))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := h.pool.Update(ctx, p.st, p.proof)
	require.NoError(t, err)

	h.events.mu.Lock()
	defer h.events.mu.Unlock()
	last := len(h.events.events) - 1
	assert.Equal(t, shielder.EventDeposited, h.events.events[last].Kind)
	assert.NoError(t, h.events.ctxErrs[last])
}

func TestPoolWithdrawBeyondPoolBalance(t *testing.T) {
	h := newHarness(t)
	n := h.register(t, alice)
	require.NoError(t, h.submit(n, h.prepare(t, n, shielder.Deposit(u(10), tokenA, alice))))

	// drain the pool behind its back
	require.NoError(t, h.ledgers[tokenA].TransferAs(poolAddr, bob, u(8)))

	p := h.prepare(t, n, shielder.WithdrawWithRelayerFee(u(4), tokenA, alice, u(1), tokenA, relayer))
	before := h.view(t)
	_, err := h.pool.Update(context.Background(), p.st, p.proof)
	require.ErrorIs(t, err, shielder.ErrPoolBalanceTooLow)
	assert.Equal(t, before, h.view(t))
	assert.Equal(t, uint64(2), h.balance(tokenA, poolAddr))
	assert.Equal(t, uint64(0), h.balance(tokenA, relayer))
}

func TestPoolRelayerFees(t *testing.T) {
	h := newHarness(t)
	n := h.register(t, alice)
	require.NoError(t, h.submit(n, h.prepare(t, n, shielder.Deposit(u(10), tokenA, alice))))
	require.NoError(t, h.submit(n, h.prepare(t, n, shielder.Deposit(u(10), tokenB, alice))))

	require.NoError(t, h.submit(n, h.prepare(t, n, shielder.WithdrawWithRelayerFee(u(5), tokenA, alice, u(2), tokenB, relayer))))
	assert.Equal(t, uint64(95), h.balance(tokenA, alice))
	assert.Equal(t, uint64(2), h.balance(tokenB, relayer))
	assert.Equal(t, uint64(8), h.balance(tokenB, poolAddr))

	require.NoError(t, h.submit(n, h.prepare(t, n, shielder.DepositWithRelayerFee(u(6), tokenA, alice, u(1), tokenA, relayer))))
	assert.Equal(t, uint64(1), h.balance(tokenA, relayer))
	assert.Equal(t, uint64(10), h.balance(tokenA, poolAddr))

	b, _ := n.account.Balance(tokenA)
	assert.Equal(t, uint64(10), b.Uint64())
	b, _ = n.account.Balance(tokenB)
	assert.Equal(t, uint64(8), b.Uint64())
}

func TestPoolFeeExceedsAmount(t *testing.T) {
	h := newHarness(t)
	n := h.register(t, alice)
	require.NoError(t, h.submit(n, h.prepare(t, n, shielder.Deposit(u(10), tokenA, alice))))

	p := h.prepare(t, n, shielder.WithdrawWithRelayerFee(u(2), tokenA, alice, u(3), tokenA, relayer))
	_, err := h.pool.Update(context.Background(), p.st, p.proof)
	require.ErrorIs(t, err, shielder.ErrFeeExceedsAmount)
}

func TestPoolRegisterValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.pool.Register(ctx, shielder.CreationStatement{Tokens: [shielder.TokenSlots]shielder.Scalar{tokenA, tokenA}}, nil)
	require.ErrorIs(t, err, shielder.ErrDuplicateToken)

	_, err = h.pool.Register(ctx, shielder.CreationStatement{Tokens: [shielder.TokenSlots]shielder.Scalar{tokenA, shielder.NewScalar(77)}}, nil)
	require.ErrorIs(t, err, shielder.ErrTokenIDNotRegistered)

	_, err = h.pool.Register(ctx, shielder.CreationStatement{NewNote: shielder.NewScalar(1), Tokens: tokens}, []byte(`{}`))
	require.ErrorIs(t, err, shielder.ErrVerificationFailed)
	assert.Equal(t, uint32(0), h.pool.NextLeafIndex())
}

func TestPoolRegisterToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ledger := token.NewMemory("CCC")
	id := shielder.NewScalar(2)

	require.ErrorIs(t, h.pool.RegisterToken(ctx, alice, id, ledger.Handle(poolAddr)), shielder.ErrNotOwner)
	_, ok := h.pool.RegisteredToken(id)
	require.False(t, ok)

	require.NoError(t, h.pool.RegisterToken(ctx, owner, id, ledger.Handle(poolAddr)))
	require.ErrorIs(t, h.pool.RegisterToken(ctx, owner, id, ledger.Handle(poolAddr)), shielder.ErrTokenIDAlreadyRegistered)
	_, ok = h.pool.RegisteredToken(id)
	assert.True(t, ok)
	assert.Equal(t, []shielder.Scalar{tokenA, tokenB, id}, h.pool.RegisteredTokens())
}

func TestPoolConcurrentRegistrations(t *testing.T) {
	h := newHarness(t)
	const workers = 16

	var wg sync.WaitGroup
	leaves := make(chan uint32, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			leaves <- h.register(t, alice).leaf
		}()
	}
	wg.Wait()
	close(leaves)

	seen := make(map[uint32]bool)
	for l := range leaves {
		assert.False(t, seen[l], "leaf %d handed out twice", l)
		seen[l] = true
	}
	assert.Len(t, seen, workers)
	assert.Equal(t, uint32(workers), h.pool.NextLeafIndex())
}

func TestPoolSnapshotRestore(t *testing.T) {
	h := newHarness(t)
	n := h.register(t, alice)
	require.NoError(t, h.submit(n, h.prepare(t, n, shielder.Deposit(u(10), tokenA, alice))))

	path := t.TempDir() + "/pool.json"
	require.NoError(t, h.pool.SaveToFile(path))
	state, err := shielder.LoadStateFromFile(path)
	require.NoError(t, err)

	restored := shielder.NewPool(state, shielder.NativeBackend{})
	for id, ledger := range h.ledgers {
		require.NoError(t, restored.BindToken(id, ledger.Handle(poolAddr)))
	}
	assert.Equal(t, h.pool.CurrentRoot(), restored.CurrentRoot())

	h.pool = restored
	require.NoError(t, h.submit(n, h.prepare(t, n, shielder.Withdraw(u(10), tokenA, alice))))
	assert.Equal(t, uint64(100), h.balance(tokenA, alice))
}
