// pool.go - Pool controller: the serialized entry points of the shielded pool.
//
// Every entry point takes the pool mutex, so transitions are applied in a total order. A
// transition either fully commits (tree, roots log, nullifiers and token movements) or leaves
// the state untouched: the tree and registry mutations of an update are journaled and rolled
// back if settlement fails before any value left the pool. Once a payout has happened the
// spend is kept, and a failing later leg is reported with ErrSettlementIncomplete.

package shielder

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Pool owns a PoolState and a ProvingBackend.
type Pool struct {
	mu         sync.Mutex
	state      *PoolState
	backend    ProvingBackend
	settlement *Settlement
	events     EventSink
	logger     zerolog.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger; the default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Pool) { p.logger = l }
}

// WithEventSink sets where committed transitions are announced.
func WithEventSink(s EventSink) Option {
	return func(p *Pool) { p.events = s }
}

// NewPool returns a controller over state that verifies proofs with backend.
func NewPool(state *PoolState, backend ProvingBackend, opts ...Option) *Pool {
	p := &Pool{
		state:   state,
		backend: backend,
		events:  discardSink{},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.settlement = NewSettlement(state.Address, state.Token)
	return p
}

// Backend returns the proving backend the pool verifies with.
func (p *Pool) Backend() ProvingBackend { return p.backend }

// Register appends the note of a freshly created account over st.Tokens.
func (p *Pool) Register(ctx context.Context, st CreationStatement, proof []byte) (uint32, error) {
	if err := ValidateTokens(st.Tokens); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, t := range st.Tokens {
		if !p.state.IsRegistered(t) {
			return 0, fmt.Errorf("%w: %s", ErrTokenIDNotRegistered, t)
		}
	}
	if err := p.verify(RelationCreation, proof, st.PublicInputs()); err != nil {
		p.logger.Warn().Err(err).Str("note", st.NewNote.String()).Msg("creation proof rejected")
		return 0, err
	}
	leaf, err := p.state.Tree.AddLeaf(st.NewNote)
	if err != nil {
		return 0, err
	}

	root := p.state.Tree.Root()
	p.logger.Info().Uint32("leaf", leaf).Str("note", st.NewNote.String()).Str("root", root.String()).Msg("note registered")
	p.publish(ctx, Event{Kind: EventNoteRegistered, LeafIndex: leaf, Note: st.NewNote, Root: root, Tokens: st.Tokens[:]})
	return leaf, nil
}

// Update spends the note revealing st.OldNullifier, appends st.NewNote and settles st.Op.
// An error wrapping ErrSettlementIncomplete comes with a valid leaf index: the update is
// committed even though a token transfer failed.
func (p *Pool) Update(ctx context.Context, st UpdateStatement, proof []byte) (uint32, error) {
	op := st.Op
	if err := op.Validate(); err != nil {
		return 0, err
	}
	if op.Kind == OpWithdrawWithRelayerFee && op.Fee.Gt(&op.Amount) {
		return 0, fmt.Errorf("%w: fee %s, amount %s", ErrFeeExceedsAmount, op.Fee.Dec(), op.Amount.Dec())
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.state.IsRegistered(op.Token) {
		return 0, fmt.Errorf("%w: %s", ErrTokenIDNotRegistered, op.Token)
	}
	if op.Kind.IsRelayer() && !p.state.IsRegistered(op.FeeToken) {
		return 0, fmt.Errorf("%w: fee token %s", ErrTokenIDNotRegistered, op.FeeToken)
	}
	if !p.state.Tree.IsHistoricalRoot(st.MerkleRoot) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMerkleRoot, st.MerkleRoot)
	}
	if p.state.Nullifiers.Contains(st.OldNullifier) {
		return 0, fmt.Errorf("%w: %s", ErrNullifierAlreadyUsed, st.OldNullifier)
	}
	if err := p.verify(RelationUpdate, proof, st.PublicInputs()); err != nil {
		p.logger.Warn().Err(err).Str("kind", op.Kind.String()).Msg("update proof rejected")
		return 0, err
	}

	j := &journal{}
	leaf, err := p.state.Tree.addLeaf(st.NewNote, j)
	if err != nil {
		return 0, err
	}
	if err := p.state.Nullifiers.insert(st.OldNullifier, j); err != nil {
		j.revert()
		return 0, err
	}
	settleErr := p.settlement.Settle(ctx, op)
	if settleErr != nil && !errors.Is(settleErr, ErrSettlementIncomplete) {
		j.revert()
		p.logger.Error().Err(settleErr).Str("kind", op.Kind.String()).Uint32("leaf", leaf).Msg("settlement failed, transition reverted")
		return 0, settleErr
	}
	if settleErr != nil {
		p.logger.Error().Err(settleErr).Str("kind", op.Kind.String()).Uint32("leaf", leaf).Str("nullifier", st.OldNullifier.String()).Msg("settlement incomplete, spend kept")
	}

	root := p.state.Tree.Root()
	p.logger.Info().
		Uint32("leaf", leaf).
		Str("kind", op.Kind.String()).
		Str("nullifier", st.OldNullifier.String()).
		Str("root", root.String()).
		Msg("note updated")
	kind := EventDeposited
	if op.Kind.IsWithdrawal() {
		kind = EventWithdrawn
	}
	p.publish(ctx, Event{Kind: kind, LeafIndex: leaf, Note: st.NewNote, Root: root, Nullifier: st.OldNullifier, Op: &op, Token: op.Token})
	return leaf, settleErr
}

// RegisterToken binds id to handle. Only the pool owner may call it.
func (p *Pool) RegisterToken(ctx context.Context, caller, id Scalar, handle FungibleToken) error {
	if handle == nil {
		return fmt.Errorf("token %s: nil handle", id)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if caller != p.state.Owner {
		return ErrNotOwner
	}
	if err := p.state.registerToken(id, handle); err != nil {
		return err
	}
	p.logger.Info().Str("token", id.String()).Msg("token registered")
	p.publish(ctx, Event{Kind: EventTokenRegistered, Token: id})
	return nil
}

// BindToken re-attaches a handle to a token id restored from a snapshot.
func (p *Pool) BindToken(id Scalar, handle FungibleToken) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.BindToken(id, handle)
}

func (p *Pool) CurrentRoot() Scalar {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Tree.Root()
}

// MerklePath returns the path of leafIndex, or false if the leaf is not filled yet.
func (p *Pool) MerklePath(leafIndex uint32) (MerklePath, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	path, err := p.state.Tree.Path(leafIndex)
	return path, err == nil
}

// MerklePathWithRoot returns the path of leafIndex together with the root it leads to.
func (p *Pool) MerklePathWithRoot(leafIndex uint32) (MerklePath, Scalar, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	path, err := p.state.Tree.Path(leafIndex)
	return path, p.state.Tree.Root(), err == nil
}

func (p *Pool) ContainsNullifier(n Scalar) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Nullifiers.Contains(n)
}

func (p *Pool) IsHistoricalRoot(root Scalar) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Tree.IsHistoricalRoot(root)
}

// RegisteredToken returns the handle registered under id.
func (p *Pool) RegisteredToken(id Scalar) (FungibleToken, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Token(id)
}

func (p *Pool) RegisteredTokens() []Scalar {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.TokenIDs()
}

// UnboundTokens lists registered ids restored without a handle.
func (p *Pool) UnboundTokens() []Scalar {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.UnboundTokens()
}

func (p *Pool) NextLeafIndex() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Tree.NextLeafIndex()
}

func (p *Pool) NullifierCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.Nullifiers.Len()
}

// Owner returns the account allowed to register tokens.
func (p *Pool) Owner() Scalar { return p.state.Owner }

// Address returns the account the pool holds tokens under.
func (p *Pool) Address() Scalar { return p.state.Address }

// SaveToFile snapshots the pool state to path.
func (p *Pool) SaveToFile(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.SaveToFile(path)
}

// verify runs the backend and folds any failure that is not already one of the typed
// relation errors into ErrVerificationFailed.
func (p *Pool) verify(rel Relation, proof []byte, publicInputs []Scalar) error {
	err := p.backend.Verify(rel, proof, publicInputs)
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrVerificationFailed, ErrUserMismatch, ErrArithmetic, ErrUnknownToken, ErrDuplicateToken, ErrMalformedPublicInputs, ErrInvalidOperation} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", ErrVerificationFailed, err)
}

// publish announces a committed transition, detached from the caller's cancellation.
func (p *Pool) publish(ctx context.Context, ev Event) {
	if err := p.events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		p.logger.Warn().Err(err).Str("event", string(ev.Kind)).Msg("event publish failed")
	}
}
