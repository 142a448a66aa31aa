// memory.go - In-memory fungible token ledger.
//
// Memory keeps balances and allowances for one token in process memory, with PSP22-style
// transfer, transfer_from and approve. A Handle binds the ledger to a caller identity and
// satisfies shielder.FungibleToken, so the pool can be wired to it directly.

package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"shielder/internal/shielder"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

type allowanceKey struct {
	owner   shielder.Scalar
	spender shielder.Scalar
}

// Memory is a thread-safe token ledger.
type Memory struct {
	mu         sync.Mutex
	name       string
	balances   map[shielder.Scalar]*uint256.Int
	allowances map[allowanceKey]*uint256.Int
	supply     uint256.Int
}

// NewMemory returns an empty ledger.
func NewMemory(name string) *Memory {
	return &Memory{
		name:       name,
		balances:   make(map[shielder.Scalar]*uint256.Int),
		allowances: make(map[allowanceKey]*uint256.Int),
	}
}

func (m *Memory) Name() string { return m.name }

// Mint credits amount to to.
func (m *Memory) Mint(to shielder.Scalar, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, overflow := new(uint256.Int).AddOverflow(&m.supply, amount); overflow {
		return fmt.Errorf("%s: total supply overflow", m.name)
	}
	m.supply.Add(&m.supply, amount)
	m.credit(to, amount)
	return nil
}

// Approve sets the amount spender may move out of owner's balance.
func (m *Memory) Approve(owner, spender shielder.Scalar, amount *uint256.Int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowances[allowanceKey{owner, spender}] = new(uint256.Int).Set(amount)
}

func (m *Memory) Allowance(owner, spender shielder.Scalar) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.allowances[allowanceKey{owner, spender}]; ok {
		return new(uint256.Int).Set(a)
	}
	return new(uint256.Int)
}

func (m *Memory) BalanceOf(who shielder.Scalar) *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance(who)
}

func (m *Memory) TotalSupply() *uint256.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return new(uint256.Int).Set(&m.supply)
}

// TransferAs moves amount from caller to to.
func (m *Memory) TransferAs(caller, to shielder.Scalar, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.move(caller, to, amount)
}

// TransferFromAs moves amount from from to to, spending from's allowance to caller.
func (m *Memory) TransferFromAs(caller, from, to shielder.Scalar, amount *uint256.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := allowanceKey{from, caller}
	allowance, ok := m.allowances[key]
	if !ok || allowance.Lt(amount) {
		return fmt.Errorf("%s: %w: %s may not move %s from %s", m.name, ErrInsufficientAllowance, caller, amount.Dec(), from)
	}
	if err := m.move(from, to, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	return nil
}

func (m *Memory) move(from, to shielder.Scalar, amount *uint256.Int) error {
	bal := m.balance(from)
	if bal.Lt(amount) {
		return fmt.Errorf("%s: %w: %s holds %s, needs %s", m.name, ErrInsufficientBalance, from, bal.Dec(), amount.Dec())
	}
	m.balances[from] = bal.Sub(bal, amount)
	m.credit(to, amount)
	return nil
}

func (m *Memory) credit(to shielder.Scalar, amount *uint256.Int) {
	bal := m.balance(to)
	m.balances[to] = bal.Add(bal, amount)
}

func (m *Memory) balance(who shielder.Scalar) *uint256.Int {
	if b, ok := m.balances[who]; ok {
		return new(uint256.Int).Set(b)
	}
	return new(uint256.Int)
}

// Handle returns a view of m acting as caller.
func (m *Memory) Handle(caller shielder.Scalar) *Handle {
	return &Handle{ledger: m, caller: caller}
}

// Handle is a Memory ledger bound to a caller identity.
type Handle struct {
	ledger *Memory
	caller shielder.Scalar
}

var _ shielder.FungibleToken = (*Handle)(nil)

func (h *Handle) Transfer(_ context.Context, to shielder.Scalar, amount *uint256.Int) error {
	return h.ledger.TransferAs(h.caller, to, amount)
}

func (h *Handle) TransferFrom(_ context.Context, from, to shielder.Scalar, amount *uint256.Int) error {
	return h.ledger.TransferFromAs(h.caller, from, to, amount)
}

func (h *Handle) BalanceOf(_ context.Context, who shielder.Scalar) (*uint256.Int, error) {
	return h.ledger.BalanceOf(who), nil
}
