// account.go - Account state machine.
//
// An Account is a fixed array of token slots with one balance each. Apply is pure: it returns
// the successor account or an error and never touches pool state. The arithmetic is the net
// per-slot formulation the update circuit constrains: new = old + credit - debit, rejected
// when negative or when it does not fit in MaxBalanceBits.

package shielder

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"
)

// TokenSlots is the number of tokens an account can hold.
const TokenSlots = 2

// Account is the private state carried by a note.
type Account struct {
	Tokens   [TokenSlots]Scalar
	Balances [TokenSlots]uint256.Int
}

// NewAccount returns the fresh zero-balance account over tokens.
func NewAccount(tokens [TokenSlots]Scalar) Account {
	return Account{Tokens: tokens}
}

// ValidateTokens rejects token lists with repeated entries.
func ValidateTokens(tokens [TokenSlots]Scalar) error {
	for i := 0; i < TokenSlots; i++ {
		for j := i + 1; j < TokenSlots; j++ {
			if tokens[i] == tokens[j] {
				return fmt.Errorf("%w: %s", ErrDuplicateToken, tokens[i])
			}
		}
	}
	return nil
}

// Slot returns the slot index holding token.
func (a Account) Slot(token Scalar) (int, bool) {
	for i, t := range a.Tokens {
		if t == token {
			return i, true
		}
	}
	return 0, false
}

// Balance returns the balance of token, or false if the account has no slot for it.
func (a Account) Balance(token Scalar) (*uint256.Int, bool) {
	i, ok := a.Slot(token)
	if !ok {
		return nil, false
	}
	b := a.Balances[i]
	return &b, true
}

// Apply returns the account after op, or ErrUserMismatch, ErrUnknownToken, ErrArithmetic or
// ErrInvalidOperation.
func (a Account) Apply(op Operation) (Account, error) {
	if op.Pub.User != op.Priv.User {
		return Account{}, ErrUserMismatch
	}
	if err := op.Pub.Validate(); err != nil {
		return Account{}, err
	}
	if err := ValidateTokens(a.Tokens); err != nil {
		return Account{}, err
	}

	var credit, debit [TokenSlots]uint256.Int
	slot, ok := a.Slot(op.Pub.Token)
	if !ok {
		return Account{}, fmt.Errorf("%w: %s", ErrUnknownToken, op.Pub.Token)
	}
	switch op.Pub.Kind {
	case OpDeposit, OpDepositWithRelayerFee:
		credit[slot] = op.Pub.Amount
	case OpWithdraw, OpWithdrawWithRelayerFee:
		debit[slot] = op.Pub.Amount
	default:
		return Account{}, fmt.Errorf("%w: unknown kind %d", ErrInvalidOperation, op.Pub.Kind)
	}
	if op.Pub.Kind.IsRelayer() {
		feeSlot, ok := a.Slot(op.Pub.FeeToken)
		if !ok {
			return Account{}, fmt.Errorf("%w: fee token %s", ErrUnknownToken, op.Pub.FeeToken)
		}
		debit[feeSlot].Add(&debit[feeSlot], &op.Pub.Fee)
	}

	next := a
	for i := 0; i < TokenSlots; i++ {
		var bal uint256.Int
		bal.Add(&a.Balances[i], &credit[i])
		if bal.Lt(&debit[i]) {
			return Account{}, fmt.Errorf("%w: insufficient balance in slot %d", ErrArithmetic, i)
		}
		bal.Sub(&bal, &debit[i])
		if bal.BitLen() > MaxBalanceBits {
			return Account{}, fmt.Errorf("%w: balance overflow in slot %d", ErrArithmetic, i)
		}
		next.Balances[i] = bal
	}
	return next, nil
}

type accountJSON struct {
	Tokens   [TokenSlots]Scalar `json:"tokens"`
	Balances [TokenSlots]string `json:"balances"`
}

func (a Account) MarshalJSON() ([]byte, error) {
	v := accountJSON{Tokens: a.Tokens}
	for i := range a.Balances {
		v.Balances[i] = a.Balances[i].Dec()
	}
	return json.Marshal(v)
}

func (a *Account) UnmarshalJSON(data []byte) error {
	var v accountJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	next := Account{Tokens: v.Tokens}
	for i, s := range v.Balances {
		if s == "" {
			continue
		}
		b, err := ParseAmount(s)
		if err != nil {
			return fmt.Errorf("balance %d: %w", i, err)
		}
		next.Balances[i] = *b
	}
	*a = next
	return nil
}
