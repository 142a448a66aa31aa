// settlement.go - Token movements that realize an accepted update.

package shielder

import (
	"context"
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// FungibleToken is the external token contract, invoked with the pool as caller.
type FungibleToken interface {
	// Transfer moves amount from the pool to to.
	Transfer(ctx context.Context, to Scalar, amount *uint256.Int) error
	// TransferFrom moves amount from from to to, spending from's allowance to the pool.
	TransferFrom(ctx context.Context, from, to Scalar, amount *uint256.Int) error
	BalanceOf(ctx context.Context, who Scalar) (*uint256.Int, error)
}

// Settlement executes the token calls implied by an operation.
type Settlement struct {
	pool   Scalar
	lookup func(Scalar) (FungibleToken, bool)
}

// NewSettlement returns a coordinator acting for pool, resolving handles with lookup.
func NewSettlement(pool Scalar, lookup func(Scalar) (FungibleToken, bool)) *Settlement {
	return &Settlement{pool: pool, lookup: lookup}
}

// Settle performs, for op, in this order:
//
//	Deposit                 transfer_from(user, pool, amount)
//	Withdraw                transfer(user, amount)
//	DepositWithRelayerFee   transfer_from(user, pool, amount), transfer(relayer, fee) on fee_token
//	WithdrawWithRelayerFee  transfer(relayer, fee) on fee_token, transfer(user, amount)
//
// Zero amounts are skipped. Outgoing transfers are checked against the pool's balances before
// anything moves. A failed fee transfer after a deposit hands the deposit back, so every
// failure up to the last leg leaves the token ledgers as they were. When the last leg of a
// withdrawal fails after the fee has left the pool, the error wraps ErrSettlementIncomplete
// and the caller must keep the spend. Token failures are returned as a *TokenError.
func (s *Settlement) Settle(ctx context.Context, op OpPub) error {
	token, err := s.handle(op.Token)
	if err != nil {
		return err
	}
	var feeToken FungibleToken
	if op.Kind.IsRelayer() && !op.Fee.IsZero() {
		if feeToken, err = s.handle(op.FeeToken); err != nil {
			return err
		}
	}
	if err := s.preflight(ctx, op, token, feeToken); err != nil {
		return err
	}

	switch op.Kind {
	case OpDeposit, OpDepositWithRelayerFee:
		return s.settleDeposit(ctx, op, token, feeToken)
	case OpWithdraw, OpWithdrawWithRelayerFee:
		return s.settleWithdrawal(ctx, op, token, feeToken)
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidOperation, op.Kind)
	}
}

func (s *Settlement) settleDeposit(ctx context.Context, op OpPub, token, feeToken FungibleToken) error {
	if !op.Amount.IsZero() {
		if err := token.TransferFrom(ctx, op.User, s.pool, &op.Amount); err != nil {
			return &TokenError{Token: op.Token, Op: "transfer_from", Err: err}
		}
	}
	if feeToken == nil {
		return nil
	}
	if err := feeToken.Transfer(ctx, op.Relayer, &op.Fee); err != nil {
		if op.Amount.IsZero() {
			return &TokenError{Token: op.FeeToken, Op: "transfer_fee", Err: err}
		}
		if rerr := token.Transfer(ctx, op.User, &op.Amount); rerr != nil {
			return &TokenError{Token: op.FeeToken, Op: "transfer_fee", Err: errors.Join(err, fmt.Errorf("returning deposit: %w", rerr))}
		}
		return &TokenError{Token: op.FeeToken, Op: "transfer_fee", Err: err}
	}
	return nil
}

func (s *Settlement) settleWithdrawal(ctx context.Context, op OpPub, token, feeToken FungibleToken) error {
	paid := false
	if feeToken != nil {
		if err := feeToken.Transfer(ctx, op.Relayer, &op.Fee); err != nil {
			return &TokenError{Token: op.FeeToken, Op: "transfer_fee", Err: err}
		}
		paid = true
	}
	if op.Amount.IsZero() {
		return nil
	}
	if err := token.Transfer(ctx, op.User, &op.Amount); err != nil {
		terr := &TokenError{Token: op.Token, Op: "transfer", Err: err}
		if paid {
			return fmt.Errorf("%w: %w", ErrSettlementIncomplete, terr)
		}
		return terr
	}
	return nil
}

// preflight checks that the pool holds enough of every token it is about to send, counting
// the incoming deposit when it is in the same token.
func (s *Settlement) preflight(ctx context.Context, op OpPub, token, feeToken FungibleToken) error {
	type outflow struct {
		id     Scalar
		handle FungibleToken
		amount uint256.Int
	}
	var outs []outflow
	if op.Kind.IsWithdrawal() && !op.Amount.IsZero() {
		outs = append(outs, outflow{id: op.Token, handle: token, amount: op.Amount})
	}
	if feeToken != nil {
		if len(outs) == 1 && outs[0].id == op.FeeToken {
			outs[0].amount.Add(&outs[0].amount, &op.Fee)
		} else {
			outs = append(outs, outflow{id: op.FeeToken, handle: feeToken, amount: op.Fee})
		}
	}
	for _, out := range outs {
		bal, err := out.handle.BalanceOf(ctx, s.pool)
		if err != nil {
			return &TokenError{Token: out.id, Op: "balance_of", Err: err}
		}
		available := new(uint256.Int).Set(bal)
		if !op.Kind.IsWithdrawal() && out.id == op.Token {
			available.Add(available, &op.Amount)
		}
		if available.Lt(&out.amount) {
			return &TokenError{Token: out.id, Op: "balance_of", Err: ErrPoolBalanceTooLow}
		}
	}
	return nil
}

func (s *Settlement) handle(id Scalar) (FungibleToken, error) {
	t, ok := s.lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTokenIDNotRegistered, id)
	}
	return t, nil
}
