// errors.go - Error taxonomy of the shielded pool.
//
// Every pool entry point reports failures with one of the sentinel errors below (matched with
// errors.Is) or a *TokenError wrapping a collaborator failure. Apart from
// ErrSettlementIncomplete, no error is ever accompanied by a state mutation.

package shielder

import (
	"errors"
	"fmt"
)

var (
	// ErrCapacityExceeded is returned when the Merkle tree has no free leaf left.
	ErrCapacityExceeded = errors.New("merkle tree capacity exceeded")
	// ErrLeafNotFound is returned for a leaf index that has not been filled yet.
	ErrLeafNotFound = errors.New("merkle leaf not found")
	// ErrNullifierAlreadyUsed reports a double spend.
	ErrNullifierAlreadyUsed = errors.New("nullifier already used")
	// ErrUnknownMerkleRoot is returned when a transition references a root the pool never had.
	ErrUnknownMerkleRoot  = errors.New("unknown merkle root")
	ErrVerificationFailed = errors.New("proof verification failed")
	ErrUserMismatch       = errors.New("private user does not match public user")
	// ErrArithmetic covers balance underflow (insufficient funds) and overflow past 128 bits.
	ErrArithmetic = errors.New("balance arithmetic error")
	// ErrUnknownToken is returned when an operation names a token the account has no slot for.
	ErrUnknownToken             = errors.New("token not supported by account")
	ErrTokenIDNotRegistered     = errors.New("token id not registered")
	ErrTokenIDAlreadyRegistered = errors.New("token id already registered")
	ErrFeeExceedsAmount         = errors.New("relayer fee exceeds amount")
	ErrNotOwner                 = errors.New("caller is not the pool owner")
	ErrDuplicateToken           = errors.New("duplicate token in account")
	ErrInvalidOperation         = errors.New("invalid operation")
	ErrMalformedPublicInputs    = errors.New("malformed public inputs")
	// ErrPoolBalanceTooLow is reported through a *TokenError when the pool cannot pay out.
	ErrPoolBalanceTooLow = errors.New("pool balance too low")
	// ErrSettlementIncomplete accompanies a committed update whose last token transfer failed
	// after an earlier leg had already paid out. The nullifier stays spent.
	ErrSettlementIncomplete = errors.New("settlement incomplete")
)

// TokenError wraps a failure reported by a FungibleToken during settlement.
type TokenError struct {
	Token Scalar
	Op    string
	Err   error
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("token %s: %s failed: %v", e.Token, e.Op, e.Err)
}

func (e *TokenError) Unwrap() error { return e.Err }
