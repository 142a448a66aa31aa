package api

import (
	"errors"
	"fmt"
	"net/http"

	"shielder/internal/shielder"
	"shielder/internal/token"
)

// errorCode pairs a sentinel with its wire code and HTTP status.
type errorCode struct {
	err    error
	code   string
	status int
}

// codes is matched in order with errors.Is, so more specific causes of a *TokenError come
// before the generic TOKEN_ERROR handled in codeOf.
var codes = []errorCode{
	{shielder.ErrSettlementIncomplete, "SETTLEMENT_INCOMPLETE", http.StatusBadGateway},
	{shielder.ErrNullifierAlreadyUsed, "NULLIFIER_ALREADY_USED", http.StatusConflict},
	{shielder.ErrUnknownMerkleRoot, "UNKNOWN_MERKLE_ROOT", http.StatusConflict},
	{shielder.ErrCapacityExceeded, "CAPACITY_EXCEEDED", http.StatusInsufficientStorage},
	{shielder.ErrLeafNotFound, "LEAF_NOT_FOUND", http.StatusNotFound},
	{shielder.ErrVerificationFailed, "VERIFICATION_FAILED", http.StatusUnprocessableEntity},
	{shielder.ErrUserMismatch, "USER_MISMATCH", http.StatusUnprocessableEntity},
	{shielder.ErrArithmetic, "ARITHMETIC_ERROR", http.StatusUnprocessableEntity},
	{shielder.ErrUnknownToken, "UNKNOWN_TOKEN", http.StatusUnprocessableEntity},
	{shielder.ErrTokenIDNotRegistered, "TOKEN_ID_NOT_REGISTERED", http.StatusUnprocessableEntity},
	{shielder.ErrTokenIDAlreadyRegistered, "TOKEN_ID_ALREADY_REGISTERED", http.StatusConflict},
	{shielder.ErrFeeExceedsAmount, "FEE_EXCEEDS_AMOUNT", http.StatusUnprocessableEntity},
	{shielder.ErrNotOwner, "NOT_OWNER", http.StatusForbidden},
	{shielder.ErrDuplicateToken, "DUPLICATE_TOKEN", http.StatusUnprocessableEntity},
	{shielder.ErrInvalidOperation, "INVALID_OPERATION", http.StatusBadRequest},
	{shielder.ErrMalformedPublicInputs, "MALFORMED_PUBLIC_INPUTS", http.StatusBadRequest},
	{shielder.ErrPoolBalanceTooLow, "POOL_BALANCE_TOO_LOW", http.StatusUnprocessableEntity},
	{token.ErrInsufficientBalance, "INSUFFICIENT_TOKEN_BALANCE", http.StatusUnprocessableEntity},
	{token.ErrInsufficientAllowance, "INSUFFICIENT_ALLOWANCE", http.StatusUnprocessableEntity},
}

const (
	codeTokenError   = "TOKEN_ERROR"
	codeBadRequest   = "BAD_REQUEST"
	codeUnauthorized = "UNAUTHORIZED"
	codeInternal     = "INTERNAL_ERROR"
)

// errBadRequest marks request decoding failures.
var errBadRequest = errors.New("bad request")

func codeOf(err error) (string, int) {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code, c.status
		}
	}
	var te *shielder.TokenError
	switch {
	case errors.As(err, &te):
		return codeTokenError, http.StatusBadGateway
	case errors.Is(err, errBadRequest):
		return codeBadRequest, http.StatusBadRequest
	}
	return codeInternal, http.StatusInternalServerError
}

// RemoteError is an error reported by the pool daemon. It unwraps to the sentinel its code
// stands for, so errors.Is works across the wire. LeafIndex is set when the transition was
// committed despite the error.
type RemoteError struct {
	Status    int
	Code      string
	Message   string
	LeafIndex *uint32
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("pool: %s (%d): %s", e.Code, e.Status, e.Message)
}

func (e *RemoteError) Unwrap() error {
	for _, c := range codes {
		if c.code == e.Code {
			return c.err
		}
	}
	return nil
}
