// operation.go - Public and private halves of a balance-changing operation.
//
// OpPub is a closed tagged union over the four operation kinds. The plain variants carry zero
// fee fields. Its field vector is part of the public input of the update relation.

package shielder

import (
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"
)

// MaxBalanceBits bounds every balance, amount and fee.
const MaxBalanceBits = 128

// OpKind enumerates operation variants. Bit 0 marks a withdrawal, bit 1 a relayer-paid variant.
type OpKind uint8

const (
	OpDeposit                OpKind = 0
	OpWithdraw               OpKind = 1
	OpDepositWithRelayerFee  OpKind = 2
	OpWithdrawWithRelayerFee OpKind = 3
)

func (k OpKind) String() string {
	switch k {
	case OpDeposit:
		return "deposit"
	case OpWithdraw:
		return "withdraw"
	case OpDepositWithRelayerFee:
		return "deposit_with_relayer_fee"
	case OpWithdrawWithRelayerFee:
		return "withdraw_with_relayer_fee"
	default:
		return fmt.Sprintf("op_kind(%d)", uint8(k))
	}
}

// Valid reports whether k is one of the four defined kinds.
func (k OpKind) Valid() bool { return k <= OpWithdrawWithRelayerFee }

// IsWithdrawal reports whether value leaves the pool.
func (k OpKind) IsWithdrawal() bool { return k&1 == 1 }

// IsRelayer reports whether a relayer fee is paid.
func (k OpKind) IsRelayer() bool { return k&2 == 2 }

// OpPubFields is the length of OpPub's public-input encoding.
const OpPubFields = 7

// OpPub is the public part of an operation.
type OpPub struct {
	Kind     OpKind
	Amount   uint256.Int
	Token    Scalar
	User     Scalar
	Fee      uint256.Int
	FeeToken Scalar
	Relayer  Scalar
}

func Deposit(amount *uint256.Int, token, user Scalar) OpPub {
	return OpPub{Kind: OpDeposit, Amount: *amount, Token: token, User: user}
}

func Withdraw(amount *uint256.Int, token, user Scalar) OpPub {
	return OpPub{Kind: OpWithdraw, Amount: *amount, Token: token, User: user}
}

func DepositWithRelayerFee(amount *uint256.Int, token, user Scalar, fee *uint256.Int, feeToken, relayer Scalar) OpPub {
	return OpPub{Kind: OpDepositWithRelayerFee, Amount: *amount, Token: token, User: user, Fee: *fee, FeeToken: feeToken, Relayer: relayer}
}

func WithdrawWithRelayerFee(amount *uint256.Int, token, user Scalar, fee *uint256.Int, feeToken, relayer Scalar) OpPub {
	return OpPub{Kind: OpWithdrawWithRelayerFee, Amount: *amount, Token: token, User: user, Fee: *fee, FeeToken: feeToken, Relayer: relayer}
}

// Validate checks the shape of the operation: a known kind, 128-bit amount and fee, and zero
// fee fields on the plain variants.
func (o OpPub) Validate() error {
	if !o.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidOperation, o.Kind)
	}
	if o.Amount.BitLen() > MaxBalanceBits || o.Fee.BitLen() > MaxBalanceBits {
		return fmt.Errorf("%w: amount or fee exceeds %d bits", ErrArithmetic, MaxBalanceBits)
	}
	if !o.Kind.IsRelayer() && (!o.Fee.IsZero() || !o.FeeToken.IsZero() || !o.Relayer.IsZero()) {
		return fmt.Errorf("%w: %s carries relayer fields", ErrInvalidOperation, o.Kind)
	}
	return nil
}

// Fields encodes the operation as [kind, amount, token, user, fee, fee_token, relayer].
func (o OpPub) Fields() [OpPubFields]Scalar {
	return [OpPubFields]Scalar{
		NewScalar(uint64(o.Kind)),
		AmountScalar(&o.Amount),
		o.Token,
		o.User,
		AmountScalar(&o.Fee),
		o.FeeToken,
		o.Relayer,
	}
}

// DecodeOpPub is the inverse of Fields.
func DecodeOpPub(f []Scalar) (OpPub, error) {
	if len(f) != OpPubFields {
		return OpPub{}, fmt.Errorf("%w: operation needs %d fields, got %d", ErrMalformedPublicInputs, OpPubFields, len(f))
	}
	kind := f[0].Uint256()
	if !kind.IsUint64() || kind.Uint64() > uint64(OpWithdrawWithRelayerFee) {
		return OpPub{}, fmt.Errorf("%w: unknown operation kind %s", ErrMalformedPublicInputs, f[0])
	}
	op := OpPub{
		Kind:     OpKind(kind.Uint64()),
		Amount:   *f[1].Uint256(),
		Token:    f[2],
		User:     f[3],
		Fee:      *f[4].Uint256(),
		FeeToken: f[5],
		Relayer:  f[6],
	}
	if err := op.Validate(); err != nil {
		return OpPub{}, fmt.Errorf("%w: %v", ErrMalformedPublicInputs, err)
	}
	return op, nil
}

// OpPriv is the private part of an operation.
type OpPriv struct {
	User Scalar `json:"user"`
}

// Operation pairs both halves after they have been checked to agree.
type Operation struct {
	Pub  OpPub
	Priv OpPriv
}

// CombineOperation joins the two halves, rejecting a private user that differs from the public one.
func CombineOperation(pub OpPub, priv OpPriv) (Operation, error) {
	if pub.User != priv.User {
		return Operation{}, ErrUserMismatch
	}
	return Operation{Pub: pub, Priv: priv}, nil
}

type opPubJSON struct {
	Kind     OpKind `json:"kind"`
	Amount   string `json:"amount"`
	Token    Scalar `json:"token"`
	User     Scalar `json:"user"`
	Fee      string `json:"fee,omitempty"`
	FeeToken Scalar `json:"fee_token"`
	Relayer  Scalar `json:"relayer"`
}

func (o OpPub) MarshalJSON() ([]byte, error) {
	v := opPubJSON{
		Kind:     o.Kind,
		Amount:   o.Amount.Dec(),
		Token:    o.Token,
		User:     o.User,
		FeeToken: o.FeeToken,
		Relayer:  o.Relayer,
	}
	if !o.Fee.IsZero() {
		v.Fee = o.Fee.Dec()
	}
	return json.Marshal(v)
}

func (o *OpPub) UnmarshalJSON(data []byte) error {
	var v opPubJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	amount, err := ParseAmount(v.Amount)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	fee := new(uint256.Int)
	if v.Fee != "" {
		if fee, err = ParseAmount(v.Fee); err != nil {
			return fmt.Errorf("fee: %w", err)
		}
	}
	*o = OpPub{
		Kind:     v.Kind,
		Amount:   *amount,
		Token:    v.Token,
		User:     v.User,
		Fee:      *fee,
		FeeToken: v.FeeToken,
		Relayer:  v.Relayer,
	}
	return nil
}

// ParseAmount parses a decimal amount and enforces the 128-bit bound.
func ParseAmount(s string) (*uint256.Int, error) {
	a, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if a.BitLen() > MaxBalanceBits {
		return nil, fmt.Errorf("%w: amount %s exceeds %d bits", ErrArithmetic, s, MaxBalanceBits)
	}
	return a, nil
}
