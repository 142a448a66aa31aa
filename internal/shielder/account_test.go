package shielder

import (
	"encoding/json"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	tokenA = NewScalar(0)
	tokenB = NewScalar(1)
	alice  = NewScalar(0xa11ce)
	relay  = NewScalar(0x4e1a7)
)

func u(v uint64) *uint256.Int { return uint256.NewInt(v) }

func accountWith(a, b uint64) Account {
	acc := NewAccount([TokenSlots]Scalar{tokenA, tokenB})
	acc.Balances[0] = *u(a)
	acc.Balances[1] = *u(b)
	return acc
}

func balances(acc Account) [TokenSlots]uint64 {
	var out [TokenSlots]uint64
	for i := range acc.Balances {
		out[i] = acc.Balances[i].Uint64()
	}
	return out
}

func TestAccountApply(t *testing.T) {
	max128 := new(uint256.Int).Sub(new(uint256.Int).Lsh(u(1), MaxBalanceBits), u(1))

	tests := []struct {
		name    string
		acc     Account
		op      OpPub
		want    [TokenSlots]uint64
		wantErr error
	}{
		{"deposit", accountWith(0, 0), Deposit(u(10), tokenA, alice), [TokenSlots]uint64{10, 0}, nil},
		{"withdraw", accountWith(10, 0), Withdraw(u(4), tokenA, alice), [TokenSlots]uint64{6, 0}, nil},
		{"withdraw all", accountWith(10, 0), Withdraw(u(10), tokenA, alice), [TokenSlots]uint64{0, 0}, nil},
		{"overdraw", accountWith(3, 0), Withdraw(u(4), tokenA, alice), [TokenSlots]uint64{}, ErrArithmetic},
		{"unknown token", accountWith(3, 0), Deposit(u(1), NewScalar(7), alice), [TokenSlots]uint64{}, ErrUnknownToken},
		{"deposit with fee in other token", accountWith(0, 5), DepositWithRelayerFee(u(10), tokenA, alice, u(2), tokenB, relay), [TokenSlots]uint64{10, 3}, nil},
		{"deposit with fee in same token", accountWith(0, 0), DepositWithRelayerFee(u(10), tokenA, alice, u(2), tokenA, relay), [TokenSlots]uint64{8, 0}, nil},
		{"withdraw with fee in same token", accountWith(10, 0), WithdrawWithRelayerFee(u(7), tokenA, alice, u(3), tokenA, relay), [TokenSlots]uint64{0, 0}, nil},
		{"withdraw with fee overdraws", accountWith(10, 0), WithdrawWithRelayerFee(u(8), tokenA, alice, u(3), tokenA, relay), [TokenSlots]uint64{}, ErrArithmetic},
		{"fee token missing", accountWith(10, 0), WithdrawWithRelayerFee(u(1), tokenA, alice, u(1), NewScalar(9), relay), [TokenSlots]uint64{}, ErrUnknownToken},
		{"fee without balance", accountWith(10, 0), WithdrawWithRelayerFee(u(1), tokenA, alice, u(1), tokenB, relay), [TokenSlots]uint64{}, ErrArithmetic},
		{"plain op with fee", accountWith(10, 0), OpPub{Kind: OpDeposit, Amount: *u(1), Token: tokenA, User: alice, Fee: *u(1)}, [TokenSlots]uint64{}, ErrInvalidOperation},
		{"unknown kind", accountWith(10, 0), OpPub{Kind: 4, Token: tokenA, User: alice}, [TokenSlots]uint64{}, ErrInvalidOperation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.acc.Apply(Operation{Pub: tt.op, Priv: OpPriv{User: tt.op.User}})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, balances(got))
			assert.Equal(t, tt.acc.Tokens, got.Tokens)
		})
	}

	t.Run("overflow", func(t *testing.T) {
		acc := accountWith(0, 0)
		acc.Balances[0] = *max128
		_, err := acc.Apply(Operation{Pub: Deposit(u(1), tokenA, alice), Priv: OpPriv{User: alice}})
		require.ErrorIs(t, err, ErrArithmetic)
	})

	t.Run("net arithmetic at the bound", func(t *testing.T) {
		acc := accountWith(0, 0)
		acc.Balances[0] = *max128
		got, err := acc.Apply(Operation{Pub: DepositWithRelayerFee(u(1), tokenA, alice, u(1), tokenA, relay), Priv: OpPriv{User: alice}})
		require.NoError(t, err)
		assert.Equal(t, *max128, got.Balances[0])
	})

	t.Run("user mismatch", func(t *testing.T) {
		_, err := accountWith(1, 1).Apply(Operation{Pub: Deposit(u(1), tokenA, alice), Priv: OpPriv{User: relay}})
		require.ErrorIs(t, err, ErrUserMismatch)
	})

	t.Run("input untouched", func(t *testing.T) {
		acc := accountWith(5, 5)
		_, err := acc.Apply(Operation{Pub: Withdraw(u(5), tokenA, alice), Priv: OpPriv{User: alice}})
		require.NoError(t, err)
		assert.Equal(t, [TokenSlots]uint64{5, 5}, balances(acc))
	})
}

func TestCombineOperation(t *testing.T) {
	op, err := CombineOperation(Deposit(u(1), tokenA, alice), OpPriv{User: alice})
	require.NoError(t, err)
	assert.Equal(t, alice, op.Priv.User)

	_, err = CombineOperation(Deposit(u(1), tokenA, alice), OpPriv{User: relay})
	assert.ErrorIs(t, err, ErrUserMismatch)
}

func TestValidateTokens(t *testing.T) {
	require.NoError(t, ValidateTokens([TokenSlots]Scalar{tokenA, tokenB}))
	require.ErrorIs(t, ValidateTokens([TokenSlots]Scalar{tokenA, tokenA}), ErrDuplicateToken)
}

func TestAccountJSON(t *testing.T) {
	acc := accountWith(123, 456)
	data, err := json.Marshal(acc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"123"`)

	var back Account
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, acc, back)
	assert.Equal(t, HashAccount(acc), HashAccount(back))
}

func TestOpPubFieldsRoundTrip(t *testing.T) {
	ops := []OpPub{
		Deposit(u(10), tokenA, alice),
		Withdraw(u(4), tokenB, alice),
		DepositWithRelayerFee(u(10), tokenA, alice, u(1), tokenB, relay),
		WithdrawWithRelayerFee(u(10), tokenA, alice, u(1), tokenA, relay),
	}
	for _, op := range ops {
		f := op.Fields()
		back, err := DecodeOpPub(f[:])
		require.NoError(t, err)
		assert.Equal(t, op, back)
	}

	f := Deposit(u(1), tokenA, alice).Fields()
	f[0] = NewScalar(4)
	_, err := DecodeOpPub(f[:])
	assert.ErrorIs(t, err, ErrMalformedPublicInputs)
	_, err = DecodeOpPub(f[:3])
	assert.ErrorIs(t, err, ErrMalformedPublicInputs)
}
