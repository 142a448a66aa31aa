// Package gadget holds the in-circuit building blocks shared by the creation and update
// circuits. Each gadget hashes or constrains exactly the same field elements as its native
// counterpart in internal/shielder.
package gadget

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"

	"shielder/internal/shielder"
)

// Hash is MiMC over in, with a fresh hasher.
func Hash(api frontend.API, in ...frontend.Variable) (frontend.Variable, error) {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, err
	}
	h.Write(in...)
	return h.Sum(), nil
}

// HashAccount is MiMC(token_0, balance_0, ..., token_n, balance_n).
func HashAccount(api frontend.API, tokens, balances [shielder.TokenSlots]frontend.Variable) (frontend.Variable, error) {
	in := make([]frontend.Variable, 0, 2*shielder.TokenSlots)
	for i := 0; i < shielder.TokenSlots; i++ {
		in = append(in, tokens[i], balances[i])
	}
	return Hash(api, in...)
}

// HashNote is MiMC(id, trapdoor, nullifier, account_commitment).
func HashNote(api frontend.API, id, trapdoor, nullifier, account frontend.Variable) (frontend.Variable, error) {
	return Hash(api, id, trapdoor, nullifier, account)
}

// MerkleRoot folds path from leaf upwards. Bit i of index (little-endian) set means the running
// node is the right child at level i. index is constrained to MerkleTreeDepth bits.
func MerkleRoot(api frontend.API, leaf frontend.Variable, path [shielder.MerkleTreeDepth]frontend.Variable, index frontend.Variable) (frontend.Variable, error) {
	bits := api.ToBinary(index, shielder.MerkleTreeDepth)
	cur := leaf
	for i, sibling := range path {
		left := api.Select(bits[i], sibling, cur)
		right := api.Select(bits[i], cur, sibling)
		next, err := Hash(api, left, right)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// Op is the public operation as circuit variables.
type Op struct {
	Kind     frontend.Variable
	Amount   frontend.Variable
	Token    frontend.Variable
	User     frontend.Variable
	Fee      frontend.Variable
	FeeToken frontend.Variable
	Relayer  frontend.Variable
}

// ApplyOperation returns the balances after op. It constrains:
//   - kind to two bits (bit 0 withdrawal, bit 1 relayer), amount and fee to 128 bits,
//   - zero fee, fee token and relayer on the plain variants,
//   - exactly one slot holding op.Token and, for relayer variants, exactly one holding op.FeeToken,
//   - every resulting balance to 128 bits, which rejects underflow and overflow alike.
func ApplyOperation(api frontend.API, op Op, tokens, balances [shielder.TokenSlots]frontend.Variable) [shielder.TokenSlots]frontend.Variable {
	kind := api.ToBinary(op.Kind, 2)
	isWithdrawal, isRelayer := kind[0], kind[1]
	api.ToBinary(op.Amount, shielder.MaxBalanceBits)
	api.ToBinary(op.Fee, shielder.MaxBalanceBits)

	notRelayer := api.Sub(1, isRelayer)
	api.AssertIsEqual(api.Mul(notRelayer, op.Fee), 0)
	api.AssertIsEqual(api.Mul(notRelayer, op.FeeToken), 0)
	api.AssertIsEqual(api.Mul(notRelayer, op.Relayer), 0)

	// amount * (1 - 2*isWithdrawal)
	signed := api.Sub(op.Amount, api.Mul(2, isWithdrawal, op.Amount))

	var out [shielder.TokenSlots]frontend.Variable
	tokenHits := frontend.Variable(0)
	feeHits := frontend.Variable(0)
	for i := 0; i < shielder.TokenSlots; i++ {
		hit := api.IsZero(api.Sub(tokens[i], op.Token))
		feeHit := api.Mul(api.IsZero(api.Sub(tokens[i], op.FeeToken)), isRelayer)

		bal := api.Add(balances[i], api.Mul(hit, signed))
		bal = api.Sub(bal, api.Mul(feeHit, op.Fee))
		api.ToBinary(bal, shielder.MaxBalanceBits)
		out[i] = bal

		tokenHits = api.Add(tokenHits, hit)
		feeHits = api.Add(feeHits, feeHit)
	}
	api.AssertIsEqual(tokenHits, 1)
	api.AssertIsEqual(feeHits, isRelayer)
	return out
}
