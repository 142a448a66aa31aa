// crypto.go - Commitment layer of the shielded pool.
//
// Implements the MiMC-based account hash, note commitment and Merkle node combination.
// The same sequences of field elements are hashed in-circuit by internal/transactions/gadget,
// so any change here must be mirrored there.

package shielder

import (
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	mimcNative "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// hashScalars feeds the canonical encoding of each input to a fresh MiMC instance. The
// hasher only rejects blocks that are not reduced modulo r, which Scalar.Bytes never yields.
func hashScalars(in ...Scalar) Scalar {
	h := mimcNative.NewMiMC()
	for _, s := range in {
		b := s.Bytes()
		if _, err := h.Write(b[:]); err != nil {
			panic(fmt.Errorf("mimc: hashing canonical scalar: %w", err))
		}
	}
	var out fr.Element
	out.SetBytes(h.Sum(nil))
	return Scalar(out)
}

// HashAccount commits to an account: MiMC(token_0, balance_0, ..., token_n, balance_n).
func HashAccount(a Account) Scalar {
	in := make([]Scalar, 0, 2*TokenSlots)
	for i := 0; i < TokenSlots; i++ {
		in = append(in, a.Tokens[i], AmountScalar(&a.Balances[i]))
	}
	return hashScalars(in...)
}

// HashNote commits to a note: MiMC(id, trapdoor, nullifier, account_commitment).
func HashNote(n Note) Scalar {
	return hashScalars(n.ID, n.Trapdoor, n.Nullifier, n.AccountCommitment)
}

// Combine hashes two sibling Merkle nodes into their parent.
func Combine(left, right Scalar) Scalar {
	return hashScalars(left, right)
}
