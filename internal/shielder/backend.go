// backend.go - Proving backend abstraction and the native (mock) backend.
//
// A ProvingBackend turns statements and witnesses into opaque proof bytes and checks proof
// bytes against a public-input vector. NativeBackend carries the witness in the proof and runs
// the native relation on verification: it gives no zero-knowledge and exists so the controller,
// wallet and transport can be exercised without trusted setup. internal/backend provides the
// Groth16 and PLONK instantiations of the same relations.

package shielder

import (
	"encoding/json"
	"fmt"
)

// Proof is a proof together with the public inputs it was produced for.
type Proof struct {
	Data         []byte
	PublicInputs []Scalar
}

// ProvingBackend is a pluggable instantiation of the creation and update relations.
type ProvingBackend interface {
	Name() string
	ProveCreation(st CreationStatement, w CreationWitness) (*Proof, error)
	ProveUpdate(st UpdateStatement, w UpdateWitness) (*Proof, error)
	// Verify returns nil iff proof is valid for rel and publicInputs.
	Verify(rel Relation, proof []byte, publicInputs []Scalar) error
}

// NativeBackend is the mocked algebraic check.
type NativeBackend struct{}

func (NativeBackend) Name() string { return "native" }

func (NativeBackend) ProveCreation(st CreationStatement, w CreationWitness) (*Proof, error) {
	if err := VerifyCreation(st, w); err != nil {
		return nil, err
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encoding creation witness: %w", err)
	}
	return &Proof{Data: data, PublicInputs: st.PublicInputs()}, nil
}

func (NativeBackend) ProveUpdate(st UpdateStatement, w UpdateWitness) (*Proof, error) {
	if err := VerifyUpdate(st, w); err != nil {
		return nil, err
	}
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("encoding update witness: %w", err)
	}
	return &Proof{Data: data, PublicInputs: st.PublicInputs()}, nil
}

func (NativeBackend) Verify(rel Relation, proof []byte, publicInputs []Scalar) error {
	switch rel {
	case RelationCreation:
		st, err := DecodeCreationStatement(publicInputs)
		if err != nil {
			return err
		}
		var w CreationWitness
		if err := json.Unmarshal(proof, &w); err != nil {
			return fmt.Errorf("%w: undecodable proof: %v", ErrVerificationFailed, err)
		}
		return VerifyCreation(st, w)
	case RelationUpdate:
		st, err := DecodeUpdateStatement(publicInputs)
		if err != nil {
			return err
		}
		var w UpdateWitness
		if err := json.Unmarshal(proof, &w); err != nil {
			return fmt.Errorf("%w: undecodable proof: %v", ErrVerificationFailed, err)
		}
		return VerifyUpdate(st, w)
	default:
		return fmt.Errorf("%w: unknown relation %s", ErrVerificationFailed, rel)
	}
}
