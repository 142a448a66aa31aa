package backend

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/rs/zerolog"

	"shielder/internal/shielder"
)

// Groth16 proves both relations with Groth16 over R1CS.
type Groth16 struct {
	ccs    [2]constraint.ConstraintSystem
	pk     [2]groth16.ProvingKey
	vk     [2]groth16.VerifyingKey
	logger zerolog.Logger
}

// NewGroth16 compiles the circuits and loads their keys from keyDir, running the setup for any
// relation whose keys are missing or do not match the circuit.
func NewGroth16(keyDir string, logger zerolog.Logger) (*Groth16, error) {
	logger = logger.With().Str("backend", string(KindGroth16)).Logger()
	ccs, err := compile(r1cs.NewBuilder, logger)
	if err != nil {
		return nil, err
	}
	g := &Groth16{ccs: ccs, logger: logger}
	store := keyStore{dir: keyDir, scheme: string(KindGroth16)}
	for _, rel := range relations {
		pk, vk, err := setupOrLoadKeys(ccs[rel], store, rel, logger)
		if err != nil {
			return nil, fmt.Errorf("%s keys: %w", rel, err)
		}
		g.pk[rel], g.vk[rel] = pk, vk
	}
	return g, nil
}

// setupOrLoadKeys returns the persisted keys of rel when they fit ccs, otherwise runs the
// setup and persists the fresh keys.
func setupOrLoadKeys(ccs constraint.ConstraintSystem, store keyStore, rel shielder.Relation, logger zerolog.Logger) (groth16.ProvingKey, groth16.VerifyingKey, error) {
	if store.enabled() {
		pk := groth16.NewProvingKey(shielder.Curve)
		vk := groth16.NewVerifyingKey(shielder.Curve)
		err := store.load(rel, pk, vk)
		switch {
		case err == nil && vk.NbPublicWitness() == nbPublic(rel):
			logger.Info().Stringer("relation", rel).Msg("loaded keys")
			return pk, vk, nil
		case err == nil:
			logger.Warn().Stringer("relation", rel).Msg("persisted keys do not match circuit, running setup")
		case !errors.Is(err, errNoKeys):
			return nil, nil, err
		}
	}

	start := time.Now()
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Stringer("relation", rel).Dur("took", time.Since(start)).Msg("setup complete")
	if store.enabled() {
		if err := store.save(rel, pk, vk); err != nil {
			return nil, nil, err
		}
	}
	return pk, vk, nil
}

func (g *Groth16) Name() string { return string(KindGroth16) }

func (g *Groth16) ProveCreation(st shielder.CreationStatement, w shielder.CreationWitness) (*shielder.Proof, error) {
	if err := shielder.VerifyCreation(st, w); err != nil {
		return nil, err
	}
	full, err := creationWitness(st, w)
	if err != nil {
		return nil, err
	}
	return g.prove(shielder.RelationCreation, full, st.PublicInputs())
}

func (g *Groth16) ProveUpdate(st shielder.UpdateStatement, w shielder.UpdateWitness) (*shielder.Proof, error) {
	if err := shielder.VerifyUpdate(st, w); err != nil {
		return nil, err
	}
	full, err := updateWitness(st, w)
	if err != nil {
		return nil, err
	}
	return g.prove(shielder.RelationUpdate, full, st.PublicInputs())
}

func (g *Groth16) prove(rel shielder.Relation, full witness.Witness, public []shielder.Scalar) (*shielder.Proof, error) {
	start := time.Now()
	proof, err := groth16.Prove(g.ccs[rel], g.pk[rel], full)
	if err != nil {
		return nil, fmt.Errorf("groth16 prove %s: %w", rel, err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encoding proof: %w", err)
	}
	g.logger.Debug().Stringer("relation", rel).Dur("took", time.Since(start)).Msg("proof generated")
	return &shielder.Proof{Data: buf.Bytes(), PublicInputs: public}, nil
}

func (g *Groth16) Verify(rel shielder.Relation, proofBytes []byte, publicInputs []shielder.Scalar) error {
	pw, err := publicWitness(rel, publicInputs)
	if err != nil {
		return err
	}
	proof := groth16.NewProof(shielder.Curve)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return fmt.Errorf("%w: proof unmarshaling failed: %v", shielder.ErrVerificationFailed, err)
	}
	if err := groth16.Verify(proof, g.vk[rel], pw); err != nil {
		return fmt.Errorf("%w: %v", shielder.ErrVerificationFailed, err)
	}
	return nil
}
