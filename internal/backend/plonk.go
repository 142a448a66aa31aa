package backend

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend/cs/scs"
	"github.com/consensys/gnark/test/unsafekzg"
	"github.com/rs/zerolog"

	"shielder/internal/shielder"
)

// Plonk proves both relations with PLONK over a sparse constraint system and a KZG SRS.
type Plonk struct {
	ccs    [2]constraint.ConstraintSystem
	pk     [2]plonk.ProvingKey
	vk     [2]plonk.VerifyingKey
	logger zerolog.Logger
}

// NewPlonk is NewGroth16 for PLONK.
func NewPlonk(keyDir string, logger zerolog.Logger) (*Plonk, error) {
	logger = logger.With().Str("backend", string(KindPlonk)).Logger()
	ccs, err := compile(scs.NewBuilder, logger)
	if err != nil {
		return nil, err
	}
	p := &Plonk{ccs: ccs, logger: logger}
	store := keyStore{dir: keyDir, scheme: string(KindPlonk)}
	for _, rel := range relations {
		pk, vk, err := setupOrLoadPlonkKeys(ccs[rel], store, rel, logger)
		if err != nil {
			return nil, fmt.Errorf("%s keys: %w", rel, err)
		}
		p.pk[rel], p.vk[rel] = pk, vk
	}
	return p, nil
}

func setupOrLoadPlonkKeys(ccs constraint.ConstraintSystem, store keyStore, rel shielder.Relation, logger zerolog.Logger) (plonk.ProvingKey, plonk.VerifyingKey, error) {
	if store.enabled() {
		pk := plonk.NewProvingKey(shielder.Curve)
		vk := plonk.NewVerifyingKey(shielder.Curve)
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
	srs, srsLagrange, err := unsafekzg.NewSRS(ccs)
	if err != nil {
		return nil, nil, fmt.Errorf("srs: %w", err)
	}
	pk, vk, err := plonk.Setup(ccs, srs, srsLagrange)
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

func (p *Plonk) Name() string { return string(KindPlonk) }

func (p *Plonk) ProveCreation(st shielder.CreationStatement, w shielder.CreationWitness) (*shielder.Proof, error) {
	if err := shielder.VerifyCreation(st, w); err != nil {
		return nil, err
	}
	full, err := creationWitness(st, w)
	if err != nil {
		return nil, err
	}
	return p.prove(shielder.RelationCreation, full, st.PublicInputs())
}

func (p *Plonk) ProveUpdate(st shielder.UpdateStatement, w shielder.UpdateWitness) (*shielder.Proof, error) {
	if err := shielder.VerifyUpdate(st, w); err != nil {
		return nil, err
	}
	full, err := updateWitness(st, w)
	if err != nil {
		return nil, err
	}
	return p.prove(shielder.RelationUpdate, full, st.PublicInputs())
}

func (p *Plonk) prove(rel shielder.Relation, full witness.Witness, public []shielder.Scalar) (*shielder.Proof, error) {
	start := time.Now()
	proof, err := plonk.Prove(p.ccs[rel], p.pk[rel], full)
	if err != nil {
		return nil, fmt.Errorf("plonk prove %s: %w", rel, err)
	}
	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("encoding proof: %w", err)
	}
	p.logger.Debug().Stringer("relation", rel).Dur("took", time.Since(start)).Msg("proof generated")
	return &shielder.Proof{Data: buf.Bytes(), PublicInputs: public}, nil
}

func (p *Plonk) Verify(rel shielder.Relation, proofBytes []byte, publicInputs []shielder.Scalar) error {
	pw, err := publicWitness(rel, publicInputs)
	if err != nil {
		return err
	}
	proof := plonk.NewProof(shielder.Curve)
	if _, err := proof.ReadFrom(bytes.NewReader(proofBytes)); err != nil {
		return fmt.Errorf("%w: proof unmarshaling failed: %v", shielder.ErrVerificationFailed, err)
	}
	if err := plonk.Verify(proof, p.vk[rel], pw); err != nil {
		return fmt.Errorf("%w: %v", shielder.ErrVerificationFailed, err)
	}
	return nil
}
