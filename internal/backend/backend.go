// backend.go - SNARK instantiations of the creation and update relations.
//
// Both schemes compile the circuits from internal/transactions over BN254, run (or load) a
// setup per relation and persist keys in a key directory. Proofs are the schemes' binary
// encodings. Verification rebuilds the public witness straight from the Scalar vector, so the
// order produced by shielder's PublicInputs is the only contract between prover and verifier.
//
// WARNING: the PLONK SRS comes from test/unsafekzg and is not fit for production value.

package backend

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/rs/zerolog"

	"shielder/internal/shielder"
	"shielder/internal/transactions/register"
	"shielder/internal/transactions/update"
)

// Kind names a proving backend.
type Kind string

const (
	KindNative  Kind = "native"
	KindGroth16 Kind = "groth16"
	KindPlonk   Kind = "plonk"
)

// ParseKind accepts the names above.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindNative, KindGroth16, KindPlonk:
		return k, nil
	default:
		return "", fmt.Errorf("unknown proving backend %q", s)
	}
}

// Config selects and configures a backend.
type Config struct {
	Kind Kind
	// KeyDir holds persisted keys. Empty means run a fresh setup in memory on every start.
	KeyDir string
	Logger zerolog.Logger
}

// New returns the backend described by cfg. SNARK backends compile and set up both circuits
// before returning, which can take several seconds.
func New(cfg Config) (shielder.ProvingBackend, error) {
	switch cfg.Kind {
	case KindNative, "":
		return shielder.NativeBackend{}, nil
	case KindGroth16:
		return NewGroth16(cfg.KeyDir, cfg.Logger)
	case KindPlonk:
		return NewPlonk(cfg.KeyDir, cfg.Logger)
	default:
		return nil, fmt.Errorf("unknown proving backend %q", cfg.Kind)
	}
}

var relations = [...]shielder.Relation{shielder.RelationCreation, shielder.RelationUpdate}

func circuitFor(rel shielder.Relation) frontend.Circuit {
	if rel == shielder.RelationCreation {
		return &register.CircuitRegister{}
	}
	return &update.CircuitUpdate{}
}

func nbPublic(rel shielder.Relation) int {
	if rel == shielder.RelationCreation {
		return shielder.CreationPublicInputs
	}
	return shielder.UpdatePublicInputs
}

// compile builds the constraint systems of both relations with the given builder.
func compile(builder frontend.NewBuilder, logger zerolog.Logger) ([2]constraint.ConstraintSystem, error) {
	var out [2]constraint.ConstraintSystem
	for _, rel := range relations {
		start := time.Now()
		ccs, err := frontend.Compile(shielder.Curve.ScalarField(), builder, circuitFor(rel))
		if err != nil {
			return out, fmt.Errorf("compiling %s circuit: %w", rel, err)
		}
		logger.Debug().
			Stringer("relation", rel).
			Int("constraints", ccs.GetNbConstraints()).
			Dur("took", time.Since(start)).
			Msg("circuit compiled")
		out[rel] = ccs
	}
	return out, nil
}

func creationWitness(st shielder.CreationStatement, w shielder.CreationWitness) (witness.Witness, error) {
	full, err := frontend.NewWitness(register.BuildRegisterWitness(st, w), shielder.Curve.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("creation witness: %w", err)
	}
	return full, nil
}

func updateWitness(st shielder.UpdateStatement, w shielder.UpdateWitness) (witness.Witness, error) {
	full, err := frontend.NewWitness(update.BuildUpdateWitness(st, w), shielder.Curve.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("update witness: %w", err)
	}
	return full, nil
}

// publicWitness fills a public-only witness with the vector, in order.
func publicWitness(rel shielder.Relation, in []shielder.Scalar) (witness.Witness, error) {
	if rel != shielder.RelationCreation && rel != shielder.RelationUpdate {
		return nil, fmt.Errorf("%w: unknown relation %s", shielder.ErrVerificationFailed, rel)
	}
	if n := nbPublic(rel); len(in) != n {
		return nil, fmt.Errorf("%w: %s needs %d inputs, got %d", shielder.ErrMalformedPublicInputs, rel, n, len(in))
	}
	w, err := witness.New(shielder.Curve.ScalarField())
	if err != nil {
		return nil, err
	}
	values := make(chan any, len(in))
	for _, s := range in {
		values <- fr.Element(s)
	}
	close(values)
	if err := w.Fill(len(in), 0, values); err != nil {
		return nil, fmt.Errorf("%w: %v", shielder.ErrMalformedPublicInputs, err)
	}
	return w, nil
}

// keyStore persists the keys of one scheme under dir as <scheme>_<relation>.{pk,vk}.
type keyStore struct {
	dir    string
	scheme string
}

func (k keyStore) enabled() bool { return k.dir != "" }

func (k keyStore) paths(rel shielder.Relation) (pkPath, vkPath string) {
	base := filepath.Join(k.dir, fmt.Sprintf("%s_%s", k.scheme, rel))
	return base + ".pk", base + ".vk"
}

// load reads both keys of rel. It returns errNoKeys when either file is absent.
func (k keyStore) load(rel shielder.Relation, pk, vk io.ReaderFrom) error {
	pkPath, vkPath := k.paths(rel)
	for _, p := range []string{pkPath, vkPath} {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			return errNoKeys
		}
	}
	if err := loadKey(pkPath, pk); err != nil {
		return fmt.Errorf("loading %s: %w", pkPath, err)
	}
	if err := loadKey(vkPath, vk); err != nil {
		return fmt.Errorf("loading %s: %w", vkPath, err)
	}
	return nil
}

func (k keyStore) save(rel shielder.Relation, pk, vk io.WriterTo) error {
	if err := os.MkdirAll(k.dir, 0o700); err != nil {
		return err
	}
	pkPath, vkPath := k.paths(rel)
	if err := saveKey(pkPath, pk); err != nil {
		return err
	}
	return saveKey(vkPath, vk)
}

func saveKey(path string, key io.WriterTo) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = key.WriteTo(f)
	return err
}

func loadKey(path string, key io.ReaderFrom) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = key.ReadFrom(f)
	return err
}

var errNoKeys = errors.New("no persisted keys")
