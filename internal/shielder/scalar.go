// scalar.go - Field elements used throughout the protocol.
//
// A Scalar is an element of the BN254 scalar field. It is comparable (usable as a map key) and
// text-marshals as a 0x-prefixed, 32-byte big-endian hex string.

package shielder

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"
)

// Curve is the curve whose scalar field hosts every Scalar and every circuit.
const Curve = ecc.BN254

// ScalarSize is the length of the canonical encoding of a Scalar.
const ScalarSize = fr.Bytes

// Scalar is a BN254 scalar field element.
type Scalar fr.Element

// NewScalar returns the Scalar holding v.
func NewScalar(v uint64) Scalar {
	var e fr.Element
	e.SetUint64(v)
	return Scalar(e)
}

// ScalarFromBig reduces v modulo the field order.
func ScalarFromBig(v *big.Int) Scalar {
	var e fr.Element
	e.SetBigInt(v)
	return Scalar(e)
}

// ScalarFromBytes interprets b as a big-endian integer reduced modulo the field order.
func ScalarFromBytes(b []byte) Scalar {
	var e fr.Element
	e.SetBytes(b)
	return Scalar(e)
}

// AmountScalar embeds an amount into the field. Amounts are below 2^128 so no reduction happens.
func AmountScalar(a *uint256.Int) Scalar {
	b := a.Bytes32()
	return ScalarFromBytes(b[:])
}

// ParseScalar decodes the canonical hex form produced by String. The 0x prefix is optional and
// short inputs are left-padded; values not below the field order are rejected.
func ParseScalar(s string) (Scalar, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) == 0 || len(s) > 2*ScalarSize {
		return Scalar{}, fmt.Errorf("invalid scalar %q: bad length", s)
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Scalar{}, fmt.Errorf("invalid scalar %q: %w", s, err)
	}
	var buf [ScalarSize]byte
	copy(buf[ScalarSize-len(raw):], raw)
	var e fr.Element
	if err := e.SetBytesCanonical(buf[:]); err != nil {
		return Scalar{}, fmt.Errorf("invalid scalar %q: %w", s, err)
	}
	return Scalar(e), nil
}

// MustParseScalar is ParseScalar for constants; it panics on malformed input.
func MustParseScalar(s string) Scalar {
	v, err := ParseScalar(s)
	if err != nil {
		panic(err)
	}
	return v
}

// RandomScalar samples a uniformly random field element using crypto/rand.
func RandomScalar() (Scalar, error) {
	var e fr.Element
	if _, err := e.SetRandom(); err != nil {
		return Scalar{}, fmt.Errorf("sampling random scalar: %w", err)
	}
	return Scalar(e), nil
}

func (s Scalar) element() *fr.Element {
	e := fr.Element(s)
	return &e
}

// Bytes returns the canonical big-endian encoding.
func (s Scalar) Bytes() [ScalarSize]byte {
	return s.element().Bytes()
}

// BigInt returns the integer representative in [0, r).
func (s Scalar) BigInt() *big.Int {
	return s.element().BigInt(new(big.Int))
}

// Uint256 returns the integer representative as an uint256.
func (s Scalar) Uint256() *uint256.Int {
	b := s.Bytes()
	return new(uint256.Int).SetBytes32(b[:])
}

func (s Scalar) IsZero() bool {
	return s.element().IsZero()
}

func (s Scalar) String() string {
	b := s.Bytes()
	return "0x" + hex.EncodeToString(b[:])
}

// MarshalText implements encoding.TextMarshaler.
func (s Scalar) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Scalar) UnmarshalText(text []byte) error {
	v, err := ParseScalar(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseScalars decodes a list of hex scalars.
func ParseScalars(in []string) ([]Scalar, error) {
	out := make([]Scalar, len(in))
	for i, s := range in {
		v, err := ParseScalar(s)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// ScalarStrings encodes a list of scalars in hex.
func ScalarStrings(in []Scalar) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = s.String()
	}
	return out
}
