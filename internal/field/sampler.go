// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// Package field samples uniform random scalars below the BN254 scalar
// field modulus. The element is used as a per-session nonce bound into
// the circuit's public inputs: it is never secret, but it must be
// unpredictable before generation, so the only entropy source permitted
// is the platform CSPRNG.
package field

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Modulus returns p, the BN254 scalar field size. It is a system-wide
// constant, not configurable: the prover's public-input encoding is
// defined over this field.
func Modulus() *big.Int {
	return fr.Modulus()
}

// SamplingError reports an unusable entropy source. There is no
// fallback: callers must treat this as fatal.
type SamplingError struct {
	Err error
}

func (e *SamplingError) Error() string {
	return fmt.Sprintf("field sampling: secure random source failed: %v", e.Err)
}

func (e *SamplingError) Unwrap() error { return e.Err }

// Element is a non-negative integer strictly less than Modulus().
// Its canonical form is the base-10 decimal string.
type Element struct {
	n big.Int
}

// String renders the canonical decimal form.
func (e Element) String() string { return e.n.String() }

// Hex renders the element as 64 zero-padded lowercase hex digits, the
// fixed-width display form.
func (e Element) Hex() string { return fmt.Sprintf("%064x", &e.n) }

// BigInt returns a copy of the element's value.
func (e Element) BigInt() *big.Int { return new(big.Int).Set(&e.n) }

// ParseElement parses a decimal string and range-checks it against the
// modulus.
func ParseElement(s string) (Element, error) {
	var e Element
	if _, ok := e.n.SetString(s, 10); !ok {
		return Element{}, fmt.Errorf("parse field element: not a decimal integer: %q", s)
	}
	if e.n.Sign() < 0 || e.n.Cmp(Modulus()) >= 0 {
		return Element{}, fmt.Errorf("parse field element: %s outside [0, p)", s)
	}
	return e, nil
}

// Sampler draws uniform elements of [0, p) by rejection sampling.
type Sampler struct {
	rand io.Reader
}

// NewSampler returns a sampler backed by crypto/rand.
func NewSampler() *Sampler { return &Sampler{rand: rand.Reader} }

// NewSamplerFrom returns a sampler reading entropy from r. Tests use
// this to pin the rejection loop.
func NewSamplerFrom(r io.Reader) *Sampler { return &Sampler{rand: r} }

// Sample draws 32 secure random bytes, clears the top 2 bits of the
// most significant byte so the candidate is uniform over [0, 2^254),
// and rejects candidates >= p. Reducing a 256-bit draw mod p would bias
// low residues; rejection keeps the distribution exactly uniform, at an
// expected cost of ~1.06 draws per accepted element.
func (s *Sampler) Sample() (Element, error) {
	p := Modulus()
	var buf [32]byte
	for {
		if _, err := io.ReadFull(s.rand, buf[:]); err != nil {
			return Element{}, &SamplingError{Err: err}
		}
		buf[0] &= 0x3f
		var e Element
		e.n.SetBytes(buf[:])
		if e.n.Cmp(p) < 0 {
			return e, nil
		}
	}
}
