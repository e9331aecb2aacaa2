// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

package zkp

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark/backend/groth16"
	backend_witness "github.com/consensys/gnark/backend/witness"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/rs/zerolog"

	"zksudoku/internal/field"
	"zksudoku/internal/sudoku"
)

// Inputs is the witness assignment the lifecycle hands to the prover:
// the session nonce paired with the secret solution and with the public
// challenge.
type Inputs struct {
	SessionID field.Element
	Challenge sudoku.Grid
	Solution  sudoku.Grid
}

// Prover is the proving collaborator the lifecycle drives in a fixed
// order: Execute, then GenerateProof, then VerifyProof. Calls may take
// seconds; all three accept a context for caller-imposed deadlines,
// though cancellation of an in-flight gnark computation is not
// guaranteed.
type Prover interface {
	Execute(ctx context.Context, in Inputs) (backend_witness.Witness, error)
	GenerateProof(ctx context.Context, w backend_witness.Witness) (*Artifact, error)
	VerifyProof(ctx context.Context, a *Artifact) (bool, error)
}

// GnarkProver proves the sudoku circuit with Groth16 over BN254.
type GnarkProver struct {
	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
	log zerolog.Logger
}

// NewProver loads cached setup artifacts from dir, or compiles the
// circuit and runs a fresh single-party setup when the cache is absent,
// persisting the result for subsequent runs.
func NewProver(dir string, log zerolog.Logger) (*GnarkProver, error) {
	if SetupFilesExist(dir) {
		ccs, pk, vk, err := LoadSetupFiles(dir)
		if err != nil {
			return nil, fmt.Errorf("load setup cache: %w", err)
		}
		log.Debug().Str("dir", dir).Msg("loaded cached proving setup")
		return &GnarkProver{ccs: ccs, pk: pk, vk: vk, log: log}, nil
	}

	ccs, pk, vk, err := Setup()
	if err != nil {
		return nil, err
	}
	if err := SaveSetupFiles(ccs, pk, vk, dir); err != nil {
		return nil, fmt.Errorf("save setup cache: %w", err)
	}
	log.Info().Str("dir", dir).Int("constraints", ccs.GetNbConstraints()).Msg("generated proving setup")
	return &GnarkProver{ccs: ccs, pk: pk, vk: vk, log: log}, nil
}

// Setup compiles the circuit and produces keys. NB! Single-party setup
// is UNSAFE for production use; a real deployment needs an MPC
// ceremony.
func Setup() (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey, error) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &Circuit{})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("compile circuit: %w", err)
	}
	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("setup circuit: %w", err)
	}
	return ccs, pk, vk, nil
}

// Execute packs the assignment into a full witness. gnark runs the
// actual circuit execution during proving; a malformed assignment
// surfaces there.
func (p *GnarkProver) Execute(ctx context.Context, in Inputs) (backend_witness.Witness, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	assignment := &Circuit{
		SessionID: in.SessionID.BigInt(),
		Challenge: NewCircuitGrid(in.Challenge),
		Solution:  NewCircuitGrid(in.Solution),
	}
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("build witness: %w", err)
	}
	return w, nil
}

// GenerateProof proves the witness and returns the serialized artifact.
func (p *GnarkProver) GenerateProof(ctx context.Context, w backend_witness.Witness) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	proof, err := groth16.Prove(p.ccs, p.pk, w)
	if err != nil {
		return nil, fmt.Errorf("prove: %w", err)
	}

	var buf bytes.Buffer
	if _, err := proof.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("serialize proof: %w", err)
	}

	pub, err := w.Public()
	if err != nil {
		return nil, fmt.Errorf("public witness: %w", err)
	}
	inputs, err := publicInputStrings(pub)
	if err != nil {
		return nil, err
	}

	p.log.Debug().Int("proofBytes", buf.Len()).Int("publicInputs", len(inputs)).Msg("proof generated")
	return &Artifact{Proof: buf.Bytes(), PublicInputs: inputs}, nil
}

// VerifyProof checks the artifact against the verifying key. It
// rebuilds the public witness from the decimal strings and the proof
// from its bytes, so it serves both the local trust-boundary check and
// verification of externally supplied artifacts. A malformed artifact
// is an error; a well-formed artifact that fails pairing checks returns
// (false, nil).
func (p *GnarkProver) VerifyProof(ctx context.Context, a *Artifact) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if a == nil {
		return false, &FormatError{Reason: "nil artifact"}
	}
	if len(a.PublicInputs) != NbPublicInputs {
		return false, &FormatError{
			Field:  "publicInputs",
			Reason: fmt.Sprintf("want %d elements, got %d", NbPublicInputs, len(a.PublicInputs)),
		}
	}

	proof := groth16.NewProof(ecc.BN254)
	if _, err := proof.ReadFrom(bytes.NewReader(a.Proof)); err != nil {
		return false, &FormatError{Field: "proof", Reason: fmt.Sprintf("not a BN254 Groth16 proof: %v", err)}
	}

	pub, err := publicWitnessFromStrings(a.PublicInputs)
	if err != nil {
		return false, err
	}

	if err := groth16.Verify(proof, p.vk, pub); err != nil {
		p.log.Debug().Err(err).Msg("proof rejected")
		return false, nil
	}
	return true, nil
}

// publicInputStrings extracts the public witness vector as decimal
// strings in gnark's exact order.
func publicInputStrings(pub backend_witness.Witness) ([]string, error) {
	vec, ok := pub.Vector().(fr.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected public witness vector type %T (need bn254 fr.Vector)", pub.Vector())
	}
	out := make([]string, len(vec))
	var bi big.Int
	for i := range vec {
		vec[i].BigInt(&bi)
		out[i] = bi.String()
	}
	return out, nil
}

// publicWitnessFromStrings rebuilds a public-only witness from decimal
// field-element strings.
func publicWitnessFromStrings(inputs []string) (backend_witness.Witness, error) {
	w, err := backend_witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("new witness: %w", err)
	}
	values := make(chan any, len(inputs))
	for i, s := range inputs {
		bi, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return nil, &FormatError{
				Field:  "publicInputs",
				Reason: fmt.Sprintf("element %d is not a decimal integer: %q", i, s),
			}
		}
		values <- bi
	}
	close(values)
	if err := w.Fill(len(inputs), 0, values); err != nil {
		return nil, fmt.Errorf("fill public witness: %w", err)
	}
	return w, nil
}
