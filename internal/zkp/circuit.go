// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// Package zkp wraps a Groth16 prover over BN254 for the sudoku
// statement "I know a full grid that extends the public challenge",
// plus the canonical transport encoding of the resulting proof
// artifacts.
package zkp

import (
	"github.com/consensys/gnark/frontend"

	"zksudoku/internal/sudoku"
)

// CircuitGrid is a 9x9 sudoku grid in-circuit.
type CircuitGrid [9][9]frontend.Variable

// Circuit proves knowledge of a complete, consistent solution grid
// extending the public challenge. SessionID is the per-session nonce:
// it carries no constraint semantics beyond being present in the public
// witness, which makes repeated solves of the same puzzle unlinkable.
type Circuit struct {
	SessionID frontend.Variable `gnark:",public"`
	Challenge CircuitGrid       `gnark:",public"`
	Solution  CircuitGrid       `gnark:",secret"`
}

// Define encodes the sudoku rules as constraints.
func (circuit *Circuit) Define(api frontend.API) error {
	// Keep the nonce wired into the constraint system; x+1 != x holds
	// for every element of a prime field of size > 1.
	api.AssertIsDifferent(api.Add(circuit.SessionID, 1), circuit.SessionID)

	// Every solution cell lies in [1,9].
	for i := 0; i < 9; i++ {
		for j := 0; j < 9; j++ {
			api.AssertIsLessOrEqual(circuit.Solution[i][j], 9)
			api.AssertIsLessOrEqual(1, circuit.Solution[i][j])
		}
	}

	// Rows are all-different.
	for i := 0; i < 9; i++ {
		for j := 0; j < 9; j++ {
			for k := j + 1; k < 9; k++ {
				api.AssertIsDifferent(circuit.Solution[i][j], circuit.Solution[i][k])
			}
		}
	}

	// Columns are all-different.
	for j := 0; j < 9; j++ {
		for i := 0; i < 9; i++ {
			for k := i + 1; k < 9; k++ {
				api.AssertIsDifferent(circuit.Solution[i][j], circuit.Solution[k][j])
			}
		}
	}

	// Each 3x3 box is all-different.
	for boxRow := 0; boxRow < 3; boxRow++ {
		for boxCol := 0; boxCol < 3; boxCol++ {
			for i := 0; i < 9; i++ {
				for j := i + 1; j < 9; j++ {
					r1, c1 := boxRow*3+i/3, boxCol*3+i%3
					r2, c2 := boxRow*3+j/3, boxCol*3+j%3
					api.AssertIsDifferent(circuit.Solution[r1][c1], circuit.Solution[r2][c2])
				}
			}
		}
	}

	// The solution extends the challenge wherever a clue is given.
	for i := 0; i < 9; i++ {
		for j := 0; j < 9; j++ {
			isCellEmpty := api.IsZero(circuit.Challenge[i][j])
			api.AssertIsEqual(
				api.Select(isCellEmpty, circuit.Solution[i][j], circuit.Challenge[i][j]),
				circuit.Solution[i][j],
			)
		}
	}

	return nil
}

// NewCircuitGrid lifts a native grid into circuit variables.
func NewCircuitGrid(g sudoku.Grid) CircuitGrid {
	var out CircuitGrid
	for i := 0; i < 9; i++ {
		for j := 0; j < 9; j++ {
			out[i][j] = frontend.Variable(g[i][j])
		}
	}
	return out
}

// NbPublicInputs is the public witness length: the session nonce plus
// the 81 challenge cells.
const NbPublicInputs = 1 + 81
