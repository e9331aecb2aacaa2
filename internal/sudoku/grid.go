// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// Package sudoku implements the puzzle-integrity rules: completeness,
// consistency with a deterministic first-violation report, per-cell
// conflict detection, and challenge-extension checks. Everything here
// is a pure function over value types; there is no hidden state.
package sudoku

import (
	"encoding/json"
	"fmt"
)

// Grid is a 9x9 matrix of cell values in [0,9], 0 meaning empty.
type Grid [9][9]int

// Mask marks cells of a grid, true where the challenge fixes a clue.
type Mask [9][9]bool

// FixedMask derives the read-only cell mask from a challenge grid.
// It is computed once at game start and never changes for the session.
func FixedMask(challenge Grid) Mask {
	var m Mask
	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			m[r][c] = challenge[r][c] != 0
		}
	}
	return m
}

// gridJSON is the serialized wire/file form: {"grid": [[...], ...]}.
type gridJSON struct {
	Grid [9][9]int `json:"grid"`
}

// MarshalJSON renders the grid in its canonical file form.
func (g Grid) MarshalJSON() ([]byte, error) {
	return json.Marshal(gridJSON{Grid: g})
}

// UnmarshalJSON parses the canonical file form.
func (g *Grid) UnmarshalJSON(data []byte) error {
	var raw gridJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse grid: %w", err)
	}
	*g = raw.Grid
	return nil
}

// DefaultChallenge is the fixed puzzle every session starts from.
var DefaultChallenge = Grid{
	{5, 3, 0, 0, 7, 0, 0, 0, 0},
	{6, 0, 0, 1, 9, 5, 0, 0, 0},
	{0, 9, 8, 0, 0, 0, 0, 6, 0},
	{8, 0, 0, 0, 6, 0, 0, 0, 3},
	{4, 0, 0, 8, 0, 3, 0, 0, 1},
	{7, 0, 0, 0, 2, 0, 0, 0, 6},
	{0, 6, 0, 0, 0, 0, 2, 8, 0},
	{0, 0, 0, 4, 1, 9, 0, 0, 5},
	{0, 0, 0, 0, 8, 0, 0, 7, 9},
}

// DefaultSolution is the unique solution of DefaultChallenge. Kept for
// tests and the prove subcommand examples.
var DefaultSolution = Grid{
	{5, 3, 4, 6, 7, 8, 9, 1, 2},
	{6, 7, 2, 1, 9, 5, 3, 4, 8},
	{1, 9, 8, 3, 4, 2, 5, 6, 7},
	{8, 5, 9, 7, 6, 1, 4, 2, 3},
	{4, 2, 6, 8, 5, 3, 7, 9, 1},
	{7, 1, 3, 9, 2, 4, 8, 5, 6},
	{9, 6, 1, 5, 3, 7, 2, 8, 4},
	{2, 8, 7, 4, 1, 9, 6, 3, 5},
	{3, 4, 5, 2, 8, 6, 1, 7, 9},
}
