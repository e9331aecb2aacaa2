// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

package sudoku

import "fmt"

// ViolationKind distinguishes the unit a consistency violation was found in.
type ViolationKind int

const (
	ViolationCell ViolationKind = iota // value outside [0,9]
	ViolationRow
	ViolationColumn
	ViolationBox
)

func (k ViolationKind) String() string {
	switch k {
	case ViolationCell:
		return "cell"
	case ViolationRow:
		return "row"
	case ViolationColumn:
		return "column"
	case ViolationBox:
		return "box"
	default:
		return "unknown"
	}
}

// Violation pinpoints the first consistency failure found in scan order.
// Row and Col locate the offending cell for cell and duplicate
// violations; for a missing digit they are -1 and Value holds the digit
// absent from the unit identified by Kind and Index.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	Index   int           `json:"index"` // row, column, or box number; -1 for cell violations
	Row     int           `json:"row"`
	Col     int           `json:"col"`
	Value   int           `json:"value"`
	Missing bool          `json:"missing,omitempty"`
}

func (v *Violation) String() string {
	switch {
	case v.Kind == ViolationCell:
		return fmt.Sprintf("cell (%d,%d) holds %d, outside [0,9]", v.Row, v.Col, v.Value)
	case v.Missing:
		return fmt.Sprintf("%s %d is missing %d", v.Kind, v.Index, v.Value)
	default:
		return fmt.Sprintf("%s %d repeats %d at (%d,%d)", v.Kind, v.Index, v.Value, v.Row, v.Col)
	}
}

// IsComplete reports whether no cell is empty.
func IsComplete(g Grid) bool {
	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			if g[r][c] == 0 {
				return false
			}
		}
	}
	return true
}

// FirstEmpty returns the row-major first empty cell, or (-1,-1) if the
// grid is complete.
func FirstEmpty(g Grid) (int, int) {
	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			if g[r][c] == 0 {
				return r, c
			}
		}
	}
	return -1, -1
}

// CheckConsistent scans the grid in a fixed order and returns the first
// violation found, or (true, nil) when the grid is internally
// consistent. The order is a contract: interactive feedback must be
// deterministic and reproducible by tests.
//
//  1. row-major cell scan: every value must lie in [0,9]
//  2. rows 0..8: each must contain 1..9 exactly once
//  3. columns 0..8: likewise
//  4. boxes 0..8: likewise, box b having top-left (b/3*3, b%3*3)
//
// Within a unit, a duplicate is reported before a missing digit; the
// duplicate cell is the later of the pair in unit scan order.
func CheckConsistent(g Grid) (bool, *Violation) {
	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			if v := g[r][c]; v < 0 || v > 9 {
				return false, &Violation{Kind: ViolationCell, Index: -1, Row: r, Col: c, Value: v}
			}
		}
	}
	for r := 0; r < 9; r++ {
		if v := checkUnit(g, ViolationRow, r); v != nil {
			return false, v
		}
	}
	for c := 0; c < 9; c++ {
		if v := checkUnit(g, ViolationColumn, c); v != nil {
			return false, v
		}
	}
	for b := 0; b < 9; b++ {
		if v := checkUnit(g, ViolationBox, b); v != nil {
			return false, v
		}
	}
	return true, nil
}

// unitCell maps position i of unit (kind, index) to grid coordinates.
func unitCell(kind ViolationKind, index, i int) (int, int) {
	switch kind {
	case ViolationRow:
		return index, i
	case ViolationColumn:
		return i, index
	default: // box
		return index/3*3 + i/3, index%3*3 + i%3
	}
}

func checkUnit(g Grid, kind ViolationKind, index int) *Violation {
	var seen [10]bool
	for i := 0; i < 9; i++ {
		r, c := unitCell(kind, index, i)
		v := g[r][c]
		if v == 0 {
			continue
		}
		if seen[v] {
			return &Violation{Kind: kind, Index: index, Row: r, Col: c, Value: v}
		}
		seen[v] = true
	}
	for d := 1; d <= 9; d++ {
		if !seen[d] {
			return &Violation{Kind: kind, Index: index, Row: -1, Col: -1, Value: d, Missing: true}
		}
	}
	return nil
}

// MatchesChallenge reports whether the candidate extends the challenge:
// every non-zero challenge cell must hold the same value in the
// candidate. Empty challenge cells are unconstrained.
func MatchesChallenge(candidate, challenge Grid) bool {
	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			if challenge[r][c] != 0 && candidate[r][c] != challenge[r][c] {
				return false
			}
		}
	}
	return true
}
