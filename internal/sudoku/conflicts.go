// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

package sudoku

// ConflictSet reports which units already contain a candidate value.
// Used for live per-cell highlighting; it does not require a complete
// grid.
type ConflictSet struct {
	Row    bool `json:"row"`
	Column bool `json:"column"`
	Box    bool `json:"box"`
}

// Any reports whether placing the value would conflict at all.
func (s ConflictSet) Any() bool { return s.Row || s.Column || s.Box }

// Conflicts reports the units in which value already occurs, ignoring
// the target cell itself. The box scan skips cells sharing the target's
// row or column: those are already covered by the row and column
// reports. The row and column scans run to completion; the box scan
// returns on its first hit.
func Conflicts(g Grid, row, col, value int) ConflictSet {
	var out ConflictSet
	if value == 0 {
		return out
	}
	for c := 0; c < 9; c++ {
		if c != col && g[row][c] == value {
			out.Row = true
		}
	}
	for r := 0; r < 9; r++ {
		if r != row && g[r][col] == value {
			out.Column = true
		}
	}
	br, bc := row/3*3, col/3*3
	for r := br; r < br+3; r++ {
		for c := bc; c < bc+3; c++ {
			if r != row && c != col && g[r][c] == value {
				out.Box = true
				return out
			}
		}
	}
	return out
}
