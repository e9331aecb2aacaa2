// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// Package game holds the proof lifecycle: an explicit state value a
// presentation layer observes and dispatches events into. The legal
// order of operations is solve, prove, verify, export; external
// verification runs beside that path without touching it.
package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"zksudoku/internal/field"
	"zksudoku/internal/sudoku"
	"zksudoku/internal/zkp"
)

// State is the lifecycle position of a session.
type State int

const (
	StateEditing State = iota
	StateSolved
	StateProving
	StateProved
	StateExported
)

func (s State) String() string {
	switch s {
	case StateEditing:
		return "editing"
	case StateSolved:
		return "solved"
	case StateProving:
		return "proving"
	case StateProved:
		return "proved"
	case StateExported:
		return "exported"
	default:
		return "unknown"
	}
}

// ErrNotSolved rejects proof generation before the candidate has been
// validated. The prover is never contacted in that case.
var ErrNotSolved = fmt.Errorf("solution has not been validated")

// ErrFixedCell rejects edits to challenge clue cells.
var ErrFixedCell = fmt.Errorf("cell is a fixed challenge clue")

// ErrCellOutOfRange rejects coordinates or values outside the grid domain.
var ErrCellOutOfRange = fmt.Errorf("cell coordinates or value out of range")

// ErrNoProof rejects export before a proof exists.
var ErrNoProof = fmt.Errorf("no proof to export")

// ProverError wraps a failure from one of the prover's three steps, or
// a local verification that returned false. The session returns to
// editing; re-solving is cheap and re-establishes state cleanly.
type ProverError struct {
	Step string // "execute", "prove", or "verify"
	Err  error
}

func (e *ProverError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("prover %s: proof did not verify", e.Step)
	}
	return fmt.Sprintf("prover %s: %v", e.Step, e.Err)
}

func (e *ProverError) Unwrap() error { return e.Err }

// Session owns one play-through: the immutable challenge, the mutable
// candidate, the per-session nonce, elapsed time, and the proof
// artifact once produced. All methods are serialized by an internal
// lock: only one operation is ever in flight.
type Session struct {
	mu sync.Mutex

	challenge sudoku.Grid
	fixed     sudoku.Mask
	candidate sudoku.Grid

	nonce   field.Element
	state   State
	started time.Time
	frozen  time.Duration // elapsed at the Solved instant; valid from StateSolved on

	artifact     *zkp.Artifact
	publishedURL string

	prover  zkp.Prover
	sampler *field.Sampler
	clock   func() time.Time
	log     zerolog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithClock substitutes the time source. Tests use this to freeze the
// timer.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) { s.clock = clock }
}

// WithSampler substitutes the nonce sampler.
func WithSampler(sampler *field.Sampler) Option {
	return func(s *Session) { s.sampler = sampler }
}

// NewSession starts a session on the challenge: derives the fixed-cell
// mask, copies the challenge into a fresh candidate, draws the session
// nonce, and starts the clock.
func NewSession(challenge sudoku.Grid, prover zkp.Prover, log zerolog.Logger, opts ...Option) (*Session, error) {
	s := &Session{
		challenge: challenge,
		fixed:     sudoku.FixedMask(challenge),
		candidate: challenge,
		state:     StateEditing,
		prover:    prover,
		sampler:   field.NewSampler(),
		clock:     time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}
	nonce, err := s.sampler.Sample()
	if err != nil {
		return nil, err
	}
	s.nonce = nonce
	s.started = s.clock()
	return s, nil
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Challenge returns the immutable challenge grid.
func (s *Session) Challenge() sudoku.Grid {
	return s.challenge
}

// Fixed returns the read-only cell mask.
func (s *Session) Fixed() sudoku.Mask {
	return s.fixed
}

// Candidate returns a copy of the working grid.
func (s *Session) Candidate() sudoku.Grid {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.candidate
}

// ChallengeID returns the session nonce in canonical decimal form.
func (s *Session) ChallengeID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nonce.String()
}

// Elapsed returns the running play time, frozen once the puzzle is
// solved.
func (s *Session) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.elapsedLocked()
}

func (s *Session) elapsedLocked() time.Duration {
	if s.state != StateEditing {
		return s.frozen
	}
	return s.clock().Sub(s.started)
}

// SetCell writes value into the candidate. Fixed clue cells are
// read-only. Editing a solved grid drops the session back to editing
// and resumes the clock; any staler state (a retained proof) is not
// cleared until the next successful check or reset.
func (s *Session) SetCell(row, col, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if row < 0 || row > 8 || col < 0 || col > 8 || value < 0 || value > 9 {
		return ErrCellOutOfRange
	}
	if s.fixed[row][col] {
		return ErrFixedCell
	}
	if s.state == StateProving {
		return fmt.Errorf("proof generation in progress")
	}
	s.candidate[row][col] = value
	if s.state != StateEditing {
		s.state = StateEditing
		s.frozen = 0
	}
	return nil
}

// Conflicts reports which units already contain value at (row, col) in
// the current candidate. Pure read; no state change.
func (s *Session) Conflicts(row, col, value int) sudoku.ConflictSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sudoku.Conflicts(s.candidate, row, col, value)
}

// CheckSolution decides whether the candidate is a valid solution of
// the challenge. On success the session enters the solved state and the
// elapsed time freezes; that frozen value becomes the proof's declared
// timeInMs. On failure the first violation in scan order is returned.
func (s *Session) CheckSolution() (bool, *sudoku.Violation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !sudoku.IsComplete(s.candidate) {
		r, c := sudoku.FirstEmpty(s.candidate)
		return false, &sudoku.Violation{Kind: sudoku.ViolationCell, Index: -1, Row: r, Col: c, Value: 0}
	}
	if ok, v := sudoku.CheckConsistent(s.candidate); !ok {
		return false, v
	}
	if !sudoku.MatchesChallenge(s.candidate, s.challenge) {
		// Unreachable while fixed cells are read-only, but the
		// invariant is checked at submission regardless.
		return false, &sudoku.Violation{Kind: sudoku.ViolationCell, Index: -1, Row: -1, Col: -1}
	}

	if s.state == StateEditing {
		s.frozen = s.clock().Sub(s.started)
	}
	s.state = StateSolved
	s.log.Info().Dur("elapsed", s.frozen).Msg("solution validated")
	return true, nil
}

// GenerateProof runs the prover's three steps in fixed order: execute,
// generate, verify. Local verification is the trust boundary the user
// relies on before sharing the artifact, so it runs even though the
// prover attests correctness internally. Any failure returns the
// session to editing with a ProverError.
func (s *Session) GenerateProof(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateSolved {
		return ErrNotSolved
	}
	s.state = StateProving

	fail := func(step string, err error) error {
		s.state = StateEditing
		perr := &ProverError{Step: step, Err: err}
		s.log.Warn().Err(perr).Msg("proof generation failed")
		return perr
	}

	in := zkp.Inputs{SessionID: s.nonce, Challenge: s.challenge, Solution: s.candidate}
	w, err := s.prover.Execute(ctx, in)
	if err != nil {
		return fail("execute", err)
	}
	artifact, err := s.prover.GenerateProof(ctx, w)
	if err != nil {
		return fail("prove", err)
	}
	ok, err := s.prover.VerifyProof(ctx, artifact)
	if err != nil {
		return fail("verify", err)
	}
	if !ok {
		return fail("verify", nil)
	}

	s.artifact = artifact
	s.state = StateProved
	s.log.Info().Str("fingerprint", fingerprint(artifact.Proof)).Msg("proof generated and locally verified")
	return nil
}

// Fingerprint derives a short user-facing tag from the first and last
// proof bytes. A UI affordance only, never a trust anchor.
func (s *Session) Fingerprint() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifact == nil {
		return ""
	}
	return fingerprint(s.artifact.Proof)
}

func fingerprint(proof []byte) string {
	if len(proof) < 8 {
		return zkp.ToHex(proof)
	}
	return zkp.ToHex(proof[:4]) + ".." + zkp.ToHex(proof[len(proof)-4:])
}

// Export serializes the artifact for publication. Export is idempotent
// and repeatable; it never invalidates the proof.
func (s *Session) Export() (zkp.Export, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.artifact == nil || (s.state != StateProved && s.state != StateExported) {
		return zkp.Export{}, ErrNoProof
	}
	e := zkp.EncodeExport(s.artifact, s.nonce.String(), s.frozen, s.clock())
	s.state = StateExported
	return e, nil
}

// SetPublishedURL records where the export landed (a gist URL).
func (s *Session) SetPublishedURL(u string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishedURL = u
}

// PublishedURL returns the recorded publish location, if any.
func (s *Session) PublishedURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publishedURL
}

// VerifyExternal checks an arbitrary (publicInputs, proofHex) pair
// against the verifier. A parallel path: it never reads or mutates the
// session's own artifact or state.
func (s *Session) VerifyExternal(ctx context.Context, publicInputs []string, proofHex string) (bool, error) {
	proof, err := zkp.FromHex(proofHex)
	if err != nil {
		return false, err
	}
	return s.prover.VerifyProof(ctx, &zkp.Artifact{Proof: proof, PublicInputs: publicInputs})
}

// Reset destructively restarts the session: drops the proof and publish
// reference, redraws a fresh nonce, reloads the challenge into a fresh
// candidate, and zeroes the clock. Callers gate this behind user
// confirmation.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	nonce, err := s.sampler.Sample()
	if err != nil {
		return err
	}
	s.nonce = nonce
	s.candidate = s.challenge
	s.artifact = nil
	s.publishedURL = ""
	s.frozen = 0
	s.started = s.clock()
	s.state = StateEditing
	s.log.Info().Msg("session reset")
	return nil
}
