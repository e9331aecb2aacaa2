// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

package game

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	backend_witness "github.com/consensys/gnark/backend/witness"
	"github.com/rs/zerolog"

	"zksudoku/internal/sudoku"
	"zksudoku/internal/zkp"
)

// fakeProver counts calls and fails on demand; the real gnark prover is
// exercised in package zkp.
type fakeProver struct {
	executeCalls  int
	generateCalls int
	verifyCalls   int

	executeErr  error
	generateErr error
	verifyErr   error
	verifyFalse bool

	lastInputs zkp.Inputs
}

func (f *fakeProver) Execute(ctx context.Context, in zkp.Inputs) (backend_witness.Witness, error) {
	f.executeCalls++
	f.lastInputs = in
	return nil, f.executeErr
}

func (f *fakeProver) GenerateProof(ctx context.Context, w backend_witness.Witness) (*zkp.Artifact, error) {
	f.generateCalls++
	if f.generateErr != nil {
		return nil, f.generateErr
	}
	inputs := make([]string, zkp.NbPublicInputs)
	inputs[0] = f.lastInputs.SessionID.String()
	for i := 1; i < len(inputs); i++ {
		inputs[i] = fmt.Sprintf("%d", f.lastInputs.Challenge[(i-1)/9][(i-1)%9])
	}
	return &zkp.Artifact{
		Proof:        []byte{0xaa, 0xbb, 0xcc, 0xdd, 0x01, 0x02, 0x03, 0x04, 0xee},
		PublicInputs: inputs,
	}, nil
}

func (f *fakeProver) VerifyProof(ctx context.Context, a *zkp.Artifact) (bool, error) {
	f.verifyCalls++
	if f.verifyErr != nil {
		return false, f.verifyErr
	}
	return !f.verifyFalse, nil
}

// fakeClock steps a fixed instant forward on demand.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func newTestSession(t *testing.T, p zkp.Prover, clock *fakeClock) *Session {
	t.Helper()
	s, err := NewSession(sudoku.DefaultChallenge, p, zerolog.Nop(), WithClock(clock.Now))
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	return s
}

func fillSolution(t *testing.T, s *Session) {
	t.Helper()
	for r := 0; r < 9; r++ {
		for c := 0; c < 9; c++ {
			if sudoku.DefaultChallenge[r][c] != 0 {
				continue
			}
			if err := s.SetCell(r, c, sudoku.DefaultSolution[r][c]); err != nil {
				t.Fatalf("set (%d,%d): %v", r, c, err)
			}
		}
	}
}

func TestNewSession_InitialState(t *testing.T) {
	s := newTestSession(t, &fakeProver{}, newFakeClock())
	if s.State() != StateEditing {
		t.Fatalf("state = %v, want editing", s.State())
	}
	if s.Candidate() != sudoku.DefaultChallenge {
		t.Fatalf("candidate must start as a copy of the challenge")
	}
	if s.ChallengeID() == "" {
		t.Fatalf("session nonce missing")
	}
}

func TestSetCell_FixedCellRejected(t *testing.T) {
	s := newTestSession(t, &fakeProver{}, newFakeClock())
	err := s.SetCell(0, 0, 9) // (0,0) is a clue
	if !errors.Is(err, ErrFixedCell) {
		t.Fatalf("want ErrFixedCell, got %v", err)
	}
}

func TestSetCell_OutOfRange(t *testing.T) {
	s := newTestSession(t, &fakeProver{}, newFakeClock())
	for _, tc := range [][3]int{{-1, 0, 1}, {0, 9, 1}, {0, 0, 10}, {0, 0, -1}} {
		if err := s.SetCell(tc[0], tc[1], tc[2]); !errors.Is(err, ErrCellOutOfRange) {
			t.Fatalf("SetCell(%v): want ErrCellOutOfRange, got %v", tc, err)
		}
	}
}

func TestGenerateProof_RejectedWhileEditing(t *testing.T) {
	p := &fakeProver{}
	s := newTestSession(t, p, newFakeClock())
	err := s.GenerateProof(context.Background())
	if !errors.Is(err, ErrNotSolved) {
		t.Fatalf("want ErrNotSolved, got %v", err)
	}
	if p.executeCalls != 0 || p.generateCalls != 0 || p.verifyCalls != 0 {
		t.Fatalf("prover must not be invoked from editing: %+v", p)
	}
	if s.State() != StateEditing {
		t.Fatalf("state = %v, want editing", s.State())
	}
}

func TestCheckSolution_Incomplete(t *testing.T) {
	s := newTestSession(t, &fakeProver{}, newFakeClock())
	ok, v := s.CheckSolution()
	if ok {
		t.Fatalf("incomplete grid accepted")
	}
	if v == nil || v.Row != 0 || v.Col != 2 {
		t.Fatalf("want first empty cell (0,2) reported, got %v", v)
	}
	if s.State() != StateEditing {
		t.Fatalf("state = %v, want editing", s.State())
	}
}

func TestCheckSolution_FreezesElapsed(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(t, &fakeProver{}, clock)
	fillSolution(t, s)

	clock.Advance(90 * time.Second)
	ok, v := s.CheckSolution()
	if !ok {
		t.Fatalf("valid solution rejected: %v", v)
	}
	if s.State() != StateSolved {
		t.Fatalf("state = %v, want solved", s.State())
	}
	if got := s.Elapsed(); got != 90*time.Second {
		t.Fatalf("elapsed = %v, want 90s", got)
	}

	// Time passing after the solve must not move the frozen value.
	clock.Advance(time.Hour)
	if got := s.Elapsed(); got != 90*time.Second {
		t.Fatalf("elapsed moved after solve: %v", got)
	}
}

func TestSetCell_AfterSolvedReturnsToEditing(t *testing.T) {
	clock := newFakeClock()
	s := newTestSession(t, &fakeProver{}, clock)
	fillSolution(t, s)
	if ok, _ := s.CheckSolution(); !ok {
		t.Fatalf("solve failed")
	}

	if err := s.SetCell(0, 2, 1); err != nil {
		t.Fatalf("edit after solve: %v", err)
	}
	if s.State() != StateEditing {
		t.Fatalf("state = %v, want editing", s.State())
	}

	// The clock resumes.
	clock.Advance(10 * time.Second)
	if got := s.Elapsed(); got == 0 {
		t.Fatalf("clock did not resume after edit")
	}
}

func TestGenerateProof_Success(t *testing.T) {
	p := &fakeProver{}
	s := newTestSession(t, p, newFakeClock())
	fillSolution(t, s)
	if ok, _ := s.CheckSolution(); !ok {
		t.Fatalf("solve failed")
	}

	if err := s.GenerateProof(context.Background()); err != nil {
		t.Fatalf("generate proof: %v", err)
	}
	if s.State() != StateProved {
		t.Fatalf("state = %v, want proved", s.State())
	}
	if p.executeCalls != 1 || p.generateCalls != 1 || p.verifyCalls != 1 {
		t.Fatalf("prover steps: %+v, want exactly one of each", p)
	}
	if p.lastInputs.SessionID.String() != s.ChallengeID() {
		t.Fatalf("prover saw nonce %s, session holds %s", p.lastInputs.SessionID, s.ChallengeID())
	}
	if p.lastInputs.Solution != sudoku.DefaultSolution {
		t.Fatalf("prover did not receive the candidate solution")
	}

	// Fingerprint derives from the first and last proof bytes.
	if got, want := s.Fingerprint(), "aabbccdd..020304ee"; got != want {
		t.Fatalf("fingerprint = %q, want %q", got, want)
	}
}

func TestGenerateProof_StepFailuresReturnToEditing(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*fakeProver)
		step string
	}{
		{"execute error", func(p *fakeProver) { p.executeErr = errors.New("boom") }, "execute"},
		{"generate error", func(p *fakeProver) { p.generateErr = errors.New("boom") }, "prove"},
		{"verify error", func(p *fakeProver) { p.verifyErr = errors.New("boom") }, "verify"},
		{"verify false", func(p *fakeProver) { p.verifyFalse = true }, "verify"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := &fakeProver{}
			tc.mod(p)
			s := newTestSession(t, p, newFakeClock())
			fillSolution(t, s)
			if ok, _ := s.CheckSolution(); !ok {
				t.Fatalf("solve failed")
			}

			err := s.GenerateProof(context.Background())
			var perr *ProverError
			if !errors.As(err, &perr) {
				t.Fatalf("want ProverError, got %v", err)
			}
			if perr.Step != tc.step {
				t.Fatalf("step = %q, want %q", perr.Step, tc.step)
			}
			if s.State() != StateEditing {
				t.Fatalf("state = %v, want editing after failure", s.State())
			}
		})
	}
}

func TestExport(t *testing.T) {
	clock := newFakeClock()
	p := &fakeProver{}
	s := newTestSession(t, p, clock)

	if _, err := s.Export(); !errors.Is(err, ErrNoProof) {
		t.Fatalf("export without proof: want ErrNoProof, got %v", err)
	}

	fillSolution(t, s)
	clock.Advance(45 * time.Second)
	if ok, _ := s.CheckSolution(); !ok {
		t.Fatalf("solve failed")
	}
	if err := s.GenerateProof(context.Background()); err != nil {
		t.Fatalf("prove: %v", err)
	}

	e1, err := s.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if s.State() != StateExported {
		t.Fatalf("state = %v, want exported", s.State())
	}
	if e1.TimeInMs != 45000 {
		t.Fatalf("timeInMs = %d, want 45000", e1.TimeInMs)
	}
	if e1.ChallengeID != s.ChallengeID() {
		t.Fatalf("challengeId mismatch")
	}

	// Export is idempotent and repeatable.
	e2, err := s.Export()
	if err != nil {
		t.Fatalf("second export: %v", err)
	}
	if e2.Proof != e1.Proof || e2.TimeInMs != e1.TimeInMs || e2.ChallengeID != e1.ChallengeID {
		t.Fatalf("export not repeatable: %+v vs %+v", e1, e2)
	}

	// Round trip back to the artifact.
	a, err := zkp.ToArtifact(e1)
	if err != nil {
		t.Fatalf("toArtifact: %v", err)
	}
	if len(a.PublicInputs) != zkp.NbPublicInputs {
		t.Fatalf("artifact inputs = %d", len(a.PublicInputs))
	}
}

func TestVerifyExternal_DoesNotTouchState(t *testing.T) {
	p := &fakeProver{}
	s := newTestSession(t, p, newFakeClock())

	ok, err := s.VerifyExternal(context.Background(), []string{"1"}, "abcd")
	if err != nil {
		t.Fatalf("verify external: %v", err)
	}
	if !ok {
		t.Fatalf("fake prover accepts everything")
	}
	if s.State() != StateEditing {
		t.Fatalf("external verification mutated state: %v", s.State())
	}
	if p.verifyCalls != 1 {
		t.Fatalf("verify calls = %d", p.verifyCalls)
	}
}

func TestVerifyExternal_BadHex(t *testing.T) {
	s := newTestSession(t, &fakeProver{}, newFakeClock())
	_, err := s.VerifyExternal(context.Background(), []string{"1"}, "xyz")
	var ferr *zkp.FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("want FormatError, got %v", err)
	}
}

func TestReset(t *testing.T) {
	clock := newFakeClock()
	p := &fakeProver{}
	s := newTestSession(t, p, clock)
	fillSolution(t, s)
	clock.Advance(time.Minute)
	if ok, _ := s.CheckSolution(); !ok {
		t.Fatalf("solve failed")
	}
	if err := s.GenerateProof(context.Background()); err != nil {
		t.Fatalf("prove: %v", err)
	}
	s.SetPublishedURL("https://gist.example/abc")
	oldNonce := s.ChallengeID()

	if err := s.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if s.State() != StateEditing {
		t.Fatalf("state = %v, want editing", s.State())
	}
	if s.Candidate() != sudoku.DefaultChallenge {
		t.Fatalf("candidate not reloaded from challenge")
	}
	if s.Fingerprint() != "" {
		t.Fatalf("proof survived reset")
	}
	if s.PublishedURL() != "" {
		t.Fatalf("publish reference survived reset")
	}
	if s.Elapsed() != 0 {
		t.Fatalf("elapsed not zeroed: %v", s.Elapsed())
	}
	if s.ChallengeID() == oldNonce {
		t.Fatalf("nonce not redrawn on reset")
	}
}

func TestConflictsPassThrough(t *testing.T) {
	s := newTestSession(t, &fakeProver{}, newFakeClock())
	got := s.Conflicts(0, 2, 5)
	if !got.Row || got.Column || got.Box {
		t.Fatalf("got %+v, want row-only conflict", got)
	}
}
