// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

package zkp

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// FormatError rejects a malformed hex string or proof export document.
// It never mutates session state; the specific input is refused and the
// caller carries on.
type FormatError struct {
	Field  string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("format: %s", e.Reason)
	}
	return fmt.Sprintf("format: field %q: %s", e.Field, e.Reason)
}

// Artifact is a proof as produced by the prover: opaque proof bytes and
// the ordered public inputs as decimal field-element strings. Immutable
// once produced; a new solve replaces the whole artifact.
type Artifact struct {
	Proof        []byte
	PublicInputs []string
}

// Export is the canonical transport form of an artifact. It is the unit
// written to a paste service and read back for external verification.
// The file encoding is stable across versions: fields are only ever
// added.
type Export struct {
	ChallengeID  string   `json:"challengeId"`
	Proof        string   `json:"proof"` // lowercase hex, no 0x, even length
	PublicInputs []string `json:"publicInputs"`
	TimeInMs     int64    `json:"timeInMs"`
	Timestamp    string   `json:"timestamp"` // RFC 3339
}

// ToHex renders bytes as lowercase hex without a prefix.
func ToHex(b []byte) string { return hex.EncodeToString(b) }

// FromHex decodes a hex string. An optional single leading "0x" is
// stripped and mixed case is accepted; anything else that is not an
// even-length string of hex digits fails with FormatError.
func FromHex(s string) ([]byte, error) {
	trimmed := strings.TrimPrefix(s, "0x")
	if len(trimmed) == len(s) {
		trimmed = strings.TrimPrefix(s, "0X")
	}
	if len(trimmed)%2 != 0 {
		return nil, &FormatError{Reason: "odd-length hex string"}
	}
	b, err := hex.DecodeString(strings.ToLower(trimmed))
	if err != nil {
		return nil, &FormatError{Reason: fmt.Sprintf("invalid hex: %v", err)}
	}
	return b, nil
}

// EncodeExport stamps an artifact with its session metadata. The
// timestamp is the current instant in RFC 3339.
func EncodeExport(a *Artifact, challengeID string, elapsed time.Duration, now time.Time) Export {
	return Export{
		ChallengeID:  challengeID,
		Proof:        ToHex(a.Proof),
		PublicInputs: append([]string(nil), a.PublicInputs...),
		TimeInMs:     elapsed.Milliseconds(),
		Timestamp:    now.UTC().Format(time.RFC3339),
	}
}

// rawExport detects missing fields: absent keys stay nil.
type rawExport struct {
	ChallengeID  *string   `json:"challengeId"`
	Proof        *string   `json:"proof"`
	PublicInputs *[]string `json:"publicInputs"`
	TimeInMs     *int64    `json:"timeInMs"`
	Timestamp    *string   `json:"timestamp"`
}

// DecodeExport parses and validates an export document. Missing or
// mistyped fields, invalid proof hex, and a negative timeInMs all fail
// with FormatError.
func DecodeExport(data []byte) (Export, error) {
	var raw rawExport
	if err := json.Unmarshal(data, &raw); err != nil {
		return Export{}, &FormatError{Reason: fmt.Sprintf("invalid JSON: %v", err)}
	}
	switch {
	case raw.ChallengeID == nil:
		return Export{}, &FormatError{Field: "challengeId", Reason: "missing"}
	case raw.Proof == nil:
		return Export{}, &FormatError{Field: "proof", Reason: "missing"}
	case raw.PublicInputs == nil:
		return Export{}, &FormatError{Field: "publicInputs", Reason: "missing"}
	case raw.TimeInMs == nil:
		return Export{}, &FormatError{Field: "timeInMs", Reason: "missing"}
	case raw.Timestamp == nil:
		return Export{}, &FormatError{Field: "timestamp", Reason: "missing"}
	}
	if *raw.TimeInMs < 0 {
		return Export{}, &FormatError{Field: "timeInMs", Reason: "negative"}
	}
	if _, err := FromHex(*raw.Proof); err != nil {
		return Export{}, &FormatError{Field: "proof", Reason: err.Error()}
	}
	return Export{
		ChallengeID:  *raw.ChallengeID,
		Proof:        *raw.Proof,
		PublicInputs: *raw.PublicInputs,
		TimeInMs:     *raw.TimeInMs,
		Timestamp:    *raw.Timestamp,
	}, nil
}

// ToArtifact drops metadata and hex-decodes the proof. Round-trip law:
// ToArtifact(EncodeExport(DecodeExport(j))) equals ToArtifact(DecodeExport(j))
// byte for byte and element for element.
func ToArtifact(e Export) (*Artifact, error) {
	proof, err := FromHex(e.Proof)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Proof:        proof,
		PublicInputs: append([]string(nil), e.PublicInputs...),
	}, nil
}

// MarshalExport renders the stable, human-readable file form.
func MarshalExport(e Export) ([]byte, error) {
	return json.MarshalIndent(e, "", "  ")
}
