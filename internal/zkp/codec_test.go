// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

package zkp

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestFromHex(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  []byte
		fails bool
	}{
		{"lowercase", "deadbeef", []byte{0xde, 0xad, 0xbe, 0xef}, false},
		{"uppercase accepted", "DEADBEEF", []byte{0xde, 0xad, 0xbe, 0xef}, false},
		{"mixed case accepted", "DeAdBeEf", []byte{0xde, 0xad, 0xbe, 0xef}, false},
		{"0x prefix stripped", "0xdeadbeef", []byte{0xde, 0xad, 0xbe, 0xef}, false},
		{"0X prefix stripped", "0Xdeadbeef", []byte{0xde, 0xad, 0xbe, 0xef}, false},
		{"empty", "", []byte{}, false},
		{"odd length", "abc", nil, true},
		{"odd length after prefix", "0xabc", nil, true},
		{"non-hex digits", "zzzz", nil, true},
		{"double prefix", "0x0xab", nil, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := FromHex(tc.in)
			if tc.fails {
				if err == nil {
					t.Fatalf("want error")
				}
				var ferr *FormatError
				if !errors.As(err, &ferr) {
					t.Fatalf("want FormatError, got %T: %v", err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("FromHex(%q): %v", tc.in, err)
			}
			if !bytes.Equal(got, tc.want) {
				t.Fatalf("got % x, want % x", got, tc.want)
			}
		})
	}
}

func TestToHex(t *testing.T) {
	if got := ToHex([]byte{0xde, 0xad, 0x00, 0x01}); got != "dead0001" {
		t.Fatalf("got %q", got)
	}
	if got := ToHex(nil); got != "" {
		t.Fatalf("got %q, want empty", got)
	}
}

func testArtifact() *Artifact {
	return &Artifact{
		Proof:        []byte{0x01, 0x02, 0xab, 0xcd, 0xef, 0x00},
		PublicInputs: []string{"42", "0", "21888242871839275222246405745257275088548364400416034343698204186575808495616"},
	}
}

func TestEncodeExport(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	e := EncodeExport(testArtifact(), "12345", 90*time.Second, now)

	if e.Proof != "0102abcdef00" {
		t.Fatalf("proof hex = %q", e.Proof)
	}
	if e.ChallengeID != "12345" {
		t.Fatalf("challengeId = %q", e.ChallengeID)
	}
	if e.TimeInMs != 90000 {
		t.Fatalf("timeInMs = %d", e.TimeInMs)
	}
	if e.Timestamp != "2025-06-01T12:30:00Z" {
		t.Fatalf("timestamp = %q", e.Timestamp)
	}
	if len(e.PublicInputs) != 3 {
		t.Fatalf("publicInputs = %v", e.PublicInputs)
	}
}

func TestDecodeExport_MissingFields(t *testing.T) {
	full := `{
		"challengeId": "1",
		"proof": "abcd",
		"publicInputs": ["1"],
		"timeInMs": 5,
		"timestamp": "2025-06-01T12:30:00Z"
	}`
	if _, err := DecodeExport([]byte(full)); err != nil {
		t.Fatalf("well-formed export rejected: %v", err)
	}

	for _, missing := range []string{"challengeId", "proof", "publicInputs", "timeInMs", "timestamp"} {
		t.Run("missing "+missing, func(t *testing.T) {
			doc := `{`
			first := true
			for _, f := range []struct{ k, v string }{
				{"challengeId", `"1"`},
				{"proof", `"abcd"`},
				{"publicInputs", `["1"]`},
				{"timeInMs", `5`},
				{"timestamp", `"2025-06-01T12:30:00Z"`},
			} {
				if f.k == missing {
					continue
				}
				if !first {
					doc += ","
				}
				doc += `"` + f.k + `":` + f.v
				first = false
			}
			doc += `}`
			_, err := DecodeExport([]byte(doc))
			var ferr *FormatError
			if !errors.As(err, &ferr) {
				t.Fatalf("want FormatError, got %v", err)
			}
			if ferr.Field != missing {
				t.Fatalf("want field %q flagged, got %q", missing, ferr.Field)
			}
		})
	}
}

func TestDecodeExport_Mistyped(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not JSON", `nonsense`},
		{"timeInMs string", `{"challengeId":"1","proof":"abcd","publicInputs":["1"],"timeInMs":"5","timestamp":"t"}`},
		{"publicInputs numbers", `{"challengeId":"1","proof":"abcd","publicInputs":[1,2],"timeInMs":5,"timestamp":"t"}`},
		{"proof not hex", `{"challengeId":"1","proof":"xyz!","publicInputs":["1"],"timeInMs":5,"timestamp":"t"}`},
		{"proof odd length", `{"challengeId":"1","proof":"abc","publicInputs":["1"],"timeInMs":5,"timestamp":"t"}`},
		{"negative timeInMs", `{"challengeId":"1","proof":"abcd","publicInputs":["1"],"timeInMs":-1,"timestamp":"t"}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeExport([]byte(tc.doc))
			var ferr *FormatError
			if !errors.As(err, &ferr) {
				t.Fatalf("want FormatError, got %v", err)
			}
		})
	}
}

func TestExportRoundTrip(t *testing.T) {
	orig := testArtifact()
	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	encoded := EncodeExport(orig, "777", 42*time.Millisecond, now)

	data, err := MarshalExport(encoded)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	decoded, err := DecodeExport(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ChallengeID != encoded.ChallengeID || decoded.TimeInMs != encoded.TimeInMs ||
		decoded.Timestamp != encoded.Timestamp || decoded.Proof != encoded.Proof {
		t.Fatalf("metadata changed across marshal/decode: %+v vs %+v", decoded, encoded)
	}

	a1, err := ToArtifact(decoded)
	if err != nil {
		t.Fatalf("toArtifact: %v", err)
	}

	// Re-encode reusing the original metadata, then convert again: the
	// artifact must survive byte for byte, element for element.
	reencoded := EncodeExport(a1, decoded.ChallengeID, time.Duration(decoded.TimeInMs)*time.Millisecond, now)
	a2, err := ToArtifact(reencoded)
	if err != nil {
		t.Fatalf("toArtifact after re-encode: %v", err)
	}

	if !bytes.Equal(a1.Proof, a2.Proof) || !bytes.Equal(a1.Proof, orig.Proof) {
		t.Fatalf("proof bytes changed across round trip")
	}
	if len(a1.PublicInputs) != len(orig.PublicInputs) {
		t.Fatalf("publicInputs length changed")
	}
	for i := range a1.PublicInputs {
		if a1.PublicInputs[i] != orig.PublicInputs[i] || a2.PublicInputs[i] != orig.PublicInputs[i] {
			t.Fatalf("publicInputs[%d] changed across round trip", i)
		}
	}
}

func TestMarshalExport_Stable(t *testing.T) {
	e := EncodeExport(testArtifact(), "9", time.Second, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	data, err := MarshalExport(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	for _, key := range []string{`"challengeId"`, `"proof"`, `"publicInputs"`, `"timeInMs"`, `"timestamp"`} {
		if !strings.Contains(s, key) {
			t.Fatalf("marshaled export missing %s:\n%s", key, s)
		}
	}
	if !strings.Contains(s, "\n  ") {
		t.Fatalf("export should be pretty-printed:\n%s", s)
	}
}

func TestToArtifact_CopiesInputs(t *testing.T) {
	e := Export{Proof: "ab", PublicInputs: []string{"1", "2"}}
	a, err := ToArtifact(e)
	if err != nil {
		t.Fatalf("toArtifact: %v", err)
	}
	a.PublicInputs[0] = "mutated"
	if e.PublicInputs[0] != "1" {
		t.Fatalf("artifact aliases the export's inputs")
	}
}
