// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

// setup.go persists the compiled constraint system and Groth16 keys so
// the circuit is compiled and set up once, then reused across runs. A
// blake2b digest manifest guards against loading a torn or mismatched
// cache.

package zkp

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"golang.org/x/crypto/blake2b"
)

const (
	ccsFile      = "ccs.bin"
	pkFile       = "pk.bin"
	vkFile       = "vk.bin"
	manifestFile = "manifest.json"
)

// manifest records a blake2b-224 digest per setup file.
type manifest struct {
	Digests map[string]string `json:"digests"`
}

// fileDigest computes the blake2b-224 digest of a file as lowercase hex.
func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h, err := blake2b.New(28, nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SetupFilesExist reports whether a complete setup cache is present.
func SetupFilesExist(dir string) bool {
	for _, name := range []string{ccsFile, pkFile, vkFile, manifestFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

// SaveSetupFiles writes the constraint system, proving key, verifying
// key, and the digest manifest.
func SaveSetupFiles(ccs constraint.ConstraintSystem, pk groth16.ProvingKey, vk groth16.VerifyingKey, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	write := func(name string, src io.WriterTo) error {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		defer f.Close()
		if _, err := src.WriteTo(f); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		return nil
	}

	if err := write(ccsFile, ccs); err != nil {
		return err
	}
	if err := write(pkFile, pk); err != nil {
		return err
	}
	if err := write(vkFile, vk); err != nil {
		return err
	}

	m := manifest{Digests: make(map[string]string, 3)}
	for _, name := range []string{ccsFile, pkFile, vkFile} {
		d, err := fileDigest(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("digest %s: %w", name, err)
		}
		m.Digests[name] = d
	}

	f, err := os.Create(filepath.Join(dir, manifestFile))
	if err != nil {
		return fmt.Errorf("create %s: %w", manifestFile, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}

// LoadSetupFiles verifies the manifest digests and loads the constraint
// system, proving key, and verifying key from disk.
func LoadSetupFiles(dir string) (constraint.ConstraintSystem, groth16.ProvingKey, groth16.VerifyingKey, error) {
	mb, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("read %s: %w", manifestFile, err)
	}
	var m manifest
	if err := json.Unmarshal(mb, &m); err != nil {
		return nil, nil, nil, fmt.Errorf("parse %s: %w", manifestFile, err)
	}
	for _, name := range []string{ccsFile, pkFile, vkFile} {
		want, ok := m.Digests[name]
		if !ok {
			return nil, nil, nil, fmt.Errorf("manifest has no digest for %s", name)
		}
		got, err := fileDigest(filepath.Join(dir, name))
		if err != nil {
			return nil, nil, nil, fmt.Errorf("digest %s: %w", name, err)
		}
		if got != want {
			return nil, nil, nil, fmt.Errorf("%s digest mismatch: cache is corrupt, delete %s and re-run setup", name, dir)
		}
	}

	read := func(name string, dst io.ReaderFrom) error {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("open %s: %w", name, err)
		}
		defer f.Close()
		if _, err := dst.ReadFrom(f); err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		return nil
	}

	ccs := groth16.NewCS(ecc.BN254)
	if err := read(ccsFile, ccs); err != nil {
		return nil, nil, nil, err
	}
	pk := groth16.NewProvingKey(ecc.BN254)
	if err := read(pkFile, pk); err != nil {
		return nil, nil, nil, err
	}
	vk := groth16.NewVerifyingKey(ecc.BN254)
	if err := read(vkFile, vk); err != nil {
		return nil, nil, nil, err
	}
	return ccs, pk, vk, nil
}
