// Copyright (C) 2025 Logical Mechanism LLC
// SPDX-License-Identifier: GPL-3.0-only

package oauth

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileStore persists the pending flow as a JSON file so it survives the
// full-page navigation of the authorization redirect.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore stores the pending flow at dir/pending_flow.json.
func NewFileStore(dir string) *FileStore {
	return &FileStore{path: filepath.Join(dir, "pending_flow.json")}
}

// Save writes the flow, replacing any previous one.
func (s *FileStore) Save(flow PendingFlow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(flow)
}

// Take reads and deletes the stored flow. The delete happens whether or
// not the caller accepts the record: single use.
func (s *FileStore) Take() (PendingFlow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return PendingFlow{}, false, nil
	}
	if err != nil {
		return PendingFlow{}, false, err
	}
	if err := os.Remove(s.path); err != nil {
		return PendingFlow{}, false, err
	}
	var flow PendingFlow
	if err := json.Unmarshal(data, &flow); err != nil {
		return PendingFlow{}, false, err
	}
	return flow, true, nil
}

// MemStore is an in-memory Store for tests and single-process use.
type MemStore struct {
	mu   sync.Mutex
	flow *PendingFlow
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore { return &MemStore{} }

// Save replaces the stored flow.
func (s *MemStore) Save(flow PendingFlow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flow = &flow
	return nil
}

// Take removes and returns the stored flow.
func (s *MemStore) Take() (PendingFlow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.flow == nil {
		return PendingFlow{}, false, nil
	}
	flow := *s.flow
	s.flow = nil
	return flow, true, nil
}
