// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bootstrap

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// Slot locates the coordination files for one service endpoint.
type Slot struct {
	// Dir is the state directory holding the slot files.
	Dir string

	// Name is the file stem shared by the record and the lock.
	Name string
}

// NewSlot derives the slot for endpoint (typically a socket path)
// inside stateDir. Equal endpoints always map to the same slot.
func NewSlot(stateDir, endpoint string) Slot {
	digest := blake3.Sum256([]byte(endpoint))
	return Slot{
		Dir:  stateDir,
		Name: "slot-" + hex.EncodeToString(digest[:8]),
	}
}

// RecordPath is the liveness record file.
func (s Slot) RecordPath() string {
	return filepath.Join(s.Dir, s.Name+".json")
}

// LockPath is the creation lock file.
func (s Slot) LockPath() string {
	return filepath.Join(s.Dir, s.Name+".lock")
}

// Ensure creates the state directory if needed.
func (s Slot) Ensure() error {
	if err := os.MkdirAll(s.Dir, 0700); err != nil {
		return fmt.Errorf("creating state directory %s: %w", s.Dir, err)
	}
	return nil
}
