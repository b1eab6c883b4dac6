// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package liveness

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bureau-foundation/rendezvous/lib/procinfo"
)

// Record identifies the presumed owner of a coordination slot.
type Record struct {
	ProcessID int                `json:"process_id"`
	StartTime procinfo.StartTime `json:"start_time"`
	Version   string             `json:"version"`
}

// valid reports whether the record has the fields a liveness check
// needs. A record decoded from "{}" is not valid.
func (r Record) valid() bool {
	return r.ProcessID > 0 && r.StartTime != ""
}

// ErrIO marks filesystem failures writing the record. Callers treat it
// as fatal for the current creation attempt.
var ErrIO = errors.New("liveness record I/O failure")

// ErrOwned is returned by Claim when a live process already owns the
// slot.
var ErrOwned = errors.New("slot is owned by a live process")

// Store reads and writes the record file at a fixed path.
type Store struct {
	path   string
	logger *slog.Logger
}

// NewStore returns a Store for the record file at path. The parent
// directory must exist before Write is called. A nil logger discards
// diagnostics.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{path: path, logger: logger}
}

// Path returns the record file path.
func (s *Store) Path() string { return s.path }

// Write atomically replaces the record file with record. The file has
// mode 0600.
func (s *Store) Write(record Record) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding record: %v", ErrIO, err)
	}
	data = append(data, '\n')

	// A unique temporary name per writer, so concurrent writers never
	// share a half-written file. CreateTemp uses mode 0600.
	file, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: creating temporary record: %v", ErrIO, err)
	}
	temporaryPath := file.Name()

	// Write, sync, close, in that order. Any failure removes the
	// temporary file and reports the first error.
	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("%w: writing %s: %v", ErrIO, temporaryPath, err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(temporaryPath)
		return fmt.Errorf("%w: syncing %s: %v", ErrIO, temporaryPath, err)
	}
	if err := file.Close(); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("%w: closing %s: %v", ErrIO, temporaryPath, err)
	}

	if err := os.Rename(temporaryPath, s.path); err != nil {
		os.Remove(temporaryPath)
		return fmt.Errorf("%w: renaming record into place: %v", ErrIO, err)
	}

	// Make the rename itself durable.
	if directory, err := os.Open(filepath.Dir(s.path)); err == nil {
		directory.Sync()
		directory.Close()
	}
	return nil
}

// Read returns the current record. The second result is false when the
// file is missing, unreadable, or does not parse into a usable record;
// the reason is logged at debug level and never returned.
func (s *Store) Read() (Record, bool) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Debug("liveness record unreadable, treating as absent",
				"path", s.path,
				"error", err,
			)
		}
		return Record{}, false
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		s.logger.Debug("liveness record corrupt, treating as absent",
			"path", s.path,
			"error", err,
		)
		return Record{}, false
	}
	if !record.valid() {
		s.logger.Debug("liveness record incomplete, treating as absent",
			"path", s.path,
			"process_id", record.ProcessID,
		)
		return Record{}, false
	}
	return record, true
}

// Remove deletes the record file. Failures are logged, not returned:
// a record left behind is detected as stale by the next reader.
func (s *Store) Remove() {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("failed to remove liveness record",
			"path", s.path,
			"error", err,
		)
	}
}

// RemoveIfOwned deletes the record file only if it still names record's
// process. A service calls this on exit so it never deletes a record a
// successor has already written.
func (s *Store) RemoveIfOwned(record Record) {
	current, ok := s.Read()
	if !ok || current.ProcessID != record.ProcessID || current.StartTime != record.StartTime {
		return
	}
	s.Remove()
}

// Claim writes record unless the slot is already owned by a different
// live process, in which case it returns an error wrapping ErrOwned.
// A stale record is replaced.
//
// Claim is not atomic with respect to other claimants. Services are
// normally started by the bootstrapper while it holds the creation
// lock, which serializes claims.
func (s *Store) Claim(checker *Checker, record Record) error {
	if current, ok := s.Read(); ok {
		sameOwner := current.ProcessID == record.ProcessID && current.StartTime == record.StartTime
		if !sameOwner && checker.IsOwnerAlive(current) {
			return fmt.Errorf("%w: pid %d (version %s)", ErrOwned, current.ProcessID, current.Version)
		}
		if !sameOwner {
			s.logger.Info("reclaiming stale liveness record",
				"path", s.path,
				"stale_pid", current.ProcessID,
				"stale_version", current.Version,
			)
		}
	}
	return s.Write(record)
}
