// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package liveness

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/bureau-foundation/rendezvous/lib/procinfo"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "slot.json"), nil)
}

func TestWriteRead(t *testing.T) {
	store := testStore(t)
	record := Record{ProcessID: 4821, StartTime: "1760000000:123456", Version: "0.3.0"}

	if err := store.Write(record); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, ok := store.Read()
	if !ok {
		t.Fatal("Read returned absent after Write")
	}
	if got != record {
		t.Errorf("Read = %+v, want %+v", got, record)
	}

	info, err := os.Stat(store.Path())
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		t.Errorf("record mode = %o, want 600", mode)
	}
}

func TestWriteLeavesNoTemporaryFiles(t *testing.T) {
	store := testStore(t)
	for pid := 1; pid <= 3; pid++ {
		if err := store.Write(Record{ProcessID: pid, StartTime: "t", Version: "v"}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	entries, err := os.ReadDir(filepath.Dir(store.Path()))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		var names []string
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		t.Errorf("directory contains %v, want only the record", names)
	}
	got, _ := store.Read()
	if got.ProcessID != 3 {
		t.Errorf("ProcessID = %d, want 3 (last write wins)", got.ProcessID)
	}
}

func TestWriteIntoMissingDirectoryIsIOError(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing", "slot.json"), nil)
	err := store.Write(Record{ProcessID: 1, StartTime: "t"})
	if !errors.Is(err, ErrIO) {
		t.Fatalf("Write error = %v, want ErrIO", err)
	}
}

func TestReadTreatsDamageAsAbsent(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"truncated":      `{"process_id": 4821, "start_ti`,
		"not json":       "pid=4821\n",
		"wrong types":    `{"process_id": "4821", "start_time": "t"}`,
		"missing pid":    `{"start_time": "t", "version": "1"}`,
		"missing start":  `{"process_id": 4821, "version": "1"}`,
		"empty object":   `{}`,
		"negative pid":   `{"process_id": -1, "start_time": "t"}`,
		"json array":     `[4821, "t", "1"]`,
		"binary garbage": "\x00\xff\x13\x37",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			store := testStore(t)
			if err := os.WriteFile(store.Path(), []byte(content), 0600); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			if record, ok := store.Read(); ok {
				t.Errorf("Read = %+v, true; want absent", record)
			}
		})
	}
}

func TestReadMissingFile(t *testing.T) {
	if _, ok := testStore(t).Read(); ok {
		t.Fatal("Read of missing file reported a record")
	}
}

func TestReadUnreadableFile(t *testing.T) {
	store := testStore(t)
	// A directory at the record path cannot be read as a file.
	if err := os.Mkdir(store.Path(), 0700); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if _, ok := store.Read(); ok {
		t.Fatal("Read of a directory reported a record")
	}
}

func TestRemoveIsBestEffort(t *testing.T) {
	store := testStore(t)
	store.Remove() // missing file: no panic, nothing to report

	if err := store.Write(Record{ProcessID: 1, StartTime: "t"}); err != nil {
		t.Fatalf("Write: %v", err)
	}
	store.Remove()
	if _, err := os.Stat(store.Path()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("record still present after Remove: %v", err)
	}
}

func TestRemoveIfOwned(t *testing.T) {
	store := testStore(t)
	mine := Record{ProcessID: 10, StartTime: "a"}
	successor := Record{ProcessID: 11, StartTime: "b"}

	if err := store.Write(successor); err != nil {
		t.Fatalf("Write: %v", err)
	}
	store.RemoveIfOwned(mine)
	if _, ok := store.Read(); !ok {
		t.Fatal("RemoveIfOwned deleted another owner's record")
	}

	store.RemoveIfOwned(successor)
	if _, ok := store.Read(); ok {
		t.Fatal("RemoveIfOwned left the owner's own record")
	}
}

func TestConcurrentReadersNeverSeePartialRecords(t *testing.T) {
	store := testStore(t)
	if err := store.Write(Record{ProcessID: 1, StartTime: "start-1", Version: "v"}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var waitGroup sync.WaitGroup
	stop := make(chan struct{})
	failures := make(chan Record, 1)

	waitGroup.Add(1)
	go func() {
		defer waitGroup.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			record, ok := store.Read()
			if !ok || record.StartTime == "" {
				select {
				case failures <- record:
				default:
				}
				return
			}
		}
	}()

	for pid := 2; pid < 200; pid++ {
		if err := store.Write(Record{ProcessID: pid, StartTime: "start", Version: "v"}); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	close(stop)
	waitGroup.Wait()

	select {
	case record := <-failures:
		t.Fatalf("reader observed an absent or partial record mid-rewrite: %+v", record)
	default:
	}
}

func TestClaim(t *testing.T) {
	fake := procinfo.NewFake()
	checker := NewChecker(fake, nil)
	store := testStore(t)

	first := Record{ProcessID: 100, StartTime: "t100", Version: "1"}
	fake.Start(100, "t100")
	if err := store.Claim(checker, first); err != nil {
		t.Fatalf("Claim on empty slot: %v", err)
	}

	second := Record{ProcessID: 200, StartTime: "t200", Version: "1"}
	fake.Start(200, "t200")
	if err := store.Claim(checker, second); !errors.Is(err, ErrOwned) {
		t.Fatalf("Claim over live owner: err = %v, want ErrOwned", err)
	}

	// Re-claiming by the owner itself is allowed.
	if err := store.Claim(checker, first); err != nil {
		t.Fatalf("owner re-claim: %v", err)
	}

	fake.Exit(100)
	if err := store.Claim(checker, second); err != nil {
		t.Fatalf("Claim over dead owner: %v", err)
	}
	if got, _ := store.Read(); got != second {
		t.Errorf("record after reclaim = %+v, want %+v", got, second)
	}
}
