package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v4"
)

func openTestStorage(t *testing.T) *Storage {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "chessplay-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	dbDir := filepath.Join(tmpDir, "db")
	opts := badger.DefaultOptions(dbDir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		t.Fatalf("failed to open badger db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return &Storage{db: db}
}

func TestCorrectionHistoryRoundTrip(t *testing.T) {
	s := openTestStorage(t)

	table := make([]int16, CorrectionHistorySize)
	table[0] = 1234
	table[42] = -5678
	table[CorrectionHistorySize-1] = 42

	if err := s.SaveCorrectionHistory(table); err != nil {
		t.Fatalf("SaveCorrectionHistory: %v", err)
	}

	loaded := make([]int16, CorrectionHistorySize)
	if err := s.LoadCorrectionHistory(loaded); err != nil {
		t.Fatalf("LoadCorrectionHistory: %v", err)
	}

	for i, v := range table {
		if loaded[i] != v {
			t.Fatalf("correction history entry %d: got %d, want %d", i, loaded[i], v)
		}
	}
}

func TestCorrectionHistoryMissingIsZeroed(t *testing.T) {
	s := openTestStorage(t)

	loaded := make([]int16, CorrectionHistorySize)
	loaded[10] = 99 // sentinel to confirm Load doesn't touch it when absent

	if err := s.LoadCorrectionHistory(loaded); err != nil {
		t.Fatalf("LoadCorrectionHistory on empty db: %v", err)
	}
	if loaded[10] != 99 {
		t.Error("expected LoadCorrectionHistory to leave out untouched when nothing is stored")
	}
}

func TestCorrectionHistoryWrongSize(t *testing.T) {
	s := openTestStorage(t)

	if err := s.SaveCorrectionHistory(make([]int16, 10)); err == nil {
		t.Error("expected an error saving a mis-sized correction history table")
	}
	if err := s.LoadCorrectionHistory(make([]int16, 10)); err == nil {
		t.Error("expected an error loading into a mis-sized correction history table")
	}
}

func TestLearnedBookEntriesRoundTrip(t *testing.T) {
	s := openTestStorage(t)

	const hash uint64 = 0x0123456789abcdef
	entries := []LearnedBookEntry{
		{Move: 0x1234, Weight: 10},
		{Move: 0x5678, Weight: 3},
	}

	if err := s.SaveLearnedBookEntries(hash, entries); err != nil {
		t.Fatalf("SaveLearnedBookEntries: %v", err)
	}

	loaded, err := s.LoadLearnedBookEntries(hash)
	if err != nil {
		t.Fatalf("LoadLearnedBookEntries: %v", err)
	}
	if len(loaded) != len(entries) {
		t.Fatalf("got %d entries, want %d", len(loaded), len(entries))
	}
	for i, e := range entries {
		if loaded[i] != e {
			t.Errorf("entry %d: got %+v, want %+v", i, loaded[i], e)
		}
	}
}

func TestLearnedBookEntriesMissing(t *testing.T) {
	s := openTestStorage(t)

	entries, err := s.LoadLearnedBookEntries(0xdeadbeef)
	if err != nil {
		t.Fatalf("LoadLearnedBookEntries: %v", err)
	}
	if entries != nil {
		t.Errorf("expected nil entries for an unknown hash, got %+v", entries)
	}
}

func TestEachLearnedBookEntry(t *testing.T) {
	s := openTestStorage(t)

	want := map[uint64][]LearnedBookEntry{
		1: {{Move: 1, Weight: 1}},
		2: {{Move: 2, Weight: 2}, {Move: 3, Weight: 3}},
	}
	for hash, entries := range want {
		if err := s.SaveLearnedBookEntries(hash, entries); err != nil {
			t.Fatalf("SaveLearnedBookEntries(%d): %v", hash, err)
		}
	}

	seen := map[uint64][]LearnedBookEntry{}
	err := s.EachLearnedBookEntry(func(hash uint64, entries []LearnedBookEntry) error {
		seen[hash] = entries
		return nil
	})
	if err != nil {
		t.Fatalf("EachLearnedBookEntry: %v", err)
	}

	if len(seen) != len(want) {
		t.Fatalf("got %d positions, want %d", len(seen), len(want))
	}
	for hash, entries := range want {
		if len(seen[hash]) != len(entries) {
			t.Errorf("hash %d: got %d entries, want %d", hash, len(seen[hash]), len(entries))
		}
	}
}

func TestDataPaths(t *testing.T) {
	dataDir, err := GetDataDir()
	if err != nil {
		t.Fatalf("GetDataDir failed: %v", err)
	}
	if dataDir == "" {
		t.Error("GetDataDir returned empty path")
	}

	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		t.Errorf("data directory was not created: %s", dataDir)
	}
}
