package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Storage keys
const (
	keyCorrectionHistory = "correction_history"
	bookEntryPrefix      = "book/"
)

// CorrectionHistorySize is the number of int16 slots in a persisted
// correction history table, matching engine.CorrectionHistory's
// positionCorr array indexed by the low 16 bits of a position's Zobrist hash.
const CorrectionHistorySize = 65536

// LearnedBookEntry is a single reinforced book move for a position, keyed
// externally by the position's Zobrist hash. Move is the move encoded the
// way the caller's book representation encodes it (callers in internal/book
// use the same encoding Polyglot book entries use); Weight accumulates the
// way Polyglot book weights do, so entries learned from engine self-play can
// be merged directly into an existing Polyglot book.
type LearnedBookEntry struct {
	Move   uint16 `json:"move"`
	Weight uint16 `json:"weight"`
}

// Storage wraps BadgerDB for persisting engine state across restarts: the
// correction history table and reinforced book moves. The in-memory
// transposition table is never persisted here; it is rebuilt fresh every run.
type Storage struct {
	db *badger.DB
}

// NewStorage opens (creating if necessary) the on-disk database.
func NewStorage() (*Storage, error) {
	dbDir, err := GetDatabaseDir()
	if err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &Storage{db: db}, nil
}

// Close closes the database.
func (s *Storage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveCorrectionHistory persists a full correction history table. table must
// have exactly CorrectionHistorySize entries.
func (s *Storage) SaveCorrectionHistory(table []int16) error {
	if len(table) != CorrectionHistorySize {
		return fmt.Errorf("storage: correction history has %d entries, want %d", len(table), CorrectionHistorySize)
	}

	buf := make([]byte, CorrectionHistorySize*2)
	for i, v := range table {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(v))
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyCorrectionHistory), buf)
	})
}

// LoadCorrectionHistory loads a previously persisted correction history
// table into out, which must have exactly CorrectionHistorySize entries. If
// no table has been saved yet, out is left zeroed and no error is returned.
func (s *Storage) LoadCorrectionHistory(out []int16) error {
	if len(out) != CorrectionHistorySize {
		return fmt.Errorf("storage: correction history has %d entries, want %d", len(out), CorrectionHistorySize)
	}

	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyCorrectionHistory))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			if len(val) != CorrectionHistorySize*2 {
				return fmt.Errorf("storage: stored correction history has %d bytes, want %d", len(val), CorrectionHistorySize*2)
			}
			for i := range out {
				out[i] = int16(binary.LittleEndian.Uint16(val[i*2:]))
			}
			return nil
		})
	})
}

// SaveLearnedBookEntries replaces the reinforced book entries for a
// position's Zobrist hash.
func (s *Storage) SaveLearnedBookEntries(hash uint64, entries []LearnedBookEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(bookKey(hash), data)
	})
}

// LoadLearnedBookEntries returns the reinforced book entries for a position's
// Zobrist hash, or nil if none have been learned for it.
func (s *Storage) LoadLearnedBookEntries(hash uint64) ([]LearnedBookEntry, error) {
	var entries []LearnedBookEntry

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(bookKey(hash))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entries)
		})
	})

	return entries, err
}

// EachLearnedBookEntry calls fn once per persisted position, in key order,
// for every hash that has reinforced book entries. It is used to merge the
// learned book back into a Polyglot book file at shutdown.
func (s *Storage) EachLearnedBookEntry(fn func(hash uint64, entries []LearnedBookEntry) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(bookEntryPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(bookEntryPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			hash, err := hashFromBookKey(item.Key())
			if err != nil {
				return err
			}

			var entries []LearnedBookEntry
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &entries)
			}); err != nil {
				return err
			}

			if err := fn(hash, entries); err != nil {
				return err
			}
		}
		return nil
	})
}

func bookKey(hash uint64) []byte {
	key := make([]byte, len(bookEntryPrefix)+8)
	copy(key, bookEntryPrefix)
	binary.BigEndian.PutUint64(key[len(bookEntryPrefix):], hash)
	return key
}

func hashFromBookKey(key []byte) (uint64, error) {
	suffix := bytes.TrimPrefix(key, []byte(bookEntryPrefix))
	if len(suffix) != 8 {
		return 0, fmt.Errorf("storage: malformed book key %q", key)
	}
	return binary.BigEndian.Uint64(suffix), nil
}
