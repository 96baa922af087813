package engine

import (
	"sync"
	"sync/atomic"

	"github.com/tanager-chess/engine/internal/board"
)

// TTFlag indicates the type of bound stored in the transposition table.
type TTFlag uint8

const (
	TTExact      TTFlag = iota // Exact score
	TTLowerBound               // Failed high (beta cutoff)
	TTUpperBound               // Failed low
)

// TTEntry represents an entry in the transposition table.
type TTEntry struct {
	Key      uint32     // Upper 32 bits of Zobrist hash for verification
	BestMove board.Move // Best move found
	Score    int16      // Score (bounded by flag)
	Depth    int8       // Search depth
	Flag     TTFlag     // Type of bound
	Age      uint8      // Generation for replacement
	IsPV     bool       // Entry was stored from a PV node
}

// ttShards is the number of locking shards the table is split across. Bucket
// idx is guarded by shard idx % ttShards, so concurrent workers probing
// and storing at different hashes rarely contend.
const ttShards = 1024

// TranspositionTable is a hash table for storing search results, shared
// across Lazy-SMP workers. Locking is per-shard, not per-table, so workers
// reading and writing different buckets don't serialize against each other.
type TranspositionTable struct {
	entries []TTEntry
	locks   []sync.Mutex
	size    uint64
	mask    uint64
	age     uint8

	hits       uint64
	probes     uint64
	collisions uint64 // Store overwrote a populated slot with a different position
	overwrites uint64 // Store overwrote a populated slot at all (same or different position)
}

// NewTranspositionTable creates a transposition table with the given size in MB.
func NewTranspositionTable(sizeMB int) *TranspositionTable {
	entrySize := uint64(12)
	numEntries := (uint64(sizeMB) * 1024 * 1024) / entrySize

	numEntries = roundDownToPowerOf2(numEntries)
	if numEntries == 0 {
		numEntries = 1
	}

	return &TranspositionTable{
		entries: make([]TTEntry, numEntries),
		locks:   make([]sync.Mutex, ttShards),
		size:    numEntries,
		mask:    numEntries - 1,
	}
}

// roundDownToPowerOf2 rounds n down to the nearest power of 2.
func roundDownToPowerOf2(n uint64) uint64 {
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return (n + 1) >> 1
}

func (tt *TranspositionTable) shardFor(idx uint64) *sync.Mutex {
	return &tt.locks[idx%ttShards]
}

// Probe looks up a position in the transposition table.
// Returns the entry and true if found, otherwise returns empty entry and false.
func (tt *TranspositionTable) Probe(hash uint64) (TTEntry, bool) {
	idx := hash & tt.mask
	lock := tt.shardFor(idx)

	lock.Lock()
	entry := tt.entries[idx]
	lock.Unlock()

	atomic.AddUint64(&tt.probes, 1)

	if entry.Key == uint32(hash>>32) && entry.Depth > 0 {
		atomic.AddUint64(&tt.hits, 1)
		return entry, true
	}

	return TTEntry{}, false
}

// Store saves a position in the transposition table, always overwriting
// whatever was in the slot: a subsequent Probe(hash) with the same hash
// returns exactly the entry from the most recent Store(hash, ...), with no
// depth/age/PV-based retention of the prior occupant. Depth is capped at 127;
// an entry stored with depth 0 or less occupies the slot but Probe does not
// return it.
func (tt *TranspositionTable) Store(hash uint64, depth int, score int, flag TTFlag, bestMove board.Move, isPV bool) {
	idx := hash & tt.mask
	lock := tt.shardFor(idx)
	key := uint32(hash >> 32)
	if depth > 127 {
		depth = 127
	}

	lock.Lock()
	defer lock.Unlock()

	entry := &tt.entries[idx]

	if entry.Depth > 0 {
		atomic.AddUint64(&tt.overwrites, 1)
		if entry.Key != key {
			atomic.AddUint64(&tt.collisions, 1)
		}
	}

	entry.Key = key
	entry.BestMove = bestMove
	entry.Score = int16(score)
	entry.Depth = int8(depth)
	entry.Flag = flag
	entry.Age = tt.age
	entry.IsPV = isPV
}

// NewSearch increments the age counter for a new search.
func (tt *TranspositionTable) NewSearch() {
	tt.age++
}

// Clear clears the transposition table.
func (tt *TranspositionTable) Clear() {
	for i := range tt.entries {
		tt.entries[i] = TTEntry{}
	}
	tt.age = 0
	tt.hits = 0
	tt.probes = 0
	tt.collisions = 0
	tt.overwrites = 0
}

// HashFull returns the permille (parts per thousand) of the table that is used.
func (tt *TranspositionTable) HashFull() int {
	used := 0
	sampleSize := 1000
	if uint64(sampleSize) > tt.size {
		sampleSize = int(tt.size)
	}

	for i := 0; i < sampleSize; i++ {
		if tt.entries[i].Depth > 0 && tt.entries[i].Age == tt.age {
			used++
		}
	}

	return (used * 1000) / sampleSize
}

// HitRate returns the cache hit rate as a percentage.
func (tt *TranspositionTable) HitRate() float64 {
	if tt.probes == 0 {
		return 0
	}
	return float64(tt.hits) / float64(tt.probes) * 100
}

// Size returns the number of entries in the table.
func (tt *TranspositionTable) Size() uint64 {
	return tt.size
}

// Overwrites returns the number of Store calls that replaced an occupied
// slot, same position or not.
func (tt *TranspositionTable) Overwrites() uint64 {
	return atomic.LoadUint64(&tt.overwrites)
}

// Collisions returns the number of Store calls that replaced a slot
// occupied by a *different* position's entry (a hash-index collision, as
// opposed to a legitimate re-store of the same position).
func (tt *TranspositionTable) Collisions() uint64 {
	return atomic.LoadUint64(&tt.collisions)
}

// AdjustScoreFromTT adjusts a score read from the transposition table.
// Mate scores need to be adjusted based on ply distance.
func AdjustScoreFromTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score - ply
	}
	if score < -MateScore+MaxPly {
		return score + ply
	}
	return score
}

// AdjustScoreToTT adjusts a score for storage in the transposition table.
func AdjustScoreToTT(score int, ply int) int {
	if score > MateScore-MaxPly {
		return score + ply
	}
	if score < -MateScore+MaxPly {
		return score - ply
	}
	return score
}
