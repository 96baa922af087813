package engine

import (
	"testing"

	"github.com/tanager-chess/engine/internal/board"
)

func TestTranspositionPutGetRoundTrip(t *testing.T) {
	tt := NewTranspositionTable(1)

	hash := uint64(0x1234567890ABCDEF)
	move := board.NewMove(board.E2, board.E4)

	tt.Store(hash, 6, 123, TTExact, move, true)

	entry, found := tt.Probe(hash)
	if !found {
		t.Fatalf("Probe(%x) after Store: expected found=true", hash)
	}
	if entry.Score != 123 || entry.Depth != 6 || entry.Flag != TTExact || entry.BestMove != move || !entry.IsPV {
		t.Errorf("Probe returned %+v, want score=123 depth=6 flag=Exact move=%s isPV=true", entry, move.String())
	}
}

// TestTranspositionAlwaysReplaces is the explicit put/get testable property:
// a later Store for the same hash always wins the next Probe, regardless of
// the depth, age, or PV-ness of either write.
func TestTranspositionAlwaysReplaces(t *testing.T) {
	tt := NewTranspositionTable(1)

	hash := uint64(0xDEADBEEFCAFEBABE)
	deepPVMove := board.NewMove(board.D2, board.D4)
	shallowMove := board.NewMove(board.G1, board.F3)

	tt.Store(hash, 10, 50, TTExact, deepPVMove, true)
	tt.Store(hash, 1, -7, TTUpperBound, shallowMove, false)

	entry, found := tt.Probe(hash)
	if !found {
		t.Fatal("Probe after two Stores: expected found=true")
	}
	if entry.BestMove != shallowMove || entry.Depth != 1 || entry.Score != -7 || entry.Flag != TTUpperBound || entry.IsPV {
		t.Errorf("Probe returned %+v, want the second (shallow, non-PV) Store to have fully replaced the first", entry)
	}
}

func TestTranspositionProbeMiss(t *testing.T) {
	tt := NewTranspositionTable(1)

	if _, found := tt.Probe(0x1); found {
		t.Error("Probe on empty table: expected found=false")
	}
}

func TestTranspositionOverwriteCounters(t *testing.T) {
	tt := NewTranspositionTable(1)
	move := board.NewMove(board.E2, board.E4)

	// Two different hashes landing on the same bucket (table mask is
	// size-1, so hash and hash+tt.size collide on index).
	hashA := uint64(0x10)
	hashB := hashA + tt.size

	tt.Store(hashA, 3, 0, TTExact, move, false)
	if tt.Overwrites() != 0 || tt.Collisions() != 0 {
		t.Fatalf("first Store into an empty slot should not count as an overwrite or collision, got overwrites=%d collisions=%d", tt.Overwrites(), tt.Collisions())
	}

	// Re-storing the same position: an overwrite, not a collision.
	tt.Store(hashA, 4, 1, TTExact, move, false)
	if tt.Overwrites() != 1 || tt.Collisions() != 0 {
		t.Errorf("re-storing the same hash: want overwrites=1 collisions=0, got overwrites=%d collisions=%d", tt.Overwrites(), tt.Collisions())
	}

	// Storing a different position into the same slot: both an overwrite
	// and a collision.
	tt.Store(hashB, 5, 2, TTExact, move, false)
	if tt.Overwrites() != 2 || tt.Collisions() != 1 {
		t.Errorf("storing a different hash into the same slot: want overwrites=2 collisions=1, got overwrites=%d collisions=%d", tt.Overwrites(), tt.Collisions())
	}
}

func TestTranspositionClearResetsCounters(t *testing.T) {
	tt := NewTranspositionTable(1)
	move := board.NewMove(board.E2, board.E4)

	tt.Store(0x1, 3, 0, TTExact, move, false)
	tt.Store(0x1, 4, 1, TTExact, move, false)
	tt.Probe(0x1)

	tt.Clear()

	if tt.Overwrites() != 0 || tt.Collisions() != 0 || tt.HitRate() != 0 {
		t.Errorf("Clear should reset all diagnostic counters, got overwrites=%d collisions=%d hitRate=%f",
			tt.Overwrites(), tt.Collisions(), tt.HitRate())
	}
	if _, found := tt.Probe(0x1); found {
		t.Error("Clear should remove all entries")
	}
}
