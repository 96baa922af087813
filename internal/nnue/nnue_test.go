package nnue

import (
	"bytes"
	"testing"

	"github.com/tanager-chess/engine/internal/board"
)

func TestComputeFullDeterministic(t *testing.T) {
	net := NewNetwork()
	net.InitRandom(42)

	pos := board.NewPosition()

	var a, b Accumulator
	a.ComputeFull(pos, net)
	b.ComputeFull(pos, net)

	if a.White != b.White || a.Black != b.Black {
		t.Error("ComputeFull is not deterministic for the same position and network")
	}
}

func TestIncrementalMatchesFullRecompute(t *testing.T) {
	net := NewNetwork()
	net.InitRandom(7)

	pos := board.NewPosition()
	e, err := newIncrementalEvaluator("")
	if err != nil {
		t.Fatalf("newIncrementalEvaluator: %v", err)
	}
	e.net = net

	e.Refresh(pos)
	beforeScore := e.Evaluate(pos)

	move := board.NewMove(board.E2, board.E4)
	captured := pos.PieceAt(move.To())
	next := pos.MakeMove(move)

	e.Push()
	e.Update(&next, move, captured)
	incrementalScore := e.Evaluate(&next)

	var scratch Accumulator
	scratch.ComputeFull(&next, net)
	scratchScore := net.Forward(&scratch, next.SideToMove)

	if incrementalScore != scratchScore {
		t.Errorf("incremental update diverged from scratch recompute: %d != %d", incrementalScore, scratchScore)
	}

	e.Pop()
	afterScore := e.Evaluate(pos)
	if afterScore != beforeScore {
		t.Errorf("Pop did not restore prior accumulator: %d != %d", afterScore, beforeScore)
	}
}

func TestWeightsRoundTrip(t *testing.T) {
	net := NewNetwork()
	net.InitRandom(99)

	var buf bytes.Buffer
	if err := net.SaveWeightsToWriter(&buf); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded := NewNetwork()
	if err := loaded.LoadWeightsFromReader(&buf); err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.L1Weights[0][0] != net.L1Weights[0][0] || loaded.OutputBias != net.OutputBias {
		t.Error("round-tripped weights do not match original")
	}
}

func TestLoadWeightsBadMagic(t *testing.T) {
	net := NewNetwork()
	err := net.LoadWeightsFromReader(bytes.NewReader(make([]byte, 16)))
	if err == nil {
		t.Fatal("expected an error for a zeroed (bad magic) header")
	}
	var badMagic *BadMagicError
	if !asBadMagicError(err, &badMagic) {
		t.Errorf("expected *BadMagicError, got %T: %v", err, err)
	}
}

func asBadMagicError(err error, target **BadMagicError) bool {
	if e, ok := err.(*BadMagicError); ok {
		*target = e
		return true
	}
	return false
}
