package engine

import (
	"github.com/tanager-chess/engine/internal/board"
	"github.com/tanager-chess/engine/internal/nnue"
)

// NNUEEvaluator adapts the nnue package's HalfKP network to the engine's
// per-node static evaluation call. It holds only a pointer to the shared,
// read-only Network: evaluating a position recomputes the accumulator from
// scratch for that position rather than maintaining incremental state across
// the search tree, since Position is an immutable value with no push/pop
// hook to thread incremental updates through. This costs one full feature
// pass per node in exchange for being trivially safe to share across
// Lazy-SMP worker goroutines.
type NNUEEvaluator struct {
	net *nnue.Network
}

// NewNNUEEvaluator wraps a loaded (or randomly initialized) network.
func NewNNUEEvaluator(net *nnue.Network) *NNUEEvaluator {
	return &NNUEEvaluator{net: net}
}

// Evaluate returns the NNUE score in centipawns from the side to move's perspective.
func (e *NNUEEvaluator) Evaluate(pos *board.Position) int {
	var acc nnue.Accumulator
	acc.ComputeFull(pos, e.net)
	return e.net.Forward(&acc, pos.SideToMove)
}
