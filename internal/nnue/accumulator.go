package nnue

import "github.com/tanager-chess/engine/internal/board"

// Accumulator stores the accumulated hidden layer values for incremental updates.
// Each side has its own accumulator from its perspective.
type Accumulator struct {
	// Hidden layer values for white and black perspectives
	// Stored as int16 for quantized arithmetic
	White [L1Size]int16
	Black [L1Size]int16

	// Track if accumulator is computed
	Computed bool
}

// AccumulatorStack is a ply-indexed ring of accumulators that lets a search
// thread save and restore NNUE state across a line of moves without
// recomputing from scratch at every node.
type AccumulatorStack struct {
	plies [MaxAccumulatorPly]Accumulator
	top   int
}

// NewAccumulatorStack creates a new, empty accumulator stack.
func NewAccumulatorStack() *AccumulatorStack {
	return &AccumulatorStack{}
}

// Push duplicates the accumulator at the current ply into the next ply and
// advances the stack, so the caller can mutate the new top without
// disturbing the one it was pushed from.
func (s *AccumulatorStack) Push() {
	if s.top >= MaxAccumulatorPly-1 {
		return
	}
	s.plies[s.top+1] = s.plies[s.top]
	s.top++
}

// Pop discards the current ply's accumulator and returns to the previous one.
func (s *AccumulatorStack) Pop() {
	if s.top > 0 {
		s.top--
	}
}

// Current returns the accumulator at the top of the stack.
func (s *AccumulatorStack) Current() *Accumulator {
	return &s.plies[s.top]
}

// Reset rewinds the stack to ply zero and marks it uncomputed, for starting
// a fresh game.
func (s *AccumulatorStack) Reset() {
	s.top = 0
	s.plies[0].Computed = false
}

// ComputeFull rebuilds the accumulator from scratch for pos, summing the
// feature-transformer bias with every active feature's weight row.
func (acc *Accumulator) ComputeFull(pos *board.Position, net *Network) {
	whiteFeatures, blackFeatures := GetActiveFeatures(pos)

	copy(acc.White[:], net.L1Bias[:])
	copy(acc.Black[:], net.L1Bias[:])

	acc.accumulate(net, whiteFeatures, &acc.White, 1)
	acc.accumulate(net, blackFeatures, &acc.Black, 1)

	acc.Computed = true
}

// accumulate adds (sign=1) or subtracts (sign=-1) each feature's weight row
// from dst.
func (acc *Accumulator) accumulate(net *Network, features []int, dst *[L1Size]int16, sign int16) {
	for _, idx := range features {
		if idx < 0 || idx >= HalfKPSize {
			continue
		}
		row := &net.L1Weights[idx]
		for i := 0; i < L1Size; i++ {
			dst[i] += sign * row[i]
		}
	}
}

// UpdateIncremental updates the accumulator for a single move in O(changed
// features) instead of recomputing every active feature. It must be called
// after the move has been made on pos. A king move invalidates the
// perspective the king belongs to, so it falls back to ComputeFull.
func (acc *Accumulator) UpdateIncremental(pos *board.Position, m board.Move, captured board.Piece, net *Network) {
	if !acc.Computed {
		acc.ComputeFull(pos, net)
		return
	}

	movedPiece := pos.PieceAt(m.To())
	if movedPiece == board.NoPiece {
		acc.Computed = false
		return
	}

	if movedPiece.Type() == board.King {
		acc.ComputeFull(pos, net)
		return
	}

	delta := GetChangedFeatures(pos, m, captured)

	acc.accumulate(net, delta.WhiteRemove, &acc.White, -1)
	acc.accumulate(net, delta.BlackRemove, &acc.Black, -1)
	acc.accumulate(net, delta.WhiteAdd, &acc.White, 1)
	acc.accumulate(net, delta.BlackAdd, &acc.Black, 1)
}
