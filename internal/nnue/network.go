package nnue

import "github.com/tanager-chess/engine/internal/board"

// Network holds the NNUE weights.
type Network struct {
	// Layer 1: HalfKPSize -> L1Size (per perspective)
	// Weights are quantized as int16
	L1Weights [HalfKPSize][L1Size]int16
	L1Bias    [L1Size]int16

	// Layer 2: L1Size*2 (both perspectives) -> L2Size
	L2Weights [L1Size * 2][L2Size]int8
	L2Bias    [L2Size]int32

	// Output layer: L2Size -> 1
	OutputWeights [L2Size]int8
	OutputBias    int32
}

// NewNetwork creates a network with zero weights (must load weights or init random).
func NewNetwork() *Network {
	return &Network{}
}

// Forward runs the three-stage HalfKP pipeline (feature transformer output,
// hidden affine layer, output affine layer) and returns the evaluation in
// centipawns from sideToMove's perspective.
func (n *Network) Forward(acc *Accumulator, sideToMove board.Color) int {
	transformed := n.transform(acc, sideToMove)
	hidden := n.hiddenLayer(transformed)
	return n.outputLayer(hidden)
}

// transform applies clipped ReLU to the accumulated feature-transformer
// output, concatenating the side-to-move's perspective first.
func (n *Network) transform(acc *Accumulator, sideToMove board.Color) [L1Size * 2]int8 {
	var stmAcc, nstmAcc *[L1Size]int16
	if sideToMove == board.White {
		stmAcc, nstmAcc = &acc.White, &acc.Black
	} else {
		stmAcc, nstmAcc = &acc.Black, &acc.White
	}

	var out [L1Size * 2]int8
	for i := 0; i < L1Size; i++ {
		out[i] = ClampedReLU(stmAcc[i])
		out[L1Size+i] = ClampedReLU(nstmAcc[i])
	}
	return out
}

// hiddenLayer applies the L2 affine transform plus clipped ReLU.
func (n *Network) hiddenLayer(in [L1Size * 2]int8) [L2Size]int8 {
	var out [L2Size]int8
	for i := 0; i < L2Size; i++ {
		sum := n.L2Bias[i]
		for j := 0; j < L1Size*2; j++ {
			sum += int32(in[j]) * int32(n.L2Weights[j][i])
		}
		scaled := int16(sum >> L1QuantShift)
		out[i] = ClampedReLU(scaled)
	}
	return out
}

// outputLayer applies the final affine transform and rescales to centipawns.
func (n *Network) outputLayer(in [L2Size]int8) int {
	output := n.OutputBias
	for i := 0; i < L2Size; i++ {
		output += int32(in[i]) * int32(n.OutputWeights[i])
	}
	return int(output * OutputScale >> (L2QuantShift + 8))
}

// InitRandom initializes weights with small random values (for testing only).
func (n *Network) InitRandom(seed int64) {
	state := uint64(seed)
	next := func() int16 {
		state = state*6364136223846793005 + 1442695040888963407
		return int16((state>>48)&0xFF) - 128 // Small random values -128 to 127
	}
	clampByte := func(v int16) int8 {
		if v > 127 {
			return 127
		}
		if v < -128 {
			return -128
		}
		return int8(v)
	}

	for i := 0; i < HalfKPSize; i++ {
		for j := 0; j < L1Size; j++ {
			n.L1Weights[i][j] = next() >> 5 // Very small: -4 to 3
		}
	}

	for i := 0; i < L1Size; i++ {
		n.L1Bias[i] = next() >> 3 // Small: -16 to 15
	}

	for i := 0; i < L1Size*2; i++ {
		for j := 0; j < L2Size; j++ {
			n.L2Weights[i][j] = clampByte(next() >> 6)
		}
	}

	for i := 0; i < L2Size; i++ {
		n.L2Bias[i] = int32(next())
	}

	for i := 0; i < L2Size; i++ {
		n.OutputWeights[i] = clampByte(next() >> 6)
	}

	n.OutputBias = int32(next()) * 100 // Centered around zero
}
