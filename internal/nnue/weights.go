package nnue

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// Weight file format constants
const (
	MagicNumber = 0x46524B53 // "FRKS" - Feature-based RKISS Stockfish-like format
	Version     = 1
)

// FileHeader is the header of the weight file.
type FileHeader struct {
	Magic   uint32
	Version uint32
	L1Size  uint32
	L2Size  uint32
}

// LoadWeights loads network weights from a binary file.
// File format:
//   - Header: Magic (4 bytes), Version (4 bytes), L1Size (4 bytes), L2Size (4 bytes)
//   - L1Weights: HalfKPSize * L1Size * int16
//   - L1Bias: L1Size * int16
//   - L2Weights: L1Size*2 * L2Size * int8
//   - L2Bias: L2Size * int32
//   - OutputWeights: L2Size * int8
//   - OutputBias: int32
func (n *Network) LoadWeights(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return &NnueIOError{Op: "open", Err: err}
	}
	defer f.Close()

	return n.LoadWeightsFromReader(f)
}

// SaveWeights saves network weights to a binary file.
func (n *Network) SaveWeights(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return &NnueIOError{Op: "create", Err: err}
	}
	defer f.Close()

	return n.SaveWeightsToWriter(f)
}

// SaveWeightsToWriter writes network weights to an io.Writer in the same
// format LoadWeightsFromReader expects.
func (n *Network) SaveWeightsToWriter(f io.Writer) error {
	// Write header
	header := FileHeader{
		Magic:   MagicNumber,
		Version: Version,
		L1Size:  L1Size,
		L2Size:  L2Size,
	}
	if err := binary.Write(f, binary.LittleEndian, &header); err != nil {
		return &NnueIOError{Op: "write header", Err: err}
	}

	// Write L1 weights
	for i := 0; i < HalfKPSize; i++ {
		if err := binary.Write(f, binary.LittleEndian, &n.L1Weights[i]); err != nil {
			return &NnueIOError{Op: "write L1 weights", Err: err}
		}
	}

	// Write L1 bias
	if err := binary.Write(f, binary.LittleEndian, &n.L1Bias); err != nil {
		return &NnueIOError{Op: "write L1 bias", Err: err}
	}

	// Write L2 weights
	for i := 0; i < L1Size*2; i++ {
		if err := binary.Write(f, binary.LittleEndian, &n.L2Weights[i]); err != nil {
			return &NnueIOError{Op: "write L2 weights", Err: err}
		}
	}

	// Write L2 bias
	if err := binary.Write(f, binary.LittleEndian, &n.L2Bias); err != nil {
		return &NnueIOError{Op: "write L2 bias", Err: err}
	}

	// Write output weights
	if err := binary.Write(f, binary.LittleEndian, &n.OutputWeights); err != nil {
		return &NnueIOError{Op: "write output weights", Err: err}
	}

	// Write output bias
	if err := binary.Write(f, binary.LittleEndian, &n.OutputBias); err != nil {
		return &NnueIOError{Op: "write output bias", Err: err}
	}

	return nil
}

// LoadWeightsFromReader loads network weights from an io.Reader. A header
// magic mismatch surfaces as *BadMagicError; any other read failure
// surfaces as *NnueIOError.
func (n *Network) LoadWeightsFromReader(r io.Reader) error {
	var header FileHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return &NnueIOError{Op: "read header", Err: err}
	}

	if header.Magic != MagicNumber {
		return &BadMagicError{Offset: 0, Found: header.Magic}
	}
	if header.Version != Version {
		return &NnueIOError{Op: "read header", Err: fmt.Errorf("unsupported version: expected %d, got %d", Version, header.Version)}
	}
	if header.L1Size != L1Size {
		return &NnueIOError{Op: "read header", Err: fmt.Errorf("unsupported L1 size: expected %d, got %d", L1Size, header.L1Size)}
	}
	if header.L2Size != L2Size {
		return &NnueIOError{Op: "read header", Err: fmt.Errorf("unsupported L2 size: expected %d, got %d", L2Size, header.L2Size)}
	}

	for i := 0; i < HalfKPSize; i++ {
		if err := binary.Read(r, binary.LittleEndian, &n.L1Weights[i]); err != nil {
			return &NnueIOError{Op: "read L1 weights", Err: err}
		}
	}

	if err := binary.Read(r, binary.LittleEndian, &n.L1Bias); err != nil {
		return &NnueIOError{Op: "read L1 bias", Err: err}
	}

	for i := 0; i < L1Size*2; i++ {
		if err := binary.Read(r, binary.LittleEndian, &n.L2Weights[i]); err != nil {
			return &NnueIOError{Op: "read L2 weights", Err: err}
		}
	}

	if err := binary.Read(r, binary.LittleEndian, &n.L2Bias); err != nil {
		return &NnueIOError{Op: "read L2 bias", Err: err}
	}

	if err := binary.Read(r, binary.LittleEndian, &n.OutputWeights); err != nil {
		return &NnueIOError{Op: "read output weights", Err: err}
	}

	if err := binary.Read(r, binary.LittleEndian, &n.OutputBias); err != nil {
		return &NnueIOError{Op: "read output bias", Err: err}
	}

	return nil
}
