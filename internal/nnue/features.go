package nnue

import "github.com/tanager-chess/engine/internal/board"

// PieceIndex maps (PieceType, Color) to a 0-9 index for HalfKP as
// 2*type + color: P=0, p=1, N=2, n=3, B=4, b=5, R=6, r=7, Q=8, q=9.
func PieceIndex(pt board.PieceType, c board.Color) int {
	if pt == board.King || pt > board.Queen {
		return -1 // Kings not included in features
	}
	return 2*int(pt) + int(c)
}

// viewFromPerspective translates a king square, piece square, and piece
// color into the frame a given perspective sees them from. Black rotates
// both squares 180 degrees (sq ^ 63) and flips color, so HalfKP's feature
// space is symmetric regardless of which side is to move.
func viewFromPerspective(perspective board.Color, kingSq, pieceSq board.Square, pieceColor board.Color) (int, int, board.Color) {
	if perspective == board.White {
		return int(kingSq), int(pieceSq), pieceColor
	}
	return int(kingSq) ^ 63, int(pieceSq) ^ 63, pieceColor.Other()
}

// HalfKPIndex computes the feature index for a non-king piece from a given
// perspective (the perspective's own king square anchors the feature).
func HalfKPIndex(perspective board.Color, kingSquare board.Square,
	pieceType board.PieceType, pieceColor board.Color,
	pieceSquare board.Square) int {

	kingSq, pieceSq, color := viewFromPerspective(perspective, kingSquare, pieceSquare, pieceColor)

	pi := PieceIndex(pieceType, color)
	if pi < 0 {
		return -1
	}

	return kingSq*(NumPieceTypes*NumPieceSquares) + pi*NumPieceSquares + pieceSq
}

// GetActiveFeatures returns every active feature index for pos, from both
// the white and black perspectives.
func GetActiveFeatures(pos *board.Position) (white, black []int) {
	white = make([]int, 0, 32)
	black = make([]int, 0, 32)

	whiteKingSq := pos.KingSquare[board.White]
	blackKingSq := pos.KingSquare[board.Black]

	for color := board.White; color <= board.Black; color++ {
		for pt := board.Pawn; pt < board.King; pt++ {
			pieces := pos.Pieces[color][pt]
			for pieces != 0 {
				sq := pieces.PopLSB()

				if idx := HalfKPIndex(board.White, whiteKingSq, pt, color, sq); idx >= 0 && idx < HalfKPSize {
					white = append(white, idx)
				}
				if idx := HalfKPIndex(board.Black, blackKingSq, pt, color, sq); idx >= 0 && idx < HalfKPSize {
					black = append(black, idx)
				}
			}
		}
	}

	return white, black
}

// FeatureDelta bundles the feature indices to add and remove, per
// perspective, for a single incremental accumulator update.
type FeatureDelta struct {
	WhiteAdd, WhiteRemove []int
	BlackAdd, BlackRemove []int
}

func (d *FeatureDelta) remove(whiteIdx, blackIdx int) {
	if whiteIdx >= 0 && whiteIdx < HalfKPSize {
		d.WhiteRemove = append(d.WhiteRemove, whiteIdx)
	}
	if blackIdx >= 0 && blackIdx < HalfKPSize {
		d.BlackRemove = append(d.BlackRemove, blackIdx)
	}
}

func (d *FeatureDelta) add(whiteIdx, blackIdx int) {
	if whiteIdx >= 0 && whiteIdx < HalfKPSize {
		d.WhiteAdd = append(d.WhiteAdd, whiteIdx)
	}
	if blackIdx >= 0 && blackIdx < HalfKPSize {
		d.BlackAdd = append(d.BlackAdd, blackIdx)
	}
}

// GetChangedFeatures computes which features a single move adds and removes,
// from both perspectives, for Accumulator.UpdateIncremental. pos must
// already reflect the move having been made; captured is the piece the move
// captured, or board.NoPiece.
//
// A king move changes which feature index every other piece maps to (the
// king square anchors HalfKP), so it returns a zero-value FeatureDelta;
// callers must detect king moves themselves and fall back to a full
// recompute instead.
func GetChangedFeatures(pos *board.Position, m board.Move, captured board.Piece) FeatureDelta {
	var delta FeatureDelta

	whiteKingSq := pos.KingSquare[board.White]
	blackKingSq := pos.KingSquare[board.Black]

	from := m.From()
	to := m.To()
	movedPiece := pos.PieceAt(to)

	if movedPiece == board.NoPiece {
		return delta
	}

	movingPT := movedPiece.Type()
	movingColor := movedPiece.Color()

	if movingPT == board.King {
		return delta
	}

	delta.remove(
		HalfKPIndex(board.White, whiteKingSq, movingPT, movingColor, from),
		HalfKPIndex(board.Black, blackKingSq, movingPT, movingColor, from),
	)

	addPT := movingPT
	if m.IsPromotion() {
		addPT = m.Promotion()
	}
	delta.add(
		HalfKPIndex(board.White, whiteKingSq, addPT, movingColor, to),
		HalfKPIndex(board.Black, blackKingSq, addPT, movingColor, to),
	)

	if captured != board.NoPiece && captured.Type() != board.King {
		capturedPT := captured.Type()
		capturedColor := captured.Color()
		capturedSq := to

		if m.IsEnPassant() {
			if movingColor == board.White {
				capturedSq = to - 8
			} else {
				capturedSq = to + 8
			}
		}

		delta.remove(
			HalfKPIndex(board.White, whiteKingSq, capturedPT, capturedColor, capturedSq),
			HalfKPIndex(board.Black, blackKingSq, capturedPT, capturedColor, capturedSq),
		)
	}

	return delta
}
