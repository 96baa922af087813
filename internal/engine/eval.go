// Package engine implements the chess AI search engine.
package engine

import (
	"github.com/tanager-chess/engine/internal/board"
)

// Evaluation constants
const (
	PawnValue   = 100
	KnightValue = 320
	BishopValue = 330
	RookValue   = 500
	QueenValue  = 900
	KingValue   = 20000
)

// Piece values array for quick lookup. Shared with move ordering and SEE
// (internal/engine/ordering.go, search.go, worker.go), so it stays a package
// value rather than living inside Weights below.
var pieceValues = [7]int{PawnValue, KnightValue, BishopValue, RookValue, QueenValue, KingValue, 0}

// Score is a paired middlegame/endgame term, tapered together at the end of
// evaluation. Mirrors the Score{M, E} pattern a tuned classical evaluator
// uses to keep a bonus's two phases from drifting out of sync.
type Score struct {
	MG int
	EG int
}

func (s Score) add(o Score) Score    { return Score{s.MG + o.MG, s.EG + o.EG} }
func (s Score) scale(n int) Score    { return Score{s.MG * n, s.EG * n} }
func (s Score) negate() Score        { return Score{-s.MG, -s.EG} }
func addTo(acc *Score, s Score)      { acc.MG += s.MG; acc.EG += s.EG }

// Weights bundles every tunable positional evaluation term into one value,
// so the evaluator isn't wired to fixed package constants: a caller can
// build an alternate Weights (for self-play tuning experiments, or to test
// a position with a stripped-down term set) and pass it to the unexported
// evaluate; the exported Evaluate* functions always use DefaultWeights.
type Weights struct {
	PawnPST, KnightPST, BishopPST, RookPST, QueenPST [64]int
	KingMgPST, KingEgPST                             [64]int

	PassedPawnByRank      [8]int
	PassedPawnConnected   int
	PassedPawnProtected   int
	PassedPawnFreePath    int
	PassedPawnUnstoppable int
	KingDistance          [8]int

	// Mobility, indexed by board.PieceType (only Knight..Queen populated).
	Mobility [6]Score

	// King safety, indexed by board.PieceType of the attacker.
	AttackerWeight        [6]int
	PawnShield            int
	PawnShieldMissing     int
	OpenFileNearKing      int
	SemiOpenFileNearKing  int

	BishopPair             Score
	RookOpenFile           Score
	RookSemiOpenFile       Score
	DoubledPawn            Score
	IsolatedPawn           Score
	BackwardPawn           Score
	KnightOutpost          Score
	KnightOutpostProtected Score
	BishopOutpost          Score

	Tempo int

	HangingPiece  Score
	ThreatByPawn  Score
	ThreatByMinor Score
	LoosePiece    int

	// King tropism, indexed by board.PieceType of the approaching piece.
	Tropism [6]int

	RookOn7th           Score
	RookOn7thWithPawns  Score
	DoubleRooksOn7th    Score
	ConnectedRooks      Score
	DoubledRooksOnFile  Score

	SpaceSquare     int
	SpaceBehindPawn int
	SpaceMinPieces  int

	BadBishop     Score
	TrappedBishop Score
	TrappedRook   Score
	KnightRim     Score
	KnightCorner  Score
}

// DefaultWeights is the evaluator's tuned parameter set.
var DefaultWeights = Weights{
	PawnPST: [64]int{
		0, 0, 0, 0, 0, 0, 0, 0,
		50, 50, 50, 50, 50, 50, 50, 50,
		10, 10, 20, 30, 30, 20, 10, 10,
		5, 5, 10, 25, 25, 10, 5, 5,
		0, 0, 0, 20, 20, 0, 0, 0,
		5, -5, -10, 0, 0, -10, -5, 5,
		5, 10, 10, -20, -20, 10, 10, 5,
		0, 0, 0, 0, 0, 0, 0, 0,
	},
	KnightPST: [64]int{
		-50, -40, -30, -30, -30, -30, -40, -50,
		-40, -20, 0, 0, 0, 0, -20, -40,
		-30, 0, 10, 15, 15, 10, 0, -30,
		-30, 5, 15, 20, 20, 15, 5, -30,
		-30, 0, 15, 20, 20, 15, 0, -30,
		-30, 5, 10, 15, 15, 10, 5, -30,
		-40, -20, 0, 5, 5, 0, -20, -40,
		-50, -40, -30, -30, -30, -30, -40, -50,
	},
	BishopPST: [64]int{
		-20, -10, -10, -10, -10, -10, -10, -20,
		-10, 0, 0, 0, 0, 0, 0, -10,
		-10, 0, 5, 10, 10, 5, 0, -10,
		-10, 5, 5, 10, 10, 5, 5, -10,
		-10, 0, 10, 10, 10, 10, 0, -10,
		-10, 10, 10, 10, 10, 10, 10, -10,
		-10, 5, 0, 0, 0, 0, 5, -10,
		-20, -10, -10, -10, -10, -10, -10, -20,
	},
	RookPST: [64]int{
		0, 0, 0, 0, 0, 0, 0, 0,
		5, 10, 10, 10, 10, 10, 10, 5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		-5, 0, 0, 0, 0, 0, 0, -5,
		0, 0, 0, 5, 5, 0, 0, 0,
	},
	QueenPST: [64]int{
		-20, -10, -10, -5, -5, -10, -10, -20,
		-10, 0, 0, 0, 0, 0, 0, -10,
		-10, 0, 5, 5, 5, 5, 0, -10,
		-5, 0, 5, 5, 5, 5, 0, -5,
		0, 0, 5, 5, 5, 5, 0, -5,
		-10, 5, 5, 5, 5, 5, 0, -10,
		-10, 0, 5, 0, 0, 0, 0, -10,
		-20, -10, -10, -5, -5, -10, -10, -20,
	},
	KingMgPST: [64]int{
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-30, -40, -40, -50, -50, -40, -40, -30,
		-20, -30, -30, -40, -40, -30, -30, -20,
		-10, -20, -20, -20, -20, -20, -20, -10,
		20, 20, 0, 0, 0, 0, 20, 20,
		20, 30, 10, 0, 0, 10, 30, 20,
	},
	KingEgPST: [64]int{
		-50, -40, -30, -20, -20, -30, -40, -50,
		-30, -20, -10, 0, 0, -10, -20, -30,
		-30, -10, 20, 30, 30, 20, -10, -30,
		-30, -10, 30, 40, 40, 30, -10, -30,
		-30, -10, 30, 40, 40, 30, -10, -30,
		-30, -10, 20, 30, 30, 20, -10, -30,
		-30, -30, 0, 0, 0, 0, -30, -30,
		-50, -30, -30, -30, -30, -30, -30, -50,
	},

	PassedPawnByRank:      [8]int{0, 10, 20, 40, 70, 120, 200, 0},
	PassedPawnConnected:   20,
	PassedPawnProtected:   15,
	PassedPawnFreePath:    30,
	PassedPawnUnstoppable: 200,
	KingDistance:          [8]int{0, 0, 10, 20, 30, 40, 50, 60},

	Mobility: [6]Score{
		board.Knight: {4, 3},
		board.Bishop: {5, 4},
		board.Rook:   {2, 4},
		board.Queen:  {1, 2},
	},

	AttackerWeight: [6]int{
		board.Knight: 20,
		board.Bishop: 20,
		board.Rook:   40,
		board.Queen:  80,
	},
	PawnShield:           10,
	PawnShieldMissing:    -15,
	OpenFileNearKing:     -20,
	SemiOpenFileNearKing: -10,

	BishopPair:             Score{25, 50},
	RookOpenFile:           Score{20, 25},
	RookSemiOpenFile:       Score{10, 15},
	DoubledPawn:            Score{-15, -20},
	IsolatedPawn:           Score{-20, -25},
	BackwardPawn:           Score{-15, -10},
	KnightOutpost:          Score{25, 15},
	KnightOutpostProtected: Score{15, 10},
	BishopOutpost:          Score{15, 10},

	Tempo: 10,

	HangingPiece:  Score{-40, -60}, // endgame is 1.5x middlegame, as hanging material matters more
	ThreatByPawn:  Score{25, 25},
	ThreatByMinor: Score{20, 20},
	LoosePiece:    -10,

	Tropism: [6]int{
		board.Knight: 3,
		board.Bishop: 2,
		board.Rook:   2,
		board.Queen:  5,
	},

	RookOn7th:          Score{30, 40},
	RookOn7thWithPawns: Score{15, 20},
	DoubleRooksOn7th:   Score{50, 60},
	ConnectedRooks:     Score{10, 15},
	DoubledRooksOnFile: Score{20, 25},

	SpaceSquare:     2,
	SpaceBehindPawn: 3,
	SpaceMinPieces:  3,

	BadBishop:     Score{-5, -10},
	TrappedBishop: Score{-80, -50},
	TrappedRook:   Score{-50, -25},
	KnightRim:     Score{-15, -10},
	KnightCorner:  Score{-30, -20},
}

// pstFor returns the piece-square table for a non-king piece type.
func (w *Weights) pstFor(pt board.PieceType) [64]int {
	switch pt {
	case board.Pawn:
		return w.PawnPST
	case board.Knight:
		return w.KnightPST
	case board.Bishop:
		return w.BishopPST
	case board.Rook:
		return w.RookPST
	case board.Queen:
		return w.QueenPST
	default:
		return [64]int{}
	}
}

// Light and dark square masks
var (
	lightSquares board.Bitboard // Squares where file+rank is odd (a1 is dark)
	darkSquares  board.Bitboard // Squares where file+rank is even
)

// Rim and corner masks for knights
var (
	rimSquares    = board.FileA | board.FileH | board.Rank1 | board.Rank8
	cornerSquares = board.SquareBB(board.A1) | board.SquareBB(board.H1) |
		board.SquareBB(board.A8) | board.SquareBB(board.H8)
)

// Space zones for each side (central files, ranks 2-5 for white, 4-7 for black)
var (
	whiteSpaceZone = (board.FileC | board.FileD | board.FileE | board.FileF) &
		(board.Rank2 | board.Rank3 | board.Rank4 | board.Rank5)
	blackSpaceZone = (board.FileC | board.FileD | board.FileE | board.FileF) &
		(board.Rank4 | board.Rank5 | board.Rank6 | board.Rank7)
)

func init() {
	for sq := board.A1; sq <= board.H8; sq++ {
		if (sq.File()+sq.Rank())%2 == 1 {
			lightSquares |= board.SquareBB(sq)
		} else {
			darkSquares |= board.SquareBB(sq)
		}
	}
}

// maxPhase is the phase total at which the position is considered fully
// middlegame (2 knights + 2 bishops + 2 rooks*2 + 1 queen*4, per side).
const maxPhase = 24

// Evaluate returns the static evaluation of the position from the side to
// move's perspective, using DefaultWeights and no pawn hash table.
func Evaluate(pos *board.Position) int {
	return evaluate(pos, &DefaultWeights, nil)
}

// EvaluateWithPawnTable is like Evaluate but uses a cached pawn structure
// evaluation.
func EvaluateWithPawnTable(pos *board.Position, pawnTable *PawnTable) int {
	return evaluate(pos, &DefaultWeights, pawnTable)
}

// evaluate computes the tapered evaluation for pos under w, optionally
// consulting pawnTable for pawn structure (nil recomputes it every call).
func evaluate(pos *board.Position, w *Weights, pawnTable *PawnTable) int {
	var total Score
	var phase int

	for c := board.White; c <= board.Black; c++ {
		sign := 1
		if c == board.Black {
			sign = -1
		}

		for pt := board.Pawn; pt <= board.King; pt++ {
			bb := pos.Pieces[c][pt]
			for bb != 0 {
				sq := bb.PopLSB()

				material := pieceValues[pt]

				pstSq := sq
				if c == board.Black {
					pstSq = sq.Mirror()
				}

				if pt == board.King {
					addTo(&total, Score{sign * (material + w.KingMgPST[pstSq]), sign * (material + w.KingEgPST[pstSq])})
				} else {
					pstValue := w.pstFor(pt)[pstSq]
					addTo(&total, Score{sign * (material + pstValue), sign * (material + pstValue)})
				}

				switch pt {
				case board.Knight, board.Bishop:
					phase++
				case board.Rook:
					phase += 2
				case board.Queen:
					phase += 4
				}
			}
		}
	}

	addTo(&total, evaluatePassedPawns(pos, w))
	addTo(&total, evaluateMobility(pos, w))
	total.MG += evaluateKingSafety(pos, w)
	total.MG += evaluateKingTropism(pos, w)
	addTo(&total, evaluateBishopPair(pos, w))
	addTo(&total, evaluateRooksOnFiles(pos, w))
	addTo(&total, evaluatePieceCoordination(pos, w))
	addTo(&total, evaluatePawnStructureWithCache(pos, w, pawnTable))
	addTo(&total, evaluateOutposts(pos, w))
	addTo(&total, evaluateThreats(pos, w))
	total.MG += evaluateSpace(pos, w)
	addTo(&total, evaluateTrappedPieces(pos, w))

	if phase > maxPhase {
		phase = maxPhase
	}

	score := (total.MG*phase + total.EG*(maxPhase-phase)) / maxPhase
	score += w.Tempo

	if pos.SideToMove == board.Black {
		return -score
	}
	return score
}

// EvaluateMaterial returns just the material balance (for quick evaluation).
func EvaluateMaterial(pos *board.Position) int {
	score := 0
	for pt := board.Pawn; pt < board.King; pt++ {
		score += pos.Pieces[board.White][pt].PopCount() * pieceValues[pt]
		score -= pos.Pieces[board.Black][pt].PopCount() * pieceValues[pt]
	}
	if pos.SideToMove == board.Black {
		return -score
	}
	return score
}

// IsEndgame returns true if the position is in the endgame phase.
func IsEndgame(pos *board.Position) bool {
	whiteQueens := pos.Pieces[board.White][board.Queen].PopCount()
	blackQueens := pos.Pieces[board.Black][board.Queen].PopCount()

	if whiteQueens == 0 && blackQueens == 0 {
		return true
	}

	whitePieces := pos.Pieces[board.White][board.Knight].PopCount() +
		pos.Pieces[board.White][board.Bishop].PopCount() +
		pos.Pieces[board.White][board.Rook].PopCount()
	blackPieces := pos.Pieces[board.Black][board.Knight].PopCount() +
		pos.Pieces[board.Black][board.Bishop].PopCount() +
		pos.Pieces[board.Black][board.Rook].PopCount()

	return whiteQueens+blackQueens <= 1 && whitePieces+blackPieces <= 4
}

// isPassedPawn checks if a pawn at the given square is a passed pawn.
// A passed pawn has no enemy pawns blocking or attacking its path to promotion.
func isPassedPawn(pos *board.Position, sq board.Square, color board.Color) bool {
	file := sq.File()
	enemyPawns := pos.Pieces[color.Other()][board.Pawn]

	fileMask := board.FileMask[file]
	if file > 0 {
		fileMask |= board.FileMask[file-1]
	}
	if file < 7 {
		fileMask |= board.FileMask[file+1]
	}

	var frontMask board.Bitboard
	if color == board.White {
		frontMask = board.SquareBB(sq).NorthFill() &^ board.SquareBB(sq)
	} else {
		frontMask = board.SquareBB(sq).SouthFill() &^ board.SquareBB(sq)
	}

	blockingZone := fileMask & frontMask
	return (enemyPawns & blockingZone) == 0
}

// evaluatePassedPawns returns the passed pawn evaluation bonus.
func evaluatePassedPawns(pos *board.Position, w *Weights) Score {
	var total Score

	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}

		pawns := pos.Pieces[color][board.Pawn]
		friendlyPawns := pawns
		enemy := color.Other()

		friendlyKingSq := pos.KingSquare[color]
		enemyKingSq := pos.KingSquare[enemy]

		for pawns != 0 {
			sq := pawns.PopLSB()

			if !isPassedPawn(pos, sq, color) {
				continue
			}

			relRank := sq.RelativeRank(color)
			file := sq.File()

			bonus := w.PassedPawnByRank[relRank]
			egBonusExtra := 0

			var promoSq board.Square
			if color == board.White {
				promoSq = board.NewSquare(file, 7)
			} else {
				promoSq = board.NewSquare(file, 0)
			}

			friendlyKingDist := chebyshevDistance(friendlyKingSq, sq)
			egBonusExtra += w.KingDistance[7-minInt(friendlyKingDist, 7)]

			enemyKingDistToPromo := chebyshevDistance(enemyKingSq, promoSq)
			egBonusExtra += w.KingDistance[minInt(enemyKingDistToPromo, 7)]

			pawnAttackers := board.PawnAttacks(sq, color.Other()) & friendlyPawns
			if pawnAttackers != 0 {
				bonus += w.PassedPawnProtected
			}

			var adjacentFiles board.Bitboard
			if file > 0 {
				adjacentFiles |= board.FileMask[file-1]
			}
			if file < 7 {
				adjacentFiles |= board.FileMask[file+1]
			}
			connectedPawns := friendlyPawns & adjacentFiles
			for temp := connectedPawns; temp != 0; {
				connSq := temp.PopLSB()
				if isPassedPawn(pos, connSq, color) {
					bonus += w.PassedPawnConnected
					break
				}
			}

			var frontSquares board.Bitboard
			if color == board.White {
				frontSquares = board.SquareBB(sq).NorthFill() &^ board.SquareBB(sq)
			} else {
				frontSquares = board.SquareBB(sq).SouthFill() &^ board.SquareBB(sq)
			}
			frontSquares &= board.FileMask[file]
			pathClear := (frontSquares & pos.AllOccupied) == 0
			if pathClear {
				bonus += w.PassedPawnFreePath
			}

			// A pawn is unstoppable if the enemy king cannot catch it.
			if pathClear && relRank >= 4 {
				squaresToPromo := 7 - relRank
				enemyKingDistToPawn := chebyshevDistance(enemyKingSq, sq)

				tempo := 0
				if pos.SideToMove == color {
					tempo = 1
				}

				if enemyKingDistToPawn > squaresToPromo+1-tempo {
					egBonusExtra += w.PassedPawnUnstoppable
				}
			}

			total.MG += sign * bonus
			total.EG += sign * (bonus*3/2 + egBonusExtra)
		}
	}

	return total
}

// evaluateMobility calculates mobility scores for all pieces.
func evaluateMobility(pos *board.Position, w *Weights) Score {
	var total Score
	occupied := pos.AllOccupied

	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}

		enemyPawns := pos.Pieces[color.Other()][board.Pawn]
		var unsafeSquares board.Bitboard
		if color == board.White {
			unsafeSquares = enemyPawns.SouthEast() | enemyPawns.SouthWest()
		} else {
			unsafeSquares = enemyPawns.NorthEast() | enemyPawns.NorthWest()
		}

		ownPieces := pos.Occupied[color]
		blockedSquares := unsafeSquares | ownPieces

		for _, pt := range [...]board.PieceType{board.Knight, board.Bishop, board.Rook, board.Queen} {
			pieces := pos.Pieces[color][pt]
			for pieces != 0 {
				sq := pieces.PopLSB()
				var attacks board.Bitboard
				switch pt {
				case board.Knight:
					attacks = board.KnightAttacks(sq)
				case board.Bishop:
					attacks = board.BishopAttacks(sq, occupied)
				case board.Rook:
					attacks = board.RookAttacks(sq, occupied)
				case board.Queen:
					attacks = board.QueenAttacks(sq, occupied)
				}
				count := (attacks &^ blockedSquares).PopCount()
				total.MG += sign * w.Mobility[pt].MG * count
				total.EG += sign * w.Mobility[pt].EG * count
			}
		}
	}

	return total
}

// evaluateKingSafety evaluates king safety for both sides.
// Returns middlegame score (king safety matters less in endgame).
func evaluateKingSafety(pos *board.Position, w *Weights) int {
	var score int
	occupied := pos.AllOccupied

	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}

		kingSq := pos.KingSquare[color]
		kingFile := kingSq.File()

		kingZone := board.KingAttacks(kingSq) | board.SquareBB(kingSq)
		if color == board.White {
			kingZone |= kingZone.North()
		} else {
			kingZone |= kingZone.South()
		}

		enemy := color.Other()

		attackerCount := 0
		attackWeight := 0

		for _, pt := range [...]board.PieceType{board.Knight, board.Bishop, board.Rook, board.Queen} {
			pieces := pos.Pieces[enemy][pt]
			for temp := pieces; temp != 0; {
				sq := temp.PopLSB()
				var attacks board.Bitboard
				switch pt {
				case board.Knight:
					attacks = board.KnightAttacks(sq)
				case board.Bishop:
					attacks = board.BishopAttacks(sq, occupied)
				case board.Rook:
					attacks = board.RookAttacks(sq, occupied)
				case board.Queen:
					attacks = board.QueenAttacks(sq, occupied)
				}
				if attacks&kingZone != 0 {
					attackerCount++
					attackWeight += w.AttackerWeight[pt]
				}
			}
		}

		if attackerCount >= 2 {
			attackWeight = attackWeight * attackerCount / 2
		}
		score -= sign * attackWeight

		ownPawns := pos.Pieces[color][board.Pawn]
		enemyFilePawns := pos.Pieces[enemy][board.Pawn]

		for f := kingFile - 1; f <= kingFile+1; f++ {
			if f < 0 || f > 7 {
				continue
			}

			filePawns := ownPawns & board.FileMask[f]
			enemyOnFile := enemyFilePawns & board.FileMask[f]

			var shieldRank int
			if color == board.White {
				shieldRank = 1
			} else {
				shieldRank = 6
			}

			shieldMask := board.FileMask[f] & board.RankMask[shieldRank]
			if ownPawns&shieldMask != 0 {
				score += sign * w.PawnShield
			} else if filePawns == 0 {
				score += sign * w.PawnShieldMissing
			}

			if filePawns == 0 && enemyOnFile == 0 {
				score += sign * w.OpenFileNearKing
			} else if filePawns == 0 {
				score += sign * w.SemiOpenFileNearKing
			}
		}
	}

	return score
}

// SEE (Static Exchange Evaluation) estimates the result of a capture sequence.
// Returns the estimated material gain/loss from the perspective of the moving side.
// This is a proper implementation that simulates the entire capture sequence.
func SEE(pos *board.Position, m board.Move) int {
	from := m.From()
	to := m.To()

	attacker := pos.PieceAt(from)
	if attacker == board.NoPiece {
		return 0
	}

	var capturedValue int
	if m.IsEnPassant() {
		capturedValue = PawnValue
	} else {
		victim := pos.PieceAt(to)
		if victim == board.NoPiece {
			return 0
		}
		capturedValue = pieceValues[victim.Type()]
	}

	if m.IsPromotion() {
		capturedValue += pieceValues[m.Promotion()] - PawnValue
	}

	return seeSwap(pos, to, from, attacker, capturedValue)
}

// seeSwap performs the SEE swap algorithm.
// It simulates alternating captures on the target square.
func seeSwap(pos *board.Position, target, excludeFrom board.Square, firstAttacker board.Piece, initialGain int) int {
	var gain [32]int
	d := 0

	gain[d] = initialGain

	occupied := pos.AllOccupied &^ board.SquareBB(excludeFrom)

	attackerValue := pieceValues[firstAttacker.Type()]
	side := firstAttacker.Color().Other()

	for {
		d++

		gain[d] = attackerValue - gain[d-1]

		if max(-gain[d-1], gain[d]) < 0 {
			break
		}

		attackerSq, attackerPiece := getLeastValuableAttacker(pos, target, side, occupied)
		if attackerSq == board.NoSquare {
			break
		}

		occupied &^= board.SquareBB(attackerSq)

		attackerValue = pieceValues[attackerPiece.Type()]
		side = side.Other()
	}

	for d--; d > 0; d-- {
		gain[d-1] = -max(-gain[d-1], gain[d])
	}

	return gain[0]
}

// getLeastValuableAttacker finds the least valuable piece attacking a square.
// Returns NoSquare if no attacker found.
func getLeastValuableAttacker(pos *board.Position, target board.Square, side board.Color, occupied board.Bitboard) (board.Square, board.Piece) {
	pawns := pos.Pieces[side][board.Pawn]
	pawnAttacks := board.PawnAttacks(target, side.Other())
	attackers := pawns & pawnAttacks & occupied
	if attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Pawn, side)
	}

	knights := pos.Pieces[side][board.Knight]
	knightAttacks := board.KnightAttacks(target)
	attackers = knights & knightAttacks & occupied
	if attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Knight, side)
	}

	bishops := pos.Pieces[side][board.Bishop]
	bishopAttacks := board.BishopAttacks(target, occupied)
	attackers = bishops & bishopAttacks & occupied
	if attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Bishop, side)
	}

	rooks := pos.Pieces[side][board.Rook]
	rookAttacks := board.RookAttacks(target, occupied)
	attackers = rooks & rookAttacks & occupied
	if attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Rook, side)
	}

	queens := pos.Pieces[side][board.Queen]
	attackers = queens & (bishopAttacks | rookAttacks) & occupied
	if attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.Queen, side)
	}

	kingBB := pos.Pieces[side][board.King]
	kingAttacks := board.KingAttacks(target)
	attackers = kingBB & kingAttacks & occupied
	if attackers != 0 {
		return attackers.LSB(), board.NewPiece(board.King, side)
	}

	return board.NoSquare, board.NoPiece
}

// max returns the maximum of two integers.
func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// evaluateBishopPair returns bonus for having the bishop pair.
func evaluateBishopPair(pos *board.Position, w *Weights) Score {
	var total Score
	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}
		if pos.Pieces[color][board.Bishop].PopCount() >= 2 {
			addTo(&total, w.BishopPair.scale(sign))
		}
	}
	return total
}

// evaluateRooksOnFiles returns bonus for rooks on open/semi-open files.
func evaluateRooksOnFiles(pos *board.Position, w *Weights) Score {
	var total Score
	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}

		ownPawns := pos.Pieces[color][board.Pawn]
		enemyPawns := pos.Pieces[color.Other()][board.Pawn]

		rooks := pos.Pieces[color][board.Rook]
		for rooks != 0 {
			sq := rooks.PopLSB()
			fileMask := board.FileMask[sq.File()]

			hasOwnPawn := (ownPawns & fileMask) != 0
			hasEnemyPawn := (enemyPawns & fileMask) != 0

			if !hasOwnPawn {
				if !hasEnemyPawn {
					addTo(&total, w.RookOpenFile.scale(sign))
				} else {
					addTo(&total, w.RookSemiOpenFile.scale(sign))
				}
			}
		}
	}
	return total
}

// evaluatePawnStructure evaluates pawn structure defects.
func evaluatePawnStructure(pos *board.Position, w *Weights) Score {
	var total Score
	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}

		pawns := pos.Pieces[color][board.Pawn]
		allPawns := pawns

		for pawns != 0 {
			sq := pawns.PopLSB()
			file := sq.File()
			fileMask := board.FileMask[file]

			pawnsOnFile := allPawns & fileMask
			if pawnsOnFile.PopCount() > 1 {
				var forwardPawn board.Square
				if color == board.White {
					forwardPawn = pawnsOnFile.MSB()
				} else {
					forwardPawn = pawnsOnFile.LSB()
				}
				if sq == forwardPawn {
					addTo(&total, w.DoubledPawn.scale(sign))
				}
			}

			var adjacentFiles board.Bitboard
			if file > 0 {
				adjacentFiles |= board.FileMask[file-1]
			}
			if file < 7 {
				adjacentFiles |= board.FileMask[file+1]
			}
			if (allPawns & adjacentFiles) == 0 {
				addTo(&total, w.IsolatedPawn.scale(sign))
				continue
			}

			relRank := sq.RelativeRank(color)
			if relRank > 1 {
				var behindMask board.Bitboard
				if color == board.White {
					for r := 0; r < sq.Rank(); r++ {
						behindMask |= board.RankMask[r]
					}
				} else {
					for r := sq.Rank() + 1; r < 8; r++ {
						behindMask |= board.RankMask[r]
					}
				}

				adjacentPawns := allPawns & adjacentFiles
				if adjacentPawns != 0 && (adjacentPawns&behindMask) == adjacentPawns {
					continue
				}

				var stopSq board.Square
				if color == board.White {
					stopSq = sq + 8
				} else {
					stopSq = sq - 8
				}
				if stopSq.IsValid() {
					enemyPawnAttacks := board.PawnAttacks(stopSq, color)
					enemyPawns := pos.Pieces[color.Other()][board.Pawn]
					if (enemyPawns & enemyPawnAttacks) != 0 {
						addTo(&total, w.BackwardPawn.scale(sign))
					}
				}
			}
		}
	}
	return total
}

// evaluatePawnStructureWithCache evaluates pawn structure, consulting pt's
// pawn hash table when provided.
func evaluatePawnStructureWithCache(pos *board.Position, w *Weights, pt *PawnTable) Score {
	if pt == nil {
		return evaluatePawnStructure(pos, w)
	}

	if mg, eg, found := pt.Probe(pos.PawnKey); found {
		return Score{mg, eg}
	}

	s := evaluatePawnStructure(pos, w)
	pt.Store(pos.PawnKey, s.MG, s.EG)
	return s
}

// evaluateOutposts evaluates knight and bishop outposts.
func evaluateOutposts(pos *board.Position, w *Weights) Score {
	var total Score
	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}

		enemyPawns := pos.Pieces[color.Other()][board.Pawn]
		ownPawns := pos.Pieces[color][board.Pawn]

		var outpostRanks board.Bitboard
		if color == board.White {
			outpostRanks = board.RankMask[3] | board.RankMask[4] | board.RankMask[5]
		} else {
			outpostRanks = board.RankMask[2] | board.RankMask[3] | board.RankMask[4]
		}

		isOutpost := func(sq board.Square) bool {
			file := sq.File()
			var attackers board.Bitboard
			if file > 0 {
				attackers |= board.FileMask[file-1]
			}
			if file < 7 {
				attackers |= board.FileMask[file+1]
			}

			var potentialAttackers board.Bitboard
			if color == board.White {
				for r := 0; r <= sq.Rank(); r++ {
					potentialAttackers |= board.RankMask[r]
				}
			} else {
				for r := sq.Rank(); r < 8; r++ {
					potentialAttackers |= board.RankMask[r]
				}
			}

			return (enemyPawns & attackers & potentialAttackers) == 0
		}

		knights := pos.Pieces[color][board.Knight] & outpostRanks
		for knights != 0 {
			sq := knights.PopLSB()
			if !isOutpost(sq) {
				continue
			}
			addTo(&total, w.KnightOutpost.scale(sign))
			if board.PawnAttacks(sq, color.Other())&ownPawns != 0 {
				addTo(&total, w.KnightOutpostProtected.scale(sign))
			}
		}

		bishops := pos.Pieces[color][board.Bishop] & outpostRanks
		for bishops != 0 {
			sq := bishops.PopLSB()
			if isOutpost(sq) {
				addTo(&total, w.BishopOutpost.scale(sign))
			}
		}
	}
	return total
}

// evaluateThreats evaluates threats and hanging pieces.
func evaluateThreats(pos *board.Position, w *Weights) Score {
	var total Score
	occupied := pos.AllOccupied

	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}

		enemy := color.Other()

		ourPawnAttacks := computePawnAttacksBB(pos, color)
		ourKnightAttacks := computeKnightAttacksBB(pos, color)
		ourBishopAttacks := computeBishopAttacksBB(pos, color, occupied)
		ourRookAttacks := computeRookAttacksBB(pos, color, occupied)
		ourQueenAttacks := computeQueenAttacksBB(pos, color, occupied)
		ourKingAttacks := board.KingAttacks(pos.KingSquare[color])

		ourAttacks := ourPawnAttacks | ourKnightAttacks | ourBishopAttacks |
			ourRookAttacks | ourQueenAttacks | ourKingAttacks

		enemyPawnAttacks := computePawnAttacksBB(pos, enemy)
		enemyKnightAttacks := computeKnightAttacksBB(pos, enemy)
		enemyBishopAttacks := computeBishopAttacksBB(pos, enemy, occupied)
		enemyRookAttacks := computeRookAttacksBB(pos, enemy, occupied)
		enemyQueenAttacks := computeQueenAttacksBB(pos, enemy, occupied)
		enemyKingAttacks := board.KingAttacks(pos.KingSquare[enemy])

		enemyAttacks := enemyPawnAttacks | enemyKnightAttacks | enemyBishopAttacks |
			enemyRookAttacks | enemyQueenAttacks | enemyKingAttacks

		ourPieces := pos.Occupied[color] &^ board.SquareBB(pos.KingSquare[color])

		hangingPieces := ourPieces & enemyAttacks & ^ourAttacks
		hangingCount := hangingPieces.PopCount()
		addTo(&total, w.HangingPiece.scale(sign * hangingCount))

		loosePieces := ourPieces & ^ourAttacks
		total.MG += sign * loosePieces.PopCount() * w.LoosePiece

		enemyPieces := pos.Occupied[enemy] &^ board.SquareBB(pos.KingSquare[enemy])

		pawnThreats := enemyPieces & ourPawnAttacks & ^pos.Pieces[enemy][board.Pawn]
		addTo(&total, w.ThreatByPawn.scale(sign*pawnThreats.PopCount()))

		minorAttacks := ourKnightAttacks | ourBishopAttacks
		majorPieces := pos.Pieces[enemy][board.Rook] | pos.Pieces[enemy][board.Queen]
		minorThreats := majorPieces & minorAttacks
		addTo(&total, w.ThreatByMinor.scale(sign*minorThreats.PopCount()))
	}

	return total
}

// Helper functions for computing attack bitboards

func computePawnAttacksBB(pos *board.Position, color board.Color) board.Bitboard {
	pawns := pos.Pieces[color][board.Pawn]
	if color == board.White {
		return pawns.NorthEast() | pawns.NorthWest()
	}
	return pawns.SouthEast() | pawns.SouthWest()
}

func computeKnightAttacksBB(pos *board.Position, color board.Color) board.Bitboard {
	knights := pos.Pieces[color][board.Knight]
	var attacks board.Bitboard
	for knights != 0 {
		sq := knights.PopLSB()
		attacks |= board.KnightAttacks(sq)
	}
	return attacks
}

func computeBishopAttacksBB(pos *board.Position, color board.Color, occupied board.Bitboard) board.Bitboard {
	bishops := pos.Pieces[color][board.Bishop]
	var attacks board.Bitboard
	for bishops != 0 {
		sq := bishops.PopLSB()
		attacks |= board.BishopAttacks(sq, occupied)
	}
	return attacks
}

func computeRookAttacksBB(pos *board.Position, color board.Color, occupied board.Bitboard) board.Bitboard {
	rooks := pos.Pieces[color][board.Rook]
	var attacks board.Bitboard
	for rooks != 0 {
		sq := rooks.PopLSB()
		attacks |= board.RookAttacks(sq, occupied)
	}
	return attacks
}

func computeQueenAttacksBB(pos *board.Position, color board.Color, occupied board.Bitboard) board.Bitboard {
	queens := pos.Pieces[color][board.Queen]
	var attacks board.Bitboard
	for queens != 0 {
		sq := queens.PopLSB()
		attacks |= board.QueenAttacks(sq, occupied)
	}
	return attacks
}

// chebyshevDistance calculates the Chebyshev distance between two squares.
// This is max(|file_diff|, |rank_diff|), representing king moves needed.
func chebyshevDistance(sq1, sq2 board.Square) int {
	f1, r1 := sq1.File(), sq1.Rank()
	f2, r2 := sq2.File(), sq2.Rank()

	fileDiff := f1 - f2
	if fileDiff < 0 {
		fileDiff = -fileDiff
	}
	rankDiff := r1 - r2
	if rankDiff < 0 {
		rankDiff = -rankDiff
	}

	if fileDiff > rankDiff {
		return fileDiff
	}
	return rankDiff
}

// minInt returns the minimum of two integers.
func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// evaluateKingTropism calculates bonus for pieces approaching enemy king.
// Returns middlegame score (tropism matters more in attacks).
func evaluateKingTropism(pos *board.Position, w *Weights) int {
	var score int

	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}

		enemy := color.Other()
		enemyKingSq := pos.KingSquare[enemy]

		for pt := board.Knight; pt <= board.Queen; pt++ {
			pieces := pos.Pieces[color][pt]
			for pieces != 0 {
				sq := pieces.PopLSB()
				dist := chebyshevDistance(sq, enemyKingSq)
				if dist < 7 {
					score += sign * w.Tropism[pt] * (7 - dist)
				}
			}
		}
	}

	return score
}

// evaluatePieceCoordination evaluates piece coordination patterns.
func evaluatePieceCoordination(pos *board.Position, w *Weights) Score {
	var total Score
	occupied := pos.AllOccupied

	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}

		enemy := color.Other()
		rooks := pos.Pieces[color][board.Rook]

		var rank7th board.Bitboard
		var enemyPawnRank board.Bitboard
		if color == board.White {
			rank7th = board.Rank7
			enemyPawnRank = board.Rank2
		} else {
			rank7th = board.Rank2
			enemyPawnRank = board.Rank7
		}

		rooksOn7th := rooks & rank7th
		rooksOn7thCount := rooksOn7th.PopCount()

		if rooksOn7thCount > 0 {
			addTo(&total, w.RookOn7th.scale(sign*rooksOn7thCount))

			enemyPawnsOnRank := pos.Pieces[enemy][board.Pawn] & enemyPawnRank
			if enemyPawnsOnRank != 0 {
				addTo(&total, w.RookOn7thWithPawns.scale(sign*rooksOn7thCount))
			}

			if rooksOn7thCount >= 2 {
				addTo(&total, w.DoubleRooksOn7th.scale(sign))
			}
		}

		rookCount := rooks.PopCount()
		if rookCount >= 2 {
			tempRooks := rooks
			var rookSquares [2]board.Square
			idx := 0
			for tempRooks != 0 && idx < 2 {
				rookSquares[idx] = tempRooks.PopLSB()
				idx++
			}

			if idx == 2 {
				sq1, sq2 := rookSquares[0], rookSquares[1]
				rookAttacks := board.RookAttacks(sq1, occupied)

				if rookAttacks.IsSet(sq2) {
					addTo(&total, w.ConnectedRooks.scale(sign))

					if sq1.File() == sq2.File() {
						addTo(&total, w.DoubledRooksOnFile.scale(sign))
					}
				}
			}
		}
	}

	return total
}

// evaluateSpace evaluates space control in the center.
// Returns middlegame bonus only (space matters less in endgame).
func evaluateSpace(pos *board.Position, w *Weights) int {
	var score int

	whitePieceCount := pos.Pieces[board.White][board.Knight].PopCount() +
		pos.Pieces[board.White][board.Bishop].PopCount() +
		pos.Pieces[board.White][board.Rook].PopCount() +
		pos.Pieces[board.White][board.Queen].PopCount()
	blackPieceCount := pos.Pieces[board.Black][board.Knight].PopCount() +
		pos.Pieces[board.Black][board.Bishop].PopCount() +
		pos.Pieces[board.Black][board.Rook].PopCount() +
		pos.Pieces[board.Black][board.Queen].PopCount()

	if whitePieceCount < w.SpaceMinPieces && blackPieceCount < w.SpaceMinPieces {
		return 0
	}

	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}

		pieceCount := whitePieceCount
		if color == board.Black {
			pieceCount = blackPieceCount
		}
		if pieceCount < w.SpaceMinPieces {
			continue
		}

		enemy := color.Other()
		ownPawns := pos.Pieces[color][board.Pawn]
		enemyPawns := pos.Pieces[enemy][board.Pawn]

		var spaceZone board.Bitboard
		if color == board.White {
			spaceZone = whiteSpaceZone
		} else {
			spaceZone = blackSpaceZone
		}

		var pawnControl board.Bitboard
		if color == board.White {
			pawnControl = ownPawns.NorthEast() | ownPawns.NorthWest()
		} else {
			pawnControl = ownPawns.SouthEast() | ownPawns.SouthWest()
		}

		var enemyPawnAttacks board.Bitboard
		if color == board.White {
			enemyPawnAttacks = enemyPawns.SouthEast() | enemyPawns.SouthWest()
		} else {
			enemyPawnAttacks = enemyPawns.NorthEast() | enemyPawns.NorthWest()
		}

		safeSpace := spaceZone &^ enemyPawnAttacks

		var behindPawns board.Bitboard
		if color == board.White {
			behindPawns = ownPawns.SouthFill()
		} else {
			behindPawns = ownPawns.NorthFill()
		}

		controlledSpace := (pawnControl | behindPawns) & safeSpace
		spaceCount := controlledSpace.PopCount()

		behindChainSpace := controlledSpace & behindPawns
		behindCount := behindChainSpace.PopCount()

		bonus := spaceCount*w.SpaceSquare + behindCount*w.SpaceBehindPawn

		score += sign * bonus
	}

	return score
}

// evaluateTrappedPieces evaluates penalties for trapped pieces.
func evaluateTrappedPieces(pos *board.Position, w *Weights) Score {
	var total Score

	for color := board.White; color <= board.Black; color++ {
		sign := 1
		if color == board.Black {
			sign = -1
		}

		enemy := color.Other()
		ownPawns := pos.Pieces[color][board.Pawn]
		enemyPawns := pos.Pieces[enemy][board.Pawn]

		bishops := pos.Pieces[color][board.Bishop]
		for temp := bishops; temp != 0; {
			sq := temp.PopLSB()

			var bishopColorSquares board.Bitboard
			if lightSquares.IsSet(sq) {
				bishopColorSquares = lightSquares
			} else {
				bishopColorSquares = darkSquares
			}

			blockingPawns := (ownPawns & bishopColorSquares).PopCount()
			if blockingPawns >= 3 {
				addTo(&total, w.BadBishop.scale(sign*blockingPawns))
			}

			if color == board.White {
				if sq == board.A6 && enemyPawns.IsSet(board.B7) && enemyPawns.IsSet(board.B5) {
					addTo(&total, w.TrappedBishop.scale(sign))
				}
				if sq == board.H6 && enemyPawns.IsSet(board.G7) && enemyPawns.IsSet(board.G5) {
					addTo(&total, w.TrappedBishop.scale(sign))
				}
			} else {
				if sq == board.A3 && enemyPawns.IsSet(board.B2) && enemyPawns.IsSet(board.B4) {
					addTo(&total, w.TrappedBishop.scale(sign))
				}
				if sq == board.H3 && enemyPawns.IsSet(board.G2) && enemyPawns.IsSet(board.G4) {
					addTo(&total, w.TrappedBishop.scale(sign))
				}
			}
		}

		// Rook trapped in corner by own king before castling.
		kingSquare := pos.KingSquare[color]
		rooks := pos.Pieces[color][board.Rook]

		if color == board.White {
			if kingSquare == board.F1 || kingSquare == board.G1 {
				if rooks&(board.SquareBB(board.G1)|board.SquareBB(board.H1)) != 0 &&
					pos.CastlingRights&board.WhiteKingSideCastle == 0 {
					addTo(&total, w.TrappedRook.scale(sign))
				}
			}
			if kingSquare == board.B1 || kingSquare == board.C1 || kingSquare == board.D1 {
				if rooks&(board.SquareBB(board.A1)|board.SquareBB(board.B1)) != 0 &&
					pos.CastlingRights&board.WhiteQueenSideCastle == 0 {
					addTo(&total, w.TrappedRook.scale(sign))
				}
			}
		} else {
			if kingSquare == board.F8 || kingSquare == board.G8 {
				if rooks&(board.SquareBB(board.G8)|board.SquareBB(board.H8)) != 0 &&
					pos.CastlingRights&board.BlackKingSideCastle == 0 {
					addTo(&total, w.TrappedRook.scale(sign))
				}
			}
			if kingSquare == board.B8 || kingSquare == board.C8 || kingSquare == board.D8 {
				if rooks&(board.SquareBB(board.A8)|board.SquareBB(board.B8)) != 0 &&
					pos.CastlingRights&board.BlackQueenSideCastle == 0 {
					addTo(&total, w.TrappedRook.scale(sign))
				}
			}
		}

		knights := pos.Pieces[color][board.Knight]
		rimKnights := knights & rimSquares
		for temp := rimKnights; temp != 0; {
			sq := temp.PopLSB()

			if cornerSquares.IsSet(sq) {
				addTo(&total, w.KnightCorner.scale(sign))
				continue
			}

			attacks := board.KnightAttacks(sq) &^ pos.Occupied[color]
			if attacks.PopCount() <= 3 {
				addTo(&total, w.KnightRim.scale(sign))
			}
		}
	}

	return total
}
