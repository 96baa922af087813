package engine

import (
	"sync/atomic"

	"github.com/tanager-chess/engine/internal/board"
)

// Search constants
const (
	Infinity  = 30000
	MateScore = 29000
	MaxPly    = 128
)

// PVTable stores the principal variation.
type PVTable struct {
	length [MaxPly]int
	moves  [MaxPly][MaxPly]board.Move
}

// Searcher performs a single-threaded alpha-beta search. Position state is
// threaded through the call tree by value; the only shared state it writes
// is the transposition table.
type Searcher struct {
	root     board.Position
	history  *board.RepetitionTable
	tt       *TranspositionTable
	orderer  *MoveOrderer
	excluded []board.Move

	nodes    uint64
	stopFlag atomic.Bool

	pv PVTable
}

// NewSearcher creates a new searcher.
func NewSearcher(tt *TranspositionTable) *Searcher {
	return &Searcher{
		tt:      tt,
		orderer: NewMoveOrderer(),
	}
}

// Stop signals the search to stop.
func (s *Searcher) Stop() {
	s.stopFlag.Store(true)
}

// Reset resets the searcher for a new search.
func (s *Searcher) Reset() {
	s.stopFlag.Store(false)
	s.nodes = 0
	s.orderer.Clear()
}

// Nodes returns the number of nodes searched.
func (s *Searcher) Nodes() uint64 {
	return s.nodes
}

// IsStopped reports whether the search has been signaled to stop.
func (s *Searcher) IsStopped() bool {
	return s.stopFlag.Load()
}

// SetRootHistory sets the repetition history consulted for draw detection.
func (s *Searcher) SetRootHistory(history *board.RepetitionTable) {
	s.history = history
}

// SetExcludedMoves excludes the given moves from consideration at the root,
// used by Multi-PV search to find successive best lines.
func (s *Searcher) SetExcludedMoves(moves []board.Move) {
	s.excluded = moves
}

// ClearOrderer resets the move orderer's killer and history tables.
func (s *Searcher) ClearOrderer() {
	s.orderer.Clear()
}

func (s *Searcher) isExcludedRootMove(m board.Move) bool {
	for _, e := range s.excluded {
		if e == m {
			return true
		}
	}
	return false
}

// Search performs the search at the given depth. The history set by
// SetRootHistory, if any, is consulted for repetition draws against moves
// played before the root.
func (s *Searcher) Search(pos *board.Position, depth int) (board.Move, int) {
	return s.SearchWithHistory(pos, depth, s.history)
}

// SearchWithHistory is Search with an explicit repetition history.
func (s *Searcher) SearchWithHistory(pos *board.Position, depth int, history *board.RepetitionTable) (board.Move, int) {
	s.root = *pos
	s.history = history
	s.Reset()

	score := s.negamax(s.root, depth, 0, -Infinity, Infinity)

	var bestMove board.Move
	if s.pv.length[0] > 0 {
		bestMove = s.pv.moves[0][0]
	}

	return bestMove, score
}

// negamax implements the negamax algorithm with alpha-beta pruning.
func (s *Searcher) negamax(pos board.Position, depth, ply int, alpha, beta int) int {
	if s.nodes&4095 == 0 && s.stopFlag.Load() {
		return 0
	}

	s.nodes++
	s.pv.length[ply] = ply

	if ply > 0 && s.isDraw(pos) {
		return 0
	}

	var ttMove board.Move
	ttEntry, found := s.tt.Probe(pos.Hash)
	if found {
		ttMove = ttEntry.BestMove
		if int(ttEntry.Depth) >= depth {
			score := AdjustScoreFromTT(int(ttEntry.Score), ply)
			switch ttEntry.Flag {
			case TTExact:
				return score
			case TTLowerBound:
				if score > alpha {
					alpha = score
				}
			case TTUpperBound:
				if score < beta {
					beta = score
				}
			}
			if alpha >= beta {
				return score
			}
		}
	}

	if depth <= 0 {
		return s.quiescence(pos, ply, alpha, beta)
	}

	inCheck := pos.InCheck()
	moves := pos.GenerateLegalMoves()

	if moves.Len() == 0 {
		if inCheck {
			return -MateScore + ply
		}
		return 0
	}

	scores := s.orderer.ScoreMoves(&pos, moves, ply, ttMove)

	bestScore := -Infinity
	bestMove := board.NoMove
	flag := TTUpperBound

	legalMoveCount := 0
	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		move := moves.Get(i)

		if ply == 0 && s.isExcludedRootMove(move) {
			continue
		}
		legalMoveCount++

		next := pos.MakeMove(move)
		score := -s.negamax(next, depth-1, ply+1, -beta, -alpha)

		if s.stopFlag.Load() {
			return 0
		}

		if score > bestScore {
			bestScore = score
			bestMove = move

			if score > alpha {
				alpha = score
				flag = TTExact

				s.pv.moves[ply][ply] = move
				for j := ply + 1; j < s.pv.length[ply+1]; j++ {
					s.pv.moves[ply][j] = s.pv.moves[ply+1][j]
				}
				s.pv.length[ply] = s.pv.length[ply+1]
			}
		}

		if score >= beta {
			s.tt.Store(pos.Hash, depth, AdjustScoreToTT(score, ply), TTLowerBound, bestMove, false)

			if !move.IsCapture(&pos) {
				s.orderer.UpdateKillers(move, ply)
				s.orderer.UpdateHistory(move, depth, true)
			}

			return score
		}
	}

	s.tt.Store(pos.Hash, depth, AdjustScoreToTT(bestScore, ply), flag, bestMove, false)

	return bestScore
}

// quiescence searches only captures (and promotions) to avoid the horizon effect.
func (s *Searcher) quiescence(pos board.Position, ply int, alpha, beta int) int {
	const maxQuiescencePly = 32
	if ply >= MaxPly || ply > maxQuiescencePly {
		return Evaluate(&pos)
	}

	if s.stopFlag.Load() {
		return 0
	}

	s.nodes++

	standPat := Evaluate(&pos)

	if standPat >= beta {
		return beta
	}

	if standPat > alpha {
		alpha = standPat
	}

	bigDelta := QueenValue
	if standPat+bigDelta < alpha {
		return alpha
	}

	moves := pos.GenerateCaptures()
	scores := s.orderer.ScoreMoves(&pos, moves, ply, board.NoMove)

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		move := moves.Get(i)

		if !pos.InCheck() {
			var captureValue int
			if move.IsEnPassant() {
				captureValue = PawnValue
			} else {
				capturedPiece := pos.PieceAt(move.To())
				if capturedPiece != board.NoPiece {
					captureValue = pieceValues[capturedPiece.Type()]
				}
			}
			if move.IsPromotion() {
				captureValue += QueenValue - PawnValue
			}
			if standPat+captureValue+200 < alpha {
				continue
			}
		}

		next := pos.MakeMove(move)
		score := -s.quiescence(next, ply+1, -beta, -alpha)

		if score >= beta {
			return beta
		}

		if score > alpha {
			alpha = score
		}
	}

	return alpha
}

// isDraw checks for draw by the fifty-move rule, insufficient material, or
// repetition against positions played before the root (when history is set).
func (s *Searcher) isDraw(pos board.Position) bool {
	if pos.HalfMoveClock >= 100 {
		return true
	}

	if pos.IsInsufficientMaterial() {
		return true
	}

	if s.history != nil && s.history.Count(pos.Hash) >= 2 {
		return true
	}

	return false
}

// GetPV returns the principal variation from the last search.
func (s *Searcher) GetPV() []board.Move {
	pv := make([]board.Move, s.pv.length[0])
	for i := 0; i < s.pv.length[0]; i++ {
		pv[i] = s.pv.moves[0][i]
	}
	return pv
}
