package engine

import (
	"math"
	"sync/atomic"

	"github.com/tanager-chess/engine/internal/board"
	"github.com/tanager-chess/engine/internal/tablebase"
)

// lmrReductions is a precomputed logarithmic LMR reduction table, based on
// the well-known depth/moveCount logarithmic formula.
var lmrReductions [64][64]int

func init() {
	for d := 1; d < 64; d++ {
		for m := 1; m < 64; m++ {
			lmrReductions[d][m] = int(21.46*math.Log(float64(d))) * int(21.46*math.Log(float64(m))) / 1024
			if lmrReductions[d][m] < 1 {
				lmrReductions[d][m] = 1
			}
		}
	}
}

// jitterRange bounds the per-worker root move-order perturbation applied at
// shallow depth so Lazy-SMP helpers diverge from the main worker's line.
const jitterRange = 50

// Worker represents a search worker for parallel Lazy-SMP search. Each
// worker has its own move ordering and node count; all workers share the
// transposition table (guarded per-shard) and a correction history per
// worker, since correction history is small and cheap to keep local.
type Worker struct {
	id int

	root board.Position

	orderer *MoveOrderer

	nodes uint64
	pv    PVTable

	// lineHashes[ply] holds the position hash reached at that ply of the
	// current search line, used together with rootHistory for repetition
	// detection. Single-goroutine-per-worker recursion makes ply-indexing
	// safe: a ply's slot is only live while that ply is on the call stack.
	lineHashes  [MaxPly]uint64
	evalStack   [MaxPly]int
	rootHistory *board.RepetitionTable

	tt          *TranspositionTable
	pawnTable   *PawnTable
	corrHistory *CorrectionHistory
	stopFlag    *atomic.Bool

	useNNUE  bool
	nnueEval *NNUEEvaluator

	tbProber     tablebase.Prober
	tbProbeDepth int

	resultCh chan<- WorkerResult
	depth    int

	rootDelta int
}

// WorkerResult contains the result from a worker's search at a given depth.
type WorkerResult struct {
	WorkerID int
	Depth    int
	Score    int
	Move     board.Move
	PV       []board.Move
	Nodes    uint64
}

// NewWorker creates a new search worker.
func NewWorker(id int, tt *TranspositionTable, pawnTable *PawnTable, stopFlag *atomic.Bool) *Worker {
	return &Worker{
		id:          id,
		orderer:     NewMoveOrderer(),
		tt:          tt,
		pawnTable:   pawnTable,
		corrHistory: NewCorrectionHistory(),
		stopFlag:    stopFlag,
	}
}

// SetNNUE installs a shared, read-only NNUE evaluator for this worker.
func (w *Worker) SetNNUE(e *NNUEEvaluator) {
	w.nnueEval = e
}

// SetTablebase sets the tablebase prober for this worker.
func (w *Worker) SetTablebase(prober tablebase.Prober, probeDepth int) {
	w.tbProber = prober
	w.tbProbeDepth = probeDepth
	if w.tbProbeDepth < 1 {
		w.tbProbeDepth = 1
	}
}

// ID returns the worker's ID.
func (w *Worker) ID() int {
	return w.id
}

// Nodes returns the number of nodes searched by this worker.
func (w *Worker) Nodes() uint64 {
	return w.nodes
}

// Reset resets the worker for a new search.
func (w *Worker) Reset() {
	w.nodes = 0
	w.orderer.Clear()
}

// SetRootHistory sets the repetition table accumulated from the game so far
// (for repetition detection against moves played before the root).
func (w *Worker) SetRootHistory(history *board.RepetitionTable) {
	w.rootHistory = history
}

// SetResultChannel sets the channel for sending search results.
func (w *Worker) SetResultChannel(ch chan<- WorkerResult) {
	w.resultCh = ch
}

// CorrectionHistory returns the worker's correction history table.
func (w *Worker) CorrectionHistory() *CorrectionHistory {
	return w.corrHistory
}

// InitSearch initializes the worker for a new search from pos.
func (w *Worker) InitSearch(pos *board.Position) {
	w.root = *pos
}

// Pos returns the root position of the current search (for debugging).
func (w *Worker) Pos() *board.Position {
	return &w.root
}

// SearchDepth performs search at the given depth and sends result via channel.
func (w *Worker) SearchDepth(depth, alpha, beta int) (board.Move, int) {
	w.depth = depth
	w.rootDelta = beta - alpha

	score := w.negamax(w.root, depth, 0, alpha, beta, board.NoMove, false)

	var bestMove board.Move
	if w.pv.length[0] > 0 {
		bestMove = w.pv.moves[0][0]
	}

	if bestMove == board.NoMove && !w.stopFlag.Load() {
		moves := w.root.GenerateLegalMoves()
		if moves.Len() > 0 {
			bestMove = moves.Get(0)
		}
	}

	if w.resultCh != nil && !w.stopFlag.Load() {
		pv := make([]board.Move, w.pv.length[0])
		copy(pv, w.pv.moves[0][:w.pv.length[0]])
		w.resultCh <- WorkerResult{
			WorkerID: w.id,
			Depth:    depth,
			Score:    score,
			Move:     bestMove,
			PV:       pv,
			Nodes:    w.nodes,
		}
	}

	return bestMove, score
}

// evaluate returns the static evaluation using NNUE when enabled, else the
// classical pawn-table-cached evaluator.
func (w *Worker) evaluate(pos *board.Position) int {
	if w.useNNUE && w.nnueEval != nil {
		return w.nnueEval.Evaluate(pos)
	}
	return EvaluateWithPawnTable(pos, w.pawnTable)
}

// GetPV returns the principal variation from the last search.
func (w *Worker) GetPV() []board.Move {
	pv := make([]board.Move, w.pv.length[0])
	copy(pv, w.pv.moves[0][:w.pv.length[0]])
	return pv
}

// isDraw checks for a draw by the fifty-move rule, insufficient material, or
// repetition against the game history plus the current search line.
func (w *Worker) isDraw(pos board.Position, ply int) bool {
	if pos.HalfMoveClock >= 100 {
		return true
	}
	if pos.IsInsufficientMaterial() {
		return true
	}

	count := 0
	if w.rootHistory != nil {
		count += w.rootHistory.Count(pos.Hash)
	}
	for i := 0; i < ply; i++ {
		if w.lineHashes[i] == pos.Hash {
			count++
		}
	}
	return count >= 2
}

// rootJitter perturbs root move-ordering scores deterministically per
// worker, so Lazy-SMP helpers explore different lines than the main worker
// at shallow depth instead of duplicating its work.
func (w *Worker) rootJitter(scores []int, moves *board.MoveList) {
	if w.id == 0 {
		return
	}
	for i := range scores {
		m := moves.Get(i)
		h := uint32(m)*2654435761 + uint32(w.id)*40503
		scores[i] += int(h%jitterRange) - jitterRange/2
	}
}

// negamax implements PVS/negamax with alpha-beta pruning, transposition
// table probing/storing, null-move pruning, late move reductions, and
// tablebase probing in the endgame.
func (w *Worker) negamax(pos board.Position, depth, ply int, alpha, beta int, prevMove board.Move, cutNode bool) int {
	if ply >= MaxPly-1 {
		return w.evaluate(&pos)
	}

	if w.nodes&2047 == 0 && w.stopFlag.Load() {
		return 0
	}

	w.nodes++
	w.pv.length[ply] = ply
	w.lineHashes[ply] = pos.Hash

	if ply > 0 && w.isDraw(pos, ply) {
		return 0
	}

	if ply > 0 && w.tbProber != nil && depth >= w.tbProbeDepth {
		pieceCount := tablebase.CountPieces(&pos)
		if pieceCount <= w.tbProber.MaxPieces() {
			tbResult := w.tbProber.Probe(&pos)
			if tbResult.Found {
				tbScore := tablebase.WDLToScore(tbResult.WDL, ply)
				switch tbResult.WDL {
				case tablebase.WDLWin, tablebase.WDLCursedWin:
					if tbScore >= beta {
						w.tt.Store(pos.Hash, MaxPly, AdjustScoreToTT(tbScore, ply), TTLowerBound, board.NoMove, true)
						return tbScore
					}
					if tbScore > alpha {
						alpha = tbScore
					}
				case tablebase.WDLLoss, tablebase.WDLBlessedLoss:
					if tbScore <= alpha {
						w.tt.Store(pos.Hash, MaxPly, AdjustScoreToTT(tbScore, ply), TTUpperBound, board.NoMove, true)
						return tbScore
					}
					if tbScore < beta {
						beta = tbScore
					}
				default:
					w.tt.Store(pos.Hash, MaxPly, AdjustScoreToTT(tbScore, ply), TTExact, board.NoMove, true)
					return tbScore
				}
			}
		}
	}

	var ttMove board.Move
	ttPv := false
	ttEntry, found := w.tt.Probe(pos.Hash)
	if found {
		ttMove = ttEntry.BestMove
		ttPv = ttEntry.IsPV
		if ttMove != board.NoMove && !pos.IsLegal(ttMove) {
			ttMove = board.NoMove
		}

		if int(ttEntry.Depth) >= depth {
			score := AdjustScoreFromTT(int(ttEntry.Score), ply)
			switch ttEntry.Flag {
			case TTExact:
				if ply == 0 && ttMove != board.NoMove {
					w.pv.moves[0][0] = ttMove
					w.pv.length[0] = 1
				}
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
		return w.quiescence(pos, ply, alpha, beta)
	}

	inCheck := pos.InCheck()

	extension := 0
	if inCheck {
		extension = 1
	}

	isPvNode := alpha < beta-1

	staticEval := w.evaluate(&pos) + w.corrHistory.Get(&pos)
	w.evalStack[ply] = staticEval
	improving := ply >= 2 && staticEval > w.evalStack[ply-2]

	// Null move pruning: skip our move entirely and see if the opponent is
	// still losing, which says our position is so good a real move isn't
	// needed to prove it.
	if !inCheck && !isPvNode && depth >= 3 && ply > 0 && pos.HasNonPawnMaterial() {
		R := 2 + depth/4
		if improving {
			R++
		}
		if R > depth-1 {
			R = depth - 1
		}
		if R >= 1 {
			next := pos.MakeNullMove()
			nullScore := -w.negamax(next, depth-1-R, ply+1, -beta, -beta+1, board.NoMove, !cutNode)
			if nullScore >= beta && nullScore < MateScore-MaxPly {
				return nullScore
			}
		}
	}

	moves := pos.GenerateLegalMoves()

	if moves.Len() == 0 {
		if inCheck {
			return -MateScore + ply
		}
		return 0
	}

	scores := w.orderer.ScoreMoves(&pos, moves, ply, ttMove)
	if ply == 0 && depth <= 6 {
		w.rootJitter(scores, moves)
	}

	bestScore := -Infinity
	bestMove := board.NoMove
	flag := TTUpperBound
	movesSearched := 0

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		move := moves.Get(i)

		isCapture := move.IsCapture(&pos)
		isPromotion := move.IsPromotion()

		next := pos.MakeMove(move)
		movesSearched++

		var score int
		newDepth := depth - 1 + extension

		if movesSearched > 4 && depth >= 3 && !inCheck && !isCapture && !isPromotion {
			d := depth
			if d > 63 {
				d = 63
			}
			m := movesSearched
			if m > 63 {
				m = 63
			}
			reduction := lmrReductions[d][m]

			if !improving {
				reduction++
			}
			if move == ttMove {
				reduction -= 2
			}
			if ttPv {
				reduction--
			}
			if cutNode {
				reduction++
			}
			if reduction < 1 {
				reduction = 1
			}

			reducedDepth := newDepth - reduction
			if reducedDepth < 1 {
				reducedDepth = 1
			}

			score = -w.negamax(next, reducedDepth, ply+1, -alpha-1, -alpha, move, true)
			if score > alpha {
				score = -w.negamax(next, newDepth, ply+1, -beta, -alpha, move, false)
			}
		} else if movesSearched == 1 {
			score = -w.negamax(next, newDepth, ply+1, -beta, -alpha, move, false)
		} else {
			score = -w.negamax(next, newDepth, ply+1, -alpha-1, -alpha, move, !cutNode)
			if score > alpha && score < beta {
				score = -w.negamax(next, newDepth, ply+1, -beta, -alpha, move, false)
			}
		}

		if w.stopFlag.Load() {
			return 0
		}

		if score > bestScore {
			bestScore = score
			bestMove = move

			if score > alpha {
				alpha = score
				flag = TTExact

				w.pv.moves[ply][ply] = move
				for j := ply + 1; j < w.pv.length[ply+1]; j++ {
					w.pv.moves[ply][j] = w.pv.moves[ply+1][j]
				}
				w.pv.length[ply] = w.pv.length[ply+1]
			}
		}

		if score >= beta {
			if ply == 0 && bestMove != board.NoMove {
				w.pv.moves[0][0] = bestMove
				w.pv.length[0] = 1
			}

			w.tt.Store(pos.Hash, depth, AdjustScoreToTT(score, ply), TTLowerBound, bestMove, isPvNode)

			if !isCapture {
				w.orderer.UpdateKillers(move, ply)
				w.orderer.UpdateHistory(move, depth, true)
			}

			return score
		}
	}

	if flag == TTExact && !inCheck && depth >= 2 {
		w.corrHistory.Update(&pos, bestScore, staticEval, depth)
	}

	w.tt.Store(pos.Hash, depth, AdjustScoreToTT(bestScore, ply), flag, bestMove, isPvNode)

	return bestScore
}

// quiescence searches captures and promotions (and check evasions) to avoid
// the horizon effect.
func (w *Worker) quiescence(pos board.Position, ply int, alpha, beta int) int {
	if ply >= MaxPly-1 {
		return w.evaluate(&pos)
	}

	if w.stopFlag.Load() {
		return 0
	}

	w.nodes++
	originalAlpha := alpha

	inCheck := pos.InCheck()

	var standPat, bestValue int
	var bestMove board.Move

	if inCheck {
		bestValue = -MateScore + ply
		standPat = bestValue
	} else {
		standPat = w.evaluate(&pos)
		bestValue = standPat

		if standPat >= beta {
			return beta
		}
		if standPat > alpha {
			alpha = standPat
		}
		if standPat+QueenValue < alpha {
			return alpha
		}
	}

	var moves *board.MoveList
	if inCheck {
		moves = pos.GenerateLegalMoves()
	} else {
		moves = pos.GenerateCaptures()
	}

	scores := w.orderer.ScoreMoves(&pos, moves, ply, board.NoMove)

	for i := 0; i < moves.Len(); i++ {
		PickMove(moves, scores, i)
		move := moves.Get(i)

		if !inCheck && move.IsCapture(&pos) {
			captureValue := qsCaptureValue(&pos, move)
			if standPat+captureValue+200 < alpha {
				continue
			}
			if SEE(&pos, move) < 0 {
				continue
			}
		}

		next := pos.MakeMove(move)
		score := -w.quiescence(next, ply+1, -beta, -alpha)

		if score > bestValue {
			bestValue = score
			bestMove = move

			if score > alpha {
				alpha = score
				if score >= beta {
					break
				}
			}
		}
	}

	if inCheck && bestValue == -MateScore+ply && moves.Len() == 0 {
		return -MateScore + ply
	}

	var ttFlag TTFlag
	if bestValue >= beta {
		ttFlag = TTLowerBound
	} else if bestValue > originalAlpha {
		ttFlag = TTExact
	} else {
		ttFlag = TTUpperBound
	}
	w.tt.Store(pos.Hash, 0, AdjustScoreToTT(bestValue, ply), ttFlag, bestMove, false)

	return bestValue
}

// qsCaptureValue returns the material value of a capture for quiescence pruning.
func qsCaptureValue(pos *board.Position, move board.Move) int {
	var value int
	if move.IsEnPassant() {
		value = PawnValue
	} else {
		captured := pos.PieceAt(move.To())
		if captured != board.NoPiece {
			value = pieceValues[captured.Type()]
		}
	}
	if move.IsPromotion() {
		value += pieceValues[move.Promotion()] - PawnValue
	}
	return value
}
