package board

import "testing"

// Perft counts the number of leaf nodes at the given depth.
// This is the standard way to verify move generation correctness.
func perft(p Position, depth int) int64 {
	if depth == 0 {
		return 1
	}

	moves := p.GenerateLegalMoves()
	if depth == 1 {
		return int64(moves.Len())
	}

	var nodes int64
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		nodes += perft(p.MakeMove(m), depth-1)
	}
	return nodes
}

// perftByPiece sums perft leaf counts piece-by-piece: every root move is
// bucketed by the type of the piece that moved, and each bucket's subtree is
// counted independently. Must agree with perft for every depth; a mismatch
// pinpoints which piece's move generation diverged.
func perftByPiece(p Position, depth int) map[PieceType]int64 {
	totals := make(map[PieceType]int64)
	if depth == 0 {
		return totals
	}

	moves := p.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		pt := p.PieceAt(m.From()).Type()
		if depth == 1 {
			totals[pt]++
			continue
		}
		totals[pt] += perft(p.MakeMove(m), depth-1)
	}
	return totals
}

func sumPieceTotals(totals map[PieceType]int64) int64 {
	var sum int64
	for _, v := range totals {
		sum += v
	}
	return sum
}

func runPerftCases(t *testing.T, pos Position, tests []struct {
	depth    int
	expected int64
}) {
	t.Helper()
	for _, tc := range tests {
		t.Run("", func(t *testing.T) {
			got := perft(pos, tc.depth)
			if got != tc.expected {
				t.Errorf("perft(%d) = %d, want %d", tc.depth, got, tc.expected)
			}

			byPiece := sumPieceTotals(perftByPiece(pos, tc.depth))
			if byPiece != tc.expected {
				t.Errorf("perftByPiece(%d) = %d, want %d", tc.depth, byPiece, tc.expected)
			}
		})
	}
}

// runDeepPerftCase asserts a single deep perft count that must match
// exactly. These scenarios run into the hundreds of millions of nodes, so
// `go test -short` skips them; a normal run still exercises them.
func runDeepPerftCase(t *testing.T, fen string, depth int, expected int64) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping deep perft in -short mode")
	}

	pos, err := ParseFEN(fen)
	if err != nil {
		t.Fatalf("Failed to parse FEN %q: %v", fen, err)
	}

	got := perft(*pos, depth)
	if got != expected {
		t.Errorf("perft(%d) on %q = %d, want %d", depth, fen, got, expected)
	}
}

// TestPerftStartingPosition tests move generation from the starting position.
func TestPerftStartingPosition(t *testing.T) {
	pos := NewPosition()

	tests := []struct {
		depth    int
		expected int64
	}{
		{1, 20},
		{2, 400},
		{3, 8902},
		{4, 197281},
		// Depth 5 takes longer, enable for thorough testing:
		// {5, 4865609},
	}

	runPerftCases(t, *pos, tests)
}

// TestPerftKiwipete tests the famous Kiwipete position with many edge cases.
// FEN: r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -
func TestPerftKiwipete(t *testing.T) {
	pos, err := ParseFEN("r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq -")
	if err != nil {
		t.Fatalf("Failed to parse FEN: %v", err)
	}

	tests := []struct {
		depth    int
		expected int64
	}{
		{1, 48},
		{2, 2039},
		{3, 97862},
		// {4, 4085603}, // Takes ~1s, enable for thorough testing
	}

	runPerftCases(t, *pos, tests)
}

// TestPerftPosition3 tests en passant edge cases.
// FEN: 8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - -
func TestPerftPosition3(t *testing.T) {
	pos, err := ParseFEN("8/2p5/3p4/KP5r/1R3p1k/8/4P1P1/8 w - -")
	if err != nil {
		t.Fatalf("Failed to parse FEN: %v", err)
	}

	tests := []struct {
		depth    int
		expected int64
	}{
		{1, 14},
		{2, 191},
		{3, 2812},
		{4, 43238},
		// {5, 674624}, // Enable for thorough testing
	}

	runPerftCases(t, *pos, tests)
}

// TestPerftEnPassantPin tests the specific en passant horizontal pin edge case.
// FEN: 8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1
// Black pawn on e4 can capture en passant d3, but this would expose the black king
// on a4 to the white rook on h4.
func TestPerftEnPassantPin(t *testing.T) {
	pos, err := ParseFEN("8/8/8/8/k2Pp2R/8/8/4K3 b - d3 0 1")
	if err != nil {
		t.Fatalf("Failed to parse FEN: %v", err)
	}

	// The en passant capture should be illegal
	moves := pos.GenerateLegalMoves()
	for i := 0; i < moves.Len(); i++ {
		m := moves.Get(i)
		if m.IsEnPassant() {
			t.Errorf("En passant move %v should be illegal (horizontal pin)", m)
		}
	}

	// Verify perft
	// Depth 1: Ka3, Ka5, Kb3, Kb4, Kb5, e3 = 6 moves
	// Depth 2: After e4e3 (14), after king moves (16 each x5) = 14 + 80 = 94
	tests := []struct {
		depth    int
		expected int64
	}{
		{1, 6},
		{2, 94},
	}

	runPerftCases(t, *pos, tests)
}

// TestPerftStartingPositionDeep is the standard depth-6 perft count from
// the starting position.
func TestPerftStartingPositionDeep(t *testing.T) {
	runDeepPerftCase(t, "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1", 6, 119060324)
}

// TestPerftKiwipeteDeep is the Kiwipete position at depth 5.
func TestPerftKiwipeteDeep(t *testing.T) {
	runDeepPerftCase(t, "r3k2r/p1ppqpb1/bn2pnp1/3PN3/1p2P3/2N2Q1p/PPPBBPPP/R3K2R w KQkq - 0 1", 5, 193690690)
}

// TestPerftEnPassantDeep covers an en passant capture available the move
// after it's played.
// FEN: 8/5bk1/8/2Pp4/8/1K6/8/8 w - d6 0 1
func TestPerftEnPassantDeep(t *testing.T) {
	runDeepPerftCase(t, "8/5bk1/8/2Pp4/8/1K6/8/8 w - d6 0 1", 6, 824064)
}

// TestPerftCastlingRightsDeep exercises castling-rights bookkeeping: rook
// captures and king/rook moves must revoke the correct castling rights.
// FEN: r3k2r/1b4bq/8/8/8/8/7B/R3K2R w KQkq - 0 1
func TestPerftCastlingRightsDeep(t *testing.T) {
	runDeepPerftCase(t, "r3k2r/1b4bq/8/8/8/8/7B/R3K2R w KQkq - 0 1", 4, 1274206)
}

// TestPerftPromotionDeep exercises underpromotion and promotion-with-capture
// move generation.
// FEN: 3K4/8/8/8/8/8/4p3/2k2R2 b - - 0 1
func TestPerftPromotionDeep(t *testing.T) {
	runDeepPerftCase(t, "3K4/8/8/8/8/8/4p3/2k2R2 b - - 0 1", 6, 3821001)
}

// TestPerftPawnEndgameDeep is a sparse pawn-and-king endgame with a pawn one
// step from promoting.
// FEN: 8/P1k5/K7/8/8/8/8/8 w - - 0 1
func TestPerftPawnEndgameDeep(t *testing.T) {
	runDeepPerftCase(t, "8/P1k5/K7/8/8/8/8/8 w - - 0 1", 6, 92683)
}
