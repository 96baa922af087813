package board

// GenerateLegalMoves generates all legal moves for the position using the
// checkers/pinned-mask pipeline: checkers and pinned pieces are computed
// once, every pseudo-legal destination is intersected with a check-evasion
// target mask, and pinned pieces are further restricted to their pin line.
// En passant and castling carry their own extra legality checks.
func (p *Position) GenerateLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generateLegal(ml, ^Bitboard(0))
	return ml
}

// GeneratePseudoLegalMoves generates all pseudo-legal moves (may leave king in check).
func (p *Position) GeneratePseudoLegalMoves() *MoveList {
	ml := NewMoveList()
	p.generateAllMoves(ml)
	return ml
}

// GenerateCaptures generates all legal captures (en passant and capturing
// promotions included) plus non-capturing promotions.
func (p *Position) GenerateCaptures() *MoveList {
	ml := NewMoveList()
	us := p.SideToMove
	p.generateLegal(ml, p.Occupied[us.Other()])

	promoFrom, promoRank := Rank7, Rank8
	if us == Black {
		promoFrom, promoRank = Rank2, Rank1
	}
	if p.Pieces[us][Pawn]&promoFrom != 0 {
		var quiet MoveList
		p.generateLegal(&quiet, promoRank&^p.AllOccupied)
		for i := 0; i < quiet.Len(); i++ {
			if m := quiet.Get(i); m.IsPromotion() {
				ml.Add(m)
			}
		}
	}
	return ml
}

// generateLegal emits legal moves whose destination lies in destFilter,
// restricted further by the check-evasion target mask. En passant captures
// are emitted regardless of destFilter; castling moves only when destFilter
// is the full board.
func (p *Position) generateLegal(ml *MoveList, destFilter Bitboard) {
	us := p.SideToMove
	them := us.Other()
	ksq := p.KingSquare[us]
	occupied := p.AllOccupied

	checkers := p.Checkers
	numCheckers := checkers.PopCount()

	// King moves are always considered: remove the king from the occupancy
	// so sliding attackers "see through" the vacated square.
	occWithoutKing := occupied &^ SquareBB(ksq)
	kingTargets := KingAttacks(ksq) & ^p.Occupied[us] & destFilter
	for kingTargets != 0 {
		to := kingTargets.PopLSB()
		if p.AttackersByColor(to, them, occWithoutKing) == 0 {
			ml.Add(NewMove(ksq, to))
		}
	}

	if numCheckers >= 2 {
		// Double check: only king moves are legal.
		return
	}

	target := destFilter
	if numCheckers == 1 {
		checkerSq := checkers.LSB()
		target &= Between(ksq, checkerSq) | SquareBB(checkerSq)
	}

	pinned := p.ComputePinned()

	p.generateNonKingMoves(ml, us, them, occupied, target, pinned, ksq)

	if numCheckers == 0 && destFilter == ^Bitboard(0) {
		p.generateCastlingMoves(ml, us)
	}
}

// generateNonKingMoves emits legal non-king moves restricted to target
// (the check-evasion mask intersected with any caller destination filter).
// Pinned pieces are further restricted to the line through their own king.
func (p *Position) generateNonKingMoves(ml *MoveList, us, them Color, occupied, target, pinned Bitboard, ksq Square) {
	enemies := p.Occupied[them]

	addAttacks := func(from Square, attacks Bitboard) {
		attacks &= target
		if pinned&SquareBB(from) != 0 {
			attacks &= Line(ksq, from)
		}
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to))
		}
	}

	knights := p.Pieces[us][Knight]
	for knights != 0 {
		from := knights.PopLSB()
		addAttacks(from, KnightAttacks(from)&^p.Occupied[us])
	}

	bishops := p.Pieces[us][Bishop]
	for bishops != 0 {
		from := bishops.PopLSB()
		addAttacks(from, BishopAttacks(from, occupied)&^p.Occupied[us])
	}

	rooks := p.Pieces[us][Rook]
	for rooks != 0 {
		from := rooks.PopLSB()
		addAttacks(from, RookAttacks(from, occupied)&^p.Occupied[us])
	}

	queens := p.Pieces[us][Queen]
	for queens != 0 {
		from := queens.PopLSB()
		addAttacks(from, QueenAttacks(from, occupied)&^p.Occupied[us])
	}

	p.generatePawnMovesLegal(ml, us, enemies, occupied, target, pinned, ksq)
}

// generatePawnMovesLegal emits legal pawn moves (pushes, captures,
// promotions, en passant) restricted by target and pin masks.
func (p *Position) generatePawnMovesLegal(ml *MoveList, us Color, enemies, occupied, target, pinned Bitboard, ksq Square) {
	pawns := p.Pieces[us][Pawn]
	empty := ^occupied

	var push1, push2, attackL, attackR Bitboard
	var promotionRank Bitboard
	var pushDir int

	if us == White {
		push1 = pawns.North() & empty
		push2 = (push1 & Rank3).North() & empty
		attackL = pawns.NorthWest() & enemies
		attackR = pawns.NorthEast() & enemies
		promotionRank = Rank8
		pushDir = 8
	} else {
		push1 = pawns.South() & empty
		push2 = (push1 & Rank6).South() & empty
		attackL = pawns.SouthWest() & enemies
		attackR = pawns.SouthEast() & enemies
		promotionRank = Rank1
		pushDir = -8
	}

	emit := func(from, to Square) {
		if pinned&SquareBB(from) != 0 && Line(ksq, from)&SquareBB(to) == 0 {
			return
		}
		if target&SquareBB(to) == 0 {
			return
		}
		if promotionRank&SquareBB(to) != 0 {
			addPromotions(ml, from, to)
		} else {
			ml.Add(NewMove(from, to))
		}
	}

	for bb := push1; bb != 0; {
		to := bb.PopLSB()
		emit(Square(int(to)-pushDir), to)
	}
	for bb := push2; bb != 0; {
		to := bb.PopLSB()
		emit(Square(int(to)-2*pushDir), to)
	}
	for bb := attackL; bb != 0; {
		to := bb.PopLSB()
		emit(Square(int(to)-pushDir+1), to)
	}
	for bb := attackR; bb != 0; {
		to := bb.PopLSB()
		emit(Square(int(to)-pushDir-1), to)
	}

	if p.EnPassant != NoSquare {
		epBB := SquareBB(p.EnPassant)
		var epAttackers Bitboard
		if us == White {
			epAttackers = (epBB.SouthWest() | epBB.SouthEast()) & pawns
		} else {
			epAttackers = (epBB.NorthWest() | epBB.NorthEast()) & pawns
		}
		for epAttackers != 0 {
			from := epAttackers.PopLSB()
			if p.enPassantLegal(from, p.EnPassant, us) {
				ml.Add(NewEnPassant(from, p.EnPassant))
			}
		}
	}
}

// enPassantLegal verifies that performing an en-passant capture does not
// leave the mover's own king in check. This requires its own check because
// en passant removes two pawns from the same rank simultaneously, which can
// expose the king to a rook/queen along that rank even when neither pawn
// individually was pinned.
func (p *Position) enPassantLegal(from, epSquare Square, us Color) bool {
	v := NewVBoard(p)
	v.ApplyMove(NewEnPassant(from, epSquare), us)
	return !v.IsKingAttacked(v.KingSquare[us], us.Other())
}

// generateAllMoves generates all pseudo-legal moves (unfiltered).
func (p *Position) generateAllMoves(ml *MoveList) {
	us := p.SideToMove
	them := us.Other()
	occupied := p.AllOccupied
	enemies := p.Occupied[them]

	p.generatePawnMoves(ml, us, enemies, occupied)

	knights := p.Pieces[us][Knight]
	for knights != 0 {
		from := knights.PopLSB()
		attacks := KnightAttacks(from) & ^p.Occupied[us]
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to))
		}
	}

	bishops := p.Pieces[us][Bishop]
	for bishops != 0 {
		from := bishops.PopLSB()
		attacks := BishopAttacks(from, occupied) & ^p.Occupied[us]
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to))
		}
	}

	rooks := p.Pieces[us][Rook]
	for rooks != 0 {
		from := rooks.PopLSB()
		attacks := RookAttacks(from, occupied) & ^p.Occupied[us]
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to))
		}
	}

	queens := p.Pieces[us][Queen]
	for queens != 0 {
		from := queens.PopLSB()
		attacks := QueenAttacks(from, occupied) & ^p.Occupied[us]
		for attacks != 0 {
			to := attacks.PopLSB()
			ml.Add(NewMove(from, to))
		}
	}

	p.generateKingMoves(ml, us)
	p.generateCastlingMoves(ml, us)
}

// generatePawnMoves generates all pseudo-legal pawn moves.
func (p *Position) generatePawnMoves(ml *MoveList, us Color, enemies, occupied Bitboard) {
	pawns := p.Pieces[us][Pawn]
	empty := ^occupied

	var push1, push2, attackL, attackR Bitboard
	var promotionRank Bitboard
	var pushDir int

	if us == White {
		push1 = pawns.North() & empty
		push2 = (push1 & Rank3).North() & empty
		attackL = pawns.NorthWest() & enemies
		attackR = pawns.NorthEast() & enemies
		promotionRank = Rank8
		pushDir = 8
	} else {
		push1 = pawns.South() & empty
		push2 = (push1 & Rank6).South() & empty
		attackL = pawns.SouthWest() & enemies
		attackR = pawns.SouthEast() & enemies
		promotionRank = Rank1
		pushDir = -8
	}

	nonPromo := push1 & ^promotionRank
	for nonPromo != 0 {
		to := nonPromo.PopLSB()
		from := Square(int(to) - pushDir)
		ml.Add(NewMove(from, to))
	}

	for push2 != 0 {
		to := push2.PopLSB()
		from := Square(int(to) - 2*pushDir)
		ml.Add(NewMove(from, to))
	}

	nonPromoL := attackL & ^promotionRank
	for nonPromoL != 0 {
		to := nonPromoL.PopLSB()
		from := Square(int(to) - pushDir + 1)
		ml.Add(NewMove(from, to))
	}

	nonPromoR := attackR & ^promotionRank
	for nonPromoR != 0 {
		to := nonPromoR.PopLSB()
		from := Square(int(to) - pushDir - 1)
		ml.Add(NewMove(from, to))
	}

	promoPush := push1 & promotionRank
	for promoPush != 0 {
		to := promoPush.PopLSB()
		from := Square(int(to) - pushDir)
		addPromotions(ml, from, to)
	}

	promoL := attackL & promotionRank
	for promoL != 0 {
		to := promoL.PopLSB()
		from := Square(int(to) - pushDir + 1)
		addPromotions(ml, from, to)
	}

	promoR := attackR & promotionRank
	for promoR != 0 {
		to := promoR.PopLSB()
		from := Square(int(to) - pushDir - 1)
		addPromotions(ml, from, to)
	}

	if p.EnPassant != NoSquare {
		epBB := SquareBB(p.EnPassant)
		var epAttackers Bitboard
		if us == White {
			epAttackers = (epBB.SouthWest() | epBB.SouthEast()) & pawns
		} else {
			epAttackers = (epBB.NorthWest() | epBB.NorthEast()) & pawns
		}
		for epAttackers != 0 {
			from := epAttackers.PopLSB()
			ml.Add(NewEnPassant(from, p.EnPassant))
		}
	}
}

// addPromotions adds all four promotion moves.
func addPromotions(ml *MoveList, from, to Square) {
	ml.Add(NewPromotion(from, to, Queen))
	ml.Add(NewPromotion(from, to, Rook))
	ml.Add(NewPromotion(from, to, Bishop))
	ml.Add(NewPromotion(from, to, Knight))
}

// generateKingMoves generates king moves (non-castling, pseudo-legal).
func (p *Position) generateKingMoves(ml *MoveList, us Color) {
	from := p.KingSquare[us]
	attacks := KingAttacks(from) & ^p.Occupied[us]

	for attacks != 0 {
		to := attacks.PopLSB()
		ml.Add(NewMove(from, to))
	}
}

// generateCastlingMoves generates castling moves (already fully legal: empty
// intermediate squares and an unattacked king path are checked here).
func (p *Position) generateCastlingMoves(ml *MoveList, us Color) {
	them := us.Other()

	if us == White {
		if p.CastlingRights&WhiteKingSideCastle != 0 {
			if p.AllOccupied&((1<<F1)|(1<<G1)) == 0 {
				if !p.IsSquareAttacked(E1, them) && !p.IsSquareAttacked(F1, them) && !p.IsSquareAttacked(G1, them) {
					ml.Add(NewCastling(E1, G1))
				}
			}
		}
		if p.CastlingRights&WhiteQueenSideCastle != 0 {
			if p.AllOccupied&((1<<B1)|(1<<C1)|(1<<D1)) == 0 {
				if !p.IsSquareAttacked(E1, them) && !p.IsSquareAttacked(D1, them) && !p.IsSquareAttacked(C1, them) {
					ml.Add(NewCastling(E1, C1))
				}
			}
		}
	} else {
		if p.CastlingRights&BlackKingSideCastle != 0 {
			if p.AllOccupied&((1<<F8)|(1<<G8)) == 0 {
				if !p.IsSquareAttacked(E8, them) && !p.IsSquareAttacked(F8, them) && !p.IsSquareAttacked(G8, them) {
					ml.Add(NewCastling(E8, G8))
				}
			}
		}
		if p.CastlingRights&BlackQueenSideCastle != 0 {
			if p.AllOccupied&((1<<B8)|(1<<C8)|(1<<D8)) == 0 {
				if !p.IsSquareAttacked(E8, them) && !p.IsSquareAttacked(D8, them) && !p.IsSquareAttacked(C8, them) {
					ml.Add(NewCastling(E8, C8))
				}
			}
		}
	}
}

// IsLegal reports whether a pseudo-legal move generated elsewhere is legal
// in this position. Provided for callers (book move verification, SAN
// disambiguation against hand-rolled candidates) that hold a move from
// outside the legal-generation pipeline.
func (p *Position) IsLegal(m Move) bool {
	legal := p.GenerateLegalMoves()
	for i := 0; i < legal.Len(); i++ {
		if legal.Get(i) == m {
			return true
		}
	}
	return false
}

// MakeMove returns the Position resulting from applying m, leaving the
// receiver unmodified. The receiver is taken by value, so the mutations
// below apply only to the local copy that is returned.
func (p Position) MakeMove(m Move) Position {
	us := p.SideToMove
	them := us.Other()
	from := m.From()
	to := m.To()
	piece := p.PieceAt(from)
	pt := piece.Type()

	p.Hash ^= zobristSideToMove
	p.Hash ^= zobristCastling[p.CastlingRights]

	if p.EnPassant != NoSquare && enPassantCapturePossible(&p, p.EnPassant, us) {
		p.Hash ^= zobristEnPassant[p.EnPassant.File()]
	}
	p.EnPassant = NoSquare

	var captured Piece
	if m.IsEnPassant() {
		var capturedSq Square
		if us == White {
			capturedSq = to - 8
		} else {
			capturedSq = to + 8
		}
		captured = p.removePiece(capturedSq)
		p.Hash ^= zobristPiece[them][Pawn][capturedSq]
	} else if c := p.PieceAt(to); c != NoPiece {
		captured = c
		p.removePiece(to)
		p.Hash ^= zobristPiece[them][c.Type()][to]
	}

	p.movePiece(from, to)
	p.Hash ^= zobristPiece[us][pt][from]
	p.Hash ^= zobristPiece[us][pt][to]

	if m.IsPromotion() {
		promoPt := m.Promotion()
		p.Pieces[us][Pawn] &^= SquareBB(to)
		p.Pieces[us][promoPt] |= SquareBB(to)
		p.Hash ^= zobristPiece[us][Pawn][to]
		p.Hash ^= zobristPiece[us][promoPt][to]
	}

	if m.IsCastling() {
		var rookFrom, rookTo Square
		if to > from {
			rookFrom = NewSquare(7, from.Rank())
			rookTo = NewSquare(5, from.Rank())
		} else {
			rookFrom = NewSquare(0, from.Rank())
			rookTo = NewSquare(3, from.Rank())
		}
		p.movePiece(rookFrom, rookTo)
		p.Hash ^= zobristPiece[us][Rook][rookFrom]
		p.Hash ^= zobristPiece[us][Rook][rookTo]
	}

	if pt == King {
		if us == White {
			p.CastlingRights &^= WhiteKingSideCastle | WhiteQueenSideCastle
		} else {
			p.CastlingRights &^= BlackKingSideCastle | BlackQueenSideCastle
		}
	}
	if from == A1 || to == A1 {
		p.CastlingRights &^= WhiteQueenSideCastle
	}
	if from == H1 || to == H1 {
		p.CastlingRights &^= WhiteKingSideCastle
	}
	if from == A8 || to == A8 {
		p.CastlingRights &^= BlackQueenSideCastle
	}
	if from == H8 || to == H8 {
		p.CastlingRights &^= BlackKingSideCastle
	}
	p.Hash ^= zobristCastling[p.CastlingRights]

	if pt == Pawn && abs(int(to)-int(from)) == 16 {
		epSquare := Square((int(from) + int(to)) / 2)
		p.EnPassant = epSquare
		if enPassantCapturePossible(&p, epSquare, them) {
			p.Hash ^= zobristEnPassant[epSquare.File()]
		}
	}

	if pt == Pawn || captured != NoPiece {
		p.HalfMoveClock = 0
	} else {
		p.HalfMoveClock++
	}

	if us == Black {
		p.FullMoveNumber++
	}

	p.SideToMove = them
	p.UpdateCheckers()

	return p
}

// HasLegalMoves returns true if the side to move has any legal moves.
func (p *Position) HasLegalMoves() bool {
	return p.GenerateLegalMoves().Len() > 0
}

// IsCheckmate returns true if the position is checkmate.
func (p *Position) IsCheckmate() bool {
	return p.InCheck() && !p.HasLegalMoves()
}

// IsStalemate returns true if the position is stalemate.
func (p *Position) IsStalemate() bool {
	return !p.InCheck() && !p.HasLegalMoves()
}

// IsDraw returns true if the position is a draw (stalemate, 50-move, insufficient material).
func (p *Position) IsDraw() bool {
	if p.IsStalemate() {
		return true
	}
	if p.HalfMoveClock >= 100 {
		return true
	}
	return p.IsInsufficientMaterial()
}

// IsInsufficientMaterial returns true if neither side can checkmate.
func (p *Position) IsInsufficientMaterial() bool {
	if p.Pieces[White][Pawn]|p.Pieces[Black][Pawn] != 0 ||
		p.Pieces[White][Rook]|p.Pieces[Black][Rook] != 0 ||
		p.Pieces[White][Queen]|p.Pieces[Black][Queen] != 0 {
		return false
	}

	wKnights := p.Pieces[White][Knight].PopCount()
	wBishops := p.Pieces[White][Bishop].PopCount()
	bKnights := p.Pieces[Black][Knight].PopCount()
	bBishops := p.Pieces[Black][Bishop].PopCount()

	if wKnights+wBishops+bKnights+bBishops == 0 {
		return true
	}
	if wKnights+wBishops <= 1 && bKnights+bBishops == 0 {
		return true
	}
	if bKnights+bBishops <= 1 && wKnights+wBishops == 0 {
		return true
	}

	return false
}
