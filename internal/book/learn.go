package book

import (
	"github.com/tanager-chess/engine/internal/board"
	"github.com/tanager-chess/engine/internal/storage"
)

// encodePolyglotMove converts a Move to Polyglot's 16-bit move encoding, the
// inverse of decodePolyglotMove. Castling is re-encoded as king-captures-rook.
func encodePolyglotMove(m board.Move) uint16 {
	from := m.From()
	to := m.To()

	if m.IsCastling() {
		switch {
		case from == board.E1 && to == board.G1:
			to = board.H1
		case from == board.E1 && to == board.C1:
			to = board.A1
		case from == board.E8 && to == board.G8:
			to = board.H8
		case from == board.E8 && to == board.C8:
			to = board.A8
		}
	}

	data := uint16(to.File()) | uint16(to.Rank())<<3 | uint16(from.File())<<6 | uint16(from.Rank())<<9

	if m.IsPromotion() {
		promoTypes := map[board.PieceType]uint16{
			board.Knight: 1,
			board.Bishop: 2,
			board.Rook:   3,
			board.Queen:  4,
		}
		data |= promoTypes[m.Promotion()] << 12
	}

	return data
}

// Reinforce increments the learned weight of a move played at pos, adding a
// new entry if the move hasn't been seen at this position before. It is the
// write path for reinforcement learning from self-play or post-game analysis,
// separate from the read-only Polyglot entries loaded by LoadPolyglot.
func (b *Book) Reinforce(pos *board.Position, m board.Move, bonus uint16) {
	key := pos.PolyglotHash()
	for i, e := range b.entries[key] {
		if e.Move == m {
			b.entries[key][i].Weight += bonus
			return
		}
	}
	b.entries[key] = append(b.entries[key], BookEntry{Move: m, Weight: bonus})
}

// SaveLearned persists every entry in the book to storage, keyed by Polyglot
// hash, so it survives process restarts and can be merged back on load.
func (b *Book) SaveLearned(s *storage.Storage) error {
	for hash, entries := range b.entries {
		learned := make([]storage.LearnedBookEntry, len(entries))
		for i, e := range entries {
			learned[i] = storage.LearnedBookEntry{Move: encodePolyglotMove(e.Move), Weight: e.Weight}
		}
		if err := s.SaveLearnedBookEntries(hash, learned); err != nil {
			return err
		}
	}
	return nil
}

// LoadLearned merges every persisted learned entry from storage into the
// book, adding to existing weights for moves the book already knows about.
func (b *Book) LoadLearned(s *storage.Storage) error {
	return s.EachLearnedBookEntry(func(hash uint64, entries []storage.LearnedBookEntry) error {
		for _, e := range entries {
			move := decodePolyglotMove(e.Move)
			if move == board.NoMove {
				continue
			}
			found := false
			for i, existing := range b.entries[hash] {
				if existing.Move == move {
					b.entries[hash][i].Weight += e.Weight
					found = true
					break
				}
			}
			if !found {
				b.entries[hash] = append(b.entries[hash], BookEntry{Move: move, Weight: e.Weight})
			}
		}
		return nil
	})
}
