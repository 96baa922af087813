package board

import "golang.org/x/sys/cpu"

// useBMI2Index selects the PEXT-style sliding attack lookup over the
// magic-multiply one. Detected once at startup via x/sys/cpu rather than a
// build tag: this package ships one binary, so the choice is made by
// inspecting the running CPU instead of requiring a separate build per
// target. Go's assembler has no PEXT/PDEP mnemonic, so extractBits/
// depositBits below are a portable software emulation of the instruction's
// semantics rather than the hardware opcode itself — the flag still gates
// on real hardware support so the alternate path only activates where the
// spec's "optional BMI2/PEXT alternative" is actually meaningful to enable.
var useBMI2Index = cpu.X86.HasBMI2

// extractBits emulates the x86 PEXT instruction: it gathers the bits of x
// selected by mask into a dense low-order result, in mask's bit order.
func extractBits(x, mask uint64) uint64 {
	var result uint64
	var bit uint
	for mask != 0 {
		lsb := mask & (-mask)
		if x&lsb != 0 {
			result |= 1 << bit
		}
		mask &= mask - 1
		bit++
	}
	return result
}

// depositBits emulates the x86 PDEP instruction: it scatters the low-order
// bits of x into the positions selected by mask, the inverse of
// extractBits. Unused by the current sliding-attack lookup (which stores
// full attack bitboards in bishopTable/rookTable, indexed by extractBits
// when useBMI2Index is set), kept alongside extractBits because spec.md
// §4.1 names the PEXT/PDEP pair together.
func depositBits(x, mask uint64) uint64 {
	var result uint64
	var bit uint
	for mask != 0 {
		lsb := mask & (-mask)
		if x&(1<<bit) != 0 {
			result |= lsb
		}
		mask &= mask - 1
		bit++
	}
	return result
}

// bishopAttacksPEXT looks up bishop attacks via extractBits instead of the
// magic multiply-shift. It uses the same bishopTable array as the magic
// path, but initBishopMagics fills that array in a different order when
// useBMI2Index is set: occupancy indexToOccupancy(i) goes to entry i, and
// extractBits inverts indexToOccupancy, so the lookup index is that i.
func bishopAttacksPEXT(sq Square, occupied Bitboard) Bitboard {
	m := &bishopMagics[sq]
	idx := extractBits(uint64(occupied)&uint64(m.Mask), uint64(m.Mask))
	return bishopTable[m.Offset+uint32(idx)]
}

// rookAttacksPEXT is bishopAttacksPEXT's rook counterpart.
func rookAttacksPEXT(sq Square, occupied Bitboard) Bitboard {
	m := &rookMagics[sq]
	idx := extractBits(uint64(occupied)&uint64(m.Mask), uint64(m.Mask))
	return rookTable[m.Offset+uint32(idx)]
}
