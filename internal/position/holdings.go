package position

import (
	"github.com/notnil/chess"
)

// DroppablePiece enumerates the five piece types that can live in a
// bughouse holding (kings are never held, per spec.md §3).
type DroppablePiece int

const (
	Pawn DroppablePiece = iota
	Knight
	Bishop
	Rook
	Queen
)

// AllDroppablePieces is iteration order p, n, b, r, q as used by
// should-stall evaluation (spec.md §4.6.1) and move biasing (§4.6.4).
var AllDroppablePieces = []DroppablePiece{Pawn, Knight, Bishop, Rook, Queen}

// Letter returns the uppercase FEN-holdings letter for this piece type.
func (p DroppablePiece) Letter() byte {
	switch p {
	case Pawn:
		return 'P'
	case Knight:
		return 'N'
	case Bishop:
		return 'B'
	case Rook:
		return 'R'
	case Queen:
		return 'Q'
	}
	return '?'
}

func (p DroppablePiece) String() string {
	switch p {
	case Pawn:
		return "pawn"
	case Knight:
		return "knight"
	case Bishop:
		return "bishop"
	case Rook:
		return "rook"
	case Queen:
		return "queen"
	}
	return "unknown"
}

// ParseLetter is the inverse of Letter, case-insensitive, for decoding
// drop requests off the wire (spec.md §6).
func ParseLetter(b byte) (DroppablePiece, bool) {
	switch b {
	case 'P', 'p':
		return Pawn, true
	case 'N', 'n':
		return Knight, true
	case 'B', 'b':
		return Bishop, true
	case 'R', 'r':
		return Rook, true
	case 'Q', 'q':
		return Queen, true
	}
	return 0, false
}

// ChessType maps to the corresponding notnil/chess piece type.
func (p DroppablePiece) ChessType() chess.PieceType {
	switch p {
	case Pawn:
		return chess.Pawn
	case Knight:
		return chess.Knight
	case Bishop:
		return chess.Bishop
	case Rook:
		return chess.Rook
	case Queen:
		return chess.Queen
	}
	return chess.NoPieceType
}

// DroppablePieceFromChessType is the inverse of ChessType; ok is false
// for kings (never droppable) or NoPieceType.
func DroppablePieceFromChessType(t chess.PieceType) (DroppablePiece, bool) {
	switch t {
	case chess.Pawn:
		return Pawn, true
	case chess.Knight:
		return Knight, true
	case chess.Bishop:
		return Bishop, true
	case chess.Rook:
		return Rook, true
	case chess.Queen:
		return Queen, true
	}
	return 0, false
}

// PieceCounts is a per-color holding: a non-negative count per piece type.
type PieceCounts struct {
	counts [5]int
}

// Count returns the number of held pieces of the given type.
func (pc PieceCounts) Count(p DroppablePiece) int {
	return pc.counts[p]
}

func (pc *PieceCounts) add(p DroppablePiece) {
	pc.counts[p]++
}

// remove decrements the count if positive. Returns false (and does
// nothing) if the count is already zero, per spec.md §4.3's
// holdings_remove semantics.
func (pc *PieceCounts) remove(p DroppablePiece) bool {
	if pc.counts[p] <= 0 {
		return false
	}
	pc.counts[p]--
	return true
}

// Holdings is the pair of piece pools for one board, per color.
type Holdings struct {
	White PieceCounts
	Black PieceCounts
}

func (h *Holdings) forColor(c chess.Color) *PieceCounts {
	if c == chess.White {
		return &h.White
	}
	return &h.Black
}

// Add delivers one unit of piece to color's pool.
func (h *Holdings) Add(c chess.Color, p DroppablePiece) {
	h.forColor(c).add(p)
}

// Remove takes one unit of piece from color's pool, returning false
// silently if none are held.
func (h *Holdings) Remove(c chess.Color, p DroppablePiece) bool {
	return h.forColor(c).remove(p)
}

// Count reports how many of piece color currently holds.
func (h Holdings) Count(c chess.Color, p DroppablePiece) int {
	if c == chess.White {
		return h.White.counts[p]
	}
	return h.Black.counts[p]
}

// Clone returns a deep copy (PieceCounts has no pointers, so a value
// copy suffices, but the method documents the intent at call sites that
// build hypothetical holdings for should-stall probes, per spec.md
// §4.6.1).
func (h Holdings) Clone() Holdings {
	return h
}
