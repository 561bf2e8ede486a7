package position

import "github.com/notnil/chess"

// occupant is one square's contents in our own authoritative grid.
// notnil/chess models normal-move legality and check/checkmate/stalemate
// for positions it can represent, but it has no notion of a drop, so
// squares reached only via a drop must be checked for "does this leave
// my own king in check" without it. This attack scan is adapted from
// the teacher's internal/model/board.go isSquareAttacked/isKingInCheck
// (same ray/knight/king/pawn direction tables), kept only for that one
// purpose — everything else defers to notnil/chess.
type occupant struct {
	present bool
	color   chess.Color
	kind    chess.PieceType
}

type grid [8][8]occupant // grid[file][rank]

func (g *grid) at(sq Square) occupant {
	return g[sq.File][sq.Rank]
}

func (g *grid) set(sq Square, o occupant) {
	g[sq.File][sq.Rank] = o
}

var rookDirs = []Square{{File: 1, Rank: 0}, {File: -1, Rank: 0}, {File: 0, Rank: 1}, {File: 0, Rank: -1}}
var bishopDirs = []Square{{File: 1, Rank: 1}, {File: 1, Rank: -1}, {File: -1, Rank: 1}, {File: -1, Rank: -1}}
var knightDirs = []Square{
	{File: 2, Rank: 1}, {File: 2, Rank: -1}, {File: -2, Rank: 1}, {File: -2, Rank: -1},
	{File: 1, Rank: 2}, {File: 1, Rank: -2}, {File: -1, Rank: 2}, {File: -1, Rank: -2},
}
var kingDirs = append(append([]Square{}, rookDirs...), bishopDirs...)

// pawnAttackDirs returns the two squares a pawn of attackingColor
// threatens from its own square's perspective is reversed: we instead
// scan backward from the target square along the direction a pawn of
// attackingColor would have advanced from.
func pawnAttackDirs(attackingColor chess.Color) []Square {
	if attackingColor == chess.White {
		return []Square{{File: -1, Rank: -1}, {File: 1, Rank: -1}}
	}
	return []Square{{File: -1, Rank: 1}, {File: 1, Rank: 1}}
}

func add(a, b Square) Square {
	return Square{File: a.File + b.File, Rank: a.Rank + b.Rank}
}

// isSquareAttacked reports whether attackingColor attacks target.
func isSquareAttacked(g *grid, attackingColor chess.Color, target Square) bool {
	for _, dir := range rookDirs {
		if slidingAttack(g, target, dir, attackingColor, chess.Rook, chess.Queen) {
			return true
		}
	}
	for _, dir := range bishopDirs {
		if slidingAttack(g, target, dir, attackingColor, chess.Bishop, chess.Queen) {
			return true
		}
	}
	for _, dir := range knightDirs {
		sq := add(target, dir)
		if sq.Valid() {
			o := g.at(sq)
			if o.present && o.color == attackingColor && o.kind == chess.Knight {
				return true
			}
		}
	}
	for _, dir := range kingDirs {
		sq := add(target, dir)
		if sq.Valid() {
			o := g.at(sq)
			if o.present && o.color == attackingColor && o.kind == chess.King {
				return true
			}
		}
	}
	for _, dir := range pawnAttackDirs(attackingColor) {
		sq := add(target, dir)
		if sq.Valid() {
			o := g.at(sq)
			if o.present && o.color == attackingColor && o.kind == chess.Pawn {
				return true
			}
		}
	}
	return false
}

func slidingAttack(g *grid, from Square, dir Square, attackingColor chess.Color, types ...chess.PieceType) bool {
	cur := add(from, dir)
	for cur.Valid() {
		o := g.at(cur)
		if o.present {
			if o.color != attackingColor {
				return false
			}
			for _, t := range types {
				if o.kind == t {
					return true
				}
			}
			return false
		}
		cur = add(cur, dir)
	}
	return false
}

// findKing locates color's king, returning ok=false if absent (only
// possible transiently mid-construction; spec.md §3 invariant requires
// a king of each color unless the game is terminal).
func findKing(g *grid, color chess.Color) (Square, bool) {
	for f := 0; f < 8; f++ {
		for r := 0; r < 8; r++ {
			sq := Square{File: f, Rank: r}
			o := g.at(sq)
			if o.present && o.color == color && o.kind == chess.King {
				return sq, true
			}
		}
	}
	return Square{}, false
}

func isKingInCheck(g *grid, color chess.Color) bool {
	king, ok := findKing(g, color)
	if !ok {
		return false
	}
	opponent := chess.Black
	if color == chess.Black {
		opponent = chess.White
	}
	return isSquareAttacked(g, opponent, king)
}
