package stall

import "github.com/benbeisheim/bughouse-orchestrator/internal/position"

// fulfillmentTable is spec.md §4.6.3's request-equivalence table:
// requested piece -> set of piece types whose capture fulfills it.
var fulfillmentTable = map[position.DroppablePiece]map[position.DroppablePiece]bool{
	position.Pawn:   {position.Pawn: true, position.Bishop: true, position.Queen: true},
	position.Knight: {position.Knight: true},
	position.Bishop: {position.Bishop: true, position.Queen: true},
	position.Rook:   {position.Rook: true, position.Queen: true},
	position.Queen:  {position.Queen: true},
}

// Fulfills reports whether capturing actual satisfies a request for
// requested, per spec.md §4.6.3's substitution table.
func Fulfills(requested, actual position.DroppablePiece) bool {
	return fulfillmentTable[requested][actual]
}

// equivalentPieces returns every piece type that would fulfill a
// request for requested, used by move-biasing to find opponent pieces
// worth capturing.
func equivalentPieces(requested position.DroppablePiece) []position.DroppablePiece {
	var out []position.DroppablePiece
	for _, p := range position.AllDroppablePieces {
		if Fulfills(requested, p) {
			out = append(out, p)
		}
	}
	return out
}
