// Package position implements the bughouse position model (C3):
// board state, per-color holdings, move/drop legality, and the
// bughouse-FEN encoding, per spec.md §4.3.
//
// Standard-chess concerns — legality of normal moves, check, checkmate,
// stalemate, castling, en passant, promotion — are delegated entirely to
// github.com/notnil/chess, the real chess library several pack repos
// depend on (see DESIGN.md). Holdings and drops have no equivalent
// there and are implemented directly on top of a grid we keep in sync
// with notnil/chess's own FEN output after every normal move.
package position

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/notnil/chess"
)

const startingBoardFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR"

// ErrIllegalMove/ErrIllegalDrop are IllegalAction rejections per
// spec.md §7: recovered locally, never fatal to the game.
var (
	ErrIllegalMove = errors.New("position: illegal move")
	ErrIllegalDrop = errors.New("position: illegal drop")
	ErrGameOver    = errors.New("position: game is over")
)

// MoveRecord is spec.md §3's Move sum-type, represented as one struct
// with IsDrop discriminating the two variants.
type MoveRecord struct {
	IsDrop bool

	From, To Square
	Promotion DroppablePiece
	HasPromotion bool

	DropPiece DroppablePiece
	DropColor chess.Color

	CapturedPiece DroppablePiece
	CapturedColor chess.Color
	HasCapture    bool
}

// Notation renders a move record as plain coordinate notation for the
// persisted move log (spec.md §6): "e2e4", "e7e8q" for a promotion, or
// "N@f3" for a drop.
func (r MoveRecord) Notation() string {
	if r.IsDrop {
		return fmt.Sprintf("%c@%s", r.DropPiece.Letter(), r.To.String())
	}
	s := r.From.String() + r.To.String()
	if r.HasPromotion {
		s += strings.ToLower(string(r.Promotion.Letter()))
	}
	return s
}

// BughousePosition is one board's full bughouse state.
type BughousePosition struct {
	grid     grid
	turn     chess.Color
	castle   castleRights
	epSquare *Square
	halfmove int
	fullmove int

	holdings Holdings
	history  []MoveRecord
}

// NewBughousePosition returns the standard starting position with empty
// holdings.
func NewBughousePosition() *BughousePosition {
	g, err := decodeBoardFEN(startingBoardFEN)
	if err != nil {
		panic(fmt.Sprintf("position: starting fen is malformed: %v", err))
	}
	return &BughousePosition{
		grid:     *g,
		turn:     chess.White,
		castle:   castleRights{true, true, true, true},
		halfmove: 0,
		fullmove: 1,
	}
}

// NewBughousePositionFromFEN decodes a bughouse-extended FEN (spec.md
// §6) into a BughousePosition. Round-trips with FENWithHoldings.
func NewBughousePositionFromFEN(fenWithHoldings string) (*BughousePosition, error) {
	standardFEN, holdings, err := ParseBughouseFEN(fenWithHoldings)
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(standardFEN)
	if len(fields) != 6 {
		return nil, fmt.Errorf("position: expected 6 fen fields, got %d in %q", len(fields), standardFEN)
	}
	g, err := decodeBoardFEN(fields[0])
	if err != nil {
		return nil, err
	}
	turn := chess.White
	if fields[1] == "b" {
		turn = chess.Black
	}
	var ep *Square
	if fields[3] != "-" {
		if sq, ok := ParseSquare(fields[3]); ok {
			ep = &sq
		}
	}
	half, _ := strconv.Atoi(fields[4])
	full, _ := strconv.Atoi(fields[5])
	if full == 0 {
		full = 1
	}
	return &BughousePosition{
		grid:     *g,
		turn:     turn,
		castle:   parseCastleRights(fields[2]),
		epSquare: ep,
		halfmove: half,
		fullmove: full,
		holdings: holdings,
	}, nil
}

// Turn returns the side to move.
func (bp *BughousePosition) Turn() chess.Color { return bp.turn }

// Holdings returns a copy of the current holdings.
func (bp *BughousePosition) Holdings() Holdings { return bp.holdings }

// AddHoldings delivers one unit of piece to color's pool on this board,
// the operation the piece-flow coordinator performs on a capture's
// destination board (spec.md §4.4).
func (bp *BughousePosition) AddHoldings(color chess.Color, piece DroppablePiece) {
	bp.holdings.Add(color, piece)
}

// RemoveHoldings takes back one unit of piece from color's pool,
// reporting false if none were held. It is the inverse of AddHoldings.
func (bp *BughousePosition) RemoveHoldings(color chess.Color, piece DroppablePiece) bool {
	return bp.holdings.Remove(color, piece)
}

// History returns the move history in commit order.
func (bp *BughousePosition) History() []MoveRecord {
	out := make([]MoveRecord, len(bp.history))
	copy(out, bp.history)
	return out
}

// PieceAt returns the piece on sq, if any.
func (bp *BughousePosition) PieceAt(sq Square) (kind chess.PieceType, color chess.Color, ok bool) {
	o := bp.grid.at(sq)
	return o.kind, o.color, o.present
}

// Clone deep-copies the position (history included) for hypothetical
// probes (spec.md §4.6.1's should-stall evaluation mutates a clone's
// holdings, never the live position).
func (bp *BughousePosition) Clone() *BughousePosition {
	out := *bp
	out.history = append([]MoveRecord(nil), bp.history...)
	if bp.epSquare != nil {
		sq := *bp.epSquare
		out.epSquare = &sq
	}
	return &out
}

// chessGame rebuilds a standard-chess *chess.Game from the current grid
// and metadata, ignoring holdings (notnil/chess has no concept of them).
func (bp *BughousePosition) chessGame() (*chess.Game, error) {
	fn, err := chess.FEN(bp.standardFEN())
	if err != nil {
		return nil, fmt.Errorf("position: rebuilding chess.Game: %w", err)
	}
	return chess.NewGame(fn), nil
}

// ApplyNormal applies a non-drop move: from-square, to-square, and an
// optional promotion piece. Legality (including "does not leave the
// mover's own king in check") is delegated to notnil/chess.
func (bp *BughousePosition) ApplyNormal(from, to Square, promo DroppablePiece, hasPromo bool) (MoveRecord, error) {
	g, err := bp.chessGame()
	if err != nil {
		return MoveRecord{}, err
	}

	uciStr := from.String() + to.String()
	if hasPromo {
		uciStr += strings.ToLower(string(promo.ChessType().String()))
	}

	pos := g.Position()
	move, err := chess.UCINotation{}.Decode(pos, uciStr)
	if err != nil {
		return MoveRecord{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}

	captured := bp.grid.at(to)
	rec := MoveRecord{From: from, To: to, Promotion: promo, HasPromotion: hasPromo}

	isPawn := bp.grid.at(from).kind == chess.Pawn
	if captured.present {
		rec.HasCapture = true
		rec.CapturedPiece, _ = DroppablePieceFromChessType(captured.kind)
		rec.CapturedColor = captured.color
	} else if isPawn && bp.epSquare != nil && to == *bp.epSquare {
		// En passant: the captured pawn sits beside the mover, not on
		// the destination square.
		capturedSq := Square{File: to.File, Rank: from.Rank}
		capturedOcc := bp.grid.at(capturedSq)
		if capturedOcc.present {
			rec.HasCapture = true
			rec.CapturedPiece, _ = DroppablePieceFromChessType(capturedOcc.kind)
			rec.CapturedColor = capturedOcc.color
		}
	}

	if err := g.Move(move); err != nil {
		return MoveRecord{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}

	if err := bp.syncFromChessFEN(g.FEN(), isPawn || rec.HasCapture); err != nil {
		return MoveRecord{}, err
	}

	bp.history = append(bp.history, rec)
	return rec, nil
}

// syncFromChessFEN adopts the board, turn, castle rights and en-passant
// square from a notnil/chess-produced FEN, but recomputes the halfmove
// clock and fullmove counter ourselves (reset-on-pawn-move-or-capture /
// increment-after-black, per standard chess rules) since it is the
// mover's own move classification that determines them, not a chess.Game
// getter we'd otherwise need to trust the exact name of.
func (bp *BughousePosition) syncFromChessFEN(fen string, resetHalfmove bool) error {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return fmt.Errorf("position: unexpected fen from chess engine: %q", fen)
	}
	g, err := decodeBoardFEN(fields[0])
	if err != nil {
		return err
	}
	priorTurn := bp.turn
	bp.grid = *g
	if fields[1] == "b" {
		bp.turn = chess.Black
	} else {
		bp.turn = chess.White
	}
	bp.castle = parseCastleRights(fields[2])
	if fields[3] == "-" {
		bp.epSquare = nil
	} else if sq, ok := ParseSquare(fields[3]); ok {
		bp.epSquare = &sq
	} else {
		bp.epSquare = nil
	}

	if resetHalfmove {
		bp.halfmove = 0
	} else {
		bp.halfmove++
	}
	if priorTurn == chess.Black {
		bp.fullmove++
	}
	return nil
}

// IsDropLegal reports whether dropping piece of color on sq is legal:
// the square must be empty, pawns may not land on rank 1 or 8, the
// piece must be held, and the resulting position must not leave the
// mover's own king in check, per spec.md §4.3.
func (bp *BughousePosition) IsDropLegal(sq Square, piece DroppablePiece, color chess.Color) bool {
	if !sq.Valid() {
		return false
	}
	if bp.grid.at(sq).present {
		return false
	}
	if piece == Pawn && (sq.Rank == 0 || sq.Rank == 7) {
		return false
	}
	if bp.holdings.Count(color, piece) <= 0 {
		return false
	}

	trial := bp.grid
	trial.set(sq, occupant{present: true, color: color, kind: piece.ChessType()})
	return !isKingInCheck(&trial, color)
}

// ApplyDrop places a held piece on sq. Returns ErrIllegalDrop if
// IsDropLegal would reject it; any speculative holdings mutation is
// avoided by checking before mutating, per spec.md §7's rollback
// requirement for IllegalAction.
func (bp *BughousePosition) ApplyDrop(sq Square, piece DroppablePiece, color chess.Color) (MoveRecord, error) {
	if color != bp.turn {
		return MoveRecord{}, fmt.Errorf("%w: not %v's turn", ErrIllegalDrop, color)
	}
	if !bp.IsDropLegal(sq, piece, color) {
		return MoveRecord{}, ErrIllegalDrop
	}

	if !bp.holdings.Remove(color, piece) {
		return MoveRecord{}, ErrIllegalDrop
	}
	bp.grid.set(sq, occupant{present: true, color: color, kind: piece.ChessType()})

	bp.epSquare = nil
	bp.halfmove++
	if bp.turn == chess.Black {
		bp.fullmove++
	}
	if bp.turn == chess.White {
		bp.turn = chess.Black
	} else {
		bp.turn = chess.White
	}

	rec := MoveRecord{IsDrop: true, To: sq, DropPiece: piece, DropColor: color}
	bp.history = append(bp.history, rec)
	return rec, nil
}

// IsCheckmate reports standard checkmate on the grid, ignoring
// holdings, per spec.md §4.3. Callers needing bughouse's
// "true checkmate" (queen-drop-proof) must layer that check themselves
// (see internal/orchestrator), since it requires talking to a live UCI
// engine, not just this position model.
func (bp *BughousePosition) IsCheckmate() bool {
	g, err := bp.chessGame()
	if err != nil {
		return false
	}
	return g.Outcome() != chess.NoOutcome && g.Method() == chess.Checkmate
}

// IsStalemate reports standard stalemate on the grid, ignoring holdings.
func (bp *BughousePosition) IsStalemate() bool {
	g, err := bp.chessGame()
	if err != nil {
		return false
	}
	return g.Outcome() != chess.NoOutcome && g.Method() == chess.Stalemate
}

// IsInCheck reports whether the side to move is currently in check.
func (bp *BughousePosition) IsInCheck() bool {
	return isKingInCheck(&bp.grid, bp.turn)
}
