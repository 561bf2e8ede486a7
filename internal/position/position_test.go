package position

import (
	"strings"
	"testing"

	"github.com/notnil/chess"
)

func TestNewBughousePositionStartingFEN(t *testing.T) {
	bp := NewBughousePosition()
	got := bp.FENWithHoldings()
	want := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR[] w KQkq - 0 1"
	if got != want {
		t.Fatalf("FENWithHoldings() = %q, want %q", got, want)
	}
}

func TestFENRoundTripsWithHoldings(t *testing.T) {
	in := "rnbqkbnr/pppp1ppp/8/4p3/4P3/8/PPPP1PPP/RNBQKBNR[Pn] w KQkq - 0 2"
	bp, err := NewBughousePositionFromFEN(in)
	if err != nil {
		t.Fatalf("NewBughousePositionFromFEN: %v", err)
	}
	if got := bp.FENWithHoldings(); got != in {
		t.Fatalf("round trip = %q, want %q", got, in)
	}
	if c := bp.Holdings().Count(chess.White, Pawn); c != 1 {
		t.Fatalf("white pawn holding = %d, want 1", c)
	}
	if c := bp.Holdings().Count(chess.Black, Knight); c != 1 {
		t.Fatalf("black knight holding = %d, want 1", c)
	}
}

func TestApplyNormalPawnOpeningUpdatesTurnAndHalfmove(t *testing.T) {
	bp := NewBughousePosition()
	from, _ := ParseSquare("e2")
	to, _ := ParseSquare("e4")
	rec, err := bp.ApplyNormal(from, to, 0, false)
	if err != nil {
		t.Fatalf("ApplyNormal: %v", err)
	}
	if rec.HasCapture {
		t.Fatalf("opening pawn push should not capture")
	}
	if bp.Turn() != chess.Black {
		t.Fatalf("turn = %v, want black", bp.Turn())
	}
	if bp.halfmove != 0 {
		t.Fatalf("halfmove = %d, want 0 after a pawn move", bp.halfmove)
	}
	kind, color, ok := bp.PieceAt(to)
	if !ok || kind != chess.Pawn || color != chess.White {
		t.Fatalf("PieceAt(e4) = (%v, %v, %v), want (pawn, white, true)", kind, color, ok)
	}
	ep, _ := ParseSquare("e3")
	if bp.epSquare == nil || *bp.epSquare != ep {
		t.Fatalf("expected en passant square e3 after double push")
	}
}

func TestApplyNormalIllegalMoveRejected(t *testing.T) {
	bp := NewBughousePosition()
	from, _ := ParseSquare("e2")
	to, _ := ParseSquare("e5")
	if _, err := bp.ApplyNormal(from, to, 0, false); err == nil {
		t.Fatalf("expected illegal move error for e2e5 from starting position")
	}
}

func TestApplyNormalCaptureRecordsCapturedPiece(t *testing.T) {
	fen := "rnbqkbnr/ppp1pppp/8/3p4/4P3/8/PPPP1PPP/RNBQKBNR[] w KQkq - 0 2"
	bp, err := NewBughousePositionFromFEN(fen)
	if err != nil {
		t.Fatalf("NewBughousePositionFromFEN: %v", err)
	}
	from, _ := ParseSquare("e4")
	to, _ := ParseSquare("d5")
	rec, err := bp.ApplyNormal(from, to, 0, false)
	if err != nil {
		t.Fatalf("ApplyNormal: %v", err)
	}
	if !rec.HasCapture || rec.CapturedPiece != Pawn || rec.CapturedColor != chess.Black {
		t.Fatalf("rec = %+v, want capture of black pawn", rec)
	}
}

func TestIsDropLegalRejectsOccupiedSquare(t *testing.T) {
	bp := NewBughousePosition()
	bp.holdings.Add(chess.White, Knight)
	e2, _ := ParseSquare("e2")
	if bp.IsDropLegal(e2, Knight, chess.White) {
		t.Fatalf("drop onto occupied square should be illegal")
	}
}

func TestIsDropLegalRejectsPawnOnBackRank(t *testing.T) {
	bp := NewBughousePosition()
	bp.holdings.Add(chess.White, Pawn)
	e1, _ := ParseSquare("e1")
	if bp.IsDropLegal(e1, Pawn, chess.White) {
		t.Fatalf("pawn drop on rank 1 should be illegal")
	}
}

func TestIsDropLegalRejectsUnheldPiece(t *testing.T) {
	bp := NewBughousePosition()
	e4, _ := ParseSquare("e4")
	if bp.IsDropLegal(e4, Queen, chess.White) {
		t.Fatalf("drop of unheld piece should be illegal")
	}
}

func TestApplyDropConsumesHoldingAndTogglesTurn(t *testing.T) {
	fen := "4k3/8/8/8/8/8/8/4K3[N] w - - 0 1"
	bp, err := NewBughousePositionFromFEN(fen)
	if err != nil {
		t.Fatalf("NewBughousePositionFromFEN: %v", err)
	}
	e4, _ := ParseSquare("e4")
	rec, err := bp.ApplyDrop(e4, Knight, chess.White)
	if err != nil {
		t.Fatalf("ApplyDrop: %v", err)
	}
	if !rec.IsDrop || rec.DropPiece != Knight {
		t.Fatalf("rec = %+v, want a knight drop record", rec)
	}
	if bp.Holdings().Count(chess.White, Knight) != 0 {
		t.Fatalf("holding should be consumed")
	}
	if bp.Turn() != chess.Black {
		t.Fatalf("turn should pass to black after white's drop")
	}
}

func TestApplyDropRejectedWhenWouldLeaveOwnKingInCheck(t *testing.T) {
	// White king on e1, black rook on e8, white holds a knight: the king
	// is already in check along the e-file. A drop off the file (a1)
	// leaves it in check and is illegal; a drop on the file between rook
	// and king (e4) blocks the check and is legal.
	fen := "4r3/8/8/8/8/8/8/4K3[N] w - - 0 1"
	bp, err := NewBughousePositionFromFEN(fen)
	if err != nil {
		t.Fatalf("NewBughousePositionFromFEN: %v", err)
	}
	a1, _ := ParseSquare("a1")
	if bp.IsDropLegal(a1, Knight, chess.White) {
		t.Fatalf("drop that leaves own king in check should be illegal")
	}
	e4, _ := ParseSquare("e4")
	if !bp.IsDropLegal(e4, Knight, chess.White) {
		t.Fatalf("drop that blocks the checking rook should be legal")
	}
}

func TestIsCheckmateFoolsMate(t *testing.T) {
	fen := "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR[] w KQkq - 0 3"
	bp, err := NewBughousePositionFromFEN(fen)
	if err != nil {
		t.Fatalf("NewBughousePositionFromFEN: %v", err)
	}
	if !bp.IsCheckmate() {
		t.Fatalf("expected fool's mate position to be checkmate")
	}
}

func TestIsStalemate(t *testing.T) {
	fen := "7k/5Q2/6K1/8/8/8/8/8[] b - - 0 1"
	bp, err := NewBughousePositionFromFEN(fen)
	if err != nil {
		t.Fatalf("NewBughousePositionFromFEN: %v", err)
	}
	if !bp.IsStalemate() {
		t.Fatalf("expected stalemate")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	bp := NewBughousePosition()
	bp.holdings.Add(chess.White, Queen)
	clone := bp.Clone()
	clone.holdings.Remove(chess.White, Queen)
	if bp.Holdings().Count(chess.White, Queen) != 1 {
		t.Fatalf("mutating clone's holdings must not affect the original")
	}
}

func TestParseSquareRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "z1", "a9", "aa"} {
		if _, ok := ParseSquare(s); ok {
			t.Fatalf("ParseSquare(%q) should fail", s)
		}
	}
}

func TestParseLetterRoundTripsWithLetter(t *testing.T) {
	for _, p := range AllDroppablePieces {
		got, ok := ParseLetter(p.Letter())
		if !ok || got != p {
			t.Fatalf("ParseLetter(%q) = %v, %v; want %v, true", p.Letter(), got, ok, p)
		}
	}
}

func TestParseLetterIsCaseInsensitive(t *testing.T) {
	got, ok := ParseLetter('n')
	if !ok || got != Knight {
		t.Fatalf("ParseLetter('n') = %v, %v; want Knight, true", got, ok)
	}
}

func TestParseLetterRejectsUnknown(t *testing.T) {
	if _, ok := ParseLetter('k'); ok {
		t.Fatalf("ParseLetter('k') should fail: kings are never droppable")
	}
}

func TestMoveRecordNotationForNormalMove(t *testing.T) {
	bp := NewBughousePosition()
	from, _ := ParseSquare("e2")
	to, _ := ParseSquare("e4")
	rec, err := bp.ApplyNormal(from, to, 0, false)
	if err != nil {
		t.Fatalf("ApplyNormal: %v", err)
	}
	if got := rec.Notation(); got != "e2e4" {
		t.Fatalf("Notation() = %q, want e2e4", got)
	}
}

func TestMoveRecordNotationForPromotion(t *testing.T) {
	fen := "k7/4P3/8/8/8/8/8/4K3[] w - - 0 1"
	bp, err := NewBughousePositionFromFEN(fen)
	if err != nil {
		t.Fatalf("NewBughousePositionFromFEN: %v", err)
	}
	from, _ := ParseSquare("e7")
	to, _ := ParseSquare("e8")
	rec, err := bp.ApplyNormal(from, to, Queen, true)
	if err != nil {
		t.Fatalf("ApplyNormal: %v", err)
	}
	if got := rec.Notation(); got != "e7e8q" {
		t.Fatalf("Notation() = %q, want e7e8q", got)
	}
}

func TestMoveRecordNotationForDrop(t *testing.T) {
	fen := "4k3/8/8/8/8/8/8/4K3[N] w - - 0 1"
	bp, err := NewBughousePositionFromFEN(fen)
	if err != nil {
		t.Fatalf("NewBughousePositionFromFEN: %v", err)
	}
	e4, _ := ParseSquare("e4")
	rec, err := bp.ApplyDrop(e4, Knight, chess.White)
	if err != nil {
		t.Fatalf("ApplyDrop: %v", err)
	}
	if got := rec.Notation(); got != "N@e4" {
		t.Fatalf("Notation() = %q, want N@e4", got)
	}
}

func TestHoldingsBracketOrderIsQRBNP(t *testing.T) {
	bp := NewBughousePosition()
	bp.holdings.Add(chess.White, Pawn)
	bp.holdings.Add(chess.White, Queen)
	bracket := bp.holdingsBracket()
	if !strings.HasPrefix(bracket, "Q") {
		t.Fatalf("holdingsBracket() = %q, want queen before pawn", bracket)
	}
}
