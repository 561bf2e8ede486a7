package pieceflow

import (
	"testing"

	"github.com/notnil/chess"

	"github.com/benbeisheim/bughouse-orchestrator/internal/bgtypes"
	"github.com/benbeisheim/bughouse-orchestrator/internal/position"
)

func TestProcessNewMovesDeliversCaptureToPartnerBoard(t *testing.T) {
	boardA, err := position.NewBughousePositionFromFEN(
		"rnbqkbnr/ppp1pppp/8/3p4/4P3/8/PPPP1PPP/RNBQKBNR[] w KQkq - 0 2")
	if err != nil {
		t.Fatalf("NewBughousePositionFromFEN: %v", err)
	}
	boardB := position.NewBughousePosition()
	coord := New(boardA, boardB)

	from, _ := position.ParseSquare("e4")
	to, _ := position.ParseSquare("d5")
	if _, err := boardA.ApplyNormal(from, to, 0, false); err != nil {
		t.Fatalf("ApplyNormal: %v", err)
	}

	events, err := coord.ProcessNewMoves(bgtypes.BoardA)
	if err != nil {
		t.Fatalf("ProcessNewMoves: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %v, want 1 delivered capture", events)
	}
	ev := events[0]
	if ev.Piece != position.Pawn || ev.Color != chess.Black || ev.ToBoard != bgtypes.BoardB {
		t.Fatalf("event = %+v, want black pawn delivered to board B", ev)
	}
	if c := boardB.Holdings().Count(chess.Black, position.Pawn); c != 1 {
		t.Fatalf("board B black pawn holding = %d, want 1", c)
	}
	if c := boardA.Holdings().Count(chess.Black, position.Pawn); c != 0 {
		t.Fatalf("board A holdings should be untouched by its own capture")
	}
}

func TestProcessNewMovesIsIdempotent(t *testing.T) {
	boardA, err := position.NewBughousePositionFromFEN(
		"rnbqkbnr/ppp1pppp/8/3p4/4P3/8/PPPP1PPP/RNBQKBNR[] w KQkq - 0 2")
	if err != nil {
		t.Fatalf("NewBughousePositionFromFEN: %v", err)
	}
	boardB := position.NewBughousePosition()
	coord := New(boardA, boardB)

	from, _ := position.ParseSquare("e4")
	to, _ := position.ParseSquare("d5")
	if _, err := boardA.ApplyNormal(from, to, 0, false); err != nil {
		t.Fatalf("ApplyNormal: %v", err)
	}
	if _, err := coord.ProcessNewMoves(bgtypes.BoardA); err != nil {
		t.Fatalf("first ProcessNewMoves: %v", err)
	}
	events, err := coord.ProcessNewMoves(bgtypes.BoardA)
	if err != nil {
		t.Fatalf("second ProcessNewMoves: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("second call should deliver nothing new, got %v", events)
	}
	if c := boardB.Holdings().Count(chess.Black, position.Pawn); c != 1 {
		t.Fatalf("board B black pawn holding = %d, want 1 (not double-delivered)", c)
	}
}

func TestProcessNewMovesIgnoresNonCaptures(t *testing.T) {
	boardA := position.NewBughousePosition()
	boardB := position.NewBughousePosition()
	coord := New(boardA, boardB)

	from, _ := position.ParseSquare("e2")
	to, _ := position.ParseSquare("e4")
	if _, err := boardA.ApplyNormal(from, to, 0, false); err != nil {
		t.Fatalf("ApplyNormal: %v", err)
	}
	events, err := coord.ProcessNewMoves(bgtypes.BoardA)
	if err != nil {
		t.Fatalf("ProcessNewMoves: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("non-capture move should deliver nothing, got %v", events)
	}
}
