package stall

import (
	"testing"

	"github.com/benbeisheim/bughouse-orchestrator/internal/bgtypes"
	"github.com/benbeisheim/bughouse-orchestrator/internal/position"
)

func TestEnterSittingSetsOutboundRequestExceptForMatedAndPlayerCommand(t *testing.T) {
	m := NewMachine(bgtypes.Bot1)
	m.EnterSitting(position.Knight, bgtypes.ForcesMate, false)
	if !m.IsSitting() {
		t.Fatalf("expected sitting")
	}
	if req := m.OutboundRequest(); req == nil || req.RequestedPiece != position.Knight {
		t.Fatalf("outbound request = %+v, want knight request", req)
	}

	m2 := NewMachine(bgtypes.Bot1)
	m2.EnterSitting(position.Queen, bgtypes.Mated, false)
	if req := m2.OutboundRequest(); req != nil {
		t.Fatalf("mated scenario should not auto-request, got %+v", req)
	}

	m3 := NewMachine(bgtypes.Partner)
	m3.EnterPlayerCommand()
	if req := m3.OutboundRequest(); req != nil {
		t.Fatalf("player_command stall should not auto-request, got %+v", req)
	}
}

func TestExitFulfilledClearsRecordAndRequest(t *testing.T) {
	m := NewMachine(bgtypes.Bot1)
	m.EnterSitting(position.Rook, bgtypes.SavesFromMate, false)
	m.ExitFulfilled()
	if m.IsSitting() {
		t.Fatalf("expected active after fulfillment")
	}
	if m.OutboundRequest() != nil {
		t.Fatalf("outbound request should be cleared")
	}
}

func TestExitTimeAbandonedRefusesPlayerInducedStall(t *testing.T) {
	m := NewMachine(bgtypes.Partner)
	m.EnterPlayerCommand()
	if ok := m.ExitTimeAbandoned(); ok {
		t.Fatalf("time abandonment must not exit a player-commanded sit")
	}
	if !m.IsSitting() {
		t.Fatalf("expected still sitting")
	}
}

func TestExitPlayerForcedSetsLatch(t *testing.T) {
	m := NewMachine(bgtypes.Partner)
	m.EnterPlayerCommand()
	m.ExitPlayerForced()
	if m.IsSitting() {
		t.Fatalf("expected active after player-forced exit")
	}
	if !m.ConsumeForcedLatch() {
		t.Fatalf("expected forced-to-go latch to be set")
	}
	if m.ConsumeForcedLatch() {
		t.Fatalf("latch should be one-shot")
	}
}

func TestFulfillsTable(t *testing.T) {
	cases := []struct {
		requested, actual position.DroppablePiece
		want               bool
	}{
		{position.Pawn, position.Pawn, true},
		{position.Pawn, position.Bishop, true},
		{position.Pawn, position.Queen, true},
		{position.Pawn, position.Knight, false},
		{position.Knight, position.Knight, true},
		{position.Knight, position.Queen, false},
		{position.Bishop, position.Queen, true},
		{position.Rook, position.Queen, true},
		{position.Queen, position.Queen, true},
		{position.Queen, position.Rook, false},
	}
	for _, c := range cases {
		if got := Fulfills(c.requested, c.actual); got != c.want {
			t.Errorf("Fulfills(%v, %v) = %v, want %v", c.requested, c.actual, got, c.want)
		}
	}
}
