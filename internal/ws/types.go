// Package ws defines the wire shapes exchanged over the WebSocket feed
// spec.md §6 describes: apply move/drop, pause/resume, resign, Go/Sit,
// and the state/chat broadcasts those calls produce. Grounded on the
// teacher's internal/ws/types.go MessageType/Message envelope, with the
// payload types widened from single-board chess moves to bughouse
// moves/drops across two boards.
package ws

import "encoding/json"

// MessageType is the discriminator on the envelope below.
type MessageType string

const (
	MessageTypeMove      MessageType = "move"
	MessageTypeDrop      MessageType = "drop"
	MessageTypePause     MessageType = "pause"
	MessageTypeResume    MessageType = "resume"
	MessageTypeResign    MessageType = "resign"
	MessageTypeGo        MessageType = "go"
	MessageTypeSit       MessageType = "sit"
	MessageTypeGameState MessageType = "gameState"
	MessageTypeChat      MessageType = "chat"
	MessageTypeError     MessageType = "error"
)

// Message is the envelope every inbound/outbound WebSocket frame uses.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// MoveRequest is the inbound payload for MessageTypeMove: a normal move
// on board A, the only board the human plays.
type MoveRequest struct {
	From      string `json:"from"` // algebraic, e.g. "e2"
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"` // "", "n", "b", "r", "q"
}

// DropRequest is the inbound payload for MessageTypeDrop.
type DropRequest struct {
	Square string `json:"square"`
	Piece  string `json:"piece"` // "p", "n", "b", "r", "q"
}

// BoardSnapshot is the client-facing view of one board.
type BoardSnapshot struct {
	FEN         string         `json:"fen"`
	Turn        string         `json:"turn"`
	Holdings    HoldingsView   `json:"holdings"`
	Evaluation  string         `json:"evaluation"`
}

// HoldingsView renders both colors' pools for one board.
type HoldingsView struct {
	White map[string]int `json:"white"`
	Black map[string]int `json:"black"`
}

// StallView is the client-facing view of one bot's stall state.
type StallView struct {
	Seat     string `json:"seat"`
	Sitting  bool   `json:"sitting"`
	Piece    string `json:"piece,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// GameStateView is the outbound MessageTypeGameState payload: a full
// snapshot broadcast after every applied move, per spec.md §6.
type GameStateView struct {
	GameID string          `json:"gameId"`
	Status string          `json:"status"`
	BoardA BoardSnapshot   `json:"boardA"`
	BoardB BoardSnapshot   `json:"boardB"`
	Stalls []StallView     `json:"stalls"`
}

// ChatView is the outbound MessageTypeChat payload.
type ChatView struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}
