// Package bgtypes holds the small set of domain enums shared across
// C4–C6 (piece flow, game controller, stall machine) so those packages
// can refer to "which seat" and "why did a bot sit" without importing
// each other, mirroring the teacher's internal/model package acting as
// the shared vocabulary for internal/controller and internal/service.
package bgtypes

// BotIdentity is the closed set of seats at the table, per spec.md §3:
// {Bot1 (opposes the human on board A), Partner (teammate of the human
// on board B), Bot2 (opposes Partner on board B)}. Human is included so
// the diagonal-time rule and request-fulfillment tables can be written
// uniformly over all four seats.
type BotIdentity int

const (
	Human BotIdentity = iota
	Partner
	Bot1
	Bot2
)

func (b BotIdentity) String() string {
	switch b {
	case Human:
		return "human"
	case Partner:
		return "partner"
	case Bot1:
		return "bot1"
	case Bot2:
		return "bot2"
	}
	return "unknown"
}

// Diagonal returns the seat across the team diamond whose clock governs
// the "up on time" predicate (spec.md §4.6.1): Bot1 vs. Partner, Bot2
// vs. Human, and symmetrically back.
func (b BotIdentity) Diagonal() BotIdentity {
	switch b {
	case Bot1:
		return Partner
	case Partner:
		return Bot1
	case Bot2:
		return Human
	case Human:
		return Bot2
	}
	return b
}

// Partnership returns the seat whose captures fulfill b's outbound
// partner-requests, per spec.md §4.6.3: Bot1's requests are fulfilled
// by Bot2's captures and vice versa; Partner's by Human's. Human never
// auto-requests (spec.md §3) but the mapping is total for symmetry.
func (b BotIdentity) Partnership() BotIdentity {
	switch b {
	case Bot1:
		return Bot2
	case Bot2:
		return Bot1
	case Partner:
		return Human
	case Human:
		return Partner
	}
	return b
}

// BoardID distinguishes the two physical boards.
type BoardID int

const (
	BoardA BoardID = iota // human vs Bot1
	BoardB                // partner vs Bot2
)

func (b BoardID) String() string {
	if b == BoardA {
		return "A"
	}
	return "B"
}

// Board returns which board this seat plays on.
func (b BotIdentity) Board() BoardID {
	if b == Human || b == Bot1 {
		return BoardA
	}
	return BoardB
}

// GameStatus is spec.md §3's closed status set.
type GameStatus int

const (
	NotStarted GameStatus = iota
	InProgress
	PlayerWon
	PlayerLost
	PartnerWon
	PartnerLost
	Draw
	Finished
)

func (s GameStatus) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case InProgress:
		return "in_progress"
	case PlayerWon:
		return "player_won"
	case PlayerLost:
		return "player_lost"
	case PartnerWon:
		return "partner_won"
	case PartnerLost:
		return "partner_lost"
	case Draw:
		return "draw"
	case Finished:
		return "finished"
	}
	return "unknown"
}

// IsTerminal reports whether the status ends the game.
func (s GameStatus) IsTerminal() bool {
	switch s {
	case PlayerWon, PlayerLost, PartnerWon, PartnerLost, Draw, Finished:
		return true
	}
	return false
}

// StallReason is spec.md §3's reason_tag enumeration.
type StallReason int

const (
	NoReason StallReason = iota
	ForcesMate
	SavesFromMate
	SavesMateIn1
	LostToWinning
	Mated
	PlayerCommand
)

func (r StallReason) String() string {
	switch r {
	case ForcesMate:
		return "forces_mate"
	case SavesFromMate:
		return "saves_from_mate"
	case SavesMateIn1:
		return "saves_mate_in_1"
	case LostToWinning:
		return "lost_to_winning"
	case Mated:
		return "mated"
	case PlayerCommand:
		return "player_command"
	}
	return "none"
}
