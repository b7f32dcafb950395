package engine

import (
	"rodeo/game"
	"time"
)

// Decision kinds written to the journal
const (
	KindGameStart = "game_start"
	KindVote      = "vote"
	KindCounter   = "counter"
	KindSkip      = "skip"
	KindDecline   = "decline"
	KindGameEnd   = "game_end"
	KindError     = "error"
)

// Decision is one journal entry.
type Decision struct {
	At        time.Time      `json:"at"`
	Agent     string         `json:"agent"`
	Kind      string         `json:"kind"`
	GameID    string         `json:"gameId,omitempty"`
	Round     int            `json:"round"`
	Team      string         `json:"team,omitempty"`
	Direction game.Direction `json:"direction,omitempty"`
	Amount    float64        `json:"amount,omitempty"`
	Balance   float64        `json:"balance,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	Outcome   string         `json:"outcome,omitempty"`
}
