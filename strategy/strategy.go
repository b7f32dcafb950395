// Package strategy holds the voting policies. A Strategy turns a parsed snapshot, the
// agent's balance and its round bookkeeping into a vote or a skip. Optional behaviour
// (counter-bidding, lifecycle hooks) is exposed through small capability interfaces
// the decision loop checks for.
package strategy

import (
	"fmt"
	"rodeo/game"
)

// VoteAction is the outcome of a decision. It is either a vote or a skip and is never
// modified after creation.
type VoteAction struct {
	Direction game.Direction `json:"direction,omitempty"`
	Team      string         `json:"team,omitempty"`
	Amount    float64        `json:"amount,omitempty"`
	Reason    string         `json:"reason"`
	Skip      bool           `json:"skip,omitempty"`
}

func Vote(d game.Direction, team string, amount float64, reason string) *VoteAction {
	return &VoteAction{Direction: d, Team: team, Amount: amount, Reason: reason}
}

func Skip(reason string) *VoteAction {
	return &VoteAction{Skip: true, Reason: reason}
}

// IsVote reports whether a is an actual vote, as opposed to nil or a skip.
func (a *VoteAction) IsVote() bool {
	return a != nil && !a.Skip
}

func (a *VoteAction) String() string {
	switch {
	case a == nil:
		return "none"
	case a.Skip:
		return "skip (" + a.Reason + ")"
	default:
		return fmt.Sprintf("%s for %s at %.2f (%s)", a.Direction, a.Team, a.Amount, a.Reason)
	}
}

// Memory is the part of the agent's state a strategy may look at.
type Memory struct {
	CurrentTeam    string
	LastRound      int
	RoundSpend     float64
	RoundVoteCount int
	// RoundBudget is what may still be spent this round, after RoundSpend
	RoundBudget float64
}

// Aligned reports whether the agent has already voted for a team this game.
func (m Memory) Aligned() bool {
	return m.CurrentTeam != ""
}

type Strategy interface {
	Name() string
	// ComputeVote returns the vote for a new round, a skip, or nil when there is
	// nothing to play.
	ComputeVote(st *game.ParsedGameState, balance float64, mem Memory) *VoteAction
}

// CounterBidder is implemented by strategies that react when another participant
// overrides their direction mid-round. A nil result declines.
type CounterBidder interface {
	ShouldCounterBid(st *game.ParsedGameState, balance float64, mem Memory, previous VoteAction) *VoteAction
}

type GameStartHook interface {
	OnGameStart(st *game.ParsedGameState)
}

type GameEndHook interface {
	OnGameEnd(st *game.ParsedGameState, didWin bool)
}

type RoundEndHook interface {
	OnRoundEnd(round int)
}

// ShouldPlay is the gate every strategy applies before deciding anything.
func ShouldPlay(st *game.ParsedGameState, balance float64) bool {
	if st == nil || !st.Active {
		return false
	}
	if len(st.ValidDirections) == 0 {
		return false
	}
	return balance >= st.MinBid
}
