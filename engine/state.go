package engine

import (
	"fmt"
	"rodeo/strategy"
	"time"
)

// AgentState is the daemon's own bookkeeping. It outlives games and is only thrown
// away by an explicit reset.
type AgentState struct {
	CurrentTeam    string    `json:"currentTeam"`
	LastRound      int       `json:"lastRound"`
	GamesPlayed    int       `json:"gamesPlayed"`
	Wins           int       `json:"wins"`
	VotesPlaced    int       `json:"votesPlaced"`
	RoundSpend     float64   `json:"roundSpend"`
	RoundVoteCount int       `json:"roundVoteCount"`
	StartedAt      time.Time `json:"startedAt"`

	GameID     string  `json:"gameId,omitempty"`
	GameVotes  int     `json:"gameVotes"`
	GameSpend  float64 `json:"gameSpend"`
	GameRounds int     `json:"gameRounds"`
	TotalSpent float64 `json:"totalSpent"`
}

func NewAgentState(now time.Time) AgentState {
	return AgentState{LastRound: -1, StartedAt: now}
}

// resetGame clears per-game bookkeeping for a new game.
func (s *AgentState) resetGame(gameID string) {
	s.GameID = gameID
	s.CurrentTeam = ""
	s.GameVotes = 0
	s.GameSpend = 0
	s.GameRounds = 0
	s.resetRounds()
}

func (s *AgentState) resetRounds() {
	s.LastRound = -1
	s.resetRound()
}

func (s *AgentState) resetRound() {
	s.RoundSpend = 0
	s.RoundVoteCount = 0
}

// Memory is the view of the agent state handed to strategies.
func (s AgentState) Memory(balance, budgetPct float64) strategy.Memory {
	return strategy.Memory{
		CurrentTeam:    s.CurrentTeam,
		LastRound:      s.LastRound,
		RoundSpend:     s.RoundSpend,
		RoundVoteCount: s.RoundVoteCount,
		RoundBudget:    balance*budgetPct - s.RoundSpend,
	}
}

// Phase is where the decision loop stands.
type Phase int

const (
	NotAuthenticated Phase = iota
	WaitingForGame
	NewRound
	Monitoring
	GameEnded
)

var phaseNames = []string{"not_authenticated", "waiting_for_game", "new_round", "monitoring", "game_ended"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Phase) UnmarshalText(b []byte) error {
	for i, name := range phaseNames {
		if name == string(b) {
			*p = Phase(i)
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// Status is the snapshot written after every tick for the status command.
type Status struct {
	Phase            Phase                `json:"phase"`
	Paused           bool                 `json:"paused"`
	Strategy         string               `json:"strategy"`
	Round            int                  `json:"round"`
	Balance          float64              `json:"balance"`
	LastError        string               `json:"lastError,omitempty"`
	LastVote         *strategy.VoteAction `json:"lastVote,omitempty"`
	Tracking         bool                 `json:"tracking"`
	RateLimitedUntil time.Time            `json:"rateLimitedUntil,omitempty"`
	StrategyStats    *strategy.Stats      `json:"strategyStats,omitempty"`
	Agent            AgentState           `json:"agent"`
	PID              int                  `json:"pid,omitempty"`
	UpdatedAt        time.Time            `json:"updatedAt"`
}
