// Package player performs one-shot operations for a person at the keyboard: looking
// at the current game through a strategy's eyes, and voting by hand.
package player

import (
	"context"
	"errors"
	"fmt"
	"rodeo/communication"
	"rodeo/game"
	"rodeo/strategy"
)

var (
	ErrInvalidMove = errors.New("direction not valid now")
	ErrUnknownTeam = errors.New("unknown team")
)

// Player acts on the game server on behalf of the account holder.
type Player struct {
	Server    communication.GameServer
	LastState *game.ParsedGameState
	Balance   float64
}

func NewPlayer(server communication.GameServer) *Player {
	return &Player{Server: server}
}

// SyncGameState refreshes the player's view of the game. It fails with
// communication.ErrNoGame when there is nothing running.
func (p *Player) SyncGameState(ctx context.Context) error {
	raw, err := p.Server.GetGameState(ctx)
	if err != nil {
		return err
	}
	if raw != nil {
		switch raw.Error {
		case "":
		case "AUTH_MISSING":
			return communication.ErrAuthMissing
		case "AUTH_EXPIRED":
			return communication.ErrAuthExpired
		default:
			return fmt.Errorf("game server: %s", raw.Error)
		}
	}
	st := game.Parse(raw)
	if st == nil || !st.Active {
		p.LastState = st
		return communication.ErrNoGame
	}
	p.LastState = st
	return nil
}

// TeamView is one team as the analysis sees it.
type TeamView struct {
	game.Team
	FruitsNeeded   int
	WinProbability float64
	ExpectedValue  float64
}

// Analysis is what a strategy would do right now, without doing it.
type Analysis struct {
	State    *game.ParsedGameState
	Balance  float64
	Strategy string
	Teams    []TeamView
	Action   *strategy.VoteAction
}

// Analyze fetches the game and the balance and asks strat for a vote. memory builds
// the strategy's view of the agent for the fetched balance. Nothing is submitted.
func (p *Player) Analyze(ctx context.Context, strat strategy.Strategy, memory func(balance float64) strategy.Memory) (*Analysis, error) {
	if err := p.SyncGameState(ctx); err != nil {
		return nil, err
	}
	balance, err := p.Server.GetBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch balance: %w", err)
	}
	p.Balance = balance

	st := p.LastState
	mem := memory(balance)
	a := &Analysis{
		State:    st,
		Balance:  balance,
		Strategy: strat.Name(),
		Action:   strat.ComputeVote(st, balance, mem),
	}
	aligned := func(t game.Team) bool { return mem.CurrentTeam == t.ID }
	for _, t := range st.Teams {
		a.Teams = append(a.Teams, TeamView{
			Team:           t,
			FruitsNeeded:   st.FruitsNeeded(t),
			WinProbability: st.TeamWinProbability(t),
			ExpectedValue:  st.ExpectedValue(t, aligned(t)),
		})
	}
	return a, nil
}

// Vote submits a manual vote after checking it against the current game. A zero
// amount means the minimum bid.
func (p *Player) Vote(ctx context.Context, direction, team string, amount float64) (strategy.VoteAction, error) {
	dir, err := game.ParseDirection(direction)
	if err != nil {
		return strategy.VoteAction{}, err
	}
	if err := p.SyncGameState(ctx); err != nil {
		return strategy.VoteAction{}, err
	}
	st := p.LastState

	if !st.IsValid(dir) {
		return strategy.VoteAction{}, fmt.Errorf("%w: %s (valid: %v)", ErrInvalidMove, dir, st.ValidDirections)
	}
	if _, ok := st.Team(team); !ok {
		return strategy.VoteAction{}, fmt.Errorf("%w: %s", ErrUnknownTeam, team)
	}
	if amount <= 0 {
		amount = st.MinBid
	}
	if amount < st.MinBid {
		return strategy.VoteAction{}, fmt.Errorf("amount %.2f below minimum bid %.2f", amount, st.MinBid)
	}

	action := strategy.Vote(dir, team, amount, "manual")
	if err := p.Server.SubmitVote(ctx, dir, team, amount); err != nil {
		return *action, err
	}
	return *action, nil
}
