package game

import (
	"math"
	"rodeo/utils"
)

// FruitTarget is the closest fruit of a team, measured from the snake head.
type FruitTarget struct {
	Position Coord
	Distance int
}

// Team is a per-poll view of one team.
type Team struct {
	ID           string
	Name         string
	Score        int
	Pool         float64
	FruitCount   int
	ClosestFruit *FruitTarget // nil when the team has no fruit on the board
}

// HasFruit reports whether the team can currently score.
func (t Team) HasFruit() bool {
	return t.ClosestFruit != nil
}

// ParsedGameState is the normalised snapshot strategies work with. It is rebuilt on
// every poll and never mutated afterwards.
type ParsedGameState struct {
	GameID            string
	Active            bool
	Round             int
	Head              Coord
	Body              []Coord // head first
	GridRadius        int
	ValidDirections   []Direction
	Teams             []Team
	MinBid            float64
	InitialMinBid     float64
	PrizePool         float64
	FruitsToWin       int
	Extensions        int
	InExtensionWindow bool
	Countdown         float64
	CurrentDirection  Direction // direction winning the round right now, "" if none
	CurrentTeam       string
	Winner            string // set only once the game has ended
}

// Parse normalises a raw snapshot. It returns nil when there is nothing to act on:
// no snapshot, an error payload, no head position, or a game that is neither running
// nor finished with a winner.
func Parse(raw *RawGameState) *ParsedGameState {
	if raw == nil || raw.Error != "" {
		return nil
	}
	head, ok := raw.Head()
	if !ok {
		return nil
	}
	if !raw.Active && raw.Winner == "" {
		return nil
	}

	radius := raw.GridRadius
	if radius <= 0 {
		radius = DefaultGridRadius
	}
	fruitsToWin := raw.FruitsToWin
	if fruitsToWin <= 0 {
		fruitsToWin = DefaultFruitsToWin
	}

	body := make([]Coord, len(raw.Snake.Body))
	copy(body, raw.Snake.Body)

	st := &ParsedGameState{
		GameID:           raw.GameID,
		Active:           raw.Active,
		Round:            raw.Round,
		Head:             head,
		Body:             body,
		GridRadius:       radius,
		MinBid:           raw.MinBid,
		InitialMinBid:    initialMinBid(raw),
		PrizePool:        raw.PrizePool,
		FruitsToWin:      fruitsToWin,
		Extensions:       raw.Extensions,
		Countdown:        raw.Countdown,
		CurrentDirection: raw.CurrentDirection,
		CurrentTeam:      raw.CurrentTeam,
		Winner:           raw.Winner,
	}
	if raw.Active {
		st.InExtensionWindow = raw.ExtensionWindow > 0 && raw.Countdown <= raw.ExtensionWindow
		st.ValidDirections = validDirections(head, body, radius)
	}

	st.Teams = make([]Team, 0, len(raw.Teams))
	for _, rt := range raw.Teams {
		st.Teams = append(st.Teams, Team{
			ID:           rt.ID,
			Name:         rt.Name,
			Score:        rt.Score,
			Pool:         rt.Pool,
			FruitCount:   len(rt.Fruits),
			ClosestFruit: closestFruit(head, rt.Fruits),
		})
	}
	return st
}

// initialMinBid recovers the round's base bid. Each extension doubles the minimum
// bid, so without an explicit value it is minBid / 2^extensions.
func initialMinBid(raw *RawGameState) float64 {
	if raw.InitialMinBid > 0 {
		return raw.InitialMinBid
	}
	if raw.Extensions <= 0 {
		return raw.MinBid
	}
	return raw.MinBid / math.Pow(2, float64(raw.Extensions))
}

// closestFruit scans fruits linearly; ties keep the first one supplied.
func closestFruit(head Coord, fruits []Coord) *FruitTarget {
	var best *FruitTarget
	for _, f := range fruits {
		d := Distance(head, f)
		if best == nil || d < best.Distance {
			best = &FruitTarget{Position: f, Distance: d}
		}
	}
	return best
}

// validDirections rejects moves that leave the grid or hit any body segment other
// than the head. Reversing into the neck is rejected because that cell is occupied.
func validDirections(head Coord, body []Coord, radius int) []Direction {
	var out []Direction
	for _, d := range Directions {
		next := head.Neighbor(d)
		if !InBounds(next, radius) {
			continue
		}
		if len(body) > 1 && Occupies(body[1:], next) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// IsValid reports whether d is among the valid directions.
func (s *ParsedGameState) IsValid(d Direction) bool {
	return utils.FindIndex(s.ValidDirections, d) >= 0
}

// Team looks up a team by id.
func (s *ParsedGameState) Team(id string) (Team, bool) {
	for _, t := range s.Teams {
		if t.ID == id {
			return t, true
		}
	}
	return Team{}, false
}

// FruitsNeeded is how many more fruits a team needs to win.
func (s *ParsedGameState) FruitsNeeded(t Team) int {
	return s.FruitsToWin - t.Score
}

// Leader returns the team with the highest score, ties broken by the closer fruit and
// then by backend order. False when there are no teams.
func (s *ParsedGameState) Leader() (Team, bool) {
	return s.leaderAmong(s.Teams)
}

// LeaderWithFruit is Leader restricted to teams that have a fruit on the board.
func (s *ParsedGameState) LeaderWithFruit() (Team, bool) {
	return s.leaderAmong(s.TeamsWithFruit())
}

func (s *ParsedGameState) leaderAmong(teams []Team) (Team, bool) {
	if len(teams) == 0 {
		return Team{}, false
	}
	best := teams[0]
	for _, t := range teams[1:] {
		if t.Score > best.Score || (t.Score == best.Score && closer(t, best)) {
			best = t
		}
	}
	return best, true
}

// TeamsWithFruit returns teams that currently have at least one fruit on the board.
func (s *ParsedGameState) TeamsWithFruit() []Team {
	var out []Team
	for _, t := range s.Teams {
		if t.HasFruit() {
			out = append(out, t)
		}
	}
	return out
}

// closer reports whether a's fruit is strictly closer than b's. Teams without fruit
// are never closer.
func closer(a, b Team) bool {
	if a.ClosestFruit == nil {
		return false
	}
	if b.ClosestFruit == nil {
		return true
	}
	return a.ClosestFruit.Distance < b.ClosestFruit.Distance
}
