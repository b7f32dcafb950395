// Package gamemaster runs the hex snake auction game in process. It serves the same
// contract as the remote backend, one client view per agent, so strategies and the
// decision loop can be exercised without a server.
package gamemaster

import (
	"fmt"
	"rodeo/game"
)

// Config is one rodeo cycle: the shape of a game.
type Config struct {
	Name            string
	Teams           []string
	GridRadius      int
	FruitsPerTeam   int
	FruitsToWin     int
	StartingPool    float64
	MinBid          float64
	RoundLength     float64 // countdown at the start of a round, in steps
	ExtensionWindow float64 // trailing part of the round in which votes extend it
	SnakeLength     int
	Seed            uint64
}

// Cycles are the configurations games rotate through.
var Cycles = []Config{
	{
		Name:            "classic",
		Teams:           []string{"red", "blue"},
		GridRadius:      3,
		FruitsPerTeam:   2,
		FruitsToWin:     3,
		StartingPool:    10,
		MinBid:          1,
		RoundLength:     10,
		ExtensionWindow: 3,
		SnakeLength:     2,
	},
	{
		Name:            "triad",
		Teams:           []string{"red", "blue", "green"},
		GridRadius:      4,
		FruitsPerTeam:   2,
		FruitsToWin:     3,
		StartingPool:    15,
		MinBid:          1,
		RoundLength:     10,
		ExtensionWindow: 3,
		SnakeLength:     3,
	},
	{
		Name:            "sprint",
		Teams:           []string{"red", "blue", "green", "gold"},
		GridRadius:      3,
		FruitsPerTeam:   1,
		FruitsToWin:     2,
		StartingPool:    20,
		MinBid:          0.5,
		RoundLength:     6,
		ExtensionWindow: 2,
		SnakeLength:     2,
	},
}

// Cycle returns the i-th configuration, wrapping around.
func Cycle(i int) Config {
	if i < 0 {
		i = -i
	}
	return Cycles[i%len(Cycles)]
}

func DefaultConfig() Config {
	return Cycles[0]
}

func (c Config) Validate() error {
	if len(c.Teams) < 2 {
		return fmt.Errorf("need at least two teams, got %d", len(c.Teams))
	}
	if c.GridRadius < 2 {
		return fmt.Errorf("grid radius %d too small", c.GridRadius)
	}
	if c.FruitsPerTeam < 1 || c.FruitsToWin < 1 {
		return fmt.Errorf("fruits per team and fruits to win must be positive")
	}
	if c.MinBid <= 0 || c.RoundLength <= 0 || c.ExtensionWindow < 0 || c.ExtensionWindow > c.RoundLength {
		return fmt.Errorf("invalid bid or timing settings")
	}
	if c.SnakeLength < 1 || c.SnakeLength > c.GridRadius+1 {
		return fmt.Errorf("snake length %d does not fit radius %d", c.SnakeLength, c.GridRadius)
	}
	return nil
}

// startingSnake lays the snake from the centre southwards, head first.
func (c Config) startingSnake() []game.Coord {
	body := make([]game.Coord, c.SnakeLength)
	cell := game.Origin
	for i := range body {
		body[i] = cell
		cell = cell.Neighbor(game.South)
	}
	return body
}
