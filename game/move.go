package game

import (
	"fmt"
	"strings"
)

// Direction is one of the six hex directions the snake can be voted to move in.
type Direction string

const (
	North     Direction = "n"
	NorthEast Direction = "ne"
	SouthEast Direction = "se"
	South     Direction = "s"
	SouthWest Direction = "sw"
	NorthWest Direction = "nw"
)

// Directions lists every direction in a fixed order. Iteration order matters for
// deterministic tie-breaking.
var Directions = []Direction{North, NorthEast, SouthEast, South, SouthWest, NorthWest}

var offsets = map[Direction]Coord{
	North:     {Q: 0, R: -1},
	NorthEast: {Q: 1, R: -1},
	SouthEast: {Q: 1, R: 0},
	South:     {Q: 0, R: 1},
	SouthWest: {Q: -1, R: 1},
	NorthWest: {Q: -1, R: 0},
}

var opposites = map[Direction]Direction{
	North:     South,
	NorthEast: SouthWest,
	SouthEast: NorthWest,
	South:     North,
	SouthWest: NorthEast,
	NorthWest: SouthEast,
}

// ParseDirection accepts the short form ("ne") case-insensitively.
func ParseDirection(s string) (Direction, error) {
	d := Direction(strings.ToLower(strings.TrimSpace(s)))
	if !d.Valid() {
		return "", fmt.Errorf("unknown direction %q", s)
	}
	return d, nil
}

func (d Direction) Valid() bool {
	_, ok := offsets[d]
	return ok
}

// Offset returns the unit axial offset of the direction. Panics on an unknown
// direction since that is a programming error.
func (d Direction) Offset() Coord {
	o, ok := offsets[d]
	if !ok {
		panic(fmt.Sprintf("unknown direction %q", string(d)))
	}
	return o
}

func (d Direction) Opposite() Direction {
	o, ok := opposites[d]
	if !ok {
		panic(fmt.Sprintf("unknown direction %q", string(d)))
	}
	return o
}

func (d Direction) String() string {
	return string(d)
}
