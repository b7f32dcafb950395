package game

import "rodeo/utils"

// Coord is an axial hex coordinate on a flat-top grid centred at (0,0).
type Coord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// Origin is the grid centre
var Origin = Coord{}

func (c Coord) Add(o Coord) Coord {
	return Coord{Q: c.Q + o.Q, R: c.R + o.R}
}

// Neighbor returns the adjacent cell in direction d.
func (c Coord) Neighbor(d Direction) Coord {
	return c.Add(d.Offset())
}

// Distance is the hex distance between two cells, using the cube coordinate
// identity max(|dq|, |dr|, |dq+dr|).
func Distance(a, b Coord) int {
	dq := a.Q - b.Q
	dr := a.R - b.R
	return utils.Max(utils.Abs(dq), utils.Abs(dr), utils.Abs(dq+dr))
}

// InBounds reports whether c lies inside a hexagonal grid of the given radius.
func InBounds(c Coord, radius int) bool {
	return utils.Abs(c.Q) <= radius && utils.Abs(c.R) <= radius && utils.Abs(c.Q+c.R) <= radius
}

// Occupies reports whether any segment of body sits on c.
func Occupies(body []Coord, c Coord) bool {
	for _, segment := range body {
		if segment == c {
			return true
		}
	}
	return false
}

// Exits counts the neighbours of cell that are in bounds and not covered by body.
// When from is set, cell is assumed to have been entered by moving in direction from,
// and the neighbour back across that move is not counted.
func Exits(cell Coord, radius int, body []Coord, from Direction) int {
	var skip Direction
	if from != "" {
		skip = from.Opposite()
	}

	exits := 0
	for _, d := range Directions {
		if d == skip {
			continue
		}
		next := cell.Neighbor(d)
		if !InBounds(next, radius) || Occupies(body, next) {
			continue
		}
		exits++
	}
	return exits
}
