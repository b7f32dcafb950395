package game

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func cellsWithin(radius int) []Coord {
	var cells []Coord
	for q := -radius; q <= radius; q++ {
		for r := -radius; r <= radius; r++ {
			c := Coord{Q: q, R: r}
			if InBounds(c, radius) {
				cells = append(cells, c)
			}
		}
	}
	return cells
}

func TestDistance(t *testing.T) {
	cells := cellsWithin(3)

	t.Run("symmetric and zero on identity", func(t *testing.T) {
		for _, a := range cells {
			require.Equal(t, 0, Distance(a, a), "Distance to self should be 0")
			for _, b := range cells {
				require.Equal(t, Distance(a, b), Distance(b, a), "Distance should be symmetric for %v %v", a, b)
			}
		}
	})

	t.Run("triangle inequality", func(t *testing.T) {
		for _, a := range cells {
			for _, b := range cells {
				for _, c := range cells {
					require.LessOrEqual(t, Distance(a, c), Distance(a, b)+Distance(b, c))
				}
			}
		}
	})

	t.Run("neighbours are one step away", func(t *testing.T) {
		for _, d := range Directions {
			require.Equal(t, 1, Distance(Origin, Origin.Neighbor(d)), "Direction %s should be a unit step", d)
		}
	})

	t.Run("known distances", func(t *testing.T) {
		require.Equal(t, 3, Distance(Coord{Q: 0, R: 0}, Coord{Q: 3, R: -3}))
		require.Equal(t, 2, Distance(Coord{Q: -1, R: 1}, Coord{Q: 1, R: 0}))
	})
}

func TestInBounds(t *testing.T) {
	t.Run("grid of radius 3 has 37 cells", func(t *testing.T) {
		require.Len(t, cellsWithin(3), 37)
	})

	t.Run("symmetric under 180 degree rotation", func(t *testing.T) {
		for q := -5; q <= 5; q++ {
			for r := -5; r <= 5; r++ {
				c := Coord{Q: q, R: r}
				rotated := Coord{Q: -q, R: -r}
				require.Equal(t, InBounds(c, 3), InBounds(rotated, 3))
			}
		}
	})

	t.Run("corners in, beyond corners out", func(t *testing.T) {
		require.True(t, InBounds(Coord{Q: 3, R: -3}, 3))
		require.False(t, InBounds(Coord{Q: 3, R: 1}, 3), "|q+r| exceeds radius")
		require.False(t, InBounds(Coord{Q: 4, R: -4}, 3))
	})
}

func TestDirections(t *testing.T) {
	t.Run("opposites cancel out", func(t *testing.T) {
		for _, d := range Directions {
			require.Equal(t, Origin, Origin.Neighbor(d).Neighbor(d.Opposite()))
			require.Equal(t, d, d.Opposite().Opposite())
		}
	})

	t.Run("parse accepts case-insensitive short names", func(t *testing.T) {
		d, err := ParseDirection(" NE ")
		require.NoError(t, err)
		require.Equal(t, NorthEast, d)

		_, err = ParseDirection("up")
		require.Error(t, err)
	})

	t.Run("offset panics on unknown direction", func(t *testing.T) {
		require.Panics(t, func() { Direction("x").Offset() })
	})
}

func TestExits(t *testing.T) {
	t.Run("open centre cell has six exits", func(t *testing.T) {
		require.Equal(t, 6, Exits(Origin, 3, nil, ""))
	})

	t.Run("excluding the reverse direction", func(t *testing.T) {
		require.Equal(t, 5, Exits(Origin, 3, nil, North), "Cell entered by moving north should not count the way back")
	})

	t.Run("walls and body reduce exits", func(t *testing.T) {
		corner := Coord{Q: 3, R: -3}
		require.Equal(t, 3, Exits(corner, 3, nil, ""))

		body := []Coord{{Q: 0, R: -1}, {Q: 1, R: -1}}
		require.Equal(t, 4, Exits(Origin, 3, body, ""))
	})
}
