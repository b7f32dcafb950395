package game

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func rawState() *RawGameState {
	return &RawGameState{
		GameID:     "g1",
		Active:     true,
		Round:      4,
		GridRadius: 3,
		Snake: RawSnake{Body: []Coord{
			{Q: 0, R: 0}, {Q: 0, R: 1}, {Q: 0, R: 2},
		}},
		Teams: []RawTeam{
			{ID: "red", Score: 2, Pool: 4, Fruits: []Coord{{Q: 2, R: -2}, {Q: 1, R: -1}}},
			{ID: "blue", Score: 0, Pool: 10, Fruits: []Coord{{Q: -3, R: 0}}},
			{ID: "green", Score: 1, Pool: 2},
		},
		PrizePool:        30,
		MinBid:           4,
		Countdown:        3,
		ExtensionWindow:  5,
		Extensions:       2,
		CurrentDirection: NorthEast,
		FruitsToWin:      3,
	}
}

func TestParse(t *testing.T) {
	t.Run("no actionable state", func(t *testing.T) {
		require.Nil(t, Parse(nil), "Nil snapshot should not parse")
		require.Nil(t, Parse(&RawGameState{Error: "AUTH_EXPIRED"}), "Error payload should not parse")
		require.Nil(t, Parse(&RawGameState{Active: true}), "Snapshot without head should not parse")

		idle := rawState()
		idle.Active = false
		require.Nil(t, Parse(idle), "Inactive snapshot without winner should not parse")
	})

	t.Run("finished game keeps winner", func(t *testing.T) {
		raw := rawState()
		raw.Active = false
		raw.Winner = "red"

		st := Parse(raw)
		require.NotNil(t, st)
		require.False(t, st.Active)
		require.Equal(t, "red", st.Winner)
		require.Empty(t, st.ValidDirections, "Finished game has no moves")
	})

	t.Run("active game fields", func(t *testing.T) {
		st := Parse(rawState())
		require.NotNil(t, st)
		require.True(t, st.Active)
		require.Equal(t, 4, st.Round)
		require.Equal(t, Coord{}, st.Head)
		require.Equal(t, 1.0, st.InitialMinBid, "Base bid should undo two doublings")
		require.True(t, st.InExtensionWindow)
		require.Equal(t, NorthEast, st.CurrentDirection)
		require.Len(t, st.Teams, 3)
	})

	t.Run("closest fruit scan", func(t *testing.T) {
		st := Parse(rawState())

		red, ok := st.Team("red")
		require.True(t, ok)
		require.Equal(t, Coord{Q: 1, R: -1}, red.ClosestFruit.Position)
		require.Equal(t, 1, red.ClosestFruit.Distance)
		require.Equal(t, 2, red.FruitCount)

		green, _ := st.Team("green")
		require.Nil(t, green.ClosestFruit, "Team without fruit has no target")
	})

	t.Run("closest fruit ties keep the first", func(t *testing.T) {
		raw := rawState()
		raw.Teams[0].Fruits = []Coord{{Q: 0, R: -2}, {Q: 2, R: -2}}
		st := Parse(raw)
		red, _ := st.Team("red")
		require.Equal(t, Coord{Q: 0, R: -2}, red.ClosestFruit.Position)
	})

	t.Run("defaults for missing radius and threshold", func(t *testing.T) {
		raw := rawState()
		raw.GridRadius = 0
		raw.FruitsToWin = 0
		st := Parse(raw)
		require.Equal(t, DefaultGridRadius, st.GridRadius)
		require.Equal(t, DefaultFruitsToWin, st.FruitsToWin)
	})
}

func TestValidDirections(t *testing.T) {
	t.Run("never reverses into the neck", func(t *testing.T) {
		st := Parse(rawState())
		require.NotContains(t, st.ValidDirections, South, "Cell behind the head is occupied")
		require.Len(t, st.ValidDirections, 5)
	})

	t.Run("walls block moves", func(t *testing.T) {
		raw := rawState()
		raw.Snake.Body = []Coord{{Q: 3, R: -3}, {Q: 2, R: -2}}
		st := Parse(raw)
		require.ElementsMatch(t, []Direction{South, NorthWest}, st.ValidDirections)
	})

	t.Run("neck is never valid for any body shape", func(t *testing.T) {
		for _, d := range Directions {
			raw := rawState()
			neck := Origin.Neighbor(d)
			raw.Snake.Body = []Coord{Origin, neck}
			st := Parse(raw)
			require.False(t, st.IsValid(d), "Moving %s into the neck should be rejected", d)
		}
	})
}

func TestLeader(t *testing.T) {
	t.Run("highest score wins", func(t *testing.T) {
		st := Parse(rawState())
		leader, ok := st.Leader()
		require.True(t, ok)
		require.Equal(t, "red", leader.ID)
	})

	t.Run("ties go to the closer fruit", func(t *testing.T) {
		raw := rawState()
		raw.Teams[1].Score = 2
		raw.Teams[1].Fruits = []Coord{{Q: 0, R: -1}}
		raw.Teams[0].Fruits = []Coord{{Q: 2, R: -2}}
		st := Parse(raw)
		leader, _ := st.Leader()
		require.Equal(t, "blue", leader.ID)
	})

	t.Run("leader with fruit skips fruitless teams", func(t *testing.T) {
		raw := rawState()
		raw.Teams[2].Score = 9
		st := Parse(raw)
		leader, _ := st.Leader()
		require.Equal(t, "green", leader.ID)
		withFruit, _ := st.LeaderWithFruit()
		require.Equal(t, "red", withFruit.ID)
	})
}
