package game

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWinProbability(t *testing.T) {
	t.Run("monotonic in distance", func(t *testing.T) {
		for needed := 1; needed <= 6; needed++ {
			prev := WinProbability(needed, 0)
			for d := 1; d <= 10; d++ {
				p := WinProbability(needed, d)
				require.LessOrEqual(t, p, prev, "needed=%d d=%d", needed, d)
				prev = p
			}
		}
	})

	t.Run("monotonic in fruits needed", func(t *testing.T) {
		for d := 0; d <= 10; d++ {
			prev := WinProbability(1, d)
			for needed := 2; needed <= 6; needed++ {
				p := WinProbability(needed, d)
				require.LessOrEqual(t, p, prev, "needed=%d d=%d", needed, d)
				prev = p
			}
		}
	})

	t.Run("anchors", func(t *testing.T) {
		require.Equal(t, 0.9, WinProbability(1, 1))
		require.Equal(t, MinWinProbability, WinProbability(8, 12))
		require.Equal(t, 1.0, WinProbability(0, 4), "Team at threshold has won")
	})
}

func TestPayoutShare(t *testing.T) {
	t.Run("joining adds a voter", func(t *testing.T) {
		require.InDelta(t, 1.0/5, PayoutShare(4, false), 1e-9)
		require.InDelta(t, 1.0/4, PayoutShare(4, true), 1e-9)
	})

	t.Run("empty team gives the whole prize", func(t *testing.T) {
		require.Equal(t, 1.0, PayoutShare(0, false))
		require.Equal(t, 1.0, PayoutShare(0, true))
	})

	t.Run("estimated votes from pool", func(t *testing.T) {
		require.Equal(t, 4.0, EstimatedVotes(4, 1))
		require.Equal(t, 0.0, EstimatedVotes(4, 0))
	})
}

func TestExpectedValue(t *testing.T) {
	t.Run("smaller pool gives higher value at equal odds", func(t *testing.T) {
		st := &ParsedGameState{PrizePool: 100, InitialMinBid: 1, FruitsToWin: 3}
		fruit := &FruitTarget{Distance: 2}
		small := Team{ID: "x", Score: 1, Pool: 2, ClosestFruit: fruit}
		large := Team{ID: "y", Score: 1, Pool: 9, ClosestFruit: fruit}
		require.Greater(t, st.ExpectedValue(small, false), st.ExpectedValue(large, false))
	})
}
