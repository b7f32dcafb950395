package experiments

import (
	"context"
	"os"
	"path/filepath"
	"rodeo/strategy"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	setup := Matchup("smoke", []string{strategy.ExpectedValue, strategy.Aggressive}, 50)
	setup.Games = 3
	setup.Seed = 7
	setup.OutputDir = t.TempDir()

	result, err := Run(context.Background(), setup)
	require.NoError(t, err)
	require.Len(t, result.Records, 6, "One record per agent per game")

	perGame := map[string]int{}
	wins := 0
	for _, r := range result.Records {
		perGame[r.GameID]++
		require.Equal(t, r.Team != "" && r.Team == r.Winner, r.Won)
		require.NotEmpty(t, r.Winner)
		if r.Won {
			wins++
		}
	}
	require.Len(t, perGame, 3, "Every game has its own id")
	require.Equal(t, wins, result.Wins["expected-value-1"]+result.Wins["aggressive-2"])

	for _, name := range []string{"expected-value-1", "aggressive-2"} {
		require.Contains(t, result.Balances, name)
		require.GreaterOrEqual(t, result.Balances[name], 0.0)
	}

	require.DirExists(t, result.Dir)
	require.Equal(t, filepath.Join(setup.OutputDir, "smoke"), filepath.Dir(result.Dir))
	for _, f := range []string{"agent_configs.csv", "game_records.csv"} {
		b, err := os.ReadFile(filepath.Join(result.Dir, f))
		require.NoError(t, err)
		require.NotEmpty(t, b)
	}
}

func TestRunConcludesLongGames(t *testing.T) {
	setup := Matchup("capped", []string{strategy.Underdog, strategy.Conservative, strategy.Random}, 20)
	setup.Games = 2
	setup.MaxTicks = 1

	result, err := Run(context.Background(), setup)
	require.NoError(t, err)
	require.Len(t, result.Records, 6)
	require.Empty(t, result.Dir, "No output dir, nothing written")
}

func TestRunErrors(t *testing.T) {
	_, err := Run(context.Background(), Matchup("solo", []string{strategy.Random}, 10))
	require.Error(t, err)

	_, err = Run(context.Background(), Matchup("bogus", []string{strategy.Random, "martingale"}, 10))
	require.ErrorContains(t, err, "martingale")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := Run(ctx, Matchup("cancelled", []string{strategy.Random, strategy.Underdog}, 10))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, result.Records)
}
