package metrics

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := NewCollector("a1", "aggressive")
	c.StartGame("g1")
	c.AddVote(1, false)
	c.AddVote(2.5, true)
	c.AddSkip()
	c.AddDecline()
	c.AddError()

	m := c.CompleteGame("red", "red")
	require.Equal(t, "g1", m.GameID)
	require.Equal(t, "aggressive", m.Strategy)
	require.True(t, m.Won)
	require.Equal(t, 2, m.Votes)
	require.Equal(t, 1, m.CounterVotes)
	require.Equal(t, 3.5, m.Spent)
	require.Equal(t, 1, m.Skips)
	require.Equal(t, 1, m.Declines)
	require.Equal(t, 1, m.Errors)

	c.StartGame("g2")
	m = c.CompleteGame("blue", "red")
	require.False(t, m.Won)
	require.Zero(t, m.Votes, "Counters reset per game")
	require.Zero(t, m.Spent)

	require.Equal(t, GameMetric{}, NewDummyCollector().CompleteGame("red", "red"))
}

func TestWriter(t *testing.T) {
	w, err := NewWriter(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, w.WriteAgentConfigs([]AgentConfig{{ID: 1, Name: "a1", Strategy: "random", Balance: 20}}))
	require.NoError(t, w.WriteGameRecords([]GameRecord{{ID: 1, Agent: 1, GameMetric: GameMetric{GameID: "g1", Votes: 3, Spent: 1.5}}}))

	f, err := os.Open(filepath.Join(w.Dir(), "game_records.csv"))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "g1", rows[1][2])
	require.Equal(t, "3", rows[1][7])
	require.Equal(t, "1.5", rows[1][12])
}
