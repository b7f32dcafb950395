package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func openSQLite(t *testing.T) Service {
	t.Helper()
	svc, err := Open("sqlite", filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestSQLiteLedger(t *testing.T) {
	ctx := context.Background()
	svc := openSQLite(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("votes newest first", func(t *testing.T) {
		require.NoError(t, svc.RecordVote(ctx, VoteRecord{GameID: "g1", Round: 1, Direction: "n", Team: "red", Amount: 1, Outcome: OutcomeAccepted, CreatedAt: base}))
		require.NoError(t, svc.RecordVote(ctx, VoteRecord{ID: "v2", GameID: "g1", Round: 1, Direction: "ne", Team: "red", Amount: 2, Counter: true, Outcome: OutcomeAccepted, CreatedAt: base.Add(time.Second)}))
		require.NoError(t, svc.RecordVote(ctx, VoteRecord{ID: "v2", GameID: "g1", Round: 9, Outcome: OutcomeAccepted, CreatedAt: base}), "Replayed ids are ignored")
		require.NoError(t, svc.RecordVote(ctx, VoteRecord{GameID: "g1", Round: 2, Direction: "s", Team: "red", Amount: 1, Outcome: OutcomeAlreadyActive, CreatedAt: base.Add(2 * time.Second)}))

		votes, err := svc.RecentVotes(ctx, 2)
		require.NoError(t, err)
		require.Len(t, votes, 2)
		require.Equal(t, OutcomeAlreadyActive, votes[0].Outcome)
		require.Equal(t, "v2", votes[1].ID)
		require.True(t, votes[1].Counter)
		require.Equal(t, 1, votes[1].Round)
		require.Equal(t, base.Add(time.Second), votes[1].CreatedAt)
	})

	t.Run("games are recorded once", func(t *testing.T) {
		g := GameRecord{GameID: "g1", Winner: "red", Team: "red", Won: true, Votes: 3, Spent: 4, Rounds: 12, EndedAt: base}
		require.NoError(t, svc.RecordGame(ctx, g))
		require.ErrorIs(t, svc.RecordGame(ctx, g), ErrDuplicate)
		require.NoError(t, svc.RecordGame(ctx, GameRecord{GameID: "g2", Winner: "blue", Team: "red", EndedAt: base.Add(time.Hour)}))
		require.Error(t, svc.RecordGame(ctx, GameRecord{}))

		games, err := svc.RecentGames(ctx, 0)
		require.NoError(t, err)
		require.Len(t, games, 2)
		require.Equal(t, "g2", games[0].GameID)
		require.False(t, games[0].Won)
		require.True(t, games[1].Won)
	})

	t.Run("totals count accepted votes", func(t *testing.T) {
		totals, err := svc.Totals(ctx)
		require.NoError(t, err)
		require.Equal(t, Totals{Votes: 2, Spent: 3, Games: 2, Wins: 1}, totals)
	})
}

func TestOpen(t *testing.T) {
	svc, err := Open("none", "")
	require.NoError(t, err)
	require.NoError(t, svc.RecordVote(context.Background(), VoteRecord{}))

	_, err = Open("mongo", "")
	require.Error(t, err)
	_, err = Open("sqlite", " ")
	require.Error(t, err)
}

func TestBind(t *testing.T) {
	s := &sqlService{numbered: true}
	require.Equal(t, "VALUES ($1, $2)", s.bind("VALUES (?, ?)"))
	require.Equal(t, "VALUES (?)", (&sqlService{}).bind("VALUES (?)"))
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, isUniqueViolation(&pq.Error{Code: "23505"}))
	require.False(t, isUniqueViolation(&pq.Error{Code: "23503"}))
	require.True(t, isUniqueViolation(errors.New("constraint failed: UNIQUE constraint failed: ledger_games.game_id (1555)")))
	require.False(t, isUniqueViolation(nil))
}
