package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const defaultRecentLimit = 50

const schema = `
CREATE TABLE IF NOT EXISTS ledger_votes (
    id            TEXT PRIMARY KEY,
    game_id       TEXT NOT NULL,
    round         INTEGER NOT NULL,
    direction     TEXT NOT NULL,
    team          TEXT NOT NULL,
    amount        DOUBLE PRECISION NOT NULL,
    counter       BOOLEAN NOT NULL,
    reason        TEXT NOT NULL,
    strategy      TEXT NOT NULL,
    outcome       TEXT NOT NULL,
    created_at_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS ledger_votes_created_idx ON ledger_votes (created_at_ms);
CREATE TABLE IF NOT EXISTS ledger_games (
    game_id     TEXT PRIMARY KEY,
    winner      TEXT NOT NULL,
    team        TEXT NOT NULL,
    won         BOOLEAN NOT NULL,
    votes       INTEGER NOT NULL,
    spent       DOUBLE PRECISION NOT NULL,
    rounds      INTEGER NOT NULL,
    ended_at_ms BIGINT NOT NULL
);`

// sqlService is shared by the sqlite and postgres ledgers. Queries are written with ?
// placeholders and rebound for postgres.
type sqlService struct {
	db       *sql.DB
	numbered bool
}

func ensureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure ledger schema: %w", err)
		}
	}
	return nil
}

func (s *sqlService) bind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *sqlService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqlService) RecordVote(ctx context.Context, v VoteRecord) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.bind(`
INSERT INTO ledger_votes (id, game_id, round, direction, team, amount, counter, reason, strategy, outcome, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING`),
		v.ID, v.GameID, v.Round, v.Direction, v.Team, v.Amount, v.Counter, v.Reason, v.Strategy, v.Outcome,
		v.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("record vote: %w", err)
	}
	return nil
}

func (s *sqlService) RecordGame(ctx context.Context, g GameRecord) error {
	if g.GameID == "" {
		return errors.New("record game: empty game id")
	}
	if g.EndedAt.IsZero() {
		g.EndedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, s.bind(`
INSERT INTO ledger_games (game_id, winner, team, won, votes, spent, rounds, ended_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		g.GameID, g.Winner, g.Team, g.Won, g.Votes, g.Spent, g.Rounds, g.EndedAt.UTC().UnixMilli(),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("record game: %w", err)
	}
	return nil
}

func (s *sqlService) RecentVotes(ctx context.Context, limit int) ([]VoteRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx, s.bind(`
SELECT id, game_id, round, direction, team, amount, counter, reason, strategy, outcome, created_at_ms
FROM ledger_votes
ORDER BY created_at_ms DESC, id DESC
LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VoteRecord
	for rows.Next() {
		var v VoteRecord
		var createdMs int64
		if err := rows.Scan(&v.ID, &v.GameID, &v.Round, &v.Direction, &v.Team, &v.Amount, &v.Counter,
			&v.Reason, &v.Strategy, &v.Outcome, &createdMs); err != nil {
			return nil, err
		}
		v.CreatedAt = time.UnixMilli(createdMs).UTC()
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *sqlService) RecentGames(ctx context.Context, limit int) ([]GameRecord, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	rows, err := s.db.QueryContext(ctx, s.bind(`
SELECT game_id, winner, team, won, votes, spent, rounds, ended_at_ms
FROM ledger_games
ORDER BY ended_at_ms DESC, game_id DESC
LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GameRecord
	for rows.Next() {
		var g GameRecord
		var endedMs int64
		if err := rows.Scan(&g.GameID, &g.Winner, &g.Team, &g.Won, &g.Votes, &g.Spent, &g.Rounds, &endedMs); err != nil {
			return nil, err
		}
		g.EndedAt = time.UnixMilli(endedMs).UTC()
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *sqlService) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := s.db.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM ledger_votes WHERE outcome = 'accepted'`).Scan(&t.Votes, &t.Spent)
	if err != nil {
		return t, err
	}
	err = s.db.QueryRowContext(ctx, `
SELECT COUNT(*), COALESCE(SUM(CASE WHEN won THEN 1 ELSE 0 END), 0) FROM ledger_games`).Scan(&t.Games, &t.Wins)
	return t, err
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
