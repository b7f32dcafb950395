// Package ledger keeps an audit trail of submitted votes and finished games in SQL.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrDuplicate = errors.New("already recorded")

// Outcome of a vote submission
const (
	OutcomeAccepted      = "accepted"
	OutcomeAlreadyActive = "already_active"
	OutcomeRejected      = "rejected"
)

type VoteRecord struct {
	ID        string    `json:"id"`
	GameID    string    `json:"gameId"`
	Round     int       `json:"round"`
	Direction string    `json:"direction"`
	Team      string    `json:"team"`
	Amount    float64   `json:"amount"`
	Counter   bool      `json:"counter"`
	Reason    string    `json:"reason"`
	Strategy  string    `json:"strategy"`
	Outcome   string    `json:"outcome"`
	CreatedAt time.Time `json:"createdAt"`
}

type GameRecord struct {
	GameID  string    `json:"gameId"`
	Winner  string    `json:"winner"`
	Team    string    `json:"team"`
	Won     bool      `json:"won"`
	Votes   int       `json:"votes"`
	Spent   float64   `json:"spent"`
	Rounds  int       `json:"rounds"`
	EndedAt time.Time `json:"endedAt"`
}

type Totals struct {
	Votes int     `json:"votes"`
	Spent float64 `json:"spent"`
	Games int     `json:"games"`
	Wins  int     `json:"wins"`
}

type Service interface {
	Close() error
	RecordVote(ctx context.Context, v VoteRecord) error
	// RecordGame fails with ErrDuplicate when the game was already recorded
	RecordGame(ctx context.Context, g GameRecord) error
	RecentVotes(ctx context.Context, limit int) ([]VoteRecord, error)
	RecentGames(ctx context.Context, limit int) ([]GameRecord, error)
	Totals(ctx context.Context) (Totals, error)
}

// Open returns the ledger for driver: sqlite, postgres or none.
func Open(driver, dsn string) (Service, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite":
		return NewSQLiteService(dsn)
	case "postgres":
		return NewPostgresService(dsn)
	case "none", "":
		return NewNoopService(), nil
	default:
		return nil, fmt.Errorf("unknown ledger driver %q", driver)
	}
}

type noopService struct{}

func NewNoopService() Service {
	return &noopService{}
}

func (n *noopService) Close() error                                  { return nil }
func (n *noopService) RecordVote(_ context.Context, _ VoteRecord) error { return nil }
func (n *noopService) RecordGame(_ context.Context, _ GameRecord) error { return nil }
func (n *noopService) RecentVotes(_ context.Context, _ int) ([]VoteRecord, error) {
	return nil, nil
}
func (n *noopService) RecentGames(_ context.Context, _ int) ([]GameRecord, error) {
	return nil, nil
}
func (n *noopService) Totals(_ context.Context) (Totals, error) { return Totals{}, nil }
