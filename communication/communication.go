package communication

import (
	"context"
	"errors"
	"fmt"
	"rodeo/game"
	"time"
)

// GameServer abstracts the remote game backend the agent plays against.
type GameServer interface {
	// GetGameState returns the latest snapshot. Authentication problems surface as
	// ErrAuthMissing or ErrAuthExpired.
	GetGameState(ctx context.Context) (*game.RawGameState, error)
	// GetBalance returns the spendable balance of the signed-in account.
	GetBalance(ctx context.Context) (float64, error)
	// SubmitVote places a paid vote. ErrAlreadyActive means the direction is already
	// the active one and nothing was charged.
	SubmitVote(ctx context.Context, direction game.Direction, team string, amount float64) error
}

var (
	ErrAuthMissing   = errors.New("not signed in")
	ErrAuthExpired   = errors.New("session expired")
	ErrAlreadyActive = errors.New("direction already active")
	ErrNoGame        = errors.New("no game in progress")
)

// RateLimitError reports that the backend refuses further votes for a while.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter <= 0 {
		return "rate limited"
	}
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// IsAuthError reports whether err means the agent has to sign in again.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthMissing) || errors.Is(err, ErrAuthExpired)
}

// AsRateLimit unwraps a RateLimitError.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}
