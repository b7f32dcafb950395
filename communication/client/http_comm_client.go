package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"rodeo/communication"
	"rodeo/game"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const defaultTimeout = 10 * time.Second

type Option func(c *ClientCommunicator)

// ClientCommunicator talks to the game backend over HTTP.
type ClientCommunicator struct {
	serverURL string
	token     TokenSource
	http      *http.Client
	now       func() time.Time
}

func WithTokenSource(source TokenSource) Option {
	return func(c *ClientCommunicator) {
		if source != nil {
			c.token = source
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *ClientCommunicator) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *ClientCommunicator) {
		if timeout > 0 {
			// Copy so a shared client keeps its own timeout
			hc := *c.http
			hc.Timeout = timeout
			c.http = &hc
		}
	}
}

// NewClientCommunicator initializes and returns a new ClientCommunicator.
func NewClientCommunicator(serverURL string, options ...Option) *ClientCommunicator {
	c := &ClientCommunicator{
		serverURL: strings.TrimRight(serverURL, "/"),
		token:     StaticToken(""),
		http:      &http.Client{Timeout: defaultTimeout},
		now:       time.Now,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

var _ communication.GameServer = (*ClientCommunicator)(nil)

type balanceResponse struct {
	Balance float64 `json:"balance"`
}

type voteRequest struct {
	Direction game.Direction `json:"direction"`
	Team      string         `json:"team"`
	Amount    float64        `json:"amount"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (cc *ClientCommunicator) GetGameState(ctx context.Context) (*game.RawGameState, error) {
	var gs game.RawGameState
	if err := cc.do(ctx, http.MethodGet, "/api/game/state", nil, "", &gs); err != nil {
		return nil, fmt.Errorf("get game state: %w", err)
	}
	switch strings.ToUpper(gs.Error) {
	case "AUTH_MISSING":
		return nil, communication.ErrAuthMissing
	case "AUTH_EXPIRED":
		return nil, communication.ErrAuthExpired
	}
	return &gs, nil
}

func (cc *ClientCommunicator) GetBalance(ctx context.Context) (float64, error) {
	var br balanceResponse
	if err := cc.do(ctx, http.MethodGet, "/api/wallet/balance", nil, "", &br); err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return br.Balance, nil
}

func (cc *ClientCommunicator) SubmitVote(ctx context.Context, direction game.Direction, team string, amount float64) error {
	body := voteRequest{Direction: direction, Team: team, Amount: amount}
	requestID := uuid.NewString()
	if err := cc.do(ctx, http.MethodPost, "/api/game/vote", body, requestID, nil); err != nil {
		return fmt.Errorf("submit vote %s/%s: %w", direction, team, err)
	}
	return nil
}

func (cc *ClientCommunicator) do(ctx context.Context, method, path string, in any, requestID string, out any) error {
	token, err := cc.token()
	if err != nil {
		return err
	}
	if err := checkToken(token, cc.now()); err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, cc.serverURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := cc.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// statusError maps a non-2xx response onto the communication error taxonomy.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var er errorResponse
	_ = json.Unmarshal(raw, &er)
	msg := er.Message
	if msg == "" {
		msg = er.Error
	}
	if msg == "" {
		msg = strings.TrimSpace(string(raw))
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		if strings.Contains(strings.ToLower(msg), "expired") || strings.EqualFold(er.Error, "AUTH_EXPIRED") {
			return communication.ErrAuthExpired
		}
		return communication.ErrAuthMissing
	case http.StatusConflict:
		if strings.Contains(strings.ToLower(msg), "already") {
			return communication.ErrAlreadyActive
		}
	case http.StatusTooManyRequests:
		return &communication.RateLimitError{RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, msg)
}

func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
