package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"rodeo/communication"
	"rodeo/game"
	"testing"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "agent", "exp": exp.Unix()})
	s, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func TestGetGameState(t *testing.T) {
	t.Run("decodes snapshot with bearer token", func(t *testing.T) {
		var gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/api/game/state", r.URL.Path)
			gotAuth = r.Header.Get("Authorization")
			_ = json.NewEncoder(w).Encode(game.RawGameState{
				Active: true,
				Round:  7,
				Snake:  game.RawSnake{Body: []game.Coord{{Q: 1, R: 0}}},
			})
		}))
		defer srv.Close()

		cc := NewClientCommunicator(srv.URL+"/", WithTokenSource(StaticToken("opaque-token")))
		gs, err := cc.GetGameState(context.Background())

		require.NoError(t, err)
		require.Equal(t, 7, gs.Round)
		require.Equal(t, "Bearer opaque-token", gotAuth)
	})

	t.Run("error payload maps to auth errors", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"error":"AUTH_EXPIRED"}`))
		}))
		defer srv.Close()

		cc := NewClientCommunicator(srv.URL, WithTokenSource(StaticToken("opaque")))
		_, err := cc.GetGameState(context.Background())
		require.ErrorIs(t, err, communication.ErrAuthExpired)
	})

	t.Run("missing token never reaches the server", func(t *testing.T) {
		called := false
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))
		defer srv.Close()

		cc := NewClientCommunicator(srv.URL)
		_, err := cc.GetGameState(context.Background())
		require.ErrorIs(t, err, communication.ErrAuthMissing)
		require.False(t, called, "Request should not be sent without a token")
	})

	t.Run("expired jwt detected locally", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("request should not be sent with an expired token")
		}))
		defer srv.Close()

		token := signedToken(t, time.Now().Add(-time.Hour))
		cc := NewClientCommunicator(srv.URL, WithTokenSource(StaticToken(token)))
		_, err := cc.GetGameState(context.Background())
		require.ErrorIs(t, err, communication.ErrAuthExpired)
	})

	t.Run("valid jwt passes through", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"active":false}`))
		}))
		defer srv.Close()

		token := signedToken(t, time.Now().Add(time.Hour))
		cc := NewClientCommunicator(srv.URL, WithTokenSource(StaticToken(token)))
		gs, err := cc.GetGameState(context.Background())
		require.NoError(t, err)
		require.False(t, gs.Active)
	})
}

func TestGetBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/wallet/balance", r.URL.Path)
		_, _ = w.Write([]byte(`{"balance":12.5}`))
	}))
	defer srv.Close()

	cc := NewClientCommunicator(srv.URL, WithTokenSource(StaticToken("t")))
	balance, err := cc.GetBalance(context.Background())
	require.NoError(t, err)
	require.Equal(t, 12.5, balance)
}

func TestTimeoutOption(t *testing.T) {
	t.Run("shared client is left alone", func(t *testing.T) {
		shared := &http.Client{}
		cc := NewClientCommunicator("http://localhost", WithHTTPClient(shared), WithTimeout(time.Second))
		require.Zero(t, shared.Timeout, "Caller's client keeps its timeout")
		require.Equal(t, time.Second, cc.http.Timeout)
		require.NotSame(t, shared, cc.http)
	})

	t.Run("default client", func(t *testing.T) {
		require.Equal(t, defaultTimeout, NewClientCommunicator("http://localhost").http.Timeout)
		cc := NewClientCommunicator("http://localhost", WithTimeout(3*time.Second))
		require.Equal(t, 3*time.Second, cc.http.Timeout)
	})
}

func TestSubmitVote(t *testing.T) {
	t.Run("posts vote with request id", func(t *testing.T) {
		var got voteRequest
		var requestID string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			requestID = r.Header.Get("X-Request-ID")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		cc := NewClientCommunicator(srv.URL, WithTokenSource(StaticToken("t")))
		err := cc.SubmitVote(context.Background(), game.NorthEast, "red", 2)

		require.NoError(t, err)
		require.Equal(t, voteRequest{Direction: game.NorthEast, Team: "red", Amount: 2}, got)
		require.Len(t, requestID, 36, "Request id should be a uuid")
	})

	t.Run("status codes map onto the error taxonomy", func(t *testing.T) {
		cases := []struct {
			name   string
			status int
			body   string
			header map[string]string
			check  func(t *testing.T, err error)
		}{
			{"conflict already active", http.StatusConflict, `{"error":"Direction already active"}`, nil, func(t *testing.T, err error) {
				require.ErrorIs(t, err, communication.ErrAlreadyActive)
			}},
			{"other conflict", http.StatusConflict, `{"error":"round closed"}`, nil, func(t *testing.T, err error) {
				require.NotErrorIs(t, err, communication.ErrAlreadyActive)
				require.Contains(t, err.Error(), "409")
			}},
			{"unauthorized", http.StatusUnauthorized, `{"error":"no session"}`, nil, func(t *testing.T, err error) {
				require.ErrorIs(t, err, communication.ErrAuthMissing)
			}},
			{"unauthorized expired", http.StatusUnauthorized, `{"message":"token expired"}`, nil, func(t *testing.T, err error) {
				require.ErrorIs(t, err, communication.ErrAuthExpired)
			}},
			{"rate limited", http.StatusTooManyRequests, ``, map[string]string{"Retry-After": "30"}, func(t *testing.T, err error) {
				rl, ok := communication.AsRateLimit(err)
				require.True(t, ok)
				require.Equal(t, 30*time.Second, rl.RetryAfter)
			}},
			{"server error", http.StatusInternalServerError, `boom`, nil, func(t *testing.T, err error) {
				require.Contains(t, err.Error(), "500: boom")
			}},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					for k, v := range tc.header {
						w.Header().Set(k, v)
					}
					w.WriteHeader(tc.status)
					_, _ = w.Write([]byte(tc.body))
				}))
				defer srv.Close()

				cc := NewClientCommunicator(srv.URL, WithTokenSource(StaticToken("t")))
				err := cc.SubmitVote(context.Background(), game.North, "red", 1)
				require.Error(t, err)
				tc.check(t, err)
			})
		}
	})
}

func TestFileToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")

	token, err := FileToken(path)()
	require.NoError(t, err)
	require.Empty(t, token, "Missing file means signed out")

	require.NoError(t, os.WriteFile(path, []byte("abc\n"), 0o600))
	token, err = FileToken(path)()
	require.NoError(t, err)
	require.Equal(t, "abc", token)
}
