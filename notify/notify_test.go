package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type recordSink struct {
	ok   bool
	sent []string
}

func (r *recordSink) Send(_ context.Context, text string) bool {
	r.sent = append(r.sent, text)
	return r.ok
}

func TestMulti(t *testing.T) {
	failing := &recordSink{}
	working := &recordSink{ok: true}

	require.True(t, Multi(failing, nil, working).Send(context.Background(), "hi"))
	require.Equal(t, []string{"hi"}, failing.sent)
	require.Equal(t, []string{"hi"}, working.sent)
	require.False(t, Multi(failing).Send(context.Background(), "again"))
	require.False(t, Multi().Send(context.Background(), "nobody"))
}

func TestWebSocketSink(t *testing.T) {
	received := make(chan Message, 4)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			var m Message
			if err := conn.ReadJSON(&m); err != nil {
				return
			}
			received <- m
		}
	}))
	defer srv.Close()

	sink := NewWebSocketSink("ws"+strings.TrimPrefix(srv.URL, "http"), "agent-1")
	defer sink.Close()

	require.True(t, sink.Send(context.Background(), "switched to red"))
	require.True(t, sink.Send(context.Background(), "game over"))

	for _, want := range []string{"switched to red", "game over"} {
		select {
		case m := <-received:
			require.Equal(t, want, m.Text)
			require.Equal(t, "agent-1", m.Source)
		case <-time.After(2 * time.Second):
			t.Fatal("message not delivered")
		}
	}
}

func TestWebSocketSinkUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	require.False(t, NewWebSocketSink(url, "a").Send(context.Background(), "lost"))
	require.False(t, NewWebSocketSink("", "a").Send(context.Background(), "nowhere"))
}
