// Package notify delivers short human readable messages about the daemon: team
// switches, game results, auth problems. Delivery is best effort.
package notify

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Sink sends one message. It reports false on failure and never blocks the caller
// beyond its own short timeouts.
type Sink interface {
	Send(ctx context.Context, text string) bool
}

type LogSink struct{}

func (LogSink) Send(_ context.Context, text string) bool {
	log.Info().Str("notify", "log").Msg(text)
	return true
}

type multi []Sink

// Multi fans a message out to every sink. It succeeds if any sink did.
func Multi(sinks ...Sink) Sink {
	var out multi
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m multi) Send(ctx context.Context, text string) bool {
	ok := false
	for _, s := range m {
		if s.Send(ctx, text) {
			ok = true
		}
	}
	return ok
}

// Message is the frame a WebSocketSink writes.
type Message struct {
	Type   string    `json:"type"`
	Source string    `json:"source"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sentAt"`
}

// WebSocketSink writes messages to a websocket endpoint such as a chat bridge. The
// connection is dialled lazily and dropped on any write error; the next Send dials
// again.
type WebSocketSink struct {
	url    string
	source string
	dialer websocket.Dialer
	header http.Header

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWebSocketSink(url, source string) *WebSocketSink {
	return &WebSocketSink{
		url:    strings.TrimSpace(url),
		source: source,
		dialer: websocket.Dialer{HandshakeTimeout: 5 * time.Second},
		header: http.Header{},
	}
}

func (s *WebSocketSink) Send(ctx context.Context, text string) bool {
	if s.url == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 0; attempt < 2; attempt++ {
		if s.conn == nil {
			conn, resp, err := s.dialer.DialContext(ctx, s.url, s.header)
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
			if err != nil {
				log.Debug().Err(err).Str("url", s.url).Msg("notify dial failed")
				return false
			}
			s.conn = conn
		}

		_ = s.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		err := s.conn.WriteJSON(Message{Type: "notify", Source: s.source, Text: text, SentAt: time.Now().UTC()})
		if err == nil {
			return true
		}
		log.Debug().Err(err).Msg("notify write failed")
		_ = s.conn.Close()
		s.conn = nil
	}
	return false
}

func (s *WebSocketSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
