// Package feed connects to live alert streams and hands raw alerts to the replay driver in arrival order.
package feed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"signalbot-go/internal/replay"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultReadTimeout      = 60 * time.Second
	defaultPingInterval     = 20 * time.Second
	defaultMaxBackoff       = 30 * time.Second
	initialBackoff          = time.Second
)

// WebsocketFeed reads one alert per text frame from a websocket endpoint.
type WebsocketFeed struct {
	url          string
	log          zerolog.Logger
	readTimeout  time.Duration
	pingInterval time.Duration
	maxBackoff   time.Duration
	reconnect    bool
	seq          int
}

// Option configures WebsocketFeed construction parameters.
type Option func(*WebsocketFeed)

// WithReadTimeout overrides how long the feed waits for a frame or pong.
func WithReadTimeout(d time.Duration) Option {
	return func(f *WebsocketFeed) {
		if d > 0 {
			f.readTimeout = d
		}
	}
}

// WithPingInterval overrides the keepalive cadence.
func WithPingInterval(d time.Duration) Option {
	return func(f *WebsocketFeed) {
		if d > 0 {
			f.pingInterval = d
		}
	}
}

// WithMaxBackoff caps the reconnect delay.
func WithMaxBackoff(d time.Duration) Option {
	return func(f *WebsocketFeed) {
		if d > 0 {
			f.maxBackoff = d
		}
	}
}

// WithoutReconnect makes Run return when the connection closes instead of redialing.
func WithoutReconnect() Option {
	return func(f *WebsocketFeed) { f.reconnect = false }
}

// NewWebsocketFeed constructs a feed for url (ws:// or wss://).
func NewWebsocketFeed(url string, log zerolog.Logger, opts ...Option) *WebsocketFeed {
	f := &WebsocketFeed{
		url:          strings.TrimSpace(url),
		log:          log,
		readTimeout:  defaultReadTimeout,
		pingInterval: defaultPingInterval,
		maxBackoff:   defaultMaxBackoff,
		reconnect:    true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run pushes alerts onto out until the context is canceled. The send blocks, so a
// slow consumer throttles the socket rather than reordering alerts.
func (f *WebsocketFeed) Run(ctx context.Context, out chan<- replay.Record) error {
	if f.url == "" {
		return errors.New("websocket feed requires a url")
	}

	var backoff time.Duration
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		seen := f.seq
		err := f.consume(ctx, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !f.reconnect {
			return err
		}
		// a session that delivered alerts was healthy; retry fast
		backoff = f.nextBackoff(backoff, f.seq > seen)
		f.log.Warn().Err(err).Str("url", f.url).Dur("backoff", backoff).Msg("alert feed disconnected, retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// nextBackoff returns the delay before the next dial. It starts over after a
// connection that delivered frames and otherwise grows towards maxBackoff.
func (f *WebsocketFeed) nextBackoff(current time.Duration, delivered bool) time.Duration {
	if delivered || current <= 0 {
		return initialBackoff
	}
	return time.Duration(math.Min(float64(f.maxBackoff), float64(current)*1.8))
}

func (f *WebsocketFeed) consume(ctx context.Context, out chan<- replay.Record) error {
	dialer := websocket.Dialer{HandshakeTimeout: defaultHandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return fmt.Errorf("dial alert feed: %w", err)
	}
	defer conn.Close()

	f.log.Info().Str("url", f.url).Msg("connected alert feed")

	conn.SetReadLimit(1 << 16)
	conn.SetReadDeadline(time.Now().Add(f.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(f.readTimeout))
	})

	pingCtx, pingCancel := context.WithCancel(ctx)
	defer pingCancel()
	go func() {
		ticker := time.NewTicker(f.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
					f.log.Warn().Err(err).Msg("alert feed ping failed")
					return
				}
			case <-pingCtx.Done():
				return
			}
		}
	}()

	// unblock ReadMessage on shutdown
	go func() {
		<-pingCtx.Done()
		conn.SetReadDeadline(time.Now())
	}()

	for {
		msgType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		conn.SetReadDeadline(time.Now().Add(f.readTimeout))
		if msgType != websocket.TextMessage {
			continue
		}
		text := strings.TrimSpace(string(message))
		if text == "" {
			continue
		}

		f.seq++
		rec := replay.Record{Line: f.seq, Name: "ws", Description: text}
		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
