package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HandshakeTimeout bounds the websocket dial. It is the only explicit
// timeout in the engine.
const HandshakeTimeout = 20 * time.Second

// Channel is a live subscription to one conversation's realtime events.
// It dials in the background and keeps reconnecting with exponential
// backoff until Close is called, so a flaky network never kills the
// subscription for the session's lifetime.
type Channel struct {
	url     string
	chatID  string
	handler Handler
	log     *zap.Logger
	dialer  *websocket.Dialer

	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// Open starts a channel for chatID. It returns immediately; connection
// establishment and retries happen on the channel's own goroutine. A zero
// timeout falls back to HandshakeTimeout.
func Open(url, chatID string, h Handler, timeout time.Duration, log *zap.Logger) *Channel {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = HandshakeTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		url:     url,
		chatID:  chatID,
		handler: h,
		log:     log.With(zap.String("chatId", chatID)),
		dialer:  &websocket.Dialer{HandshakeTimeout: timeout},
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go c.run(ctx)
	return c
}

// ChatID is the conversation this channel was subscribed under.
func (c *Channel) ChatID() string { return c.chatID }

func (c *Channel) run(ctx context.Context) {
	defer close(c.done)

	expo := backoff.NewExponentialBackOff()
	expo.MaxElapsedTime = 0 // retry for the session's lifetime
	policy := backoff.WithContext(expo, ctx)

	for {
		conn, err := c.dial(ctx)
		if err != nil {
			wait := policy.NextBackOff()
			if wait == backoff.Stop || ctx.Err() != nil {
				return
			}
			c.log.Warn("realtime dial failed", zap.Error(err), zap.Duration("retryIn", wait))
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return
			}
		}

		policy.Reset()
		if !c.adopt(conn) {
			return
		}
		c.log.Debug("realtime channel connected")

		c.readLoop(ctx, conn)
		c.release(conn)

		if ctx.Err() != nil {
			return
		}
	}
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	header.Set("X-Connect-Id", uuid.NewString())
	header.Set("X-Chat-Id", c.chatID)

	conn, resp, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, err
	}
	return conn, nil
}

// adopt publishes the live connection so Close can reach it. Returns false
// when the channel was closed while dialing.
func (c *Channel) adopt(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		conn.Close()
		return false
	}
	c.conn = conn
	return true
}

func (c *Channel) release(conn *websocket.Conn) {
	conn.Close()
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("realtime read failed", zap.Error(err))
			}
			return
		}
		c.dispatch(f)
	}
}

func (c *Channel) dispatch(f frame) {
	switch f.Event {
	case EventReceive:
		var b Broadcast
		if err := json.Unmarshal(f.Data, &b); err != nil {
			c.log.Warn("malformed broadcast payload", zap.Error(err))
			return
		}
		c.handler.HandleBroadcast(b)
	case EventResponse:
		var a Ack
		if err := json.Unmarshal(f.Data, &a); err != nil {
			c.log.Warn("malformed ack payload", zap.Error(err))
			return
		}
		c.handler.HandleAck(a)
	default:
		c.log.Debug("ignoring unknown event", zap.String("event", f.Event))
	}
}

// Close tears the channel down and waits for the read loop to exit, so no
// event is delivered after Close returns. Safe to call more than once.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		<-c.done
		return nil
	}
	c.closed = true
	conn := c.conn
	c.mu.Unlock()

	c.cancel()
	if conn != nil {
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
	}
	<-c.done
	return nil
}
