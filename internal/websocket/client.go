package websocket

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/jlpt-proctor/internal/anticheat"
)

var (
	ErrClientClosed       = errors.New("client connection closed")
	ErrFullscreenDenied   = errors.New("fullscreen request denied")
	fullscreenWaitTimeout = 10 * time.Second
)

const sendBuffer = 64

// Client owns one exam stream connection. Every write goes through a single
// pump goroutine; Send never blocks the caller.
type Client struct {
	conn *websocket.Conn
	send chan any
	done chan struct{}
	once sync.Once
	log  zerolog.Logger

	mu      sync.Mutex
	pending map[string]chan FullscreenResultRequest
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, log zerolog.Logger) *Client {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &Client{
		conn:    conn,
		send:    make(chan any, sendBuffer),
		done:    make(chan struct{}),
		log:     log,
		pending: make(map[string]chan FullscreenResultRequest),
	}
}

// Send queues v for the client. A client that cannot keep up is disconnected.
func (c *Client) Send(v any) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- v:
		return true
	case <-c.done:
		return false
	default:
		c.log.Warn().Msg("Client send buffer full, closing connection")
		c.Close()
		return false
	}
}

// Done is closed when the client shuts down.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close stops the pump and the connection. Safe to call more than once.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// WritePump drains the send queue and keeps the connection alive with pings.
// It returns when the client closes.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case v := <-c.send:
			if err := WriteTyped(c.conn, v); err != nil {
				c.log.Debug().Err(err).Msg("Write failed")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Read returns the next client frame.
func (c *Client) Read() ([]byte, error) {
	return ReadMessage(c.conn)
}

// RequestFullscreen asks the browser to enter fullscreen and waits for its answer.
func (c *Client) RequestFullscreen(ctx context.Context) error {
	id := uuid.NewString()
	ch := make(chan FullscreenResultRequest, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	// A vanished client cannot answer; that is not a refusal.
	closed := fmt.Errorf("%w: %w", anticheat.ErrUnsupported, ErrClientClosed)
	if !c.Send(FullscreenCommand{Event: EventRequestFullscreen, RequestID: id}) {
		return closed
	}

	ctx, cancel := context.WithTimeout(ctx, fullscreenWaitTimeout)
	defer cancel()

	select {
	case res := <-ch:
		switch {
		case res.Unsupported:
			return anticheat.ErrUnsupported
		case res.Granted:
			return nil
		case res.Error != "":
			return fmt.Errorf("%w: %s", ErrFullscreenDenied, res.Error)
		default:
			return ErrFullscreenDenied
		}
	case <-c.done:
		return closed
	case <-ctx.Done():
		// No answer: treat the API as unavailable.
		return fmt.Errorf("%w: %v", anticheat.ErrUnsupported, ctx.Err())
	}
}

// ExitFullscreen tells the browser to leave fullscreen.
func (c *Client) ExitFullscreen(context.Context) error {
	if !c.Send(FullscreenCommand{Event: EventExitFullscreen}) {
		return ErrClientClosed
	}
	return nil
}

// ResolveFullscreen delivers a fullscreen_result to the waiting request.
func (c *Client) ResolveFullscreen(res FullscreenResultRequest) bool {
	c.mu.Lock()
	ch, ok := c.pending[res.RequestID]
	c.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- res:
		return true
	default:
		return false
	}
}
