package ws

import (
	"context"
	"errors"
	"sync"

	"github.com/golang/glog"
)

// ErrTransportClosed is returned when sending on a closed client.
var ErrTransportClosed = errors.New("transport closed")

// outboxSize bounds the messages queued for a relay peer before it is dropped.
const outboxSize = 256

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}

// Client is one end of a board channel. The relay keeps one per connected
// peer; a board session uses one as its transport.
type Client struct {
	ID     string
	UserID string
	conn   Conn
	mux    *Mux
	outbox chan Envelope
	done   chan struct{}

	mu      sync.Mutex
	boardID int64 // Currently subscribed board
	closed  bool
}

// NewClient creates a new client wrapper.
func NewClient(id, userID string, conn Conn) *Client {
	return &Client{
		ID:     id,
		UserID: userID,
		conn:   conn,
		mux:    NewMux(),
		outbox: make(chan Envelope, outboxSize),
		done:   make(chan struct{}),
	}
}

// Send writes an envelope to the connection.
func (c *Client) Send(ctx context.Context, env Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrTransportClosed
	}

	return c.conn.WriteJSON(env)
}

// Enqueue queues env for WritePump without blocking. It returns false if
// the client is closed or its queue is full.
func (c *Client) Enqueue(env Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.outbox <- env:
		return true
	default:
		return false
	}
}

// WritePump writes queued envelopes in order until the client is closed or
// a write fails.
func (c *Client) WritePump() {
	for {
		select {
		case env := <-c.outbox:
			if err := c.Send(context.Background(), env); err != nil {
				glog.V(1).Infof("[ws] write to %s failed: %v", c.ID, err)
				_ = c.Close()

				return
			}
		case <-c.done:
			return
		}
	}
}

// SendError sends an error message to the client.
func (c *Client) SendError(code, message string) error {
	env, err := NewEnvelope(MessageTypeError, "", "", c.BoardID(), ErrorPayload{
		Code:    code,
		Message: message,
	})
	if err != nil {
		return err
	}

	return c.Send(context.Background(), env)
}

// Receive reads the next envelope from the connection.
func (c *Client) Receive() (Envelope, error) {
	var env Envelope
	if err := c.conn.ReadJSON(&env); err != nil {
		return Envelope{}, err
	}

	return env, nil
}

// Subscribe registers a handler for inbound envelopes.
func (c *Client) Subscribe(h Handler) func() {
	return c.mux.Register(h)
}

// OnFailure registers a handler called once the read loop fails.
func (c *Client) OnFailure(h FailureHandler) func() {
	return c.mux.OnFailure(h)
}

// Run reads envelopes and dispatches them, in delivery order, until the
// connection fails or ctx is done. A read failure that was not caused by
// Close or ctx is reported to the failure handlers and returned.
func (c *Client) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		_ = c.Close()
	})
	defer stop()

	for {
		env, err := c.Receive()
		if err != nil {
			if c.isClosed() {
				return nil
			}

			glog.Infof("[ws] client %s read failed: %v", c.ID, err)
			_ = c.Close()
			c.mux.Fail(err)

			return err
		}

		c.mux.Dispatch(env)
	}
}

// Close closes the client connection. It is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)

	return c.conn.Close()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.closed
}

// BoardID returns the board the client is subscribed to.
func (c *Client) BoardID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.boardID
}

// SetBoardID sets the board the client is subscribed to.
func (c *Client) SetBoardID(boardID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.boardID = boardID
}
