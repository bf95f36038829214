// Package natsbus carries board envelopes over NATS subjects, one subject
// per board. Every subscriber, the publisher included, receives each
// envelope, so a client's own publication doubles as its confirmation.
package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/nats-io/nats.go"
	"github.com/serroba/online-board/internal/ws"
)

// ErrDisconnected is reported when the connection drops without an error.
var ErrDisconnected = errors.New("nats connection lost")

// Subject returns the subject a board's envelopes are published on.
func Subject(boardID int64) string {
	return fmt.Sprintf("board.%d.actions", boardID)
}

// Conn is the part of a NATS connection the transport needs.
type Conn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte)) (unsubscribe func() error, err error)
	Close()
}

// Options configures a NATS connection.
type Options struct {
	Name          string
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultOptions returns the connection options used by the CLI.
func DefaultOptions() Options {
	return Options{
		Name:          "online-board",
		MaxReconnects: 5,
		ReconnectWait: 2 * time.Second,
	}
}

// Transport publishes and receives the envelopes of a single board.
type Transport struct {
	boardID int64
	subject string
	conn    Conn
	mux     *ws.Mux

	mu          sync.Mutex
	unsubscribe func() error
	closed      bool
}

// New creates a transport for boardID over conn and subscribes to the
// board's subject.
func New(conn Conn, boardID int64) (*Transport, error) {
	t := &Transport{
		boardID: boardID,
		subject: Subject(boardID),
		conn:    conn,
		mux:     ws.NewMux(),
	}

	if err := t.subscribe(); err != nil {
		return nil, err
	}

	return t, nil
}

// Connect dials url and returns a transport for boardID. A dropped
// connection is reported to the transport's failure handlers.
func Connect(url string, boardID int64, opts Options) (*Transport, error) {
	t := &Transport{
		boardID: boardID,
		subject: Subject(boardID),
		mux:     ws.NewMux(),
	}

	nc, err := nats.Connect(url,
		nats.Name(opts.Name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(opts.MaxReconnects),
		nats.ReconnectWait(opts.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			t.Disconnected(err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			glog.Infof("[natsbus] reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	t.conn = &natsConn{nc: nc}

	if err := t.subscribe(); err != nil {
		nc.Close()

		return nil, err
	}

	glog.Infof("[natsbus] subscribed to %s", t.subject)

	return t, nil
}

func (t *Transport) subscribe() error {
	unsubscribe, err := t.conn.Subscribe(t.subject, t.receive)
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", t.subject, err)
	}

	t.mu.Lock()
	t.unsubscribe = unsubscribe
	t.mu.Unlock()

	return nil
}

func (t *Transport) receive(data []byte) {
	var env ws.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		glog.Warningf("[natsbus] dropping undecodable message on %s: %v", t.subject, err)

		return
	}

	if env.BoardID == 0 {
		env.BoardID = t.boardID
	}

	t.mux.Dispatch(env)
}

// Send publishes env on the board's subject.
func (t *Transport) Send(ctx context.Context, env ws.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()

	if closed {
		return ws.ErrTransportClosed
	}

	env.BoardID = t.boardID

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Type, err)
	}

	if err := t.conn.Publish(t.subject, data); err != nil {
		return fmt.Errorf("publish to %s: %w", t.subject, err)
	}

	return nil
}

// Subscribe registers a handler for inbound envelopes.
func (t *Transport) Subscribe(h ws.Handler) func() {
	return t.mux.Register(h)
}

// OnFailure registers a handler for connection loss.
func (t *Transport) OnFailure(h ws.FailureHandler) func() {
	return t.mux.OnFailure(h)
}

// Disconnected reports a lost connection to the failure handlers.
// It is ignored once the transport is closed.
func (t *Transport) Disconnected(err error) {
	t.mu.Lock()
	closed := t.closed
	t.mu.Unlock()

	if closed {
		return
	}

	if err == nil {
		err = ErrDisconnected
	}

	glog.Warningf("[natsbus] %s: %v", t.subject, err)
	t.mux.Fail(err)
}

// Close unsubscribes and closes the connection.
func (t *Transport) Close() error {
	t.mu.Lock()

	if t.closed {
		t.mu.Unlock()

		return nil
	}

	t.closed = true
	unsubscribe := t.unsubscribe
	t.mu.Unlock()

	var err error
	if unsubscribe != nil {
		err = unsubscribe()
	}

	t.conn.Close()

	return err
}

// natsConn adapts *nats.Conn to Conn.
type natsConn struct {
	nc *nats.Conn
}

func (c *natsConn) Publish(subject string, data []byte) error {
	return c.nc.Publish(subject, data)
}

func (c *natsConn) Subscribe(subject string, handler func(data []byte)) (func() error, error) {
	sub, err := c.nc.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, err
	}

	return sub.Unsubscribe, nil
}

func (c *natsConn) Close() {
	c.nc.Close()
}
