package ws_test

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/serroba/online-board/internal/ws"
)

var errConnLost = errors.New("connection lost")

// mockConn is a test double for ws.Conn.
type mockConn struct {
	mu       sync.Mutex
	messages []ws.Envelope
	closed   bool

	// For ReadJSON simulation; a nil envelope pointer fails the read.
	incoming chan *ws.Envelope
	closing  chan struct{}
	once     sync.Once
}

func newMockConn() *mockConn {
	return &mockConn{
		messages: make([]ws.Envelope, 0),
		incoming: make(chan *ws.Envelope, 10),
		closing:  make(chan struct{}),
	}
}

func (m *mockConn) WriteJSON(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	var env ws.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}

	m.messages = append(m.messages, env)

	return nil
}

func (m *mockConn) ReadJSON(v any) error {
	select {
	case env := <-m.incoming:
		if env == nil {
			return errConnLost
		}

		data, err := json.Marshal(env)
		if err != nil {
			return err
		}

		return json.Unmarshal(data, v)
	case <-m.closing:
		return errors.New("use of closed connection")
	}
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.once.Do(func() { close(m.closing) })

	return nil
}

func (m *mockConn) Messages() []ws.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]ws.Envelope, len(m.messages))
	copy(result, m.messages)

	return result
}

func (m *mockConn) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.closed
}
