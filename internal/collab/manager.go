package collab

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/serroba/online-board/internal/reconcile"
	"github.com/serroba/online-board/internal/txn"
)

// TransportFactory opens the transport a board session talks through.
type TransportFactory func(ctx context.Context, boardID int64) (Transport, error)

// managed is a session plus the transport the manager opened for it.
type managed struct {
	session   *Session
	transport Transport
}

// Manager manages independent board sessions, one per open board.
// Sessions share nothing but their configuration.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]*managed
	closed   bool

	// Shared dependencies
	transports      TransportFactory
	history         HistorySource
	notifier        Notifier
	refetcher       reconcile.Refetcher
	onCommit        func(boardID int64, tx txn.Transaction)
	userEmail       string
	maxMessageBytes int
}

// ManagerConfig holds configuration for creating a manager.
type ManagerConfig struct {
	Transports TransportFactory
	History    HistorySource
	Notifier   Notifier
	Refetcher  reconcile.Refetcher
	// OnCommit is called for every transaction the relay confirms on any board.
	OnCommit        func(boardID int64, tx txn.Transaction)
	UserEmail       string
	MaxMessageBytes int
}

// NewManager creates a new session manager.
func NewManager(cfg ManagerConfig) *Manager {
	return &Manager{
		sessions:        make(map[int64]*managed),
		transports:      cfg.Transports,
		history:         cfg.History,
		notifier:        cfg.Notifier,
		refetcher:       cfg.Refetcher,
		onCommit:        cfg.OnCommit,
		userEmail:       cfg.UserEmail,
		maxMessageBytes: cfg.MaxMessageBytes,
	}
}

// Open returns the session for boardID, creating and initializing it if needed.
func (m *Manager) Open(ctx context.Context, boardID int64) (*Session, error) {
	// Try read lock first
	m.mu.RLock()
	entry, exists := m.sessions[boardID]
	m.mu.RUnlock()

	if exists {
		return entry.session, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrSessionClosed
	}

	// Double-check after acquiring write lock
	if entry, exists = m.sessions[boardID]; exists {
		return entry.session, nil
	}

	var transport Transport

	if m.transports != nil {
		t, err := m.transports(ctx, boardID)
		if err != nil {
			return nil, fmt.Errorf("open transport for board %d: %w", boardID, err)
		}

		transport = t
	}

	var onCommit func(txn.Transaction)
	if m.onCommit != nil {
		onCommit = func(tx txn.Transaction) { m.onCommit(boardID, tx) }
	}

	session := NewSession(SessionConfig{
		BoardID:         boardID,
		UserEmail:       m.userEmail,
		Transport:       transport,
		History:         m.history,
		Notifier:        m.notifier,
		Refetcher:       m.refetcher,
		OnCommit:        onCommit,
		MaxMessageBytes: m.maxMessageBytes,
	})

	if err := session.Init(ctx); err != nil {
		return nil, errors.Join(err, closeTransport(transport))
	}

	m.sessions[boardID] = &managed{session: session, transport: transport}

	return session, nil
}

// Get returns an open session or nil if the board is not open.
func (m *Manager) Get(boardID int64) *Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[boardID]
	if !ok {
		return nil
	}

	return entry.session
}

// Close tears down and removes a session.
func (m *Manager) Close(boardID int64) error {
	m.mu.Lock()
	entry, exists := m.sessions[boardID]

	if !exists {
		m.mu.Unlock()

		return nil
	}

	delete(m.sessions, boardID)
	m.mu.Unlock()

	return entry.close()
}

// CloseAll tears down every session. Open fails afterwards.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	entries := make([]*managed, 0, len(m.sessions))

	for _, e := range m.sessions {
		entries = append(entries, e)
	}

	m.sessions = make(map[int64]*managed)
	m.closed = true
	m.mu.Unlock()

	var errs []error

	for _, e := range entries {
		if err := e.close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// SessionCount returns the number of open sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

func (e *managed) close() error {
	return errors.Join(e.session.Teardown(), closeTransport(e.transport))
}

func closeTransport(t Transport) error {
	if c, ok := t.(io.Closer); ok {
		return c.Close()
	}

	return nil
}
