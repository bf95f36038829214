package collab

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/serroba/online-board/internal/board"
	"github.com/serroba/online-board/internal/geometry"
	"github.com/serroba/online-board/internal/hit"
	"github.com/serroba/online-board/internal/reconcile"
	"github.com/serroba/online-board/internal/txn"
	"github.com/serroba/online-board/internal/ws"
)

// Common errors.
var (
	ErrSessionClosed         = errors.New("session is closed")
	ErrSessionNotInitialized = errors.New("session is not initialized")
	ErrObjectNotFound        = errors.New("object not found")
)

// Transport carries envelopes to and from the relay for one board.
type Transport interface {
	Send(ctx context.Context, env ws.Envelope) error
	Subscribe(h ws.Handler) func()
	OnFailure(h ws.FailureHandler) func()
}

// HistorySource loads the confirmed state of a board when a session starts.
type HistorySource interface {
	BoardObjects(ctx context.Context, boardID int64) ([]board.ActionPayload, error)
	BoardMessages(ctx context.Context, boardID int64) ([]board.ChatMessage, error)
}

// Notifier surfaces user-visible events.
type Notifier interface {
	// ActionRejected reports a local action refused before it was applied.
	ActionRejected(err error)
	// ConnectionLost reports a rollback of unconfirmed work. It is called
	// once per rollback, never per discarded action.
	ConnectionLost(result RollbackResult)
}

// RollbackResult summarizes what a rollback discarded.
type RollbackResult struct {
	// Discarded is the number of pending transactions dropped.
	Discarded int
	// InstanceIDs lists the discarded transactions in start order.
	InstanceIDs []string
	// Removed counts optimistic adds taken off the board.
	Removed int
	// Reverted counts objects whose local recolor was undone.
	Reverted int
	// Restored counts locally deleted objects put back.
	Restored int
	// ChatRemoved counts unsent chat messages dropped from the log.
	ChatRemoved int
	// Cause is the transport failure that triggered the rollback, if any.
	Cause error
}

type state int

const (
	stateNew state = iota
	stateActive
	stateClosed
)

// Session is one client's view of a board: the object store, the chat log,
// and the transactions still waiting for the relay.
//
// All entry points are serialized by the session mutex. The mutex is
// released before handing an envelope to the transport.
type Session struct {
	boardID   int64
	id        string
	userEmail string

	mu          sync.Mutex
	state       state
	objects     *board.Store
	chat        *board.ChatLog
	pending     *txn.Registry
	engine      *reconcile.Engine
	unsubscribe []func()
	cancel      context.CancelFunc

	// Dependencies
	transport Transport
	history   HistorySource
	notifier  Notifier
	maxBytes  int
	now       func() time.Time
}

// SessionConfig holds configuration for creating a session.
type SessionConfig struct {
	BoardID int64
	// SessionID identifies this client as a sender. Defaults to a fresh id.
	SessionID string
	UserEmail string

	Transport Transport
	History   HistorySource
	Notifier  Notifier
	Refetcher reconcile.Refetcher
	// OnCommit is called for every transaction the relay confirms.
	OnCommit func(txn.Transaction)

	// MaxMessageBytes bounds a serialized outbound message.
	MaxMessageBytes int
}

// NewSession creates a board session. Call Init before use.
func NewSession(cfg SessionConfig) *Session {
	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = txn.NewInstanceID()
	}

	maxBytes := cfg.MaxMessageBytes
	if maxBytes <= 0 {
		maxBytes = ws.DefaultMaxMessageBytes
	}

	s := &Session{
		boardID:   cfg.BoardID,
		id:        sessionID,
		userEmail: cfg.UserEmail,
		objects:   board.NewStore(),
		chat:      board.NewChatLog(),
		pending:   txn.NewRegistry(),
		transport: cfg.Transport,
		history:   cfg.History,
		notifier:  cfg.Notifier,
		maxBytes:  maxBytes,
		now:       time.Now,
	}

	s.engine = reconcile.New(reconcile.Config{
		SessionID: sessionID,
		UserEmail: cfg.UserEmail,
		Objects:   s.objects,
		Chat:      s.chat,
		Pending:   s.pending,
		Refetcher: cfg.Refetcher,
		OnCommit:  cfg.OnCommit,
	})

	return s
}

// ID returns the sender id this session stamps on outbound messages.
func (s *Session) ID() string {
	return s.id
}

// BoardID returns the board this session is attached to.
func (s *Session) BoardID() int64 {
	return s.boardID
}

// Init seeds the session from history and registers its message and
// failure handlers on the transport. Calling Init on an active session does nothing.
func (s *Session) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateClosed:
		return ErrSessionClosed
	case stateActive:
		return nil
	case stateNew:
	}

	if s.history != nil {
		objects, err := s.history.BoardObjects(ctx, s.boardID)
		if err != nil {
			return fmt.Errorf("load board %d objects: %w", s.boardID, err)
		}

		messages, err := s.history.BoardMessages(ctx, s.boardID)
		if err != nil {
			return fmt.Errorf("load board %d messages: %w", s.boardID, err)
		}

		// History replays through the same path as incremental adds.
		s.objects.Seed(nil)

		for _, obj := range objects {
			if err := obj.Validate(); err != nil {
				glog.Warningf("[collab] board %d: skipping history object %s: %v", s.boardID, obj.InstanceID, err)

				continue
			}

			s.objects.Add(obj)
		}

		s.chat.Seed(messages)
	}

	handlerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	if s.transport != nil {
		s.unsubscribe = append(s.unsubscribe,
			s.transport.Subscribe(func(env ws.Envelope) {
				_, _ = s.HandleEnvelope(handlerCtx, env)
			}),
			s.transport.OnFailure(func(err error) {
				s.rollback(err)
			}),
		)
	}

	s.state = stateActive

	glog.Infof("[collab] session %s joined board %d with %d objects and %d messages",
		s.id, s.boardID, s.objects.Len(), s.chat.Len())

	return nil
}

// Teardown unregisters the session from its transport. Pending transactions
// are left as they are. Calling Teardown more than once is safe.
func (s *Session) Teardown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateClosed {
		return nil
	}

	for _, unsubscribe := range s.unsubscribe {
		unsubscribe()
	}

	s.unsubscribe = nil

	if s.cancel != nil {
		s.cancel()
	}

	s.state = stateClosed

	glog.Infof("[collab] session %s left board %d", s.id, s.boardID)

	return nil
}

// checkActive must be called with mu held.
func (s *Session) checkActive() error {
	switch s.state {
	case stateNew:
		return ErrSessionNotInitialized
	case stateClosed:
		return ErrSessionClosed
	default:
		return nil
	}
}

// envelope builds an outbound message and checks its size. Must be called
// with mu held, before any state is touched.
func (s *Session) envelope(msgType ws.MessageType, instanceID string, payload any) (ws.Envelope, error) {
	env, err := ws.NewEnvelope(msgType, instanceID, s.id, s.boardID, payload)
	if err != nil {
		return ws.Envelope{}, err
	}

	if _, err := ws.CheckSize(env, s.maxBytes); err != nil {
		if s.notifier != nil {
			s.notifier.ActionRejected(err)
		}

		return ws.Envelope{}, err
	}

	return env, nil
}

// send hands env to the transport. Must be called without mu held.
// A send failure rolls back every pending transaction.
func (s *Session) send(ctx context.Context, env ws.Envelope) error {
	if s.transport == nil {
		return nil
	}

	if err := s.transport.Send(ctx, env); err != nil {
		s.rollback(err)

		return fmt.Errorf("send %s: %w", env.Type, err)
	}

	return nil
}

// Draw adds a new object to the board. The object is assigned a fresh
// instance id, shown immediately, and sent to the relay.
func (s *Session) Draw(ctx context.Context, action board.ActionPayload) (board.ActionPayload, error) {
	s.mu.Lock()

	if err := s.checkActive(); err != nil {
		s.mu.Unlock()

		return board.ActionPayload{}, err
	}

	action = action.Clone()
	action.InstanceID = txn.NewInstanceID()

	if err := action.Validate(); err != nil {
		s.mu.Unlock()

		return board.ActionPayload{}, err
	}

	env, err := s.envelope(ws.MessageTypeObjectAdd, action.InstanceID, action)
	if err != nil {
		s.mu.Unlock()

		return board.ActionPayload{}, err
	}

	if _, err := s.pending.BeginAction(txn.KindDrawAdd, action); err != nil {
		s.mu.Unlock()

		return board.ActionPayload{}, err
	}

	s.objects.AddPending(action)
	s.mu.Unlock()

	if err := s.send(ctx, env); err != nil {
		return action, err
	}

	return action, nil
}

// Delete removes an object from the board and sends the deletion to the relay.
func (s *Session) Delete(ctx context.Context, instanceID string) error {
	s.mu.Lock()

	if err := s.checkActive(); err != nil {
		s.mu.Unlock()

		return err
	}

	obj, ok := s.objects.Get(instanceID)
	if !ok {
		s.mu.Unlock()

		return fmt.Errorf("%w: %s", ErrObjectNotFound, instanceID)
	}

	env, err := s.envelope(ws.MessageTypeObjectDelete, instanceID, obj)
	if err != nil {
		s.mu.Unlock()

		return err
	}

	tx, pending := s.pending.Get(instanceID)

	switch {
	case pending && tx.Kind == txn.KindDrawAdd:
		// The add is still in flight; its transaction now also covers the
		// delete, and rolling it back removes nothing further.
	default:
		if pending {
			s.pending.Commit(instanceID)
		}

		if _, err := s.pending.BeginAction(txn.KindDrawDelete, obj); err != nil {
			s.mu.Unlock()

			return err
		}
	}

	s.objects.Remove(instanceID)
	s.mu.Unlock()

	return s.send(ctx, env)
}

// Recolor resolves a recolor click at point and, when it hits something,
// applies the new color locally and sends the update to the relay.
func (s *Session) Recolor(
	ctx context.Context, point geometry.Point, canvas geometry.Canvas, color string,
) (hit.RecolorAction, error) {
	s.mu.Lock()

	if err := s.checkActive(); err != nil {
		s.mu.Unlock()

		return hit.RecolorAction{}, err
	}

	action := hit.ProcessRecolorClick(point, s.objects.Objects(), canvas, color, s.id)
	if !action.ShouldPerformAction {
		s.mu.Unlock()

		return action, nil
	}

	env, err := s.envelope(action.Type, action.InstanceID, action.Payload)
	if err != nil {
		s.mu.Unlock()

		return action, err
	}

	tx, pending := s.pending.Get(action.InstanceID)

	switch {
	case !pending:
		if _, err := s.pending.BeginAction(txn.KindDrawUpdate, action.Payload); err != nil {
			s.mu.Unlock()

			return action, err
		}
	case tx.Kind == txn.KindDrawUpdate:
		// Only the newest color's echo confirms the object.
		s.pending.Amend(action.InstanceID, txn.KindDrawUpdate, action.Payload)
	default:
		// The add is still in flight. Rolling it back removes the object,
		// overlay included; confirming it keeps the overlay pending.
	}

	s.objects.Propose(action.Payload)
	s.mu.Unlock()

	return action, s.send(ctx, env)
}

// SendChat appends a pending chat message and sends it to the relay.
func (s *Session) SendChat(ctx context.Context, content string) (board.ChatMessage, error) {
	s.mu.Lock()

	if err := s.checkActive(); err != nil {
		s.mu.Unlock()

		return board.ChatMessage{}, err
	}

	msg := board.ChatMessage{
		Content:     content,
		Timestamp:   s.now().UTC(),
		SenderEmail: s.userEmail,
		InstanceID:  txn.NewInstanceID(),
	}

	env, err := s.envelope(ws.MessageTypeChat, msg.InstanceID, msg)
	if err != nil {
		s.mu.Unlock()

		return board.ChatMessage{}, err
	}

	if _, err := s.pending.BeginChat(msg); err != nil {
		s.mu.Unlock()

		return board.ChatMessage{}, err
	}

	s.chat.AppendPending(msg)
	s.mu.Unlock()

	msg.TransactionStatus = board.StatusPending

	return msg, s.send(ctx, env)
}

// HandleEnvelope reconciles one inbound message.
func (s *Session) HandleEnvelope(ctx context.Context, env ws.Envelope) (reconcile.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActive(); err != nil {
		return reconcile.Outcome{Type: env.Type}, err
	}

	if env.BoardID != 0 && env.BoardID != s.boardID {
		glog.V(1).Infof("[collab] session %s ignoring %s for board %d", s.id, env.Type, env.BoardID)

		return reconcile.Outcome{Type: env.Type}, nil
	}

	return s.engine.Handle(ctx, env)
}

// Rollback discards every pending transaction in one step and notifies the
// user once. With nothing pending it does nothing.
func (s *Session) Rollback() RollbackResult {
	return s.rollback(nil)
}

func (s *Session) rollback(cause error) RollbackResult {
	s.mu.Lock()

	txs := s.pending.Drain()
	if len(txs) == 0 {
		s.mu.Unlock()

		return RollbackResult{Cause: cause}
	}

	result := RollbackResult{
		Discarded:   len(txs),
		InstanceIDs: make([]string, 0, len(txs)),
		Cause:       cause,
	}

	remove := make(map[string]struct{})
	revert := make(map[string]struct{})
	chatIDs := make(map[string]struct{})

	var restore []board.ActionPayload

	for _, tx := range txs {
		result.InstanceIDs = append(result.InstanceIDs, tx.InstanceID)

		switch tx.Kind {
		case txn.KindDrawAdd:
			remove[tx.InstanceID] = struct{}{}
		case txn.KindDrawUpdate:
			revert[tx.InstanceID] = struct{}{}
		case txn.KindDrawDelete:
			if tx.Action != nil {
				restore = append(restore, *tx.Action)
			}
		case txn.KindChat:
			chatIDs[tx.InstanceID] = struct{}{}
		}
	}

	result.Removed, result.Reverted = s.objects.Rollback(remove, revert)

	for _, obj := range restore {
		if s.objects.Add(obj) {
			result.Restored++
		}
	}

	result.ChatRemoved = s.chat.RemovePending(chatIDs)
	s.mu.Unlock()

	glog.Infof("[collab] session %s rolled back %d pending transactions on board %d: %v",
		s.id, result.Discarded, s.boardID, cause)

	if s.notifier != nil {
		s.notifier.ConnectionLost(result)
	}

	return result
}

// Objects returns the visible objects in z-order.
func (s *Session) Objects() []board.ActionPayload {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.objects.Objects()
}

// Messages returns the chat log in order.
func (s *Session) Messages() []board.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.chat.Messages()
}

// PendingCount returns the number of transactions waiting for the relay.
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pending.Len()
}

// IsPending reports whether instanceID has an unconfirmed transaction.
func (s *Session) IsPending(instanceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.pending.Pending(instanceID)
}
