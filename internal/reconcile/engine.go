// Package reconcile merges inbound board messages into the local object
// store and chat log, confirming pending local transactions as their echoes
// arrive.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/glog"
	"github.com/serroba/online-board/internal/board"
	"github.com/serroba/online-board/internal/txn"
	"github.com/serroba/online-board/internal/ws"
)

// Common errors.
var (
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrMalformedPayload   = errors.New("malformed payload")
)

// Resource names something a notification asks the client to reload.
type Resource string

// Refetchable resources.
const (
	ResourceBoard   Resource = "board"
	ResourceMembers Resource = "members"
	ResourceBoards  Resource = "boards"
	ResourceProfile Resource = "profile"
)

// Refetcher reloads a resource named by a notification.
type Refetcher interface {
	Refetch(ctx context.Context, resource Resource)
}

// Outcome describes what handling one message did.
type Outcome struct {
	Type       ws.MessageType
	InstanceID string
	// Applied is true when the store or chat log changed.
	Applied bool
	// Committed is true when a pending transaction was confirmed.
	Committed bool
	// Refetch names the resource a notification asked to reload, if any.
	Refetch Resource
}

// Config holds the state an engine reconciles into.
type Config struct {
	// SessionID identifies this client as a sender; own echoes carry it.
	SessionID string
	// UserEmail suppresses notifications caused by this user.
	UserEmail string
	Objects   *board.Store
	Chat      *board.ChatLog
	Pending   *txn.Registry
	Refetcher Refetcher
	// OnCommit is called after a transaction is confirmed and the store updated.
	OnCommit func(txn.Transaction)
}

// Engine applies inbound messages in the order they are handed to it.
//
// Engine is not safe for concurrent use; the owning session serializes access.
type Engine struct {
	sessionID string
	userEmail string
	objects   *board.Store
	chat      *board.ChatLog
	pending   *txn.Registry
	refetcher Refetcher
	onCommit  func(txn.Transaction)
}

// New creates a reconciliation engine.
func New(cfg Config) *Engine {
	return &Engine{
		sessionID: cfg.SessionID,
		userEmail: cfg.UserEmail,
		objects:   cfg.Objects,
		chat:      cfg.Chat,
		pending:   cfg.Pending,
		refetcher: cfg.Refetcher,
		onCommit:  cfg.OnCommit,
	}
}

// Handle reconciles one inbound message. Errors describe a dropped message;
// the engine stays usable for the next one.
func (e *Engine) Handle(ctx context.Context, env ws.Envelope) (Outcome, error) {
	glog.V(2).Infof("[reconcile] %s %s from %s", env.Type, env.InstanceID, env.Sender)

	switch env.Type {
	case ws.MessageTypeObjectAdd:
		return e.handleAdd(env)
	case ws.MessageTypeObjectDelete:
		return e.handleDelete(env)
	case ws.MessageTypeObjectUpdate:
		return e.handleUpdate(env)
	case ws.MessageTypeChat:
		return e.handleChat(env)
	case ws.MessageTypeBoardUpdate:
		return e.handleBoardUpdate(ctx, env)
	case ws.MessageTypeUserUpdate:
		return e.handleUserUpdate(ctx, env)
	case ws.MessageTypeError:
		var payload ws.ErrorPayload
		if err := env.Decode(&payload); err == nil {
			glog.Warningf("[reconcile] relay error %s: %s", payload.Code, payload.Message)
		}

		return Outcome{Type: env.Type}, nil
	default:
		glog.Warningf("[reconcile] dropping message with unknown type %q", env.Type)

		return Outcome{Type: env.Type}, fmt.Errorf("%w: %q", ErrUnknownMessageType, env.Type)
	}
}

// decodeAction reads the action payload. The envelope's instance id wins
// over the payload's.
func decodeAction(env ws.Envelope) (board.ActionPayload, error) {
	var p board.ActionPayload
	if err := env.Decode(&p); err != nil {
		return board.ActionPayload{}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	if env.InstanceID != "" {
		p.InstanceID = env.InstanceID
	}

	if p.InstanceID == "" {
		return board.ActionPayload{}, fmt.Errorf("%w: %s without instance id", ErrMalformedPayload, env.Type)
	}

	return p, nil
}

func (e *Engine) handleAdd(env ws.Envelope) (Outcome, error) {
	p, err := decodeAction(env)
	if err != nil {
		glog.Warningf("[reconcile] dropping %s: %v", env.Type, err)

		return Outcome{Type: env.Type}, err
	}

	if err := p.Validate(); err != nil {
		glog.Warningf("[reconcile] dropping %s %s: %v", env.Type, p.InstanceID, err)

		return Outcome{Type: env.Type, InstanceID: p.InstanceID}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	out := Outcome{Type: env.Type, InstanceID: p.InstanceID}

	tx, pending := e.pending.Get(p.InstanceID)
	if env.Sender != e.sessionID || !pending || tx.Kind != txn.KindDrawAdd {
		// A peer's add, a repeated echo, or an add the relay accepted after
		// it was rolled back locally. Add ignores objects already present.
		out.Applied = e.objects.Add(p)

		return out, nil
	}

	if !e.objects.ConfirmAdd(p) || !e.objects.IsPending(p.InstanceID) {
		// Either deleted locally before the relay confirmed the add, or
		// confirmed with nothing newer on top.
		out.Committed = e.commit(p.InstanceID, txn.KindDrawAdd)

		return out, nil
	}

	// Recolored while the add was in flight: the add is confirmed and the
	// transaction now waits for the update's echo.
	current, _ := e.objects.Get(p.InstanceID)
	e.pending.Amend(p.InstanceID, txn.KindDrawUpdate, current)
	e.notifyCommit(tx)

	out.Committed = true

	return out, nil
}

func (e *Engine) handleDelete(env ws.Envelope) (Outcome, error) {
	id := env.InstanceID

	if id == "" {
		p, err := decodeAction(env)
		if err != nil {
			glog.Warningf("[reconcile] dropping %s: %v", env.Type, err)

			return Outcome{Type: env.Type}, err
		}

		id = p.InstanceID
	}

	out := Outcome{Type: env.Type, InstanceID: id}
	out.Applied = e.objects.Remove(id)
	out.Committed = e.commit(id, txn.KindDrawDelete)

	return out, nil
}

func (e *Engine) handleUpdate(env ws.Envelope) (Outcome, error) {
	p, err := decodeAction(env)
	if err != nil {
		glog.Warningf("[reconcile] dropping %s: %v", env.Type, err)

		return Outcome{Type: env.Type}, err
	}

	out := Outcome{Type: env.Type, InstanceID: p.InstanceID}

	tx, pending := e.pending.Get(p.InstanceID)
	if env.Sender == e.sessionID && pending && tx.Kind == txn.KindDrawUpdate && tx.Action.Equal(p) {
		out.Applied = e.objects.Commit(p)
		out.Committed = e.commit(p.InstanceID, txn.KindDrawUpdate)

		return out, nil
	}

	// A peer's update, or an echo of our own superseded one, lands under any
	// local overlay; arrival order decides which write is last.
	out.Applied = e.objects.Update(p)
	if !out.Applied {
		glog.V(1).Infof("[reconcile] update for unknown object %s ignored", p.InstanceID)
	}

	return out, nil
}

func (e *Engine) handleChat(env ws.Envelope) (Outcome, error) {
	var msg board.ChatMessage
	if err := env.Decode(&msg); err != nil {
		glog.Warningf("[reconcile] dropping %s: %v", env.Type, err)

		return Outcome{Type: env.Type}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	if env.InstanceID != "" {
		msg.InstanceID = env.InstanceID
	}

	result := e.chat.Reconcile(msg)
	out := Outcome{
		Type:       env.Type,
		InstanceID: msg.InstanceID,
		Applied:    result != board.ChatDuplicate,
	}

	// Commit only after the log holds the confirmed message.
	if msg.InstanceID != "" {
		out.Committed = e.commit(msg.InstanceID, txn.KindChat)
	}

	return out, nil
}

func (e *Engine) handleBoardUpdate(ctx context.Context, env ws.Envelope) (Outcome, error) {
	var payload ws.BoardUpdatePayload
	if err := env.Decode(&payload); err != nil {
		glog.Warningf("[reconcile] dropping %s: %v", env.Type, err)

		return Outcome{Type: env.Type}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	if e.userEmail != "" && payload.SourceUserEmail == e.userEmail {
		return Outcome{Type: env.Type}, nil
	}

	var resource Resource

	switch payload.UpdateType {
	case ws.BoardUpdateMembers:
		resource = ResourceMembers
	case ws.BoardUpdateDetails:
		resource = ResourceBoard
	case ws.BoardUpdateDeleted:
		resource = ResourceBoards
	default:
		glog.Warningf("[reconcile] unknown board update %q", payload.UpdateType)

		return Outcome{Type: env.Type}, fmt.Errorf("%w: board update %q", ErrUnknownMessageType, payload.UpdateType)
	}

	return e.refetch(ctx, env.Type, resource), nil
}

func (e *Engine) handleUserUpdate(ctx context.Context, env ws.Envelope) (Outcome, error) {
	var payload ws.UserUpdatePayload
	if err := env.Decode(&payload); err != nil {
		glog.Warningf("[reconcile] dropping %s: %v", env.Type, err)

		return Outcome{Type: env.Type}, fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}

	var resource Resource

	switch payload.UpdateType {
	case ws.UserUpdateBoards:
		resource = ResourceBoards
	case ws.UserUpdateProfile:
		resource = ResourceProfile
	default:
		glog.Warningf("[reconcile] unknown user update %q", payload.UpdateType)

		return Outcome{Type: env.Type}, fmt.Errorf("%w: user update %q", ErrUnknownMessageType, payload.UpdateType)
	}

	return e.refetch(ctx, env.Type, resource), nil
}

func (e *Engine) refetch(ctx context.Context, msgType ws.MessageType, resource Resource) Outcome {
	if e.refetcher != nil {
		e.refetcher.Refetch(ctx, resource)
	}

	return Outcome{Type: msgType, Refetch: resource}
}

// commit confirms instanceID if a transaction of the given kind is pending
// for it and reports whether one was.
func (e *Engine) commit(instanceID string, kind txn.Kind) bool {
	if tx, ok := e.pending.Get(instanceID); !ok || tx.Kind != kind {
		return false
	}

	tx, _ := e.pending.Commit(instanceID)
	e.notifyCommit(tx)

	return true
}

func (e *Engine) notifyCommit(tx txn.Transaction) {
	if e.onCommit != nil {
		e.onCommit(tx)
	}
}
