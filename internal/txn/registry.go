// Package txn tracks locally initiated board mutations from the moment they
// are applied optimistically until the server confirms them or the
// connection fails.
package txn

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/serroba/online-board/internal/board"
)

// ErrDuplicateTransaction is returned when an instance id is already pending.
var ErrDuplicateTransaction = errors.New("transaction already pending")

// Kind is the type of local mutation a transaction tracks.
type Kind string

// Transaction kinds.
const (
	KindDrawAdd    Kind = "draw-add"
	KindDrawDelete Kind = "draw-delete"
	KindDrawUpdate Kind = "draw-update"
	KindChat       Kind = "chat"
)

// Transaction is a pending local mutation. Exactly one of Action or Chat is
// set, depending on Kind.
type Transaction struct {
	InstanceID string
	Kind       Kind
	Action     *board.ActionPayload
	Chat       *board.ChatMessage
	StartedAt  time.Time
}

// NewInstanceID returns a fresh 128-bit random identifier.
func NewInstanceID() string {
	return uuid.NewString()
}

// Registry is the map of pending transactions keyed by instance id.
//
// Registry is not safe for concurrent use; the owning session serializes access.
type Registry struct {
	pending map[string]Transaction
	order   []string
	now     func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		pending: make(map[string]Transaction),
		now:     time.Now,
	}
}

// BeginAction registers a drawing transaction.
func (r *Registry) BeginAction(kind Kind, action board.ActionPayload) (Transaction, error) {
	a := action.Clone()

	return r.begin(Transaction{InstanceID: action.InstanceID, Kind: kind, Action: &a})
}

// BeginChat registers a chat transaction keyed by the message's instance id.
func (r *Registry) BeginChat(msg board.ChatMessage) (Transaction, error) {
	return r.begin(Transaction{InstanceID: msg.InstanceID, Kind: KindChat, Chat: &msg})
}

func (r *Registry) begin(tx Transaction) (Transaction, error) {
	if tx.InstanceID == "" {
		return Transaction{}, fmt.Errorf("%w: empty instance id", board.ErrInvalidPayload)
	}

	if _, exists := r.pending[tx.InstanceID]; exists {
		return Transaction{}, fmt.Errorf("%w: %s", ErrDuplicateTransaction, tx.InstanceID)
	}

	tx.StartedAt = r.now()
	r.pending[tx.InstanceID] = tx
	r.order = append(r.order, tx.InstanceID)

	return tx, nil
}

// Commit removes a confirmed transaction. It returns the transaction and
// whether it was pending.
func (r *Registry) Commit(instanceID string) (Transaction, bool) {
	tx, ok := r.pending[instanceID]
	if !ok {
		return Transaction{}, false
	}

	delete(r.pending, instanceID)

	for i, id := range r.order {
		if id == instanceID {
			r.order = append(r.order[:i], r.order[i+1:]...)

			break
		}
	}

	return tx, true
}

// Amend replaces the kind and payload of a pending transaction. The
// transaction keeps its start time and its place in start order. It returns
// false if instanceID is not pending.
func (r *Registry) Amend(instanceID string, kind Kind, action board.ActionPayload) (Transaction, bool) {
	tx, ok := r.pending[instanceID]
	if !ok {
		return Transaction{}, false
	}

	a := action.Clone()
	tx.Kind = kind
	tx.Action = &a
	r.pending[instanceID] = tx

	return tx, true
}

// Get returns a pending transaction.
func (r *Registry) Get(instanceID string) (Transaction, bool) {
	tx, ok := r.pending[instanceID]

	return tx, ok
}

// Pending reports whether instanceID is awaiting confirmation.
func (r *Registry) Pending(instanceID string) bool {
	_, ok := r.pending[instanceID]

	return ok
}

// Len returns the number of pending transactions.
func (r *Registry) Len() int {
	return len(r.pending)
}

// IDs returns the pending instance ids in the order they were started.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)

	return ids
}

// Drain removes and returns every pending transaction in start order.
func (r *Registry) Drain() []Transaction {
	txs := make([]Transaction, 0, len(r.order))

	for _, id := range r.order {
		txs = append(txs, r.pending[id])
	}

	r.pending = make(map[string]Transaction)
	r.order = nil

	return txs
}
