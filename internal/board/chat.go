package board

import "time"

// TransactionStatus tracks whether a chat message has been confirmed by the server.
type TransactionStatus string

// Transaction statuses.
const (
	StatusPending   TransactionStatus = "pending"
	StatusConfirmed TransactionStatus = "confirmed"
)

// ChatMessage is a single message in a board's chat.
// InstanceID is set on locally authored messages and doubles as the
// transaction key until the server assigns ID.
type ChatMessage struct {
	ID                string            `json:"id,omitempty"`
	Content           string            `json:"content"`
	Timestamp         time.Time         `json:"timestamp"`
	SenderEmail       string            `json:"senderEmail"`
	InstanceID        string            `json:"instanceId,omitempty"`
	TransactionStatus TransactionStatus `json:"transactionStatus,omitempty"`
}

// ChatResult describes what reconciling an inbound message did to the log.
type ChatResult int

// Chat reconciliation results.
const (
	// ChatReplaced means a local message was confirmed in place.
	ChatReplaced ChatResult = iota
	// ChatAppended means the message was new and appended.
	ChatAppended
	// ChatDuplicate means the message was already in the log.
	ChatDuplicate
)

// String returns the string representation of the result.
func (r ChatResult) String() string {
	switch r {
	case ChatReplaced:
		return "replaced"
	case ChatAppended:
		return "appended"
	case ChatDuplicate:
		return "duplicate"
	default:
		return "unknown"
	}
}

// ChatLog is the ordered list of chat messages on a board.
//
// ChatLog is not safe for concurrent use; the owning session serializes access.
type ChatLog struct {
	messages []ChatMessage
}

// NewChatLog creates an empty chat log.
func NewChatLog() *ChatLog {
	return &ChatLog{}
}

// Seed replaces the log with confirmed history.
func (l *ChatLog) Seed(history []ChatMessage) {
	l.messages = make([]ChatMessage, 0, len(history))

	for _, m := range history {
		m.TransactionStatus = StatusConfirmed
		l.messages = append(l.messages, m)
	}
}

// AppendPending adds a locally authored message awaiting confirmation.
func (l *ChatLog) AppendPending(m ChatMessage) {
	m.TransactionStatus = StatusPending
	l.messages = append(l.messages, m)
}

// Reconcile merges an inbound message. A local message with the same
// instance id is replaced in place, keeping its position; a message whose
// server id is already known is ignored; anything else is appended.
func (l *ChatLog) Reconcile(in ChatMessage) ChatResult {
	in.TransactionStatus = StatusConfirmed

	if in.InstanceID != "" {
		for i := range l.messages {
			if l.messages[i].InstanceID == in.InstanceID {
				l.messages[i] = in

				return ChatReplaced
			}
		}
	}

	if in.ID != "" {
		for i := range l.messages {
			if l.messages[i].ID == in.ID {
				return ChatDuplicate
			}
		}
	}

	l.messages = append(l.messages, in)

	return ChatAppended
}

// RemovePending drops unconfirmed messages whose instance id is in ids and
// returns how many were removed.
func (l *ChatLog) RemovePending(ids map[string]struct{}) int {
	kept := l.messages[:0]
	removed := 0

	for _, m := range l.messages {
		if _, ok := ids[m.InstanceID]; ok && m.TransactionStatus == StatusPending {
			removed++

			continue
		}

		kept = append(kept, m)
	}

	l.messages = kept

	return removed
}

// Messages returns a copy of the log in order.
func (l *ChatLog) Messages() []ChatMessage {
	result := make([]ChatMessage, len(l.messages))
	copy(result, l.messages)

	return result
}

// Len returns the number of messages in the log.
func (l *ChatLog) Len() int {
	return len(l.messages)
}
