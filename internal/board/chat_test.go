package board_test

import (
	"testing"

	"github.com/serroba/online-board/internal/board"
	"github.com/stretchr/testify/require"
)

func TestChatLog_ReconcileReplacesInPlace(t *testing.T) {
	t.Parallel()

	log := board.NewChatLog()
	log.AppendPending(board.ChatMessage{Content: "first", InstanceID: "abc"})
	log.Reconcile(board.ChatMessage{ID: "1", Content: "peer", SenderEmail: "bob@example.com"})

	result := log.Reconcile(board.ChatMessage{ID: "2", Content: "first", InstanceID: "abc"})
	require.Equal(t, board.ChatReplaced, result)

	messages := log.Messages()
	require.Len(t, messages, 2)
	require.Equal(t, "2", messages[0].ID)
	require.Equal(t, board.StatusConfirmed, messages[0].TransactionStatus)
	require.Equal(t, "1", messages[1].ID)
}

func TestChatLog_ReconcileAppendsPeerMessage(t *testing.T) {
	t.Parallel()

	log := board.NewChatLog()

	result := log.Reconcile(board.ChatMessage{ID: "1", Content: "hello"})
	require.Equal(t, board.ChatAppended, result)
	require.Equal(t, 1, log.Len())
	require.Equal(t, board.StatusConfirmed, log.Messages()[0].TransactionStatus)
}

func TestChatLog_ReconcileIgnoresDuplicateID(t *testing.T) {
	t.Parallel()

	log := board.NewChatLog()
	log.Reconcile(board.ChatMessage{ID: "1", Content: "hello"})

	result := log.Reconcile(board.ChatMessage{ID: "1", Content: "hello"})
	require.Equal(t, board.ChatDuplicate, result)
	require.Equal(t, 1, log.Len())
}

func TestChatLog_RemovePending(t *testing.T) {
	t.Parallel()

	log := board.NewChatLog()
	log.Seed([]board.ChatMessage{{ID: "1", Content: "history"}})
	log.AppendPending(board.ChatMessage{Content: "a", InstanceID: "a"})
	log.AppendPending(board.ChatMessage{Content: "b", InstanceID: "b"})
	log.Reconcile(board.ChatMessage{ID: "2", Content: "b", InstanceID: "b"})

	removed := log.RemovePending(map[string]struct{}{"a": {}, "b": {}})
	require.Equal(t, 1, removed)

	messages := log.Messages()
	require.Len(t, messages, 2)
	require.Equal(t, "history", messages[0].Content)
	require.Equal(t, "b", messages[1].Content)
}

func TestChatResult_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "replaced", board.ChatReplaced.String())
	require.Equal(t, "appended", board.ChatAppended.String())
	require.Equal(t, "duplicate", board.ChatDuplicate.String())
	require.Equal(t, "unknown", board.ChatResult(42).String())
}
