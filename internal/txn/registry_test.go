package txn_test

import (
	"errors"
	"testing"

	"github.com/serroba/online-board/internal/board"
	"github.com/serroba/online-board/internal/geometry"
	"github.com/serroba/online-board/internal/txn"
	"github.com/stretchr/testify/require"
)

func action(id string) board.ActionPayload {
	return board.ActionPayload{Tool: board.ToolCircle, InstanceID: id, Radius: 0.1}
}

func TestNewInstanceID_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})

	for range 1000 {
		id := txn.NewInstanceID()
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate instance id %s", id)
		}

		seen[id] = struct{}{}
	}
}

func TestRegistry_BeginCommit(t *testing.T) {
	t.Parallel()

	r := txn.NewRegistry()

	tx, err := r.BeginAction(txn.KindDrawAdd, action("a"))
	require.NoError(t, err)
	require.Equal(t, txn.KindDrawAdd, tx.Kind)
	require.False(t, tx.StartedAt.IsZero())
	require.True(t, r.Pending("a"))

	committed, ok := r.Commit("a")
	require.True(t, ok)
	require.Equal(t, "a", committed.Action.InstanceID)
	require.False(t, r.Pending("a"))

	_, ok = r.Commit("a")
	require.False(t, ok)
}

func TestRegistry_BeginDuplicate(t *testing.T) {
	t.Parallel()

	r := txn.NewRegistry()

	_, err := r.BeginAction(txn.KindDrawAdd, action("a"))
	require.NoError(t, err)

	_, err = r.BeginAction(txn.KindDrawUpdate, action("a"))
	if !errors.Is(err, txn.ErrDuplicateTransaction) {
		t.Errorf("expected ErrDuplicateTransaction, got %v", err)
	}

	tx, _ := r.Get("a")
	require.Equal(t, txn.KindDrawAdd, tx.Kind)
}

func TestRegistry_BeginEmptyID(t *testing.T) {
	t.Parallel()

	r := txn.NewRegistry()

	_, err := r.BeginChat(board.ChatMessage{Content: "hi"})
	require.ErrorIs(t, err, board.ErrInvalidPayload)
	require.Equal(t, 0, r.Len())
}

func TestRegistry_PayloadIsCopied(t *testing.T) {
	t.Parallel()

	r := txn.NewRegistry()
	a := board.ActionPayload{Tool: board.ToolBrush, InstanceID: "b", Points: []geometry.Point{{X: 0.1, Y: 0.1}}}

	_, err := r.BeginAction(txn.KindDrawAdd, a)
	require.NoError(t, err)

	a.Points[0].X = 0.9

	tx, _ := r.Get("b")
	require.InDelta(t, 0.1, tx.Action.Points[0].X, 1e-9)
}

func TestRegistry_Drain(t *testing.T) {
	t.Parallel()

	r := txn.NewRegistry()

	for _, id := range []string{"a", "b", "c"} {
		_, err := r.BeginAction(txn.KindDrawAdd, action(id))
		require.NoError(t, err)
	}

	_, err := r.BeginChat(board.ChatMessage{InstanceID: "m", Content: "hi"})
	require.NoError(t, err)

	r.Commit("b")

	require.Equal(t, []string{"a", "c", "m"}, r.IDs())

	drained := r.Drain()
	require.Len(t, drained, 3)
	require.Equal(t, txn.KindChat, drained[2].Kind)
	require.Equal(t, 0, r.Len())
	require.Empty(t, r.Drain())
}

func TestRegistry_AmendKeepsOrder(t *testing.T) {
	t.Parallel()

	r := txn.NewRegistry()

	for _, id := range []string{"a", "b"} {
		_, err := r.BeginAction(txn.KindDrawAdd, action(id))
		require.NoError(t, err)
	}

	started, _ := r.Get("a")

	recolored := action("a")
	recolored.FillColor = "#123456"

	tx, ok := r.Amend("a", txn.KindDrawUpdate, recolored)
	require.True(t, ok)
	require.Equal(t, txn.KindDrawUpdate, tx.Kind)
	require.Equal(t, started.StartedAt, tx.StartedAt)

	got, _ := r.Get("a")
	require.Equal(t, "#123456", got.Action.FillColor)
	require.Equal(t, []string{"a", "b"}, r.IDs())

	_, ok = r.Amend("missing", txn.KindDrawUpdate, action("missing"))
	require.False(t, ok)
	require.Equal(t, 2, r.Len())
}
