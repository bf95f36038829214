package ws_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/serroba/online-board/internal/ws"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope_Decode(t *testing.T) {
	t.Parallel()

	env, err := ws.NewEnvelope(ws.MessageTypeBoardUpdate, "", "s1", 3, ws.BoardUpdatePayload{
		UpdateType:      ws.BoardUpdateMembers,
		SourceUserEmail: "a@example.com",
	})
	require.NoError(t, err)

	var payload ws.BoardUpdatePayload
	require.NoError(t, env.Decode(&payload))
	require.Equal(t, ws.BoardUpdateMembers, payload.UpdateType)
	require.Equal(t, int64(3), env.BoardID)
}

func TestEnvelope_DecodeEmptyPayload(t *testing.T) {
	t.Parallel()

	var payload ws.UserUpdatePayload
	require.Error(t, ws.Envelope{Type: ws.MessageTypeUserUpdate}.Decode(&payload))
}

func TestCheckSize(t *testing.T) {
	t.Parallel()

	small, err := ws.NewEnvelope(ws.MessageTypeChat, "id", "s", 1, map[string]string{"content": "hi"})
	require.NoError(t, err)

	size, err := ws.CheckSize(small, 0)
	require.NoError(t, err)
	require.Positive(t, size)

	big, err := ws.NewEnvelope(ws.MessageTypeChat, "id", "s", 1, map[string]string{
		"content": strings.Repeat("x", ws.DefaultMaxMessageBytes),
	})
	require.NoError(t, err)

	_, err = ws.CheckSize(big, 0)
	if !errors.Is(err, ws.ErrActionTooLarge) {
		t.Errorf("expected ErrActionTooLarge, got %v", err)
	}

	_, err = ws.CheckSize(small, 10)
	require.ErrorIs(t, err, ws.ErrActionTooLarge)
}

func TestMessageType_IsDrawing(t *testing.T) {
	t.Parallel()

	require.True(t, ws.MessageTypeObjectAdd.IsDrawing())
	require.True(t, ws.MessageTypeObjectDelete.IsDrawing())
	require.True(t, ws.MessageTypeObjectUpdate.IsDrawing())
	require.False(t, ws.MessageTypeChat.IsDrawing())
}
