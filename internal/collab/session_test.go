package collab_test

import (
	"context"
	"testing"

	"github.com/serroba/online-board/internal/board"
	"github.com/serroba/online-board/internal/collab"
	"github.com/serroba/online-board/internal/geometry"
	"github.com/serroba/online-board/internal/hit"
	"github.com/serroba/online-board/internal/ws"
	"github.com/stretchr/testify/require"
)

var canvas = geometry.Canvas{Width: 800, Height: 600}

func newSession(t *testing.T, history collab.HistorySource) (*collab.Session, *fakeTransport, *fakeNotifier) {
	t.Helper()

	transport := newFakeTransport()
	notifier := &fakeNotifier{}

	session := collab.NewSession(collab.SessionConfig{
		BoardID:   1,
		SessionID: "me",
		UserEmail: "me@example.com",
		Transport: transport,
		History:   history,
		Notifier:  notifier,
	})

	require.NoError(t, session.Init(context.Background()))

	return session, transport, notifier
}

func objectIDs(objects []board.ActionPayload) []string {
	result := make([]string, 0, len(objects))
	for _, o := range objects {
		result = append(result, o.InstanceID)
	}

	return result
}

func TestSession_InitSeedsHistory(t *testing.T) {
	t.Parallel()

	history := &fakeHistory{
		objects: []board.ActionPayload{
			rect("a"),
			rect("b"),
			{Tool: "spiral", InstanceID: "bad"},
			rect("a"),
		},
		messages: []board.ChatMessage{{ID: "1", Content: "hello"}},
	}

	session, _, _ := newSession(t, history)

	require.Equal(t, []string{"a", "b"}, objectIDs(session.Objects()))

	msgs := session.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, board.StatusConfirmed, msgs[0].TransactionStatus)
}

func TestSession_InitHistoryError(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	session := collab.NewSession(collab.SessionConfig{
		BoardID:   1,
		Transport: transport,
		History:   &fakeHistory{err: errLinkDown},
	})

	err := session.Init(context.Background())
	require.ErrorIs(t, err, errLinkDown)
	require.Equal(t, 0, transport.mux.HandlerCount())

	_, err = session.Draw(context.Background(), rect(""))
	require.ErrorIs(t, err, collab.ErrSessionNotInitialized)
}

func TestSession_Lifecycle(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	session := collab.NewSession(collab.SessionConfig{BoardID: 1, Transport: transport})

	_, err := session.Draw(context.Background(), rect(""))
	require.ErrorIs(t, err, collab.ErrSessionNotInitialized)

	require.NoError(t, session.Init(context.Background()))
	require.NoError(t, session.Init(context.Background()))
	require.Equal(t, 1, transport.mux.HandlerCount())
	require.Equal(t, 1, transport.mux.FailureHandlerCount())

	require.NoError(t, session.Teardown())
	require.NoError(t, session.Teardown())
	require.Equal(t, 0, transport.mux.HandlerCount())
	require.Equal(t, 0, transport.mux.FailureHandlerCount())

	require.ErrorIs(t, session.Init(context.Background()), collab.ErrSessionClosed)

	_, err = session.SendChat(context.Background(), "hi")
	require.ErrorIs(t, err, collab.ErrSessionClosed)
}

func TestSession_DrawRoundTrip(t *testing.T) {
	t.Parallel()

	session, transport, _ := newSession(t, nil)

	drawn, err := session.Draw(context.Background(), rect("ignored"))
	require.NoError(t, err)
	require.NotEqual(t, "ignored", drawn.InstanceID)
	require.NotEmpty(t, drawn.InstanceID)

	// Applied before the relay answers.
	require.Equal(t, []string{drawn.InstanceID}, objectIDs(session.Objects()))
	require.Equal(t, 1, session.PendingCount())
	require.True(t, session.IsPending(drawn.InstanceID))

	sent := transport.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, ws.MessageTypeObjectAdd, sent[0].Type)
	require.Equal(t, drawn.InstanceID, sent[0].InstanceID)
	require.Equal(t, "me", sent[0].Sender)
	require.Equal(t, int64(1), sent[0].BoardID)

	transport.echo()

	require.Equal(t, []string{drawn.InstanceID}, objectIDs(session.Objects()))
	require.Equal(t, 0, session.PendingCount())
}

func TestSession_DrawRejectsInvalidPayload(t *testing.T) {
	t.Parallel()

	session, transport, _ := newSession(t, nil)

	_, err := session.Draw(context.Background(), board.ActionPayload{Tool: board.ToolCircle})
	require.ErrorIs(t, err, board.ErrInvalidPayload)
	require.Empty(t, transport.Sent())
	require.Equal(t, 0, session.PendingCount())
}

func TestSession_OversizedActionSkipsPipeline(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	notifier := &fakeNotifier{}
	session := collab.NewSession(collab.SessionConfig{
		BoardID:         1,
		Transport:       transport,
		Notifier:        notifier,
		MaxMessageBytes: 1024,
	})
	require.NoError(t, session.Init(context.Background()))

	points := make([]geometry.Point, 500)
	for i := range points {
		points[i] = geometry.Point{X: float64(i) / 500, Y: 0.5}
	}

	_, err := session.Draw(context.Background(), board.ActionPayload{
		Tool:        board.ToolBrush,
		Points:      points,
		Color:       "#000000",
		StrokeWidth: 2,
	})
	require.ErrorIs(t, err, ws.ErrActionTooLarge)

	require.Empty(t, session.Objects())
	require.Equal(t, 0, session.PendingCount())
	require.Empty(t, transport.Sent())
	require.Len(t, notifier.Rejected(), 1)
	require.Empty(t, notifier.Rollbacks())
}

func TestSession_RollbackCompleteness(t *testing.T) {
	t.Parallel()

	session, transport, notifier := newSession(t, &fakeHistory{
		objects: []board.ActionPayload{rect("seed")},
	})

	for range 3 {
		_, err := session.Draw(context.Background(), rect(""))
		require.NoError(t, err)
	}

	_, err := session.SendChat(context.Background(), "unsent")
	require.NoError(t, err)
	require.Equal(t, 4, session.PendingCount())

	transport.mux.Fail(errLinkDown)

	require.Equal(t, []string{"seed"}, objectIDs(session.Objects()))
	require.Empty(t, session.Messages())
	require.Equal(t, 0, session.PendingCount())

	rollbacks := notifier.Rollbacks()
	require.Len(t, rollbacks, 1)
	require.Equal(t, 4, rollbacks[0].Discarded)
	require.Equal(t, 3, rollbacks[0].Removed)
	require.Equal(t, 1, rollbacks[0].ChatRemoved)
	require.ErrorIs(t, rollbacks[0].Cause, errLinkDown)

	// A second rollback with nothing pending is a no-op.
	result := session.Rollback()
	require.Equal(t, 0, result.Discarded)
	require.Len(t, notifier.Rollbacks(), 1)
}

func TestSession_SendFailureRollsBack(t *testing.T) {
	t.Parallel()

	session, transport, notifier := newSession(t, nil)

	_, err := session.Draw(context.Background(), rect(""))
	require.NoError(t, err)

	transport.failSends(errLinkDown)

	_, err = session.Draw(context.Background(), rect(""))
	require.ErrorIs(t, err, errLinkDown)

	require.Empty(t, session.Objects())
	require.Equal(t, 0, session.PendingCount())
	require.Len(t, notifier.Rollbacks(), 1)
	require.Equal(t, 2, notifier.Rollbacks()[0].Discarded)
}

func TestSession_OwnEchoAfterRollbackIsKept(t *testing.T) {
	t.Parallel()

	session, transport, _ := newSession(t, nil)

	drawn, err := session.Draw(context.Background(), rect(""))
	require.NoError(t, err)

	session.Rollback()
	require.Empty(t, session.Objects())

	// The relay had accepted the add before the link failed.
	transport.echo()
	require.Equal(t, []string{drawn.InstanceID}, objectIDs(session.Objects()))
}

func TestSession_ChatConfirmedInPlace(t *testing.T) {
	t.Parallel()

	session, transport, _ := newSession(t, nil)

	local, err := session.SendChat(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, board.StatusPending, local.TransactionStatus)

	msgs := session.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, board.StatusPending, msgs[0].TransactionStatus)
	require.Equal(t, "me@example.com", msgs[0].SenderEmail)

	sent := transport.Sent()
	require.Len(t, sent, 1)

	var confirmed board.ChatMessage
	require.NoError(t, sent[0].Decode(&confirmed))
	confirmed.ID = "42"

	env, err := ws.NewEnvelope(ws.MessageTypeChat, local.InstanceID, "me", 1, confirmed)
	require.NoError(t, err)
	transport.mux.Dispatch(env)

	msgs = session.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "abc", msgs[0].Content)
	require.Equal(t, "42", msgs[0].ID)
	require.Equal(t, board.StatusConfirmed, msgs[0].TransactionStatus)
	require.Equal(t, 0, session.PendingCount())
}

func TestSession_RecolorAndRollback(t *testing.T) {
	t.Parallel()

	session, transport, notifier := newSession(t, &fakeHistory{
		objects: []board.ActionPayload{rect("a")},
	})

	action, err := session.Recolor(context.Background(), geometry.Point{X: 400, Y: 300}, canvas, "#ff0000")
	require.NoError(t, err)
	require.True(t, action.ShouldPerformAction)
	require.Equal(t, hit.FieldFillColor, action.Field)
	require.Equal(t, "a", action.InstanceID)

	objects := session.Objects()
	require.Equal(t, "#ff0000", objects[0].FillColor)
	require.True(t, session.IsPending("a"))

	sent := transport.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, ws.MessageTypeObjectUpdate, sent[0].Type)

	result := session.Rollback()
	require.Equal(t, 1, result.Reverted)
	require.Len(t, notifier.Rollbacks(), 1)

	objects = session.Objects()
	require.Len(t, objects, 1)
	require.Equal(t, "#ffffff", objects[0].FillColor)
}

func TestSession_RecolorConfirmed(t *testing.T) {
	t.Parallel()

	session, transport, _ := newSession(t, &fakeHistory{
		objects: []board.ActionPayload{rect("a")},
	})

	// Right edge of the rectangle.
	action, err := session.Recolor(context.Background(), geometry.Point{X: 600, Y: 300}, canvas, "#00ff00")
	require.NoError(t, err)
	require.Equal(t, hit.FieldColor, action.Field)

	transport.echo()

	require.Equal(t, 0, session.PendingCount())
	require.Equal(t, "#00ff00", session.Objects()[0].Color)
}

func TestSession_RecolorEchoOrderings(t *testing.T) {
	t.Parallel()

	const (
		opRecolor = iota
		opEcho
		opRollback
	)

	type step struct {
		op    int
		color string
		// sent is the index of the envelope to echo back.
		sent          int
		wantFill      string
		wantPending   int
		wantDiscarded int
	}

	tests := []struct {
		name string
		// drawn objects start as a local add; otherwise they come from history.
		drawn bool
		steps []step
	}{
		{
			name: "successive recolors confirmed in order",
			steps: []step{
				{op: opRecolor, color: "#111111", wantFill: "#111111", wantPending: 1},
				{op: opRecolor, color: "#222222", wantFill: "#222222", wantPending: 1},
				{op: opEcho, sent: 0, wantFill: "#222222", wantPending: 1},
				{op: opEcho, sent: 1, wantFill: "#222222", wantPending: 0},
			},
		},
		{
			name: "older recolor confirmed then connection lost",
			steps: []step{
				{op: opRecolor, color: "#111111", wantFill: "#111111", wantPending: 1},
				{op: opRecolor, color: "#222222", wantFill: "#222222", wantPending: 1},
				{op: opEcho, sent: 0, wantFill: "#222222", wantPending: 1},
				{op: opRollback, wantFill: "#111111", wantPending: 0, wantDiscarded: 1},
			},
		},
		{
			name:  "recolor before add confirmed",
			drawn: true,
			steps: []step{
				{op: opRecolor, color: "#123456", wantFill: "#123456", wantPending: 1},
				{op: opEcho, sent: 0, wantFill: "#123456", wantPending: 1},
				{op: opEcho, sent: 1, wantFill: "#123456", wantPending: 0},
			},
		},
		{
			name:  "recolor before add confirmed then connection lost",
			drawn: true,
			steps: []step{
				{op: opRecolor, color: "#123456", wantFill: "#123456", wantPending: 1},
				{op: opEcho, sent: 0, wantFill: "#123456", wantPending: 1},
				{op: opRollback, wantFill: "#ffffff", wantPending: 0, wantDiscarded: 1},
			},
		},
		{
			name:  "add echo repeated after recolor",
			drawn: true,
			steps: []step{
				{op: opEcho, sent: 0, wantFill: "#ffffff", wantPending: 0},
				{op: opRecolor, color: "#abcdef", wantFill: "#abcdef", wantPending: 1},
				{op: opEcho, sent: 0, wantFill: "#abcdef", wantPending: 1},
				{op: opRollback, wantFill: "#ffffff", wantPending: 0, wantDiscarded: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var history collab.HistorySource
			if !tt.drawn {
				history = &fakeHistory{objects: []board.ActionPayload{rect("a")}}
			}

			session, transport, _ := newSession(t, history)

			if tt.drawn {
				_, err := session.Draw(context.Background(), rect(""))
				require.NoError(t, err)
			}

			for i, s := range tt.steps {
				switch s.op {
				case opRecolor:
					action, err := session.Recolor(context.Background(), geometry.Point{X: 400, Y: 300}, canvas, s.color)
					require.NoError(t, err)
					require.True(t, action.ShouldPerformAction)
				case opEcho:
					transport.deliver(s.sent)
				case opRollback:
					require.Equal(t, s.wantDiscarded, session.Rollback().Discarded, "step %d", i)
				}

				objects := session.Objects()
				require.Len(t, objects, 1, "step %d", i)
				require.Equal(t, s.wantFill, objects[0].FillColor, "step %d", i)
				require.Equal(t, s.wantPending, session.PendingCount(), "step %d", i)
			}
		})
	}
}

func TestSession_RecolorMiss(t *testing.T) {
	t.Parallel()

	session, transport, _ := newSession(t, &fakeHistory{
		objects: []board.ActionPayload{rect("a")},
	})

	action, err := session.Recolor(context.Background(), geometry.Point{X: 10, Y: 10}, canvas, "#ff0000")
	require.NoError(t, err)
	require.False(t, action.ShouldPerformAction)
	require.Equal(t, hit.ReasonNoHit, action.Reason)
	require.Empty(t, transport.Sent())
	require.Equal(t, 0, session.PendingCount())
}

func TestSession_DeleteAndRestoreOnRollback(t *testing.T) {
	t.Parallel()

	session, transport, _ := newSession(t, &fakeHistory{
		objects: []board.ActionPayload{rect("a"), rect("b")},
	})

	require.NoError(t, session.Delete(context.Background(), "a"))
	require.Equal(t, []string{"b"}, objectIDs(session.Objects()))
	require.True(t, session.IsPending("a"))

	sent := transport.Sent()
	require.Len(t, sent, 1)
	require.Equal(t, ws.MessageTypeObjectDelete, sent[0].Type)
	require.Equal(t, "a", sent[0].InstanceID)

	result := session.Rollback()
	require.Equal(t, 1, result.Restored)
	require.ElementsMatch(t, []string{"a", "b"}, objectIDs(session.Objects()))
}

func TestSession_DeleteConfirmed(t *testing.T) {
	t.Parallel()

	session, transport, _ := newSession(t, &fakeHistory{
		objects: []board.ActionPayload{rect("a")},
	})

	require.NoError(t, session.Delete(context.Background(), "a"))
	transport.echo()

	require.Empty(t, session.Objects())
	require.Equal(t, 0, session.PendingCount())
}

func TestSession_DeleteUnknownObject(t *testing.T) {
	t.Parallel()

	session, transport, _ := newSession(t, nil)

	err := session.Delete(context.Background(), "missing")
	require.ErrorIs(t, err, collab.ErrObjectNotFound)
	require.Empty(t, transport.Sent())
}

func TestSession_DeleteBeforeAddConfirmed(t *testing.T) {
	t.Parallel()

	session, transport, _ := newSession(t, nil)

	drawn, err := session.Draw(context.Background(), rect(""))
	require.NoError(t, err)

	require.NoError(t, session.Delete(context.Background(), drawn.InstanceID))
	require.Empty(t, session.Objects())
	require.Equal(t, 1, session.PendingCount())

	// Add echo then delete echo: the object never reappears.
	transport.echo()

	require.Empty(t, session.Objects())
	require.Equal(t, 0, session.PendingCount())
}

func TestSession_PeerActions(t *testing.T) {
	t.Parallel()

	session, transport, _ := newSession(t, nil)

	add, err := ws.NewEnvelope(ws.MessageTypeObjectAdd, "p1", "peer", 1, rect("p1"))
	require.NoError(t, err)

	other, err := ws.NewEnvelope(ws.MessageTypeObjectAdd, "p2", "peer", 2, rect("p2"))
	require.NoError(t, err)

	transport.mux.Dispatch(add)
	transport.mux.Dispatch(add)
	transport.mux.Dispatch(other)

	require.Equal(t, []string{"p1"}, objectIDs(session.Objects()))

	del, err := ws.NewEnvelope(ws.MessageTypeObjectDelete, "p1", "peer", 1, rect("p1"))
	require.NoError(t, err)

	outcome, err := session.HandleEnvelope(context.Background(), del)
	require.NoError(t, err)
	require.True(t, outcome.Applied)
	require.Empty(t, session.Objects())
}

func TestSession_HandleEnvelopeAfterTeardown(t *testing.T) {
	t.Parallel()

	session, _, _ := newSession(t, nil)
	require.NoError(t, session.Teardown())

	env, err := ws.NewEnvelope(ws.MessageTypeObjectAdd, "p1", "peer", 1, rect("p1"))
	require.NoError(t, err)

	_, err = session.HandleEnvelope(context.Background(), env)
	require.ErrorIs(t, err, collab.ErrSessionClosed)
}
