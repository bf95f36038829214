package collab_test

import (
	"context"
	"errors"
	"sync"

	"github.com/serroba/online-board/internal/board"
	"github.com/serroba/online-board/internal/collab"
	"github.com/serroba/online-board/internal/ws"
)

var errLinkDown = errors.New("link down")

// fakeTransport is a test double for collab.Transport that records sent
// envelopes and lets tests deliver inbound ones.
type fakeTransport struct {
	mux *ws.Mux

	mu      sync.Mutex
	sent    []ws.Envelope
	sendErr error
	closed  bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{mux: ws.NewMux()}
}

func (f *fakeTransport) Send(_ context.Context, env ws.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return f.sendErr
	}

	f.sent = append(f.sent, env)

	return nil
}

func (f *fakeTransport) Subscribe(h ws.Handler) func() {
	return f.mux.Register(h)
}

func (f *fakeTransport) OnFailure(h ws.FailureHandler) func() {
	return f.mux.OnFailure(h)
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed = true

	return nil
}

func (f *fakeTransport) failSends(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sendErr = err
}

func (f *fakeTransport) Sent() []ws.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]ws.Envelope, len(f.sent))
	copy(result, f.sent)

	return result
}

// echo delivers every sent envelope back, as the relay would.
func (f *fakeTransport) echo() {
	for _, env := range f.Sent() {
		f.mux.Dispatch(env)
	}
}

// deliver echoes back the sent envelope at index i.
func (f *fakeTransport) deliver(i int) {
	f.mux.Dispatch(f.Sent()[i])
}

func (f *fakeTransport) IsClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.closed
}

// fakeNotifier records user-visible notifications.
type fakeNotifier struct {
	mu        sync.Mutex
	rejected  []error
	rollbacks []collab.RollbackResult
}

func (n *fakeNotifier) ActionRejected(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.rejected = append(n.rejected, err)
}

func (n *fakeNotifier) ConnectionLost(result collab.RollbackResult) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.rollbacks = append(n.rollbacks, result)
}

func (n *fakeNotifier) Rollbacks() []collab.RollbackResult {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]collab.RollbackResult(nil), n.rollbacks...)
}

func (n *fakeNotifier) Rejected() []error {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]error(nil), n.rejected...)
}

// fakeHistory serves a fixed board history.
type fakeHistory struct {
	objects  []board.ActionPayload
	messages []board.ChatMessage
	err      error
}

func (h *fakeHistory) BoardObjects(context.Context, int64) ([]board.ActionPayload, error) {
	return h.objects, h.err
}

func (h *fakeHistory) BoardMessages(context.Context, int64) ([]board.ChatMessage, error) {
	return h.messages, h.err
}

func rect(id string) board.ActionPayload {
	return board.ActionPayload{
		Tool:        board.ToolRectangle,
		InstanceID:  id,
		X:           0.25,
		Y:           0.25,
		Width:       0.5,
		Height:      0.5,
		Color:       "#000000",
		FillColor:   "#ffffff",
		StrokeWidth: 2,
	}
}
