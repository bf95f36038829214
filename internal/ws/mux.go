package ws

import "sync"

// Handler receives inbound envelopes.
type Handler func(Envelope)

// FailureHandler is told when the transport fails.
type FailureHandler func(error)

type registration[H any] struct {
	id      uint64
	handler H
}

// Mux fans inbound envelopes and transport failures out to registered
// handlers. Handlers run in registration order. It is safe for concurrent use.
type Mux struct {
	mu       sync.Mutex
	nextID   uint64
	handlers []registration[Handler]
	failures []registration[FailureHandler]
}

// NewMux creates an empty mux.
func NewMux() *Mux {
	return &Mux{}
}

// Register adds a message handler and returns a function that removes it.
// Calling the returned function more than once is a no-op.
func (m *Mux) Register(h Handler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.handlers = append(m.handlers, registration[Handler]{id: id, handler: h})

	var once sync.Once

	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()

			m.handlers = without(m.handlers, id)
		})
	}
}

// OnFailure adds a failure handler and returns a function that removes it.
// Calling the returned function more than once is a no-op.
func (m *Mux) OnFailure(h FailureHandler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.failures = append(m.failures, registration[FailureHandler]{id: id, handler: h})

	var once sync.Once

	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()

			m.failures = without(m.failures, id)
		})
	}
}

// Dispatch delivers env to every message handler, in registration order.
func (m *Mux) Dispatch(env Envelope) {
	m.mu.Lock()
	handlers := make([]Handler, 0, len(m.handlers))

	for _, r := range m.handlers {
		handlers = append(handlers, r.handler)
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(env)
	}
}

// Fail delivers err to every failure handler, in registration order.
func (m *Mux) Fail(err error) {
	m.mu.Lock()
	handlers := make([]FailureHandler, 0, len(m.failures))

	for _, r := range m.failures {
		handlers = append(handlers, r.handler)
	}
	m.mu.Unlock()

	for _, h := range handlers {
		h(err)
	}
}

// HandlerCount returns the number of registered message handlers.
func (m *Mux) HandlerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.handlers)
}

// FailureHandlerCount returns the number of registered failure handlers.
func (m *Mux) FailureHandlerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.failures)
}

func without[H any](regs []registration[H], id uint64) []registration[H] {
	for i, r := range regs {
		if r.id == id {
			return append(regs[:i:i], regs[i+1:]...)
		}
	}

	return regs
}
