// Package optimistic provides a value that can carry a locally proposed
// change on top of its confirmed state until the change is confirmed or discarded.
package optimistic

// Value holds three layers of the same field: the base it was created with,
// the latest committed value, and an optional pending overlay.
//
// Value is not safe for concurrent use; callers serialize access.
type Value[T any] struct {
	base      T
	committed T
	overlay   T

	hasCommitted bool
	pending      bool
}

// New creates a value whose base and visible state are base.
func New[T any](base T) *Value[T] {
	return &Value[T]{base: base}
}

// NewPending creates a value that only exists as a local proposal.
// Rolling it back leaves the zero value visible.
func NewPending[T any](overlay T) *Value[T] {
	v := &Value[T]{}
	v.Propose(overlay)

	return v
}

// Current returns the overlay if one is pending, otherwise the committed
// value, otherwise the base.
func (v *Value[T]) Current() T {
	switch {
	case v.pending:
		return v.overlay
	case v.hasCommitted:
		return v.committed
	default:
		return v.base
	}
}

// Confirmed returns the value without any pending overlay.
func (v *Value[T]) Confirmed() T {
	if v.hasCommitted {
		return v.committed
	}

	return v.base
}

// Propose places a pending overlay over the confirmed state.
// A second proposal replaces the first.
func (v *Value[T]) Propose(overlay T) {
	v.overlay = overlay
	v.pending = true
}

// Commit replaces the committed layer with confirmed and drops the overlay.
func (v *Value[T]) Commit(confirmed T) {
	v.committed = confirmed
	v.hasCommitted = true
	v.clearOverlay()
}

// SetCommitted replaces the committed layer while keeping any overlay visible.
func (v *Value[T]) SetCommitted(confirmed T) {
	v.committed = confirmed
	v.hasCommitted = true
}

// Rollback discards the overlay. It reports whether one was pending.
func (v *Value[T]) Rollback() bool {
	if !v.pending {
		return false
	}

	v.clearOverlay()

	return true
}

// Pending reports whether an overlay is waiting for confirmation.
func (v *Value[T]) Pending() bool {
	return v.pending
}

func (v *Value[T]) clearOverlay() {
	var zero T

	v.overlay = zero
	v.pending = false
}
