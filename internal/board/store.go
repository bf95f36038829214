package board

import "github.com/serroba/online-board/internal/optimistic"

// entry is one object on the board. Its value carries any local change
// still waiting for the server.
type entry struct {
	value *optimistic.Value[ActionPayload]
	// local marks objects that exist only because of an unconfirmed add.
	local bool
}

// Store is the ordered set of objects on a board. Insertion order is the
// z-order: later objects are drawn on top and hit-tested first.
//
// Store is not safe for concurrent use; the owning session serializes access.
type Store struct {
	order []string
	index map[string]*entry
}

// NewStore creates an empty object store.
func NewStore() *Store {
	return &Store{
		index: make(map[string]*entry),
	}
}

// Seed replaces the store contents with confirmed objects in server order.
// Later duplicates of an instance id are dropped.
func (s *Store) Seed(objects []ActionPayload) {
	s.order = s.order[:0]
	s.index = make(map[string]*entry, len(objects))

	for _, obj := range objects {
		s.Add(obj)
	}
}

// Add appends a confirmed object. It returns false if an object with the
// same instance id is already present.
func (s *Store) Add(obj ActionPayload) bool {
	if _, exists := s.index[obj.InstanceID]; exists {
		return false
	}

	s.order = append(s.order, obj.InstanceID)
	s.index[obj.InstanceID] = &entry{value: optimistic.New(obj.Clone())}

	return true
}

// AddPending appends an object that has not been confirmed yet.
func (s *Store) AddPending(obj ActionPayload) bool {
	if _, exists := s.index[obj.InstanceID]; exists {
		return false
	}

	s.order = append(s.order, obj.InstanceID)
	s.index[obj.InstanceID] = &entry{value: optimistic.NewPending(obj.Clone()), local: true}

	return true
}

// Propose overlays a local update on an existing object.
func (s *Store) Propose(obj ActionPayload) bool {
	e, ok := s.index[obj.InstanceID]
	if !ok {
		return false
	}

	e.value.Propose(obj.Clone())

	return true
}

// Commit records obj as the confirmed state of its object and drops any
// local overlay. It returns false if the object is not present.
func (s *Store) Commit(obj ActionPayload) bool {
	e, ok := s.index[obj.InstanceID]
	if !ok {
		return false
	}

	e.value.Commit(obj.Clone())
	e.local = false

	return true
}

// ConfirmAdd records obj as the confirmed state of a locally added object.
// The overlay is dropped only if it still equals obj; a later local change
// stays visible and pending. It returns false if the object is not present.
func (s *Store) ConfirmAdd(obj ActionPayload) bool {
	e, ok := s.index[obj.InstanceID]
	if !ok {
		return false
	}

	if e.value.Current().Equal(obj) {
		e.value.Commit(obj.Clone())
	} else {
		e.value.SetCommitted(obj.Clone())
	}

	e.local = false

	return true
}

// Update records a confirmed change made elsewhere. A local overlay on the
// same object stays visible until it is committed or rolled back.
func (s *Store) Update(obj ActionPayload) bool {
	e, ok := s.index[obj.InstanceID]
	if !ok {
		return false
	}

	e.value.SetCommitted(obj.Clone())
	e.local = false

	return true
}

// Remove deletes the object with the given instance id.
func (s *Store) Remove(instanceID string) bool {
	if _, ok := s.index[instanceID]; !ok {
		return false
	}

	delete(s.index, instanceID)

	for i, id := range s.order {
		if id == instanceID {
			s.order = append(s.order[:i], s.order[i+1:]...)

			break
		}
	}

	return true
}

// Rollback discards local changes in a single pass. Objects named in remove
// are deleted; objects named in revert lose their overlay, and are deleted
// too if they never had a confirmed state. It returns how many objects were
// removed and reverted.
func (s *Store) Rollback(remove, revert map[string]struct{}) (int, int) {
	removed, reverted := 0, 0
	kept := s.order[:0]

	for _, id := range s.order {
		e := s.index[id]

		if _, ok := remove[id]; ok {
			delete(s.index, id)
			removed++

			continue
		}

		if _, ok := revert[id]; ok && e.value.Rollback() {
			reverted++

			if e.local {
				delete(s.index, id)
				removed++

				continue
			}
		}

		kept = append(kept, id)
	}

	s.order = kept

	return removed, reverted
}

// Get returns the visible state of an object.
func (s *Store) Get(instanceID string) (ActionPayload, bool) {
	e, ok := s.index[instanceID]
	if !ok {
		return ActionPayload{}, false
	}

	return e.value.Current().Clone(), true
}

// Contains reports whether an object with the instance id is present.
func (s *Store) Contains(instanceID string) bool {
	_, ok := s.index[instanceID]

	return ok
}

// IsPending reports whether an object carries an unconfirmed local change.
func (s *Store) IsPending(instanceID string) bool {
	e, ok := s.index[instanceID]

	return ok && e.value.Pending()
}

// Objects returns the visible objects in z-order.
func (s *Store) Objects() []ActionPayload {
	objects := make([]ActionPayload, 0, len(s.order))

	for _, id := range s.order {
		objects = append(objects, s.index[id].value.Current().Clone())
	}

	return objects
}

// Len returns the number of objects on the board.
func (s *Store) Len() int {
	return len(s.order)
}
