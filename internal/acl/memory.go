package acl

import (
	"sort"
	"sync"
)

// MemoryStore is an in-memory implementation of the Store interface.
type MemoryStore struct {
	mu      sync.RWMutex
	members map[int64]map[string]Role
}

// NewMemoryStore creates a new in-memory membership store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members: make(map[int64]map[string]Role),
	}
}

// Grant gives a user a role on a board. Demoting the only owner fails with
// ErrLastOwner.
func (m *MemoryStore) Grant(boardID int64, email string, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	roles, ok := m.members[boardID]
	if !ok {
		roles = make(map[string]Role)
		m.members[boardID] = roles
	}

	if current, exists := roles[email]; exists && current == Owner && role != Owner && owners(roles) == 1 {
		return ErrLastOwner
	}

	roles[email] = role

	return nil
}

// Revoke removes a user from a board. The only owner cannot be removed.
func (m *MemoryStore) Revoke(boardID int64, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	roles := m.members[boardID]

	role, exists := roles[email]
	if !exists {
		return ErrMemberNotFound
	}

	if role == Owner && owners(roles) == 1 {
		return ErrLastOwner
	}

	delete(roles, email)

	return nil
}

// RoleOf returns the user's role on a board.
func (m *MemoryStore) RoleOf(boardID int64, email string) (Role, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	role, exists := m.members[boardID][email]
	if !exists {
		return 0, ErrMemberNotFound
	}

	return role, nil
}

// Members returns a board's members ordered by email.
func (m *MemoryStore) Members(boardID int64) ([]Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	roles := m.members[boardID]
	result := make([]Member, 0, len(roles))

	for email, role := range roles {
		result = append(result, Member{BoardID: boardID, Email: email, Role: role})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Email < result[j].Email
	})

	return result, nil
}

func owners(roles map[string]Role) int {
	n := 0

	for _, role := range roles {
		if role == Owner {
			n++
		}
	}

	return n
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
