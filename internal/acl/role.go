// Package acl tracks who may see, draw on, and manage each board.
package acl

import (
	"fmt"
	"strings"
)

// Role represents a member's access level on a board.
type Role int

const (
	// Viewer can watch the board and chat.
	Viewer Role = iota
	// Editor can also draw, delete and recolor objects.
	Editor
	// Owner can also rename the board and manage its members.
	Owner
)

// String returns the string representation of the role.
func (r Role) String() string {
	switch r {
	case Viewer:
		return "viewer"
	case Editor:
		return "editor"
	case Owner:
		return "owner"
	default:
		return "unknown"
	}
}

// ParseRole parses a role name.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "viewer":
		return Viewer, nil
	case "editor":
		return Editor, nil
	case "owner":
		return Owner, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) {
	if r < Viewer || r > Owner {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, int(r))
	}

	return []byte(r.String()), nil
}

// UnmarshalText decodes a role name.
func (r *Role) UnmarshalText(text []byte) error {
	role, err := ParseRole(string(text))
	if err != nil {
		return err
	}

	*r = role

	return nil
}

// Allows reports whether the role may perform action.
func (r Role) Allows(action Action) bool {
	switch action {
	case ActionView, ActionChat:
		return r >= Viewer
	case ActionDraw:
		return r >= Editor
	case ActionManage:
		return r >= Owner
	default:
		return false
	}
}

// Member is a user's role on a board.
type Member struct {
	BoardID int64  `json:"boardId"`
	Email   string `json:"email"`
	Role    Role   `json:"role"`
}
