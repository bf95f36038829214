package acl

import "errors"

// Action represents an operation a user wants to perform on a board.
type Action int

const (
	ActionView Action = iota
	ActionChat
	ActionDraw
	ActionManage
)

// String returns the string representation of the action.
func (a Action) String() string {
	switch a {
	case ActionView:
		return "view"
	case ActionChat:
		return "chat"
	case ActionDraw:
		return "draw"
	case ActionManage:
		return "manage"
	default:
		return "unknown"
	}
}

// Checker validates board permissions.
type Checker struct {
	store Store
}

// NewChecker creates a new permission checker.
func NewChecker(store Store) *Checker {
	return &Checker{store: store}
}

// CanPerform checks if a user can perform an action on a board. Users who
// are not members can do nothing.
func (c *Checker) CanPerform(boardID int64, email string, action Action) (bool, error) {
	role, err := c.store.RoleOf(boardID, email)
	if err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return false, nil
		}

		return false, err
	}

	return role.Allows(action), nil
}

// RequirePermission checks permission and returns ErrAccessDenied if denied.
func (c *Checker) RequirePermission(boardID int64, email string, action Action) error {
	allowed, err := c.CanPerform(boardID, email, action)
	if err != nil {
		return err
	}

	if !allowed {
		return ErrAccessDenied
	}

	return nil
}
