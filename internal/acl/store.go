package acl

import "errors"

// Common errors.
var (
	ErrMemberNotFound = errors.New("member not found")
	ErrAccessDenied   = errors.New("access denied")
	ErrUnknownRole    = errors.New("unknown role")
	ErrLastOwner      = errors.New("board must keep an owner")
)

// Store defines the interface for persisting board membership.
type Store interface {
	// Grant gives a user a role on a board, replacing any previous role.
	Grant(boardID int64, email string, role Role) error

	// Revoke removes a user from a board.
	// Returns ErrMemberNotFound if the user is not a member.
	Revoke(boardID int64, email string) error

	// RoleOf returns the user's role on a board.
	// Returns ErrMemberNotFound if the user is not a member.
	RoleOf(boardID int64, email string) (Role, error)

	// Members returns a board's members ordered by email.
	Members(boardID int64) ([]Member, error)
}
