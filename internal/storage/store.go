// Package storage keeps the relay's record of each board: its accepted
// drawing actions, periodic snapshots of the resulting objects, and its chat.
package storage

import (
	"errors"
	"time"

	"github.com/serroba/online-board/internal/board"
	"github.com/serroba/online-board/internal/ws"
)

// Common errors.
var (
	ErrBoardNotFound    = errors.New("board not found")
	ErrBoardExists      = errors.New("board already exists")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Board is a whiteboard known to the relay.
type Board struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Entry is one accepted drawing action in a board's log.
type Entry struct {
	Sequence   int
	Type       ws.MessageType
	Action     board.ActionPayload
	Sender     string
	AcceptedAt time.Time
}

// Snapshot is the board's object list as of a sequence number.
type Snapshot struct {
	BoardID   int64
	Sequence  int
	Objects   []board.ActionPayload
	CreatedAt time.Time
}

// Store defines the interface for persisting board state.
type Store interface {
	// CreateBoard registers a board. A zero ID is assigned the next free id.
	// Returns ErrBoardExists if the id is taken.
	CreateBoard(b Board) (Board, error)

	// GetBoard returns a board.
	// Returns ErrBoardNotFound if the board doesn't exist.
	GetBoard(boardID int64) (Board, error)

	// ListBoards returns every board ordered by id.
	ListBoards() ([]Board, error)

	// RenameBoard changes a board's name.
	// Returns ErrBoardNotFound if the board doesn't exist.
	RenameBoard(boardID int64, name string) (Board, error)

	// AppendAction adds a drawing action to the board's log and returns it
	// with its sequence number.
	// Returns ErrBoardNotFound if the board doesn't exist.
	AppendAction(boardID int64, msgType ws.MessageType, action board.ActionPayload, sender string) (Entry, error)

	// LoadActions retrieves all actions after the given sequence number.
	// Returns ErrBoardNotFound if the board doesn't exist.
	LoadActions(boardID int64, sinceSequence int) ([]Entry, error)

	// SaveSnapshot persists the object list at the given sequence number.
	// Returns ErrBoardNotFound if the board doesn't exist.
	SaveSnapshot(boardID int64, sequence int, objects []board.ActionPayload) error

	// LoadSnapshot retrieves the latest snapshot for a board.
	// Returns ErrBoardNotFound if the board doesn't exist.
	// Returns ErrSnapshotNotFound if the board exists but has no snapshot.
	LoadSnapshot(boardID int64) (Snapshot, error)

	// LatestSequence returns the highest sequence number for a board.
	// Returns ErrBoardNotFound if the board doesn't exist.
	LatestSequence(boardID int64) (int, error)

	// AppendMessage stores a chat message, assigning its permanent id and,
	// if unset, its timestamp.
	// Returns ErrBoardNotFound if the board doesn't exist.
	AppendMessage(boardID int64, msg board.ChatMessage) (board.ChatMessage, error)

	// LoadMessages returns the board's chat in the order it was accepted.
	// Returns ErrBoardNotFound if the board doesn't exist.
	LoadMessages(boardID int64) ([]board.ChatMessage, error)
}
