package storage

import (
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/serroba/online-board/internal/board"
	"github.com/serroba/online-board/internal/ws"
)

// boardData holds all persisted data for a single board.
type boardData struct {
	board    Board
	snapshot *Snapshot
	entries  []Entry
	sequence int
	messages []board.ChatMessage
}

// MemoryStore is an in-memory implementation of the Store interface.
type MemoryStore struct {
	mu     sync.RWMutex
	boards map[int64]*boardData
	nextID int64
	now    func() time.Time
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		boards: make(map[int64]*boardData),
		nextID: 1,
		now:    time.Now,
	}
}

// CreateBoard registers a board.
func (m *MemoryStore) CreateBoard(b Board) (Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b.ID == 0 {
		for m.boards[m.nextID] != nil {
			m.nextID++
		}

		b.ID = m.nextID
	}

	if _, exists := m.boards[b.ID]; exists {
		return Board{}, ErrBoardExists
	}

	if b.CreatedAt.IsZero() {
		b.CreatedAt = m.now().UTC()
	}

	m.boards[b.ID] = &boardData{board: b}

	return b, nil
}

// GetBoard returns a board.
func (m *MemoryStore) GetBoard(boardID int64) (Board, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.boards[boardID]
	if !exists {
		return Board{}, ErrBoardNotFound
	}

	return data.board, nil
}

// ListBoards returns every board ordered by id.
func (m *MemoryStore) ListBoards() ([]Board, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Board, 0, len(m.boards))
	for _, data := range m.boards {
		result = append(result, data.board)
	}

	slices.SortFunc(result, func(a, b Board) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	return result, nil
}

// RenameBoard changes a board's name.
func (m *MemoryStore) RenameBoard(boardID int64, name string) (Board, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, exists := m.boards[boardID]
	if !exists {
		return Board{}, ErrBoardNotFound
	}

	data.board.Name = name

	return data.board, nil
}

// AppendAction adds a drawing action to the board's log.
func (m *MemoryStore) AppendAction(
	boardID int64, msgType ws.MessageType, action board.ActionPayload, sender string,
) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, exists := m.boards[boardID]
	if !exists {
		return Entry{}, ErrBoardNotFound
	}

	data.sequence++

	entry := Entry{
		Sequence:   data.sequence,
		Type:       msgType,
		Action:     action.Clone(),
		Sender:     sender,
		AcceptedAt: m.now().UTC(),
	}
	data.entries = append(data.entries, entry)

	return entry, nil
}

// LoadActions retrieves all actions after the given sequence number.
func (m *MemoryStore) LoadActions(boardID int64, sinceSequence int) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.boards[boardID]
	if !exists {
		return nil, ErrBoardNotFound
	}

	var result []Entry

	for _, e := range data.entries {
		if e.Sequence > sinceSequence {
			e.Action = e.Action.Clone()
			result = append(result, e)
		}
	}

	return result, nil
}

// SaveSnapshot persists the object list at the given sequence number.
func (m *MemoryStore) SaveSnapshot(boardID int64, sequence int, objects []board.ActionPayload) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, exists := m.boards[boardID]
	if !exists {
		return ErrBoardNotFound
	}

	data.snapshot = &Snapshot{
		BoardID:   boardID,
		Sequence:  sequence,
		Objects:   cloneObjects(objects),
		CreatedAt: m.now().UTC(),
	}

	// Prune actions that are now covered by the snapshot
	m.pruneEntries(data, sequence)

	return nil
}

// pruneEntries removes actions at or before the snapshot sequence.
func (m *MemoryStore) pruneEntries(data *boardData, snapshotSequence int) {
	var kept []Entry

	for _, e := range data.entries {
		if e.Sequence > snapshotSequence {
			kept = append(kept, e)
		}
	}

	data.entries = kept
}

// LoadSnapshot retrieves the latest snapshot for a board.
func (m *MemoryStore) LoadSnapshot(boardID int64) (Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.boards[boardID]
	if !exists {
		return Snapshot{}, ErrBoardNotFound
	}

	if data.snapshot == nil {
		return Snapshot{}, ErrSnapshotNotFound
	}

	snapshot := *data.snapshot
	snapshot.Objects = cloneObjects(snapshot.Objects)

	return snapshot, nil
}

// LatestSequence returns the highest sequence number for a board.
func (m *MemoryStore) LatestSequence(boardID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.boards[boardID]
	if !exists {
		return 0, ErrBoardNotFound
	}

	return data.sequence, nil
}

// AppendMessage stores a chat message with a fresh permanent id.
func (m *MemoryStore) AppendMessage(boardID int64, msg board.ChatMessage) (board.ChatMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, exists := m.boards[boardID]
	if !exists {
		return board.ChatMessage{}, ErrBoardNotFound
	}

	msg.ID = ulid.Make().String()
	msg.TransactionStatus = board.StatusConfirmed

	if msg.Timestamp.IsZero() {
		msg.Timestamp = m.now().UTC()
	}

	data.messages = append(data.messages, msg)

	return msg, nil
}

// LoadMessages returns the board's chat in the order it was accepted.
func (m *MemoryStore) LoadMessages(boardID int64) ([]board.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, exists := m.boards[boardID]
	if !exists {
		return nil, ErrBoardNotFound
	}

	return slices.Clone(data.messages), nil
}

func cloneObjects(objects []board.ActionPayload) []board.ActionPayload {
	result := make([]board.ActionPayload, len(objects))
	for i, o := range objects {
		result[i] = o.Clone()
	}

	return result
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
