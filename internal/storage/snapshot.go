package storage

import (
	"errors"
	"fmt"
	"sync"

	"github.com/serroba/online-board/internal/board"
	"github.com/serroba/online-board/internal/ws"
)

// SnapshotPolicy determines when to create snapshots.
type SnapshotPolicy struct {
	mu                   sync.Mutex
	threshold            int           // Create snapshot every N actions
	actionsSinceSnapshot map[int64]int // Track actions per board since last snapshot
}

// NewSnapshotPolicy creates a policy that triggers snapshots every N actions.
func NewSnapshotPolicy(threshold int) *SnapshotPolicy {
	return &SnapshotPolicy{
		threshold:            threshold,
		actionsSinceSnapshot: make(map[int64]int),
	}
}

// RecordAction records that an action was accepted.
// Returns true if a snapshot should be created.
func (p *SnapshotPolicy) RecordAction(boardID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.actionsSinceSnapshot[boardID]++

	return p.actionsSinceSnapshot[boardID] >= p.threshold
}

// Reset resets the counter after a snapshot is created.
func (p *SnapshotPolicy) Reset(boardID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.actionsSinceSnapshot[boardID] = 0
}

// ActionsSinceSnapshot returns the number of actions since the last snapshot.
func (p *SnapshotPolicy) ActionsSinceSnapshot(boardID int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.actionsSinceSnapshot[boardID]
}

// HistoryLoader rebuilds a board's object list from storage.
// It handles the snapshot + action replay pattern.
type HistoryLoader struct {
	store Store
}

// NewHistoryLoader creates a new history loader.
func NewHistoryLoader(store Store) *HistoryLoader {
	return &HistoryLoader{store: store}
}

// LoadResult contains the result of loading a board.
type LoadResult struct {
	Objects  []board.ActionPayload // Objects in z-order
	Sequence int                   // Sequence of the last replayed action
}

// Load reconstructs a board's objects from its latest snapshot and the
// actions accepted since.
func (l *HistoryLoader) Load(boardID int64) (LoadResult, error) {
	objects := board.NewStore()

	var startSequence int

	snapshot, err := l.store.LoadSnapshot(boardID)

	switch {
	case errors.Is(err, ErrSnapshotNotFound):
		// No snapshot - start from empty
	case err != nil:
		return LoadResult{}, err
	default:
		objects.Seed(snapshot.Objects)
		startSequence = snapshot.Sequence
	}

	entries, err := l.store.LoadActions(boardID, startSequence)
	if err != nil {
		return LoadResult{}, err
	}

	sequence := startSequence

	for _, e := range entries {
		if err := Apply(objects, e); err != nil {
			return LoadResult{}, err
		}

		sequence = e.Sequence
	}

	return LoadResult{
		Objects:  objects.Objects(),
		Sequence: sequence,
	}, nil
}

// Apply replays one log entry onto objects the same way a client applies
// the corresponding message.
func Apply(objects *board.Store, e Entry) error {
	switch e.Type {
	case ws.MessageTypeObjectAdd:
		objects.Add(e.Action)
	case ws.MessageTypeObjectDelete:
		objects.Remove(e.Action.InstanceID)
	case ws.MessageTypeObjectUpdate:
		objects.Update(e.Action)
	default:
		return fmt.Errorf("replay entry %d: unexpected type %q", e.Sequence, e.Type)
	}

	return nil
}

// Compact snapshots a board when the policy says it is due.
// It reports whether a snapshot was written.
func Compact(store Store, policy *SnapshotPolicy, boardID int64) (bool, error) {
	if policy == nil || !policy.RecordAction(boardID) {
		return false, nil
	}

	result, err := NewHistoryLoader(store).Load(boardID)
	if err != nil {
		return false, err
	}

	if err := store.SaveSnapshot(boardID, result.Sequence, result.Objects); err != nil {
		return false, err
	}

	policy.Reset(boardID)

	return true, nil
}
