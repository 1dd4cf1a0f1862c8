package app

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/example/charkeep/internal/core/record"
	"github.com/example/charkeep/internal/ports/primary"
)

// Session is a point-in-time copy of one connection's state.
// Blob is never mutated after capture, so copies may share it.
type Session struct {
	Handle      primary.ConnectionHandle
	UserID      string
	DisplayName string
	Key         record.Key
	Blob        []byte
	Dirty       bool
	Generation  uint64
	ConnectedAt time.Time
	LastSave    time.Time
}

// SessionTracker holds the sessions of connected users.
// A single mutex guards the map and every session in it.
// Generations are drawn from one counter, so a later capture always has
// a higher generation than an earlier one, whichever handle made it.
type SessionTracker struct {
	mu       sync.Mutex
	sessions map[primary.ConnectionHandle]*Session
	gen      uint64
	now      func() time.Time
	logger   hclog.Logger
}

// NewSessionTracker creates an empty tracker.
func NewSessionTracker(logger hclog.Logger, now func() time.Time) *SessionTracker {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if now == nil {
		now = time.Now
	}
	return &SessionTracker{
		sessions: make(map[primary.ConnectionHandle]*Session),
		now:      now,
		logger:   logger,
	}
}

// OnConnect starts tracking handle. A handle that is still tracked is
// replaced by a fresh session.
func (t *SessionTracker) OnConnect(handle primary.ConnectionHandle, userID, displayName string) (Session, error) {
	key, err := record.NewKey(userID, displayName)
	if err != nil {
		return Session{}, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.sessions[handle]; ok {
		t.logger.Warn("replacing active session", "handle", handle,
			"previous_user_id", prev.UserID, "user_id", userID, "dirty", prev.Dirty)
	}
	s := &Session{
		Handle:      handle,
		UserID:      userID,
		DisplayName: displayName,
		Key:         key,
		ConnectedAt: t.now(),
	}
	t.sessions[handle] = s
	return *s, nil
}

// OnCapture replaces the buffered payload of handle.
func (t *SessionTracker) OnCapture(handle primary.ConnectionHandle, blob []byte) error {
	buf := make([]byte, len(blob))
	copy(buf, blob)

	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[handle]
	if !ok {
		return fmt.Errorf("%w: handle %d", record.ErrNotFound, handle)
	}
	t.gen++
	s.Blob = buf
	s.Generation = t.gen
	s.Dirty = true
	return nil
}

// OnDisconnect stops tracking handle and returns its final state.
func (t *SessionTracker) OnDisconnect(handle primary.ConnectionHandle) (Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[handle]
	if !ok {
		return Session{}, fmt.Errorf("%w: handle %d", record.ErrNotFound, handle)
	}
	delete(t.sessions, handle)
	return *s, nil
}

// Snapshot returns a copy of the session for handle.
func (t *SessionTracker) Snapshot(handle primary.ConnectionHandle) (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[handle]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// AllSessions returns copies of every session ordered by handle.
func (t *SessionTracker) AllSessions() []Session {
	t.mu.Lock()
	out := make([]Session, 0, len(t.sessions))
	for _, s := range t.sessions {
		out = append(out, *s)
	}
	t.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Handle < out[j].Handle })
	return out
}

// MarkSaved records a successful flush of generation. Dirty is cleared
// only if nothing was captured since; it reports whether that happened.
func (t *SessionTracker) MarkSaved(handle primary.ConnectionHandle, generation uint64, at time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[handle]
	if !ok {
		return false
	}
	s.LastSave = at
	if s.Generation != generation {
		return false
	}
	s.Dirty = false
	return true
}

// HoldsKey reports whether a connected session maps to key.
func (t *SessionTracker) HoldsKey(key record.Key) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, s := range t.sessions {
		if s.Key == key {
			return true
		}
	}
	return false
}

// Len returns the number of tracked sessions.
func (t *SessionTracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}
