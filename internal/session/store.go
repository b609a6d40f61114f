package session

import (
	"context"
	"sync"
	"time"

	"media-relay-bot/internal/model"
)

// Store keeps per-user sessions. Every method is atomic with respect to the
// others, so handlers may run on any goroutine.
type Store interface {
	Get(userID int64) (model.Session, bool)
	SetURL(userID int64, url string)
	Clear(userID int64)
	CompareAndSwapBusy(userID int64, old, new bool) bool

	// Acquire marks the user busy and remembers cancel for Cancel.
	// It returns false if a cycle is already running.
	Acquire(userID int64, cancel context.CancelFunc) bool
	Release(userID int64)
	// Cancel invokes the cancel func of the running cycle, if any.
	Cancel(userID int64) bool

	Busy(userID int64) bool
	Stats() Stats
}

type Stats struct {
	Sessions int `json:"sessions"`
	Busy     int `json:"busy"`
	Pending  int `json:"pending"`
}

type entry struct {
	pendingURL string
	busy       bool
	cancel     context.CancelFunc
	updatedAt  time.Time
}

type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]*entry
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]*entry), now: time.Now}
}

func (s *MemoryStore) Get(userID int64) (model.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[userID]
	if !ok {
		return model.Session{}, false
	}
	return model.Session{PendingURL: e.pendingURL, Busy: e.busy, UpdatedAt: e.updatedAt}, true
}

func (s *MemoryStore) SetURL(userID int64, url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryLocked(userID)
	e.pendingURL = url
	e.updatedAt = s.now()
}

// Clear drops the pending URL. The busy flag is owned by the running cycle
// and survives.
func (s *MemoryStore) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[userID]
	if !ok {
		return
	}
	e.pendingURL = ""
	e.updatedAt = s.now()
	s.dropIfEmptyLocked(userID, e)
}

func (s *MemoryStore) CompareAndSwapBusy(userID int64, old, new bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.swapLocked(userID, old, new)
}

func (s *MemoryStore) Acquire(userID int64, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.swapLocked(userID, false, true) {
		return false
	}
	s.sessions[userID].cancel = cancel
	return true
}

func (s *MemoryStore) Release(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[userID]
	if !ok {
		return
	}
	e.busy = false
	e.cancel = nil
	e.updatedAt = s.now()
	s.dropIfEmptyLocked(userID, e)
}

func (s *MemoryStore) Cancel(userID int64) bool {
	s.mu.Lock()
	e, ok := s.sessions[userID]
	var cancel context.CancelFunc
	if ok && e.busy {
		cancel = e.cancel
	}
	s.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	return true
}

func (s *MemoryStore) Busy(userID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[userID]
	return ok && e.busy
}

func (s *MemoryStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{Sessions: len(s.sessions)}
	for _, e := range s.sessions {
		if e.busy {
			st.Busy++
		}
		if e.pendingURL != "" {
			st.Pending++
		}
	}
	return st
}

func (s *MemoryStore) swapLocked(userID int64, old, new bool) bool {
	e := s.entryLocked(userID)
	if e.busy != old {
		return false
	}
	e.busy = new
	e.updatedAt = s.now()
	if !new {
		e.cancel = nil
		s.dropIfEmptyLocked(userID, e)
	}
	return true
}

func (s *MemoryStore) entryLocked(userID int64) *entry {
	e, ok := s.sessions[userID]
	if !ok {
		e = &entry{}
		s.sessions[userID] = e
	}
	return e
}

func (s *MemoryStore) dropIfEmptyLocked(userID int64, e *entry) {
	if !e.busy && e.pendingURL == "" {
		delete(s.sessions, userID)
	}
}
