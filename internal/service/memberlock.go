package service

import (
	"sync"

	"github.com/google/uuid"
)

// memberLocks serializes fulfillment per member within this process.
// Entries are reference-counted and removed when the last holder leaves,
// so the map does not grow with the member base.
type memberLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*memberLock
}

type memberLock struct {
	mu   sync.Mutex
	refs int
}

func newMemberLocks() *memberLocks {
	return &memberLocks{
		locks: make(map[uuid.UUID]*memberLock),
	}
}

func (l *memberLocks) lock(memberID uuid.UUID) {
	l.mu.Lock()
	entry, ok := l.locks[memberID]
	if !ok {
		entry = &memberLock{}
		l.locks[memberID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
}

func (l *memberLocks) unlock(memberID uuid.UUID) {
	l.mu.Lock()
	entry := l.locks[memberID]
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, memberID)
	}
	l.mu.Unlock()

	entry.mu.Unlock()
}
