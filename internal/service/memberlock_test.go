package service

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMemberLocks_Serializes(t *testing.T) {
	locks := newMemberLocks()
	memberID := uuid.New()

	const goroutines = 20
	var counter int
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			locks.lock(memberID)
			defer locks.unlock(memberID)
			// Unsynchronized increment; the race detector flags this if
			// the lock fails to serialize.
			counter++
		}()
	}

	wg.Wait()
	assert.Equal(t, goroutines, counter)
}

func TestMemberLocks_EntriesAreReleased(t *testing.T) {
	locks := newMemberLocks()
	a := uuid.New()
	b := uuid.New()

	locks.lock(a)
	locks.lock(b)
	assert.Len(t, locks.locks, 2)

	locks.unlock(a)
	assert.Len(t, locks.locks, 1)

	locks.unlock(b)
	assert.Empty(t, locks.locks)
}

func TestMemberLocks_IndependentMembers(t *testing.T) {
	locks := newMemberLocks()
	a := uuid.New()
	b := uuid.New()

	locks.lock(a)

	done := make(chan struct{})
	go func() {
		locks.lock(b)
		locks.unlock(b)
		close(done)
	}()

	// Locking member b must not block on member a's lock.
	<-done
	locks.unlock(a)
}
