package application

import (
	"context"
	"sync"
)

// userLocks hands out one mutation slot per user. A slot lives only while
// someone holds or waits for it.
type userLocks struct {
	mu    sync.Mutex
	slots map[string]*userSlot
}

type userSlot struct {
	ch   chan struct{}
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{slots: make(map[string]*userSlot)}
}

// acquire blocks until userID's slot is free or ctx ends.
func (l *userLocks) acquire(ctx context.Context, userID string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[userID]
	if !ok {
		slot = &userSlot{ch: make(chan struct{}, 1)}
		l.slots[userID] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.release(userID, slot)
			})
		}, nil
	case <-ctx.Done():
		l.release(userID, slot)
		return nil, ctx.Err()
	}
}

func (l *userLocks) release(userID string, slot *userSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, userID)
	}
}

func (l *userLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
