package service

import (
	"sync"

	"github.com/google/uuid"
)

// PlanLocker serializes work per plan inside one process.
type PlanLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*planLock
}

type planLock struct {
	mu   sync.Mutex
	refs int
}

// NewPlanLocker creates an empty PlanLocker.
func NewPlanLocker() *PlanLocker {
	return &PlanLocker{locks: map[uuid.UUID]*planLock{}}
}

// Lock blocks until planID is free and returns its unlock function.
func (l *PlanLocker) Lock(planID uuid.UUID) (unlock func()) {
	l.mu.Lock()
	pl, ok := l.locks[planID]
	if !ok {
		pl = &planLock{}
		l.locks[planID] = pl
	}
	pl.refs++
	l.mu.Unlock()

	pl.mu.Lock()
	return func() {
		pl.mu.Unlock()
		l.mu.Lock()
		pl.refs--
		if pl.refs == 0 {
			delete(l.locks, planID)
		}
		l.mu.Unlock()
	}
}
