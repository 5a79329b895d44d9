package engine

import (
	"sync"

	"github.com/google/uuid"
)

// scopeLocks provides in-process mutual exclusion for scans, one slot per
// scope. A second scan requested while a scope's slot is held is rejected
// rather than queued.
type scopeLocks struct {
	mu     sync.Mutex
	active map[uuid.UUID]struct{}
}

func newScopeLocks() *scopeLocks {
	return &scopeLocks{active: make(map[uuid.UUID]struct{})}
}

// TryLock claims the scope's slot. It returns false if a scan already holds
// it.
func (l *scopeLocks) TryLock(scopeID uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, held := l.active[scopeID]; held {
		return false
	}
	l.active[scopeID] = struct{}{}
	return true
}

// Unlock releases the scope's slot. Releasing an unheld slot is a no-op.
func (l *scopeLocks) Unlock(scopeID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.active, scopeID)
}
