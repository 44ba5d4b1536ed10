package indexer

import (
	"sync"
	"sync/atomic"

	"github.com/RealFaceCode/ContextBrain/internal/storage"
)

// IndexLock provides non-blocking lock semantics using atomic operations.
type IndexLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// Held reports whether the lock is currently acquired
func (l *IndexLock) Held() bool {
	return l.state.Load() == 1
}

// projectLocks hands out one IndexLock per project root. The AllProjects
// lock excludes every project lock and the reverse.
type projectLocks struct {
	mu    sync.Mutex
	locks map[string]*IndexLock
}

// tryAcquire takes the project's lock unless it, or a conflicting scope, is held
func (p *projectLocks) tryAcquire(project string) (*IndexLock, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if project == storage.AllProjects {
		for key, l := range p.locks {
			if key != storage.AllProjects && l.Held() {
				return nil, false
			}
		}
	} else if all, ok := p.locks[storage.AllProjects]; ok && all.Held() {
		return nil, false
	}

	l := p.getLocked(project)
	if !l.TryAcquire() {
		return nil, false
	}
	return l, true
}

func (p *projectLocks) getLocked(project string) *IndexLock {
	if p.locks == nil {
		p.locks = make(map[string]*IndexLock)
	}
	l, ok := p.locks[project]
	if !ok {
		l = &IndexLock{}
		p.locks[project] = l
	}
	return l
}
