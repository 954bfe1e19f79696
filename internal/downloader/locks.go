package downloader

import (
	"sync"
	"time"
)

// Locks owns the per-identifier mutual exclusion used to serialize download
// attempts, plus the advisory in-progress set the HTTP layer consults before
// spawning background work. Lock entries are created lazily and never
// removed; the identifier space one process sees is small.
type Locks struct {
	mu         sync.Mutex
	locks      map[string]chan struct{}
	inProgress map[string]struct{}
}

func NewLocks() *Locks {
	return &Locks{
		locks:      make(map[string]chan struct{}),
		inProgress: make(map[string]struct{}),
	}
}

func (l *Locks) lockFor(videoID string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.locks[videoID]
	if !ok {
		ch = make(chan struct{}, 1)
		l.locks[videoID] = ch
	}
	return ch
}

// Acquire takes the lock for videoID, waiting at most timeout. It reports
// whether the lock was acquired; callers that get false must not Release.
func (l *Locks) Acquire(videoID string, timeout time.Duration) bool {
	ch := l.lockFor(videoID)
	select {
	case ch <- struct{}{}:
		return true
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case ch <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

// Release frees the lock for videoID. Must be called exactly once per
// successful Acquire.
func (l *Locks) Release(videoID string) {
	ch := l.lockFor(videoID)
	select {
	case <-ch:
	default:
		// Releasing an unheld lock is a programming error; make it harmless.
	}
}

// MarkInProgress records videoID as mid-download. Advisory only.
func (l *Locks) MarkInProgress(videoID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.inProgress[videoID] = struct{}{}
}

// ClearInProgress removes the advisory marker.
func (l *Locks) ClearInProgress(videoID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inProgress, videoID)
}

// InProgress reports whether a download for videoID is currently marked as
// running. A stale answer only costs redundant work; the lock is the real
// exclusion mechanism.
func (l *Locks) InProgress(videoID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.inProgress[videoID]
	return ok
}
