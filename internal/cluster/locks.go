package cluster

import "sync"

// eventLocks serializes all cluster mutations for one event. Counter and tag
// updates are read-modify-write against the store; holding the event lock
// across them prevents lost updates between concurrent photo workers.
type eventLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newEventLocks() *eventLocks {
	return &eventLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *eventLocks) get(eventID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[eventID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[eventID] = m
	}
	return m
}
