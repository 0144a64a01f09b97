package reconcile

import "sync"

// orderLocks hands out one mutex per order id so transitions for the same
// order are serialized while different orders proceed in parallel. Entries
// are reference counted and removed once the last holder unlocks.
type orderLocks struct {
	mu    sync.Mutex
	locks map[uint]*orderLock
}

type orderLock struct {
	sync.Mutex
	refs int
}

func newOrderLocks() *orderLocks {
	return &orderLocks{locks: make(map[uint]*orderLock)}
}

func (l *orderLocks) lock(orderID uint) {
	l.mu.Lock()
	entry, ok := l.locks[orderID]
	if !ok {
		entry = &orderLock{}
		l.locks[orderID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.Lock()
}

func (l *orderLocks) unlock(orderID uint) {
	l.mu.Lock()
	entry := l.locks[orderID]
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, orderID)
	}
	l.mu.Unlock()

	entry.Unlock()
}
