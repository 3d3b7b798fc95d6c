package payment

import (
	"context"
	"sync"
)

// Locker gives the caller exclusive ownership of one order until unlock is
// called. Lock blocks until the order is free or ctx is done.
type Locker interface {
	Lock(ctx context.Context, orderID string) (unlock func(), err error)
}

// MemoryLocker serializes per order inside one process.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*orderLock
}

type orderLock struct {
	sem  chan struct{}
	refs int
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*orderLock)}
}

func (l *MemoryLocker) Lock(ctx context.Context, orderID string) (func(), error) {
	l.mu.Lock()
	ol, ok := l.locks[orderID]
	if !ok {
		ol = &orderLock{sem: make(chan struct{}, 1)}
		l.locks[orderID] = ol
	}
	ol.refs++
	l.mu.Unlock()

	select {
	case ol.sem <- struct{}{}:
	case <-ctx.Done():
		l.release(orderID, ol)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-ol.sem
			l.release(orderID, ol)
		})
	}, nil
}

func (l *MemoryLocker) release(orderID string, ol *orderLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ol.refs--
	if ol.refs == 0 {
		delete(l.locks, orderID)
	}
}

// held reports how many callers hold or wait for orderID.
func (l *MemoryLocker) held(orderID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ol, ok := l.locks[orderID]; ok {
		return ol.refs
	}
	return 0
}
