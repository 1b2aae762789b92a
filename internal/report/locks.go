package report

import (
	"sync"

	"github.com/emiliopalmerini/mtrack/internal/domain"
)

// dateLocks hands out one mutex per date and drops it when unused.
type dateLocks struct {
	mu    sync.Mutex
	locks map[domain.Date]*dateLock
}

type dateLock struct {
	mu   sync.Mutex
	refs int
}

func (l *dateLocks) lock(d domain.Date) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[domain.Date]*dateLock)
	}
	dl, ok := l.locks[d]
	if !ok {
		dl = &dateLock{}
		l.locks[d] = dl
	}
	dl.refs++
	l.mu.Unlock()

	dl.mu.Lock()
	return func() {
		dl.mu.Unlock()
		l.mu.Lock()
		dl.refs--
		if dl.refs == 0 {
			delete(l.locks, d)
		}
		l.mu.Unlock()
	}
}
