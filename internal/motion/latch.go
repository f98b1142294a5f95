package motion

import "sync"

// Latch holds the most recent Command. Stores overwrite; nothing is queued.
type Latch struct {
	mu      sync.Mutex
	cmd     Command
	version uint64
	changed chan struct{}
}

func NewLatch() *Latch {
	return &Latch{changed: make(chan struct{}, 1)}
}

func (l *Latch) Store(cmd Command) {
	l.mu.Lock()
	l.cmd = cmd
	l.version++
	l.mu.Unlock()

	select {
	case l.changed <- struct{}{}:
	default:
	}
}

// Load returns the latest command and how many stores preceded it.
func (l *Latch) Load() (Command, uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cmd, l.version
}

// Changed fires at most once per burst of stores.
func (l *Latch) Changed() <-chan struct{} {
	return l.changed
}
