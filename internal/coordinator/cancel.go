package coordinator

import (
	"sync"
	"sync/atomic"
)

// CancelFlag is a per-job one-way cancellation signal. Once set it is never
// reset; the processor polls it at pipeline-stage boundaries.
type CancelFlag struct {
	set atomic.Bool
}

// Set requests cancellation. Safe to call from any goroutine, repeatedly.
func (f *CancelFlag) Set() {
	f.set.Store(true)
}

// IsSet reports whether cancellation has been requested.
func (f *CancelFlag) IsSet() bool {
	if f == nil {
		return false
	}
	return f.set.Load()
}

// CancelRegistry maps in-flight gallery ids to their cancellation flags.
// All operations are O(1) map operations under a single mutex.
type CancelRegistry struct {
	mu    sync.Mutex
	flags map[string]*CancelFlag
}

func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{
		flags: make(map[string]*CancelFlag),
	}
}

// Register creates and stores a fresh unset flag for id and returns it.
// A flag already registered for id is silently replaced; concurrent duplicate
// submissions of the same gallery id are not supported.
func (r *CancelRegistry) Register(id string) *CancelFlag {
	r.mu.Lock()
	defer r.mu.Unlock()

	flag := &CancelFlag{}
	r.flags[id] = flag
	return flag
}

// RequestCancel sets the flag for id if one is registered and reports whether
// it existed. Safe to call at any time, from any goroutine.
func (r *CancelRegistry) RequestCancel(id string) bool {
	r.mu.Lock()
	flag, ok := r.flags[id]
	r.mu.Unlock()

	if !ok {
		return false
	}
	flag.Set()
	return true
}

// IsCancelled reports whether id is registered and has been cancelled.
func (r *CancelRegistry) IsCancelled(id string) bool {
	r.mu.Lock()
	flag, ok := r.flags[id]
	r.mu.Unlock()

	return ok && flag.IsSet()
}

// Unregister removes the entry for id. Removing an absent id is a no-op.
func (r *CancelRegistry) Unregister(id string) {
	r.mu.Lock()
	delete(r.flags, id)
	r.mu.Unlock()
}

// Len reports the number of registered flags.
func (r *CancelRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flags)
}
