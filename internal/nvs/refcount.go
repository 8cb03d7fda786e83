// ABOUTME: Lock-free reference counter guarding the storage subsystem lifecycle
// ABOUTME: 0 = uninitialized, 1 = initialized and idle, n>1 = n-1 active holders

package nvs

import (
	"fmt"
	"sync/atomic"
)

// RefCount tracks the lifecycle of a lazily initialized shared resource.
//
// Every mutation is a compare-and-swap retry loop so concurrent acquirers
// never lose an update and the counter never drops to 0 while a holder
// is active. The zero value is an uninitialized counter.
type RefCount struct {
	n atomic.Uint64
}

// Init marks the resource initialized (0 -> 1).
// Returns false if it was already initialized.
func (r *RefCount) Init() bool {
	return r.n.CompareAndSwap(0, 1)
}

// Acquire registers one more holder.
// Returns false if the resource is not initialized.
func (r *RefCount) Acquire() bool {
	for {
		cur := r.n.Load()
		if cur == 0 {
			return false
		}
		if r.n.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release drops one holder. Returns false if the resource is not initialized.
// Releasing while no holder is active is a programming error and panics.
func (r *RefCount) Release() bool {
	for {
		cur := r.n.Load()
		if cur == 0 {
			return false
		}
		if cur == 1 {
			panic(fmt.Sprintf("nvs: release without matching acquire (count=%d)", cur))
		}
		if r.n.CompareAndSwap(cur, cur-1) {
			return true
		}
	}
}

// Retire moves an idle resource back to uninitialized (1 -> 0).
// Returns false if holders are still active or it was never initialized.
func (r *RefCount) Retire() bool {
	return r.n.CompareAndSwap(1, 0)
}

// Load returns the raw counter value.
func (r *RefCount) Load() uint64 {
	return r.n.Load()
}

// Holders returns the number of active holders.
func (r *RefCount) Holders() uint64 {
	n := r.n.Load()
	if n == 0 {
		return 0
	}
	return n - 1
}
