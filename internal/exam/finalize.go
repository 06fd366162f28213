package exam

import (
	"sync"

	"github.com/stemsi/jlpt-proctor/internal/model"
)

// Finalizer guards the terminal action of an attempt. The timer-expiry path,
// the anti-cheat path and manual submission all go through it; only the
// first caller runs.
type Finalizer struct {
	mu     sync.Mutex
	done   bool
	reason model.FinalizeReason
}

// Finalize runs fn if no earlier call did and reports whether it ran.
// fn runs outside the guard's lock.
func (f *Finalizer) Finalize(reason model.FinalizeReason, fn func()) bool {
	f.mu.Lock()
	if f.done {
		f.mu.Unlock()
		return false
	}
	f.done = true
	f.reason = reason
	f.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

// Done reports whether the attempt is finalized and why.
func (f *Finalizer) Done() (bool, model.FinalizeReason) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done, f.reason
}
