package exam

import (
	"sync"

	"github.com/google/uuid"

	"github.com/stemsi/jlpt-proctor/internal/anticheat"
	"github.com/stemsi/jlpt-proctor/internal/timer"
)

// NotificationKind classifies session notifications.
type NotificationKind string

const (
	NotifyState     NotificationKind = "state"
	NotifyTick      NotificationKind = "tick"
	NotifyAntiCheat NotificationKind = "anti_cheat"
	NotifyViolation NotificationKind = "violation"
	NotifyFinalized NotificationKind = "finalized"
)

// Notification is pushed to session watchers. Only the field matching Kind is set.
type Notification struct {
	Kind      NotificationKind
	SessionID uuid.UUID
	Timer     *timer.State
	AntiCheat *anticheat.State
	Violation *anticheat.Violation
	Result    *Result
}

type watchers struct {
	mu     sync.RWMutex
	nextID uint64
	fns    map[uint64]func(Notification)
}

func (w *watchers) add(fn func(Notification)) func() {
	w.mu.Lock()
	if w.fns == nil {
		w.fns = make(map[uint64]func(Notification))
	}
	w.nextID++
	id := w.nextID
	w.fns[id] = fn
	w.mu.Unlock()

	return func() {
		w.mu.Lock()
		delete(w.fns, id)
		w.mu.Unlock()
	}
}

func (w *watchers) emit(n Notification) {
	w.mu.RLock()
	fns := make([]func(Notification), 0, len(w.fns))
	for _, fn := range w.fns {
		fns = append(fns, fn)
	}
	w.mu.RUnlock()

	for _, fn := range fns {
		fn(n)
	}
}

func (w *watchers) closeAll() {
	w.mu.Lock()
	w.fns = nil
	w.mu.Unlock()
}
