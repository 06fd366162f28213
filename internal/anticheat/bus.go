package anticheat

import "sync"

// EventName identifies a browser event forwarded by the exam client.
type EventName string

const (
	EventVisibilityChange EventName = "visibilitychange"
	EventBlur             EventName = "blur"
	EventFocus            EventName = "focus"
	EventFullscreenChange EventName = "fullscreenchange"
	EventCopy             EventName = "copy"
	EventPaste            EventName = "paste"
	EventContextMenu      EventName = "contextmenu"
	EventKeyDown          EventName = "keydown"
)

// PlatformEvent is a browser event as reported by the client.
type PlatformEvent struct {
	Name       EventName `json:"name"`
	Hidden     bool      `json:"hidden,omitempty"`
	Fullscreen bool      `json:"fullscreen,omitempty"`
	Key        string    `json:"key,omitempty"`
	CtrlKey    bool      `json:"ctrl_key,omitempty"`
	ShiftKey   bool      `json:"shift_key,omitempty"`
	AltKey     bool      `json:"alt_key,omitempty"`

	prevented bool
}

// PreventDefault marks the event so the client blocks its default action.
func (e *PlatformEvent) PreventDefault() { e.prevented = true }

// DefaultPrevented reports whether a handler blocked the event.
func (e *PlatformEvent) DefaultPrevented() bool { return e.prevented }

// Handler reacts to a dispatched event.
type Handler func(*PlatformEvent)

type subscription struct {
	id uint64
	h  Handler
}

// Bus is a registry of event name to handlers for one browsing context.
type Bus struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers map[EventName][]subscription
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[EventName][]subscription)}
}

// On registers h for name and returns its unsubscribe function.
func (b *Bus) On(name EventName, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.handlers[name] = append(b.handlers[name], subscription{id: id, h: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.off(name, id) })
	}
}

func (b *Bus) off(name EventName, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[name]
	for i, s := range subs {
		if s.id == id {
			b.handlers[name] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(b.handlers[name]) == 0 {
		delete(b.handlers, name)
	}
}

// Dispatch runs every handler registered for ev.Name in registration order
// and returns how many ran.
func (b *Bus) Dispatch(ev *PlatformEvent) int {
	b.mu.RLock()
	subs := make([]subscription, len(b.handlers[ev.Name]))
	copy(subs, b.handlers[ev.Name])
	b.mu.RUnlock()

	for _, s := range subs {
		s.h(ev)
	}
	return len(subs)
}

// Len returns the number of registered handlers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, subs := range b.handlers {
		n += len(subs)
	}
	return n
}

// Subscriptions collects unsubscribe functions so teardown releases all of them.
type Subscriptions struct {
	mu  sync.Mutex
	fns []func()
}

// Add records an unsubscribe function.
func (s *Subscriptions) Add(fn func()) {
	s.mu.Lock()
	s.fns = append(s.fns, fn)
	s.mu.Unlock()
}

// Release calls every recorded function once, newest first.
func (s *Subscriptions) Release() {
	s.mu.Lock()
	fns := s.fns
	s.fns = nil
	s.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
