package garmin

import (
	"context"
	"log/slog"
	"sync"
)

// Event is a session lifecycle notification kind.
type Event int

const (
	// EventSessionChange fires once per successful login or re-login.
	EventSessionChange Event = iota
)

func (e Event) String() string {
	switch e {
	case EventSessionChange:
		return "sessionChange"
	default:
		return "unknown"
	}
}

// Subscription identifies a registered listener for Off.
type Subscription uint64

type listener struct {
	id Subscription
	fn func()
}

// listeners is a registry of callbacks per event kind, invoked in
// subscription order.
type listeners struct {
	mu     sync.Mutex
	nextID Subscription
	byKind map[Event][]listener
}

func (l *listeners) on(ev Event, fn func()) Subscription {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.byKind == nil {
		l.byKind = make(map[Event][]listener)
	}
	l.nextID++
	l.byKind[ev] = append(l.byKind[ev], listener{id: l.nextID, fn: fn})
	return l.nextID
}

func (l *listeners) off(ev Event, sub Subscription) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current := l.byKind[ev]
	for i, ln := range current {
		if ln.id == sub {
			next := make([]listener, 0, len(current)-1)
			next = append(next, current[:i]...)
			l.byKind[ev] = append(next, current[i+1:]...)
			return
		}
	}
}

// emit runs every listener of ev outside the lock. A panicking listener is
// logged and does not stop the remaining ones.
func (l *listeners) emit(ctx context.Context, ev Event) {
	l.mu.Lock()
	snapshot := append([]listener(nil), l.byKind[ev]...)
	l.mu.Unlock()

	for _, ln := range snapshot {
		invoke(ctx, ev, ln)
	}
}

func invoke(ctx context.Context, ev Event, ln listener) {
	defer func() {
		if r := recover(); r != nil {
			slog.WarnContext(ctx, "session listener panicked", "event", ev.String(), "subscription", uint64(ln.id), "panic", r)
		}
	}()
	ln.fn()
}
