// Package registry provides the injected session-provider collaborator:
// lookup of live engine sessions by identifier, change subscriptions, and a
// file watcher that reloads rule sources. The graph core never touches the
// registry; it only ever receives an already-resolved snapshot.
package registry

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"rulelens/internal/engine"
)

// EventKind classifies registry notifications.
type EventKind string

const (
	EventRegistered   EventKind = "registered"
	EventUnregistered EventKind = "unregistered"
	EventRulesChanged EventKind = "rules-changed"
)

// Event is one registry change notification.
type Event struct {
	Kind      EventKind
	SessionID string
	Path      string // rule source path for rules-changed events
}

// Registry holds live sessions keyed by session identifier.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*engine.Session
	subs     map[int]chan Event
	nextSub  int
	logger   *zap.Logger
}

// New creates an empty registry.
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*engine.Session),
		subs:     make(map[int]chan Event),
		logger:   logger,
	}
}

// Register adds a session and notifies subscribers.
func (r *Registry) Register(s *engine.Session) {
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()

	r.logger.Info("session registered", zap.String("session", s.ID()))
	r.notify(Event{Kind: EventRegistered, SessionID: s.ID()})
}

// Unregister removes a session by id.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		r.notify(Event{Kind: EventUnregistered, SessionID: id})
	}
}

// Lookup resolves a session by id.
func (r *Registry) Lookup(id string) (*engine.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("unknown session %q", id)
	}
	return s, nil
}

// Sessions returns the registered session ids.
func (r *Registry) Sessions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Subscribe returns a channel of registry events and a cancel function.
// Events are dropped rather than blocking a slow subscriber.
func (r *Registry) Subscribe() (<-chan Event, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextSub
	r.nextSub++
	ch := make(chan Event, 16)
	r.subs[id] = ch

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if sub, ok := r.subs[id]; ok {
			delete(r.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (r *Registry) notify(e Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ch := range r.subs {
		select {
		case ch <- e:
		default:
			r.logger.Warn("dropping registry event for slow subscriber",
				zap.String("kind", string(e.Kind)))
		}
	}
}
