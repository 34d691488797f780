package session

import (
	"context"
	"sync"
	"time"

	"mossvale/internal/protocol"
)

// mailboxSize bounds how many packets a session can have queued. Drain-one
// ticking means a burst larger than this within one tick window is dropped.
const mailboxSize = 256

// Registry tracks every live session and drives them all from one scheduler
// goroutine, which is the precondition for the sessions' lock-free state
// handling.
type Registry struct {
	deps Deps

	mu       sync.Mutex
	sessions map[*Session]struct{}
	nextID   int64
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:     deps,
		sessions: make(map[*Session]struct{}),
	}
}

// NewSession registers a fresh connection in the Login state. send delivers
// an encoded frame to this connection's client.
func (r *Registry) NewSession(send func([]byte) error) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	s := &Session{
		id:      r.nextID,
		reg:     r,
		deps:    r.deps,
		mailbox: make(chan envelope, mailboxSize),
		send:    send,
		state:   StateLogin,
		known:   make(map[*Session]struct{}),
	}
	r.sessions[s] = struct{}{}
	return s
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, s)
}

func (r *Registry) snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Broadcast enqueues a packet into every live session's mailbox. Delivery to
// one recipient never blocks or aborts delivery to the rest.
func (r *Registry) Broadcast(from *Session, pkt protocol.Packet, excludeSelf bool) {
	for _, other := range r.snapshot() {
		if excludeSelf && other == from {
			continue
		}
		other.Enqueue(from, pkt)
	}
}

// Run ticks every session at the given interval until ctx is cancelled.
// Sessions reporting themselves dead are finalized and removed here, on the
// same goroutine that runs their ticks.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, s := range r.snapshot() {
				if !s.Tick(ctx, now) {
					s.finalize(ctx)
					r.remove(s)
				}
			}
		}
	}
}
