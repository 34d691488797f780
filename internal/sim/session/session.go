// Package session holds the per-connection protocol state machine and the
// registry that ticks and synchronizes all live sessions.
//
// Each session is an actor: any session may enqueue into its mailbox, but
// only its own tick, driven by the registry's single scheduler goroutine,
// drains it and mutates session state. That confinement is what lets the
// handlers run without per-field locking.
package session

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"mossvale/internal/auth"
	plog "mossvale/internal/persistence/log"
	"mossvale/internal/persistence/repo"
	"mossvale/internal/protocol"
	"mossvale/internal/sim/model"
	"mossvale/internal/sim/tuning"
)

// State is the protocol state of a connection. Sessions start in Login and
// move to Play exactly once; there is no way back, only transport close.
type State int

const (
	StateLogin State = iota
	StatePlay
)

// Deps are the collaborators shared by every session.
type Deps struct {
	Repo     *repo.Store
	Identity auth.Provider
	Events   *plog.EventLogger
	Tune     tuning.Tuning
	Log      *log.Logger
}

type envelope struct {
	sender *Session
	pkt    protocol.Packet
}

// Session is one live connection: mailbox, protocol state, and the actor it
// controls after login. All fields besides the mailbox and the closed flag
// are owned by the scheduler goroutine.
type Session struct {
	id      int64
	reg     *Registry
	deps    Deps
	mailbox chan envelope
	send    func([]byte) error

	state    State
	username string
	actor    *model.Actor

	target      *[2]float64
	lastMoved   time.Time
	known       map[*Session]struct{}
	lastRespawn time.Time

	closed atomic.Bool
}

// Enqueue appends a packet to the session's mailbox. It never blocks: a full
// mailbox drops the packet with a log line rather than stalling the sender's
// tick.
func (s *Session) Enqueue(sender *Session, pkt protocol.Packet) {
	if s.closed.Load() {
		return
	}
	select {
	case s.mailbox <- envelope{sender: sender, pkt: pkt}:
	default:
		s.deps.Log.Printf("session %d: mailbox full, dropping %s", s.id, pkt.Action)
	}
}

// Close marks the session dead. The scheduler performs the actual teardown
// (final persist, Disconnect broadcast, registry removal) on its own
// goroutine so state mutation stays single-owner.
func (s *Session) Close() {
	s.closed.Store(true)
}

// Tick runs one scheduler step: drain exactly one queued packet, or when the
// mailbox is idle and the session is playing, advance the simulation.
// Returns false once the session is closed and ready to be retired.
func (s *Session) Tick(ctx context.Context, now time.Time) bool {
	if s.closed.Load() {
		return false
	}

	select {
	case env := <-s.mailbox:
		s.dispatch(ctx, env.sender, env.pkt)
	default:
		if s.state == StatePlay {
			s.advanceMovement(ctx, now)
			s.checkItemRespawn(ctx, now)
		}
	}
	return !s.closed.Load()
}

func (s *Session) dispatch(ctx context.Context, sender *Session, pkt protocol.Packet) {
	switch s.state {
	case StateLogin:
		s.handleLogin(ctx, sender, pkt)
	case StatePlay:
		s.handlePlay(ctx, sender, pkt)
	}
}

// sendClient encodes and writes one packet to this session's own transport.
// Send failures mean the peer is gone; they are logged and never interrupt
// the caller.
func (s *Session) sendClient(pkt protocol.Packet) {
	if s.send == nil {
		return
	}
	b, err := protocol.Encode(pkt)
	if err != nil {
		s.deps.Log.Printf("session %d: encode %s: %v", s.id, pkt.Action, err)
		return
	}
	if err := s.send(b); err != nil {
		s.deps.Log.Printf("session %d: send %s: %v", s.id, pkt.Action, err)
	}
}

func (s *Session) sendInventory(ctx context.Context) {
	entries, err := s.deps.Repo.InventoryFor(ctx, s.actor.ID)
	if err != nil {
		s.deps.Log.Printf("session %d: load inventory: %v", s.id, err)
		return
	}
	items := make([]protocol.Structured, len(entries))
	for i, e := range entries {
		items[i] = e.Structured()
	}
	s.sendClient(protocol.NewInventory(items))
}

// finalize runs on the scheduler goroutine after Tick reports the session
// dead: persist the actor one last time and tell everyone else.
func (s *Session) finalize(ctx context.Context) {
	if s.actor == nil {
		return
	}
	if err := s.deps.Repo.SavePosition(ctx, s.actor.InstancedEntity); err != nil {
		s.deps.Log.Printf("session %d: final save: %v", s.id, err)
	}
	s.reg.Broadcast(s, protocol.NewDisconnect(s.actor.ID), true)
	s.deps.Events.Log(plog.Event{
		Kind:     plog.KindDisconnect,
		Username: s.username,
		ActorID:  s.actor.ID,
		X:        s.actor.InstancedEntity.X,
		Y:        s.actor.InstancedEntity.Y,
	})
}
