package session

import (
	"context"
	"math"
	"time"

	plog "mossvale/internal/persistence/log"
	"mossvale/internal/protocol"
)

// advanceMovement integrates the actor toward its pending target using
// wall-clock elapsed time, persists the new position, and broadcasts only
// the changed fields.
func (s *Session) advanceMovement(ctx context.Context, now time.Time) {
	if s.target == nil {
		return
	}

	elapsed := s.deps.Tune.TickInterval().Seconds()
	if !s.lastMoved.IsZero() {
		elapsed = now.Sub(s.lastMoved).Seconds()
	}
	s.lastMoved = now

	step := s.deps.Tune.MoveSpeed * elapsed
	ie := s.actor.InstancedEntity
	dx := s.target[0] - ie.X
	dy := s.target[1] - ie.Y
	dist := math.Hypot(dx, dy)
	if dist < step {
		// Close enough: stop without a final snap so the client never sees
		// an overshoot correction.
		return
	}

	before := s.actor.Structured()
	ie.X += dx / dist * step
	ie.Y += dy / dist * step
	if err := s.deps.Repo.SavePosition(ctx, ie); err != nil {
		s.deps.Log.Printf("session %d: save position: %v", s.id, err)
	}
	after := s.actor.Structured()

	s.reg.Broadcast(s, protocol.NewModelDelta(protocol.Diff(before, after)), false)
}

// checkItemRespawn re-seeds missing baseline world items. Every session runs
// its own timer; the repository's existence-gated spawn makes concurrent
// checks idempotent, so at most one instance of each item exists at a time.
func (s *Session) checkItemRespawn(ctx context.Context, now time.Time) {
	if now.Sub(s.lastRespawn) < s.deps.Tune.RespawnInterval() {
		return
	}
	s.lastRespawn = now

	for _, sp := range s.deps.Tune.ItemSpawns {
		item, _, err := s.deps.Repo.GetOrCreateItem(ctx, sp.Name, sp.Description, sp.ItemType)
		if err != nil {
			s.deps.Log.Printf("session %d: respawn %q: %v", s.id, sp.Name, err)
			continue
		}
		wi, created, err := s.deps.Repo.SpawnWorldItemIfAbsent(ctx, item, sp.X, sp.Y)
		if err != nil {
			s.deps.Log.Printf("session %d: respawn %q: %v", s.id, sp.Name, err)
			continue
		}
		if created {
			s.reg.Broadcast(s, protocol.NewItemSpawn(wi.Structured()), false)
			s.deps.Events.Log(plog.Event{
				Kind: plog.KindItemSpawn, Item: sp.Name, ItemID: wi.ID, X: sp.X, Y: sp.Y,
			})
		}
	}
}
