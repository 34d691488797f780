package session

import (
	"context"
	"errors"
	"math"

	plog "mossvale/internal/persistence/log"
	"mossvale/internal/persistence/repo"
	"mossvale/internal/protocol"
)

// handlePlay dispatches one packet while in Play. Unlisted actions are
// dropped silently.
func (s *Session) handlePlay(ctx context.Context, sender *Session, pkt protocol.Packet) {
	switch pkt.Action {
	case protocol.ActionChat:
		if sender == s {
			s.reg.Broadcast(s, pkt, true)
			s.deps.Events.Log(plog.Event{
				Kind: plog.KindChat, Username: s.username, Detail: pkt.String(1),
			})
		} else {
			s.sendClient(pkt)
		}

	case protocol.ActionModelDelta:
		s.sendClient(pkt)
		// Introduction protocol: the first delta seen from an unknown peer
		// is answered with our own full state, exactly once per pair.
		if _, ok := s.known[sender]; !ok {
			sender.Enqueue(s, protocol.NewModelDelta(s.actor.Structured()))
			s.known[sender] = struct{}{}
		}

	case protocol.ActionTarget:
		s.target = &[2]float64{pkt.Float(0), pkt.Float(1)}

	case protocol.ActionPickup:
		s.pickup(ctx, pkt.Int(0))

	case protocol.ActionInventoryRequest:
		s.sendInventory(ctx)

	case protocol.ActionDisconnect:
		delete(s.known, sender)
		s.sendClient(pkt)
	}
}

// pickup consumes a world item if it still exists and is in range. Failures
// are intentionally invisible to the client: they are logged server-side
// only, matching the original behavior.
func (s *Session) pickup(ctx context.Context, itemID int64) {
	wi, err := s.deps.Repo.WorldItemByID(ctx, itemID)
	if errors.Is(err, repo.ErrNotFound) {
		s.deps.Log.Printf("session %d: pickup %d: world item not found", s.id, itemID)
		return
	}
	if err != nil {
		s.deps.Log.Printf("session %d: pickup %d: %v", s.id, itemID, err)
		return
	}

	ie := s.actor.InstancedEntity
	dist := math.Hypot(ie.X-wi.X, ie.Y-wi.Y)
	if dist > s.deps.Tune.PickupRange {
		s.deps.Log.Printf("session %d: pickup %d: out of range (%.1f)", s.id, itemID, dist)
		return
	}

	entry, err := s.deps.Repo.ConsumeWorldItem(ctx, itemID, s.actor.ID)
	if errors.Is(err, repo.ErrNotFound) {
		// Lost the race to another session.
		s.deps.Log.Printf("session %d: pickup %d: already taken", s.id, itemID)
		return
	}
	if err != nil {
		s.deps.Log.Printf("session %d: pickup %d: %v", s.id, itemID, err)
		return
	}

	s.reg.Broadcast(s, protocol.NewItemRemove(itemID), false)
	// Broadcast routes through peers' Play handlers; the requester's client
	// must see the removal regardless, so send it directly too.
	s.sendClient(protocol.NewItemRemove(itemID))
	s.sendInventory(ctx)

	s.deps.Events.Log(plog.Event{
		Kind: plog.KindPickup, Username: s.username, ActorID: s.actor.ID,
		ItemID: itemID, Item: entry.Item.Name,
	})
}
