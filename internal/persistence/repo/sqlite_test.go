package repo

import (
	"context"
	"errors"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedActor(t *testing.T, s *Store, username string) int64 {
	t.Helper()
	ctx := context.Background()
	user, err := s.GetOrCreateUser(ctx, username)
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	e, err := s.CreateEntity(ctx, username)
	if err != nil {
		t.Fatalf("entity: %v", err)
	}
	ie, err := s.CreateInstancedEntity(ctx, e, 0, 0)
	if err != nil {
		t.Fatalf("instanced entity: %v", err)
	}
	a, err := s.CreateActor(ctx, user, ie, 1)
	if err != nil {
		t.Fatalf("actor: %v", err)
	}
	return a.ID
}

func TestGetOrCreateUserIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	u1, err := s.GetOrCreateUser(ctx, "ada")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	u2, err := s.GetOrCreateUser(ctx, "ada")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if u1.ID != u2.ID {
		t.Fatalf("expected same user, got %d and %d", u1.ID, u2.ID)
	}
}

func TestActorByUserLoadsRelations(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedActor(t, s, "ada")

	user, _ := s.GetOrCreateUser(ctx, "ada")
	a, err := s.ActorByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("actor: %v", err)
	}
	if a.InstancedEntity == nil || a.InstancedEntity.Entity == nil {
		t.Fatalf("relations not loaded: %#v", a)
	}
	if a.InstancedEntity.Entity.Name != "ada" {
		t.Fatalf("wrong entity: %#v", a.InstancedEntity.Entity)
	}

	other, _ := s.GetOrCreateUser(ctx, "ghost")
	if _, err := s.ActorByUser(ctx, other.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSavePositionRoundtrips(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seedActor(t, s, "ada")

	user, _ := s.GetOrCreateUser(ctx, "ada")
	a, _ := s.ActorByUser(ctx, user.ID)
	a.InstancedEntity.X = 12.5
	a.InstancedEntity.Y = -3
	if err := s.SavePosition(ctx, a.InstancedEntity); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, _ := s.ActorByUser(ctx, user.ID)
	if reloaded.InstancedEntity.X != 12.5 || reloaded.InstancedEntity.Y != -3 {
		t.Fatalf("position lost: %#v", reloaded.InstancedEntity)
	}
}

func TestSpawnWorldItemIfAbsent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	item, created, err := s.GetOrCreateItem(ctx, "Iron Sword", "A sturdy iron sword", "weapon")
	if err != nil || !created {
		t.Fatalf("item: created=%v err=%v", created, err)
	}

	wi, created, err := s.SpawnWorldItemIfAbsent(ctx, item, 100, 150)
	if err != nil || !created || wi == nil {
		t.Fatalf("first spawn: created=%v err=%v", created, err)
	}
	// A live instance anywhere blocks further spawns of the same item.
	dup, created, err := s.SpawnWorldItemIfAbsent(ctx, item, 200, 200)
	if err != nil || created || dup != nil {
		t.Fatalf("second spawn must be a no-op: created=%v err=%v", created, err)
	}

	all, err := s.WorldItems(ctx)
	if err != nil || len(all) != 1 {
		t.Fatalf("expected one world item, got %d (%v)", len(all), err)
	}
}

func TestConsumeWorldItemIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	actorID := seedActor(t, s, "ada")

	item, _, _ := s.GetOrCreateItem(ctx, "Health Potion", "Restores health", "potion")
	wi, _, err := s.SpawnWorldItemIfAbsent(ctx, item, 150, 100)
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	entry, err := s.ConsumeWorldItem(ctx, wi.ID, actorID)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if entry.Quantity != 1 || entry.Item.Name != "Health Potion" {
		t.Fatalf("unexpected entry: %#v", entry)
	}

	// Second consume of the same id observes the item gone.
	if _, err := s.ConsumeWorldItem(ctx, wi.ID, actorID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	inv, err := s.InventoryFor(ctx, actorID)
	if err != nil || len(inv) != 1 || inv[0].Quantity != 1 {
		t.Fatalf("inventory must count exactly one: %#v (%v)", inv, err)
	}
}

func TestConsumeIncrementsExistingEntry(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	actorID := seedActor(t, s, "ada")

	item, _, _ := s.GetOrCreateItem(ctx, "Health Potion", "Restores health", "potion")
	for i := 0; i < 3; i++ {
		wi, created, err := s.SpawnWorldItemIfAbsent(ctx, item, 150, 100)
		if err != nil || !created {
			t.Fatalf("spawn %d: created=%v err=%v", i, created, err)
		}
		if _, err := s.ConsumeWorldItem(ctx, wi.ID, actorID); err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
	}

	inv, _ := s.InventoryFor(ctx, actorID)
	if len(inv) != 1 || inv[0].Quantity != 3 {
		t.Fatalf("expected one stack of 3, got %#v", inv)
	}
}
