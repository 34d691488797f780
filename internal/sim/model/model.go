// Package model holds the world entity types and their wire-facing
// structured forms. Numbers inside a Structured value are always float64 so
// values survive an encode/decode roundtrip unchanged.
package model

import "mossvale/internal/protocol"

// User is an account reference. Credentials live behind the identity
// provider and are never part of any structured value.
type User struct {
	ID       int64
	Username string
}

// Entity is a named template placed in the world through an InstancedEntity.
type Entity struct {
	ID   int64
	Name string
}

// InstancedEntity is an Entity positioned in the world.
type InstancedEntity struct {
	ID     int64
	X, Y   float64
	Entity *Entity
}

// Actor is a player's avatar. One actor per user; at most one live
// connection holds it.
type Actor struct {
	ID              int64
	UserID          int64
	InstancedEntity *InstancedEntity
	AvatarID        int64
}

// Item is a catalog entry, a shared template with no position.
type Item struct {
	ID          int64
	Name        string
	Description string
	ItemType    string
}

// WorldItem is a positioned, pickable instance of a catalog item. It exists
// from spawn until picked up.
type WorldItem struct {
	ID   int64
	Item *Item
	X, Y float64
}

// InventoryEntry counts how many of one catalog item an actor carries.
// (actor, item) is unique; quantity never goes below 1.
type InventoryEntry struct {
	ID       int64
	ActorID  int64
	Item     *Item
	Quantity int64
}

func (e *Entity) Structured() protocol.Structured {
	return protocol.Structured{
		protocol.KeyID:        float64(e.ID),
		protocol.KeyModelType: "Entity",
		"name":                e.Name,
	}
}

func (ie *InstancedEntity) Structured() protocol.Structured {
	return protocol.Structured{
		protocol.KeyID:        float64(ie.ID),
		protocol.KeyModelType: "InstancedEntity",
		"x":                   ie.X,
		"y":                   ie.Y,
		"entity":              ie.Entity.Structured(),
	}
}

// Structured deliberately omits the owning user: account data never crosses
// the wire inside an actor.
func (a *Actor) Structured() protocol.Structured {
	return protocol.Structured{
		protocol.KeyID:        float64(a.ID),
		protocol.KeyModelType: "Actor",
		"avatar_id":           float64(a.AvatarID),
		"instanced_entity":    a.InstancedEntity.Structured(),
	}
}

func (it *Item) Structured() protocol.Structured {
	return protocol.Structured{
		protocol.KeyID:        float64(it.ID),
		protocol.KeyModelType: "Item",
		"name":                it.Name,
		"description":         it.Description,
		"item_type":           it.ItemType,
	}
}

func (wi *WorldItem) Structured() protocol.Structured {
	return protocol.Structured{
		protocol.KeyID:        float64(wi.ID),
		protocol.KeyModelType: "WorldItem",
		"x":                   wi.X,
		"y":                   wi.Y,
		"item":                wi.Item.Structured(),
	}
}

func (ie *InventoryEntry) Structured() protocol.Structured {
	return protocol.Structured{
		protocol.KeyID:        float64(ie.ID),
		protocol.KeyModelType: "Inventory",
		"actor":               float64(ie.ActorID),
		"quantity":            float64(ie.Quantity),
		"item":                ie.Item.Structured(),
	}
}
