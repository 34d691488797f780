package model

import (
	"testing"

	"mossvale/internal/protocol"
)

func testActor() *Actor {
	return &Actor{
		ID:       7,
		UserID:   4,
		AvatarID: 2,
		InstancedEntity: &InstancedEntity{
			ID: 9, X: 10, Y: 20,
			Entity: &Entity{ID: 3, Name: "ada"},
		},
	}
}

func TestActorStructuredEmbedsChainAndHidesUser(t *testing.T) {
	v := testActor().Structured()

	if v[protocol.KeyID] != float64(7) || v[protocol.KeyModelType] != "Actor" {
		t.Fatalf("identity wrong: %#v", v)
	}
	if _, ok := v["user"]; ok {
		t.Fatalf("actor structured value must not carry user data: %#v", v)
	}
	ie, ok := v["instanced_entity"].(protocol.Structured)
	if !ok {
		t.Fatalf("missing instanced_entity: %#v", v)
	}
	if ie["x"] != float64(10) || ie["y"] != float64(20) {
		t.Fatalf("position wrong: %#v", ie)
	}
	e, ok := ie["entity"].(protocol.Structured)
	if !ok || e["name"] != "ada" || e[protocol.KeyModelType] != "Entity" {
		t.Fatalf("nested entity wrong: %#v", ie)
	}
}

func TestWorldItemAndInventoryEmbedCatalogItem(t *testing.T) {
	item := &Item{ID: 4, Name: "Iron Sword", Description: "A sturdy iron sword", ItemType: "weapon"}

	wi := (&WorldItem{ID: 1, Item: item, X: 100, Y: 150}).Structured()
	if wi[protocol.KeyModelType] != "WorldItem" {
		t.Fatalf("model_type wrong: %#v", wi)
	}
	emb, ok := wi["item"].(protocol.Structured)
	if !ok || emb["name"] != "Iron Sword" || emb["item_type"] != "weapon" {
		t.Fatalf("embedded item wrong: %#v", wi)
	}

	inv := (&InventoryEntry{ID: 2, ActorID: 7, Item: item, Quantity: 3}).Structured()
	if inv[protocol.KeyModelType] != "Inventory" || inv["quantity"] != float64(3) {
		t.Fatalf("inventory structured wrong: %#v", inv)
	}
	if _, ok := inv["item"].(protocol.Structured); !ok {
		t.Fatalf("inventory must embed item: %#v", inv)
	}
}

func TestStructuredSurvivesWireRoundtrip(t *testing.T) {
	// All numbers are float64, so the value that comes back from the codec
	// compares equal to the one that went in.
	before := testActor().Structured()
	b, err := protocol.Encode(protocol.NewModelDelta(before))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	pkt, err := protocol.Decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	after := pkt.Model(0)
	if d := protocol.Diff(before, after); len(d) != 2 {
		t.Fatalf("roundtrip changed fields: %#v", d)
	}
}
