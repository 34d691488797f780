// Package protocol implements the wire packet format shared by server and
// clients: a single JSON object per frame with the action name under "a" and
// positional payloads under "p0", "p1", ...
package protocol

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Action names a packet's semantic type and fixes its payload shape.
type Action string

const (
	ActionOk               Action = "Ok"
	ActionDeny             Action = "Deny"
	ActionDisconnect       Action = "Disconnect"
	ActionLogin            Action = "Login"
	ActionRegister         Action = "Register"
	ActionChat             Action = "Chat"
	ActionModelDelta       Action = "ModelDelta"
	ActionTarget           Action = "Target"
	ActionPickup           Action = "Pickup"
	ActionItemSpawn        Action = "ItemSpawn"
	ActionItemRemove       Action = "ItemRemove"
	ActionInventory        Action = "Inventory"
	ActionInventoryRequest Action = "InventoryRequest"
)

// Packet is an immutable action plus its ordered payloads. Construct packets
// through the New* helpers so payload arity and types always match the closed
// table in decode.go.
type Packet struct {
	Action   Action
	Payloads []any
}

func NewOk() Packet { return Packet{Action: ActionOk} }
func NewDeny(reason string) Packet {
	return Packet{Action: ActionDeny, Payloads: []any{reason}}
}
func NewDisconnect(actorID int64) Packet {
	return Packet{Action: ActionDisconnect, Payloads: []any{actorID}}
}
func NewLogin(username, password string) Packet {
	return Packet{Action: ActionLogin, Payloads: []any{username, password}}
}
func NewRegister(username, password string, avatarID int64) Packet {
	return Packet{Action: ActionRegister, Payloads: []any{username, password, avatarID}}
}
func NewChat(sender, message string) Packet {
	return Packet{Action: ActionChat, Payloads: []any{sender, message}}
}
func NewModelDelta(model Structured) Packet {
	return Packet{Action: ActionModelDelta, Payloads: []any{model}}
}
func NewTarget(x, y float64) Packet {
	return Packet{Action: ActionTarget, Payloads: []any{x, y}}
}
func NewPickup(itemID int64) Packet {
	return Packet{Action: ActionPickup, Payloads: []any{itemID}}
}
func NewItemSpawn(item Structured) Packet {
	return Packet{Action: ActionItemSpawn, Payloads: []any{item}}
}
func NewItemRemove(itemID int64) Packet {
	return Packet{Action: ActionItemRemove, Payloads: []any{itemID}}
}
func NewInventory(items []Structured) Packet {
	return Packet{Action: ActionInventory, Payloads: []any{items}}
}
func NewInventoryRequest() Packet { return Packet{Action: ActionInventoryRequest} }

// Typed payload accessors for handler code. They assume the packet came from
// Decode or a New* constructor and will panic otherwise.

func (p Packet) String(i int) string       { return p.Payloads[i].(string) }
func (p Packet) Int(i int) int64           { return p.Payloads[i].(int64) }
func (p Packet) Float(i int) float64       { return p.Payloads[i].(float64) }
func (p Packet) Model(i int) Structured    { return p.Payloads[i].(Structured) }
func (p Packet) Models(i int) []Structured { return p.Payloads[i].([]Structured) }

// Encode renders the canonical frame: keys in the order a, p0, p1, ...,
// minimal separators, no trailing whitespace.
func Encode(p Packet) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"a":`)
	name, err := json.Marshal(string(p.Action))
	if err != nil {
		return nil, err
	}
	buf.Write(name)
	for i, v := range p.Payloads {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`,"p`)
		buf.WriteString(strconv.Itoa(i))
		buf.WriteString(`":`)
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
