package protocol

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DecodeError reports a malformed frame: bad JSON, an unknown action tag, or
// payloads not matching the action's arity or types. Frames failing to decode
// are dropped at the transport; the connection stays open.
type DecodeError struct {
	Action Action
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("decode %s: %s", e.Action, e.Reason)
	}
	return "decode: " + e.Reason
}

func decodeErrorf(action Action, format string, args ...any) error {
	return &DecodeError{Action: action, Reason: fmt.Sprintf(format, args...)}
}

// payloadSpec fixes one action's payload count and element decoders.
type payloadSpec struct {
	args []func(json.RawMessage) (any, error)
}

var actionTable = map[Action]payloadSpec{
	ActionOk:               {},
	ActionDeny:             {args: decoders(asString)},
	ActionDisconnect:       {args: decoders(asInt)},
	ActionLogin:            {args: decoders(asString, asString)},
	ActionRegister:         {args: decoders(asString, asString, asInt)},
	ActionChat:             {args: decoders(asString, asString)},
	ActionModelDelta:       {args: decoders(asModel)},
	ActionTarget:           {args: decoders(asFloat, asFloat)},
	ActionPickup:           {args: decoders(asInt)},
	ActionItemSpawn:        {args: decoders(asModel)},
	ActionItemRemove:       {args: decoders(asInt)},
	ActionInventory:        {args: decoders(asModelList)},
	ActionInventoryRequest: {},
}

func decoders(fns ...func(json.RawMessage) (any, error)) []func(json.RawMessage) (any, error) {
	return fns
}

// Decode parses one wire frame. The action is looked up in the closed table;
// positional payloads are collected from the pN keys in index order and each
// decoded to its declared type. It never panics on untrusted input.
func Decode(b []byte) (Packet, error) {
	var frame map[string]json.RawMessage
	if err := json.Unmarshal(b, &frame); err != nil {
		return Packet{}, decodeErrorf("", "malformed frame: %v", err)
	}

	rawAction, ok := frame["a"]
	if !ok {
		return Packet{}, decodeErrorf("", "missing action key")
	}
	var name string
	if err := json.Unmarshal(rawAction, &name); err != nil {
		return Packet{}, decodeErrorf("", "action tag is not a string")
	}
	action := Action(name)
	spec, ok := actionTable[action]
	if !ok {
		return Packet{}, decodeErrorf(action, "unknown action")
	}

	raws, err := positional(action, frame)
	if err != nil {
		return Packet{}, err
	}
	if len(raws) != len(spec.args) {
		return Packet{}, decodeErrorf(action, "want %d payloads, got %d", len(spec.args), len(raws))
	}

	p := Packet{Action: action}
	if len(spec.args) > 0 {
		p.Payloads = make([]any, len(spec.args))
		for i, dec := range spec.args {
			v, err := dec(raws[i])
			if err != nil {
				return Packet{}, decodeErrorf(action, "payload p%d: %v", i, err)
			}
			p.Payloads[i] = v
		}
	}
	return p, nil
}

// positional extracts the pN values ordered by N. Indexes must be dense from
// zero; a gap means the frame and the arity check cannot be trusted.
func positional(action Action, frame map[string]json.RawMessage) ([]json.RawMessage, error) {
	type slot struct {
		idx int
		raw json.RawMessage
	}
	var slots []slot
	for k, v := range frame {
		if k == "a" || !strings.HasPrefix(k, "p") {
			continue
		}
		n, err := strconv.Atoi(k[1:])
		if err != nil || n < 0 {
			continue
		}
		slots = append(slots, slot{idx: n, raw: v})
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].idx < slots[j].idx })
	raws := make([]json.RawMessage, 0, len(slots))
	for i, s := range slots {
		if s.idx != i {
			return nil, decodeErrorf(action, "non-contiguous payload index p%d", s.idx)
		}
		raws = append(raws, s.raw)
	}
	return raws, nil
}

func asString(raw json.RawMessage) (any, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("want string")
	}
	return s, nil
}

func asInt(raw json.RawMessage) (any, error) {
	var n int64
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("want integer")
	}
	return n, nil
}

func asFloat(raw json.RawMessage) (any, error) {
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("want number")
	}
	return f, nil
}

func asModel(raw json.RawMessage) (any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("want model object")
	}
	return normalize(m), nil
}

func asModelList(raw json.RawMessage) (any, error) {
	var ms []map[string]any
	if err := json.Unmarshal(raw, &ms); err != nil {
		return nil, fmt.Errorf("want model list")
	}
	out := make([]Structured, len(ms))
	for i, m := range ms {
		out[i] = normalize(m)
	}
	return out, nil
}
