package protocol

import (
	"reflect"
	"testing"
)

func TestDiffKeepsIdentityDropsUnchanged(t *testing.T) {
	before := Structured{KeyID: float64(5), KeyModelType: "InstancedEntity", "x": float64(1), "y": float64(2)}
	after := Structured{KeyID: float64(5), KeyModelType: "InstancedEntity", "x": float64(1), "y": float64(3)}

	got := Diff(before, after)
	want := Structured{KeyID: float64(5), KeyModelType: "InstancedEntity", "y": float64(3)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("diff: got %#v want %#v", got, want)
	}
}

func TestDiffRecursesIntoNestedModels(t *testing.T) {
	before := Structured{
		KeyID: float64(7), KeyModelType: "Actor", "avatar_id": float64(2),
		"instanced_entity": Structured{
			KeyID: float64(9), KeyModelType: "InstancedEntity", "x": float64(0), "y": float64(0),
			"entity": Structured{KeyID: float64(3), KeyModelType: "Entity", "name": "ada"},
		},
	}
	after := Structured{
		KeyID: float64(7), KeyModelType: "Actor", "avatar_id": float64(2),
		"instanced_entity": Structured{
			KeyID: float64(9), KeyModelType: "InstancedEntity", "x": float64(7), "y": float64(0),
			"entity": Structured{KeyID: float64(3), KeyModelType: "Entity", "name": "ada"},
		},
	}

	got := Diff(before, after)
	want := Structured{
		KeyID: float64(7), KeyModelType: "Actor",
		"instanced_entity": Structured{
			KeyID: float64(9), KeyModelType: "InstancedEntity", "x": float64(7),
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("diff: got %#v want %#v", got, want)
	}
}

func TestDiffNoChangesStillCarriesIdentity(t *testing.T) {
	v := Structured{KeyID: float64(1), KeyModelType: "Item", "name": "Health Potion"}
	got := Diff(v, v)
	want := Structured{KeyID: float64(1), KeyModelType: "Item"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("diff: got %#v want %#v", got, want)
	}
}

func TestDiffIgnoresOneSidedKeys(t *testing.T) {
	before := Structured{KeyID: float64(1), KeyModelType: "Item", "gone": "x"}
	after := Structured{KeyID: float64(1), KeyModelType: "Item", "new": "y"}
	got := Diff(before, after)
	want := Structured{KeyID: float64(1), KeyModelType: "Item"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("diff: got %#v want %#v", got, want)
	}
}
