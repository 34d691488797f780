package protocol

import "reflect"

// Structured is the nested mapping representation of a world entity used for
// wire transfer and delta diffing. It always carries the entity's id and a
// model_type discriminator; composite entities embed the Structured form of
// their directly related entities.
type Structured map[string]any

const (
	KeyID        = "id"
	KeyModelType = "model_type"
)

// Diff returns the fields of after that changed relative to before. The id
// and model_type keys are always copied whole so a delta stays addressable
// even when nothing else moved. Nested Structured values are diffed
// recursively; keys missing from either side are ignored (both sides come
// from the same entity shape).
func Diff(before, after Structured) Structured {
	delta := Structured{}
	for k, va := range after {
		vb, ok := before[k]
		if !ok {
			continue
		}
		if k == KeyID || k == KeyModelType {
			delta[k] = va
			continue
		}
		if reflect.DeepEqual(vb, va) {
			continue
		}
		nb, bok := vb.(Structured)
		na, aok := va.(Structured)
		if bok && aok {
			delta[k] = Diff(nb, na)
			continue
		}
		delta[k] = va
	}
	return delta
}

// normalize rewrites a freshly unmarshalled JSON object into Structured form,
// converting nested objects recursively so Diff and handler code see one map
// type throughout.
func normalize(m map[string]any) Structured {
	out := make(Structured, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return normalize(t)
	case []any:
		for i := range t {
			t[i] = normalizeValue(t[i])
		}
		return t
	default:
		return v
	}
}
