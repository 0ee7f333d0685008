package builder

import (
	"reflect"

	"github.com/mu-semtech/delta-index-maintainer/errs"
)

// smartMerge implements spec.md §4.3's composite-type merge: key-by-key,
// nil+x→x; list+x→list∪{x}; list+list→deduped concat; map+map→recursive
// smart merge; scalar+scalar→[a,b] (deduped); any other combination is
// a configuration error.
func smartMerge(a, b map[string]any) (map[string]any, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}

	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, bv := range b {
		av, exists := out[k]
		if !exists {
			out[k] = bv
			continue
		}
		merged, err := mergeValue(av, bv)
		if err != nil {
			return nil, err
		}
		out[k] = merged
	}
	return out, nil
}

func mergeValue(a, b any) (any, error) {
	if a == nil {
		return b, nil
	}
	if b == nil {
		return a, nil
	}

	switch av := a.(type) {
	case []any:
		switch bv := b.(type) {
		case []any:
			return dedupAppend(av, bv...), nil
		case map[string]any:
			return nil, errs.Wrap(errs.KindConfig, errs.ErrConfig, "smart merge: list combined with map")
		default:
			return dedupAppend(av, bv), nil
		}
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok {
			return nil, errs.Wrap(errs.KindConfig, errs.ErrConfig, "smart merge: map combined with non-map")
		}
		return smartMerge(av, bv)
	default:
		switch bv := b.(type) {
		case []any:
			return dedupAppend([]any{a}, bv...), nil
		case map[string]any:
			return nil, errs.Wrap(errs.KindConfig, errs.ErrConfig, "smart merge: scalar combined with map")
		default:
			if reflect.DeepEqual(a, bv) {
				return a, nil
			}
			return []any{a, bv}, nil
		}
	}
}

func dedupAppend(list []any, extra ...any) []any {
	out := append([]any(nil), list...)
	for _, e := range extra {
		found := false
		for _, existing := range out {
			if reflect.DeepEqual(existing, e) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, e)
		}
	}
	return out
}
