package usecase

import (
	"strings"

	"rtdb-bridge/internal/shared/errors"
	"rtdb-bridge/internal/shared/jsonvalue"
)

// applyPatch merges partial into doc in place. Each key is a dotted field path;
// missing or non-object intermediates are replaced by objects and a null value
// deletes the leaf.
func applyPatch(doc *jsonvalue.Map, partial *jsonvalue.Map) error {
	var err error
	partial.Range(func(dotted string, v jsonvalue.Value) bool {
		fields := strings.Split(dotted, ".")
		for _, f := range fields {
			if f == "" {
				err = errors.NewValidationError("patch key has an empty segment").
					WithCause(errors.ErrInvalidDocument).
					WithDetail("key", dotted)
				return false
			}
		}

		current := doc
		for _, f := range fields[:len(fields)-1] {
			next, ok := current.Get(f)
			if !ok || !next.IsObject() {
				if v.IsNull() {
					// Nothing to delete below a missing intermediate.
					return true
				}
				next = jsonvalue.EmptyObject()
				current.Set(f, next)
			}
			current = next.Map()
		}

		leaf := fields[len(fields)-1]
		if v.IsNull() {
			current.Delete(leaf)
		} else {
			current.Set(leaf, v.Clone())
		}
		return true
	})
	return err
}

// replaceAt returns a copy of doc with the object at fields replaced by region.
func replaceAt(doc jsonvalue.Value, fields []string, region jsonvalue.Value) jsonvalue.Value {
	out := doc.Clone()
	current := out.Map()
	for _, f := range fields[:len(fields)-1] {
		next, _ := current.Get(f)
		current = next.Map()
	}
	current.Set(fields[len(fields)-1], region)
	return out
}

// lookup walks fields through nested objects.
func lookup(v jsonvalue.Value, fields []string) (jsonvalue.Value, bool) {
	for _, f := range fields {
		next, ok := v.Get(f)
		if !ok {
			return jsonvalue.Value{}, false
		}
		v = next
	}
	return v, true
}
