package model

import (
	"rtdb-bridge/internal/shared/jsonvalue"
)

// DataSnapshot is an immutable value captured at a path at read time.
type DataSnapshot struct {
	key    string
	hasKey bool
	value  jsonvalue.Value
}

// MakeSnapshot pairs key with value. An empty key means the root (null key).
func MakeSnapshot(key string, value jsonvalue.Value) *DataSnapshot {
	return &DataSnapshot{key: key, hasKey: key != "", value: value}
}

// EmptySnapshot is the non-existent snapshot for key.
func EmptySnapshot(key string) *DataSnapshot {
	return MakeSnapshot(key, jsonvalue.UndefinedValue())
}

// Key returns the last path segment, or "" at the root.
func (s *DataSnapshot) Key() string { return s.key }

// HasKey is false for snapshots taken at the root.
func (s *DataSnapshot) HasKey() bool { return s.hasKey }

// Exists is true iff the value is neither null nor undefined.
func (s *DataSnapshot) Exists() bool { return s.value.Exists() }

// Val returns the value as plain Go data (maps, slices, float64, string, bool, nil).
func (s *DataSnapshot) Val() interface{} { return s.value.Interface() }

// Value returns a copy of the captured tagged value.
func (s *DataSnapshot) Value() jsonvalue.Value { return s.value.Clone() }

// ExportJSON encodes the value, preserving child order.
func (s *DataSnapshot) ExportJSON() ([]byte, error) { return s.value.MarshalJSON() }

// ForEach calls fn for each child of an object value in enumeration order. fn
// returns true to stop. ForEach reports whether iteration was stopped early; a
// non-object value yields false without calling fn.
func (s *DataSnapshot) ForEach(fn func(child *DataSnapshot) bool) bool {
	m := s.value.Map()
	if m == nil {
		return false
	}
	stopped := false
	m.Range(func(k string, v jsonvalue.Value) bool {
		if fn(MakeSnapshot(k, v)) {
			stopped = true
			return false
		}
		return true
	})
	return stopped
}

// Child walks a relative, possibly multi-segment path. A missing segment or a
// non-object intermediate yields a non-existent snapshot.
func (s *DataSnapshot) Child(relative string) *DataSnapshot {
	p := ParsePath(relative)
	if p.IsRoot() {
		return s
	}
	current := s.value
	for _, seg := range p.segments {
		next, ok := current.Get(seg)
		if !ok {
			return EmptySnapshot(p.Key())
		}
		current = next
	}
	return MakeSnapshot(p.Key(), current)
}

// HasChild reports whether the child at relative exists.
func (s *DataSnapshot) HasChild(relative string) bool {
	return s.Child(relative).Exists()
}

// HasChildren reports whether the value is a non-empty object.
func (s *DataSnapshot) HasChildren() bool {
	return s.NumChildren() > 0
}

// NumChildren counts object children.
func (s *DataSnapshot) NumChildren() int {
	return s.value.Map().Len()
}

// Keys lists object children in order.
func (s *DataSnapshot) Keys() []string {
	return s.value.Map().Keys()
}
