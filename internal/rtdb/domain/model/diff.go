package model

import (
	"rtdb-bridge/internal/shared/jsonvalue"
)

// ChildChanges is the per-child difference between two consecutive snapshots.
type ChildChanges struct {
	Added   []*DataSnapshot
	Changed []*DataSnapshot
	Removed []*DataSnapshot
}

// DiffChildren compares the object children of prev and cur. A nil prev means
// nothing was seen before, so every child of cur is reported as added. Added and
// changed follow cur's order; removed carries the last known value in prev's order.
func DiffChildren(prev, cur *DataSnapshot) ChildChanges {
	var changes ChildChanges
	var before *jsonvalue.Map
	if prev != nil {
		before = prev.value.Map()
	}
	after := cur.value.Map()

	after.Range(func(k string, v jsonvalue.Value) bool {
		old, ok := before.Get(k)
		switch {
		case !ok:
			changes.Added = append(changes.Added, MakeSnapshot(k, v))
		case !jsonvalue.Equal(old, v):
			changes.Changed = append(changes.Changed, MakeSnapshot(k, v))
		}
		return true
	})
	before.Range(func(k string, v jsonvalue.Value) bool {
		if _, ok := after.Get(k); !ok {
			changes.Removed = append(changes.Removed, MakeSnapshot(k, v))
		}
		return true
	})
	return changes
}

// For returns the snapshots relevant to a child event type.
func (c ChildChanges) For(t EventType) []*DataSnapshot {
	switch t {
	case EventChildAdded:
		return c.Added
	case EventChildChanged:
		return c.Changed
	case EventChildRemoved:
		return c.Removed
	default:
		return nil
	}
}
