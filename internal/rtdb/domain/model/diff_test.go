package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func keysOf(snaps []*DataSnapshot) []string {
	out := make([]string, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, s.Key())
	}
	return out
}

func TestDiffChildren_InitialReportsAllAdded(t *testing.T) {
	cur := MakeSnapshot("users", mustParse(t, `{"b":{"n":1},"a":{"n":2}}`))
	changes := DiffChildren(nil, cur)
	assert.Equal(t, []string{"b", "a"}, keysOf(changes.Added))
	assert.Empty(t, changes.Changed)
	assert.Empty(t, changes.Removed)
}

func TestDiffChildren_AddedChangedRemoved(t *testing.T) {
	prev := MakeSnapshot("users", mustParse(t, `{"a":{"n":1},"b":{"n":2},"c":3}`))
	cur := MakeSnapshot("users", mustParse(t, `{"b":{"n":20},"a":{"n":1},"d":4}`))

	changes := DiffChildren(prev, cur)
	assert.Equal(t, []string{"d"}, keysOf(changes.For(EventChildAdded)))
	assert.Equal(t, []string{"b"}, keysOf(changes.For(EventChildChanged)))
	assert.Equal(t, []string{"c"}, keysOf(changes.For(EventChildRemoved)))
	assert.Equal(t, float64(3), changes.Removed[0].Val())
	assert.Nil(t, changes.For(EventValue))
}

func TestDiffChildren_KeyOrderIsNotAChange(t *testing.T) {
	prev := MakeSnapshot("k", mustParse(t, `{"a":{"x":1,"y":2}}`))
	cur := MakeSnapshot("k", mustParse(t, `{"a":{"y":2,"x":1}}`))
	changes := DiffChildren(prev, cur)
	assert.Empty(t, changes.Added)
	assert.Empty(t, changes.Changed)
	assert.Empty(t, changes.Removed)
}

func TestDiffChildren_NonExistentSnapshots(t *testing.T) {
	prev := MakeSnapshot("k", mustParse(t, `{"a":1}`))
	changes := DiffChildren(prev, EmptySnapshot("k"))
	assert.Equal(t, []string{"a"}, keysOf(changes.Removed))

	changes = DiffChildren(EmptySnapshot("k"), EmptySnapshot("k"))
	assert.Empty(t, changes.Added)
}
