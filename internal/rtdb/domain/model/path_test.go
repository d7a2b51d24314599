package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"/", ""},
		{"users", "users"},
		{"/users/42/", "users/42"},
		{"users//42///profile", "users/42/profile"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "input %q", tt.in)
	}
}

func TestPathResolver(t *testing.T) {
	assert.Equal(t, "", CollectionOf(""))
	assert.Equal(t, "users", CollectionOf("/users/42"))

	id, ok := DocumentIDOf("users")
	assert.False(t, ok)
	assert.Empty(t, id)

	id, ok = DocumentIDOf("users/42/name")
	assert.True(t, ok)
	assert.Equal(t, "42", id)

	assert.Nil(t, NestedFieldsOf("users/42"))
	assert.Equal(t, []string{"profile", "address", "city"}, NestedFieldsOf("users/42/profile/address/city"))
}

func TestPath_Navigation(t *testing.T) {
	p := ParsePath("users/42/profile/name")
	assert.Equal(t, 4, p.Depth())
	assert.Equal(t, "name", p.Key())
	assert.Equal(t, "profile.name", p.DottedNested())
	assert.Equal(t, "users/42", p.DocumentPath().String())

	parent, ok := p.Parent()
	assert.True(t, ok)
	assert.Equal(t, "users/42/profile", parent.String())

	_, ok = ParsePath("").Parent()
	assert.False(t, ok)

	assert.Equal(t, "users/42/a/b", ParsePath("users/42").Child("a/b/").String())
	assert.Equal(t, "users", ParsePath("").Child("users").String())
}

func TestPath_ParentDoesNotAliasChild(t *testing.T) {
	p := ParsePath("a/b/c")
	parent, _ := p.Parent()
	child := parent.Child("x")
	assert.Equal(t, "a/b/c", p.String())
	assert.Equal(t, []string{"a", "b", "c"}, p.Segments())
	assert.Equal(t, "a/b/x", child.String())
}

func TestPath_PrefixAndRelated(t *testing.T) {
	users := ParsePath("users")
	ann := ParsePath("users/42/name")
	orders := ParsePath("orders/1")

	assert.True(t, ann.HasPrefix(users))
	assert.False(t, users.HasPrefix(ann))
	assert.True(t, users.Related(ann))
	assert.True(t, ann.Related(users))
	assert.False(t, orders.Related(users))
	assert.True(t, users.HasPrefix(ParsePath("")))
	assert.False(t, ParsePath("users2").HasPrefix(users))
}

func TestPath_HasDottedField(t *testing.T) {
	assert.False(t, ParsePath("users/42/profile/name").HasDottedField())
	assert.False(t, ParsePath("users.v2/ann.smith").HasDottedField())
	assert.True(t, ParsePath("users/42/a.b").HasDottedField())
	assert.True(t, ParsePath("users/42/profile/v1.0/x").HasDottedField())
	assert.Equal(t, "a.b", ParsePath("users/42/a.b").DottedNested())
}
