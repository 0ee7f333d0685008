package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeStableUnderPermutation(t *testing.T) {
	a := AuthorizationGroupSet{
		{Name: "reader", Variables: []string{"1"}},
		{Name: "writer", Variables: []string{"2"}},
	}
	b := AuthorizationGroupSet{
		{Name: "writer", Variables: []string{"2"}},
		{Name: "reader", Variables: []string{"1"}},
	}

	ca := a.Canonicalize(nil)
	cb := b.Canonicalize(nil)

	assert.Equal(t, ca.Serialize(), cb.Serialize())
}

func TestCanonicalizePreservesVariableOrder(t *testing.T) {
	a := AuthorizationGroupSet{
		{Name: "reader", Variables: []string{"1", "2"}},
	}
	b := AuthorizationGroupSet{
		{Name: "reader", Variables: []string{"2", "1"}},
	}

	assert.NotEqual(t, a.Canonicalize(nil).Serialize(), b.Canonicalize(nil).Serialize())
}

func TestCanonicalizeDropsIgnoredGroups(t *testing.T) {
	a := AuthorizationGroupSet{
		{Name: "reader", Variables: []string{"1"}},
		{Name: "admin", Variables: []string{"x"}},
	}

	out := a.Canonicalize([]string{"admin"})
	assert.Len(t, out, 1)
	assert.Equal(t, "reader", out[0].Name)
}

func TestParseAuthorizationGroups(t *testing.T) {
	groups, err := ParseAuthorizationGroups(`[{"name":"reader","variables":["1"]}]`)
	assert.NoError(t, err)
	assert.Equal(t, AuthorizationGroupSet{{Name: "reader", Variables: []string{"1"}}}, groups)

	groups, err = ParseAuthorizationGroups("")
	assert.NoError(t, err)
	assert.Nil(t, groups)
}
