package registry

import (
	"context"
	"testing"
	"time"

	"github.com/mu-semtech/delta-index-maintainer/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister_LookupRoundTrip(t *testing.T) {
	r := New(nil)
	groups := model.AuthorizationGroupSet{{Name: "g1", Variables: []string{"1"}}}.Canonicalize(nil)
	si := NewSearchIndex("uri1", "sessions-abc", "session", groups, false)

	r.Register(si)

	found, ok := r.Lookup("session", groups)
	require.True(t, ok)
	assert.Same(t, si, found)
}

func TestWaitUntilReady_BlocksUntilValidAndTimesOutWhileUpdating(t *testing.T) {
	si := NewSearchIndex("uri1", "sessions-abc", "session", nil, false)

	si.SetStatus(StatusUpdating)
	ok := si.WaitUntilReady(context.Background(), 20*time.Millisecond)
	assert.False(t, ok, "must time out while updating")

	si.SetStatus(StatusValid)
	ok = si.WaitUntilReady(context.Background(), 20*time.Millisecond)
	assert.True(t, ok, "must return immediately once valid")
}

func TestForTypeName_FiltersAcrossPartitions(t *testing.T) {
	r := New(nil)
	g1 := model.AuthorizationGroupSet{{Name: "g1"}}.Canonicalize(nil)
	g2 := model.AuthorizationGroupSet{{Name: "g2"}}.Canonicalize(nil)
	r.Register(NewSearchIndex("u1", "session-1", "session", g1, false))
	r.Register(NewSearchIndex("u2", "session-2", "session", g2, false))
	r.Register(NewSearchIndex("u3", "person-1", "person", g1, false))

	got := r.ForTypeName("session")
	assert.Len(t, got, 2)
}

func TestUnregister_RemovesFromLookup(t *testing.T) {
	r := New(nil)
	si := NewSearchIndex("u1", "session-1", "session", nil, false)
	r.Register(si)
	r.Unregister(si)

	_, ok := r.Lookup("session", nil)
	assert.False(t, ok)
}

func TestCanonicalize_DropsIgnoredGroups(t *testing.T) {
	r := New([]string{"internal"})
	groups := model.AuthorizationGroupSet{{Name: "internal"}, {Name: "public"}}
	got := r.Canonicalize(groups)
	require.Len(t, got, 1)
	assert.Equal(t, "public", got[0].Name)
}
