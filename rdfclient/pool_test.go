package rdfclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mu-semtech/delta-index-maintainer/model"
	"github.com/mu-semtech/delta-index-maintainer/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelectSudo_SetsSudoHeaderAndParsesBindings(t *testing.T) {
	var gotSudo string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSudo = r.Header.Get(headerSudo)
		w.Header().Set("Content-Type", "application/sparql-results+json")
		w.Write([]byte(`{"results":{"bindings":[{"s":{"type":"uri","value":"http://ex/1"}}]}}`))
	}))
	defer srv.Close()

	p := NewPool(srv.URL, 2, 0, utils.NewDefaultLogger(100))
	rows, err := p.SelectSudo(context.Background(), "SELECT ?s WHERE { ?s ?p ?o }")
	require.NoError(t, err)
	assert.Equal(t, "true", gotSudo)
	require.Len(t, rows, 1)
	assert.Equal(t, "http://ex/1", rows[0]["s"].Value)
	assert.True(t, rows[0]["s"].IsURI())
}

func TestSelectScoped_SetsAllowedGroupsHeader(t *testing.T) {
	var gotGroups string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotGroups = r.Header.Get(headerGroups)
		w.Write([]byte(`{"results":{"bindings":[]}}`))
	}))
	defer srv.Close()

	p := NewPool(srv.URL, 2, 0, utils.NewDefaultLogger(100))
	groups, err := model.ParseAuthorizationGroups(`[{"name":"g1","variables":["1"]}]`)
	require.NoError(t, err)
	_, err = p.SelectScoped(context.Background(), "SELECT ?s WHERE { ?s ?p ?o }", groups)
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"g1","variables":["1"]}]`, gotGroups)
}

func TestAskSudo_ParsesBoolean(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"boolean":true}`))
	}))
	defer srv.Close()

	p := NewPool(srv.URL, 1, 0, utils.NewDefaultLogger(100))
	ok, err := p.AskSudo(context.Background(), "ASK { ?s ?p ?o }")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPool_ExhaustionTimesOut(t *testing.T) {
	p := NewPool("http://unused.invalid", 1, 1, nil)
	require.NoError(t, p.acquire(context.Background()))
	// second acquire with no release pending must time out quickly.
	err := p.acquire(context.Background())
	assert.Error(t, err)
}
