package searchclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mu-semtech/delta-index-maintainer/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertDocument_PutsToDocPath(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, 2, 0, utils.NewDefaultLogger(100))
	err := c.UpsertDocument(context.Background(), "sessions", "abc", map[string]any{"title": "hi"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/sessions/_doc/abc", gotPath)
}

func TestDeleteIndex_NotFoundIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, 2, 0, utils.NewDefaultLogger(100))
	err := c.DeleteIndex(context.Background(), "gone")
	assert.NoError(t, err)
}

func TestCreateIndex_BadRequestPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte("bad mapping"))
	}))
	defer srv.Close()

	c := New(srv.URL, 2, 0, utils.NewDefaultLogger(100))
	err := c.CreateIndex(context.Background(), "sessions", map[string]any{})
	assert.Error(t, err)
}
