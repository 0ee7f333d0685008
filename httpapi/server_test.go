package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mu-semtech/delta-index-maintainer/model"
	"github.com/mu-semtech/delta-index-maintainer/utils"
)

type fakeIngester struct {
	received []model.Changeset
}

func (f *fakeIngester) Ingest(changesets []model.Changeset) {
	f.received = changesets
}

func TestHandleUpdate_ValidBodyIsAcceptedAndForwarded(t *testing.T) {
	ing := &fakeIngester{}
	s := New(ing, utils.NewDefaultLogger(100))

	body := `[{"inserts":[{"subject":{"type":"uri","value":"http://s1"},"predicate":{"type":"uri","value":"http://p1"},"object":{"type":"uri","value":"http://o1"}}],"deletes":[]}]`
	req := httptest.NewRequest(http.MethodPost, "/update", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, ing.received, 1)
	require.Len(t, ing.received[0].Inserts, 1)
	assert.Equal(t, "http://s1", ing.received[0].Inserts[0].Subject)
	assert.Equal(t, "http://o1", ing.received[0].Inserts[0].Object.Value)
	assert.True(t, ing.received[0].Inserts[0].Object.IsURI())
}

func TestHandleUpdate_MalformedBodyRejectedNotForwarded(t *testing.T) {
	ing := &fakeIngester{}
	s := New(ing, utils.NewDefaultLogger(100))

	req := httptest.NewRequest(http.MethodPost, "/update", bytes.NewBufferString(`{"not":"a list"}`))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, ing.received)
}

func TestHandleUpdate_LiteralWithDatatypeDecodesCorrectly(t *testing.T) {
	ing := &fakeIngester{}
	s := New(ing, utils.NewDefaultLogger(100))

	body := `[{"inserts":[{"subject":{"type":"uri","value":"http://s1"},"predicate":{"type":"uri","value":"http://age"},"object":{"type":"literal","value":"42","datatype":"http://www.w3.org/2001/XMLSchema#integer"}}],"deletes":[]}]`
	req := httptest.NewRequest(http.MethodPost, "/update", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusAccepted, rec.Code)
	obj := ing.received[0].Inserts[0].Object
	assert.True(t, obj.IsLiteral())
	assert.Equal(t, "http://www.w3.org/2001/XMLSchema#integer", obj.Datatype)
}

func TestHandleUpdate_WrongMethodRejected(t *testing.T) {
	ing := &fakeIngester{}
	s := New(ing, utils.NewDefaultLogger(100))

	req := httptest.NewRequest(http.MethodGet, "/update", nil)
	rec := httptest.NewRecorder()

	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
