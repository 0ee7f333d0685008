// Package httpapi is the delta ingestion endpoint of spec.md §6: a
// single POST /update route that accepts a changeset array, decodes
// it into model.Triple/model.Changeset, and hands it to the Delta
// Handler for asynchronous processing.
//
// Grounded on swagger/main.go, the teacher's only HTTP-serving code —
// a bare net/http.ServeMux with no router dependency. The teacher's
// go.mod carries no HTTP router or JSON library beyond the standard
// library for its one HTTP surface, so this package follows suit
// rather than introducing a dependency the corpus never reaches for.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/mu-semtech/delta-index-maintainer/model"
	"github.com/mu-semtech/delta-index-maintainer/utils"
)

// Ingester is the Delta Handler's entry point as seen from the HTTP
// layer.
type Ingester interface {
	Ingest(changesets []model.Changeset)
}

type wireTerm struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

type wireTriple struct {
	Subject   wireTerm `json:"subject"`
	Predicate wireTerm `json:"predicate"`
	Object    wireTerm `json:"object"`
}

type wireChangeset struct {
	Inserts []wireTriple `json:"inserts"`
	Deletes []wireTriple `json:"deletes"`
}

func toTriple(w wireTriple) model.Triple {
	var object model.Term
	switch {
	case w.Object.Type == "uri":
		object = model.URI(w.Object.Value)
	case w.Object.Datatype != "":
		object = model.TypedLiteral(w.Object.Value, w.Object.Datatype)
	case w.Object.Lang != "":
		object = model.LangLiteral(w.Object.Value, w.Object.Lang)
	default:
		object = model.PlainLiteral(w.Object.Value)
	}
	return model.Triple{
		Subject:   w.Subject.Value,
		Predicate: w.Predicate.Value,
		Object:    object,
	}
}

func toChangeset(w wireChangeset) model.Changeset {
	cs := model.Changeset{
		Inserts: make([]model.Triple, len(w.Inserts)),
		Deletes: make([]model.Triple, len(w.Deletes)),
	}
	for i, t := range w.Inserts {
		cs.Inserts[i] = toTriple(t)
	}
	for i, t := range w.Deletes {
		cs.Deletes[i] = toTriple(t)
	}
	return cs
}

// Server wires the /update route to an Ingester.
type Server struct {
	ingester Ingester
	log      utils.Logger
}

func New(ingester Ingester, log utils.Logger) *Server {
	return &Server{ingester: ingester, log: log}
}

// Handler builds the HTTP handler. Its route set is deliberately
// limited to delta ingestion — spec.md §5 scopes the search-request
// servicing pool itself as external to this program.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/update", s.handleUpdate)
	return mux
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var wire []wireChangeset
	if err := json.NewDecoder(r.Body).Decode(&wire); err != nil {
		s.log.WarnCtx(r.Context(), "malformed delta body, discarding", "err", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	changesets := make([]model.Changeset, len(wire))
	for i, cs := range wire {
		changesets[i] = toChangeset(cs)
	}

	s.ingester.Ingest(changesets)
	w.WriteHeader(http.StatusAccepted)
}
