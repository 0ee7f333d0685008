package rdfclient

import (
	"encoding/json"

	pkgerrors "github.com/pkg/errors"
	"github.com/mu-semtech/delta-index-maintainer/host"
	"github.com/mu-semtech/delta-index-maintainer/model"
)

// sparqlBinding is one variable's value in the W3C SPARQL 1.1 Query
// Results JSON Format.
type sparqlBinding struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Datatype string `json:"datatype,omitempty"`
	Lang     string `json:"xml:lang,omitempty"`
}

type sparqlResultsDoc struct {
	Results struct {
		Bindings []map[string]sparqlBinding `json:"bindings"`
	} `json:"results"`
}

func parseSparqlResults(body []byte) (host.Bindings, error) {
	var doc sparqlResultsDoc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, pkgerrors.Wrap(err, "decode sparql results")
	}

	out := make(host.Bindings, 0, len(doc.Results.Bindings))
	for _, row := range doc.Results.Bindings {
		converted := make(map[string]model.Term, len(row))
		for k, v := range row {
			converted[k] = bindingToTerm(v)
		}
		out = append(out, converted)
	}
	return out, nil
}

func bindingToTerm(b sparqlBinding) model.Term {
	switch b.Type {
	case "uri":
		return model.URI(b.Value)
	case "typed-literal":
		return model.TypedLiteral(b.Value, b.Datatype)
	case "literal":
		if b.Datatype != "" {
			return model.TypedLiteral(b.Value, b.Datatype)
		}
		if b.Lang != "" {
			return model.LangLiteral(b.Value, b.Lang)
		}
		return model.PlainLiteral(b.Value)
	case "bnode":
		return model.URI("_:" + b.Value)
	default:
		return model.PlainLiteral(b.Value)
	}
}
