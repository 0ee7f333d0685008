// Package sparqlquery builds the SPARQL fragments and full SELECT
// queries spec.md §4.1.1 and §4.3 describe: property-path composition,
// term formatting, and the batched VALUES discovery query.
//
// Grounded on protocol/tlv.go's Record/Concat/Append small composable
// fragment builders, generalized from TLV byte records to SPARQL string
// fragments.
package sparqlquery

import (
	"strings"

	"github.com/mu-semtech/delta-index-maintainer/model"
)

// FormatTerm renders a Term the way it must appear in a SPARQL pattern
// or VALUES row: URIs as <uri>, literals as "value", with @lang or
// ^^<dt> suffixes as applicable.
func FormatTerm(t model.Term) string {
	return t.String()
}

// FormatURI renders a bare URI string in angle brackets.
func FormatURI(uri string) string {
	return model.URI(uri).String()
}

// ComposePath renders a property path using SPARQL's "/" sequence
// operator and "^" inverse prefix, e.g. "^<p1>/<p2>".
func ComposePath(path []model.PathEdge) string {
	parts := make([]string, len(path))
	for i, e := range path {
		if e.Inverse {
			parts[i] = "^" + FormatURI(e.Predicate)
		} else {
			parts[i] = FormatURI(e.Predicate)
		}
	}
	return strings.Join(parts, "/")
}

// MakePredicateString is the spec's make_predicate_string: the full
// path expression used to bind one property's values starting from a
// given subject variable.
func MakePredicateString(subjectVar string, path []model.PathEdge, objectVar string) string {
	var b strings.Builder
	b.WriteString("?")
	b.WriteString(subjectVar)
	b.WriteString(" ")
	b.WriteString(ComposePath(path))
	b.WriteString(" ?")
	b.WriteString(objectVar)
	b.WriteString(" .")
	return b.String()
}
