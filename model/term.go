// Package model defines the RDF data shapes shared across the delta
// pipeline: triples and terms, property paths, type/property
// definitions, and authorization group sets.
package model

import "fmt"

// TermKind discriminates the two RDF term shapes that appear in a
// Triple's object position. Subjects and predicates are always URIs.
type TermKind byte

const (
	TermURI     TermKind = 'U'
	TermLiteral TermKind = 'L'
)

// Term is a tagged variant: exactly one of the term kinds, with the
// discriminator carried explicitly rather than inferred from which
// fields are set.
type Term struct {
	Kind     TermKind
	Value    string
	Datatype string // literal only, optional
	Language string // literal only, optional
}

func URI(value string) Term {
	return Term{Kind: TermURI, Value: value}
}

func PlainLiteral(value string) Term {
	return Term{Kind: TermLiteral, Value: value}
}

func LangLiteral(value, lang string) Term {
	return Term{Kind: TermLiteral, Value: value, Language: lang}
}

func TypedLiteral(value, datatype string) Term {
	return Term{Kind: TermLiteral, Value: value, Datatype: datatype}
}

func (t Term) IsURI() bool {
	return t.Kind == TermURI
}

func (t Term) IsLiteral() bool {
	return t.Kind == TermLiteral
}

func (t Term) String() string {
	switch t.Kind {
	case TermURI:
		return fmt.Sprintf("<%s>", t.Value)
	case TermLiteral:
		switch {
		case t.Language != "":
			return fmt.Sprintf("%q@%s", t.Value, t.Language)
		case t.Datatype != "":
			return fmt.Sprintf("%q^^<%s>", t.Value, t.Datatype)
		default:
			return fmt.Sprintf("%q", t.Value)
		}
	default:
		return "<invalid term>"
	}
}

// Triple is one insertion or deletion from an incoming delta.
type Triple struct {
	Subject    string
	Predicate  string
	Object     Term
	IsAddition bool
}

// Changeset is one element of an incoming delta's changeset array:
// spec.md §6's `{inserts: Triple[], deletes: Triple[]}`. IsAddition on
// each Triple is set by the caller when flattening, not carried on the
// wire.
type Changeset struct {
	Inserts []Triple
	Deletes []Triple
}

// RDFTypePredicate is the well-known rdf:type predicate used to select
// TypeDefinitions by class membership.
const RDFTypePredicate = "http://www.w3.org/1999/02/22-rdf-syntax-ns#type"

// UUIDPredicate is the platform UUID-tagging predicate. It carries no
// semantic bearing on path matching and is filtered out of every delta
// before processing.
const UUIDPredicate = "http://mu.semte.ch/vocabularies/core/uuid"
