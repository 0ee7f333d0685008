package sparqlquery

import (
	"testing"

	"github.com/mu-semtech/delta-index-maintainer/model"
	"github.com/stretchr/testify/assert"
)

func TestBuildDiscoveryQuery_SimpleLiteralInsert(t *testing.T) {
	// S2: inserts: [{s2, ex:title, "Hello"@en}]; property title: [ex:title]
	path := model.ParsePath([]string{"ex:title"})
	shape := Shape{Path: path, Position: 0, IsAddition: true}
	triples := []model.Triple{
		{Subject: "s2", Predicate: "ex:title", Object: model.LangLiteral("Hello", "en"), IsAddition: true},
	}

	q := BuildDiscoveryQuery([]string{"ex:Session"}, shape, triples)

	assert.Contains(t, q, `VALUES (?s ?obj) { (<s2> "Hello"@en) }`)
	assert.Contains(t, q, "?s <ex:title> ?obj .")
}

func TestBuildDiscoveryQuery_InverseAtPositionZero(t *testing.T) {
	// S3: inserts: [{child1, ex:hasChild, s1}]; property path ["^ex:hasChild"]
	path := model.ParsePath([]string{"^ex:hasChild"})
	shape := Shape{Path: path, Position: 0, IsAddition: true}
	triples := []model.Triple{
		{Subject: "child1", Predicate: "ex:hasChild", Object: model.URI("s1"), IsAddition: true},
	}

	q := BuildDiscoveryQuery([]string{"ex:Session"}, shape, triples)

	assert.Contains(t, q, `VALUES (?s ?triple_sub) { (<s1> <child1>) }`)
	assert.Contains(t, q, "?triple_sub <ex:hasChild> ?s .")
}

func TestDiscardable_LiteralAtNonTerminalForward(t *testing.T) {
	// S4: multi-hop with literal at non-terminal position is discarded.
	path := model.ParsePath([]string{"ex:author", "ex:name"})
	shape := Shape{Path: path, Position: 0, IsAddition: true}
	tr := model.Triple{Subject: "s2", Predicate: "ex:author", Object: model.PlainLiteral("literal"), IsAddition: true}

	assert.True(t, shape.Discardable(tr, nil))
}

func TestDiscardable_LiteralAtInversePositionPermitted(t *testing.T) {
	path := model.ParsePath([]string{"^ex:author", "ex:name"})
	shape := Shape{Path: path, Position: 0, IsAddition: true}
	tr := model.Triple{Subject: "s2", Predicate: "ex:author", Object: model.PlainLiteral("literal"), IsAddition: true}

	assert.False(t, shape.Discardable(tr, nil))
}

func TestDiscardable_KnownSubjectNoExtraQuery(t *testing.T) {
	path := model.ParsePath([]string{"ex:title"})
	shape := Shape{Path: path, Position: 0, IsAddition: true}
	tr := model.Triple{Subject: "s1", Predicate: "ex:title", Object: model.PlainLiteral("x"), IsAddition: true}

	known := map[string]bool{"s1": true}
	assert.True(t, shape.Discardable(tr, known))
}
