package builder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mu-semtech/delta-index-maintainer/host"
	"github.com/mu-semtech/delta-index-maintainer/model"
	"github.com/mu-semtech/delta-index-maintainer/utils"
)

type fakeRDF struct {
	// responses keyed by the exact query string.
	responses map[string]host.Bindings
}

func (f *fakeRDF) SelectSudo(ctx context.Context, query string) (host.Bindings, error) { return nil, nil }

func (f *fakeRDF) SelectScoped(ctx context.Context, query string, groups model.AuthorizationGroupSet) (host.Bindings, error) {
	return f.responses[query], nil
}

func (f *fakeRDF) AskSudo(ctx context.Context, query string) (bool, error) { return false, nil }

func (f *fakeRDF) UpdateSudo(ctx context.Context, update string) error { return nil }

type fakeExtractor struct {
	text string
}

func (f *fakeExtractor) Extract(ctx context.Context, path string) (string, error) {
	return f.text, nil
}

func uriQuery(subject string, predicate string) string {
	return "SELECT ?value WHERE { <" + subject + "> <" + predicate + "> ?value . }"
}

func TestBuildDocument_SimplePropertyReducesToScalar(t *testing.T) {
	typeDef := model.TypeDefinition{
		Name:     "sessions",
		RDFTypes: []string{"ex:Session"},
		Properties: []model.PropertyDefinition{
			{Name: "title", Path: model.ParsePath([]string{"ex:title"}), Kind: model.KindSimple},
		},
	}
	rdf := &fakeRDF{responses: map[string]host.Bindings{
		uriQuery("s1", model.RDFTypePredicate): {{"value": model.URI("ex:Session")}},
		uriQuery("s1", model.UUIDPredicate):    {{"value": model.PlainLiteral("abc-123")}},
		uriQuery("s1", "ex:title"):             {{"value": model.PlainLiteral("Hello")}},
	}}
	b := New(model.NewTypeRegistry([]model.TypeDefinition{typeDef}), rdf, &fakeExtractor{}, "", utils.NewDefaultLogger(100))

	doc, err := b.BuildDocument(context.Background(), "s1", typeDef, model.AuthorizationGroupSet{})
	require.NoError(t, err)

	assert.Equal(t, "s1", doc["uri"])
	assert.Equal(t, "abc-123", doc["uuid"])
	assert.Equal(t, "Hello", doc["title"])
}

func TestBuildDocument_MultipleValuesReduceToList(t *testing.T) {
	typeDef := model.TypeDefinition{
		Name:     "sessions",
		RDFTypes: []string{"ex:Session"},
		Properties: []model.PropertyDefinition{
			{Name: "tags", Path: model.ParsePath([]string{"ex:tag"}), Kind: model.KindSimple},
		},
	}
	rdf := &fakeRDF{responses: map[string]host.Bindings{
		uriQuery("s1", model.RDFTypePredicate): {{"value": model.URI("ex:Session")}},
		uriQuery("s1", model.UUIDPredicate):    {},
		uriQuery("s1", "ex:tag"): {
			{"value": model.PlainLiteral("a")},
			{"value": model.PlainLiteral("b")},
		},
	}}
	b := New(model.NewTypeRegistry([]model.TypeDefinition{typeDef}), rdf, &fakeExtractor{}, "", utils.NewDefaultLogger(100))

	doc, err := b.BuildDocument(context.Background(), "s1", typeDef, model.AuthorizationGroupSet{})
	require.NoError(t, err)

	assert.Nil(t, doc["uuid"])
	assert.Equal(t, []any{"a", "b"}, doc["tags"])
}

func TestBuildDocument_LanguageStringGroupsByLanguage(t *testing.T) {
	typeDef := model.TypeDefinition{
		Name:     "sessions",
		RDFTypes: []string{"ex:Session"},
		Properties: []model.PropertyDefinition{
			{Name: "label", Path: model.ParsePath([]string{"ex:label"}), Kind: model.KindLanguageString},
		},
	}
	rdf := &fakeRDF{responses: map[string]host.Bindings{
		uriQuery("s1", model.RDFTypePredicate): {{"value": model.URI("ex:Session")}},
		uriQuery("s1", model.UUIDPredicate):    {},
		uriQuery("s1", "ex:label"): {
			{"value": model.LangLiteral("Hello", "en")},
			{"value": model.LangLiteral("Bonjour", "fr")},
			{"value": model.LangLiteral("Hi", "en")},
		},
	}}
	b := New(model.NewTypeRegistry([]model.TypeDefinition{typeDef}), rdf, &fakeExtractor{}, "", utils.NewDefaultLogger(100))

	doc, err := b.BuildDocument(context.Background(), "s1", typeDef, model.AuthorizationGroupSet{})
	require.NoError(t, err)

	label := doc["label"].(map[string]any)
	assert.ElementsMatch(t, []string{"Hello", "Hi"}, label["en"])
	assert.Equal(t, "Bonjour", label["fr"])
}

func TestBuildDocument_SubjectNoLongerOfTypeReturnsNilDoc(t *testing.T) {
	typeDef := model.TypeDefinition{
		Name:     "sessions",
		RDFTypes: []string{"ex:Session"},
		Properties: []model.PropertyDefinition{
			{Name: "title", Path: model.ParsePath([]string{"ex:title"}), Kind: model.KindSimple},
		},
	}
	rdf := &fakeRDF{responses: map[string]host.Bindings{
		uriQuery("s1", model.RDFTypePredicate): {{"value": model.URI("ex:Meeting")}},
	}}
	b := New(model.NewTypeRegistry([]model.TypeDefinition{typeDef}), rdf, &fakeExtractor{}, "", utils.NewDefaultLogger(100))

	doc, err := b.BuildDocument(context.Background(), "s1", typeDef, model.AuthorizationGroupSet{})
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestSmartMerge_ListAndScalarUnion(t *testing.T) {
	a := map[string]any{"tags": []any{"a", "b"}}
	b := map[string]any{"tags": "b"}

	merged, err := smartMerge(a, b)
	require.NoError(t, err)
	assert.ElementsMatch(t, []any{"a", "b"}, merged["tags"])
}

func TestSmartMerge_TwoScalarsBecomeDedupedList(t *testing.T) {
	a := map[string]any{"name": "x"}
	b := map[string]any{"name": "y"}

	merged, err := smartMerge(a, b)
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y"}, merged["name"])
}

func TestSmartMerge_MapWithNonMapIsConfigError(t *testing.T) {
	a := map[string]any{"nested": map[string]any{"x": 1}}
	b := map[string]any{"nested": "not a map"}

	_, err := smartMerge(a, b)
	assert.Error(t, err)
}
