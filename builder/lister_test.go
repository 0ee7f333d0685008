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

type pagedRDF struct {
	pages [][]string // page i's subject values
	calls int
}

func (p *pagedRDF) SelectSudo(ctx context.Context, query string) (host.Bindings, error) { return nil, nil }

func (p *pagedRDF) SelectScoped(ctx context.Context, query string, groups model.AuthorizationGroupSet) (host.Bindings, error) {
	defer func() { p.calls++ }()
	if p.calls >= len(p.pages) {
		return host.Bindings{}, nil
	}
	var out host.Bindings
	for _, s := range p.pages[p.calls] {
		out = append(out, map[string]model.Term{"s": model.URI(s)})
	}
	return out, nil
}

func (p *pagedRDF) AskSudo(ctx context.Context, query string) (bool, error) { return false, nil }

func (p *pagedRDF) UpdateSudo(ctx context.Context, update string) error { return nil }

func TestListRootSubjects_PaginatesUntilShortPage(t *testing.T) {
	rdf := &pagedRDF{pages: [][]string{
		{"s1", "s2"},
		{"s3"},
	}}
	l := NewLister(rdf, utils.NewDefaultLogger(100))
	typeDef := model.TypeDefinition{Name: "sessions", RDFTypes: []string{"ex:Session"}}

	ch, err := l.ListRootSubjects(context.Background(), typeDef, nil, 2, 10)
	require.NoError(t, err)

	var got []string
	for s := range ch {
		got = append(got, s)
	}
	assert.Equal(t, []string{"s1", "s2", "s3"}, got)
	assert.Equal(t, 2, rdf.calls)
}

func TestListRootSubjects_RejectsTypeWithoutRDFTypes(t *testing.T) {
	l := NewLister(&pagedRDF{}, utils.NewDefaultLogger(100))
	_, err := l.ListRootSubjects(context.Background(), model.TypeDefinition{Name: "empty"}, nil, 10, 10)
	assert.Error(t, err)
}
