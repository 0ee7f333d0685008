// Package host aggregates the dependencies every core component needs,
// the way the teacher's host.Host interface bundles a chotki replica's
// storage/logging/commit surface for its subsystems. Here the surface
// is an RDF store, a search engine, and an extractor, not an embedded
// object store — the aggregation pattern transfers, the method set does
// not.
package host

import (
	"context"

	"github.com/mu-semtech/delta-index-maintainer/model"
	"github.com/mu-semtech/delta-index-maintainer/utils"
)

// RDFQuerier issues queries against the graph store, either sudo or
// scoped to a set of authorization groups; it has no method for the
// default mode (neither header set).
type RDFQuerier interface {
	// SelectSudo runs query unrestricted.
	SelectSudo(ctx context.Context, query string) (Bindings, error)
	// SelectScoped runs query restricted to groups.
	SelectScoped(ctx context.Context, query string, groups model.AuthorizationGroupSet) (Bindings, error)
	// AskSudo runs a trivial ASK query for health checking.
	AskSudo(ctx context.Context, query string) (bool, error)
	// UpdateSudo runs a SPARQL UPDATE (INSERT/DELETE DATA) unrestricted,
	// used by the Index Manager to persist registry triples (spec.md §6).
	UpdateSudo(ctx context.Context, update string) error
}

// Bindings is one SPARQL SELECT result set: a row per solution, each
// row a var-name → Term map.
type Bindings []map[string]model.Term

// SearchEngine is the thin remote index API contract (out of scope to
// design internally, per spec.md §1 — only the call surface the core
// needs is specified here).
type SearchEngine interface {
	CreateIndex(ctx context.Context, name string, settings map[string]any) error
	DeleteIndex(ctx context.Context, name string) error
	UpsertDocument(ctx context.Context, index, id string, doc map[string]any) error
	DeleteDocument(ctx context.Context, index, id string) error
}

// Extractor converts a file blob to plain text (spec.md §4.3).
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Host is the shared dependency surface passed to every core component,
// grounded on host.Host's interface-aggregation pattern.
type Host interface {
	RDF() RDFQuerier
	Search() SearchEngine
	Extractor() Extractor
	Logger() utils.Logger
	Config() Config
}

// Config is the subset of the §6 configuration surface every component
// reads; the concrete implementation lives in package config.
type Config interface {
	UpdateWaitInterval() int // minutes
	NumberOfThreads() int
	DeltaBatchSize() int
	IgnoredAllowedGroups() []string
	AttachmentsPathBase() string
	PersistIndexes() bool
	AutomaticIndexUpdates() bool
}
