// Package indexmanager is the Index Manager of spec.md §4.4: it owns
// fetchIndexes/invalidateIndexes/removeIndexes/waitUntilReady and the
// eager-index startup build.
//
// Grounded on indexes/index_manager.go's CheckReindexTasks driver loop
// and runReindexTask state transitions, rewritten around one
// build-per-index instead of one-task-per-class-field.
package indexmanager

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mu-semtech/delta-index-maintainer/errs"
	"github.com/mu-semtech/delta-index-maintainer/host"
	"github.com/mu-semtech/delta-index-maintainer/model"
	"github.com/mu-semtech/delta-index-maintainer/registry"
	"github.com/mu-semtech/delta-index-maintainer/sparqlquery"
	"github.com/mu-semtech/delta-index-maintainer/utils"
)

// Builder materializes one document for a root subject against a type
// definition, scoped to a set of allowed groups — the contract
// package builder implements.
type Builder interface {
	BuildDocument(ctx context.Context, subject string, typeDef model.TypeDefinition, groups model.AuthorizationGroupSet) (map[string]any, error)
}

// SubjectLister enumerates candidate root subjects for a bulk build,
// paged by batch_size/max_batches (spec.md §6).
type SubjectLister interface {
	ListRootSubjects(ctx context.Context, typeDef model.TypeDefinition, groups model.AuthorizationGroupSet, batchSize, maxBatches int) (<-chan string, error)
}

// EagerGroupCombination is one configured eager_indexing_groups entry.
type EagerGroupCombination struct {
	Groups model.AuthorizationGroupSet
}

var ReindexDuration = registry.BuildDuration

var BulkBuildResults = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "delta_index_maintainer",
	Subsystem: "index_manager",
	Name:      "bulk_build_results_total",
}, []string{"type_name", "result"})

// Manager is the Index Manager. It is safe for concurrent use.
type Manager struct {
	reg               *registry.Registry
	host              host.Host
	builder           Builder
	lister            SubjectLister
	batchSize         int
	maxBatches        int
	defaultSettings   map[string]any
	eagerCombinations []EagerGroupCombination
	namePrefix        string
	log               utils.Logger
}

func New(reg *registry.Registry, h host.Host, builder Builder, lister SubjectLister, namePrefix string, batchSize, maxBatches int, defaultSettings map[string]any, eager []EagerGroupCombination) *Manager {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Manager{
		reg:               reg,
		host:              h,
		builder:           builder,
		lister:            lister,
		batchSize:         batchSize,
		maxBatches:        maxBatches,
		defaultSettings:   defaultSettings,
		eagerCombinations: eager,
		namePrefix:        namePrefix,
		log:               h.Logger(),
	}
}

func synthesizePhysicalName(prefix, typeName string) string {
	return fmt.Sprintf("%s-%s-%s", prefix, typeName, uuid.Must(uuid.NewV7()).String())
}

// FetchIndexes implements spec.md §4.4's fetchIndexes. It returns the
// SearchIndex (or, for composite-free single-partition lookups, the
// single index) for typeName under the caller's canonicalized groups,
// creating and/or rebuilding it as necessary.
func (m *Manager) FetchIndexes(ctx context.Context, typeDef model.TypeDefinition, allowedGroups model.AuthorizationGroupSet, forceUpdate bool) (*registry.SearchIndex, error) {
	canonical := m.reg.Canonicalize(allowedGroups)

	si, ok := m.reg.Lookup(typeDef.Name, canonical)
	if !ok {
		name := synthesizePhysicalName(m.namePrefix, typeDef.Name)
		if err := m.host.Search().CreateIndex(ctx, name, m.defaultSettings); err != nil && errs.Classify(err) != errs.KindAlreadyExists {
			return nil, pkgerrors.Wrap(err, "create physical index")
		}
		si = registry.NewSearchIndex(name, name, typeDef.Name, canonical, false)
		m.reg.Register(si)

		if m.host.Config().PersistIndexes() {
			if err := m.persistRegistryEntry(ctx, si); err != nil {
				m.log.WarnCtx(ctx, "failed to persist registry entry", "index", si.Name, "err", err)
			}
		}
	}

	if si.Status() == registry.StatusInvalid || forceUpdate {
		if err := m.rebuild(ctx, si, typeDef, canonical); err != nil {
			return si, err
		}
	}

	return si, nil
}

func (m *Manager) rebuild(ctx context.Context, si *registry.SearchIndex, typeDef model.TypeDefinition, groups model.AuthorizationGroupSet) error {
	si.SetStatus(registry.StatusUpdating)
	start := time.Now()

	err := m.bulkBuild(ctx, si, typeDef, groups)

	registry.BuildDuration.WithLabelValues(typeDef.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		BulkBuildResults.WithLabelValues(typeDef.Name, "failure").Inc()
		si.SetStatus(registry.StatusInvalid)
		return err
	}
	BulkBuildResults.WithLabelValues(typeDef.Name, "success").Inc()
	si.SetStatus(registry.StatusValid)
	return nil
}

func (m *Manager) bulkBuild(ctx context.Context, si *registry.SearchIndex, typeDef model.TypeDefinition, groups model.AuthorizationGroupSet) error {
	subjects, err := m.lister.ListRootSubjects(ctx, typeDef, groups, m.batchSize, m.maxBatches)
	if err != nil {
		return pkgerrors.Wrap(err, "list root subjects for bulk build")
	}
	for subject := range subjects {
		doc, err := m.builder.BuildDocument(ctx, subject, typeDef, groups)
		if err != nil {
			m.log.WarnCtx(ctx, "skipping subject during bulk build", "subject", subject, "err", err)
			continue
		}
		if doc == nil {
			continue
		}
		if err := m.host.Search().UpsertDocument(ctx, si.Name, subject, doc); err != nil {
			m.log.WarnCtx(ctx, "failed to upsert during bulk build", "subject", subject, "err", err)
		}
	}
	return nil
}

// UpdateDocument implements the update half of spec.md §4.2's worker
// handler contract for one SearchIndex: build the document scoped to
// si.AllowedGroups and upsert it, or — if the subject is no longer of
// the required type, signalled by an empty build result — remove any
// existing document for it.
func (m *Manager) UpdateDocument(ctx context.Context, si *registry.SearchIndex, typeDef model.TypeDefinition, subject string) error {
	doc, err := m.builder.BuildDocument(ctx, subject, typeDef, si.AllowedGroups)
	if err != nil {
		return pkgerrors.Wrap(err, "build document")
	}
	if doc == nil {
		return m.host.Search().DeleteDocument(ctx, si.Name, subject)
	}
	return m.host.Search().UpsertDocument(ctx, si.Name, subject, doc)
}

// RemoveDocument implements the delete half of the worker handler
// contract: unconditionally remove subject's document from si.
func (m *Manager) RemoveDocument(ctx context.Context, si *registry.SearchIndex, subject string) error {
	return m.host.Search().DeleteDocument(ctx, si.Name, subject)
}

// InvalidateIndexes implements invalidateIndexes: flip matching
// in-memory statuses to Invalid, leaving the engine and registry
// entries untouched.
func (m *Manager) InvalidateIndexes(typeName string, allowedGroups model.AuthorizationGroupSet, hasGroups bool) {
	for _, si := range m.reg.Match(typeName, allowedGroups, hasGroups) {
		si.SetStatus(registry.StatusInvalid)
	}
}

// RemoveIndexes implements removeIndexes: delete matching physical
// engine indexes, their registry entries, and (if configured) their
// RDF-persisted registry triples.
func (m *Manager) RemoveIndexes(ctx context.Context, typeName string, allowedGroups model.AuthorizationGroupSet, hasGroups bool) error {
	var firstErr error
	for _, si := range m.reg.Match(typeName, allowedGroups, hasGroups) {
		if err := m.host.Search().DeleteIndex(ctx, si.Name); err != nil && firstErr == nil {
			firstErr = err
		}
		if m.host.Config().PersistIndexes() {
			del := fmt.Sprintf(`DELETE WHERE { %s ?p ?o . }`, sparqlquery.FormatURI(si.URI))
			if err := m.host.RDF().UpdateSudo(ctx, del); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		m.reg.Unregister(si)
	}
	return firstErr
}

// WaitUntilReady blocks until index leaves StatusUpdating, per spec.md
// §4.4's readiness gate (default timeout 60s).
func (m *Manager) WaitUntilReady(ctx context.Context, si *registry.SearchIndex, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return si.WaitUntilReady(ctx, timeout)
}

// BuildEagerIndexes runs at startup: for each configured eager group
// combination and each configured type, pre-create and build the
// SearchIndex (spec.md §4.4's "Eager indexes").
func (m *Manager) BuildEagerIndexes(ctx context.Context, types []model.TypeDefinition) {
	for _, typeDef := range types {
		if typeDef.IsComposite() {
			continue
		}
		for _, combo := range m.eagerCombinations {
			si, err := m.FetchIndexes(ctx, typeDef, combo.Groups, false)
			if err != nil {
				m.log.ErrorCtx(ctx, "eager index build failed", "type", typeDef.Name, "err", err)
				continue
			}
			si.IsEager = true
		}
	}
}

// registryResourcePredicate namespace mirrors the platform's own
// vocabulary style (mu.semte.ch core) used elsewhere in this module
// for the uuid predicate.
const registryResourcePredicate = "http://mu.semte.ch/vocabularies/ext/searchIndex"

// LoadRegistryEntries implements the read half of persist_indexes
// (spec.md §6, "Persisted state": "Registry triples in the RDF store"):
// it SELECTs every previously persisted SearchIndex resource and
// registers it in memory, so a restart reuses the existing physical
// index name instead of FetchIndexes synthesizing (and orphaning) a
// new one. Restored entries start StatusInvalid, same as a freshly
// created one, so the first fetch (or the eager build below) refreshes
// their contents before serving them.
func (m *Manager) LoadRegistryEntries(ctx context.Context) error {
	query := fmt.Sprintf(
		`SELECT ?s ?name ?typeName ?groups ?isEager WHERE { ?s a %s ; %s ?name ; %s ?typeName ; %s ?groups ; %s ?isEager . }`,
		sparqlquery.FormatURI(registryResourcePredicate),
		sparqlquery.FormatURI(registryNamePredicate),
		sparqlquery.FormatURI(registryTypeNamePredicate),
		sparqlquery.FormatURI(registryAllowedGroupsPredicate),
		sparqlquery.FormatURI(registryIsEagerPredicate),
	)
	bindings, err := m.host.RDF().SelectSudo(ctx, query)
	if err != nil {
		return pkgerrors.Wrap(err, "load persisted registry entries")
	}
	for _, row := range bindings {
		uri, name, typeName, groupsJSON, isEagerStr := row["s"], row["name"], row["typeName"], row["groups"], row["isEager"]
		groups, err := model.ParseAuthorizationGroups(groupsJSON.Value)
		if err != nil {
			m.log.WarnCtx(ctx, "skipping registry entry with malformed allowed groups", "index", name.Value, "err", err)
			continue
		}
		isEager, _ := strconv.ParseBool(isEagerStr.Value)
		si := registry.NewSearchIndex(uri.Value, name.Value, typeName.Value, groups, isEager)
		m.reg.Register(si)
	}
	return nil
}

func (m *Manager) persistRegistryEntry(ctx context.Context, si *registry.SearchIndex) error {
	insert := fmt.Sprintf(
		`INSERT DATA { %s a %s ; %s %s ; %s %s ; %s %s ; %s %s . }`,
		sparqlquery.FormatURI(si.URI),
		sparqlquery.FormatURI(registryResourcePredicate),
		sparqlquery.FormatURI(registryNamePredicate), model.PlainLiteral(si.Name).String(),
		sparqlquery.FormatURI(registryTypeNamePredicate), model.PlainLiteral(si.TypeName).String(),
		sparqlquery.FormatURI(registryAllowedGroupsPredicate), model.PlainLiteral(si.AllowedGroups.Serialize()).String(),
		sparqlquery.FormatURI(registryIsEagerPredicate), model.PlainLiteral(fmt.Sprintf("%v", si.IsEager)).String(),
	)
	return m.host.RDF().UpdateSudo(ctx, insert)
}

const (
	registryNamePredicate          = "http://mu.semte.ch/vocabularies/ext/indexName"
	registryTypeNamePredicate      = "http://mu.semte.ch/vocabularies/ext/indexTypeName"
	registryAllowedGroupsPredicate = "http://mu.semte.ch/vocabularies/ext/indexAllowedGroups"
	registryIsEagerPredicate       = "http://mu.semte.ch/vocabularies/ext/indexIsEager"
)
