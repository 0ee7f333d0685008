// Package delta is the Delta Handler of spec.md §4.1: it turns
// incoming triple-diffs into (rootSubject, typeName) updates,
// discovering root subjects with the minimum number of batched SPARQL
// queries.
//
// Grounded on network/net.go's single-dispatcher-goroutine-drains-a-
// mutex-protected-queue shape (its KeepListening accept loop
// generalized from "accept one connection, spawn a peer" to "drain one
// changeset batch, fan out per affected type"); the quadratic-backoff
// retry on shape queries reuses errs.WithBackoff, itself grounded on
// network.Net.KeepConnecting's backoff loop.
package delta

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mu-semtech/delta-index-maintainer/errs"
	"github.com/mu-semtech/delta-index-maintainer/host"
	"github.com/mu-semtech/delta-index-maintainer/model"
	"github.com/mu-semtech/delta-index-maintainer/sparqlquery"
	"github.com/mu-semtech/delta-index-maintainer/utils"
)

var TriplesIngested = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "delta_index_maintainer",
	Subsystem: "delta",
	Name:      "triples_ingested_total",
})

var ShapeQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "delta_index_maintainer",
	Subsystem: "delta",
	Name:      "shape_queries_total",
}, []string{"type_name"})

var ShapeQueryFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "delta_index_maintainer",
	Subsystem: "delta",
	Name:      "shape_query_failures_total",
}, []string{"type_name"})

var UpdatesDispatched = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "delta_index_maintainer",
	Subsystem: "delta",
	Name:      "updates_dispatched_total",
}, []string{"type_name"})

// UpdateSink is the Update Handler's enqueue surface, per spec.md
// §4.1's stage 3d ("call UpdateHandler.addUpdate(subject, typeName)").
// Only AddUpdate is ever called by the Delta Handler — see DESIGN.md's
// Open Question decisions for why AddDelete is not invoked from here.
type UpdateSink interface {
	AddUpdate(subject, typeName string)
}

type workItem struct {
	triples []model.Triple
	types   []model.TypeDefinition
}

// Handler is the Delta Handler. Call Ingest to enqueue a batch; Run
// drives the single dispatcher goroutine that drains the queue.
type Handler struct {
	registry  *model.TypeRegistry
	rdf       host.RDFQuerier
	sink      UpdateSink
	batchSize int
	log       utils.Logger

	mu     sync.Mutex
	queue  []workItem
	signal chan struct{}
}

func New(registry *model.TypeRegistry, rdf host.RDFQuerier, sink UpdateSink, batchSize int, log utils.Logger) *Handler {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Handler{
		registry:  registry,
		rdf:       rdf,
		sink:      sink,
		batchSize: batchSize,
		log:       log,
		signal:    make(chan struct{}),
	}
}

// Ingest implements stage 1 (merge, filter mu:uuid, short-circuit on
// empty) and stage 2 (per-triple config lookup, unioned into one work
// item) of spec.md §4.1.
func (h *Handler) Ingest(changesets []model.Changeset) {
	var triples []model.Triple
	for _, cs := range changesets {
		for _, t := range cs.Inserts {
			t.IsAddition = true
			triples = append(triples, t)
		}
		for _, t := range cs.Deletes {
			t.IsAddition = false
			triples = append(triples, t)
		}
	}

	var filtered []model.Triple
	for _, t := range triples {
		if t.Predicate == model.UUIDPredicate {
			continue
		}
		filtered = append(filtered, t)
	}
	if len(filtered) == 0 {
		return
	}
	TriplesIngested.Add(float64(len(filtered)))

	typeSet := map[string]model.TypeDefinition{}
	for _, t := range filtered {
		var affected []model.TypeDefinition
		if t.Predicate == model.RDFTypePredicate {
			affected = h.registry.TypesForRDFClass(t.Object.Value)
		} else {
			affected = h.registry.TypesForPredicate(t.Predicate)
		}
		for _, td := range affected {
			typeSet[td.Name] = td
		}
	}
	if len(typeSet) == 0 {
		return
	}
	types := make([]model.TypeDefinition, 0, len(typeSet))
	for _, td := range typeSet {
		types = append(types, td)
	}

	h.enqueue(workItem{triples: filtered, types: types})
}

func (h *Handler) enqueue(item workItem) {
	h.mu.Lock()
	wasEmpty := len(h.queue) == 0
	h.queue = append(h.queue, item)
	if wasEmpty {
		close(h.signal)
		h.signal = make(chan struct{})
	}
	h.mu.Unlock()
}

func (h *Handler) dequeue() (workItem, chan struct{}, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.queue) == 0 {
		return workItem{}, h.signal, false
	}
	item := h.queue[0]
	h.queue = h.queue[1:]
	return item, nil, true
}

// Run is the single dispatcher goroutine: it drains the queue in
// arrival order, processing each batch's affected types before moving
// to the next (spec.md §5's "delta batches processed in arrival
// order").
func (h *Handler) Run(ctx context.Context) {
	for {
		item, signal, ok := h.dequeue()
		if !ok {
			select {
			case <-signal:
				continue
			case <-ctx.Done():
				return
			}
		}
		h.process(ctx, item)
	}
}

// process implements stage 3 for one work item: each affected type is
// handled independently, so a failure processing one type does not
// stop the others.
func (h *Handler) process(ctx context.Context, item workItem) {
	for _, typeDef := range item.types {
		h.processType(ctx, typeDef, item.triples)
	}
}

func (h *Handler) processType(ctx context.Context, typeDef model.TypeDefinition, triples []model.Triple) {
	discovered := map[string]bool{}

	// 3a — known subjects via rdf:type, no query needed.
	var remaining []model.Triple
	for _, t := range triples {
		if t.Predicate == model.RDFTypePredicate && typeDef.HasRDFType(t.Object.Value) {
			discovered[t.Subject] = true
			continue
		}
		remaining = append(remaining, t)
	}

	// 3b — shape grouping. A predicate may only appear inside a
	// KindNested property's sub-document (mirroring typeHasPredicate's
	// descent into SubProperties in stage 2), so every candidate path
	// for a property includes its own Path plus, for nested properties,
	// Path composed with each sub-property's own path.
	buckets := map[string]sparqlquery.Shape{}
	bucketed := map[string][]model.Triple{}
	for _, t := range remaining {
		for _, prop := range typeDef.Properties {
			for _, path := range candidatePaths(prop) {
				positions := model.ContainsPredicate(path, t.Predicate)
				for _, pos := range positions {
					shape := sparqlquery.Shape{Path: path, Position: pos, IsAddition: t.IsAddition}
					if shape.Discardable(t, discovered) {
						continue
					}
					key := shape.Key()
					buckets[key] = shape
					bucketed[key] = append(bucketed[key], t)
				}
			}
		}
	}

	// 3c — batched discovery queries.
	for key, shape := range buckets {
		ts := bucketed[key]
		for start := 0; start < len(ts); start += h.batchSize {
			end := start + h.batchSize
			if end > len(ts) {
				end = len(ts)
			}
			slice := ts[start:end]
			ShapeQueries.WithLabelValues(typeDef.Name).Inc()

			query := sparqlquery.BuildDiscoveryQuery(typeDef.RDFTypes, shape, slice)
			var bindings host.Bindings
			err := errs.WithBackoff(ctx, errs.Quadratic, func() error {
				b, err := h.rdf.SelectSudo(ctx, query)
				if err != nil {
					return err
				}
				bindings = b
				return nil
			})
			if err != nil {
				ShapeQueryFailures.WithLabelValues(typeDef.Name).Inc()
				h.log.ErrorCtx(ctx, "shape discovery query exhausted retries, dropping batch", "type", typeDef.Name, "err", err)
				continue
			}
			for _, row := range bindings {
				if s, ok := row["s"]; ok {
					discovered[s.Value] = true
				}
			}
		}
	}

	// 3d — dispatch updates.
	for subject := range discovered {
		h.sink.AddUpdate(subject, typeDef.Name)
		UpdatesDispatched.WithLabelValues(typeDef.Name).Inc()
	}
}

// candidatePaths returns every path a triple might be matched against
// for prop: prop's own path, and, for a KindNested property, prop's
// path composed with each sub-property's own path — since builder's
// KindNested handling queries sub-properties against the nested
// resource's URI, reached by walking prop.Path from the root subject.
func candidatePaths(prop model.PropertyDefinition) [][]model.PathEdge {
	paths := [][]model.PathEdge{prop.Path}
	if prop.Kind != model.KindNested {
		return paths
	}
	for _, sub := range prop.SubProperties {
		composed := make([]model.PathEdge, 0, len(prop.Path)+len(sub.Path))
		composed = append(composed, prop.Path...)
		composed = append(composed, sub.Path...)
		paths = append(paths, composed)
	}
	return paths
}
