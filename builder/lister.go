package builder

import (
	"context"
	"strconv"
	"strings"

	"github.com/mu-semtech/delta-index-maintainer/errs"
	"github.com/mu-semtech/delta-index-maintainer/host"
	"github.com/mu-semtech/delta-index-maintainer/model"
	"github.com/mu-semtech/delta-index-maintainer/sparqlquery"
	"github.com/mu-semtech/delta-index-maintainer/utils"
)

// Lister implements indexmanager.SubjectLister: it paginates every
// subject of a type's rdf:type classes via a group-scoped RDF client,
// grounded on the teacher's SeekClass full-scan-to-repair-an-index
// shape (generalized from a local full scan to a paginated SELECT
// DISTINCT).
type Lister struct {
	rdf host.RDFQuerier
	log utils.Logger
}

func NewLister(rdf host.RDFQuerier, log utils.Logger) *Lister {
	return &Lister{rdf: rdf, log: log}
}

// ListRootSubjects streams every distinct subject of typeDef's RDF
// classes, up to maxBatches pages of batchSize rows each. Per-page
// query failures are retried with backoff; on exhaustion the listing
// stops early rather than blocking the caller forever.
func (l *Lister) ListRootSubjects(ctx context.Context, typeDef model.TypeDefinition, groups model.AuthorizationGroupSet, batchSize, maxBatches int) (<-chan string, error) {
	if batchSize <= 0 {
		batchSize = 100
	}
	if maxBatches <= 0 {
		maxBatches = 1000
	}
	if len(typeDef.RDFTypes) == 0 {
		return nil, errs.Wrap(errs.KindConfig, errs.ErrConfig, "type "+typeDef.Name+" has no rdfTypes to list")
	}

	out := make(chan string, batchSize)
	go func() {
		defer close(out)
		for page := 0; page < maxBatches; page++ {
			query := l.buildPageQuery(typeDef.RDFTypes, batchSize, page*batchSize)

			var bindings host.Bindings
			err := errs.WithBackoff(ctx, errs.Quadratic, func() error {
				b, err := l.rdf.SelectScoped(ctx, query, groups)
				if err != nil {
					return err
				}
				bindings = b
				return nil
			})
			if err != nil {
				l.log.ErrorCtx(ctx, "subject listing page exhausted retries, stopping early", "type", typeDef.Name, "page", page, "err", err)
				return
			}
			if len(bindings) == 0 {
				return
			}
			for _, row := range bindings {
				s, ok := row["s"]
				if !ok {
					continue
				}
				select {
				case out <- s.Value:
				case <-ctx.Done():
					return
				}
			}
			if len(bindings) < batchSize {
				return
			}
		}
	}()
	return out, nil
}

func (l *Lister) buildPageQuery(rdfTypes []string, limit, offset int) string {
	var b strings.Builder
	b.WriteString("SELECT DISTINCT ?s WHERE {\n  VALUES ?type { ")
	for _, rt := range rdfTypes {
		b.WriteString(sparqlquery.FormatURI(rt))
		b.WriteString(" ")
	}
	b.WriteString("}\n  ?s a ?type .\n}\nORDER BY ?s\n")
	b.WriteString("LIMIT ")
	b.WriteString(strconv.Itoa(limit))
	b.WriteString("\nOFFSET ")
	b.WriteString(strconv.Itoa(offset))
	return b.String()
}
