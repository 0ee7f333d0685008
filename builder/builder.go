// Package builder is the Document Builder of spec.md §4.3: it
// materializes one document for a root subject against a type
// definition, one SELECT per property, using a group-scoped RDF
// client.
//
// Grounded on classes.Field's binding-to-value conversion rules
// (generalized from chotki's typed-field decoding to RDF literal
// datatype dispatch) and on orm.go's walk-one-object-then-its-related-
// objects recursion for nested properties.
package builder

import (
	"context"
	"path"
	"strconv"
	"strings"

	"github.com/mu-semtech/delta-index-maintainer/errs"
	"github.com/mu-semtech/delta-index-maintainer/host"
	"github.com/mu-semtech/delta-index-maintainer/model"
	"github.com/mu-semtech/delta-index-maintainer/sparqlquery"
	"github.com/mu-semtech/delta-index-maintainer/utils"
)

// AttachmentScheme is the mu-semtech virtual file-share URI prefix
// attachment bindings carry; stripping it and joining the remainder
// onto attachmentsPathBase yields a real filesystem path.
const AttachmentScheme = "share://"

// Builder implements indexmanager.Builder.
type Builder struct {
	registry            *model.TypeRegistry
	rdf                 host.RDFQuerier
	extractor           host.Extractor
	attachmentsPathBase string
	log                 utils.Logger
}

func New(registry *model.TypeRegistry, rdf host.RDFQuerier, extractor host.Extractor, attachmentsPathBase string, log utils.Logger) *Builder {
	return &Builder{
		registry:            registry,
		rdf:                 rdf,
		extractor:           extractor,
		attachmentsPathBase: attachmentsPathBase,
		log:                 log,
	}
}

// BuildDocument implements indexmanager.Builder. For a composite type
// it builds and smart-merges each constituent's document; otherwise it
// runs one SELECT per property plus the implicit uuid property.
func (b *Builder) BuildDocument(ctx context.Context, subject string, typeDef model.TypeDefinition, groups model.AuthorizationGroupSet) (map[string]any, error) {
	if typeDef.IsComposite() {
		return b.buildComposite(ctx, subject, typeDef, groups)
	}
	return b.buildSimple(ctx, subject, typeDef, groups)
}

func (b *Builder) buildComposite(ctx context.Context, subject string, typeDef model.TypeDefinition, groups model.AuthorizationGroupSet) (map[string]any, error) {
	var merged map[string]any
	for _, name := range typeDef.CompositeOf {
		constituent, ok := b.registry.ByName(name)
		if !ok {
			return nil, errs.Wrap(errs.KindConfig, errs.ErrConfig, "composite type references unknown constituent "+name)
		}
		doc, err := b.BuildDocument(ctx, subject, constituent, groups)
		if err != nil {
			return nil, err
		}
		m, err := smartMerge(merged, doc)
		if err != nil {
			return nil, err
		}
		merged = m
	}
	return merged, nil
}

// buildSimple builds subject's document against typeDef's properties.
// It first checks that subject still carries one of typeDef.RDFTypes:
// if not, the subject is no longer of this type (its rdf:type triple
// was deleted, or it never matched to begin with) and the build result
// is nil, signalling the caller to delete rather than upsert.
func (b *Builder) buildSimple(ctx context.Context, subject string, typeDef model.TypeDefinition, groups model.AuthorizationGroupSet) (map[string]any, error) {
	typeValues, err := b.queryValues(ctx, subject, model.ParsePath([]string{model.RDFTypePredicate}), groups)
	if err != nil {
		return nil, err
	}
	matched := false
	for _, v := range typeValues {
		if v.IsURI() && typeDef.HasRDFType(v.Value) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, nil
	}

	doc := map[string]any{"uri": subject}

	uuidValues, err := b.queryValues(ctx, subject, model.ParsePath([]string{model.UUIDPredicate}), groups)
	if err != nil {
		return nil, err
	}
	doc["uuid"] = reduceValues(convertSimple(uuidValues))

	for _, prop := range typeDef.Properties {
		value, err := b.buildProperty(ctx, subject, prop, groups)
		if err != nil {
			return nil, err
		}
		doc[prop.Name] = value
	}
	return doc, nil
}

func (b *Builder) buildProperty(ctx context.Context, subject string, prop model.PropertyDefinition, groups model.AuthorizationGroupSet) (any, error) {
	switch prop.Kind {
	case model.KindSimple:
		values, err := b.queryValues(ctx, subject, prop.Path, groups)
		if err != nil {
			return nil, err
		}
		return reduceValues(convertSimple(values)), nil

	case model.KindLanguageString:
		values, err := b.queryValues(ctx, subject, prop.Path, groups)
		if err != nil {
			return nil, err
		}
		return groupByLanguage(values), nil

	case model.KindNested:
		uris, err := b.queryValues(ctx, subject, prop.Path, groups)
		if err != nil {
			return nil, err
		}
		nestedType, ok := b.registry.ByName(prop.RDFType)
		if !ok {
			// A nested property's sub-document shape does not need a
			// standalone registry entry; synthesize one scoped to its
			// own sub-properties.
			nestedType = model.TypeDefinition{
				Name:       prop.RDFType,
				RDFTypes:   []string{prop.RDFType},
				Properties: prop.SubProperties,
			}
		}
		var subdocs []any
		for _, v := range uris {
			if !v.IsURI() {
				continue
			}
			sub, err := b.buildSimple(ctx, v.Value, nestedType, groups)
			if err != nil {
				return nil, err
			}
			subdocs = append(subdocs, sub)
		}
		return reduceAny(subdocs), nil

	case model.KindAttachment:
		uris, err := b.queryValues(ctx, subject, prop.Path, groups)
		if err != nil {
			return nil, err
		}
		var attachments []any
		for _, v := range uris {
			if !v.IsURI() {
				continue
			}
			content, ok := b.extractAttachment(ctx, v.Value)
			if !ok {
				continue
			}
			attachments = append(attachments, map[string]any{"content": content})
		}
		return reduceAny(attachments), nil

	default:
		return nil, errs.Wrap(errs.KindConfig, errs.ErrConfig, "unknown property kind for "+prop.Name)
	}
}

// queryValues runs the property's SELECT against the group-scoped RDF
// client and returns the ?value bindings in result order.
func (b *Builder) queryValues(ctx context.Context, subject string, path []model.PathEdge, groups model.AuthorizationGroupSet) ([]model.Term, error) {
	query := "SELECT ?value WHERE { " + sparqlquery.FormatURI(subject) + " " + sparqlquery.ComposePath(path) + " ?value . }"

	var bindings host.Bindings
	err := errs.WithBackoff(ctx, errs.Quadratic, func() error {
		b2, err := b.rdf.SelectScoped(ctx, query, groups)
		if err != nil {
			return err
		}
		bindings = b2
		return nil
	})
	if err != nil {
		return nil, err
	}

	values := make([]model.Term, 0, len(bindings))
	for _, row := range bindings {
		if v, ok := row["value"]; ok {
			values = append(values, v)
		}
	}
	return values, nil
}

// extractAttachment resolves an attachment URI to a local path and
// runs the Content Extractor, skipping (rather than failing) on a
// missing or oversized file.
func (b *Builder) extractAttachment(ctx context.Context, uri string) (string, bool) {
	rel := strings.TrimPrefix(uri, AttachmentScheme)
	if rel == uri {
		b.log.WarnCtx(ctx, "attachment URI missing expected scheme, skipping", "uri", uri, "scheme", AttachmentScheme)
		return "", false
	}
	localPath := path.Join(b.attachmentsPathBase, rel)

	text, err := b.extractor.Extract(ctx, localPath)
	if err != nil {
		switch errs.Classify(err) {
		case errs.KindFileTooLarge, errs.KindFileMissing:
			b.log.WarnCtx(ctx, "skipping attachment", "uri", uri, "path", localPath, "err", err)
		default:
			b.log.ErrorCtx(ctx, "attachment extraction failed, skipping", "uri", uri, "path", localPath, "err", err)
		}
		return "", false
	}
	return text, true
}

// convertSimple applies §4.3's per-datatype literal conversion rules.
func convertSimple(values []model.Term) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, convertOne(v))
	}
	return out
}

func convertOne(v model.Term) any {
	if v.IsURI() {
		return v.Value
	}
	switch v.Datatype {
	case "http://www.w3.org/2001/XMLSchema#integer",
		"http://www.w3.org/2001/XMLSchema#int",
		"http://www.w3.org/2001/XMLSchema#long":
		if n, err := strconv.ParseInt(v.Value, 10, 64); err == nil {
			return n
		}
		return v.Value
	case "http://www.w3.org/2001/XMLSchema#double",
		"http://www.w3.org/2001/XMLSchema#decimal",
		"http://www.w3.org/2001/XMLSchema#float":
		if f, err := strconv.ParseFloat(v.Value, 64); err == nil {
			return f
		}
		return v.Value
	case "http://www.w3.org/2001/XMLSchema#boolean":
		if bv, err := strconv.ParseBool(v.Value); err == nil {
			return bv
		}
		return v.Value
	default:
		// date/time/dateTime and generic literals keep their lexical
		// string form.
		return v.Value
	}
}

// groupByLanguage implements languageString's {lang → value|[values]}
// grouping.
func groupByLanguage(values []model.Term) map[string]any {
	byLang := map[string][]string{}
	for _, v := range values {
		lang := v.Language
		byLang[lang] = append(byLang[lang], v.Value)
	}
	out := make(map[string]any, len(byLang))
	for lang, vs := range byLang {
		if len(vs) == 1 {
			out[lang] = vs[0]
		} else {
			out[lang] = vs
		}
	}
	return out
}

// reduceValues implements §4.3's scalar/null/list reduction.
func reduceValues(values []any) any {
	return reduceAny(values)
}

func reduceAny(values []any) any {
	switch len(values) {
	case 0:
		return nil
	case 1:
		return values[0]
	default:
		return values
	}
}
