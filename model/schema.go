package model

import "unicode/utf8"

// PropertyKind is the discriminator for how a PropertyDefinition's
// bindings are turned into document fields.
type PropertyKind byte

const (
	KindSimple         PropertyKind = 'S'
	KindNested         PropertyKind = 'N'
	KindAttachment     PropertyKind = 'A'
	KindLanguageString PropertyKind = 'L'
)

// PropertyDefinition describes one document field: how to reach its
// value(s) by walking the RDF graph from the root subject, and how to
// shape what's found. Immutable after config load, same as its teacher
// analogue classes.Field.
type PropertyDefinition struct {
	Name string
	Path []PathEdge

	Kind PropertyKind

	// For KindNested.
	RDFType       string
	SubProperties []PropertyDefinition

	// For KindAttachment.
	PipelineID string
}

// Valid mirrors classes.Field.Valid: a minimal sanity check of one
// property definition. Config loading does not call it.
func (p PropertyDefinition) Valid() bool {
	if p.Name == "" || !utf8.ValidString(p.Name) {
		return false
	}
	if len(p.Path) == 0 {
		return false
	}
	switch p.Kind {
	case KindSimple, KindNested, KindAttachment, KindLanguageString:
	default:
		return false
	}
	if p.Kind == KindNested && p.RDFType == "" {
		return false
	}
	return true
}

// TypeDefinition is immutable after config load, keyed by a stable name
// unique across the configuration.
type TypeDefinition struct {
	Name       string
	OnPath     string
	RDFTypes   []string
	Properties []PropertyDefinition

	// CompositeOf names other TypeDefinitions this type is assembled
	// from via smart-merge. Composite types are not delta-discoverable
	// directly; only their constituents are.
	CompositeOf []string
}

func (t TypeDefinition) IsComposite() bool {
	return len(t.CompositeOf) > 0
}

func (t TypeDefinition) PropertyByName(name string) (PropertyDefinition, bool) {
	for _, p := range t.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertyDefinition{}, false
}

// HasRDFType reports whether uri is one of t's root-subject classes.
func (t TypeDefinition) HasRDFType(uri string) bool {
	for _, rt := range t.RDFTypes {
		if rt == uri {
			return true
		}
	}
	return false
}

// TypeRegistry is the immutable, config-loaded set of all configured
// TypeDefinitions, indexed for the lookups the Delta Handler needs on
// every incoming triple.
type TypeRegistry struct {
	byName []TypeDefinition
}

func NewTypeRegistry(types []TypeDefinition) *TypeRegistry {
	return &TypeRegistry{byName: types}
}

func (r *TypeRegistry) All() []TypeDefinition {
	return r.byName
}

func (r *TypeRegistry) ByName(name string) (TypeDefinition, bool) {
	for _, t := range r.byName {
		if t.Name == name {
			return t, true
		}
	}
	return TypeDefinition{}, false
}

// TypesForRDFClass returns every non-composite TypeDefinition whose
// RDFTypes contains class.
func (r *TypeRegistry) TypesForRDFClass(class string) []TypeDefinition {
	var out []TypeDefinition
	for _, t := range r.byName {
		if t.IsComposite() {
			continue
		}
		if t.HasRDFType(class) {
			out = append(out, t)
		}
	}
	return out
}

// TypesForPredicate returns every non-composite TypeDefinition that has
// at least one property whose path contains predicate (forward or
// inverse, anywhere in the path).
func (r *TypeRegistry) TypesForPredicate(predicate string) []TypeDefinition {
	var out []TypeDefinition
	for _, t := range r.byName {
		if t.IsComposite() {
			continue
		}
		if typeHasPredicate(t, predicate) {
			out = append(out, t)
		}
	}
	return out
}

func typeHasPredicate(t TypeDefinition, predicate string) bool {
	for _, p := range t.Properties {
		if len(ContainsPredicate(p.Path, predicate)) > 0 {
			return true
		}
		if p.Kind == KindNested {
			for _, sp := range p.SubProperties {
				if len(ContainsPredicate(sp.Path, predicate)) > 0 {
					return true
				}
			}
		}
	}
	return false
}
