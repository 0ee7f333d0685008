package sparqlquery

import (
	"fmt"
	"strings"

	"github.com/mu-semtech/delta-index-maintainer/model"
)

// Shape is the 4-tuple that identifies one discovery-query pattern:
// spec.md's "shape key" (path, position, isInverse, isAddition).
// IsInverse is derived from Path[Position] and kept implicit rather
// than duplicated, so two Shapes with the same Path/Position/IsAddition
// are always equal.
type Shape struct {
	Path       []model.PathEdge
	Position   int
	IsAddition bool
}

func (s Shape) IsInverse() bool {
	return s.Path[s.Position].Inverse
}

// Key returns a comparable string identity for use as a map key when
// bucketing triples by shape (spec.md §4.1 stage 3b).
func (s Shape) Key() string {
	var b strings.Builder
	for _, e := range s.Path {
		if e.Inverse {
			b.WriteByte('^')
		}
		b.WriteString(e.Predicate)
		b.WriteByte('|')
	}
	fmt.Fprintf(&b, "#%d#%v", s.Position, s.IsAddition)
	return b.String()
}

// primaryVar is the VALUES variable bound to the node the path
// continues from: "s" at position 0 (?target_sub ≡ ?s there), else
// "target_sub".
func (s Shape) primaryVar() string {
	if s.Position == 0 {
		return "s"
	}
	return "target_sub"
}

// ValuesVarNames returns the VALUES clause's variable names in row
// order, per the §4.1.1 table.
func (s Shape) ValuesVarNames() []string {
	primary := s.primaryVar()
	if !s.IsAddition {
		return []string{primary}
	}
	if s.IsInverse() {
		return []string{primary, "triple_sub"}
	}
	return []string{primary, "obj"}
}

// RowFor computes one VALUES row for a triple matched against this
// shape, per the §4.1.1 table.
func (s Shape) RowFor(t model.Triple) []model.Term {
	if !s.IsAddition {
		if s.Position == 0 {
			return []model.Term{model.URI(t.Subject)}
		}
		if s.IsInverse() {
			return []model.Term{t.Object}
		}
		return []model.Term{model.URI(t.Subject)}
	}
	if s.IsInverse() {
		return []model.Term{t.Object, model.URI(t.Subject)}
	}
	return []model.Term{model.URI(t.Subject), t.Object}
}

// Discardable applies stage 3b's per-match filtering rules to one
// triple: whether a match at this shape's position can produce useful
// discovery information given knownSubjects (the rdf:type-derived
// known-subjects set) and the triple itself.
//
// Returns true when the match must be discarded.
func (s Shape) Discardable(t model.Triple, knownSubjects map[string]bool) bool {
	last := len(s.Path) - 1
	edge := s.Path[s.Position]
	if s.Position < last && !edge.Inverse && t.Object.IsLiteral() {
		// cannot continue traversal through a literal
		return true
	}
	if s.Position == 0 && !edge.Inverse && knownSubjects[t.Subject] {
		// no new information: already a known root subject
		return true
	}
	return false
}

// BuildDiscoveryQuery renders the full batched VALUES discovery query
// of §4.1.1 for one shape and a slice of triples sharing it.
func BuildDiscoveryQuery(rdfTypes []string, shape Shape, triples []model.Triple) string {
	var b strings.Builder
	b.WriteString("SELECT DISTINCT ?s WHERE {\n")

	b.WriteString("  VALUES ?type { ")
	for _, rt := range rdfTypes {
		b.WriteString(FormatURI(rt))
		b.WriteString(" ")
	}
	b.WriteString("}\n")

	varNames := shape.ValuesVarNames()
	b.WriteString("  VALUES (")
	for i, v := range varNames {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString("?" + v)
	}
	b.WriteString(") { ")
	for _, t := range triples {
		row := shape.RowFor(t)
		b.WriteString("(")
		for i, term := range row {
			if i > 0 {
				b.WriteString(" ")
			}
			b.WriteString(FormatTerm(term))
		}
		b.WriteString(") ")
	}
	b.WriteString("}\n")

	b.WriteString("  ?s a ?type .\n")

	primary := shape.primaryVar()
	if shape.Position > 0 {
		b.WriteString("  ?s ")
		b.WriteString(ComposePath(shape.Path[:shape.Position]))
		b.WriteString(" ?")
		b.WriteString(primary)
		b.WriteString(" .\n")
	}

	if shape.IsAddition {
		edge := shape.Path[shape.Position]
		if edge.Inverse {
			b.WriteString("  ?triple_sub ")
			b.WriteString(FormatURI(edge.Predicate))
			b.WriteString(" ?")
			b.WriteString(primary)
			b.WriteString(" .\n")
		} else {
			b.WriteString("  ?")
			b.WriteString(primary)
			b.WriteString(" ")
			b.WriteString(FormatURI(edge.Predicate))
			b.WriteString(" ?obj .\n")
		}

		suffix := shape.Path[shape.Position+1:]
		if len(suffix) > 0 {
			root := "obj"
			if edge.Inverse {
				root = "triple_sub"
			}
			b.WriteString("  ?")
			b.WriteString(root)
			b.WriteString(" ")
			b.WriteString(ComposePath(suffix))
			b.WriteString(" ?foo .\n")
		}
	}

	b.WriteString("}")
	return b.String()
}
