package model

import "strings"

// PathEdge is one step of a property path: a predicate URI, optionally
// traversed against its natural direction. Paths are parsed once, at
// config load, into a slice of PathEdge — never re-parsed from
// caret-prefixed strings at match time.
type PathEdge struct {
	Predicate string
	Inverse   bool
}

// ParsePath parses a property path's ordered segment list ("^p" is an
// inverse edge, "p" is forward) into PathEdge values. The input always
// has length >= 1 for a valid PropertyDefinition.
func ParsePath(segments []string) []PathEdge {
	edges := make([]PathEdge, 0, len(segments))
	for _, seg := range segments {
		if strings.HasPrefix(seg, "^") {
			edges = append(edges, PathEdge{Predicate: seg[1:], Inverse: true})
		} else {
			edges = append(edges, PathEdge{Predicate: seg, Inverse: false})
		}
	}
	return edges
}

// ContainsPredicate returns every position at which predicate appears
// in path (nil if none). Forward and inverse edges match alike; callers
// read path[i].Inverse to tell them apart.
func ContainsPredicate(path []PathEdge, predicate string) []int {
	var positions []int
	for i, e := range path {
		if e.Predicate == predicate {
			positions = append(positions, i)
		}
	}
	return positions
}
