package model

import (
	"encoding/json"
	"sort"
	"strings"
)

// AuthorizationGroup is one caller-bearing authorization tuple.
// Variables are NOT reordered during canonicalization — their order is
// semantically significant to the RDF store's authorization sidecar.
type AuthorizationGroup struct {
	Name      string   `json:"name"`
	Variables []string `json:"variables"`
}

func (g AuthorizationGroup) sortKey() string {
	return g.Name + "\x00" + strings.Join(g.Variables, "\x00")
}

// AuthorizationGroupSet is an ordered list of AuthorizationGroup. It
// partitions the RDF store into visibility slices and, canonicalized, is
// the partition key used by the Index Registry.
type AuthorizationGroupSet []AuthorizationGroup

// Canonicalize sorts groups by name∥concat(variables) — stable under
// any permutation of groups at equal keys — without touching the
// per-group variable order, and drops any group matching an
// ignored-group pattern (spec.md §6's ignored_allowed_groups, applied
// here since this is the one place a partition key is actually
// computed).
func (s AuthorizationGroupSet) Canonicalize(ignored []string) AuthorizationGroupSet {
	filtered := make(AuthorizationGroupSet, 0, len(s))
	for _, g := range s {
		if isIgnoredGroup(g.Name, ignored) {
			continue
		}
		filtered = append(filtered, g)
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].sortKey() < filtered[j].sortKey()
	})
	return filtered
}

func isIgnoredGroup(name string, patterns []string) bool {
	for _, p := range patterns {
		if p == name {
			return true
		}
	}
	return false
}

// Serialize produces the canonical JSON serialization used as the
// Index Registry's partition key. Callers must canonicalize first;
// Serialize does not re-sort. A nil set and an empty set both
// serialize to "[]", so they map to the same partition.
func (s AuthorizationGroupSet) Serialize() string {
	if len(s) == 0 {
		return "[]"
	}
	b, err := json.Marshal([]AuthorizationGroup(s))
	if err != nil {
		// AuthorizationGroup always marshals; this cannot happen in
		// practice, but a zero-value set must still produce a stable
		// key rather than panic.
		return "[]"
	}
	return string(b)
}

// ParseAuthorizationGroups decodes the MU-AUTH-ALLOWED-GROUPS header
// body (a JSON array of {name, variables}).
func ParseAuthorizationGroups(headerValue string) (AuthorizationGroupSet, error) {
	if headerValue == "" {
		return nil, nil
	}
	var groups AuthorizationGroupSet
	if err := json.Unmarshal([]byte(headerValue), &groups); err != nil {
		return nil, err
	}
	return groups, nil
}
