// Package registry is the Index Registry of spec.md §4.4: the
// in-memory map from (typeName, canonicalGroupKey) to the SearchIndex
// serving that partition, plus each index's readiness gate.
//
// Grounded on network/net.go's xsync.MapOf[string, *Peer] concurrent
// connection table, generalized from connections keyed by peer name to
// SearchIndexes keyed by partition key, and on
// indexes/index_manager.go's hashKey/classCache partition-key hashing
// and lru.Cache memoization.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/mu-semtech/delta-index-maintainer/model"
)

// Status is a SearchIndex's lifecycle state.
type Status byte

const (
	StatusInvalid  Status = 'I'
	StatusUpdating Status = 'U'
	StatusValid    Status = 'V'
)

var IndexStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "delta_index_maintainer",
	Subsystem: "registry",
	Name:      "index_status",
}, []string{"type_name", "status"})

var BuildDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "delta_index_maintainer",
	Subsystem: "registry",
	Name:      "build_duration_seconds",
	Buckets:   []float64{0, 1, 5, 10, 20, 50, 100, 200, 500},
}, []string{"type_name"})

// SearchIndex is one physical engine index serving one (typeName,
// canonical allowed-groups) partition. Status transitions and the
// readiness event's set/reset are paired under mu to exclude the
// lost-wakeup race described in spec.md §9.
type SearchIndex struct {
	URI           string
	Name          string
	TypeName      string
	AllowedGroups model.AuthorizationGroupSet
	IsEager       bool

	mu     sync.Mutex
	status Status
	ready  chan struct{}
}

// NewSearchIndex builds an index starting in StatusInvalid, per
// fetchIndexes's "create it ... mark invalid" step.
func NewSearchIndex(uri, name, typeName string, groups model.AuthorizationGroupSet, eager bool) *SearchIndex {
	si := &SearchIndex{
		URI:           uri,
		Name:          name,
		TypeName:      typeName,
		AllowedGroups: groups,
		IsEager:       eager,
		status:        StatusInvalid,
		ready:         make(chan struct{}),
	}
	close(si.ready) // invalid is a terminal (non-updating) state; gate starts open
	return si
}

func (si *SearchIndex) Status() Status {
	si.mu.Lock()
	defer si.mu.Unlock()
	return si.status
}

// SetStatus transitions the index's status, resetting the readiness
// gate on entry to Updating and setting it on entry to Valid/Invalid.
func (si *SearchIndex) SetStatus(s Status) {
	si.mu.Lock()
	defer si.mu.Unlock()
	prev := si.status
	si.status = s
	IndexStatus.WithLabelValues(si.TypeName, string(rune(prev))).Set(0)
	IndexStatus.WithLabelValues(si.TypeName, string(rune(s))).Set(1)
	switch s {
	case StatusUpdating:
		select {
		case <-si.ready:
			si.ready = make(chan struct{})
		default:
			// already closed/reset by a previous Updating transition
		}
	case StatusValid, StatusInvalid:
		select {
		case <-si.ready:
			// already open
		default:
			close(si.ready)
		}
	}
}

// WaitUntilReady blocks until status leaves Updating or timeout
// elapses, per spec.md §4.4. Returns false on timeout.
func (si *SearchIndex) WaitUntilReady(ctx context.Context, timeout time.Duration) bool {
	si.mu.Lock()
	ready := si.ready
	si.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ready:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// key is the registry's partition key: typeName + canonical group JSON.
func key(typeName string, canonicalGroups model.AuthorizationGroupSet) string {
	return typeName + "\x00" + canonicalGroups.Serialize()
}

// Registry holds all live SearchIndexes, keyed by partition, with a
// registry-wide lock for structural changes (add/remove) per spec.md §5.
type Registry struct {
	indexes *xsync.MapOf[string, *SearchIndex]
	mu      sync.RWMutex // guards structural changes across the whole registry
	ignored []string

	nameCache *lru.Cache[string, string] // allocated by New; no Registry method reads or writes it
}

func New(ignoredAllowedGroups []string) *Registry {
	cache, _ := lru.New[string, string](10000)
	return &Registry{
		indexes:   xsync.NewMapOf[string, *SearchIndex](),
		ignored:   ignoredAllowedGroups,
		nameCache: cache,
	}
}

// Canonicalize applies the ignored-groups filter and stable sort spec.md
// §4.4's fetchIndexes step 1 requires before any registry lookup.
func (r *Registry) Canonicalize(groups model.AuthorizationGroupSet) model.AuthorizationGroupSet {
	return groups.Canonicalize(r.ignored)
}

// PartitionHash is a fast, non-cryptographic hash of a partition key,
// grounded on indexes/index_manager.go's xxhash.Sum64 hashKey
// construction. The registry map itself is keyed by the unhashed key;
// nothing in this module calls PartitionHash.
func PartitionHash(typeName string, canonicalGroups model.AuthorizationGroupSet) uint64 {
	return xxhash.Sum64([]byte(key(typeName, canonicalGroups)))
}

// Lookup returns the SearchIndex registered for (typeName,
// canonicalGroups), if any. Callers must canonicalize groups first.
func (r *Registry) Lookup(typeName string, canonicalGroups model.AuthorizationGroupSet) (*SearchIndex, bool) {
	return r.indexes.Load(key(typeName, canonicalGroups))
}

// Register installs a newly created SearchIndex under its partition
// key, taking the registry-wide write lock as spec.md §5 requires for
// structural changes.
func (r *Registry) Register(si *SearchIndex) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexes.Store(key(si.TypeName, si.AllowedGroups), si)
}

// Unregister removes a SearchIndex from the registry (removeIndexes's
// in-memory half; the caller is responsible for the engine-side and
// RDF-registry-side deletes).
func (r *Registry) Unregister(si *SearchIndex) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexes.Delete(key(si.TypeName, si.AllowedGroups))
}

// ForTypeName returns every currently registered SearchIndex for
// typeName, across all group partitions — the set the update worker
// fans one subject's update out to.
func (r *Registry) ForTypeName(typeName string) []*SearchIndex {
	var out []*SearchIndex
	r.indexes.Range(func(_ string, si *SearchIndex) bool {
		if si.TypeName == typeName {
			out = append(out, si)
		}
		return true
	})
	return out
}

// All returns every registered SearchIndex.
func (r *Registry) All() []*SearchIndex {
	var out []*SearchIndex
	r.indexes.Range(func(_ string, si *SearchIndex) bool {
		out = append(out, si)
		return true
	})
	return out
}

// Match selects indexes matching the optional typeName/allowedGroups
// filters of invalidateIndexes/removeIndexes: an empty typeName matches
// any type, and hasGroups=false matches any group partition.
func (r *Registry) Match(typeName string, groups model.AuthorizationGroupSet, hasGroups bool) []*SearchIndex {
	var out []*SearchIndex
	canonical := r.Canonicalize(groups)
	r.indexes.Range(func(_ string, si *SearchIndex) bool {
		if typeName != "" && si.TypeName != typeName {
			return true
		}
		if hasGroups && si.AllowedGroups.Serialize() != canonical.Serialize() {
			return true
		}
		out = append(out, si)
		return true
	})
	return out
}
