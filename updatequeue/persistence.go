package updatequeue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/pebble"
	pkgerrors "github.com/pkg/errors"
)

// persistedType encodes one sidecar entry's action into the single
// string spec.md §6's wire shape allows for `index: {subject:
// [typeNames]}`: an update is the bare typeName, a delete is prefixed
// with "-". This keeps the persisted shape a plain map of string lists
// while still round-tripping the action, a literal reading of spec.md's
// own wire format that the spec text itself leaves silent on how
// delete-vs-update survives a restart.
const deletePrefix = "-"

func encodeType(typeName string, action Action) string {
	if action == ActionDelete {
		return deletePrefix + typeName
	}
	return typeName
}

func decodeType(encoded string) (string, Action) {
	if len(encoded) > 0 && encoded[:1] == deletePrefix {
		return encoded[1:], ActionDelete
	}
	return encoded, ActionUpdate
}

type persistedState struct {
	Queue []string            `json:"queue"`
	Index map[string][]string `json:"index"`
}

var storeKey = []byte("update-queue-state")

// Store wraps a pebble database holding exactly one durable snapshot
// of the queue, grounded on chotki.go's pebble.Open usage for all
// durable local state in the teacher.
type Store struct {
	db *pebble.DB
}

func OpenStore(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, pkgerrors.Wrap(err, "open update queue store")
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Collector exposes this store's pebble engine metrics.
func (s *Store) Collector() *PebbleCollector {
	return NewPebbleCollector(s.db)
}

// Snapshot atomically persists the queue+sidecar as the one durable
// state blob, per spec.md §4.2's "every 5 minutes, serialized
// atomically to a durable file."
func (q *Queue) Snapshot(store *Store) error {
	q.mu.Lock()
	state := persistedState{
		Queue: append([]string(nil), q.order...),
		Index: make(map[string][]string, len(q.sidecar)),
	}
	for subject, types := range q.sidecar {
		encoded := make([]string, 0, len(types))
		for typeName, action := range types {
			encoded = append(encoded, encodeType(typeName, action))
		}
		state.Index[subject] = encoded
	}
	q.mu.Unlock()

	blob, err := json.Marshal(state)
	if err != nil {
		return pkgerrors.Wrap(err, "marshal update queue state")
	}
	return store.db.Set(storeKey, blob, pebble.Sync)
}

// Restore loads the last persisted snapshot into q, preserving each
// subject's original enqueue-ordering position but setting its
// timestamp to one waitInterval before now — a restarted process has no reliable wall-clock
// continuity with the crashed one, so entries become immediately
// eligible rather than risk silently losing debounce time.
func (q *Queue) Restore(store *Store) error {
	blob, closer, err := store.db.Get(storeKey)
	if err == pebble.ErrNotFound {
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(err, "read update queue state")
	}
	defer closer.Close()

	var state persistedState
	if err := json.Unmarshal(blob, &state); err != nil {
		return pkgerrors.Wrap(err, "unmarshal update queue state")
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.order = append([]string(nil), state.Queue...)
	q.timestamps = make(map[string]time.Time, len(q.order))
	now := time.Now().Add(-q.waitInterval)
	for _, subject := range q.order {
		q.timestamps[subject] = now
	}
	q.sidecar = make(map[string]map[string]Action, len(state.Index))
	for subject, encoded := range state.Index {
		types := make(map[string]Action, len(encoded))
		for _, e := range encoded {
			typeName, action := decodeType(e)
			types[typeName] = action
		}
		q.sidecar[subject] = types
	}
	return nil
}

// RunPersister snapshots q to store every interval until ctx is done,
// then performs one final snapshot so graceful shutdown never loses the
// last interval's writes.
func RunPersister(ctx context.Context, q *Queue, store *Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := q.Snapshot(store); err != nil {
				q.log.ErrorCtx(ctx, "periodic queue snapshot failed", "err", err)
			}
		case <-ctx.Done():
			if err := q.Snapshot(store); err != nil {
				q.log.ErrorCtx(ctx, "final queue snapshot failed", "err", err)
			}
			return
		}
	}
}
