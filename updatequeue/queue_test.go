package updatequeue

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mu-semtech/delta-index-maintainer/utils"
)

func TestCoalescing_RepeatedAddsForSameSubjectStayOneEntry(t *testing.T) {
	// S5: addUpdate("s","t1"), addUpdate("s","t2"), addUpdate("s","t1")
	// within a short window collapse to one queue entry carrying {t1,t2}.
	q := New(10*time.Millisecond, utils.NewDefaultLogger(100))
	q.AddUpdate("s", "t1")
	q.AddUpdate("s", "t2")
	q.AddUpdate("s", "t1")

	assert.Equal(t, 1, q.Len())

	var mu sync.Mutex
	var gotTypes map[string]Action
	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx, func(ctx context.Context, subject string, types map[string]Action) {
		mu.Lock()
		gotTypes = types
		mu.Unlock()
		cancel()
	})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return gotTypes != nil
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, gotTypes, 2)
	assert.Equal(t, ActionUpdate, gotTypes["t1"])
	assert.Equal(t, ActionUpdate, gotTypes["t2"])
}

func TestRun_DoesNotInvokeBeforeWaitInterval(t *testing.T) {
	q := New(50*time.Millisecond, utils.NewDefaultLogger(100))
	q.AddUpdate("s", "t1")

	var invoked bool
	var mu sync.Mutex
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go q.Run(ctx, func(ctx context.Context, subject string, types map[string]Action) {
		mu.Lock()
		invoked = true
		mu.Unlock()
	})

	time.Sleep(10 * time.Millisecond)
	mu.Lock()
	assert.False(t, invoked, "must not fire before waitInterval elapses")
	mu.Unlock()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return invoked
	}, time.Second, 5*time.Millisecond)
}

func TestAddDelete_SetsDeleteAction(t *testing.T) {
	q := New(time.Millisecond, utils.NewDefaultLogger(100))
	q.AddDelete("s", "t1")

	time.Sleep(5 * time.Millisecond)
	outcome := q.tryDequeue()
	require.Equal(t, "s", outcome.subject)
	assert.Equal(t, ActionDelete, outcome.types["t1"])
}

func TestPersistence_RestartRoundTrip(t *testing.T) {
	// S6: enqueue N entries, persist, restore into a fresh queue, assert
	// equivalence of length and sidecar contents.
	dir := t.TempDir()
	store, err := OpenStore(filepath.Join(dir, "queue"))
	require.NoError(t, err)
	defer store.Close()

	q1 := New(time.Minute, utils.NewDefaultLogger(100))
	q1.AddUpdate("s1", "t1")
	q1.AddUpdate("s2", "t1")
	q1.AddDelete("s2", "t2")
	q1.AddUpdate("s3", "t1")

	require.NoError(t, q1.Snapshot(store))

	q2 := New(time.Minute, utils.NewDefaultLogger(100))
	require.NoError(t, q2.Restore(store))

	assert.Equal(t, q1.Len(), q2.Len())
	assert.ElementsMatch(t, q1.order, q2.order)
	assert.Equal(t, q1.sidecar["s2"], q2.sidecar["s2"])
}
