package offline

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estructura360/estructura-360-engineering-sub000/internal/db"
	"github.com/estructura360/estructura-360-engineering-sub000/internal/migrations"
)

type recordingSender struct {
	mu     sync.Mutex
	sent   []Item
	failOn map[string]error
	calls  map[string]int
}

func newRecordingSender() *recordingSender {
	return &recordingSender{failOn: map[string]error{}, calls: map[string]int{}}
}

func (r *recordingSender) Send(_ context.Context, it Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[it.ID]++
	if err := r.failOn[it.ID]; err != nil {
		return err
	}
	r.sent = append(r.sent, it)
	return nil
}

func (r *recordingSender) fail(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failOn, id)
		return
	}
	r.failOn[id] = err
}

func (r *recordingSender) sentIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.sent))
	for _, it := range r.sent {
		ids = append(ids, it.ID)
	}
	return ids
}

type countingObserver struct {
	mu     sync.Mutex
	sent   int
	failed int
	depth  int
}

func (c *countingObserver) SyncSent(string)   { c.mu.Lock(); c.sent++; c.mu.Unlock() }
func (c *countingObserver) SyncFailed(string) { c.mu.Lock(); c.failed++; c.mu.Unlock() }
func (c *countingObserver) QueueDepth(n int)  { c.mu.Lock(); c.depth = n; c.mu.Unlock() }

func newQueueDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, migrations.Up(context.Background(), database))
	return database
}

func testOptions() Options {
	return Options{
		Interval:    10 * time.Millisecond,
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
		BatchSize:   2,
		StartOnline: true,
	}
}

func TestFlushReplaysInEnqueueOrder(t *testing.T) {
	ctx := context.Background()
	sender := newRecordingSender()
	obs := &countingObserver{}
	opts := testOptions()
	opts.Observer = obs
	m := New(newQueueDB(t), sender, opts)

	for _, id := range []string{"p1", "c1", "c2", "l1", "c3"} {
		_, err := m.Enqueue(ctx, id, KindCalculation, map[string]string{"id": id})
		require.NoError(t, err)
	}

	res, err := m.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, FlushResult{Sent: 5, Remaining: 0}, res)
	assert.Equal(t, []string{"p1", "c1", "c2", "l1", "c3"}, sender.sentIDs())

	n, err := m.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 5, obs.sent)
	assert.Zero(t, obs.depth)
}

func TestEnqueueGeneratesIDAndIgnoresDuplicates(t *testing.T) {
	ctx := context.Background()
	m := New(newQueueDB(t), newRecordingSender(), testOptions())

	id, err := m.Enqueue(ctx, "", KindLog, map[string]string{"message": "hola"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = m.Enqueue(ctx, id, KindLog, map[string]string{"message": "otra vez"})
	require.NoError(t, err)

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.JSONEq(t, `{"message":"hola"}`, string(pending[0].Payload))
	assert.Equal(t, KindLog, pending[0].Kind)
}

func TestFlushStopsAtFirstFailureAndKeepsItems(t *testing.T) {
	ctx := context.Background()
	sender := newRecordingSender()
	obs := &countingObserver{}
	opts := testOptions()
	opts.Observer = obs
	m := New(newQueueDB(t), sender, opts)

	for _, id := range []string{"a", "b", "c"} {
		_, err := m.Enqueue(ctx, id, KindCalculation, id)
		require.NoError(t, err)
	}
	boom := errors.New("connection refused")
	sender.fail("b", boom)

	res, err := m.Flush(ctx)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, FlushResult{Sent: 1, Remaining: 2}, res)
	assert.False(t, m.Connectivity().Online())
	assert.Equal(t, 3, sender.calls["b"], "one attempt plus two retries")
	assert.Equal(t, 3, obs.failed)

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "b", pending[0].ID)
	assert.Equal(t, 3, pending[0].Attempts)
	assert.Equal(t, "connection refused", pending[0].LastError)

	_, err = m.Flush(ctx)
	assert.ErrorIs(t, err, ErrOffline)

	sender.fail("b", nil)
	m.Connectivity().Set(true)
	res, err = m.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, []string{"a", "b", "c"}, sender.sentIDs())
}

func TestStartDeliversInBackgroundAndCloseStops(t *testing.T) {
	ctx := context.Background()
	sender := newRecordingSender()
	m := New(newQueueDB(t), sender, testOptions())

	m.Start(ctx)
	_, err := m.Enqueue(ctx, "x1", KindProject, map[string]string{"name": "Casa"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(sender.sentIDs()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}

func TestPingControlsConnectivity(t *testing.T) {
	ctx := context.Background()
	sender := newRecordingSender()

	var mu sync.Mutex
	reachable := false
	opts := testOptions()
	opts.StartOnline = false
	opts.Ping = func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if !reachable {
			return errors.New("no route to host")
		}
		return nil
	}
	m := New(newQueueDB(t), sender, opts)

	_, err := m.Enqueue(ctx, "c1", KindCalculation, "payload")
	require.NoError(t, err)

	m.Start(ctx)
	defer m.Close()

	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, sender.sentIDs())
	assert.False(t, m.Connectivity().Online())

	mu.Lock()
	reachable = true
	mu.Unlock()

	require.Eventually(t, func() bool {
		return len(sender.sentIDs()) == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, m.Connectivity().Online())
}

func TestBackgroundLoopRecoversWithoutReachabilityCheck(t *testing.T) {
	ctx := context.Background()
	sender := newRecordingSender()
	sender.fail("r1", errors.New("connection refused"))
	m := New(newQueueDB(t), sender, testOptions())

	_, err := m.Enqueue(ctx, "r1", KindProject, map[string]string{"name": "Casa"})
	require.NoError(t, err)

	_, err = m.Flush(ctx)
	require.Error(t, err)
	require.False(t, m.Connectivity().Online())

	sender.fail("r1", nil)
	m.Start(ctx)
	defer m.Close()

	require.Eventually(t, func() bool {
		return len(sender.sentIDs()) == 1 && m.Connectivity().Online()
	}, 2*time.Second, 5*time.Millisecond)

	n, err := m.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOfflineTickWithEmptyQueueStaysOffline(t *testing.T) {
	opts := testOptions()
	opts.StartOnline = false
	m := New(newQueueDB(t), newRecordingSender(), opts)

	m.tick(context.Background())
	assert.False(t, m.Connectivity().Online())
}

func TestConnectivitySubscribersSeeChanges(t *testing.T) {
	c := NewConnectivity(false)
	ch, cancel := c.Subscribe()
	defer cancel()

	c.Set(false)
	select {
	case <-ch:
		t.Fatal("no change must not notify")
	default:
	}

	c.Set(true)
	c.Set(false)
	c.Set(true)
	assert.True(t, <-ch, "subscriber sees the latest state")
	assert.True(t, c.Online())
}
