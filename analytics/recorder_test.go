package analytics

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creastat/chatcore/identity"
	"github.com/creastat/chatcore/kv"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestRecorder(t *testing.T) (*Recorder, kv.Store, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)}
	store, err := kv.NewStore(kv.StoreTypeMemory, kv.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewRecorder(store, WithClock(clock.Now)), store, clock
}

func record(n int) Record {
	return Record{
		UserID:         "203.0.113.7",
		UserInfo:       identity.UserInfo{IP: "203.0.113.7", Device: identity.Desktop},
		ConversationID: "conv_1_abc",
		Message:        fmt.Sprintf("question %d", n),
		Response:       fmt.Sprintf("answer %d", n),
		TokenCount:     4,
		ResponseTimeMs: 120,
		Timestamp:      "2026-10-19T08:00:00Z",
	}
}

func TestRecordWritesKeyAndTotal(t *testing.T) {
	ctx := context.Background()
	r, store, _ := newTestRecorder(t)

	require.NoError(t, r.Record(ctx, record(1)))

	keys, err := store.List(ctx, "analytics:", 0)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Regexp(t, regexp.MustCompile(`^analytics:\d{13}:[0-9a-f]{9}$`), keys[0])

	total, found, err := store.Get(ctx, "stats:total_requests")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1", total)

	require.NoError(t, r.Record(ctx, record(2)))
	n, err := r.Total(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRecordsExpireButTotalDoesNot(t *testing.T) {
	ctx := context.Background()
	r, _, clock := newTestRecorder(t)

	require.NoError(t, r.Record(ctx, record(1)))
	clock.Advance(DefaultTTL + time.Second)

	page, err := r.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Equal(t, 1, page.Total)
}

func TestListPagesOldestFirst(t *testing.T) {
	ctx := context.Background()
	r, _, clock := newTestRecorder(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, r.Record(ctx, record(i)))
		clock.Advance(time.Millisecond)
	}

	page, err := r.List(ctx, 2, 1)
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "question 1", page.Records[0].Message)
	assert.Equal(t, "question 2", page.Records[1].Message)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.Limit)
	assert.Equal(t, 1, page.Offset)

	page, err = r.List(ctx, 10, 7)
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.NotNil(t, page.Records)

	page, err = r.List(ctx, 0, -3)
	require.NoError(t, err)
	assert.Len(t, page.Records, 5)
	assert.Equal(t, DefaultListLimit, page.Limit)
	assert.Equal(t, 0, page.Offset)
}

func TestListClampsHugeBounds(t *testing.T) {
	ctx := context.Background()
	r, _, clock := newTestRecorder(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, r.Record(ctx, record(i)))
		clock.Advance(time.Millisecond)
	}

	page, err := r.List(ctx, math.MaxInt, 1)
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "question 1", page.Records[0].Message)
	assert.Equal(t, MaxListLimit, page.Limit)

	page, err = r.List(ctx, math.MaxInt, math.MaxInt)
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	assert.Equal(t, 3, page.Total)
}

func TestListSkipsUndecodableRecords(t *testing.T) {
	ctx := context.Background()
	r, store, _ := newTestRecorder(t)

	require.NoError(t, store.Put(ctx, "analytics:0000000000001:garbage00", "{not json", time.Hour))
	require.NoError(t, r.Record(ctx, record(1)))

	page, err := r.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, "question 1", page.Records[0].Message)
}

func TestTotalToleratesGarbage(t *testing.T) {
	ctx := context.Background()
	r, store, _ := newTestRecorder(t)

	require.NoError(t, store.Put(ctx, "stats:total_requests", "NaN", 0))
	n, err := r.Total(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	require.NoError(t, r.Record(ctx, record(1)))
	n, err = r.Total(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// Two writers that read the same total both write total+1: the documented
// under-count.
func TestTotalIsBestEffort(t *testing.T) {
	ctx := context.Background()
	r, store, _ := newTestRecorder(t)

	before, err := r.Total(ctx)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "stats:total_requests", fmt.Sprint(before+1), 0))
	require.NoError(t, store.Put(ctx, "stats:total_requests", fmt.Sprint(before+1), 0))

	n, err := r.Total(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
