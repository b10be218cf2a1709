package session

import (
	"context"
	"fmt"
	"regexp"
	"testing"
	"time"

	"github.com/creastat/chatcore"
	"github.com/creastat/chatcore/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestStore(t *testing.T, opts ...Option) (*Store, kv.Store, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
	store, err := kv.NewStore(kv.StoreTypeMemory, kv.WithClock(clock.Now))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return NewStore(store, opts...), store, clock
}

func conversation(n int) chatcore.Conversation {
	conv := chatcore.Conversation{{Role: chatcore.RoleSystem, Content: "prompt"}}
	for i := 1; i < n; i++ {
		role := chatcore.RoleUser
		if i%2 == 0 {
			role = chatcore.RoleAssistant
		}
		conv = append(conv, chatcore.Message{Role: role, Content: fmt.Sprintf("turn %d", i)})
	}
	return conv
}

func TestLoadAbsent(t *testing.T) {
	s, _, _ := newTestStore(t)

	conv, err := s.Load(context.Background(), "conv_missing")
	require.NoError(t, err)
	assert.NotNil(t, conv)
	assert.Empty(t, conv)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	conv := conversation(5)

	stored, err := s.Save(ctx, "c1", conv)
	require.NoError(t, err)
	assert.Equal(t, conv, stored)

	loaded, err := s.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, conv, loaded)
}

func TestSaveTruncatesToMaxMessages(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)

	conv := conversation(12)
	_, err := s.Save(ctx, "c1", conv)
	require.NoError(t, err)

	loaded, err := s.Load(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, loaded, DefaultMaxMessages)
	assert.Equal(t, conv[2:], loaded)
}

func TestStoredLengthNeverExceedsMax(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t, WithMaxMessages(4))

	var conv chatcore.Conversation
	for turn := 0; turn < 20; turn++ {
		loaded, err := s.Load(ctx, "c1")
		require.NoError(t, err)
		conv = append(loaded,
			chatcore.Message{Role: chatcore.RoleUser, Content: "q"},
			chatcore.Message{Role: chatcore.RoleAssistant, Content: "a"},
		)
		stored, err := s.Save(ctx, "c1", conv)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(stored), 4)
	}
}

func TestSlidingExpiry(t *testing.T) {
	ctx := context.Background()
	s, _, clock := newTestStore(t, WithTTL(time.Hour))
	conv := conversation(3)

	_, err := s.Save(ctx, "c1", conv)
	require.NoError(t, err)

	clock.now = clock.now.Add(50 * time.Minute)
	_, err = s.Save(ctx, "c1", conv)
	require.NoError(t, err)

	clock.now = clock.now.Add(50 * time.Minute)
	loaded, err := s.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, conv, loaded, "save re-arms the session lifetime")

	clock.now = clock.now.Add(61 * time.Minute)
	loaded, err = s.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, loaded, "idle session is lost")
}

func TestLoadCorruptResetsToEmpty(t *testing.T) {
	ctx := context.Background()
	s, store, _ := newTestStore(t)

	cases := map[string]string{
		"not json":        "{{{",
		"wrong shape":     `{"role":"user"}`,
		"late system":     `[{"role":"user","content":"a"},{"role":"system","content":"b"}]`,
		"unknown role":    `[{"role":"tool","content":"a"}]`,
		"json null value": `null`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Put(ctx, "conversations:bad", raw, time.Hour))
			conv, err := s.Load(ctx, "bad")
			require.NoError(t, err)
			assert.NotNil(t, conv)
			assert.Empty(t, conv)
		})
	}
}

func TestTokenBudget(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t, WithTokenBudget(2))

	conv := chatcore.Conversation{
		{Role: chatcore.RoleUser, Content: "aaaaaaaa"},
		{Role: chatcore.RoleAssistant, Content: "bbbb"},
		{Role: chatcore.RoleUser, Content: "cccc"},
	}
	stored, err := s.Save(ctx, "c1", conv)
	require.NoError(t, err)
	assert.Equal(t, conv[1:], stored)
}

func TestNewID(t *testing.T) {
	now := time.UnixMilli(1760000000123)
	id := NewID(now)
	assert.Regexp(t, regexp.MustCompile(`^conv_1760000000123_[0-9a-z]{9}$`), id)
	assert.NotEqual(t, id, NewID(now))
}
