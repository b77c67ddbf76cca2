package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/decisionkit/decisionkit-go/decisionkit"
)

// exerciseMemory runs the shared behaviour checks against any backend.
func exerciseMemory(t *testing.T, mem Memory) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		msg := decisionkit.NewMessage("user", fmt.Sprintf("q%d", i))
		msg.Timestamp = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, mem.Store(ctx, "conv-1", msg))
	}
	require.NoError(t, mem.Store(ctx, "conv-2", decisionkit.NewMessage("user", "other")))

	history, err := mem.Retrieve(ctx, "conv-1", 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "q2", history[0].Content)
	assert.Equal(t, "q4", history[2].Content)

	all, err := mem.Retrieve(ctx, "conv-1", 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	empty, err := mem.Retrieve(ctx, "missing", 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, mem.Clear(ctx, "conv-1"))
	cleared, err := mem.Retrieve(ctx, "conv-1", 10)
	require.NoError(t, err)
	assert.Empty(t, cleared)

	other, err := mem.Retrieve(ctx, "conv-2", 10)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestInMemoryMemory(t *testing.T) {
	mem := NewInMemoryMemory(10)
	exerciseMemory(t, mem)
	assert.Len(t, mem.storage, 1)
}

func TestInMemoryMemoryBounded(t *testing.T) {
	mem := NewInMemoryMemory(2)
	ctx := context.Background()
	for _, c := range []string{"a", "b", "c"} {
		require.NoError(t, mem.Store(ctx, "x", decisionkit.NewMessage("user", c)))
	}
	msgs, err := mem.Retrieve(ctx, "x", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "b", msgs[0].Content)
}

func TestRedisMemory(t *testing.T) {
	mr := miniredis.RunT(t)
	mem, err := NewRedisMemory(RedisConfig{URL: "redis://" + mr.Addr(), TTL: time.Hour})
	require.NoError(t, err)
	defer mem.Close()

	exerciseMemory(t, mem)
	assert.True(t, mr.Exists("decisionkit:memory:conv-2:messages"))
	assert.Equal(t, time.Hour, mr.TTL("decisionkit:memory:conv-2:messages"))
}

func TestRedisMemoryBoundedAndMetadata(t *testing.T) {
	mr := miniredis.RunT(t)
	mem, err := NewRedisMemory(RedisConfig{URL: "redis://" + mr.Addr(), MaxSize: 2})
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, c := range []string{"same", "same", "last"} {
		msg := decisionkit.NewMessage("agent", c).WithMetadata("domain", "sales")
		msg.Timestamp = base.Add(time.Duration(i) * time.Millisecond)
		require.NoError(t, mem.Store(ctx, "x", msg))
	}

	members, err := mr.ZMembers("decisionkit:memory:x:messages")
	require.NoError(t, err)
	assert.Equal(t, 2, len(members))

	msgs, err := mem.Retrieve(ctx, "x", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "same", msgs[0].Content)
	assert.Equal(t, "last", msgs[1].Content)
	assert.Equal(t, "sales", msgs[1].MetadataString("domain"))
}
