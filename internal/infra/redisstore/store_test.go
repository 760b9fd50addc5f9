package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lostpaws/pawpoints/internal/domain"
)

func TestKeys(t *testing.T) {
	s := New(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), "")
	defer s.Close()

	assert.Equal(t, "pawpoints:progress:u1", s.progressKey("u1"))
	assert.Equal(t, "pawpoints:users", s.usersKey())

	custom := New(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"}), "staging")
	defer custom.Close()
	assert.Equal(t, "staging:progress:u1", custom.progressKey("u1"))
}

func TestDecode(t *testing.T) {
	p, err := decode("u1", []byte(`{"user_id":"u1","xp":40}`))
	require.NoError(t, err)
	assert.Equal(t, int64(40), p.XP)
	assert.NotNil(t, p.UnlockedBadges)

	_, err = decode("u1", []byte(`{`))
	assert.ErrorContains(t, err, "decode progress u1")
}

func TestOpen_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Open(ctx, Options{Addr: "127.0.0.1:1"})
	assert.ErrorContains(t, err, "ping redis 127.0.0.1:1")
}

func TestLoad_UnreachableReturnsError(t *testing.T) {
	s := New(redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1}), "")
	defer s.Close()

	_, _, err := s.Load(context.Background(), "u1")
	assert.ErrorContains(t, err, "get progress")
}

// TestStore_Integration runs against a live server when
// PAWPOINTS_TEST_REDIS_ADDR is set.
func TestStore_Integration(t *testing.T) {
	addr := os.Getenv("PAWPOINTS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("PAWPOINTS_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	prefix := "pawpoints-test-" + time.Now().Format("150405.000000")
	s, err := Open(ctx, Options{Addr: addr, Prefix: prefix})
	require.NoError(t, err)
	t.Cleanup(func() {
		keys, _ := s.client.Keys(ctx, prefix+":*").Result()
		if len(keys) > 0 {
			s.client.Del(ctx, keys...)
		}
		s.Close()
	})

	_, ok, err := s.Load(ctx, "zoe")
	require.NoError(t, err)
	assert.False(t, ok)

	for _, id := range []string{"zoe", "adam"} {
		p := domain.NewUserProgress(id)
		p.XP = int64(len(id))
		require.NoError(t, s.Save(ctx, p))
	}

	got, ok, err := s.Load(ctx, "zoe")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(3), got.XP)

	ids, err := s.ListUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"adam", "zoe"}, ids)

	many, err := s.LoadMany(ctx, []string{"adam", "nobody"})
	require.NoError(t, err)
	assert.Len(t, many, 1)
	assert.Equal(t, int64(4), many["adam"].XP)
}
