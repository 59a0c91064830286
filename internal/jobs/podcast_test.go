package jobs

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) *redis.Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestPodcastLockRejectsSecondAcquireForSameSpace(t *testing.T) {
	client := setupTestRedis(t)
	searchSpaceID := uuid.New()

	first, err := client.SetNX(context.Background(), podcastLockKey(searchSpaceID), "1", podcastLockTTL).Result()
	require.NoError(t, err)
	assert.True(t, first)

	second, err := client.SetNX(context.Background(), podcastLockKey(searchSpaceID), "1", podcastLockTTL).Result()
	require.NoError(t, err)
	assert.False(t, second)
}

func TestPodcastLockIsIndependentPerSearchSpace(t *testing.T) {
	client := setupTestRedis(t)
	a, b := uuid.New(), uuid.New()

	first, err := client.SetNX(context.Background(), podcastLockKey(a), "1", podcastLockTTL).Result()
	require.NoError(t, err)
	second, err := client.SetNX(context.Background(), podcastLockKey(b), "1", podcastLockTTL).Result()
	require.NoError(t, err)

	assert.True(t, first)
	assert.True(t, second)
}

func TestExtensionForKnownMimeTypes(t *testing.T) {
	assert.Equal(t, "wav", extensionFor("audio/wav"))
	assert.Equal(t, "ogg", extensionFor("audio/ogg"))
	assert.Equal(t, "mp3", extensionFor("audio/mpeg"))
}

func TestPodcastLockKeyIsStablePerSpace(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, podcastLockKey(id), podcastLockKey(id))
	assert.NotEqual(t, podcastLockKey(id), podcastLockKey(uuid.New()))
}
