package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	domain "user-records-service/internal/domain/user"
)

// setupTestRedis creates a miniredis instance for testing
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, mr
}

func sampleUser(id int64) *domain.User {
	age := 30
	zip := "1000"
	return &domain.User{
		ID:              id,
		Name:            "A",
		Email:           "a@x.com",
		Age:             &age,
		Recommendations: []string{"x", "y"},
		ZipCode:         &zip,
	}
}

func TestRedisUserCache_Set_Success(t *testing.T) {
	client, mr := setupTestRedis(t)

	logger := zaptest.NewLogger(t)
	cache := NewRedisUserCache(client, 5*time.Minute, logger)

	err := cache.Set(context.Background(), sampleUser(1))
	require.NoError(t, err)

	// Verify the stored document
	raw, err := mr.Get("user:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"user_id":1,"user_name":"A","user_email":"a@x.com","age":30,"recommendations":["x","y"],"zip_code":"1000"}`, raw)
	assert.Equal(t, 5*time.Minute, mr.TTL("user:1"))
}

func TestRedisUserCache_Set_NilUser(t *testing.T) {
	client, _ := setupTestRedis(t)

	logger := zaptest.NewLogger(t)
	cache := NewRedisUserCache(client, 5*time.Minute, logger)

	err := cache.Set(context.Background(), nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot cache nil user")
}

func TestRedisUserCache_Get_Success(t *testing.T) {
	client, _ := setupTestRedis(t)

	logger := zaptest.NewLogger(t)
	cache := NewRedisUserCache(client, 5*time.Minute, logger)

	user := sampleUser(1)
	require.NoError(t, cache.Set(context.Background(), user))

	cached, err := cache.Get(context.Background(), 1)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, user, cached)
}

func TestRedisUserCache_Get_OptionalFieldsAbsent(t *testing.T) {
	client, _ := setupTestRedis(t)

	logger := zaptest.NewLogger(t)
	cache := NewRedisUserCache(client, 5*time.Minute, logger)

	require.NoError(t, cache.Set(context.Background(), &domain.User{ID: 2, Name: "B", Email: "b@x.com"}))

	cached, err := cache.Get(context.Background(), 2)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Nil(t, cached.Age)
	assert.Nil(t, cached.ZipCode)
	assert.Equal(t, []string{}, cached.Recommendations)
}

func TestRedisUserCache_Get_CacheMiss(t *testing.T) {
	client, _ := setupTestRedis(t)

	logger := zaptest.NewLogger(t)
	cache := NewRedisUserCache(client, 5*time.Minute, logger)

	cached, err := cache.Get(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestRedisUserCache_Get_RedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)

	logger := zaptest.NewLogger(t)
	cache := NewRedisUserCache(client, 5*time.Minute, logger)

	mr.Close()

	cached, err := cache.Get(context.Background(), 1)
	assert.Error(t, err)
	assert.Nil(t, cached)
}

func TestRedisUserCache_Get_CorruptEntry(t *testing.T) {
	client, mr := setupTestRedis(t)

	logger := zaptest.NewLogger(t)
	cache := NewRedisUserCache(client, 5*time.Minute, logger)

	require.NoError(t, mr.Set(CacheKey(1), "{not json"))

	cached, err := cache.Get(context.Background(), 1)
	assert.Error(t, err)
	assert.Nil(t, cached)
}

func TestRedisUserCache_Delete_Success(t *testing.T) {
	client, _ := setupTestRedis(t)

	logger := zaptest.NewLogger(t)
	cache := NewRedisUserCache(client, 5*time.Minute, logger)

	require.NoError(t, cache.Set(context.Background(), sampleUser(1)))

	err := cache.Delete(context.Background(), 1)
	require.NoError(t, err)

	cached, err := cache.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestRedisUserCache_DeleteMultiple_Success(t *testing.T) {
	client, _ := setupTestRedis(t)

	logger := zaptest.NewLogger(t)
	cache := NewRedisUserCache(client, 5*time.Minute, logger)

	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, cache.Set(context.Background(), sampleUser(id)))
	}

	err := cache.DeleteMultiple(context.Background(), 1, 2, 3)
	require.NoError(t, err)

	for _, id := range []int64{1, 2, 3} {
		cached, err := cache.Get(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, cached)
	}
}

func TestRedisUserCache_DeleteMultiple_EmptyIDs(t *testing.T) {
	client, _ := setupTestRedis(t)

	logger := zaptest.NewLogger(t)
	cache := NewRedisUserCache(client, 5*time.Minute, logger)

	err := cache.DeleteMultiple(context.Background())
	require.NoError(t, err)
}

func TestRedisUserCache_TTL(t *testing.T) {
	client, mr := setupTestRedis(t)

	logger := zaptest.NewLogger(t)
	cache := NewRedisUserCache(client, 2*time.Second, logger)

	require.NoError(t, cache.Set(context.Background(), sampleUser(1)))

	// Fast forward time in miniredis
	mr.FastForward(3 * time.Second)

	cached, err := cache.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestRedisUserCache_Generation_StartsAtZero(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewRedisUserCache(client, 5*time.Minute, zaptest.NewLogger(t))

	gen, err := cache.Generation(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), gen)
}

func TestRedisUserCache_DeleteMultiple_BumpsGeneration(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisUserCache(client, 5*time.Minute, zaptest.NewLogger(t))

	require.NoError(t, cache.DeleteMultiple(context.Background(), 1, 2))
	require.NoError(t, cache.Delete(context.Background(), 1))

	gen, err := cache.Generation(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(2), gen)

	gen, err = cache.Generation(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), gen)

	assert.Equal(t, generationTTL, mr.TTL(GenerationKey(1)))
}

func TestRedisUserCache_SetIfGeneration_Current(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisUserCache(client, 5*time.Minute, zaptest.NewLogger(t))

	written, err := cache.SetIfGeneration(context.Background(), sampleUser(1), 0)
	require.NoError(t, err)
	assert.True(t, written)
	assert.Equal(t, 5*time.Minute, mr.TTL(CacheKey(1)))

	cached, err := cache.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, sampleUser(1), cached)
}

func TestRedisUserCache_SetIfGeneration_StaleIsSkipped(t *testing.T) {
	client, mr := setupTestRedis(t)
	cache := NewRedisUserCache(client, 5*time.Minute, zaptest.NewLogger(t))

	gen, err := cache.Generation(context.Background(), 1)
	require.NoError(t, err)

	// An invalidation lands between the generation read and the fill.
	require.NoError(t, cache.Delete(context.Background(), 1))

	written, err := cache.SetIfGeneration(context.Background(), sampleUser(1), gen)
	require.NoError(t, err)
	assert.False(t, written)
	assert.False(t, mr.Exists(CacheKey(1)))

	gen, err = cache.Generation(context.Background(), 1)
	require.NoError(t, err)
	written, err = cache.SetIfGeneration(context.Background(), sampleUser(1), gen)
	require.NoError(t, err)
	assert.True(t, written)
}

func TestRedisUserCache_SetIfGeneration_NilUser(t *testing.T) {
	client, _ := setupTestRedis(t)
	cache := NewRedisUserCache(client, 5*time.Minute, zaptest.NewLogger(t))

	written, err := cache.SetIfGeneration(context.Background(), nil, 0)
	assert.Error(t, err)
	assert.False(t, written)
}
