package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"push-notification-service/internal/model"
)

func setupCache(t *testing.T, ttl time.Duration) (*NotificationCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewNotificationCache(rdb, ttl), mr
}

func TestNotificationCache_MissThenHit(t *testing.T) {
	ctx := context.Background()
	c, _ := setupCache(t, time.Minute)

	_, ok, err := c.GetList(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	items := []model.Notification{{
		ID:        1,
		Amount:    49.99,
		Currency:  "USD",
		Text:      "Payment received",
		CreatedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}}
	require.NoError(t, c.SetList(ctx, items))

	got, ok, err := c.GetList(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, items, got)
}

func TestNotificationCache_EmptyListIsCached(t *testing.T) {
	ctx := context.Background()
	c, _ := setupCache(t, time.Minute)

	require.NoError(t, c.SetList(ctx, nil))

	got, ok, err := c.GetList(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestNotificationCache_TTLAndInvalidate(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t, 10*time.Second)

	require.NoError(t, c.SetList(ctx, []model.Notification{{ID: 1}}))
	assert.Equal(t, 10*time.Second, mr.TTL(ListKey))

	require.NoError(t, c.Invalidate(ctx))
	assert.False(t, mr.Exists(ListKey))

	require.NoError(t, c.SetList(ctx, []model.Notification{{ID: 1}}))
	mr.FastForward(11 * time.Second)
	_, ok, err := c.GetList(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNotificationCache_CorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t, time.Minute)

	require.NoError(t, mr.Set(ListKey, "{not json"))

	_, ok, err := c.GetList(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(ListKey))
}

func TestNotificationCache_ServerDown(t *testing.T) {
	ctx := context.Background()
	c, mr := setupCache(t, time.Minute)
	mr.Close()

	_, ok, err := c.GetList(ctx)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, c.Invalidate(ctx))
}

func TestNewNotificationCache_DefaultTTL(t *testing.T) {
	c := NewNotificationCache(nil, 0)
	assert.Equal(t, defaultTTL, c.ttl)
}
