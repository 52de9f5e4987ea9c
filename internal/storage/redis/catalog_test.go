package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/booking-orders/internal/domain/catalog"
)

type mockCatalog struct {
	services map[string]catalog.Service
	extras   map[string]catalog.Extra
	calls    [][]string
	err      error
}

func (m *mockCatalog) ServicesByIDs(_ context.Context, ids []string) ([]catalog.Service, error) {
	m.calls = append(m.calls, ids)
	if m.err != nil {
		return nil, m.err
	}
	var out []catalog.Service
	for _, id := range ids {
		if s, ok := m.services[id]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockCatalog) ExtrasByIDs(_ context.Context, ids []string) ([]catalog.Extra, error) {
	m.calls = append(m.calls, ids)
	if m.err != nil {
		return nil, m.err
	}
	var out []catalog.Extra
	for _, id := range ids {
		if e, ok := m.extras[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func newMockCatalog() *mockCatalog {
	return &mockCatalog{
		services: map[string]catalog.Service{
			"standard": {ID: "standard", Cost: decimal.RequireFromString("100"), TimeDuration: decimal.NewFromInt(120), RelationType: catalog.RelationPlain},
			"bedrooms": {ID: "bedrooms", Cost: decimal.RequireFromString("30"), TimeDuration: decimal.NewFromInt(45), RelationType: catalog.RelationPlain, ServiceKey: catalog.KeyBedrooms},
		},
		extras: map[string]catalog.Extra{
			"deep": {ID: "deep", Price: decimal.RequireFromString("40"), Duration: decimal.NewFromInt(60), IsDeepCleaning: true, PriceMultiplier: decimal.RequireFromString("1.5")},
		},
	}
}

func setupTestCache(t *testing.T, next catalog.Repository) (*CatalogCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewCatalogCache(client, next, 10*time.Minute), mr
}

func TestServicesByIDs_MissThenHit(t *testing.T) {
	next := newMockCatalog()
	cache, mr := setupTestCache(t, next)
	ctx := context.Background()

	first, err := cache.ServicesByIDs(ctx, []string{"standard", "bedrooms"})
	require.NoError(t, err)
	assert.Len(t, first, 2)
	require.Len(t, next.calls, 1)

	assert.True(t, mr.Exists(servicePrefix+"standard"))
	ttl := mr.TTL(servicePrefix + "standard")
	assert.GreaterOrEqual(t, ttl, 10*time.Minute)
	assert.LessOrEqual(t, ttl, 12*time.Minute)

	second, err := cache.ServicesByIDs(ctx, []string{"standard", "bedrooms"})
	require.NoError(t, err)
	assert.Len(t, second, 2)
	assert.Len(t, next.calls, 1, "second read must be served from redis")

	byID := map[string]catalog.Service{}
	for _, s := range second {
		byID[s.ID] = s
	}
	assert.True(t, decimal.RequireFromString("100").Equal(byID["standard"].Cost))
	assert.Equal(t, catalog.KeyBedrooms, byID["bedrooms"].ServiceKey)
}

func TestServicesByIDs_LoadsOnlyMissing(t *testing.T) {
	next := newMockCatalog()
	cache, mr := setupTestCache(t, next)

	data, err := json.Marshal(next.services["standard"])
	require.NoError(t, err)
	require.NoError(t, mr.Set(servicePrefix+"standard", string(data)))

	got, err := cache.ServicesByIDs(context.Background(), []string{"standard", "bedrooms", "missing"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	require.Len(t, next.calls, 1)
	assert.Equal(t, []string{"bedrooms", "missing"}, next.calls[0])
	assert.False(t, mr.Exists(servicePrefix+"missing"))
}

func TestExtrasByIDs_CorruptEntryReloaded(t *testing.T) {
	next := newMockCatalog()
	cache, mr := setupTestCache(t, next)
	require.NoError(t, mr.Set(extraPrefix+"deep", "{not json"))

	got, err := cache.ExtrasByIDs(context.Background(), []string{"deep"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsDeepCleaning)
	assert.Len(t, next.calls, 1)
}

func TestServicesByIDs_RepositoryError(t *testing.T) {
	next := newMockCatalog()
	next.err = errors.New("connection reset")
	cache, _ := setupTestCache(t, next)

	_, err := cache.ServicesByIDs(context.Background(), []string{"standard"})
	require.ErrorIs(t, err, next.err)
}

func TestServicesByIDs_RedisDownFallsBack(t *testing.T) {
	next := newMockCatalog()
	cache, mr := setupTestCache(t, next)
	mr.Close()

	got, err := cache.ServicesByIDs(context.Background(), []string{"standard"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestInvalidate(t *testing.T) {
	next := newMockCatalog()
	cache, mr := setupTestCache(t, next)
	ctx := context.Background()

	_, err := cache.ExtrasByIDs(ctx, []string{"deep"})
	require.NoError(t, err)
	require.True(t, mr.Exists(extraPrefix+"deep"))

	require.NoError(t, cache.InvalidateExtras(ctx, "deep"))
	assert.False(t, mr.Exists(extraPrefix+"deep"))
	require.NoError(t, cache.InvalidateServices(ctx))
}
