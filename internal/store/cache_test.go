package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"construct-calc/internal/domain/models"
)

// countingTemplates counts GetTemplate calls reaching the backend.
type countingTemplates struct {
	TemplateStore
	gets int
}

func (c *countingTemplates) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	c.gets++
	return c.TemplateStore.GetTemplate(ctx, id)
}

func newCountingCache(t *testing.T, ttl time.Duration) (*CachedTemplates, *countingTemplates, *time.Time) {
	t.Helper()
	backend := &countingTemplates{TemplateStore: NewMemoryStore()}
	cache := NewCachedTemplates(backend, ttl)
	now := epoch
	cache.now = func() time.Time { return now }
	return cache, backend, &now
}

func TestCachedTemplatesReadThrough(t *testing.T) {
	ctx := context.Background()
	cache, backend, _ := newCountingCache(t, time.Minute)

	require.NoError(t, cache.CreateTemplate(ctx, &models.Template{ID: "t1", Name: "Curb"}))

	for i := 0; i < 3; i++ {
		got, err := cache.GetTemplate(ctx, "t1")
		require.NoError(t, err)
		assert.Equal(t, "Curb", got.Name)
	}
	assert.Equal(t, 1, backend.gets)
	assert.Equal(t, 1, cache.Len())
}

func TestCachedTemplatesExpires(t *testing.T) {
	ctx := context.Background()
	cache, backend, now := newCountingCache(t, time.Minute)
	require.NoError(t, cache.CreateTemplate(ctx, &models.Template{ID: "t1"}))

	_, err := cache.GetTemplate(ctx, "t1")
	require.NoError(t, err)

	*now = now.Add(59 * time.Second)
	_, err = cache.GetTemplate(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, backend.gets)

	*now = now.Add(2 * time.Second)
	_, err = cache.GetTemplate(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, backend.gets)
}

func TestCachedTemplatesInvalidateAndPurge(t *testing.T) {
	ctx := context.Background()
	cache, backend, _ := newCountingCache(t, time.Hour)
	require.NoError(t, cache.CreateTemplate(ctx, &models.Template{ID: "t1"}))
	require.NoError(t, cache.CreateTemplate(ctx, &models.Template{ID: "t2"}))

	_, _ = cache.GetTemplate(ctx, "t1")
	_, _ = cache.GetTemplate(ctx, "t2")
	assert.Equal(t, 2, cache.Len())

	cache.Invalidate("t1")
	assert.Equal(t, 1, cache.Len())
	_, _ = cache.GetTemplate(ctx, "t1")
	assert.Equal(t, 3, backend.gets)

	cache.Purge()
	assert.Equal(t, 0, cache.Len())
}

func TestCachedTemplatesDoesNotCacheMisses(t *testing.T) {
	ctx := context.Background()
	cache, backend, _ := newCountingCache(t, time.Hour)

	_, err := cache.GetTemplate(ctx, "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = cache.GetTemplate(ctx, "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, 2, backend.gets)
	assert.Equal(t, 0, cache.Len())
}

func TestCachedTemplatesZeroTTLDisablesCache(t *testing.T) {
	ctx := context.Background()
	cache, backend, _ := newCountingCache(t, 0)
	require.NoError(t, cache.CreateTemplate(ctx, &models.Template{ID: "t1"}))

	_, _ = cache.GetTemplate(ctx, "t1")
	_, _ = cache.GetTemplate(ctx, "t1")
	assert.Equal(t, 2, backend.gets)
	assert.Equal(t, 0, cache.Len())
}

func TestCachedTemplatesReturnsCopies(t *testing.T) {
	ctx := context.Background()
	cache, _, _ := newCountingCache(t, time.Hour)
	require.NoError(t, cache.CreateTemplate(ctx, &models.Template{
		ID:        "t1",
		Variables: []models.Variable{{Name: "length"}},
	}))

	first, err := cache.GetTemplate(ctx, "t1")
	require.NoError(t, err)
	first.Variables[0].Name = "changed"

	second, err := cache.GetTemplate(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "length", second.Variables[0].Name)
}
