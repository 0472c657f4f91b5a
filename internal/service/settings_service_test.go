package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/support-core/internal/config"
	"github.com/spec-kit/support-core/internal/domain"
	apperrors "github.com/spec-kit/support-core/pkg/util"
)

type fakeSettingsRepo struct {
	mu       sync.Mutex
	settings map[string]domain.Setting
	reads    int
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{settings: make(map[string]domain.Setting)}
}

func (r *fakeSettingsRepo) Get(_ context.Context, key string) (*domain.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	setting, ok := r.settings[key]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &setting, nil
}

func (r *fakeSettingsRepo) Upsert(_ context.Context, setting *domain.Setting) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	setting.UpdatedAt = time.Now()
	r.settings[setting.Key] = *setting
	return nil
}

func (r *fakeSettingsRepo) ListByCategory(_ context.Context, category string) ([]domain.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	var out []domain.Setting
	for _, setting := range r.settings {
		if setting.Category == category {
			out = append(out, setting)
		}
	}
	return out, nil
}

func (r *fakeSettingsRepo) ListAll(_ context.Context) ([]domain.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	var out []domain.Setting
	for _, setting := range r.settings {
		out = append(out, setting)
	}
	return out, nil
}

func (r *fakeSettingsRepo) ListPublic(_ context.Context) ([]domain.Setting, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	var out []domain.Setting
	for _, setting := range r.settings {
		if setting.Public {
			out = append(out, setting)
		}
	}
	return out, nil
}

func (r *fakeSettingsRepo) readCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

type fakeCache struct {
	mu        sync.Mutex
	entries   map[string]string
	deleted   []string
	deleteErr error
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]string)}
}

func (c *fakeCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	val, ok := c.entries[key]
	return val, ok, nil
}

func (c *fakeCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return c.deleteErr
	}
	for _, key := range keys {
		delete(c.entries, key)
		c.deleted = append(c.deleted, key)
	}
	return nil
}

func (c *fakeCache) deletedKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.deleted...)
}

func newSettingsFixture() (*SettingsService, *fakeSettingsRepo, *fakeCache) {
	repo := newFakeSettingsRepo()
	cache := newFakeCache()
	svc := NewSettingsService(repo, cache, config.SettingsConfig{CacheTTLSeconds: 60}, nil)
	return svc, repo, cache
}

func TestGetReadsThroughCache(t *testing.T) {
	svc, repo, _ := newSettingsFixture()
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, &domain.Setting{Key: "support.hours", Category: "support", Value: "24/7"}))

	first, err := svc.Get(ctx, "support.hours")
	require.NoError(t, err)
	assert.Equal(t, "24/7", first.Value)
	storeReads := repo.readCount()

	second, err := svc.Get(ctx, "support.hours")
	require.NoError(t, err)
	assert.Equal(t, first.Value, second.Value)
	assert.Equal(t, storeReads, repo.readCount(), "second read must come from cache")
}

func TestUpdateInvalidatesAllDerivedKeys(t *testing.T) {
	svc, _, cache := newSettingsFixture()
	ctx := context.Background()

	err := svc.Update(ctx, &domain.Setting{Key: "support.hours", Category: "support", Value: "9-5"})
	require.NoError(t, err)

	deleted := cache.deletedKeys()
	assert.ElementsMatch(t, []string{
		"settings:support.hours",
		"settings:category:support",
		"settings:all",
		"settings:public",
	}, deleted)
}

func TestUpdateFailsWhenInvalidationFails(t *testing.T) {
	svc, _, cache := newSettingsFixture()
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, &domain.Setting{Key: "banner", Category: "ui", Value: "old"}))
	setting, err := svc.Get(ctx, "banner")
	require.NoError(t, err)
	assert.Equal(t, "old", setting.Value)

	cache.deleteErr = assert.AnError
	err = svc.Update(ctx, &domain.Setting{Key: "banner", Category: "ui", Value: "new"})
	require.Error(t, err, "a mutation whose invalidation failed must not report success")
	assert.Equal(t, "INTEGRITY_ERROR", apperrors.ToDomainError(err).Code)
}

func TestUpdateIsVisibleToSubsequentReads(t *testing.T) {
	svc, _, _ := newSettingsFixture()
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, &domain.Setting{Key: "banner", Category: "ui", Value: "old"}))
	setting, err := svc.Get(ctx, "banner")
	require.NoError(t, err)
	assert.Equal(t, "old", setting.Value)

	require.NoError(t, svc.Update(ctx, &domain.Setting{Key: "banner", Category: "ui", Value: "new"}))
	setting, err = svc.Get(ctx, "banner")
	require.NoError(t, err)
	assert.Equal(t, "new", setting.Value, "stale cache entry must not survive the update")
}

func TestListPublicOnlyReturnsPublicSettings(t *testing.T) {
	svc, repo, _ := newSettingsFixture()
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, &domain.Setting{Key: "a", Category: "general", Value: "1", Public: true}))
	require.NoError(t, repo.Upsert(ctx, &domain.Setting{Key: "b", Category: "general", Value: "2"}))

	settings, err := svc.ListPublic(ctx)
	require.NoError(t, err)
	require.Len(t, settings, 1)
	assert.Equal(t, "a", settings[0].Key)
}

func TestGetMissingSettingIsNotFound(t *testing.T) {
	svc, _, _ := newSettingsFixture()
	_, err := svc.Get(context.Background(), "missing")
	require.Error(t, err)
}

func TestNilCacheFallsBackToStore(t *testing.T) {
	repo := newFakeSettingsRepo()
	svc := NewSettingsService(repo, nil, config.SettingsConfig{}, nil)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, &domain.Setting{Key: "k", Category: "general", Value: "v"}))

	setting, err := svc.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", setting.Value)
}
