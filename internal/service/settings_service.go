package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/support-core/internal/config"
	"github.com/spec-kit/support-core/internal/domain"
	"github.com/spec-kit/support-core/internal/repository"
	apperrors "github.com/spec-kit/support-core/pkg/util"
)

const (
	settingsKeyPrefix      = "settings:"
	settingsCategoryPrefix = "settings:category:"
	settingsAllKey         = "settings:all"
	settingsPublicKey      = "settings:public"
)

// SettingsService serves configuration records through a short-lived cache.
// Mutations invalidate every cache entry that could serve the stale value
// before returning.
type SettingsService struct {
	repo   repository.SettingsRepository
	cache  SettingsCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewSettingsService builds the service. The cache may be nil, in which case
// every read hits the store.
func NewSettingsService(repo repository.SettingsRepository, cache SettingsCache, cfg config.SettingsConfig, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, cache: cache, ttl: cfg.CacheTTL(), logger: logger}
}

// Get returns a single setting, read-through cached under settings:{key}.
func (s *SettingsService) Get(ctx context.Context, key string) (*domain.Setting, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, apperrors.NewValidationError("setting key is required", nil)
	}

	cacheKey := settingsKeyPrefix + key
	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, cacheKey); err != nil {
			s.logger.Warn("settings cache read failed", zap.String("key", cacheKey), zap.Error(err))
		} else if ok {
			var setting domain.Setting
			if err := json.Unmarshal([]byte(raw), &setting); err == nil {
				return &setting, nil
			}
		}
	}

	setting, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.fill(ctx, cacheKey, setting)
	return setting, nil
}

// ListByCategory returns settings in a category, cached under
// settings:category:{category}.
func (s *SettingsService) ListByCategory(ctx context.Context, category string) ([]domain.Setting, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, apperrors.NewValidationError("category is required", nil)
	}
	return s.cachedList(ctx, settingsCategoryPrefix+category, func() ([]domain.Setting, error) {
		return s.repo.ListByCategory(ctx, category)
	})
}

// ListAll returns every setting, cached under settings:all.
func (s *SettingsService) ListAll(ctx context.Context) ([]domain.Setting, error) {
	return s.cachedList(ctx, settingsAllKey, func() ([]domain.Setting, error) {
		return s.repo.ListAll(ctx)
	})
}

// ListPublic returns settings safe to serve unauthenticated, cached under
// settings:public.
func (s *SettingsService) ListPublic(ctx context.Context) ([]domain.Setting, error) {
	return s.cachedList(ctx, settingsPublicKey, func() ([]domain.Setting, error) {
		return s.repo.ListPublic(ctx)
	})
}

// Update upserts a setting and invalidates the four cache entries that could
// serve the previous value. Invalidation completes before Update returns so a
// subsequent read cannot observe the stale record.
func (s *SettingsService) Update(ctx context.Context, setting *domain.Setting) error {
	setting.Key = strings.TrimSpace(setting.Key)
	if setting.Key == "" {
		return apperrors.NewValidationError("setting key is required", nil)
	}
	if setting.Category == "" {
		setting.Category = "general"
	}

	if err := s.repo.Upsert(ctx, setting); err != nil {
		return apperrors.MapError(err)
	}

	// Invalidation is part of the mutation contract: a reader must not be
	// able to observe the previous value once Update reports success, so a
	// failed delete fails the whole operation.
	if s.cache != nil {
		keys := []string{
			settingsKeyPrefix + setting.Key,
			settingsCategoryPrefix + setting.Category,
			settingsAllKey,
			settingsPublicKey,
		}
		if err := s.cache.Delete(ctx, keys...); err != nil {
			s.logger.Error("settings cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
			return apperrors.NewIntegrityError("setting stored but cache invalidation failed", err)
		}
	}
	return nil
}

func (s *SettingsService) cachedList(ctx context.Context, cacheKey string, load func() ([]domain.Setting, error)) ([]domain.Setting, error) {
	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, cacheKey); err != nil {
			s.logger.Warn("settings cache read failed", zap.String("key", cacheKey), zap.Error(err))
		} else if ok {
			var settings []domain.Setting
			if err := json.Unmarshal([]byte(raw), &settings); err == nil {
				return settings, nil
			}
		}
	}

	settings, err := load()
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	s.fill(ctx, cacheKey, settings)
	return settings, nil
}

func (s *SettingsService) fill(ctx context.Context, cacheKey string, value any) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey, string(raw), s.ttl); err != nil {
		s.logger.Warn("settings cache write failed", zap.String("key", cacheKey), zap.Error(err))
	}
}
