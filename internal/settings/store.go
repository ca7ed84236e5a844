package settings

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/hydrofarm-backend/pkg/db/models"
	"github.com/angelmondragon/hydrofarm-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/hydrofarm-backend/pkg/redis"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store reads raw setting values.
type Store interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
}

// Repository reads the settings table.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(ctx context.Context, key string) (string, bool, error) {
	var row models.Setting
	err := r.db.WithContext(ctx).Where("key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return row.Value, true, nil
}

// Upsert writes a value. Used by seeds and tests.
func (r *Repository) Upsert(ctx context.Context, key, value string) error {
	row := models.Setting{Key: key, Value: value}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&row).Error
}

type cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SettingsKey(name string) string
}

// CachedStore is a read-through redis cache in front of another store.
// Cache failures fall through to the inner store.
type CachedStore struct {
	inner  Store
	cache  cache
	ttl    time.Duration
	logger *logger.Logger
}

const defaultCacheTTL = time.Minute

func NewCachedStore(inner Store, c cache, ttl time.Duration, logg *logger.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedStore{inner: inner, cache: c, ttl: ttl, logger: logg}
}

func (s *CachedStore) Get(ctx context.Context, key string) (string, bool, error) {
	cacheKey := s.cache.SettingsKey(key)

	value, err := s.cache.Get(ctx, cacheKey)
	switch {
	case err == nil:
		return value, true, nil
	case !errors.Is(err, pkgredis.Nil) && s.logger != nil:
		s.logger.Warn(s.logger.WithField(ctx, "setting", key), "settings cache read failed")
	}

	value, found, err := s.inner.Get(ctx, key)
	if err != nil || !found {
		return value, found, err
	}

	if err := s.cache.Set(ctx, cacheKey, value, s.ttl); err != nil && s.logger != nil {
		s.logger.Warn(s.logger.WithField(ctx, "setting", key), "settings cache write failed")
	}
	return value, true, nil
}
