package kv

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/loyalty-portal/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Entry is one row of the SQL-backed store.
type Entry struct {
	Key       string `gorm:"primaryKey;size:191"`
	Value     string `gorm:"type:text;not null"`
	ExpiresAt *time.Time
	UpdatedAt time.Time
}

func (Entry) TableName() string {
	return "kv_entries"
}

// SQLStore persists entries in a SQLite file or Postgres table.
type SQLStore struct {
	client *db.Client
	now    func() time.Time
}

// NewSQLStore migrates the entry table and returns the store.
func NewSQLStore(ctx context.Context, client *db.Client) (*SQLStore, error) {
	if client == nil {
		return nil, errors.New("db client is required")
	}
	if err := client.DB().WithContext(ctx).AutoMigrate(&Entry{}); err != nil {
		return nil, err
	}
	return &SQLStore{client: client, now: time.Now}, nil
}

func (s *SQLStore) Get(ctx context.Context, key string) (string, error) {
	var entry Entry
	err := s.client.DB().WithContext(ctx).Where("key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if entry.ExpiresAt != nil && !s.now().Before(*entry.ExpiresAt) {
		if err := s.Del(ctx, key); err != nil {
			return "", err
		}
		return "", ErrNotFound
	}
	return entry.Value, nil
}

func (s *SQLStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	entry := Entry{Key: key, Value: value, UpdatedAt: s.now()}
	if ttl > 0 {
		expires := s.now().Add(ttl)
		entry.ExpiresAt = &expires
	}
	return s.client.DB().WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&entry).Error
}

func (s *SQLStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.DB().WithContext(ctx).Where("key IN ?", keys).Delete(&Entry{}).Error
}

func (s *SQLStore) Close() error {
	return s.client.Close()
}
