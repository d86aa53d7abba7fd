package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IdempotencyKey stores the response of a mutating request so a retried
// request with the same key replays it instead of executing twice.
type IdempotencyKey struct {
	Key       string `gorm:"primaryKey;size:200"`
	RequestID string `gorm:"size:64"`
	Method    string `gorm:"size:8"`
	Path      string `gorm:"size:255"`
	Status    int
	Response  []byte
	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index"`
}

// LookupResponse returns the stored response for key. Expired entries are
// treated as missing.
func (j *Journal) LookupResponse(ctx context.Context, key string, now time.Time) (*IdempotencyKey, bool, error) {
	var record IdempotencyKey
	err := j.db.WithContext(ctx).First(&record, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("journal: lookup idempotency key: %w", err)
	}
	if !record.ExpiresAt.IsZero() && now.After(record.ExpiresAt) {
		return nil, false, nil
	}
	return &record, true, nil
}

// SaveResponse stores the response for key, replacing an expired entry.
func (j *Journal) SaveResponse(ctx context.Context, record IdempotencyKey) error {
	if record.RequestID == "" {
		record.RequestID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	err := j.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"request_id", "method", "path", "status", "response", "created_at", "expires_at"}),
	}).Create(&record).Error
	if err != nil {
		return fmt.Errorf("journal: save idempotency key: %w", err)
	}
	return nil
}

// PruneResponses deletes entries that expired before now.
func (j *Journal) PruneResponses(ctx context.Context, now time.Time) (int64, error) {
	res := j.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&IdempotencyKey{})
	if res.Error != nil {
		return 0, fmt.Errorf("journal: prune idempotency keys: %w", res.Error)
	}
	return res.RowsAffected, nil
}
