// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file implements the local persistent key-value cache:
// small string-serialized JSON values that survive restarts of the device
// client (for example its emergency-contact list).
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-sos-backend/internal/domain"
)

// GetLocal returns the value stored under key, or ErrNotFound.
func GetLocal(ctx context.Context, db *gorm.DB, key string) (string, error) {
	var e domain.LocalEntry
	err := db.WithContext(ctx).Where("key = ?", key).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return e.Value, nil
}

// PutLocal inserts or replaces the value under key.
func PutLocal(ctx context.Context, db *gorm.DB, key, value string) error {
	e := domain.LocalEntry{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&e).Error
}

// DeleteLocal removes key. Missing keys are not an error.
func DeleteLocal(ctx context.Context, db *gorm.DB, key string) error {
	return db.WithContext(ctx).Where("key = ?", key).Delete(&domain.LocalEntry{}).Error
}
