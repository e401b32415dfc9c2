// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for CallRecord,
// the append-only document written once per successful recording upload.
//
// All functions are context-aware and accept a *gorm.DB handle. They are thin:
// no business logic, only persistence and query composition.
//
//   - CreateCallRecord(ctx, db, rec) -> *domain.CallRecord, error
//     Inserts a record, filling ID and CreatedAt when empty.
//
//   - CountCallRecords(ctx, db, userID) -> (int64, error)
//
//   - ListCallRecordsPage(ctx, db, userID, offset, limit) -> []domain.CallRecord, error
//     Newest first (by horario).
//
//   - CallRecordsStats(ctx, db, userID) -> (count, maxHorario, error)
//     Cheap aggregate for ETag generation.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-sos-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateCallRecord persists rec. Records are never updated afterwards.
func CreateCallRecord(ctx context.Context, db *gorm.DB, rec *domain.CallRecord) (*domain.CallRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	return rec, nil
}

// GetCallRecord fetches a record by id and owner, or ErrNotFound.
func GetCallRecord(ctx context.Context, db *gorm.DB, id, userID string) (*domain.CallRecord, error) {
	var rec domain.CallRecord
	err := db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountCallRecords returns the number of records owned by userID.
func CountCallRecords(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.CallRecord{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListCallRecordsPage returns a page of userID's records, newest first.
// The caller computes offset and limit.
func ListCallRecordsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.CallRecord, error) {
	var out []domain.CallRecord
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("horario desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// CallRecordsStats returns the number of records for userID and the greatest
// horario among them (0 when there are none).
func CallRecordsStats(ctx context.Context, db *gorm.DB, userID string) (count int64, maxHorario int64, err error) {
	q := db.WithContext(ctx).Model(&domain.CallRecord{}).Where("user_id = ?", userID)
	if err = q.Count(&count).Error; err != nil {
		return 0, 0, err
	}
	if count == 0 {
		return 0, 0, nil
	}
	var row struct{ Horario int64 }
	if err = q.Select("horario").Order("horario DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, 0, err
	}
	return count, row.Horario, nil
}
