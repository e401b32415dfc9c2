package services

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/go-sos-backend/internal/domain"
	"github.com/tbourn/go-sos-backend/internal/repo"
	"github.com/tbourn/go-sos-backend/internal/utils"
)

// CallService lists a user's call history.
type CallService struct {
	DB *gorm.DB
}

// ListPage returns a page of call records, newest first, and the total.
func (s *CallService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.CallRecord, int64, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, 0, ErrUnauthenticated
	}
	p := utils.Page{Number: max(page, 1), Size: pageSize}
	if p.Size <= 0 {
		p.Size = 20
	}
	total, err := repo.CountCallRecords(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.CallRecord{}, 0, nil
	}
	items, err := repo.ListCallRecordsPage(ctx, s.DB, userID, p.Offset(), p.Size)
	return items, total, err
}

// Get returns one of userID's call records.
func (s *CallService) Get(ctx context.Context, userID, id string) (*domain.CallRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	return repo.GetCallRecord(ctx, s.DB, id, userID)
}

// Stats returns the record count and newest horario, used for ETags.
func (s *CallService) Stats(ctx context.Context, userID string) (int64, int64, error) {
	return repo.CallRecordsStats(ctx, s.DB, userID)
}
