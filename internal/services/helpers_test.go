package services

import (
	"context"
	"fmt"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-sos-backend/internal/domain"
	"github.com/tbourn/go-sos-backend/internal/realtime"
)

func newSvcDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

var nopLog = zerolog.Nop()

// memStore is an in-memory profile and contact store.
type memStore struct {
	profiles map[string]domain.UserProfile
	contacts map[string][]domain.EmergencyContact
	err      error
}

func newMemStore() *memStore {
	return &memStore{
		profiles: map[string]domain.UserProfile{},
		contacts: map[string][]domain.EmergencyContact{},
	}
}

func (m *memStore) Profile(_ context.Context, uid string) (domain.UserProfile, error) {
	if m.err != nil {
		return domain.UserProfile{}, m.err
	}
	p, ok := m.profiles[uid]
	if !ok {
		return p, realtime.ErrNotFound
	}
	return p, nil
}

func (m *memStore) SaveProfile(_ context.Context, uid string, p domain.UserProfile) error {
	if m.err != nil {
		return m.err
	}
	m.profiles[uid] = p
	return nil
}

func (m *memStore) Contacts(_ context.Context, uid string) ([]domain.EmergencyContact, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := append([]domain.EmergencyContact{}, m.contacts[uid]...)
	return out, nil
}

func (m *memStore) SaveContacts(_ context.Context, uid string, list []domain.EmergencyContact) error {
	if m.err != nil {
		return m.err
	}
	m.contacts[uid] = append([]domain.EmergencyContact{}, list...)
	return nil
}
