package domain

import (
	"errors"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	if (CallRecord{}).TableName() != "calls" {
		t.Fatalf("CallRecord.TableName() = %q; want %q", (CallRecord{}).TableName(), "calls")
	}
	if (LocalEntry{}).TableName() != "local_entries" {
		t.Fatalf("LocalEntry.TableName() = %q; want %q", (LocalEntry{}).TableName(), "local_entries")
	}
}

func TestMigrations_Indexes(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&CallRecord{}, &LocalEntry{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	m := db.Migrator()
	for _, tbl := range []any{&CallRecord{}, &LocalEntry{}} {
		if !m.HasTable(tbl) {
			t.Fatalf("expected table for %T to exist", tbl)
		}
	}
	if !m.HasIndex(&CallRecord{}, "idx_user_calls") {
		t.Fatalf("expected index idx_user_calls on calls")
	}

	rec := CallRecord{ID: "c1", UserID: "u1", Nome: "Ana Silva", Local: "Rua A, Centro, SP", Horario: 1700000000000, Audio: "https://x/y.mp3", ObjectKey: "recordings/u1/1.mp3"}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("create call: %v", err)
	}
	var got CallRecord
	if err := db.First(&got, "id = ?", "c1").Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if got.Horario != 1700000000000 || got.Audio != "https://x/y.mp3" {
		t.Fatalf("unexpected row: %+v", got)
	}
}

func TestUserProfile_FullNameAndAddress(t *testing.T) {
	p := UserProfile{Nome: "Ana", Sobrenome: "Silva", Rua: "Rua A", Bairro: "Centro", Cidade: "SP"}
	if got := p.FullName(); got != "Ana Silva" {
		t.Fatalf("FullName = %q", got)
	}
	if got := p.Address(); got != "Rua A, Centro, SP" {
		t.Fatalf("Address = %q", got)
	}
	// Missing parts keep their separators.
	if got := (UserProfile{Rua: "R"}).Address(); got != "R, , " {
		t.Fatalf("Address with blanks = %q", got)
	}
}

func TestEmergencyContact_PrimaryNumber(t *testing.T) {
	c := EmergencyContact{Name: "Mãe", PhoneNumbers: []PhoneNumber{{Number: "  "}, {Number: "+5511999990000"}}}
	n, ok := c.PrimaryNumber()
	if !ok || n != "+5511999990000" {
		t.Fatalf("PrimaryNumber = %q,%v", n, ok)
	}
	if _, ok := (EmergencyContact{Name: "x"}).PrimaryNumber(); ok {
		t.Fatalf("expected no number")
	}
}

func TestSession_HappyPath(t *testing.T) {
	now := time.Now()
	s := NewSession()
	if s.Phase() != PhaseIdle {
		t.Fatalf("new session phase = %s", s.Phase())
	}
	s, err := s.BeginRecording(now)
	if err != nil || s.Phase() != PhaseRecording {
		t.Fatalf("BeginRecording: %v %s", err, s.Phase())
	}
	s, err = s.BeginUpload(now)
	if err != nil || s.Phase() != PhaseUploading || s.Progress() != 0 {
		t.Fatalf("BeginUpload: %v %+v", err, s.Snapshot())
	}
	s, _ = s.WithProgress(0.4, now)
	s, _ = s.WithProgress(0.2, now) // regress ignored
	if s.Progress() != 0.4 {
		t.Fatalf("progress should not decrease, got %v", s.Progress())
	}
	s, _ = s.WithProgress(7, now)
	if s.Progress() != 1 {
		t.Fatalf("progress should clamp to 1, got %v", s.Progress())
	}
	s, err = s.Complete("https://x/y.mp3", now)
	if err != nil || s.Phase() != PhaseUploaded || s.Progress() != 1 || s.URL() != "https://x/y.mp3" {
		t.Fatalf("Complete: %v %+v", err, s.Snapshot())
	}
	// A new recording may start after an upload completes.
	if s, err = s.BeginRecording(now); err != nil || s.URL() != "" {
		t.Fatalf("restart: %v %+v", err, s.Snapshot())
	}
}

func TestSession_InvalidTransitions(t *testing.T) {
	now := time.Now()
	idle := NewSession()

	if _, err := idle.BeginUpload(now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("idle->uploading should fail, got %v", err)
	}
	if _, err := idle.Complete("u", now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("idle->uploaded should fail, got %v", err)
	}
	if _, err := idle.Fail("x", now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("idle->failed should fail, got %v", err)
	}
	rec, _ := idle.BeginRecording(now)
	if _, err := rec.BeginRecording(now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("recording->recording should fail, got %v", err)
	}
	if _, err := rec.WithProgress(0.5, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("progress while recording should fail, got %v", err)
	}
	failed, err := rec.Fail("mic lost", now)
	if err != nil || failed.Phase() != PhaseFailed || failed.Reason() != "mic lost" {
		t.Fatalf("Fail: %v %+v", err, failed.Snapshot())
	}
	if failed.Reset(now).Phase() != PhaseIdle {
		t.Fatalf("Reset should go idle")
	}
	// The zero value behaves like idle.
	var zero Session
	if zero.Phase() != PhaseIdle {
		t.Fatalf("zero session phase = %s", zero.Phase())
	}
}
