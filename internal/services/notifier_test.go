package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-sos-backend/internal/domain"
	"github.com/tbourn/go-sos-backend/internal/repo"
)

func TestCallNotifier_ComposesRecord(t *testing.T) {
	db := newSvcDB(t, &domain.CallRecord{})
	ms := newMemStore()
	ms.profiles["u1"] = domain.UserProfile{Nome: "Ana", Sobrenome: "Silva", Rua: "Rua A", Bairro: "Centro", Cidade: "SP"}
	n := &CallNotifier{DB: db, Profiles: ms, Log: nopLog}

	at := time.UnixMilli(1700000000000)
	task := domain.UploadTask{Key: "recordings/u1/1.mp3", URL: "https://x/y.mp3", State: domain.UploadSucceeded, Progress: 1}
	rec, err := n.Notify(context.Background(), "u1", task, at)
	if err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if rec.Nome != "Ana Silva" || rec.Local != "Rua A, Centro, SP" || rec.Audio != "https://x/y.mp3" || rec.Horario != at.UnixMilli() {
		t.Fatalf("record = %+v", rec)
	}

	n2, err := repo.CountCallRecords(context.Background(), db, "u1")
	if err != nil || n2 != 1 {
		t.Fatalf("count = %d, %v", n2, err)
	}
}

func TestCallNotifier_ProfileMissingSkipsWrite(t *testing.T) {
	db := newSvcDB(t, &domain.CallRecord{})
	n := &CallNotifier{DB: db, Profiles: newMemStore(), Log: nopLog}

	task := domain.UploadTask{URL: "u", State: domain.UploadSucceeded}
	if _, err := n.Notify(context.Background(), "u1", task, time.Now()); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("want ErrProfileNotFound, got %v", err)
	}
	if c, _ := repo.CountCallRecords(context.Background(), db, "u1"); c != 0 {
		t.Fatalf("no record expected, got %d", c)
	}
}

func TestCallNotifier_OnlyAfterSuccess(t *testing.T) {
	db := newSvcDB(t, &domain.CallRecord{})
	n := &CallNotifier{DB: db, Profiles: newMemStore(), Log: nopLog}
	if _, err := n.Notify(context.Background(), "u1", domain.UploadTask{State: domain.UploadFailed}, time.Now()); err == nil {
		t.Fatalf("failed task must not produce a record")
	}
}
