package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-sos-backend/internal/capture"
	"github.com/tbourn/go-sos-backend/internal/domain"
	"github.com/tbourn/go-sos-backend/internal/repo"
)

type countingDevice struct {
	starts int
}

func (d *countingDevice) Start(context.Context) error { d.starts++; return nil }
func (d *countingDevice) Stop(context.Context) (domain.Recording, error) {
	return domain.Recording{Path: "/tmp/none.mp3", Ext: "mp3"}, nil
}

type notices struct{ msgs []string }

func (n *notices) Notify(_ context.Context, m string) { n.msgs = append(n.msgs, m) }

func TestSessionService_PermissionDenied(t *testing.T) {
	dev := &countingDevice{}
	nt := &notices{}
	s := NewSessionService(nil, nil, func(string) capture.Device { return dev }, nopLog)
	s.Notices = nt

	snap, err := s.Start(context.Background(), "u1", capture.Reported("denied"))
	if !errors.Is(err, capture.ErrPermissionDenied) {
		t.Fatalf("want ErrPermissionDenied, got %v", err)
	}
	if dev.starts != 0 {
		t.Fatalf("device must not start")
	}
	if snap.Phase != domain.PhaseIdle || s.Snapshot("u1").Phase != domain.PhaseIdle {
		t.Fatalf("session must stay idle, got %s", snap.Phase)
	}
	if len(nt.msgs) != 1 || nt.msgs[0] != capture.PermissionDeniedNotice {
		t.Fatalf("notices = %v", nt.msgs)
	}
}

func TestSessionService_StopWithoutStart(t *testing.T) {
	s := NewSessionService(nil, nil, nil, nopLog)
	if _, err := s.Stop(context.Background(), "u1"); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("want ErrNotRecording, got %v", err)
	}
	if _, err := s.Append(context.Background(), "u1", strings.NewReader("x")); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("want ErrNotRecording, got %v", err)
	}
	if _, err := s.Start(context.Background(), "", capture.Static(true)); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("want ErrUnauthenticated, got %v", err)
	}
}

func TestSessionService_FullPipeline(t *testing.T) {
	db := newSvcDB(t, &domain.CallRecord{})
	ms := newMemStore()
	ms.profiles["u1"] = domain.UserProfile{Nome: "Ana", Sobrenome: "Silva", Rua: "Rua A", Bairro: "Centro", Cidade: "SP"}

	spoolDir := t.TempDir()
	up := NewUploadService(newLocalStore(t), nopLog)
	calls := &CallNotifier{DB: db, Profiles: ms, Log: nopLog}
	s := NewSessionService(up, calls, func(string) capture.Device {
		return capture.NewSpoolDevice(spoolDir, "mp3", 1<<20)
	}, nopLog)
	ctx := context.Background()

	events, cancel := s.Subscribe("u1")
	defer cancel()
	if first := <-events; first.Phase != domain.PhaseIdle {
		t.Fatalf("first snapshot = %s", first.Phase)
	}

	if _, err := s.Start(ctx, "u1", capture.Reported("granted")); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := s.Start(ctx, "u1", capture.Reported("granted")); !errors.Is(err, capture.ErrAlreadyRecording) {
		t.Fatalf("second Start: %v", err)
	}
	if n, err := s.Append(ctx, "u1", strings.NewReader("ID3 fake audio")); err != nil || n != 14 {
		t.Fatalf("Append = %d, %v", n, err)
	}

	res, err := s.StopAndProcess(ctx, "u1")
	if err != nil {
		t.Fatalf("StopAndProcess: %v", err)
	}
	if res.Task.State != domain.UploadSucceeded || res.Call == nil {
		t.Fatalf("result = %+v", res)
	}
	if res.Call.Nome != "Ana Silva" || res.Call.Audio != res.Task.URL {
		t.Fatalf("call = %+v", res.Call)
	}

	snap := s.Snapshot("u1")
	if snap.Phase != domain.PhaseUploaded || snap.Progress != 1 || snap.URL != res.Task.URL {
		t.Fatalf("snapshot = %+v", snap)
	}
	if c, _ := repo.CountCallRecords(ctx, db, "u1"); c != 1 {
		t.Fatalf("want exactly one call record, got %d", c)
	}

	// the subscriber saw recording, then uploading, and finally uploaded
	var phases []domain.Phase
	for len(events) > 0 {
		phases = append(phases, (<-events).Phase)
	}
	if len(phases) == 0 || phases[len(phases)-1] != domain.PhaseUploaded {
		t.Fatalf("phases = %v", phases)
	}
}

type blockingUploader struct {
	release chan struct{}
	entered chan struct{}
}

func (b *blockingUploader) Upload(_ context.Context, _ string, _ domain.Recording, _ ProgressFunc) (domain.UploadTask, error) {
	close(b.entered)
	<-b.release
	return domain.UploadTask{State: domain.UploadFailed}, errors.New("aborted")
}

func TestSessionService_RejectsStartWhileUploading(t *testing.T) {
	up := &blockingUploader{release: make(chan struct{}), entered: make(chan struct{})}
	s := NewSessionService(up, nil, func(string) capture.Device { return &countingDevice{} }, nopLog)
	ctx := context.Background()

	if _, err := s.Start(ctx, "u1", capture.Static(true)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := s.StopAsync(ctx, "u1"); err != nil {
		t.Fatalf("StopAsync: %v", err)
	}
	<-up.entered

	if _, err := s.Start(ctx, "u1", capture.Static(true)); !errors.Is(err, ErrUploadInProgress) {
		t.Fatalf("want ErrUploadInProgress, got %v", err)
	}
	if _, err := s.Reset("u1"); !errors.Is(err, ErrUploadInProgress) {
		t.Fatalf("reset during upload: %v", err)
	}
	// other users are unaffected
	if _, err := s.Start(ctx, "u2", capture.Static(true)); err != nil {
		t.Fatalf("other user Start: %v", err)
	}

	close(up.release)
	s.Wait()

	snap := s.Snapshot("u1")
	if snap.Phase != domain.PhaseFailed || snap.Reason != "aborted" {
		t.Fatalf("snapshot = %+v", snap)
	}
	if _, err := s.Start(ctx, "u1", capture.Static(true)); err != nil {
		t.Fatalf("Start after failure: %v", err)
	}
}

func TestSessionService_HeldFiles(t *testing.T) {
	spoolDir := t.TempDir()
	up := &blockingUploader{release: make(chan struct{}), entered: make(chan struct{})}
	s := NewSessionService(up, nil, func(string) capture.Device {
		return capture.NewSpoolDevice(spoolDir, "mp3", 0)
	}, nopLog)
	ctx := context.Background()

	if held := s.HeldFiles(); len(held) != 0 {
		t.Fatalf("idle service holds %v", held)
	}
	if _, err := s.Start(ctx, "u1", capture.Static(true)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	held := s.HeldFiles()
	if len(held) != 1 || !strings.HasPrefix(held[0], spoolDir) {
		t.Fatalf("recording holds %v", held)
	}
	open := held[0]

	if _, err := s.StopAsync(ctx, "u1"); err != nil {
		t.Fatalf("StopAsync: %v", err)
	}
	<-up.entered
	if held := s.HeldFiles(); len(held) != 1 || held[0] != open {
		t.Fatalf("uploading holds %v, want [%s]", held, open)
	}

	close(up.release)
	s.Wait()
	if held := s.HeldFiles(); len(held) != 0 {
		t.Fatalf("settled session still holds %v", held)
	}
}

type failingNotifier struct{}

func (failingNotifier) Notify(context.Context, string, domain.UploadTask, time.Time) (*domain.CallRecord, error) {
	return nil, ErrProfileNotFound
}

func TestSessionService_NotifyFailureKeepsUpload(t *testing.T) {
	spoolDir := t.TempDir()
	up := NewUploadService(newLocalStore(t), nopLog)
	s := NewSessionService(up, failingNotifier{}, func(string) capture.Device {
		return capture.NewSpoolDevice(spoolDir, "mp3", 0)
	}, nopLog)
	ctx := context.Background()

	if _, err := s.Start(ctx, "u1", capture.Static(true)); err != nil {
		t.Fatal(err)
	}
	res, err := s.StopAndProcess(ctx, "u1")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("want ErrProfileNotFound, got %v", err)
	}
	if res.Task.State != domain.UploadSucceeded {
		t.Fatalf("upload must stand: %+v", res.Task)
	}
	if s.Snapshot("u1").Phase != domain.PhaseUploaded {
		t.Fatalf("phase = %s", s.Snapshot("u1").Phase)
	}
}
