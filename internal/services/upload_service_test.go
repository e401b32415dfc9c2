package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tbourn/go-sos-backend/internal/blob"
	"github.com/tbourn/go-sos-backend/internal/domain"
)

func writeRecording(t *testing.T, size int, ext string) domain.Recording {
	t.Helper()
	p := filepath.Join(t.TempDir(), "rec."+ext)
	if err := os.WriteFile(p, bytes.Repeat([]byte{7}, size), 0o644); err != nil {
		t.Fatal(err)
	}
	return domain.Recording{Path: p, Ext: ext, CreatedAt: time.Now()}
}

func newLocalStore(t *testing.T) *blob.LocalStore {
	t.Helper()
	s, err := blob.NewLocalStore(t.TempDir(), "https://cdn.test/blobs")
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestUploadService_ProgressMonotonicEndsAtOne(t *testing.T) {
	store := newLocalStore(t)
	at := time.UnixMilli(1700000000123)
	s := NewUploadService(store, nopLog)
	s.Now = func() time.Time { return at }

	rec := writeRecording(t, 300_000, "mp3")
	var seen []float64
	task, err := s.Upload(context.Background(), "u1", rec, func(f float64) { seen = append(seen, f) })
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if task.Key != "recordings/u1/1700000000123.mp3" {
		t.Fatalf("key = %q", task.Key)
	}
	if task.State != domain.UploadSucceeded || task.Progress != 1 || task.Size != 300_000 {
		t.Fatalf("task = %+v", task)
	}
	if task.URL != "https://cdn.test/blobs/recordings/u1/1700000000123.mp3" {
		t.Fatalf("url = %q", task.URL)
	}
	if len(seen) < 2 || seen[0] != 0 || seen[len(seen)-1] != 1 {
		t.Fatalf("progress = %v", seen)
	}
	for i := 1; i < len(seen); i++ {
		if seen[i] < seen[i-1] {
			t.Fatalf("progress decreased at %d: %v", i, seen)
		}
		if seen[i] == 1 && i != len(seen)-1 {
			t.Fatalf("1 emitted before the end: %v", seen)
		}
	}
	if _, err := os.Stat(rec.Path); !os.IsNotExist(err) {
		t.Fatalf("local recording should be removed after upload")
	}
}

func TestUploadService_RequiresUser(t *testing.T) {
	s := NewUploadService(newLocalStore(t), nopLog)
	for _, uid := range []string{"", "  ", "a/b"} {
		task, err := s.Upload(context.Background(), uid, writeRecording(t, 1, "mp3"), nil)
		if !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("uid %q: want ErrUnauthenticated, got %v", uid, err)
		}
		if task.State != domain.UploadFailed {
			t.Fatalf("uid %q: state = %s", uid, task.State)
		}
	}
}

type failingStore struct{ blob.Store }

func (failingStore) Put(context.Context, string, io.Reader, int64, string, blob.ProgressFunc) (blob.Object, error) {
	return blob.Object{}, errors.New("network down")
}

func TestUploadService_FailureKeepsFileAndMarksFailed(t *testing.T) {
	s := NewUploadService(failingStore{}, nopLog)
	rec := writeRecording(t, 10, "")
	task, err := s.Upload(context.Background(), "u1", rec, nil)
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("want ErrUploadFailed, got %v", err)
	}
	if task.State != domain.UploadFailed || task.URL != "" {
		t.Fatalf("task = %+v", task)
	}
	if filepath.Ext(task.Key) != ".mp3" {
		t.Fatalf("extension should come from the path, key = %q", task.Key)
	}
	if _, err := os.Stat(rec.Path); err != nil {
		t.Fatalf("failed upload must keep the local file: %v", err)
	}
}

func TestUploadService_MissingFile(t *testing.T) {
	s := NewUploadService(newLocalStore(t), nopLog)
	_, err := s.Upload(context.Background(), "u1", domain.Recording{Path: "/nonexistent/x.mp3"}, nil)
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("want ErrUploadFailed, got %v", err)
	}
}
