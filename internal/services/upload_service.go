// Package services – UploadService
//
// UploadService moves a finished local recording to blob storage under
// recordings/{userId}/{unixMillis}.{ext}, reports progress as a fraction in
// [0,1] and resolves a fetchable URL. A failed task is logged and returned;
// nothing retries it and no partial upload is resumed.
package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-sos-backend/internal/blob"
	"github.com/tbourn/go-sos-backend/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultAudioExt is used when a recording carries no extension.
const DefaultAudioExt = "mp3"

// ProgressFunc receives the upload fraction in [0,1].
type ProgressFunc func(fraction float64)

// UploadService streams recordings to a blob.Store.
type UploadService struct {
	Store blob.Store
	Log   zerolog.Logger
	Now   func() time.Time
	// KeepLocal leaves the local file in place after a successful upload.
	KeepLocal bool
}

// NewUploadService returns an UploadService writing to store.
func NewUploadService(store blob.Store, log zerolog.Logger) *UploadService {
	return &UploadService{Store: store, Log: log, Now: time.Now}
}

// UploadKey builds the blob key of a recording.
func UploadKey(userID string, at time.Time, ext string) string {
	return fmt.Sprintf("recordings/%s/%d.%s", userID, at.UnixMilli(), ext)
}

// Upload transfers rec for userID. onProgress may be nil; when set it sees a
// non-decreasing sequence that ends with exactly 1 on success. The returned
// task is in a terminal state whether or not err is nil.
func (s *UploadService) Upload(ctx context.Context, userID string, rec domain.Recording, onProgress ProgressFunc) (domain.UploadTask, error) {
	tr := otel.Tracer("services/UploadService")
	ctx, span := tr.Start(ctx, "Upload",
		trace.WithAttributes(attribute.String("user.id", userID)),
	)
	defer span.End()

	task := domain.UploadTask{State: domain.UploadFailed}
	userID = strings.TrimSpace(userID)
	if userID == "" || strings.ContainsAny(userID, `/\`) {
		return task, ErrUnauthenticated
	}

	ext := recordingExt(rec)
	task.Key = UploadKey(userID, s.now(), ext)
	span.SetAttributes(attribute.String("blob.key", task.Key))

	f, err := os.Open(rec.Path)
	if err != nil {
		return s.fail(span, task, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return s.fail(span, task, err)
	}
	task.Size = st.Size()
	task.State = domain.UploadRunning

	var last float64
	emit := func(p float64) {
		if p < last {
			return
		}
		if p == last && p != 0 {
			return
		}
		last = p
		task.Progress = p
		if onProgress != nil {
			onProgress(p)
		}
	}
	emit(0)

	obj, err := s.Store.Put(ctx, task.Key, f, task.Size, blob.ContentTypeFor(ext), func(sent, total int64) {
		if total <= 0 {
			return
		}
		p := float64(sent) / float64(total)
		if p >= 1 {
			// 1 is reserved for the resolved URL.
			return
		}
		emit(p)
	})
	if err != nil {
		return s.fail(span, task, err)
	}

	url, err := s.Store.URL(ctx, obj.Key)
	if err != nil {
		return s.fail(span, task, err)
	}
	task.URL = url
	task.State = domain.UploadSucceeded
	emit(1)

	if !s.KeepLocal {
		_ = f.Close()
		if err := os.Remove(rec.Path); err != nil {
			s.Log.Warn().Err(err).Str("path", rec.Path).Msg("remove uploaded recording")
		}
	}

	uploadsTotal.WithLabelValues(string(domain.UploadSucceeded)).Inc()
	uploadBytes.Observe(float64(task.Size))
	s.Log.Info().Str("key", task.Key).Int64("bytes", task.Size).Msg("recording uploaded")
	return task, nil
}

func (s *UploadService) fail(span trace.Span, task domain.UploadTask, err error) (domain.UploadTask, error) {
	task.State = domain.UploadFailed
	span.RecordError(err)
	span.SetStatus(codes.Error, "upload failed")
	uploadsTotal.WithLabelValues(string(domain.UploadFailed)).Inc()
	s.Log.Error().Err(err).Str("key", task.Key).Msg("recording upload failed")
	return task, fmt.Errorf("%w: %w", ErrUploadFailed, err)
}

func (s *UploadService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func recordingExt(rec domain.Recording) string {
	ext := strings.TrimPrefix(strings.ToLower(rec.Ext), ".")
	if ext == "" {
		ext = strings.TrimPrefix(strings.ToLower(filepath.Ext(rec.Path)), ".")
	}
	if ext == "" {
		ext = DefaultAudioExt
	}
	return ext
}
