package services

import (
	"context"
	"errors"
	"path"
	"sort"
	"strings"

	"github.com/tbourn/go-sos-backend/internal/blob"
	"github.com/tbourn/go-sos-backend/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RecordingService is the user's library of uploaded recordings.
type RecordingService struct {
	Store blob.Store
}

func recordingsPrefix(userID string) string { return "recordings/" + userID + "/" }

func (s *RecordingService) key(userID, name string) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", ErrUnauthenticated
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", ErrInvalidRecordingName
	}
	return recordingsPrefix(userID) + name, nil
}

// List returns userID's recordings, newest first.
func (s *RecordingService) List(ctx context.Context, userID string) ([]domain.RecordingObject, error) {
	tr := otel.Tracer("services/RecordingService")
	ctx, span := tr.Start(ctx, "List", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if strings.TrimSpace(userID) == "" {
		return nil, ErrUnauthenticated
	}
	objs, err := s.Store.List(ctx, recordingsPrefix(userID))
	if err != nil {
		return nil, err
	}
	out := make([]domain.RecordingObject, 0, len(objs))
	for _, o := range objs {
		out = append(out, domain.RecordingObject{Key: o.Key, Name: path.Base(o.Key), Size: o.Size, CreatedAt: o.CreatedAt})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

// URL resolves a playback address for one recording.
func (s *RecordingService) URL(ctx context.Context, userID, name string) (string, error) {
	key, err := s.key(userID, name)
	if err != nil {
		return "", err
	}
	return s.Store.URL(ctx, key)
}

// Delete removes one recording.
func (s *RecordingService) Delete(ctx context.Context, userID, name string) error {
	key, err := s.key(userID, name)
	if err != nil {
		return err
	}
	if err := s.Store.Delete(ctx, key); err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return ErrRecordingNotFound
		}
		return err
	}
	return nil
}
