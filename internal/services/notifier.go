package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-sos-backend/internal/domain"
	"github.com/tbourn/go-sos-backend/internal/realtime"
	"github.com/tbourn/go-sos-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ProfileSource reads a user's profile snapshot.
type ProfileSource interface {
	Profile(ctx context.Context, uid string) (domain.UserProfile, error)
}

// CallNotifier writes the Call Record that follows a successful upload.
type CallNotifier struct {
	DB       *gorm.DB
	Profiles ProfileSource
	Log      zerolog.Logger
}

// Notify fetches userID's profile and appends a Call Record for the uploaded
// task. Failures are logged and returned; the upload is never rolled back.
func (n *CallNotifier) Notify(ctx context.Context, userID string, task domain.UploadTask, at time.Time) (*domain.CallRecord, error) {
	tr := otel.Tracer("services/CallNotifier")
	ctx, span := tr.Start(ctx, "Notify",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("blob.key", task.Key),
		),
	)
	defer span.End()

	if task.State != domain.UploadSucceeded {
		return nil, fmt.Errorf("notify: upload task is %s", task.State)
	}

	p, err := n.Profiles.Profile(ctx, userID)
	if err != nil {
		if errors.Is(err, realtime.ErrNotFound) {
			err = ErrProfileNotFound
		}
		callRecordsTotal.WithLabelValues("failed").Inc()
		n.Log.Error().Err(err).Str("user_id", userID).Msg("call record skipped: profile fetch failed")
		span.RecordError(err)
		return nil, err
	}

	rec, err := repo.CreateCallRecord(ctx, n.DB, &domain.CallRecord{
		UserID:    userID,
		Nome:      p.FullName(),
		Local:     p.Address(),
		Horario:   at.UnixMilli(),
		Audio:     task.URL,
		ObjectKey: task.Key,
	})
	if err != nil {
		callRecordsTotal.WithLabelValues("failed").Inc()
		n.Log.Error().Err(err).Str("user_id", userID).Msg("call record write failed")
		span.RecordError(err)
		return nil, err
	}
	callRecordsTotal.WithLabelValues("succeeded").Inc()
	return rec, nil
}
