// Package jobs holds the scheduled maintenance tasks of the server.
package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-sos-backend/internal/capture"
	"github.com/tbourn/go-sos-backend/internal/repo"
)

// Janitor removes orphaned spool files and expired idempotency records.
type Janitor struct {
	DB          *gorm.DB
	SpoolDir    string
	SpoolMaxAge time.Duration
	Log         zerolog.Logger
	Now         func() time.Time

	// Held lists spool files still owned by a live session; may be nil.
	Held func() []string
}

// Sweep reports what one run removed.
type Sweep struct {
	SpoolFiles      int
	IdempotencyRows int64
}

func (j *Janitor) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}

// RunOnce performs a single sweep. Both steps always run; their errors are
// joined.
func (j *Janitor) RunOnce(ctx context.Context) (Sweep, error) {
	var (
		out  Sweep
		errs []error
	)
	now := j.now().UTC()

	if j.SpoolDir != "" && j.SpoolMaxAge > 0 {
		var held []string
		if j.Held != nil {
			held = j.Held()
		}
		n, err := capture.PurgeSpool(j.SpoolDir, j.SpoolMaxAge, now, held)
		if err != nil {
			errs = append(errs, err)
		}
		out.SpoolFiles = n
	}
	if j.DB != nil {
		n, err := repo.PurgeExpiredIdempotency(ctx, j.DB, now)
		if err != nil {
			errs = append(errs, err)
		}
		out.IdempotencyRows = n
	}
	return out, errors.Join(errs...)
}

// Start schedules RunOnce on spec and starts the scheduler. Callers stop it
// with the returned cron's Stop.
func Start(spec string, j *Janitor) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		sweep, err := j.RunOnce(ctx)
		if err != nil {
			j.Log.Error().Err(err).Msg("janitor sweep failed")
			return
		}
		j.Log.Info().
			Int("spool_files", sweep.SpoolFiles).
			Int64("idempotency_rows", sweep.IdempotencyRows).
			Msg("janitor sweep done")
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	j.Log.Info().Str("schedule", spec).Msg("janitor started")
	return c, nil
}
