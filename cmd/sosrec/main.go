// Command sosrec is the device-side client: it records the microphone and
// runs the upload and notify pipeline directly against the backing stores.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-sos-backend/internal/auth"
	"github.com/tbourn/go-sos-backend/internal/blob"
	"github.com/tbourn/go-sos-backend/internal/capture"
	"github.com/tbourn/go-sos-backend/internal/capture/mic"
	"github.com/tbourn/go-sos-backend/internal/cli"
	"github.com/tbourn/go-sos-backend/internal/config"
	"github.com/tbourn/go-sos-backend/internal/domain"
	"github.com/tbourn/go-sos-backend/internal/realtime"
	"github.com/tbourn/go-sos-backend/internal/repo"
	"github.com/tbourn/go-sos-backend/internal/services"
	"github.com/tbourn/go-sos-backend/internal/sysutil"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	// Diagnostics stay quiet unless asked for; stdout belongs to the command.
	level := sysutil.FirstNonEmpty(os.Getenv("SOSREC_LOG_LEVEL"), "warn")
	logger, closeLog := sysutil.SetupLogger(level, !sysutil.IsTruthy(os.Getenv("SOSREC_LOG_JSON")), cfg.LogFile)
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// The local cache holds the device contact list and call records.
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	var blobs blob.Store
	if cfg.Blob.Backend == "minio" {
		blobs, err = blob.NewMinioStore(ctx, blob.MinioOptions{
			Endpoint:  cfg.Blob.Endpoint,
			AccessKey: cfg.Blob.AccessKey,
			SecretKey: cfg.Blob.SecretKey,
			Bucket:    cfg.Blob.Bucket,
			UseSSL:    cfg.Blob.UseSSL,
			URLTTL:    cfg.Blob.URLTTL,
		})
	} else {
		blobs, err = blob.NewLocalStore(cfg.Blob.LocalDir, cfg.Blob.PublicBaseURL)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("open blob store")
	}

	// Profiles live in the realtime store; without it recordings still
	// upload but no call record can be written.
	var profiles services.ProfileSource = missingProfiles{}
	if rdb, err := realtime.Open(ctx, cfg.Redis); err != nil {
		logger.Warn().Err(err).Msg("realtime store unavailable")
	} else {
		defer rdb.Close()
		profiles = realtime.New(rdb, cfg.Redis.KeyPrefix)
	}

	micCfg := mic.DefaultConfig()
	micCfg.Dir = cfg.Recording.SpoolDir
	sessions := services.NewSessionService(
		services.NewUploadService(blobs, logger),
		&services.CallNotifier{DB: db, Profiles: profiles, Log: logger},
		func(string) capture.Device { return mic.New(micCfg) },
		logger,
	)
	sessions.Notices = capture.NotifierFunc(func(_ context.Context, msg string) {
		fmt.Fprintln(os.Stderr, msg)
	})

	contacts := services.NewLocalContacts(db)
	app := &cli.App{
		UserID:     sysutil.FirstNonEmpty(os.Getenv("SOSREC_USER"), "local"),
		Sessions:   sessions,
		Permission: mic.Access{},
		Recordings: &services.RecordingService{Store: blobs},
		Contacts:   &services.ContactService{Store: contacts},
		Dispatch: &services.DispatchService{
			Contacts: contacts,
			Log:      logger,
		},
		Devices: mic.CaptureDevices,
		In:      os.Stdin,
		Out:     os.Stdout,
	}
	if cfg.Auth.JWTSecret != "" {
		app.Issuer = auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	}

	if err := app.Run(ctx, os.Args[1:]); err != nil {
		// A bare ErrUsage means the usage text is already on screen.
		if err != cli.ErrUsage {
			fmt.Fprintln(os.Stderr, "sosrec:", err)
		}
		os.Exit(1)
	}
}

// missingProfiles answers every lookup with realtime.ErrNotFound.
type missingProfiles struct{}

func (missingProfiles) Profile(context.Context, string) (domain.UserProfile, error) {
	return domain.UserProfile{}, realtime.ErrNotFound
}
