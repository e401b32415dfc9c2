// Command server runs the SOS recording backend: the HTTP API mobile clients
// use to record, upload and notify, plus the housekeeping scheduler.
//
//	@title						SOS Recording API
//	@version					1.0
//	@description				Emergency audio recording, upload and call history.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-sos-backend/docs"
	"github.com/tbourn/go-sos-backend/internal/auth"
	"github.com/tbourn/go-sos-backend/internal/blob"
	"github.com/tbourn/go-sos-backend/internal/capture"
	"github.com/tbourn/go-sos-backend/internal/config"
	httpapi "github.com/tbourn/go-sos-backend/internal/http"
	"github.com/tbourn/go-sos-backend/internal/jobs"
	"github.com/tbourn/go-sos-backend/internal/observability"
	"github.com/tbourn/go-sos-backend/internal/realtime"
	"github.com/tbourn/go-sos-backend/internal/repo"
	"github.com/tbourn/go-sos-backend/internal/services"
	"github.com/tbourn/go-sos-backend/internal/sysutil"
)

// version is stamped at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	logger, closeLog := sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, cfg.LogFile)
	defer func() { _ = closeLog() }()

	appVersion := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), version)
	docs.SwaggerInfo.BasePath = cfg.APIBasePath
	docs.SwaggerInfo.Version = appVersion

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, appVersion); err != nil {
		logger.Fatal().Err(err).Msg("server stopped with error")
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger, appVersion string) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, appVersion)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			logger.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Document store: call records, idempotency keys, local cache.
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	blobs, err := openBlobStore(ctx, cfg)
	if err != nil {
		return err
	}

	rdb, err := realtime.Open(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()
	store := realtime.New(rdb, cfg.Redis.KeyPrefix)

	var issuer *auth.Issuer
	if cfg.Auth.JWTSecret != "" {
		issuer = auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	}

	uploads := services.NewUploadService(blobs, logger)
	notifier := &services.CallNotifier{DB: db, Profiles: store, Log: logger}
	sessions := services.NewSessionService(uploads, notifier, func(string) capture.Device {
		return capture.NewSpoolDevice(cfg.Recording.SpoolDir, cfg.Recording.Ext, cfg.Recording.MaxBytes)
	}, logger)
	sessions.Notices = capture.NotifierFunc(func(_ context.Context, msg string) {
		logger.Info().Str("notice", msg).Msg("user notice")
	})

	janitor, err := jobs.Start(cfg.Recording.JanitorSchedule, &jobs.Janitor{
		DB:          db,
		SpoolDir:    cfg.Recording.SpoolDir,
		SpoolMaxAge: cfg.Recording.SpoolMaxAge,
		Log:         logger,
		Held:        sessions.HeldFiles,
	})
	if err != nil {
		return err
	}
	defer func() { <-janitor.Stop().Done() }()

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, cfg, httpapi.App{
		DB:       db,
		Blobs:    blobs,
		Profiles: store,
		Contacts: store,
		Issuer:   issuer,
		Sessions: sessions,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("version", appVersion).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	// Background stop-and-upload pipelines finish before the stores close.
	sessions.Wait()
	return nil
}

func openBlobStore(ctx context.Context, cfg config.Config) (blob.Store, error) {
	if cfg.Blob.Backend == "minio" {
		return blob.NewMinioStore(ctx, blob.MinioOptions{
			Endpoint:  cfg.Blob.Endpoint,
			AccessKey: cfg.Blob.AccessKey,
			SecretKey: cfg.Blob.SecretKey,
			Bucket:    cfg.Blob.Bucket,
			UseSSL:    cfg.Blob.UseSSL,
			URLTTL:    cfg.Blob.URLTTL,
		})
	}
	return blob.NewLocalStore(cfg.Blob.LocalDir, cfg.Blob.PublicBaseURL)
}
