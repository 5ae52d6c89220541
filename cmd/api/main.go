package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/hamed0406/stockwatch/internal/config"
	"github.com/hamed0406/stockwatch/internal/dispatch"
	"github.com/hamed0406/stockwatch/internal/httpapi"
	apimw "github.com/hamed0406/stockwatch/internal/httpapi/middleware"
	"github.com/hamed0406/stockwatch/internal/ledger"
	"github.com/hamed0406/stockwatch/internal/logging"
	"github.com/hamed0406/stockwatch/internal/notify"
	"github.com/hamed0406/stockwatch/internal/reminder"
	"github.com/hamed0406/stockwatch/internal/repo"
	"github.com/hamed0406/stockwatch/internal/repo/memory"
	"github.com/hamed0406/stockwatch/internal/repo/postgres"
	"github.com/hamed0406/stockwatch/internal/repo/sqlite"
	"github.com/hamed0406/stockwatch/internal/scheduler"
	"github.com/hamed0406/stockwatch/internal/store"
	"github.com/hamed0406/stockwatch/internal/tracker"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(cfg.LogDir)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	blobs, closeBlobs, err := openStorage(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("storage_open_error", zap.String("driver", cfg.StorageDriver), zap.Error(err))
	}
	defer closeBlobs()

	clock := clockwork.NewRealClock()

	senders := notify.Multi{notify.LogSender{Logger: logger}}
	if slack := notify.NewSlack(cfg.SlackWebhook); slack != nil {
		senders = append(senders, slack)
	}
	platform := notify.NewLocal(logger, clock, senders, cfg.NotifyPermission)

	st := store.New(blobs, logger, clock)
	l := ledger.New()
	state := &dispatch.AppState{}
	disp := dispatch.New(logger, clock, platform, state, dispatch.NewQueue(cfg.InAppLimit, cfg.BannerTTL))
	poller := scheduler.NewPoller(logger, clock, st, l, disp, state)
	svc := tracker.New(logger, clock, st, l, reminder.New(platform, logger), disp, state, poller)

	// A partial load still leaves a usable tracker; Load has logged it.
	_ = svc.Load(ctx)

	go poller.Run(ctx)
	go platform.Run(ctx, time.Second)

	keys := apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys}
	api := httpapi.NewServer(logger, svc)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(keys, cfg.CORSOrigins, cfg.PublicRPM, cfg.PublicBurst),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("api_listen",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.StorageDriver),
		zap.Bool("slack", cfg.SlackWebhook != ""),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("api_listen_error", zap.Error(err))
	}
	logger.Info("api_stopped")
}

func openStorage(ctx context.Context, cfg config.Config, logger *zap.Logger) (repo.BlobStore, func(), error) {
	switch cfg.StorageDriver {
	case config.DriverSQLite:
		dsn := cfg.StorageDSN
		if dsn == "" {
			dsn = "stockwatch.db"
		}
		s, err := sqlite.New(dsn)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg.StorageDSN, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return memory.New(), func() {}, nil
	}
}
