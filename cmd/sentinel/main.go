package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"PstrykSentinel/internal/api"
	"PstrykSentinel/internal/cache"
	"PstrykSentinel/internal/collector"
	"PstrykSentinel/internal/config"
	"PstrykSentinel/internal/coordinator"
	"PstrykSentinel/internal/notifier"
	"PstrykSentinel/internal/recorder"
	"PstrykSentinel/internal/scheduler"
)

var version = "dev"

func main() {
	cfgPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	checkToken := flag.Bool("check-token", false, "validate the Pstryk API token and exit")
	flag.Parse()

	if v := os.Getenv("CONFIG_PATH"); v != "" {
		*cfgPath = v
	}
	if err := config.LoadDotEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("config validation", zap.Error(err))
	}
	loc, _ := cfg.Location()
	logger.Info("PstrykSentinel starting",
		zap.String("version", version),
		zap.String("timezone", loc.String()),
		zap.String("rule", string(cfg.Rule().Method)))

	fetcher := collector.NewPstrykFetcher(cfg.Pstryk.BaseURL, cfg.Pstryk.APIToken, cfg.Proxy,
		"PstrykSentinel/"+version, loc, logger.Named("pstryk"))

	if *checkToken {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Pstryk.Timeout)
		defer cancel()
		if reason := fetcher.ValidateToken(ctx, time.Now()); reason != "" {
			logger.Error("token check failed", zap.String("reason", reason))
			os.Exit(2)
		}
		logger.Info("token check passed")
		return
	}

	col := collector.NewCollector(fetcher, loc, collector.Options{
		Timeout:    cfg.Pstryk.Timeout,
		Retries:    cfg.Pstryk.Retries,
		RetryDelay: cfg.Pstryk.RetryDelay,
	}, logger.Named("collector"))

	store := cache.NewStore(cfg.Cache.File, logger.Named("cache"))

	coord := coordinator.New(col, store, coordinator.Options{
		Rule:           cfg.Rule(),
		Location:       loc,
		ManualCooldown: cfg.Schedule.ManualCooldown,
	}, logger.Named("coordinator"))

	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, logger.Named("recorder"))
		if err != nil {
			logger.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		} else {
			rec = sr
			defer sr.Close()
		}
	}

	var (
		tn   *notifier.TelegramNotifier
		note scheduler.Notifier = notifier.NoopNotifier{}
	)
	if cfg.Telegram.BotToken != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger.Named("telegram"))
		note = tn
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.NewScheduler(ctx, coord, note, rec, loc, logger.Named("scheduler"))
	if err := sched.RegisterAll(cfg.Schedule.RefreshCron, cfg.Schedule.RepublishCron); err != nil {
		logger.Fatal("register cron tasks", zap.Error(err))
	}
	sched.Start()
	defer sched.Stop()

	go sched.RunRefreshNow()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		logger.Info("telegram polling started")
	}

	var server *http.Server
	if cfg.HTTP.Listen != "" {
		if !cfg.Debug {
			gin.SetMode(gin.ReleaseMode)
		}
		server = &http.Server{
			Addr:              cfg.HTTP.Listen,
			Handler:           api.NewHandler(coord, sched, rec, cfg.Redacted(), logger.Named("api")),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", zap.String("addr", cfg.HTTP.Listen))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", zap.Error(err))
				cancel()
			}
		}()
	}

	logger.Info("PstrykSentinel is running")
	<-ctx.Done()
	logger.Info("shutdown signal received, stopping")

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}
	logger.Info("PstrykSentinel stopped")
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
