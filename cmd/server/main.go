package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"covid19-tracker/internal/chrono"
	"covid19-tracker/internal/config"
	"covid19-tracker/internal/crawler"
	"covid19-tracker/internal/stats"
	"covid19-tracker/internal/store"
	"covid19-tracker/internal/telemetry"
	"covid19-tracker/pkg/logger"
)

const jobTimeout = 2 * time.Minute

type job struct {
	name string
	spec string
	run  func(ctx context.Context) error
}

func main() {
	configPath := flag.String("config", "", "config file (.yaml, .yml, .json or .json5)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.New().Errorf("load config: %v", err)
		os.Exit(1)
	}

	l := logger.NewWithLevel(cfg.Logging.Level, os.Stderr)
	tel := telemetry.NewSlogAPI(l.Slog())

	db, err := store.OpenSQLite(cfg.Store.Path)
	if err != nil {
		l.Errorf("open store: %v", err)
		os.Exit(1)
	}
	defer db.Close()

	client := crawler.NewHTTPClient(cfg.HTTP.Timeout(), cfg.HTTP.DialTimeout(), cfg.HTTP.SizeCapBytes, tel).
		SetUserAgent(cfg.HTTP.UserAgent)
	svc := stats.NewService(client, db, chrono.NewStandardClock(), tel, stats.Sources{
		StatsURL:   cfg.Sources.StatsURL,
		HistoryURL: cfg.Sources.HistoryURL,
	}).SetNearMissThreshold(cfg.Naming.NearMissThreshold)

	ctx, stopJobs := context.WithCancel(context.Background())
	defer stopJobs()

	jobs := []job{
		{name: "summary", spec: cfg.Schedule.Summary, run: func(ctx context.Context) error {
			_, err := svc.FetchSummary(ctx)
			return err
		}},
		{name: "countries", spec: cfg.Schedule.Countries, run: func(ctx context.Context) error {
			_, err := svc.FetchCountries(ctx)
			return err
		}},
		{name: "history", spec: cfg.Schedule.History, run: func(ctx context.Context) error {
			_, err := svc.FetchHistory(ctx)
			return err
		}},
	}

	scheduler := chrono.NewStandardCron(tel)
	if err := schedule(ctx, l, scheduler, jobs); err != nil {
		l.Errorf("schedule: %v", err)
		os.Exit(1)
	}
	scheduler.Start()
	if cfg.Schedule.ShouldRunOnStart() {
		go func() {
			for _, j := range jobs {
				runJob(ctx, l, j)
			}
		}()
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      newRouter(l, svc),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		l.Infof("server listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			l.Errorf("server error: %v", err)
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	l.Infof("shutting down...")
	stopJobs()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if err := scheduler.Stop(shutdownCtx); err != nil {
		l.Errorf("scheduler did not stop: %v", err)
	}
	l.Infof("bye")
}

// schedule registers every job whose spec is not "off".
func schedule(ctx context.Context, l *logger.Logger, c chrono.CronAPI, jobs []job) error {
	for _, j := range jobs {
		if strings.EqualFold(strings.TrimSpace(j.spec), "off") {
			l.Warn("job disabled", "job", j.name)
			continue
		}
		j := j
		if err := c.Cron(j.spec, func() { runJob(ctx, l, j) }); err != nil {
			return err
		}
		l.Debug("job scheduled", "job", j.name, "spec", j.spec)
	}
	return nil
}

func runJob(ctx context.Context, l *logger.Logger, j job) {
	ctx, cancel := context.WithTimeout(ctx, jobTimeout)
	defer cancel()

	jl := l.With("job", j.name)
	jl.Debug("job started")
	start := time.Now()
	if err := j.run(ctx); err != nil {
		jl.Error("job failed", "err", err)
		return
	}
	jl.Info("job done", "elapsed", time.Since(start))
}
