package main

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimemonitor/internal/applog"
	"github.com/hamed0406/uptimemonitor/internal/config"
	"github.com/hamed0406/uptimemonitor/internal/httpapi"
	"github.com/hamed0406/uptimemonitor/internal/logging"
	"github.com/hamed0406/uptimemonitor/internal/notify"
	"github.com/hamed0406/uptimemonitor/internal/probe"
	"github.com/hamed0406/uptimemonitor/internal/repo"
	"github.com/hamed0406/uptimemonitor/internal/repo/filestore"
	"github.com/hamed0406/uptimemonitor/internal/repo/memory"
	"github.com/hamed0406/uptimemonitor/internal/repo/postgres"
	"github.com/hamed0406/uptimemonitor/internal/scheduler"
)

// app holds every long-lived component built from the config.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     repo.RecordStore
	locks     *repo.KeyedMutex
	logs      *applog.Log
	alerter   *scheduler.Alerter
	rechecker *scheduler.Rechecker
	rotator   *scheduler.Rotator
	closers   []func() error
}

func newApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLogger(cfg.Log.Dir, cfg.Log.Level, cfg.Log.Console)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, locks: &repo.KeyedMutex{}}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}
	if a.logs, err = applog.New(cfg.Checks.LogDir); err != nil {
		return nil, err
	}

	n := a.notifier()
	a.alerter = scheduler.NewAlerter(logger, a.store, a.logs, n, a.locks)
	a.rechecker = scheduler.NewRechecker(logger, a.store, probe.NewRunner(), a.alerter, cfg.Scheduler.Concurrency)
	a.rotator = scheduler.NewRotator(logger, a.logs)
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Data.Backend {
	case "memory":
		a.store = memory.New()
	case "postgres":
		pg, err := postgres.New(ctx, a.cfg.Database.URL, a.logger)
		if err != nil {
			return err
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return err
		}
		a.closers = append(a.closers, func() error { pg.Close(); return nil })
		a.store = pg
	default:
		fs, err := filestore.New(a.cfg.Data.Dir)
		if err != nil {
			return err
		}
		a.store = fs
	}
	a.logger.Info("store_opened", zap.String("backend", a.cfg.Data.Backend))
	return nil
}

// notifier combines every configured channel, or logs alerts when none is.
func (a *app) notifier() notify.Notifier {
	nc := a.cfg.Notify
	var m notify.Multi
	if tw := notify.NewTwilio(nc.Twilio.AccountSID, nc.Twilio.AuthToken, nc.Twilio.From); tw != nil {
		m = append(m, tw)
	}
	if sl := notify.NewSlack(nc.Slack.Webhook); sl != nil {
		m = append(m, sl)
	}
	if rd := notify.NewRedis(nc.Redis.Addr, nc.Redis.Channel); rd != nil {
		m = append(m, rd)
		a.closers = append(a.closers, rd.Close)
	}
	if len(m) == 0 {
		a.logger.Warn("notify_no_channel")
		return notify.Log{Logger: a.logger}
	}
	a.logger.Info("notify_channels", zap.Int("count", len(m)))
	return m
}

func (a *app) scheduler() (*scheduler.Scheduler, error) {
	probeEvery, err := scheduler.ParseSchedule(a.cfg.Scheduler.CheckInterval)
	if err != nil {
		return nil, err
	}
	rotateEvery, err := scheduler.ParseSchedule(a.cfg.Scheduler.RotateInterval)
	if err != nil {
		return nil, err
	}
	return scheduler.New(a.logger,
		scheduler.Job{Name: "probe", Schedule: probeEvery, Run: a.rechecker.RunCycle},
		scheduler.Job{Name: "rotate", Schedule: rotateEvery, Run: a.rotator.RunCycle},
	), nil
}

func (a *app) server() *httpapi.Server {
	s := httpapi.NewServer(a.logger, a.store, a.locks)
	s.MaxChecks = a.cfg.Checks.MaxPerUser
	s.TokenTTL = a.cfg.Security.TokenTTL
	return s
}

func (a *app) Close() error {
	a.alerter.Wait()
	var errs error
	for _, c := range a.closers {
		errs = multierr.Append(errs, c())
	}
	if err := a.logger.Sync(); err != nil {
		// stderr sync fails on some platforms; not worth reporting.
		a.logger.Debug("logger_sync", zap.Error(err))
	}
	if errs != nil {
		return fmt.Errorf("close: %w", errs)
	}
	return nil
}
