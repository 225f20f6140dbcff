package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/uptimemonitor/internal/domain"
	"github.com/hamed0406/uptimemonitor/internal/probe"
	"github.com/hamed0406/uptimemonitor/internal/repo"
)

const DefaultConcurrency = 32

// Rechecker runs one probe cycle: every stored check is validated, probed
// once and handed to the Alerter.
type Rechecker struct {
	Logger      *zap.Logger
	Store       repo.RecordStore
	Prober      probe.Prober
	Alerter     *Alerter
	Concurrency int
}

func NewRechecker(logger *zap.Logger, store repo.RecordStore, prober probe.Prober, alerter *Alerter, concurrency int) *Rechecker {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	return &Rechecker{
		Logger:      logger,
		Store:       store,
		Prober:      prober,
		Alerter:     alerter,
		Concurrency: concurrency,
	}
}

// RunCycle probes every eligible check and returns once all probes of this
// cycle have been processed. Only a failure to list checks is returned.
func (r *Rechecker) RunCycle(ctx context.Context, cycleID string) error {
	log := r.Logger.With(zap.String("cycle_id", cycleID))

	ids, err := r.Store.List(ctx, repo.Checks)
	if err != nil {
		log.Warn("rechecker_list_error", zap.Error(err))
		return err
	}
	if len(ids) == 0 {
		log.Debug("rechecker_no_checks")
		return nil
	}

	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			r.checkOne(gctx, log, id)
			return nil
		})
	}
	_ = g.Wait()

	log.Info("rechecker_cycle_done",
		zap.Int("checks", len(ids)),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}

func (r *Rechecker) checkOne(ctx context.Context, log *zap.Logger, id string) {
	log = log.With(zap.String("check_id", id))

	raw, err := r.Store.Read(ctx, repo.Checks, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Debug("rechecker_check_gone")
			return
		}
		log.Warn("rechecker_read_error", zap.Error(err))
		return
	}

	v := domain.Validate(raw)
	if !v.Eligible() {
		log.Warn("check_ineligible", zap.Strings("invalid", v.Invalid))
		return
	}
	c := v.Check

	if _, err := r.Store.Read(ctx, repo.Users, c.UserPhone); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Warn("check_owner_missing", zap.String("owner", c.UserPhone))
			return
		}
		log.Warn("rechecker_owner_read_error", zap.Error(err))
		return
	}

	out := r.Prober.Probe(ctx, c)
	if ctx.Err() != nil {
		// Shutting down; the outcome says nothing about the target.
		log.Info("rechecker_probe_abandoned")
		return
	}
	r.Alerter.Process(ctx, c, out)
}
