package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimemonitor/internal/applog"
)

// LogRotator is the part of the append log the rotation cycle needs.
type LogRotator interface {
	List(includeArchived bool) ([]string, error)
	Rotate(subject, archiveID string) (applog.ArchiveStats, error)
}

// Rotator freezes every active log into an archive named
// <subject>-<unix ms> and empties it.
type Rotator struct {
	Logger *zap.Logger
	Logs   LogRotator
	Now    func() time.Time
}

func NewRotator(logger *zap.Logger, logs LogRotator) *Rotator {
	return &Rotator{Logger: logger, Logs: logs, Now: time.Now}
}

// RunCycle rotates every active log. A failing log does not stop the
// others; all failures are returned together.
func (r *Rotator) RunCycle(ctx context.Context, cycleID string) error {
	log := r.Logger.With(zap.String("cycle_id", cycleID))

	subjects, err := r.Logs.List(false)
	if err != nil {
		log.Warn("rotator_list_error", zap.Error(err))
		return err
	}

	var (
		errs    error
		rotated int
		raw     int64
		packed  int64
	)
	for _, subject := range subjects {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		archiveID := fmt.Sprintf("%s-%d", subject, r.Now().UnixMilli())
		stats, err := r.Logs.Rotate(subject, archiveID)
		switch {
		case errors.Is(err, applog.ErrEmpty):
			continue
		case err != nil:
			log.Warn("rotator_log_error", zap.String("subject", subject), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("rotate %s: %w", subject, err))
			continue
		}
		rotated++
		raw += stats.RawBytes
		packed += stats.ArchivedBytes
		log.Debug("rotator_log_archived",
			zap.String("subject", subject),
			zap.String("archive", archiveID),
			zap.String("raw", humanize.Bytes(uint64(stats.RawBytes))),
			zap.String("archived", humanize.Bytes(uint64(stats.ArchivedBytes))),
		)
	}

	log.Info("rotator_cycle_done",
		zap.Int("logs", len(subjects)),
		zap.Int("rotated", rotated),
		zap.Int("failed", len(multierr.Errors(errs))),
		zap.String("raw", humanize.Bytes(uint64(raw))),
		zap.String("archived", humanize.Bytes(uint64(packed))),
	)
	return errs
}
