package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimemonitor/internal/domain"
	"github.com/hamed0406/uptimemonitor/internal/notify"
	"github.com/hamed0406/uptimemonitor/internal/repo"
)

// LogAppender receives one line per probe, keyed by check id.
type LogAppender interface {
	Append(subject, line string) error
}

const dispatchTimeout = 30 * time.Second

// Alerter turns a probe outcome into a state transition. For every probe
// it appends a log entry, then stores the new state, then alerts the owner
// when a known state changed.
type Alerter struct {
	Logger   *zap.Logger
	Store    repo.RecordStore
	Logs     LogAppender
	Notifier notify.Notifier
	// Locks, when set, is shared with the API so the state write does not
	// race an owner's edit of the same check.
	Locks *repo.KeyedMutex
	Now   func() time.Time

	inflight sync.WaitGroup
}

func NewAlerter(logger *zap.Logger, store repo.RecordStore, logs LogAppender, n notify.Notifier, locks *repo.KeyedMutex) *Alerter {
	return &Alerter{
		Logger:   logger,
		Store:    store,
		Logs:     logs,
		Notifier: n,
		Locks:    locks,
		Now:      time.Now,
	}
}

// AlertText is the SMS body sent on a state change.
func AlertText(c domain.Check, state domain.State) string {
	return fmt.Sprintf("Alert: Your check for %s %s is currently %s",
		strings.ToUpper(c.Method), c.Target(), state)
}

// Process applies o to c. Failures are logged and never returned.
func (a *Alerter) Process(ctx context.Context, c domain.Check, o domain.Outcome) domain.LogEntry {
	now := a.Now()
	state := domain.StateFor(c, o)
	entry := domain.LogEntry{
		Check:   c,
		Outcome: o,
		State:   state,
		Alert:   c.Probed() && c.State != state,
		Time:    now.UnixMilli(),
	}
	log := a.Logger.With(zap.String("check_id", c.ID))

	line, err := json.Marshal(entry)
	if err != nil {
		log.Error("alerter_encode_error", zap.Error(err))
	} else if err := a.Logs.Append(c.ID, string(line)); err != nil {
		log.Warn("alerter_log_append_error", zap.Error(err))
	}

	if err := a.storeState(ctx, c, state, now.UnixMilli()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			log.Info("alerter_check_gone")
		} else {
			log.Warn("alerter_store_error", zap.Error(err))
		}
	}

	log.Debug("alerter_processed",
		zap.String("prev_state", string(c.State)),
		zap.String("state", string(state)),
		zap.Bool("alert", entry.Alert),
	)

	if entry.Alert {
		a.dispatch(ctx, log, c.UserPhone, AlertText(c, state))
	}
	return entry
}

const casAttempts = 3

var errConflict = errors.New("check changed concurrently")

// storeState rewrites only state and lastChecked on the current record so
// fields edited while the probe was running are kept. A check deleted in
// the meantime is not recreated.
func (a *Alerter) storeState(ctx context.Context, c domain.Check, state domain.State, at int64) error {
	if a.Locks != nil {
		unlock := a.Locks.Lock(c.UserPhone)
		defer unlock()
	}
	if vs, ok := a.Store.(repo.Versioned); ok {
		for i := 0; i < casAttempts; i++ {
			raw, rev, err := vs.ReadRevision(ctx, repo.Checks, c.ID)
			if err != nil {
				return err
			}
			swapped, err := vs.CompareAndSwap(ctx, repo.Checks, c.ID, rev, withState(raw, c, state, at))
			if err != nil || swapped {
				return err
			}
		}
		return errConflict
	}
	raw, err := a.Store.Read(ctx, repo.Checks, c.ID)
	if err != nil {
		return err
	}
	return a.Store.Update(ctx, repo.Checks, c.ID, withState(raw, c, state, at))
}

// withState sets state and lastChecked on a stored record, falling back to
// c when the record cannot be decoded.
func withState(raw []byte, c domain.Check, state domain.State, at int64) []byte {
	var rec map[string]any
	if err := json.Unmarshal(raw, &rec); err != nil || rec == nil {
		c.State, c.LastChecked = state, at
		b, _ := json.Marshal(c)
		return b
	}
	rec["state"] = state
	rec["lastChecked"] = at
	b, _ := json.Marshal(rec)
	return b
}

func (a *Alerter) dispatch(ctx context.Context, log *zap.Logger, to, text string) {
	a.inflight.Add(1)
	go func() {
		defer a.inflight.Done()
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), dispatchTimeout)
		defer cancel()
		if err := a.Notifier.Send(sctx, to, text); err != nil {
			log.Warn("alert_dispatch_error", zap.String("to", to), zap.Error(err))
			return
		}
		log.Info("alert_sent", zap.String("to", to), zap.String("text", text))
	}()
}

// Wait blocks until every dispatched alert has finished.
func (a *Alerter) Wait() { a.inflight.Wait() }
