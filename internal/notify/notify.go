package notify

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Notifier delivers a short text message to a recipient, usually the
// owner's phone number.
type Notifier interface {
	Send(ctx context.Context, to, text string) error
}

// Multi sends through every configured channel. All channels are tried;
// the returned error combines every failure.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, to, text string) error {
	var errs error
	for _, n := range m {
		if n == nil {
			continue
		}
		errs = multierr.Append(errs, n.Send(ctx, to, text))
	}
	return errs
}

// Log writes alerts to the process log. It is used when no delivery
// channel is configured.
type Log struct {
	Logger *zap.Logger
}

func (l Log) Send(_ context.Context, to, text string) error {
	l.Logger.Info("alert_logged", zap.String("to", to), zap.String("text", text))
	return nil
}
