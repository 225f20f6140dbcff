package probe

import (
	"context"
	"sync"

	"github.com/hamed0406/uptimemonitor/internal/domain"
)

// Prober runs one probe against a check and returns its single outcome.
type Prober interface {
	Probe(ctx context.Context, c domain.Check) domain.Outcome
}

// Future holds the outcome of one probe. The response, the transport error
// and the timer all race to Settle it; only the first call wins and later
// calls are dropped.
type Future struct {
	once sync.Once
	done chan struct{}
	out  domain.Outcome
}

func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Settle records o if the future is still open and reports whether it did.
func (f *Future) Settle(o domain.Outcome) bool {
	settled := false
	f.once.Do(func() {
		f.out = o
		settled = true
		close(f.done)
	})
	return settled
}

func (f *Future) Done() <-chan struct{} { return f.done }

// Outcome blocks until the future is settled.
func (f *Future) Outcome() domain.Outcome {
	<-f.done
	return f.out
}
