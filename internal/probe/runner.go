package probe

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hamed0406/uptimemonitor/internal/domain"
)

const userAgent = "uptimemonitor/1.0"

// Runner issues exactly one HTTP request per probe. It never retries; the
// check is attempted again on the next scheduled cycle.
type Runner struct {
	Client *http.Client
	Now    func() time.Time
}

func NewRunner() *Runner {
	return &Runner{
		Client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
			// The status of the first response is the outcome.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		Now: time.Now,
	}
}

// Request builds the outbound request for c.
func Request(ctx context.Context, c domain.Check) (*http.Request, error) {
	u, err := url.Parse(c.Target())
	if err != nil {
		return nil, err
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("no host in %q", c.Target())
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(c.Method), u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

func (r *Runner) Probe(ctx context.Context, c domain.Check) domain.Outcome {
	start := r.Now()
	timeout := time.Duration(c.TimeoutSeconds) * time.Second

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := Request(reqCtx, c)
	if err != nil {
		return domain.Failed(domain.ErrKindRequest, err.Error())
	}

	fut := NewFuture()

	timer := time.AfterFunc(timeout, func() {
		if fut.Settle(domain.Failed(domain.ErrKindTimeout, fmt.Sprintf("no response within %s", timeout))) {
			cancel()
		}
	})
	defer timer.Stop()

	go func() {
		resp, err := r.Client.Do(req)
		if err != nil {
			fut.Settle(Classify(err))
			return
		}
		fut.Settle(domain.Responded(resp.StatusCode))
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		resp.Body.Close()
	}()

	select {
	case <-fut.Done():
	case <-ctx.Done():
		fut.Settle(domain.Failed(domain.ErrKindTimeout, ctx.Err().Error()))
	}

	out := fut.Outcome()
	out.LatencyMS = float64(r.Now().Sub(start).Microseconds()) / 1000
	return out
}

var _ Prober = (*Runner)(nil)
