package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	to, text []string
	err      error
}

func (r *recorder) Send(_ context.Context, to, text string) error {
	r.to = append(r.to, to)
	r.text = append(r.text, text)
	return r.err
}

func TestMulti_TriesEveryChannel(t *testing.T) {
	a := &recorder{err: errors.New("a down")}
	b := &recorder{}
	c := &recorder{err: errors.New("c down")}

	err := Multi{a, nil, b, c}.Send(context.Background(), "555", "hello")
	if len(a.to) != 1 || len(b.to) != 1 || len(c.to) != 1 {
		t.Fatalf("every channel should be tried: %d %d %d", len(a.to), len(b.to), len(c.to))
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("want 2 combined errors, got %d (%v)", got, err)
	}
}

func TestLog_WritesAlert(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	if err := (Log{Logger: zap.New(core)}).Send(context.Background(), "555", "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	entries := logs.FilterMessage("alert_logged").All()
	if len(entries) != 1 || entries[0].ContextMap()["to"] != "555" {
		t.Fatalf("unexpected log entries %+v", entries)
	}
}

func TestRedis_PublishError(t *testing.T) {
	r := &Redis{
		Client:  redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1}),
		Channel: "alerts",
		Now:     time.Now,
	}
	defer r.Close()

	err := r.Send(context.Background(), "555", "hi")
	if err == nil || !strings.Contains(err.Error(), "redis publish alerts") {
		t.Fatalf("want wrapped publish error, got %v", err)
	}
	if NewRedis("", "x") != nil {
		t.Fatal("empty addr should disable redis")
	}
}
