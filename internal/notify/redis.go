package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// Redis publishes alerts on a pub/sub channel for an external delivery
// worker.
type Redis struct {
	Client  redis.UniversalClient
	Channel string
	Now     func() time.Time
}

func NewRedis(addr, channel string) *Redis {
	if addr == "" {
		return nil
	}
	if channel == "" {
		channel = "uptime:alerts"
	}
	return &Redis{
		Client:  redis.NewClient(&redis.Options{Addr: addr}),
		Channel: channel,
		Now:     time.Now,
	}
}

// Message is the payload published for every alert.
type Message struct {
	To   string `json:"to"`
	Text string `json:"text"`
	Time int64  `json:"time"`
}

func (r *Redis) Send(ctx context.Context, to, text string) error {
	payload, err := json.Marshal(Message{To: to, Text: text, Time: r.Now().UnixMilli()})
	if err != nil {
		return err
	}
	if err := r.Client.Publish(ctx, r.Channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", r.Channel, err)
	}
	return nil
}

func (r *Redis) Close() error { return r.Client.Close() }
