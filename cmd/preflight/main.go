// cmd/preflight/main.go
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hamed0406/uptimemonitor/internal/config"
)

func main() {
	path := flag.String("config", "", "config file to check")
	flag.Parse()

	fail := func(msg string) {
		fmt.Fprintln(os.Stderr, "✖", msg)
		os.Exit(1)
	}
	warn := func(msg string) { fmt.Fprintln(os.Stderr, "⚠", msg) }
	ok := func(msg string) { fmt.Println("✔", msg) }

	cfg, err := config.Load(*path)
	if err != nil {
		fail(err.Error())
	}
	ok("api.addr=" + cfg.API.Addr)
	ok("data.backend=" + cfg.Data.Backend)
	ok("scheduler: probe " + cfg.Scheduler.CheckInterval + ", rotate " + cfg.Scheduler.RotateInterval)

	if cfg.Data.Backend == "memory" {
		warn("data.backend=memory: checks and users are lost on restart.")
	}

	n := cfg.Notify
	channels := 0
	if n.Twilio.AccountSID != "" || n.Twilio.AuthToken != "" || n.Twilio.From != "" {
		if n.Twilio.AccountSID == "" || n.Twilio.AuthToken == "" || n.Twilio.From == "" {
			fail("notify.twilio needs account_sid, auth_token and from together.")
		}
		channels++
		ok("twilio SMS configured")
	}
	if n.Slack.Webhook != "" {
		channels++
		ok("slack webhook configured")
	}
	if n.Redis.Addr != "" {
		channels++
		ok("redis channel " + n.Redis.Channel + " on " + n.Redis.Addr)
	}
	if channels == 0 {
		warn("no notify channel configured; alerts only reach the process log.")
	}

	ok("preflight passed")
}
