package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Interval fires at a fixed distance from the previous run. Unlike
// cron.Every it keeps sub-second intervals.
type Interval time.Duration

func (i Interval) Next(t time.Time) time.Time { return t.Add(time.Duration(i)) }

// ParseSchedule accepts either a Go duration ("1m", "24h") or a cron
// expression, including descriptors such as "@daily".
func ParseSchedule(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("empty schedule")
	}
	if d, err := time.ParseDuration(spec); err == nil {
		if d <= 0 {
			return nil, fmt.Errorf("schedule %q: interval must be positive", spec)
		}
		return Interval(d), nil
	}
	s, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return s, nil
}
