// Package cron parses the five-field expressions that drive the retention
// sweep. Schedules always fire on UTC wall-clock time; per-schedule
// timezones are deliberately not supported.
package cron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// Schedule yields successive fire times.
type Schedule interface {
	// Next returns the first fire time strictly after the given instant.
	Next(after time.Time) time.Time
}

// fields accepts the standard minute hour dom month dow layout, without
// the seconds column or @-descriptors.
var fields = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ParseSchedule parses a five-field cron expression into a UTC schedule.
func ParseSchedule(expression string) (Schedule, error) {
	sched, err := fields.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", expression, err)
	}
	return utcSchedule{sched: sched}, nil
}

type utcSchedule struct {
	sched cron.Schedule
}

func (s utcSchedule) Next(after time.Time) time.Time {
	return s.sched.Next(after.UTC())
}
