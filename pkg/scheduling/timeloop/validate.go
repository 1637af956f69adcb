package timeloop

import (
	"github.com/robfig/cron/v3"

	"github.com/InkSha/time-loop/pkg/common/validation"
)

const module = "timeloop"

// validateTask checks a task before registration and parses its cron
// expression, if any.
func validateTask(t Task) (cron.Schedule, error) {
	if err := validation.ValidateNotEmpty(module, "name", t.Name); err != nil {
		return nil, err
	}
	if err := validation.ValidatePresent(module, "fn", t.Fn != nil); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeDuration(module, "interval", t.Interval); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeDuration(module, "delay", t.Delay); err != nil {
		return nil, err
	}
	if err := validation.ValidateExclusive(module, "interval", "cron", t.Interval > 0, t.Cron != ""); err != nil {
		return nil, err
	}
	if t.Cron == "" {
		return nil, nil
	}
	return ParseCron(t.Cron)
}
