package timeloop

import (
	"fmt"

	"github.com/robfig/cron/v3"

	tlerrors "github.com/InkSha/time-loop/pkg/common/errors"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseCron validates a cron expression without registering anything.
func ParseCron(expr string) (cron.Schedule, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, tlerrors.NewValidationError("timeloop", "cron", expr, fmt.Sprintf("invalid cron expression: %v", err)).
			WithHint(`use five or six fields, e.g. "*/10 * * * * *", or a descriptor such as "@every 1m"`)
	}
	return schedule, nil
}
