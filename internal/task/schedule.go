package task

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// NextRun validates a five-field cron expression and returns when it next
// fires after the clock's current time, in the clock's location.
func NextRun(expr string, clock clockwork.Clock) (time.Time, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLocation(clock.Now().Location()),
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to create scheduler: %w", err)
	}
	defer scheduler.Shutdown()

	job, err := scheduler.NewJob(
		gocron.CronJob(expr, false),
		gocron.NewTask(func() {}),
	)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}

	scheduler.Start()
	return job.NextRun()
}
