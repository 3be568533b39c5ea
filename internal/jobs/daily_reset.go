package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/JhonAQ/te-toca-web-sub000/internal/logger"
	"github.com/JhonAQ/te-toca-web-sub000/internal/utils"
)

// CounterResetter zeroes every queue's processed-today counter.
type CounterResetter interface {
	ResetDailyCounters(ctx context.Context) (int, error)
}

// DailyReset runs the counter reset at every local midnight.
type DailyReset struct {
	Queues   CounterResetter
	Location *time.Location
	Logger   *logger.Logger
	Now      func() time.Time
	After    func(time.Duration) <-chan time.Time
}

func NewDailyReset(queues CounterResetter, loc *time.Location, log *logger.Logger) *DailyReset {
	if loc == nil {
		loc = time.UTC
	}
	return &DailyReset{Queues: queues, Location: loc, Logger: log, Now: time.Now, After: time.After}
}

// UntilNextRun is the wait from now to the next local midnight.
func (j *DailyReset) UntilNextRun() time.Duration {
	now := j.Now()
	return utils.NextMidnight(now, j.Location).Sub(now)
}

// Run blocks until ctx is cancelled.
func (j *DailyReset) Run(ctx context.Context) {
	j.Logger.LogJob("daily-reset", fmt.Sprintf("scheduled, next run in %s", j.UntilNextRun().Round(time.Second)))
	for {
		select {
		case <-ctx.Done():
			j.Logger.LogJob("daily-reset", "stopped")
			return
		case <-j.After(j.UntilNextRun()):
		}
		if _, err := j.Queues.ResetDailyCounters(ctx); err != nil {
			j.Logger.Error("JOB", fmt.Sprintf("daily reset failed: %v", err))
		}
	}
}
