package cache

import (
	"github.com/robfig/cron/v3"

	"github.com/halcyonsec/aegis/pkg/observability"
)

// Purger is the subset of a cache backend the janitor needs.
type Purger interface {
	Purge()
}

// Janitor periodically flushes the resolution cache on a cron schedule.
// A scheduled flush bounds worst-case staleness independently of the
// per-entry TTL, which matters after bulk role or permission changes
// applied directly to the database.
type Janitor struct {
	cron    *cron.Cron
	log     *observability.Logger
	metrics *observability.Metrics
}

// NewJanitor schedules a periodic purge of the given cache. The schedule
// uses standard cron syntax, e.g. "0 * * * *" for hourly.
func NewJanitor(schedule string, target Purger, log *observability.Logger, metrics *observability.Metrics) (*Janitor, error) {
	if log == nil {
		log = observability.NewLogger(observability.ParseLevel("info"), nil)
	}
	j := &Janitor{
		cron:    cron.New(),
		log:     log,
		metrics: metrics,
	}
	_, err := j.cron.AddFunc(schedule, func() {
		j.log.Info("scheduled resolution cache flush")
		target.Purge()
		j.metrics.RecordInvalidation("sweep")
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Start begins running the schedule in its own goroutine.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop stops the scheduler and waits for a running flush to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}
