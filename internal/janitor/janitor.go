package janitor

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/gatehouse-app/gatehouse/backend/internal/analytics"
	"github.com/gatehouse-app/gatehouse/backend/internal/logger"
)

// sweepSchedule re-prunes the rolling analytics blob well inside its 24h
// window so bounded memory holds even when traffic stops.
const sweepSchedule = "@every 30m"

// Janitor runs periodic background maintenance.
type Janitor struct {
	cron       *cron.Cron
	aggregator *analytics.Aggregator
}

// New builds a janitor around the analytics aggregator.
func New(aggregator *analytics.Aggregator) *Janitor {
	return &Janitor{cron: cron.New(), aggregator: aggregator}
}

// Start schedules the sweeps and launches the cron loop.
func (j *Janitor) Start() error {
	_, err := j.cron.AddFunc(sweepSchedule, func() {
		if err := j.aggregator.Sweep(context.Background()); err != nil {
			logger.WithFields(map[string]interface{}{"error": err.Error()}).Warn("analytics sweep failed")
		}
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	return nil
}

// Stop halts the cron loop, waiting for a running sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}
