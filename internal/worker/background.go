// Package worker starts the background side of the service: the
// notification fan-out subscriptions and the periodic SLA sweep.
package worker

import (
	"context"

	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/notify"
	"github.com/spec-kit/helpdesk/internal/sla"
)

// Background bundles the long-running components.
type Background struct {
	sweeper *sla.Sweeper
}

// Start subscribes the notification dispatcher to the event bus and
// schedules the SLA sweep. The returned handle stops the sweep.
func Start(ctx context.Context, bus events.Dispatcher, notifier *notify.Dispatcher, sweeper *sla.Sweeper) (*Background, error) {
	if notifier != nil {
		notifier.RegisterHandlers(bus)
	}
	if sweeper != nil {
		if err := sweeper.Start(ctx); err != nil {
			return nil, err
		}
	}
	return &Background{sweeper: sweeper}, nil
}

// Stop halts the sweep schedule, waiting for an in-flight run.
func (b *Background) Stop() {
	if b.sweeper != nil {
		b.sweeper.Stop()
	}
}
