package sla

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// Sweeper periodically re-evaluates open tickets, because a ticket can
// breach purely by elapsed time with no intervening transition. It runs
// on its own schedule, decoupled from request handling, and writes
// deltas only for tickets whose flags actually change.
type Sweeper struct {
	tickets    repository.TicketRepository
	tracker    *Tracker
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	cfg        config.SLAConfig
	cron       *cron.Cron
}

// NewSweeper builds the sweeper.
func NewSweeper(tickets repository.TicketRepository, tracker *Tracker, dispatcher events.Dispatcher, metrics *observability.Metrics, logger *zap.Logger, cfg config.SLAConfig) *Sweeper {
	return &Sweeper{
		tickets:    tickets,
		tracker:    tracker,
		dispatcher: dispatcher,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// Start schedules the sweep. No-op when disabled by configuration.
func (s *Sweeper) Start(ctx context.Context) error {
	if s.cfg.SweepDisabled {
		s.logger.Info("sla sweep disabled by configuration")
		return nil
	}
	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.cfg.SweepSchedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, s.cfg.SweepTimeout())
		defer cancel()
		s.RunOnce(runCtx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("sla sweep scheduled", zap.String("schedule", s.cfg.SweepSchedule))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// RunOnce evaluates every sweep candidate. Per-ticket failures are
// isolated: one ticket's error never halts the rest of the sweep.
func (s *Sweeper) RunOnce(ctx context.Context) {
	s.metrics.IncCounter("sla_sweep_runs")
	ids, err := s.tickets.ListSweepCandidates(ctx, s.cfg.SweepBatchLimit)
	if err != nil {
		s.logger.Error("sla sweep: listing candidates failed", zap.Error(err))
		return
	}

	var warnings, breaches int
	for _, id := range ids {
		if ctx.Err() != nil {
			s.logger.Warn("sla sweep cancelled", zap.Int("remaining", len(ids)))
			return
		}
		outcome, ticket, err := s.evaluateOne(ctx, id)
		if err != nil {
			s.logger.Error("sla sweep: ticket evaluation failed",
				zap.String("ticket_id", id), zap.Error(err))
			continue
		}
		if outcome.WarningCrossed {
			warnings++
			s.metrics.IncCounter("sla_warnings")
			s.publishAlert(ctx, events.EventSLAWarning, ticket)
		}
		if outcome.BreachCrossed {
			breaches++
			s.metrics.IncCounter("sla_breaches")
			s.publishAlert(ctx, events.EventSLABreached, ticket)
		}
	}

	if warnings > 0 || breaches > 0 {
		s.logger.Info("sla sweep complete",
			zap.Int("candidates", len(ids)),
			zap.Int("warnings", warnings),
			zap.Int("breaches", breaches))
	}
}

func (s *Sweeper) evaluateOne(ctx context.Context, id string) (Outcome, *domain.Ticket, error) {
	var outcome Outcome
	ticket, err := s.tickets.Mutate(ctx, id, func(t *domain.Ticket) ([]domain.TicketHistoryEntry, error) {
		wasBreached, wasWarned := t.Breached, t.SLAWarningSent
		outcome = s.tracker.Evaluate(t, time.Now())
		if t.Breached == wasBreached && t.SLAWarningSent == wasWarned {
			return nil, errNoChange
		}
		return nil, nil
	})
	if err == errNoChange {
		return Outcome{}, nil, nil
	}
	return outcome, ticket, err
}

// errNoChange aborts the mutation transaction when the sweep found
// nothing to write, so unchanged tickets produce no write at all.
var errNoChange = noChangeError{}

type noChangeError struct{}

func (noChangeError) Error() string { return "no sla state change" }

func (s *Sweeper) publishAlert(ctx context.Context, eventType events.EventType, ticket *domain.Ticket) {
	if ticket == nil || ticket.ResolutionDeadline == nil {
		return
	}
	var assigneeID *string
	if ticket.Assignee != nil {
		assigneeID = &ticket.Assignee.ID
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticket.ID,
		Timestamp: time.Now(),
		Payload: events.SLAAlertPayload{
			Title:      ticket.Title,
			Priority:   ticket.Priority,
			Status:     ticket.Status,
			AssigneeID: assigneeID,
			Deadline:   *ticket.ResolutionDeadline,
		},
	})
}
