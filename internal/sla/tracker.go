// Package sla computes ticket deadlines from priority-keyed policies
// and evaluates warning/breach state against wall-clock time.
package sla

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// Outcome reports which SLA thresholds a ticket crossed during one
// evaluation. Crossings are edge-triggered: a flag already set on the
// ticket never crosses again.
type Outcome struct {
	WarningCrossed bool
	BreachCrossed  bool
}

// Tracker owns deadline computation and breach evaluation.
type Tracker struct {
	policies        repository.SLAPolicyRepository
	warningFraction float64
	logger          *zap.Logger
}

// NewTracker builds a tracker. warningFraction is the share of the
// resolution budget consumed before a warning fires (e.g. 0.8).
func NewTracker(policies repository.SLAPolicyRepository, warningFraction float64, logger *zap.Logger) *Tracker {
	if warningFraction <= 0 || warningFraction >= 1 {
		warningFraction = 0.8
	}
	return &Tracker{policies: policies, warningFraction: warningFraction, logger: logger}
}

// ComputeDeadlines sets the ticket's response and resolution deadlines
// from the active policy for its priority. A missing policy is not an
// error: deadlines stay unset and the ticket is exempt from breach
// evaluation (fail open). The gap is logged so operators notice.
func (t *Tracker) ComputeDeadlines(ctx context.Context, ticket *domain.Ticket) error {
	policy, err := t.policies.GetActiveByPriority(ctx, ticket.Priority)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			t.logger.Warn("no active SLA policy for priority; deadlines left unset",
				zap.String("ticket_id", ticket.ID),
				zap.String("priority", string(ticket.Priority)))
			return nil
		}
		return err
	}
	response := ticket.CreatedAt.Add(policy.ResponseTime)
	resolution := ticket.CreatedAt.Add(policy.ResolutionTime)
	ticket.ResponseDeadline = &response
	ticket.ResolutionDeadline = &resolution
	return nil
}

// Evaluate updates the ticket's breach and warning flags against now and
// reports which thresholds were newly crossed. Flags are monotonic: a
// past deadline cannot become un-missed, so neither flag ever reverts.
func (t *Tracker) Evaluate(ticket *domain.Ticket, now time.Time) Outcome {
	var out Outcome
	if ticket.ResolutionDeadline == nil {
		return out
	}
	deadline := *ticket.ResolutionDeadline

	if !ticket.Breached {
		if ticket.Status.Open() {
			if now.After(deadline) {
				ticket.Breached = true
				out.BreachCrossed = true
			}
		} else if finishedAfter(ticket, deadline) {
			// Resolved or closed, but only after the deadline had passed.
			ticket.Breached = true
			out.BreachCrossed = true
		}
	}

	if !ticket.SLAWarningSent && ticket.Status.Open() {
		budget := deadline.Sub(ticket.CreatedAt)
		warningAt := ticket.CreatedAt.Add(time.Duration(t.warningFraction * float64(budget)))
		if !now.Before(warningAt) {
			ticket.SLAWarningSent = true
			// Suppress the warning when the breach fires in the same
			// evaluation; the breach notice supersedes it.
			if !out.BreachCrossed && !ticket.Breached {
				out.WarningCrossed = true
			}
		}
	}
	return out
}

func finishedAfter(ticket *domain.Ticket, deadline time.Time) bool {
	if ticket.ResolvedAt != nil && ticket.ResolvedAt.After(deadline) {
		return true
	}
	if ticket.ClosedAt != nil && ticket.ClosedAt.After(deadline) {
		return true
	}
	return false
}
