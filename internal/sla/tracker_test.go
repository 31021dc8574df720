package sla

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
)

type stubPolicyRepo struct {
	policy *domain.SLAPolicy
	err    error
}

func (s *stubPolicyRepo) GetActiveByPriority(context.Context, domain.TicketPriority) (*domain.SLAPolicy, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.policy == nil {
		return nil, pgx.ErrNoRows
	}
	return s.policy, nil
}

func (s *stubPolicyRepo) List(context.Context) ([]domain.SLAPolicy, error) {
	if s.policy == nil {
		return nil, nil
	}
	return []domain.SLAPolicy{*s.policy}, nil
}

func newTestTracker(policy *domain.SLAPolicy, err error) *Tracker {
	return NewTracker(&stubPolicyRepo{policy: policy, err: err}, 0.8, zap.NewNop())
}

func TestComputeDeadlines(t *testing.T) {
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tracker := newTestTracker(&domain.SLAPolicy{
		Priority:       domain.TicketPriorityHigh,
		ResponseTime:   4 * time.Hour,
		ResolutionTime: 8 * time.Hour,
	}, nil)

	ticket := &domain.Ticket{Priority: domain.TicketPriorityHigh, CreatedAt: created}
	require.NoError(t, tracker.ComputeDeadlines(context.Background(), ticket))
	require.NotNil(t, ticket.ResponseDeadline)
	require.NotNil(t, ticket.ResolutionDeadline)
	assert.Equal(t, created.Add(4*time.Hour), *ticket.ResponseDeadline)
	assert.Equal(t, created.Add(8*time.Hour), *ticket.ResolutionDeadline)
}

func TestComputeDeadlinesMissingPolicyFailsOpen(t *testing.T) {
	tracker := newTestTracker(nil, pgx.ErrNoRows)

	ticket := &domain.Ticket{Priority: domain.TicketPriorityLow, CreatedAt: time.Now()}
	require.NoError(t, tracker.ComputeDeadlines(context.Background(), ticket))
	assert.Nil(t, ticket.ResponseDeadline)
	assert.Nil(t, ticket.ResolutionDeadline)

	// Without a deadline the ticket is exempt from evaluation.
	outcome := tracker.Evaluate(ticket, time.Now().Add(1000*time.Hour))
	assert.False(t, outcome.BreachCrossed)
	assert.False(t, outcome.WarningCrossed)
	assert.False(t, ticket.Breached)
}

func openTicket(created time.Time, budget time.Duration) *domain.Ticket {
	deadline := created.Add(budget)
	return &domain.Ticket{
		Status:             domain.TicketStatusInProgress,
		CreatedAt:          created,
		ResolutionDeadline: &deadline,
	}
}

func TestEvaluateBreach(t *testing.T) {
	tracker := newTestTracker(nil, nil)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ticket := openTicket(created, 8*time.Hour)

	outcome := tracker.Evaluate(ticket, created.Add(9*time.Hour))
	assert.True(t, outcome.BreachCrossed)
	assert.True(t, ticket.Breached)

	// Already breached: no second crossing.
	outcome = tracker.Evaluate(ticket, created.Add(10*time.Hour))
	assert.False(t, outcome.BreachCrossed)
	assert.True(t, ticket.Breached)
}

func TestEvaluateWarningAtFractionOfBudget(t *testing.T) {
	tracker := newTestTracker(nil, nil)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ticket := openTicket(created, 10*time.Hour)

	// Before 80% of the budget nothing fires.
	outcome := tracker.Evaluate(ticket, created.Add(7*time.Hour))
	assert.False(t, outcome.WarningCrossed)
	assert.False(t, ticket.SLAWarningSent)

	outcome = tracker.Evaluate(ticket, created.Add(8*time.Hour))
	assert.True(t, outcome.WarningCrossed)
	assert.False(t, outcome.BreachCrossed)
	assert.True(t, ticket.SLAWarningSent)

	// Warning fires once per ticket.
	outcome = tracker.Evaluate(ticket, created.Add(9*time.Hour))
	assert.False(t, outcome.WarningCrossed)
}

func TestEvaluateBreachSupersedesWarning(t *testing.T) {
	tracker := newTestTracker(nil, nil)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ticket := openTicket(created, 8*time.Hour)

	// First evaluation lands past the deadline: both thresholds are
	// behind us, but only the breach is reported.
	outcome := tracker.Evaluate(ticket, created.Add(12*time.Hour))
	assert.True(t, outcome.BreachCrossed)
	assert.False(t, outcome.WarningCrossed)
	assert.True(t, ticket.Breached)
	assert.True(t, ticket.SLAWarningSent)
}

func TestEvaluateFinishedLate(t *testing.T) {
	tracker := newTestTracker(nil, nil)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ticket := openTicket(created, 8*time.Hour)
	resolvedAt := created.Add(9 * time.Hour)
	ticket.Status = domain.TicketStatusResolved
	ticket.ResolvedAt = &resolvedAt

	outcome := tracker.Evaluate(ticket, resolvedAt)
	assert.True(t, outcome.BreachCrossed)
	assert.True(t, ticket.Breached)
}

func TestEvaluateFinishedOnTime(t *testing.T) {
	tracker := newTestTracker(nil, nil)
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ticket := openTicket(created, 8*time.Hour)
	resolvedAt := created.Add(7 * time.Hour)
	ticket.Status = domain.TicketStatusResolved
	ticket.ResolvedAt = &resolvedAt

	// A resolved ticket does not breach by wall-clock time, however
	// late the evaluation runs.
	outcome := tracker.Evaluate(ticket, created.Add(100*time.Hour))
	assert.False(t, outcome.BreachCrossed)
	assert.False(t, ticket.Breached)
	assert.False(t, outcome.WarningCrossed)
	assert.False(t, ticket.SLAWarningSent)
}
