package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/sla"
	"github.com/spec-kit/helpdesk/internal/visibility"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// LifecycleService coordinates ticket mutations: creation, status
// transitions, assignment, comments and satisfaction ratings. Every
// mutation of an existing ticket goes through the repository's locked
// mutate path, so concurrent requests against the same ticket serialize
// instead of overwriting each other.
type LifecycleService struct {
	tickets    repository.TicketRepository
	comments   repository.TicketCommentRepository
	categories repository.CategoryRepository
	teams      repository.TeamRepository
	users      repository.UserRepository
	tracker    *sla.Tracker
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
}

// LifecycleDependencies bundles collaborators for the lifecycle service.
type LifecycleDependencies struct {
	TicketRepo   repository.TicketRepository
	CommentRepo  repository.TicketCommentRepository
	CategoryRepo repository.CategoryRepository
	TeamRepo     repository.TeamRepository
	UserRepo     repository.UserRepository
	Tracker      *sla.Tracker
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
}

// NewLifecycleService constructs the service.
func NewLifecycleService(deps LifecycleDependencies) *LifecycleService {
	return &LifecycleService{
		tickets:    deps.TicketRepo,
		comments:   deps.CommentRepo,
		categories: deps.CategoryRepo,
		teams:      deps.TeamRepo,
		users:      deps.UserRepo,
		tracker:    deps.Tracker,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
	}
}

// CreateTicketInput describes ticket creation payload. RequesterName and
// RequesterEmail let staff open tickets on behalf of callers who have no
// account; end users always become the requester themselves.
type CreateTicketInput struct {
	Title          string
	Description    string
	Priority       domain.TicketPriority
	CategoryID     string
	Channel        domain.TicketChannel
	RequesterName  string
	RequesterEmail string
}

// CreateTicket opens a new ticket and stamps its SLA deadlines.
func (s *LifecycleService) CreateTicket(ctx context.Context, actor *domain.User, input CreateTicketInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", nil)
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}
	channel := input.Channel
	if channel == "" {
		channel = domain.ChannelWeb
	}

	category, err := s.categories.GetByID(ctx, input.CategoryID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	requester := domain.SnapshotOf(actor)
	if actor.Role.IsStaff() && strings.TrimSpace(input.RequesterEmail) != "" {
		// Phone/email intake: the caller may not have an account, so the
		// ticket carries only their snapshot.
		requester = domain.Identity{
			Name:  strings.TrimSpace(input.RequesterName),
			Email: strings.TrimSpace(input.RequesterEmail),
		}
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusNew,
		Priority:    priority,
		CategoryID:  category.ID,
		Channel:     channel,
		Requester:   requester,
		CreatedAt:   time.Now(),
	}
	if err := s.tracker.ComputeDeadlines(ctx, ticket); err != nil {
		return nil, err
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}
	s.metrics.IncCounter("tickets_created")
	s.publish(ctx, events.EventTicketCreated, ticket.ID, actor, events.TicketCreatedPayload{
		Title:       ticket.Title,
		Priority:    ticket.Priority,
		CategoryID:  ticket.CategoryID,
		RequesterID: ticket.Requester.ID,
	})
	return ticket, nil
}

// Transition moves a ticket to a new status. The whole change — status
// fields, lifecycle timestamps, SLA flags and the history entry — commits
// atomically; a same-state request is rejected and writes nothing.
func (s *LifecycleService) Transition(ctx context.Context, actor *domain.User, ticketID string, newStatus domain.TicketStatus, comment string) (*domain.Ticket, error) {
	if !newStatus.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": newStatus})
	}
	if !visibility.CanMutateStatus(actor) {
		return nil, apperrors.NewForbidden("only staff may change ticket status")
	}

	var (
		oldStatus domain.TicketStatus
		outcome   sla.Outcome
	)
	ticket, err := s.tickets.Mutate(ctx, ticketID, func(t *domain.Ticket) ([]domain.TicketHistoryEntry, error) {
		if t.Status == newStatus {
			return nil, apperrors.NewInvalidTransition("ticket already in requested status", map[string]any{
				"ticket_id": t.ID,
				"status":    newStatus,
			})
		}
		oldStatus = t.Status
		now := time.Now()
		t.Status = newStatus
		switch newStatus {
		case domain.TicketStatusResolved:
			// First resolution only; reopening and re-resolving keeps the
			// original timestamp.
			if t.ResolvedAt == nil {
				t.ResolvedAt = &now
			}
			t.ClosedAt = nil
		case domain.TicketStatusClosed:
			t.ClosedAt = &now
			if t.ResolvedAt == nil {
				t.ResolvedAt = &now
			}
		default:
			t.ClosedAt = nil
		}
		outcome = s.tracker.Evaluate(t, now)

		entry := domain.TicketHistoryEntry{
			TicketID:   t.ID,
			FromStatus: oldStatus,
			ToStatus:   newStatus,
			Actor:      domain.SnapshotOf(actor),
			CreatedAt:  now,
		}
		if trimmed := strings.TrimSpace(comment); trimmed != "" {
			entry.Comment = &trimmed
		}
		return []domain.TicketHistoryEntry{entry}, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCounter("ticket_transitions")
	s.publish(ctx, events.EventTicketStatusChanged, ticket.ID, actor, events.TicketStatusChangedPayload{
		Title:       ticket.Title,
		OldStatus:   oldStatus,
		NewStatus:   ticket.Status,
		Comment:     strings.TrimSpace(comment),
		RequesterID: ticket.Requester.ID,
		AssigneeID:  assigneeID(ticket),
	})
	s.publishSLAAlerts(ctx, ticket, outcome)
	return ticket, nil
}

// Assign hands a ticket to a staff member, optionally tagging a team.
// A ticket still in new advances to assigned as part of the same commit.
func (s *LifecycleService) Assign(ctx context.Context, actor *domain.User, ticketID, assigneeUserID string, teamID *string) (*domain.Ticket, error) {
	if !visibility.CanAssign(actor) {
		return nil, apperrors.NewForbidden("only managers may assign tickets")
	}
	assignee, err := s.users.GetByID(ctx, assigneeUserID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !assignee.Active || !assignee.Role.IsStaff() {
		return nil, apperrors.NewValidationError("assignee must be an active staff member", map[string]any{"user_id": assigneeUserID})
	}
	var team *domain.Team
	if teamID != nil {
		team, err = s.teams.GetByID(ctx, *teamID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	var (
		oldStatus domain.TicketStatus
		advanced  bool
	)
	ticket, err := s.tickets.Mutate(ctx, ticketID, func(t *domain.Ticket) ([]domain.TicketHistoryEntry, error) {
		snapshot := domain.SnapshotOf(assignee)
		t.Assignee = &snapshot
		if team != nil {
			t.Team = &domain.Identity{ID: team.ID, Name: team.Name}
		}
		if t.Status != domain.TicketStatusNew {
			return nil, nil
		}
		oldStatus = t.Status
		advanced = true
		now := time.Now()
		t.Status = domain.TicketStatusAssigned
		entry := domain.TicketHistoryEntry{
			TicketID:   t.ID,
			FromStatus: oldStatus,
			ToStatus:   t.Status,
			Actor:      domain.SnapshotOf(actor),
			CreatedAt:  now,
		}
		return []domain.TicketHistoryEntry{entry}, nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncCounter("tickets_assigned")
	s.publish(ctx, events.EventTicketAssigned, ticket.ID, actor, events.TicketAssignedPayload{
		Title:      ticket.Title,
		Priority:   ticket.Priority,
		AssigneeID: assignee.ID,
		TeamID:     teamID,
	})
	if advanced {
		s.metrics.IncCounter("ticket_transitions")
		s.publish(ctx, events.EventTicketStatusChanged, ticket.ID, actor, events.TicketStatusChangedPayload{
			Title:       ticket.Title,
			OldStatus:   oldStatus,
			NewStatus:   ticket.Status,
			RequesterID: ticket.Requester.ID,
			AssigneeID:  assigneeID(ticket),
		})
	}
	return ticket, nil
}

// AddComment appends a comment to a ticket.
func (s *LifecycleService) AddComment(ctx context.Context, actor *domain.User, ticketID, content string, isInternal bool) (*domain.TicketComment, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil, apperrors.NewValidationError("comment content is required", nil)
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !visibility.CanComment(actor, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	if isInternal && !visibility.CanCommentInternally(actor) {
		return nil, apperrors.NewForbidden("internal comments are staff-only")
	}

	comment := &domain.TicketComment{
		TicketID:   ticket.ID,
		Content:    trimmed,
		IsInternal: isInternal,
		Author:     domain.SnapshotOf(actor),
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, err
	}
	s.publish(ctx, events.EventTicketCommentAdded, ticket.ID, actor, events.TicketCommentAddedPayload{
		Title:       ticket.Title,
		CommentID:   comment.ID,
		IsInternal:  comment.IsInternal,
		Preview:     stringPreview(comment.Content, 120),
		RequesterID: ticket.Requester.ID,
		AssigneeID:  assigneeID(ticket),
	})
	return comment, nil
}

// RecordSatisfaction stores the requester's rating. Allowed only on
// resolved or closed tickets; a repeat rating overwrites the previous one.
func (s *LifecycleService) RecordSatisfaction(ctx context.Context, actor *domain.User, ticketID string, rating int, comment *string) (*domain.Ticket, error) {
	if rating < 1 || rating > 5 {
		return nil, apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{"rating": rating})
	}
	return s.tickets.Mutate(ctx, ticketID, func(t *domain.Ticket) ([]domain.TicketHistoryEntry, error) {
		if !visibility.CanRate(actor, t) {
			return nil, apperrors.NewForbidden("only the requester may rate a ticket")
		}
		if t.Status.Open() {
			return nil, apperrors.NewValidationError("ticket must be resolved or closed before rating", map[string]any{"status": t.Status})
		}
		t.SatisfactionRating = &rating
		if comment != nil {
			trimmed := strings.TrimSpace(*comment)
			t.SatisfactionComment = &trimmed
		}
		return nil, nil
	})
}

// UpdateDetailsInput carries optional field updates; nil means unchanged.
type UpdateDetailsInput struct {
	Title       *string
	Description *string
	Priority    *domain.TicketPriority
	CategoryID  *string
}

// UpdateDetails lets staff correct ticket fields. Deadlines are fixed at
// creation and a priority change does not recompute them.
func (s *LifecycleService) UpdateDetails(ctx context.Context, actor *domain.User, ticketID string, input UpdateDetailsInput) (*domain.Ticket, error) {
	if !visibility.CanEditDetails(actor) {
		return nil, apperrors.NewForbidden("only staff may edit ticket fields")
	}
	if input.Priority != nil && !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
	}
	if input.CategoryID != nil {
		if _, err := s.categories.GetByID(ctx, *input.CategoryID); err != nil {
			return nil, apperrors.MapError(err)
		}
	}
	return s.tickets.Mutate(ctx, ticketID, func(t *domain.Ticket) ([]domain.TicketHistoryEntry, error) {
		if input.Title != nil {
			title := strings.TrimSpace(*input.Title)
			if title == "" {
				return nil, apperrors.NewValidationError("title cannot be empty", nil)
			}
			t.Title = title
		}
		if input.Description != nil {
			t.Description = strings.TrimSpace(*input.Description)
		}
		if input.Priority != nil {
			t.Priority = *input.Priority
		}
		if input.CategoryID != nil {
			t.CategoryID = *input.CategoryID
		}
		return nil, nil
	})
}

func (s *LifecycleService) publish(ctx context.Context, eventType events.EventType, ticketID string, actor *domain.User, payload interface{}) {
	var identity *domain.Identity
	if actor != nil {
		snapshot := domain.SnapshotOf(actor)
		identity = &snapshot
	}
	_ = s.dispatcher.Publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     identity,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}

func (s *LifecycleService) publishSLAAlerts(ctx context.Context, ticket *domain.Ticket, outcome sla.Outcome) {
	if ticket.ResolutionDeadline == nil {
		return
	}
	payload := events.SLAAlertPayload{
		Title:      ticket.Title,
		Priority:   ticket.Priority,
		Status:     ticket.Status,
		AssigneeID: assigneeID(ticket),
		Deadline:   *ticket.ResolutionDeadline,
	}
	if outcome.WarningCrossed {
		s.metrics.IncCounter("sla_warnings")
		s.publish(ctx, events.EventSLAWarning, ticket.ID, nil, payload)
	}
	if outcome.BreachCrossed {
		s.metrics.IncCounter("sla_breaches")
		s.publish(ctx, events.EventSLABreached, ticket.ID, nil, payload)
	}
}

func assigneeID(t *domain.Ticket) *string {
	if t.Assignee == nil {
		return nil
	}
	id := t.Assignee.ID
	return &id
}

func stringPreview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Truncate on a rune boundary so multi-byte content stays valid.
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
