package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/sla"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// In-memory doubles mirroring the repository contracts, including the
// mutate-or-rollback discipline of the ticket store.

type fakeTicketRepo struct {
	tickets map[string]*domain.Ticket
	history map[string][]domain.TicketHistoryEntry
	nextID  int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{
		tickets: map[string]*domain.Ticket{},
		history: map[string][]domain.TicketHistoryEntry{},
	}
}

func (f *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	f.nextID++
	ticket.ID = fmt.Sprintf("ticket-%d", f.nextID)
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
	}
	ticket.UpdatedAt = ticket.CreatedAt
	clone := *ticket
	f.tickets[ticket.ID] = &clone
	return nil
}

func (f *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	stored, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeTicketRepo) List(_ context.Context, _ repository.TicketFilter) ([]domain.Ticket, int, error) {
	var result []domain.Ticket
	for _, t := range f.tickets {
		result = append(result, *t)
	}
	return result, len(result), nil
}

func (f *fakeTicketRepo) Mutate(_ context.Context, id string, fn repository.MutateFunc) (*domain.Ticket, error) {
	stored, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	entries, err := fn(&clone)
	if err != nil {
		// Rollback: stored ticket untouched.
		return nil, err
	}
	clone.UpdatedAt = time.Now()
	f.tickets[id] = &clone
	for i := range entries {
		f.nextID++
		entries[i].ID = fmt.Sprintf("history-%d", f.nextID)
		f.history[id] = append(f.history[id], entries[i])
	}
	result := clone
	return &result, nil
}

func (f *fakeTicketRepo) ListSweepCandidates(_ context.Context, _ int) ([]string, error) {
	var ids []string
	for id, t := range f.tickets {
		if t.Status.Open() && t.ResolutionDeadline != nil && (!t.Breached || !t.SLAWarningSent) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeUserRepo struct {
	users map[string]*domain.User
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	f.users[user.ID] = user
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range f.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) ListActiveStaff(_ context.Context) ([]domain.User, error) {
	var result []domain.User
	for _, user := range f.users {
		if user.Active && user.Role.IsStaff() {
			result = append(result, *user)
		}
	}
	return result, nil
}

func (f *fakeUserRepo) ListActiveManagers(_ context.Context) ([]domain.User, error) {
	var result []domain.User
	for _, user := range f.users {
		if user.Active && user.Role.CanAssign() {
			result = append(result, *user)
		}
	}
	return result, nil
}

type fakeCategoryRepo struct {
	categories map[string]*domain.TicketCategory
}

func (f *fakeCategoryRepo) GetByID(_ context.Context, id string) (*domain.TicketCategory, error) {
	category, ok := f.categories[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return category, nil
}

func (f *fakeCategoryRepo) List(_ context.Context) ([]domain.TicketCategory, error) {
	var result []domain.TicketCategory
	for _, category := range f.categories {
		result = append(result, *category)
	}
	return result, nil
}

type fakeTeamRepo struct {
	teams map[string]*domain.Team
}

func (f *fakeTeamRepo) GetByID(_ context.Context, id string) (*domain.Team, error) {
	team, ok := f.teams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return team, nil
}

type fakeCommentRepo struct {
	comments []domain.TicketComment
	nextID   int
}

func (f *fakeCommentRepo) Create(_ context.Context, comment *domain.TicketComment) error {
	f.nextID++
	comment.ID = fmt.Sprintf("comment-%d", f.nextID)
	comment.CreatedAt = time.Now()
	f.comments = append(f.comments, *comment)
	return nil
}

func (f *fakeCommentRepo) ListByTicket(_ context.Context, ticketID string, includeInternal bool) ([]domain.TicketComment, error) {
	var result []domain.TicketComment
	for _, comment := range f.comments {
		if comment.TicketID != ticketID {
			continue
		}
		if comment.IsInternal && !includeInternal {
			continue
		}
		result = append(result, comment)
	}
	return result, nil
}

type stubPolicyRepo struct {
	policy *domain.SLAPolicy
}

func (s *stubPolicyRepo) GetActiveByPriority(context.Context, domain.TicketPriority) (*domain.SLAPolicy, error) {
	if s.policy == nil {
		return nil, pgx.ErrNoRows
	}
	return s.policy, nil
}

func (s *stubPolicyRepo) List(context.Context) ([]domain.SLAPolicy, error) {
	return nil, nil
}

type captureBus struct {
	published []events.Event
}

func (b *captureBus) Publish(_ context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}

func (b *captureBus) Subscribe(events.EventType, events.EventHandler) {}

func (b *captureBus) ofType(t events.EventType) []events.Event {
	var result []events.Event
	for _, e := range b.published {
		if e.Type == t {
			result = append(result, e)
		}
	}
	return result
}

type fixture struct {
	service  *LifecycleService
	tickets  *fakeTicketRepo
	users    *fakeUserRepo
	comments *fakeCommentRepo
	bus      *captureBus

	endUser *domain.User
	agent   *domain.User
	manager *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tickets := newFakeTicketRepo()
	comments := &fakeCommentRepo{}
	users := &fakeUserRepo{users: map[string]*domain.User{}}
	categories := &fakeCategoryRepo{categories: map[string]*domain.TicketCategory{
		"cat-1": {ID: "cat-1", Name: "Technical Issue"},
	}}
	teams := &fakeTeamRepo{teams: map[string]*domain.Team{
		"team-1": {ID: "team-1", Name: "Platform"},
	}}
	bus := &captureBus{}
	tracker := sla.NewTracker(&stubPolicyRepo{policy: &domain.SLAPolicy{
		Priority:       domain.TicketPriorityMedium,
		ResponseTime:   time.Hour,
		ResolutionTime: 4 * time.Hour,
	}}, 0.8, zap.NewNop())

	f := &fixture{
		tickets:  tickets,
		users:    users,
		comments: comments,
		bus:      bus,
		endUser:  &domain.User{ID: "u1", Name: "Rita", Email: "rita@example.com", Role: domain.RoleEndUser, Active: true},
		agent:    &domain.User{ID: "s1", Name: "Sam", Email: "sam@example.com", Role: domain.RoleSupportStaff, Active: true},
		manager:  &domain.User{ID: "m1", Name: "Mo", Email: "mo@example.com", Role: domain.RoleManager, Active: true},
	}
	for _, user := range []*domain.User{f.endUser, f.agent, f.manager} {
		users.users[user.ID] = user
	}

	f.service = NewLifecycleService(LifecycleDependencies{
		TicketRepo:   tickets,
		CommentRepo:  comments,
		CategoryRepo: categories,
		TeamRepo:     teams,
		UserRepo:     users,
		Tracker:      tracker,
		Dispatcher:   bus,
		Metrics:      observability.NewMetrics(),
	})
	return f
}

func (f *fixture) createTicket(t *testing.T) *domain.Ticket {
	t.Helper()
	ticket, err := f.service.CreateTicket(context.Background(), f.endUser, CreateTicketInput{
		Title:      "Printer on fire",
		CategoryID: "cat-1",
	})
	require.NoError(t, err)
	return ticket
}

func TestCreateTicket(t *testing.T) {
	f := newFixture(t)

	ticket, err := f.service.CreateTicket(context.Background(), f.endUser, CreateTicketInput{
		Title:       "  Printer on fire  ",
		Description: "smoke everywhere",
		CategoryID:  "cat-1",
	})
	require.NoError(t, err)

	assert.Equal(t, "Printer on fire", ticket.Title)
	assert.Equal(t, domain.TicketStatusNew, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Priority)
	assert.Equal(t, domain.ChannelWeb, ticket.Channel)
	assert.Equal(t, f.endUser.ID, ticket.Requester.ID)
	require.NotNil(t, ticket.ResolutionDeadline)
	assert.Equal(t, ticket.CreatedAt.Add(4*time.Hour), *ticket.ResolutionDeadline)

	created := f.bus.ofType(events.EventTicketCreated)
	require.Len(t, created, 1)
	assert.Equal(t, ticket.ID, created[0].TicketID)
	require.NotNil(t, created[0].Actor)
	assert.Equal(t, f.endUser.ID, created[0].Actor.ID)
}

func TestCreateTicketValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.CreateTicket(ctx, f.endUser, CreateTicketInput{CategoryID: "cat-1"})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	_, err = f.service.CreateTicket(ctx, f.endUser, CreateTicketInput{Title: "x", CategoryID: "missing"})
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))

	_, err = f.service.CreateTicket(ctx, f.endUser, CreateTicketInput{Title: "x", CategoryID: "cat-1", Priority: "extreme"})
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestCreateTicketOnBehalfOfCaller(t *testing.T) {
	f := newFixture(t)

	ticket, err := f.service.CreateTicket(context.Background(), f.agent, CreateTicketInput{
		Title:          "Phone-in issue",
		CategoryID:     "cat-1",
		Channel:        domain.ChannelPhone,
		RequesterName:  "Walk-in Caller",
		RequesterEmail: "caller@example.com",
	})
	require.NoError(t, err)
	assert.Empty(t, ticket.Requester.ID)
	assert.Equal(t, "Walk-in Caller", ticket.Requester.Name)
	assert.Equal(t, "caller@example.com", ticket.Requester.Email)
}

func TestTransitionForbiddenForEndUser(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)

	_, err := f.service.Transition(context.Background(), f.endUser, ticket.ID, domain.TicketStatusResolved, "")
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))
}

func TestTransitionSameStateRejectedWithoutWrite(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)

	_, err := f.service.Transition(context.Background(), f.agent, ticket.ID, domain.TicketStatusNew, "")
	assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))

	stored, getErr := f.tickets.GetByID(context.Background(), ticket.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.TicketStatusNew, stored.Status)
	assert.Empty(t, f.tickets.history[ticket.ID])
	assert.Empty(t, f.bus.ofType(events.EventTicketStatusChanged))
}

func TestTransitionRecordsHistoryAndTimestamps(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)
	ctx := context.Background()

	updated, err := f.service.Transition(ctx, f.agent, ticket.ID, domain.TicketStatusResolved, "fixed")
	require.NoError(t, err)
	require.NotNil(t, updated.ResolvedAt)
	firstResolved := *updated.ResolvedAt

	// Reopen: resolution timestamp survives, closed stays nil.
	updated, err = f.service.Transition(ctx, f.agent, ticket.ID, domain.TicketStatusInProgress, "reopened")
	require.NoError(t, err)
	require.NotNil(t, updated.ResolvedAt)
	assert.Equal(t, firstResolved, *updated.ResolvedAt)
	assert.Nil(t, updated.ClosedAt)

	// Resolve again: the original timestamp is never overwritten.
	updated, err = f.service.Transition(ctx, f.agent, ticket.ID, domain.TicketStatusResolved, "")
	require.NoError(t, err)
	assert.Equal(t, firstResolved, *updated.ResolvedAt)

	updated, err = f.service.Transition(ctx, f.agent, ticket.ID, domain.TicketStatusClosed, "")
	require.NoError(t, err)
	assert.NotNil(t, updated.ClosedAt)

	history := f.tickets.history[ticket.ID]
	require.Len(t, history, 4)
	assert.Equal(t, domain.TicketStatusNew, history[0].FromStatus)
	assert.Equal(t, domain.TicketStatusResolved, history[0].ToStatus)
	require.NotNil(t, history[0].Comment)
	assert.Equal(t, "fixed", *history[0].Comment)
	assert.Equal(t, f.agent.ID, history[0].Actor.ID)

	assert.Len(t, f.bus.ofType(events.EventTicketStatusChanged), 4)
}

func TestTransitionPastDeadlineFlagsBreach(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)

	// Backdate the stored deadline so the transition happens late.
	past := time.Now().Add(-time.Hour)
	f.tickets.tickets[ticket.ID].ResolutionDeadline = &past

	updated, err := f.service.Transition(context.Background(), f.agent, ticket.ID, domain.TicketStatusResolved, "")
	require.NoError(t, err)
	assert.True(t, updated.Breached)
	require.Len(t, f.bus.ofType(events.EventSLABreached), 1)
	// System-originated: no actor on alert events.
	assert.Nil(t, f.bus.ofType(events.EventSLABreached)[0].Actor)
}

func TestAssign(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)
	ctx := context.Background()
	teamID := "team-1"

	_, err := f.service.Assign(ctx, f.agent, ticket.ID, f.agent.ID, nil)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	_, err = f.service.Assign(ctx, f.manager, ticket.ID, f.endUser.ID, nil)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	updated, err := f.service.Assign(ctx, f.manager, ticket.ID, f.agent.ID, &teamID)
	require.NoError(t, err)
	require.NotNil(t, updated.Assignee)
	assert.Equal(t, f.agent.ID, updated.Assignee.ID)
	require.NotNil(t, updated.Team)
	assert.Equal(t, "Platform", updated.Team.Name)

	// First assignment advances a fresh ticket.
	assert.Equal(t, domain.TicketStatusAssigned, updated.Status)
	require.Len(t, f.tickets.history[ticket.ID], 1)
	assert.Len(t, f.bus.ofType(events.EventTicketAssigned), 1)
	assert.Len(t, f.bus.ofType(events.EventTicketStatusChanged), 1)

	// Reassignment of a non-new ticket changes no status.
	_, err = f.service.Transition(ctx, f.agent, ticket.ID, domain.TicketStatusInProgress, "")
	require.NoError(t, err)
	updated, err = f.service.Assign(ctx, f.manager, ticket.ID, f.manager.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
	assert.Len(t, f.bus.ofType(events.EventTicketAssigned), 2)
}

func TestAddComment(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)
	ctx := context.Background()

	_, err := f.service.AddComment(ctx, f.endUser, ticket.ID, "any update?", true)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	stranger := &domain.User{ID: "u2", Role: domain.RoleEndUser, Active: true}
	_, err = f.service.AddComment(ctx, stranger, ticket.ID, "let me in", false)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	_, err = f.service.AddComment(ctx, f.endUser, ticket.ID, "   ", false)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	comment, err := f.service.AddComment(ctx, f.agent, ticket.ID, "checking the logs", true)
	require.NoError(t, err)
	assert.True(t, comment.IsInternal)
	assert.Equal(t, f.agent.ID, comment.Author.ID)

	published := f.bus.ofType(events.EventTicketCommentAdded)
	require.Len(t, published, 1)
	payload, ok := published[0].Payload.(events.TicketCommentAddedPayload)
	require.True(t, ok)
	assert.True(t, payload.IsInternal)
}

func TestCommentPreviewKeepsRunesIntact(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)
	ctx := context.Background()

	long := strings.Repeat("ü", 150)
	_, err := f.service.AddComment(ctx, f.agent, ticket.ID, long, false)
	require.NoError(t, err)

	published := f.bus.ofType(events.EventTicketCommentAdded)
	require.Len(t, published, 1)
	payload, ok := published[0].Payload.(events.TicketCommentAddedPayload)
	require.True(t, ok)
	assert.True(t, utf8.ValidString(payload.Preview))
	assert.Equal(t, strings.Repeat("ü", 120)+"…", payload.Preview)
}

func TestRecordSatisfaction(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)
	ctx := context.Background()

	_, err := f.service.RecordSatisfaction(ctx, f.endUser, ticket.ID, 0, nil)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	// Still open.
	_, err = f.service.RecordSatisfaction(ctx, f.endUser, ticket.ID, 4, nil)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))

	_, err = f.service.Transition(ctx, f.agent, ticket.ID, domain.TicketStatusResolved, "")
	require.NoError(t, err)

	_, err = f.service.RecordSatisfaction(ctx, f.agent, ticket.ID, 4, nil)
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	note := "great turnaround"
	updated, err := f.service.RecordSatisfaction(ctx, f.endUser, ticket.ID, 4, &note)
	require.NoError(t, err)
	require.NotNil(t, updated.SatisfactionRating)
	assert.Equal(t, 4, *updated.SatisfactionRating)

	// Last write wins.
	updated, err = f.service.RecordSatisfaction(ctx, f.endUser, ticket.ID, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, *updated.SatisfactionRating)
	require.NotNil(t, updated.SatisfactionComment)
	assert.Equal(t, note, *updated.SatisfactionComment)
}

func TestUpdateDetails(t *testing.T) {
	f := newFixture(t)
	ticket := f.createTicket(t)
	ctx := context.Background()

	_, err := f.service.UpdateDetails(ctx, f.endUser, ticket.ID, UpdateDetailsInput{})
	assert.True(t, apperrors.IsCode(err, "FORBIDDEN"))

	title := "Printer smoke cleared"
	priority := domain.TicketPriorityHigh
	updated, err := f.service.UpdateDetails(ctx, f.agent, ticket.ID, UpdateDetailsInput{
		Title:    &title,
		Priority: &priority,
	})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, priority, updated.Priority)
	// Deadlines are fixed at creation.
	assert.Equal(t, ticket.ResolutionDeadline, updated.ResolutionDeadline)
}
