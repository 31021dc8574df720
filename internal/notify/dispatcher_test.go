package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
)

type memUserRepo struct {
	users map[string]*domain.User
}

func (m *memUserRepo) Create(_ context.Context, user *domain.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := m.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	for _, user := range m.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memUserRepo) ListActiveStaff(_ context.Context) ([]domain.User, error) {
	var result []domain.User
	for _, user := range m.users {
		if user.Active && user.Role.IsStaff() {
			result = append(result, *user)
		}
	}
	return result, nil
}

func (m *memUserRepo) ListActiveManagers(_ context.Context) ([]domain.User, error) {
	var result []domain.User
	for _, user := range m.users {
		if user.Active && user.Role.CanAssign() {
			result = append(result, *user)
		}
	}
	return result, nil
}

type memPrefRepo struct {
	mu    sync.Mutex
	prefs map[string]domain.NotificationPreference
}

func (m *memPrefRepo) GetOrCreate(_ context.Context, userID string) (*domain.NotificationPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pref, ok := m.prefs[userID]; ok {
		return &pref, nil
	}
	pref := domain.DefaultPreferences(userID)
	m.prefs[userID] = pref
	return &pref, nil
}

func (m *memPrefRepo) Update(_ context.Context, pref *domain.NotificationPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefs[pref.UserID] = *pref
	return nil
}

type memNotificationRepo struct {
	mu      sync.Mutex
	rows    []domain.Notification
	emailed map[string]bool
	nextID  int
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{emailed: map[string]bool{}}
}

func (m *memNotificationRepo) Create(_ context.Context, n *domain.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	n.ID = fmt.Sprintf("n-%d", m.nextID)
	n.CreatedAt = time.Now()
	m.rows = append(m.rows, *n)
	return nil
}

func (m *memNotificationRepo) ListByRecipient(_ context.Context, recipientID string, _ repository.NotificationFilter) ([]domain.Notification, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.Notification
	for _, row := range m.rows {
		if row.RecipientID == recipientID {
			result = append(result, row)
		}
	}
	return result, len(result), nil
}

func (m *memNotificationRepo) UnreadCount(_ context.Context, recipientID string) (int, error) {
	return 0, nil
}

func (m *memNotificationRepo) MarkRead(_ context.Context, _, _ string, _ time.Time) error {
	return nil
}

func (m *memNotificationRepo) MarkAllRead(_ context.Context, _ string, _ time.Time) error {
	return nil
}

func (m *memNotificationRepo) DeleteRead(_ context.Context, _ string) (int, error) {
	return 0, nil
}

func (m *memNotificationRepo) SetEmailSent(_ context.Context, id string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emailed[id] = true
	return nil
}

func (m *memNotificationRepo) forRecipient(recipientID string) []domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.Notification
	for _, row := range m.rows {
		if row.RecipientID == recipientID {
			result = append(result, row)
		}
	}
	return result
}

type recordingSender struct {
	mu   sync.Mutex
	to   []string
	fail bool
}

func (r *recordingSender) Send(_ context.Context, to, _, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("smtp unavailable")
	}
	r.to = append(r.to, to)
	return nil
}

func (r *recordingSender) recipients() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.to...)
}

type notifyFixture struct {
	dispatcher *Dispatcher
	users      *memUserRepo
	prefs      *memPrefRepo
	store      *memNotificationRepo
	sender     *recordingSender
}

func newNotifyFixture() *notifyFixture {
	f := &notifyFixture{
		users:  &memUserRepo{users: map[string]*domain.User{}},
		prefs:  &memPrefRepo{prefs: map[string]domain.NotificationPreference{}},
		store:  newMemNotificationRepo(),
		sender: &recordingSender{},
	}
	f.addUser("u1", "rita@example.com", domain.RoleEndUser)
	f.addUser("s1", "sam@example.com", domain.RoleSupportStaff)
	f.addUser("s2", "kim@example.com", domain.RoleSupportStaff)
	f.addUser("m1", "mo@example.com", domain.RoleManager)
	// Disabled staff account; must never be a recipient.
	f.addUser("s3", "lee@example.com", domain.RoleSupportStaff)
	f.users.users["s3"].Active = false

	f.dispatcher = NewDispatcher(Dependencies{
		UserRepo:         f.users,
		PreferenceRepo:   f.prefs,
		NotificationRepo: f.store,
		Sender:           f.sender,
		Metrics:          observability.NewMetrics(),
		Logger:           zap.NewNop(),
		SendTimeout:      time.Second,
	})
	return f
}

func (f *notifyFixture) addUser(id, email string, role domain.Role) {
	f.users.users[id] = &domain.User{ID: id, Name: id, Email: email, Role: role, Active: true}
}

func actor(id string) *domain.Identity {
	return &domain.Identity{ID: id, Name: id}
}

func TestTicketCreatedNotifiesStaffExceptActor(t *testing.T) {
	f := newNotifyFixture()

	err := f.dispatcher.handleTicketCreated(context.Background(), events.Event{
		Type:     events.EventTicketCreated,
		TicketID: "t1",
		Actor:    actor("s1"),
		Payload: events.TicketCreatedPayload{
			Title:       "Printer on fire",
			Priority:    domain.TicketPriorityHigh,
			RequesterID: "u1",
		},
	})
	require.NoError(t, err)

	// s1 created the ticket; s2 and m1 hear about it. The requester, the
	// actor and the inactive s3 account do not.
	assert.Empty(t, f.store.forRecipient("s1"))
	assert.Empty(t, f.store.forRecipient("u1"))
	assert.Empty(t, f.store.forRecipient("s3"))
	assert.Len(t, f.store.forRecipient("s2"), 1)
	assert.Len(t, f.store.forRecipient("m1"), 1)

	row := f.store.forRecipient("s2")[0]
	assert.Equal(t, domain.NotificationTicketCreated, row.Type)
	require.NotNil(t, row.RelatedID)
	assert.Equal(t, "t1", *row.RelatedID)
	assert.ElementsMatch(t, []string{"kim@example.com", "mo@example.com"}, f.sender.recipients())
}

func TestStatusChangedNotifiesRequesterAndAssignee(t *testing.T) {
	f := newNotifyFixture()
	assignee := "s1"

	err := f.dispatcher.handleStatusChanged(context.Background(), events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: "t1",
		Actor:    actor("s1"),
		Payload: events.TicketStatusChangedPayload{
			Title:       "Printer on fire",
			OldStatus:   domain.TicketStatusNew,
			NewStatus:   domain.TicketStatusInProgress,
			RequesterID: "u1",
			AssigneeID:  &assignee,
		},
	})
	require.NoError(t, err)

	// The acting assignee is suppressed; only the requester is left.
	assert.Len(t, f.store.forRecipient("u1"), 1)
	assert.Empty(t, f.store.forRecipient("s1"))
}

func TestSnapshotOnlyRequesterIsSkipped(t *testing.T) {
	f := newNotifyFixture()

	err := f.dispatcher.handleStatusChanged(context.Background(), events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: "t1",
		Actor:    actor("s1"),
		Payload: events.TicketStatusChangedPayload{
			Title:       "Phone-in issue",
			OldStatus:   domain.TicketStatusNew,
			NewStatus:   domain.TicketStatusInProgress,
			RequesterID: "",
		},
	})
	require.NoError(t, err)
	assert.Empty(t, f.store.rows)
}

func TestInternalCommentReachesAssigneeOnly(t *testing.T) {
	f := newNotifyFixture()
	assignee := "s2"

	err := f.dispatcher.handleCommentAdded(context.Background(), events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: "t1",
		Actor:    actor("s1"),
		Payload: events.TicketCommentAddedPayload{
			Title:       "Printer on fire",
			IsInternal:  true,
			Preview:     "checking the logs",
			RequesterID: "u1",
			AssigneeID:  &assignee,
		},
	})
	require.NoError(t, err)

	assert.Len(t, f.store.forRecipient("s2"), 1)
	assert.Empty(t, f.store.forRecipient("u1"))
}

func TestSLAAlertDeduplicatesAssigneeManager(t *testing.T) {
	f := newNotifyFixture()
	assignee := "m1"

	err := f.dispatcher.handleSLAAlert(context.Background(), events.Event{
		Type:     events.EventSLABreached,
		TicketID: "t1",
		Payload: events.SLAAlertPayload{
			Title:      "Printer on fire",
			Priority:   domain.TicketPriorityUrgent,
			Status:     domain.TicketStatusInProgress,
			AssigneeID: &assignee,
			Deadline:   time.Now(),
		},
	})
	require.NoError(t, err)

	// m1 qualifies as both assignee and manager but gets one row.
	rows := f.store.forRecipient("m1")
	require.Len(t, rows, 1)
	assert.Equal(t, domain.NotificationSLABreached, rows[0].Type)
}

func TestInactiveAssigneeReceivesNothing(t *testing.T) {
	f := newNotifyFixture()
	assignee := "s3"

	err := f.dispatcher.handleSLAAlert(context.Background(), events.Event{
		Type:     events.EventSLAWarning,
		TicketID: "t1",
		Payload: events.SLAAlertPayload{
			Title:      "Printer on fire",
			Priority:   domain.TicketPriorityHigh,
			Status:     domain.TicketStatusInProgress,
			AssigneeID: &assignee,
			Deadline:   time.Now(),
		},
	})
	require.NoError(t, err)

	// The assignee resolves but is disabled; managers still hear about it.
	assert.Empty(t, f.store.forRecipient("s3"))
	assert.Len(t, f.store.forRecipient("m1"), 1)
	assert.NotContains(t, f.sender.recipients(), "lee@example.com")
}

func TestPreferencesGateDelivery(t *testing.T) {
	f := newNotifyFixture()
	pref := domain.DefaultPreferences("s2")
	pref.InAppTicketCreated = false
	require.NoError(t, f.prefs.Update(context.Background(), &pref))

	err := f.dispatcher.handleTicketCreated(context.Background(), events.Event{
		Type:     events.EventTicketCreated,
		TicketID: "t1",
		Actor:    actor("s1"),
		Payload:  events.TicketCreatedPayload{Title: "x", Priority: domain.TicketPriorityLow},
	})
	require.NoError(t, err)

	// No in-app row for s2, but email still goes out.
	assert.Empty(t, f.store.forRecipient("s2"))
	assert.Contains(t, f.sender.recipients(), "kim@example.com")
}

func TestEmailFailureKeepsInAppDelivery(t *testing.T) {
	f := newNotifyFixture()
	f.sender.fail = true

	err := f.dispatcher.handleTicketCreated(context.Background(), events.Event{
		Type:     events.EventTicketCreated,
		TicketID: "t1",
		Actor:    actor("s1"),
		Payload:  events.TicketCreatedPayload{Title: "x", Priority: domain.TicketPriorityLow},
	})
	require.NoError(t, err)

	rows := f.store.forRecipient("s2")
	require.Len(t, rows, 1)
	assert.False(t, f.store.emailed[rows[0].ID])
}

func TestEmailSuccessFlagsNotification(t *testing.T) {
	f := newNotifyFixture()

	err := f.dispatcher.handleTicketCreated(context.Background(), events.Event{
		Type:     events.EventTicketCreated,
		TicketID: "t1",
		Actor:    actor("s1"),
		Payload:  events.TicketCreatedPayload{Title: "x", Priority: domain.TicketPriorityLow},
	})
	require.NoError(t, err)

	rows := f.store.forRecipient("s2")
	require.Len(t, rows, 1)
	assert.True(t, f.store.emailed[rows[0].ID])
}
