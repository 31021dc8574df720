// Package notify consumes lifecycle events and fans them out to the
// computed recipients, honoring per-user preferences. In-app rows and
// outbound email are delivered independently per recipient; an email
// failure never blocks in-app delivery or the triggering request.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/repository"
)

// Dispatcher subscribes to lifecycle events and delivers notifications.
type Dispatcher struct {
	users       repository.UserRepository
	prefs       repository.PreferenceRepository
	store       repository.NotificationRepository
	sender      EmailSender
	metrics     *observability.Metrics
	logger      *zap.Logger
	sendTimeout time.Duration
}

// Dependencies bundles collaborators for the dispatcher.
type Dependencies struct {
	UserRepo         repository.UserRepository
	PreferenceRepo   repository.PreferenceRepository
	NotificationRepo repository.NotificationRepository
	Sender           EmailSender
	Metrics          *observability.Metrics
	Logger           *zap.Logger
	SendTimeout      time.Duration
}

// NewDispatcher creates the dispatcher.
func NewDispatcher(deps Dependencies) *Dispatcher {
	timeout := deps.SendTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{
		users:       deps.UserRepo,
		prefs:       deps.PreferenceRepo,
		store:       deps.NotificationRepo,
		sender:      deps.Sender,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
		sendTimeout: timeout,
	}
}

// RegisterHandlers subscribes to all lifecycle event types.
func (d *Dispatcher) RegisterHandlers(bus events.Dispatcher) {
	bus.Subscribe(events.EventTicketCreated, d.handleTicketCreated)
	bus.Subscribe(events.EventTicketAssigned, d.handleTicketAssigned)
	bus.Subscribe(events.EventTicketStatusChanged, d.handleStatusChanged)
	bus.Subscribe(events.EventTicketCommentAdded, d.handleCommentAdded)
	bus.Subscribe(events.EventSLAWarning, d.handleSLAAlert)
	bus.Subscribe(events.EventSLABreached, d.handleSLAAlert)
}

func (d *Dispatcher) handleTicketCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCreatedPayload)
	if !ok {
		return nil
	}
	// Every active staff account hears about new tickets, except the
	// creator themselves.
	staff, err := d.users.ListActiveStaff(ctx)
	if err != nil {
		d.logger.Error("notify: listing staff failed", zap.Error(err))
		return err
	}
	d.fanOut(ctx, event, domain.NotificationTicketCreated,
		fmt.Sprintf("New Ticket: %s", payload.Title),
		fmt.Sprintf("A new %s priority ticket has been created: %s", payload.Priority, payload.Title),
		staff)
	return nil
}

func (d *Dispatcher) handleTicketAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketAssignedPayload)
	if !ok {
		return nil
	}
	recipients := d.collectUsers(ctx, payload.AssigneeID)
	d.fanOut(ctx, event, domain.NotificationTicketAssigned,
		fmt.Sprintf("Ticket Assigned: %s", payload.Title),
		fmt.Sprintf("You have been assigned to ticket: %s (priority %s)", payload.Title, payload.Priority),
		recipients)
	return nil
}

func (d *Dispatcher) handleStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return nil
	}
	ids := []string{payload.RequesterID}
	if payload.AssigneeID != nil {
		ids = append(ids, *payload.AssigneeID)
	}
	recipients := d.collectUsers(ctx, ids...)
	d.fanOut(ctx, event, domain.NotificationTicketStatusChanged,
		fmt.Sprintf("Ticket Status Updated: %s", payload.Title),
		fmt.Sprintf("Ticket %q moved from %s to %s.", payload.Title, payload.OldStatus, payload.NewStatus),
		recipients)
	return nil
}

func (d *Dispatcher) handleCommentAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketCommentAddedPayload)
	if !ok {
		return nil
	}
	// Internal comments stay inside the staff side of the house: the
	// requester is never a target, only the assignee.
	var ids []string
	if payload.IsInternal {
		if payload.AssigneeID != nil {
			ids = append(ids, *payload.AssigneeID)
		}
	} else {
		ids = append(ids, payload.RequesterID)
		if payload.AssigneeID != nil {
			ids = append(ids, *payload.AssigneeID)
		}
	}
	recipients := d.collectUsers(ctx, ids...)
	d.fanOut(ctx, event, domain.NotificationTicketComment,
		fmt.Sprintf("New Comment on: %s", payload.Title),
		fmt.Sprintf("A new comment was added to ticket %q:\n\n%s", payload.Title, payload.Preview),
		recipients)
	return nil
}

func (d *Dispatcher) handleSLAAlert(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.SLAAlertPayload)
	if !ok {
		return nil
	}
	var recipients []domain.User
	if payload.AssigneeID != nil {
		recipients = d.collectUsers(ctx, *payload.AssigneeID)
	}
	managers, err := d.users.ListActiveManagers(ctx)
	if err != nil {
		d.logger.Error("notify: listing managers failed", zap.Error(err))
	} else {
		recipients = append(recipients, managers...)
	}

	ntype := domain.NotificationSLAWarning
	title := fmt.Sprintf("SLA Warning: %s", payload.Title)
	message := fmt.Sprintf("Ticket %q (priority %s) is at risk of missing its resolution deadline %s.",
		payload.Title, payload.Priority, payload.Deadline.Format(time.RFC3339))
	if event.Type == events.EventSLABreached {
		ntype = domain.NotificationSLABreached
		title = fmt.Sprintf("SLA BREACHED: %s", payload.Title)
		message = fmt.Sprintf("Ticket %q (priority %s) missed its resolution deadline %s.",
			payload.Title, payload.Priority, payload.Deadline.Format(time.RFC3339))
	}
	d.fanOut(ctx, event, ntype, title, message, recipients)
	return nil
}

// collectUsers resolves user ids to accounts, skipping unknown ids.
// Requesters without accounts appear on tickets only as snapshots and
// simply receive nothing.
func (d *Dispatcher) collectUsers(ctx context.Context, ids ...string) []domain.User {
	var result []domain.User
	for _, id := range ids {
		if id == "" {
			continue
		}
		user, err := d.users.GetByID(ctx, id)
		if err != nil {
			if !errors.Is(err, pgx.ErrNoRows) {
				d.logger.Error("notify: user lookup failed", zap.String("user_id", id), zap.Error(err))
			}
			continue
		}
		result = append(result, *user)
	}
	return result
}

// fanOut delivers one event to each unique recipient. Recipients are
// processed in parallel with no ordering guarantee between them, but
// fanOut does not return until every delivery attempt has finished.
func (d *Dispatcher) fanOut(ctx context.Context, event events.Event, ntype domain.NotificationType, title, message string, recipients []domain.User) {
	seen := make(map[string]struct{}, len(recipients))
	var wg sync.WaitGroup
	for i := range recipients {
		recipient := recipients[i]
		// De-duplicate: a user reachable through two rules (assignee who
		// is also a manager) gets exactly one notification per event.
		if _, dup := seen[recipient.ID]; dup {
			continue
		}
		seen[recipient.ID] = struct{}{}
		// An actor never hears about their own action.
		if event.Actor != nil && event.Actor.ID == recipient.ID {
			continue
		}
		if !recipient.Active {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.deliver(ctx, event, ntype, title, message, recipient)
		}()
	}
	wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, event events.Event, ntype domain.NotificationType, title, message string, recipient domain.User) {
	pref, err := d.prefs.GetOrCreate(ctx, recipient.ID)
	if err != nil {
		d.logger.Error("notify: loading preferences failed",
			zap.String("user_id", recipient.ID), zap.Error(err))
		defaults := domain.DefaultPreferences(recipient.ID)
		pref = &defaults
	}

	var notification *domain.Notification
	if pref.InAppEnabled(ntype) {
		related := "ticket"
		notification = &domain.Notification{
			RecipientID: recipient.ID,
			Type:        ntype,
			Title:       title,
			Message:     message,
			RelatedType: &related,
			RelatedID:   &event.TicketID,
		}
		if err := d.store.Create(ctx, notification); err != nil {
			d.logger.Error("notify: creating notification failed",
				zap.String("user_id", recipient.ID), zap.Error(err))
			notification = nil
		} else {
			d.metrics.IncCounter("notifications_created")
		}
	}

	if pref.EmailEnabled(ntype) && d.sender != nil && recipient.Email != "" {
		sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
		defer cancel()
		if err := d.sender.Send(sendCtx, recipient.Email, "[Helpdesk] "+title, message); err != nil {
			// Best-effort: log and move on, the in-app row (if any)
			// keeps emailSent=false.
			d.metrics.IncCounter("emails_failed")
			d.logger.Warn("notify: email delivery failed",
				zap.String("to", recipient.Email),
				zap.String("type", string(ntype)),
				zap.Error(err))
			return
		}
		d.metrics.IncCounter("emails_sent")
		if notification != nil {
			if err := d.store.SetEmailSent(ctx, notification.ID, time.Now()); err != nil {
				d.logger.Warn("notify: recording email delivery failed", zap.Error(err))
			}
		}
	}
}
