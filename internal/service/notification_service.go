package service

import (
	"context"
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// NotificationService serves a user's in-app inbox and delivery
// preferences. All operations are scoped to the calling user; there is
// no cross-user access.
type NotificationService struct {
	notifications repository.NotificationRepository
	preferences   repository.PreferenceRepository
}

// NewNotificationService constructs the service.
func NewNotificationService(notifications repository.NotificationRepository, preferences repository.PreferenceRepository) *NotificationService {
	return &NotificationService{notifications: notifications, preferences: preferences}
}

// Inbox is one page of notifications with counters.
type Inbox struct {
	Notifications []domain.Notification
	Total         int
	UnreadCount   int
}

// List returns a page of the user's notifications plus totals.
func (s *NotificationService) List(ctx context.Context, userID string, filter repository.NotificationFilter) (*Inbox, error) {
	items, total, err := s.notifications.ListByRecipient(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	unread, err := s.notifications.UnreadCount(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Inbox{Notifications: items, Total: total, UnreadCount: unread}, nil
}

// MarkRead marks one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	if err := s.notifications.MarkRead(ctx, userID, notificationID, time.Now()); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

// MarkAllRead marks every unread notification of the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	return s.notifications.MarkAllRead(ctx, userID, time.Now())
}

// ClearRead deletes the user's already-read notifications and reports
// how many were removed. Unread rows are never touched.
func (s *NotificationService) ClearRead(ctx context.Context, userID string) (int, error) {
	return s.notifications.DeleteRead(ctx, userID)
}

// GetPreferences returns the user's delivery toggles, creating the
// default record on first access.
func (s *NotificationService) GetPreferences(ctx context.Context, userID string) (*domain.NotificationPreference, error) {
	return s.preferences.GetOrCreate(ctx, userID)
}

// UpdatePreferences replaces the user's delivery toggles. The record is
// created lazily first, so updating works even before any read.
func (s *NotificationService) UpdatePreferences(ctx context.Context, userID string, pref domain.NotificationPreference) (*domain.NotificationPreference, error) {
	if _, err := s.preferences.GetOrCreate(ctx, userID); err != nil {
		return nil, apperrors.MapError(err)
	}
	pref.UserID = userID
	if err := s.preferences.Update(ctx, &pref); err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.preferences.GetOrCreate(ctx, userID)
}
