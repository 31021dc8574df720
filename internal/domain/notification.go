package domain

import "time"

// NotificationType enumerates the kinds of notifications delivered to users.
type NotificationType string

const (
	NotificationTicketCreated       NotificationType = "ticket_created"
	NotificationTicketAssigned      NotificationType = "ticket_assigned"
	NotificationTicketStatusChanged NotificationType = "ticket_status_changed"
	NotificationTicketComment       NotificationType = "ticket_comment"
	NotificationSLAWarning          NotificationType = "sla_warning"
	NotificationSLABreached         NotificationType = "sla_breached"
	NotificationSystem              NotificationType = "system"
)

// Notification is one in-app notification row. Mutated only to flip the
// read/email-sent flags; removed only by an explicit bulk clear of
// already-read items.
type Notification struct {
	ID          string
	RecipientID string
	Type        NotificationType
	Title       string
	Message     string
	RelatedType *string
	RelatedID   *string
	IsRead      bool
	ReadAt      *time.Time
	EmailSent   bool
	EmailSentAt *time.Time
	CreatedAt   time.Time
}

// NotificationPreference holds one user's delivery toggles, one boolean
// per (channel, notification type) pair. Created lazily on first access.
type NotificationPreference struct {
	UserID string

	EmailTicketCreated       bool
	EmailTicketAssigned      bool
	EmailTicketStatusChanged bool
	EmailTicketComment       bool
	EmailSLAWarning          bool
	EmailSystem              bool

	InAppTicketCreated       bool
	InAppTicketAssigned      bool
	InAppTicketStatusChanged bool
	InAppTicketComment       bool
	InAppSLAWarning          bool
	InAppSystem              bool

	UpdatedAt time.Time
}

// DefaultPreferences returns the toggles applied when a user has no
// stored record: in-app on everywhere, email on except generic system
// messages.
func DefaultPreferences(userID string) NotificationPreference {
	return NotificationPreference{
		UserID:                   userID,
		EmailTicketCreated:       true,
		EmailTicketAssigned:      true,
		EmailTicketStatusChanged: true,
		EmailTicketComment:       true,
		EmailSLAWarning:          true,
		EmailSystem:              false,
		InAppTicketCreated:       true,
		InAppTicketAssigned:      true,
		InAppTicketStatusChanged: true,
		InAppTicketComment:       true,
		InAppSLAWarning:          true,
		InAppSystem:              true,
	}
}

// EmailEnabled reports whether outbound email is on for the type.
// Breach notices share the warning toggle.
func (p NotificationPreference) EmailEnabled(t NotificationType) bool {
	switch t {
	case NotificationTicketCreated:
		return p.EmailTicketCreated
	case NotificationTicketAssigned:
		return p.EmailTicketAssigned
	case NotificationTicketStatusChanged:
		return p.EmailTicketStatusChanged
	case NotificationTicketComment:
		return p.EmailTicketComment
	case NotificationSLAWarning, NotificationSLABreached:
		return p.EmailSLAWarning
	case NotificationSystem:
		return p.EmailSystem
	}
	return false
}

// InAppEnabled reports whether in-app delivery is on for the type.
func (p NotificationPreference) InAppEnabled(t NotificationType) bool {
	switch t {
	case NotificationTicketCreated:
		return p.InAppTicketCreated
	case NotificationTicketAssigned:
		return p.InAppTicketAssigned
	case NotificationTicketStatusChanged:
		return p.InAppTicketStatusChanged
	case NotificationTicketComment:
		return p.InAppTicketComment
	case NotificationSLAWarning, NotificationSLABreached:
		return p.InAppSLAWarning
	case NotificationSystem:
		return p.InAppSystem
	}
	return true
}
