package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// NotificationResponse represents one inbox entry.
type NotificationResponse struct {
	ID          string                  `json:"id"`
	Type        domain.NotificationType `json:"type"`
	Title       string                  `json:"title"`
	Message     string                  `json:"message"`
	RelatedType *string                 `json:"related_type,omitempty"`
	RelatedID   *string                 `json:"related_id,omitempty"`
	IsRead      bool                    `json:"is_read"`
	ReadAt      *time.Time              `json:"read_at,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
}

// InboxResponse is a page of notifications with counters.
type InboxResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	UnreadCount   int                    `json:"unread_count"`
	Meta          PageMeta               `json:"meta"`
}

// PreferenceResponse mirrors the full toggle matrix. The same shape is
// accepted on update.
type PreferenceResponse struct {
	EmailTicketCreated       bool `json:"email_ticket_created"`
	EmailTicketAssigned      bool `json:"email_ticket_assigned"`
	EmailTicketStatusChanged bool `json:"email_ticket_status_changed"`
	EmailTicketComment       bool `json:"email_ticket_comment"`
	EmailSLAWarning          bool `json:"email_sla_warning"`
	EmailSystem              bool `json:"email_system"`

	InAppTicketCreated       bool `json:"inapp_ticket_created"`
	InAppTicketAssigned      bool `json:"inapp_ticket_assigned"`
	InAppTicketStatusChanged bool `json:"inapp_ticket_status_changed"`
	InAppTicketComment       bool `json:"inapp_ticket_comment"`
	InAppSLAWarning          bool `json:"inapp_sla_warning"`
	InAppSystem              bool `json:"inapp_system"`
}

// ToDomain converts the payload into a preference record.
func (p PreferenceResponse) ToDomain(userID string) domain.NotificationPreference {
	return domain.NotificationPreference{
		UserID:                   userID,
		EmailTicketCreated:       p.EmailTicketCreated,
		EmailTicketAssigned:      p.EmailTicketAssigned,
		EmailTicketStatusChanged: p.EmailTicketStatusChanged,
		EmailTicketComment:       p.EmailTicketComment,
		EmailSLAWarning:          p.EmailSLAWarning,
		EmailSystem:              p.EmailSystem,
		InAppTicketCreated:       p.InAppTicketCreated,
		InAppTicketAssigned:      p.InAppTicketAssigned,
		InAppTicketStatusChanged: p.InAppTicketStatusChanged,
		InAppTicketComment:       p.InAppTicketComment,
		InAppSLAWarning:          p.InAppSLAWarning,
		InAppSystem:              p.InAppSystem,
	}
}

// FromPreference builds the response from a preference record.
func FromPreference(pref *domain.NotificationPreference) PreferenceResponse {
	return PreferenceResponse{
		EmailTicketCreated:       pref.EmailTicketCreated,
		EmailTicketAssigned:      pref.EmailTicketAssigned,
		EmailTicketStatusChanged: pref.EmailTicketStatusChanged,
		EmailTicketComment:       pref.EmailTicketComment,
		EmailSLAWarning:          pref.EmailSLAWarning,
		EmailSystem:              pref.EmailSystem,
		InAppTicketCreated:       pref.InAppTicketCreated,
		InAppTicketAssigned:      pref.InAppTicketAssigned,
		InAppTicketStatusChanged: pref.InAppTicketStatusChanged,
		InAppTicketComment:       pref.InAppTicketComment,
		InAppSLAWarning:          pref.InAppSLAWarning,
		InAppSystem:              pref.InAppSystem,
	}
}
