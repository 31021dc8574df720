package domain

import "time"

// TicketHistoryEntry is an immutable record of one status transition.
// Entries are append-only and ordered by CreatedAt ascending; the
// sequence forms the audit trail of a ticket's life.
type TicketHistoryEntry struct {
	ID         string
	TicketID   string
	FromStatus TicketStatus
	ToStatus   TicketStatus
	Comment    *string
	Actor      Identity
	CreatedAt  time.Time
}
