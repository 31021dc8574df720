package domain

import "time"

// TicketComment captures communications on a ticket. Internal comments
// are visible to staff only and never reach the requester.
type TicketComment struct {
	ID         string
	TicketID   string
	Content    string
	IsInternal bool
	Author     Identity
	CreatedAt  time.Time
}
