package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew         TicketStatus = "new"
	TicketStatusAssigned    TicketStatus = "assigned"
	TicketStatusInProgress  TicketStatus = "in_progress"
	TicketStatusPendingUser TicketStatus = "pending_user"
	TicketStatusResolved    TicketStatus = "resolved"
	TicketStatusClosed      TicketStatus = "closed"
)

// Valid reports whether the value is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusNew, TicketStatusAssigned, TicketStatusInProgress,
		TicketStatusPendingUser, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// Open reports whether the ticket still counts against its SLA clock.
func (s TicketStatus) Open() bool {
	return s != TicketStatusResolved && s != TicketStatusClosed
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

// Valid reports whether the value is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityUrgent:
		return true
	}
	return false
}

// TicketChannel records how the ticket reached the help desk.
type TicketChannel string

const (
	ChannelWeb    TicketChannel = "web"
	ChannelEmail  TicketChannel = "email"
	ChannelPhone  TicketChannel = "phone"
	ChannelMobile TicketChannel = "mobile"
)

// Ticket is the aggregate for support requests.
//
// Invariants maintained by the lifecycle engine:
//   - ResolvedAt is set iff the ticket has reached resolved at least once,
//     and is never overwritten on repeat resolutions.
//   - ClosedAt is set iff status is closed.
//   - Breached and SLAWarningSent never revert to false once true.
type Ticket struct {
	ID          string
	Title       string
	Description string
	Status      TicketStatus
	Priority    TicketPriority
	CategoryID  string
	Channel     TicketChannel

	Requester Identity
	Assignee  *Identity
	Team      *Identity

	ResponseDeadline   *time.Time
	ResolutionDeadline *time.Time
	Breached           bool
	SLAWarningSent     bool

	SatisfactionRating  *int
	SatisfactionComment *string

	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
	ClosedAt   *time.Time
}
