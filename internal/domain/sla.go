package domain

import "time"

// SLAPolicy holds the time budgets for one priority. At most one active
// policy exists per priority.
type SLAPolicy struct {
	ID             string
	Priority       TicketPriority
	ResponseTime   time.Duration
	ResolutionTime time.Duration
	Description    string
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
