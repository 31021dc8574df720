package domain

import "time"

// TicketCategory classifies tickets. Category management is an
// administrative concern; the lifecycle engine only checks existence.
type TicketCategory struct {
	ID          string
	Name        string
	Description string
	ParentID    *string
	CreatedAt   time.Time
}

// Team is surfaced to the lifecycle engine only as an existence check
// plus an identity snapshot for assignment.
type Team struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
