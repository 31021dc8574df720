// Package visibility centralizes the access predicates consulted by the
// lifecycle engine. All functions are pure; violations are reported by
// the caller as Forbidden, never silently ignored.
package visibility

import "github.com/spec-kit/helpdesk/internal/domain"

// CanView reports whether the actor may read the ticket: staff see
// everything, end users only their own tickets.
func CanView(actor *domain.User, ticket *domain.Ticket) bool {
	if actor == nil || ticket == nil {
		return false
	}
	if actor.Role.IsStaff() {
		return true
	}
	return actor.ID == ticket.Requester.ID
}

// CanMutateStatus reports whether the actor may drive status transitions.
func CanMutateStatus(actor *domain.User) bool {
	return actor != nil && actor.Role.IsStaff()
}

// CanAssign reports whether the actor may assign tickets.
func CanAssign(actor *domain.User) bool {
	return actor != nil && actor.Role.CanAssign()
}

// CanEditDetails reports whether the actor may edit ticket fields such
// as title, description or priority.
func CanEditDetails(actor *domain.User) bool {
	return actor != nil && actor.Role.IsStaff()
}

// CanComment reports whether the actor may comment on the ticket.
func CanComment(actor *domain.User, ticket *domain.Ticket) bool {
	return CanView(actor, ticket)
}

// CanCommentInternally reports whether the actor may mark a comment
// internal.
func CanCommentInternally(actor *domain.User) bool {
	return actor != nil && actor.Role.IsStaff()
}

// CanRate reports whether the actor may record a satisfaction rating:
// the owning requester only.
func CanRate(actor *domain.User, ticket *domain.Ticket) bool {
	if actor == nil || ticket == nil {
		return false
	}
	return actor.ID == ticket.Requester.ID
}
