package visibility

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/helpdesk/internal/domain"
)

func user(id string, role domain.Role) *domain.User {
	return &domain.User{ID: id, Role: role}
}

func ticketOf(requesterID string) *domain.Ticket {
	return &domain.Ticket{Requester: domain.Identity{ID: requesterID}}
}

func TestCanView(t *testing.T) {
	ticket := ticketOf("u1")

	assert.True(t, CanView(user("u1", domain.RoleEndUser), ticket))
	assert.False(t, CanView(user("u2", domain.RoleEndUser), ticket))
	assert.True(t, CanView(user("s1", domain.RoleSupportStaff), ticket))
	assert.True(t, CanView(user("m1", domain.RoleManager), ticket))
	assert.False(t, CanView(nil, ticket))
	assert.False(t, CanView(user("u1", domain.RoleEndUser), nil))
}

func TestCanMutateStatus(t *testing.T) {
	assert.False(t, CanMutateStatus(user("u1", domain.RoleEndUser)))
	assert.True(t, CanMutateStatus(user("s1", domain.RoleSupportStaff)))
	assert.True(t, CanMutateStatus(user("a1", domain.RoleAdmin)))
	assert.False(t, CanMutateStatus(nil))
}

func TestCanAssign(t *testing.T) {
	assert.False(t, CanAssign(user("s1", domain.RoleSupportStaff)))
	assert.True(t, CanAssign(user("m1", domain.RoleManager)))
	assert.True(t, CanAssign(user("a1", domain.RoleAdmin)))
}

func TestCanEditDetails(t *testing.T) {
	assert.False(t, CanEditDetails(user("u1", domain.RoleEndUser)))
	assert.True(t, CanEditDetails(user("s1", domain.RoleSupportStaff)))
	assert.True(t, CanEditDetails(user("m1", domain.RoleManager)))
	assert.False(t, CanEditDetails(nil))
}

func TestCanCommentInternally(t *testing.T) {
	assert.False(t, CanCommentInternally(user("u1", domain.RoleEndUser)))
	assert.True(t, CanCommentInternally(user("s1", domain.RoleSupportStaff)))
}

func TestCanRate(t *testing.T) {
	ticket := ticketOf("u1")

	assert.True(t, CanRate(user("u1", domain.RoleEndUser), ticket))
	assert.False(t, CanRate(user("u2", domain.RoleEndUser), ticket))
	// Staff never rate, not even admins.
	assert.False(t, CanRate(user("a1", domain.RoleAdmin), ticket))
}
