package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/observability"
)

type staticUserRepo struct {
	users map[string]*domain.User
}

func (r *staticUserRepo) Create(_ context.Context, user *domain.User) error {
	r.users[user.ID] = user
	return nil
}

func (r *staticUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *user
	return &clone, nil
}

func (r *staticUserRepo) GetByEmail(_ context.Context, _ string) (*domain.User, error) {
	return nil, pgx.ErrNoRows
}

func (r *staticUserRepo) ListActiveStaff(_ context.Context) ([]domain.User, error) {
	return nil, nil
}

func (r *staticUserRepo) ListActiveManagers(_ context.Context) ([]domain.User, error) {
	return nil, nil
}

func newGuardedApp(t *testing.T) (*fiber.App, *auth.TokenManager) {
	t.Helper()
	repo := &staticUserRepo{users: map[string]*domain.User{
		"u1": {ID: "u1", Name: "Rita", Email: "rita@example.com", Role: domain.RoleEndUser, Active: true},
		"s1": {ID: "s1", Name: "Sam", Email: "sam@example.com", Role: domain.RoleSupportStaff, Active: true},
	}}
	tokens := auth.NewTokenManager("test-secret", 60)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 0)

	middleware := auth.NewMiddleware(tokens, repo)
	staff := app.Group("/staff", middleware.Handle, auth.RequireStaff())
	staff.Get("/ping", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"data": "pong"})
	})
	staff.Post("/escalate", auth.RequireRole(domain.RoleManager, domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"data": "ok"})
	})
	return app, tokens
}

func doRequest(t *testing.T, app *fiber.App, method, path, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &envelope)
	return resp.StatusCode, envelope.Error.Code
}

func TestStaffGuardRejectsEndUserWithForbidden(t *testing.T) {
	app, tokens := newGuardedApp(t)
	token, _, err := tokens.GenerateToken("u1", domain.RoleEndUser)
	require.NoError(t, err)

	status, code := doRequest(t, app, "GET", "/staff/ping", token)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", code)
}

func TestStaffGuardAdmitsStaff(t *testing.T) {
	app, tokens := newGuardedApp(t)
	token, _, err := tokens.GenerateToken("s1", domain.RoleSupportStaff)
	require.NoError(t, err)

	status, code := doRequest(t, app, "GET", "/staff/ping", token)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Empty(t, code)
}

func TestRoleGuardRejectsStaffBelowRequiredRole(t *testing.T) {
	app, tokens := newGuardedApp(t)
	token, _, err := tokens.GenerateToken("s1", domain.RoleSupportStaff)
	require.NoError(t, err)

	status, code := doRequest(t, app, "POST", "/staff/escalate", token)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", code)
}

func TestMissingTokenIsUnauthorized(t *testing.T) {
	app, _ := newGuardedApp(t)

	status, code := doRequest(t, app, "GET", "/staff/ping", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", code)
}

func TestUnknownRouteKeepsNotFoundStatus(t *testing.T) {
	app, _ := newGuardedApp(t)

	status, code := doRequest(t, app, "GET", "/nope", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", code)
}
