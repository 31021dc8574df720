package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// SLAPolicyRepository reads priority-keyed SLA budgets. Policy rows are
// mutated only by administrative configuration, outside this service.
type SLAPolicyRepository interface {
	// GetActiveByPriority returns the active policy for the priority, or
	// pgx.ErrNoRows when none is configured.
	GetActiveByPriority(ctx context.Context, priority domain.TicketPriority) (*domain.SLAPolicy, error)
	List(ctx context.Context) ([]domain.SLAPolicy, error)
}

type slaPolicyRepository struct {
	pool *pgxpool.Pool
}

// NewSLAPolicyRepository builds repository.
func NewSLAPolicyRepository(pool *pgxpool.Pool) SLAPolicyRepository {
	return &slaPolicyRepository{pool: pool}
}

const slaPolicyColumns = `id, priority, response_minutes, resolution_minutes, description, is_active, created_at, updated_at`

func (r *slaPolicyRepository) GetActiveByPriority(ctx context.Context, priority domain.TicketPriority) (*domain.SLAPolicy, error) {
	query := `SELECT ` + slaPolicyColumns + ` FROM sla_policies WHERE priority=$1 AND is_active=TRUE`
	return scanSLAPolicy(r.pool.QueryRow(ctx, query, priority))
}

func (r *slaPolicyRepository) List(ctx context.Context) ([]domain.SLAPolicy, error) {
	query := `SELECT ` + slaPolicyColumns + ` FROM sla_policies ORDER BY priority ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLAPolicy
	for rows.Next() {
		policy, err := scanSLAPolicy(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *policy)
	}
	return result, rows.Err()
}

func scanSLAPolicy(row rowScanner) (*domain.SLAPolicy, error) {
	var (
		policy            domain.SLAPolicy
		responseMinutes   int64
		resolutionMinutes int64
	)
	if err := row.Scan(
		&policy.ID,
		&policy.Priority,
		&responseMinutes,
		&resolutionMinutes,
		&policy.Description,
		&policy.Active,
		&policy.CreatedAt,
		&policy.UpdatedAt,
	); err != nil {
		return nil, err
	}
	policy.ResponseTime = time.Duration(responseMinutes) * time.Minute
	policy.ResolutionTime = time.Duration(resolutionMinutes) * time.Minute
	return &policy, nil
}
