package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CategoryRepository exposes the category read model. Category
// management is administrative; the engine needs lookups only.
type CategoryRepository interface {
	GetByID(ctx context.Context, id string) (*domain.TicketCategory, error)
	List(ctx context.Context) ([]domain.TicketCategory, error)
}

// TeamRepository wraps the team existence check consumed from the team
// management collaborator.
type TeamRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Team, error)
}

type categoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository builds repository.
func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{pool: pool}
}

func (r *categoryRepository) GetByID(ctx context.Context, id string) (*domain.TicketCategory, error) {
	const query = `SELECT id, name, description, parent_id, created_at FROM ticket_categories WHERE id=$1`
	var category domain.TicketCategory
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&category.ID,
		&category.Name,
		&category.Description,
		&category.ParentID,
		&category.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) List(ctx context.Context) ([]domain.TicketCategory, error) {
	const query = `SELECT id, name, description, parent_id, created_at FROM ticket_categories ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketCategory
	for rows.Next() {
		var category domain.TicketCategory
		if err := rows.Scan(
			&category.ID,
			&category.Name,
			&category.Description,
			&category.ParentID,
			&category.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, category)
	}
	return result, rows.Err()
}

type teamRepository struct {
	pool *pgxpool.Pool
}

// NewTeamRepository builds repository.
func NewTeamRepository(pool *pgxpool.Pool) TeamRepository {
	return &teamRepository{pool: pool}
}

func (r *teamRepository) GetByID(ctx context.Context, id string) (*domain.Team, error) {
	const query = `SELECT id, name, created_at FROM teams WHERE id=$1`
	var team domain.Team
	if err := r.pool.QueryRow(ctx, query, id).Scan(&team.ID, &team.Name, &team.CreatedAt); err != nil {
		return nil, err
	}
	return &team, nil
}
