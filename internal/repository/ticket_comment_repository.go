package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// TicketCommentRepository stores ticket comments.
type TicketCommentRepository interface {
	Create(ctx context.Context, comment *domain.TicketComment) error
	ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.TicketComment, error)
}

type ticketCommentRepository struct {
	pool *pgxpool.Pool
}

// NewTicketCommentRepository builds repository.
func NewTicketCommentRepository(pool *pgxpool.Pool) TicketCommentRepository {
	return &ticketCommentRepository{pool: pool}
}

func (r *ticketCommentRepository) Create(ctx context.Context, comment *domain.TicketComment) error {
	const query = `
        INSERT INTO ticket_comments (ticket_id, content, is_internal, author_id, author_name, author_email)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		comment.TicketID,
		comment.Content,
		comment.IsInternal,
		comment.Author.ID,
		comment.Author.Name,
		comment.Author.Email,
	).Scan(&comment.ID, &comment.CreatedAt)
}

func (r *ticketCommentRepository) ListByTicket(ctx context.Context, ticketID string, includeInternal bool) ([]domain.TicketComment, error) {
	query := `
        SELECT id, ticket_id, content, is_internal, author_id, author_name, author_email, created_at
        FROM ticket_comments WHERE ticket_id=$1`
	if !includeInternal {
		query += ` AND is_internal=FALSE`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketComment
	for rows.Next() {
		var comment domain.TicketComment
		if err := rows.Scan(
			&comment.ID,
			&comment.TicketID,
			&comment.Content,
			&comment.IsInternal,
			&comment.Author.ID,
			&comment.Author.Name,
			&comment.Author.Email,
			&comment.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, comment)
	}
	return result, rows.Err()
}
