package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

const ticketColumns = `id, title, description, status, priority, category_id, channel,
               requester_id, requester_name, requester_email,
               assignee_id, assignee_name, assignee_email,
               team_id, team_name,
               response_deadline, resolution_deadline, sla_breached, sla_warning_sent,
               satisfaction_rating, satisfaction_comment,
               created_at, updated_at, resolved_at, closed_at`

// TicketFilter captures listing parameters.
type TicketFilter struct {
	RequesterID *string
	AssigneeID  *string
	CategoryID  *string
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	SearchTerm  *string
	Page        int
	PageSize    int
}

// MutateFunc inspects and mutates a ticket under a row lock. Returned
// history entries are appended in the same transaction as the ticket
// update; returning an error rolls everything back.
type MutateFunc func(t *domain.Ticket) ([]domain.TicketHistoryEntry, error)

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
	// Mutate serializes the change against concurrent mutation of the
	// same ticket: the row is read FOR UPDATE inside a transaction, fn
	// is applied, and field update plus history append commit as one
	// atomic unit.
	Mutate(ctx context.Context, id string, fn MutateFunc) (*domain.Ticket, error)
	// ListSweepCandidates returns ids of open tickets whose SLA flags
	// may still change, for the periodic breach sweep.
	ListSweepCandidates(ctx context.Context, limit int) ([]string, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, status, priority, category_id, channel,
            requester_id, requester_name, requester_email,
            assignee_id, assignee_name, assignee_email, team_id, team_name,
            response_deadline, resolution_deadline)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
        RETURNING id, created_at, updated_at`
	assigneeID, assigneeName, assigneeEmail := identityColumns(ticket.Assignee)
	teamID, teamName := teamColumns(ticket.Team)
	return r.pool.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.CategoryID,
		ticket.Channel,
		ticket.Requester.ID,
		ticket.Requester.Name,
		ticket.Requester.Email,
		assigneeID,
		assigneeName,
		assigneeEmail,
		teamID,
		teamName,
		ticket.ResponseDeadline,
		ticket.ResolutionDeadline,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	row := r.pool.QueryRow(ctx, query, id)
	return scanTicket(row)
}

func (r *ticketRepository) Mutate(ctx context.Context, id string, fn MutateFunc) (*domain.Ticket, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	ticket, err := scanTicket(tx.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	entries, err := fn(ticket)
	if err != nil {
		return nil, err
	}

	const update = `
        UPDATE tickets SET title=$1, description=$2, status=$3, priority=$4, category_id=$5,
            assignee_id=$6, assignee_name=$7, assignee_email=$8, team_id=$9, team_name=$10,
            response_deadline=$11, resolution_deadline=$12, sla_breached=$13, sla_warning_sent=$14,
            satisfaction_rating=$15, satisfaction_comment=$16,
            resolved_at=$17, closed_at=$18, updated_at=NOW()
        WHERE id=$19
        RETURNING updated_at`
	assigneeID, assigneeName, assigneeEmail := identityColumns(ticket.Assignee)
	teamID, teamName := teamColumns(ticket.Team)
	if err := tx.QueryRow(ctx, update,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.CategoryID,
		assigneeID,
		assigneeName,
		assigneeEmail,
		teamID,
		teamName,
		ticket.ResponseDeadline,
		ticket.ResolutionDeadline,
		ticket.Breached,
		ticket.SLAWarningSent,
		ticket.SatisfactionRating,
		ticket.SatisfactionComment,
		ticket.ResolvedAt,
		ticket.ClosedAt,
		ticket.ID,
	).Scan(&ticket.UpdatedAt); err != nil {
		return nil, err
	}

	const insertHistory = `
        INSERT INTO ticket_status_history (ticket_id, from_status, to_status, comment, actor_id, actor_name, actor_email)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at`
	for i := range entries {
		entry := &entries[i]
		if err := tx.QueryRow(ctx, insertHistory,
			ticket.ID,
			entry.FromStatus,
			entry.ToStatus,
			entry.Comment,
			entry.Actor.ID,
			entry.Actor.Name,
			entry.Actor.Email,
		).Scan(&entry.ID, &entry.CreatedAt); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.RequesterID != nil {
		args = append(args, *filter.RequesterID)
		clauses = append(clauses, fmt.Sprintf("requester_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if filter.CategoryID != nil {
		args = append(args, *filter.CategoryID)
		clauses = append(clauses, fmt.Sprintf("category_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	where := strings.Join(clauses, " AND ")

	var total int
	countQuery := `SELECT COUNT(*) FROM tickets WHERE ` + where
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		ticketColumns, where, pageSize, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tickets, err := scanTickets(rows)
	if err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func (r *ticketRepository) ListSweepCandidates(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 1000
	}
	const query = `
        SELECT id FROM tickets
        WHERE status NOT IN ('resolved','closed')
          AND resolution_deadline IS NOT NULL
          AND (sla_breached = FALSE OR sla_warning_sent = FALSE)
        ORDER BY resolution_deadline ASC
        LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket        domain.Ticket
		assigneeID    *string
		assigneeName  *string
		assigneeEmail *string
		teamID        *string
		teamName      *string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CategoryID,
		&ticket.Channel,
		&ticket.Requester.ID,
		&ticket.Requester.Name,
		&ticket.Requester.Email,
		&assigneeID,
		&assigneeName,
		&assigneeEmail,
		&teamID,
		&teamName,
		&ticket.ResponseDeadline,
		&ticket.ResolutionDeadline,
		&ticket.Breached,
		&ticket.SLAWarningSent,
		&ticket.SatisfactionRating,
		&ticket.SatisfactionComment,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	if assigneeID != nil {
		ticket.Assignee = &domain.Identity{ID: *assigneeID, Name: deref(assigneeName), Email: deref(assigneeEmail)}
	}
	if teamID != nil {
		ticket.Team = &domain.Identity{ID: *teamID, Name: deref(teamName)}
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func identityColumns(id *domain.Identity) (*string, *string, *string) {
	if id == nil {
		return nil, nil, nil
	}
	return &id.ID, &id.Name, &id.Email
}

func teamColumns(id *domain.Identity) (*string, *string) {
	if id == nil {
		return nil, nil
	}
	return &id.ID, &id.Name
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
