package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// NotificationFilter captures listing parameters for a user's inbox.
type NotificationFilter struct {
	UnreadOnly bool
	Page       int
	PageSize   int
}

// NotificationRepository stores in-app notification rows.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByRecipient(ctx context.Context, recipientID string, filter NotificationFilter) ([]domain.Notification, int, error)
	UnreadCount(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, recipientID, id string, at time.Time) error
	MarkAllRead(ctx context.Context, recipientID string, at time.Time) error
	// DeleteRead removes already-read rows only; unread notifications
	// survive a bulk clear.
	DeleteRead(ctx context.Context, recipientID string) (int, error)
	SetEmailSent(ctx context.Context, id string, at time.Time) error
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

const notificationColumns = `id, recipient_id, type, title, message, related_type, related_id,
               is_read, read_at, email_sent, email_sent_at, created_at`

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (recipient_id, type, title, message, related_type, related_id)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		n.RecipientID,
		n.Type,
		n.Title,
		n.Message,
		n.RelatedType,
		n.RelatedID,
	).Scan(&n.ID, &n.CreatedAt)
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID string, filter NotificationFilter) ([]domain.Notification, int, error) {
	where := `recipient_id=$1`
	if filter.UnreadOnly {
		where += ` AND is_read=FALSE`
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE `+where, recipientID).Scan(&total); err != nil {
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

	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE ` + where +
		` ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, recipientID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result, err := scanNotifications(rows)
	if err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id=$1 AND is_read=FALSE`,
		recipientID,
	).Scan(&count)
	return count, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, recipientID, id string, at time.Time) error {
	cmd, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read=TRUE, read_at=$1 WHERE id=$2 AND recipient_id=$3 AND is_read=FALSE`,
		at, id, recipientID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		// Either unknown id, someone else's notification, or already read.
		var exists bool
		if err := r.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM notifications WHERE id=$1 AND recipient_id=$2)`,
			id, recipientID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return pgx.ErrNoRows
		}
	}
	return nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, recipientID string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read=TRUE, read_at=$1 WHERE recipient_id=$2 AND is_read=FALSE`,
		at, recipientID,
	)
	return err
}

func (r *notificationRepository) DeleteRead(ctx context.Context, recipientID string) (int, error) {
	cmd, err := r.pool.Exec(ctx,
		`DELETE FROM notifications WHERE recipient_id=$1 AND is_read=TRUE`,
		recipientID,
	)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

func (r *notificationRepository) SetEmailSent(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET email_sent=TRUE, email_sent_at=$1 WHERE id=$2`,
		at, id,
	)
	return err
}

func scanNotifications(rows pgx.Rows) ([]domain.Notification, error) {
	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(
			&n.ID,
			&n.RecipientID,
			&n.Type,
			&n.Title,
			&n.Message,
			&n.RelatedType,
			&n.RelatedID,
			&n.IsRead,
			&n.ReadAt,
			&n.EmailSent,
			&n.EmailSentAt,
			&n.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}
