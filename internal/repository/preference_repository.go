package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// PreferenceRepository stores per-user notification delivery toggles.
type PreferenceRepository interface {
	// GetOrCreate returns the stored preferences, inserting the defaults
	// on first access.
	GetOrCreate(ctx context.Context, userID string) (*domain.NotificationPreference, error)
	Update(ctx context.Context, pref *domain.NotificationPreference) error
}

type preferenceRepository struct {
	pool *pgxpool.Pool
}

// NewPreferenceRepository builds repository.
func NewPreferenceRepository(pool *pgxpool.Pool) PreferenceRepository {
	return &preferenceRepository{pool: pool}
}

const preferenceColumns = `user_id,
        email_ticket_created, email_ticket_assigned, email_ticket_status_changed,
        email_ticket_comment, email_sla_warning, email_system,
        inapp_ticket_created, inapp_ticket_assigned, inapp_ticket_status_changed,
        inapp_ticket_comment, inapp_sla_warning, inapp_system,
        updated_at`

func (r *preferenceRepository) GetOrCreate(ctx context.Context, userID string) (*domain.NotificationPreference, error) {
	pref, err := r.get(ctx, userID)
	if err == nil {
		return pref, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	defaults := domain.DefaultPreferences(userID)
	const insert = `
        INSERT INTO notification_preferences (` + preferenceColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NOW())
        ON CONFLICT (user_id) DO NOTHING`
	if _, err := r.pool.Exec(ctx, insert,
		defaults.UserID,
		defaults.EmailTicketCreated,
		defaults.EmailTicketAssigned,
		defaults.EmailTicketStatusChanged,
		defaults.EmailTicketComment,
		defaults.EmailSLAWarning,
		defaults.EmailSystem,
		defaults.InAppTicketCreated,
		defaults.InAppTicketAssigned,
		defaults.InAppTicketStatusChanged,
		defaults.InAppTicketComment,
		defaults.InAppSLAWarning,
		defaults.InAppSystem,
	); err != nil {
		return nil, err
	}
	// Re-read to pick up a concurrent insert's values.
	return r.get(ctx, userID)
}

func (r *preferenceRepository) Update(ctx context.Context, pref *domain.NotificationPreference) error {
	const query = `
        UPDATE notification_preferences SET
            email_ticket_created=$1, email_ticket_assigned=$2, email_ticket_status_changed=$3,
            email_ticket_comment=$4, email_sla_warning=$5, email_system=$6,
            inapp_ticket_created=$7, inapp_ticket_assigned=$8, inapp_ticket_status_changed=$9,
            inapp_ticket_comment=$10, inapp_sla_warning=$11, inapp_system=$12,
            updated_at=NOW()
        WHERE user_id=$13
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		pref.EmailTicketCreated,
		pref.EmailTicketAssigned,
		pref.EmailTicketStatusChanged,
		pref.EmailTicketComment,
		pref.EmailSLAWarning,
		pref.EmailSystem,
		pref.InAppTicketCreated,
		pref.InAppTicketAssigned,
		pref.InAppTicketStatusChanged,
		pref.InAppTicketComment,
		pref.InAppSLAWarning,
		pref.InAppSystem,
		pref.UserID,
	).Scan(&pref.UpdatedAt)
}

func (r *preferenceRepository) get(ctx context.Context, userID string) (*domain.NotificationPreference, error) {
	query := `SELECT ` + preferenceColumns + ` FROM notification_preferences WHERE user_id=$1`
	var pref domain.NotificationPreference
	if err := r.pool.QueryRow(ctx, query, userID).Scan(
		&pref.UserID,
		&pref.EmailTicketCreated,
		&pref.EmailTicketAssigned,
		&pref.EmailTicketStatusChanged,
		&pref.EmailTicketComment,
		&pref.EmailSLAWarning,
		&pref.EmailSystem,
		&pref.InAppTicketCreated,
		&pref.InAppTicketAssigned,
		&pref.InAppTicketStatusChanged,
		&pref.InAppTicketComment,
		&pref.InAppSLAWarning,
		&pref.InAppSystem,
		&pref.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &pref, nil
}
