package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// TicketStats is the aggregate read model computed from persisted
// ticket rows for reporting.
type TicketStats struct {
	Total             int
	ByStatus          map[string]int
	ByPriority        map[string]int
	ByCategory        map[string]int
	AvgResolution     time.Duration
	ResolvedCount     int
	SLAComplianceRate float64
}

// AnalyticsRepository computes reporting aggregates with SQL. Accuracy
// depends only on the ticket rows the lifecycle engine maintains.
type AnalyticsRepository interface {
	Stats(ctx context.Context) (*TicketStats, error)
}

type analyticsRepository struct {
	pool *pgxpool.Pool
}

// NewAnalyticsRepository builds repository.
func NewAnalyticsRepository(pool *pgxpool.Pool) AnalyticsRepository {
	return &analyticsRepository{pool: pool}
}

func (r *analyticsRepository) Stats(ctx context.Context) (*TicketStats, error) {
	stats := &TicketStats{
		ByStatus:   map[string]int{},
		ByPriority: map[string]int{},
		ByCategory: map[string]int{},
	}

	if err := r.groupCount(ctx, `SELECT status, COUNT(*) FROM tickets GROUP BY status`, stats.ByStatus); err != nil {
		return nil, err
	}
	if err := r.groupCount(ctx, `SELECT priority, COUNT(*) FROM tickets GROUP BY priority`, stats.ByPriority); err != nil {
		return nil, err
	}
	const byCategory = `
        SELECT c.name, COUNT(*) FROM tickets t
        JOIN ticket_categories c ON c.id = t.category_id
        GROUP BY c.name`
	if err := r.groupCount(ctx, byCategory, stats.ByCategory); err != nil {
		return nil, err
	}
	for _, count := range stats.ByStatus {
		stats.Total += count
	}

	const resolution = `
        SELECT COUNT(*),
               COALESCE(EXTRACT(EPOCH FROM AVG(resolved_at - created_at)), 0)
        FROM tickets WHERE resolved_at IS NOT NULL`
	var avgSeconds float64
	if err := r.pool.QueryRow(ctx, resolution).Scan(&stats.ResolvedCount, &avgSeconds); err != nil {
		return nil, err
	}
	stats.AvgResolution = time.Duration(avgSeconds * float64(time.Second))

	// Compliance over tickets that have an SLA at all.
	const compliance = `
        SELECT COUNT(*) FILTER (WHERE sla_breached = FALSE), COUNT(*)
        FROM tickets WHERE resolution_deadline IS NOT NULL`
	var within, tracked int
	if err := r.pool.QueryRow(ctx, compliance).Scan(&within, &tracked); err != nil {
		return nil, err
	}
	if tracked > 0 {
		stats.SLAComplianceRate = float64(within) / float64(tracked)
	}
	return stats, nil
}

func (r *analyticsRepository) groupCount(ctx context.Context, query string, dest map[string]int) error {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var count int
		if err := rows.Scan(&key, &count); err != nil {
			return err
		}
		dest[key] = count
	}
	return rows.Err()
}
