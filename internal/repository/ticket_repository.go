package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-bot/internal/domain"
)

const uniqueViolation = "23505"

const ticketColumns = `ticket_id, user_id, category, status, form_data, thread_id, community_id, created_at, closed_at, closed_by`

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the postgres ticket repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	formData, err := json.Marshal(formOrEmpty(ticket.FormData))
	if err != nil {
		return fmt.Errorf("encode form data: %w", err)
	}
	const query = `
        INSERT INTO tickets (ticket_id, user_id, category, status, form_data, thread_id, community_id, created_at)
        VALUES ($1,$2,$3,$4,$5::jsonb,$6,$7,$8)`
	_, err = r.pool.Exec(ctx, query,
		ticket.ID,
		ticket.UserID,
		ticket.Category,
		ticket.Status,
		string(formData),
		nullIfEmpty(ticket.ThreadID),
		ticket.CommunityID,
		ticket.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateID
	}
	return err
}

func (r *ticketRepository) GetByID(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ticket_id=$1`
	return r.fetchSingle(ctx, query, ticketID)
}

func (r *ticketRepository) GetByThreadID(ctx context.Context, threadID string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE thread_id=$1 ORDER BY created_at DESC LIMIT 1`
	return r.fetchSingle(ctx, query, threadID)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) ListByUser(ctx context.Context, userID, communityID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE user_id=$1 AND community_id=$2 ORDER BY created_at DESC`
	return r.list(ctx, query, userID, communityID)
}

func (r *ticketRepository) ListOpenByUser(ctx context.Context, userID, communityID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE user_id=$1 AND community_id=$2 AND status='open' ORDER BY created_at DESC`
	return r.list(ctx, query, userID, communityID)
}

func (r *ticketRepository) ListByCommunity(ctx context.Context, communityID string, status *domain.TicketStatus) ([]domain.Ticket, error) {
	if status != nil {
		query := `SELECT ` + ticketColumns + ` FROM tickets
            WHERE community_id=$1 AND status=$2 ORDER BY created_at DESC`
		return r.list(ctx, query, communityID, *status)
	}
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE community_id=$1 ORDER BY created_at DESC`
	return r.list(ctx, query, communityID)
}

func (r *ticketRepository) list(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, ticketID string, status domain.TicketStatus, closedBy *string, at time.Time) (*domain.Ticket, error) {
	// SET expressions see the pre-update row, so a second close keeps the
	// first close's stamp.
	query := `
        UPDATE tickets SET
            closed_at = CASE WHEN $2::text = 'closed'
                THEN (CASE WHEN status = 'closed' THEN closed_at ELSE $4 END) ELSE NULL END,
            closed_by = CASE WHEN $2::text = 'closed'
                THEN (CASE WHEN status = 'closed' THEN closed_by ELSE $3 END) ELSE NULL END,
            status = $2::text
        WHERE ticket_id=$1
        RETURNING ` + ticketColumns
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, ticketID, string(status), closedBy, at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) Statistics(ctx context.Context, communityID string) (*domain.TicketStatistics, error) {
	const totals = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status = 'open'),
               COUNT(*) FILTER (WHERE status = 'closed')
        FROM tickets WHERE community_id=$1`
	stats := &domain.TicketStatistics{ByCategory: []domain.CategoryCount{}}
	if err := r.pool.QueryRow(ctx, totals, communityID).Scan(&stats.Total, &stats.Open, &stats.Closed); err != nil {
		return nil, err
	}

	const byCategory = `
        SELECT category, COUNT(*) FROM tickets
        WHERE community_id=$1 GROUP BY category ORDER BY category`
	rows, err := r.pool.Query(ctx, byCategory, communityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var row domain.CategoryCount
		if err := rows.Scan(&row.Category, &row.Count); err != nil {
			return nil, err
		}
		stats.ByCategory = append(stats.ByCategory, row)
	}
	return stats, rows.Err()
}

func (r *ticketRepository) DeleteClosedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM tickets WHERE status = 'closed' AND closed_at < $1`
	cmd, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket   domain.Ticket
		formData []byte
		threadID *string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.UserID,
		&ticket.Category,
		&ticket.Status,
		&formData,
		&threadID,
		&ticket.CommunityID,
		&ticket.CreatedAt,
		&ticket.ClosedAt,
		&ticket.ClosedBy,
	); err != nil {
		return nil, err
	}
	if threadID != nil {
		ticket.ThreadID = *threadID
	}
	ticket.FormData = map[string]string{}
	if len(formData) > 0 {
		if err := json.Unmarshal(formData, &ticket.FormData); err != nil {
			return nil, fmt.Errorf("decode form data for %s: %w", ticket.ID, err)
		}
	}
	return &ticket, nil
}

// nullIfEmpty maps an unbound thread id to SQL NULL.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func formOrEmpty(form map[string]string) map[string]string {
	if form == nil {
		return map[string]string{}
	}
	return form
}
