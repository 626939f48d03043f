package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/eventgrid/eventgrid/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TicketRepository handles persistence for tickets.
type TicketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository constructs a TicketRepository.
func NewTicketRepository(pool *pgxpool.Pool) *TicketRepository {
	return &TicketRepository{pool: pool}
}

const ticketColumns = `id, event_id, user_id, registration_id, qr_code, status, generated_at, used_at`

func scanTicket(row pgx.Row) (*model.Ticket, error) {
	var t model.Ticket
	err := row.Scan(
		&t.ID, &t.EventID, &t.UserID, &t.RegistrationID,
		&t.QRCode, &t.Status, &t.GeneratedAt, &t.UsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("scan ticket: %w", err)
	}
	return &t, nil
}

// Create inserts a new ticket. The unique index on registration_id makes
// issuance idempotent; the one on qr_code detects token collisions so the
// generator can retry.
func (r *TicketRepository) Create(ctx context.Context, t *model.Ticket) error {
	_, err := db(ctx, r.pool).Exec(ctx,
		`INSERT INTO tickets (`+ticketColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.EventID, t.UserID, t.RegistrationID,
		t.QRCode, t.Status, t.GeneratedAt, t.UsedAt,
	)
	if err != nil {
		if uniqueViolation(err, "tickets_registration_unique") {
			return model.ErrDuplicateTicket
		}
		if uniqueViolation(err, "tickets_qr_code_unique") {
			return model.ErrCodeCollision
		}
		return fmt.Errorf("insert ticket: %w", err)
	}
	return nil
}

// GetByRegistration returns the ticket for a registration, or
// model.ErrNotFound.
func (r *TicketRepository) GetByRegistration(ctx context.Context, registrationID string) (*model.Ticket, error) {
	return scanTicket(db(ctx, r.pool).QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE registration_id = $1`,
		registrationID,
	))
}

// GetByQRCode resolves a scanned code to its ticket, or model.ErrNotFound.
func (r *TicketRepository) GetByQRCode(ctx context.Context, code string) (*model.Ticket, error) {
	return scanTicket(db(ctx, r.pool).QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE qr_code = $1`,
		code,
	))
}

// CheckIn marks the ticket used with a single conditional update. Exactly
// one concurrent caller can win; everyone else observes zero affected rows
// and gets the original used_at back, which is never overwritten.
func (r *TicketRepository) CheckIn(ctx context.Context, ticketID string, now time.Time) (time.Time, error) {
	tag, err := db(ctx, r.pool).Exec(ctx,
		`UPDATE tickets
		 SET status = 'used', used_at = $2
		 WHERE id = $1 AND status = 'valid'`,
		ticketID, now,
	)
	if err != nil {
		if serializationFailure(err) {
			return time.Time{}, model.ErrStorageConflict
		}
		return time.Time{}, fmt.Errorf("check in ticket: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return now, nil
	}

	t, err := scanTicket(db(ctx, r.pool).QueryRow(ctx,
		`SELECT `+ticketColumns+` FROM tickets WHERE id = $1`, ticketID,
	))
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return time.Time{}, model.ErrTicketInvalid
		}
		return time.Time{}, err
	}
	if t.Status == model.TicketUsed && t.UsedAt != nil {
		return *t.UsedAt, model.ErrTicketAlreadyUsed
	}
	return time.Time{}, model.ErrTicketInvalid
}

// Cancel moves a valid ticket to cancelled. Used and already-cancelled
// tickets are left untouched.
func (r *TicketRepository) Cancel(ctx context.Context, ticketID string) error {
	_, err := db(ctx, r.pool).Exec(ctx,
		`UPDATE tickets
		 SET status = 'cancelled'
		 WHERE id = $1 AND status = 'valid'`,
		ticketID,
	)
	if err != nil {
		return fmt.Errorf("cancel ticket: %w", err)
	}
	return nil
}
